// internal/models/intent.go
package models

// Intent is the structured extraction of a user's natural-language
// question. It is created once per turn and not mutated afterwards,
// except that the orchestrator may substitute resolved company
// identifiers into CompanyMentions before planning.
type Intent struct {
	RawQuery        string           `json:"rawQuery"`
	FocusField      string           `json:"focusField,omitempty"`
	Product         string           `json:"product,omitempty"`
	CompanyMentions *CompanyMentions `json:"companyMentions,omitempty"`
	TimeFilter      string           `json:"timeFilter,omitempty"`
	Limit           int              `json:"limit,omitempty"`
	ChartType       string           `json:"chartType,omitempty"`
}

// CompanyMentions holds free-text company names as the user wrote them.
type CompanyMentions struct {
	Exporter string `json:"exporter,omitempty"`
	Importer string `json:"importer,omitempty"`
}

// DefaultIntent returns the fallback intent used when upstream
// extraction fails: only RawQuery populated. RawQuery is never empty.
func DefaultIntent(userQuery string) *Intent {
	return &Intent{RawQuery: userQuery}
}

// ResolvedEntities maps a logical role ("Exporter"/"Importer") or a
// literal mention to the company identifiers it resolved to. An empty
// list is a valid resolution miss, not an error.
type ResolvedEntities map[string][]int
