// internal/models/query_plan.go
package models

// Backend identifies which data store a plan targets.
type Backend string

const (
	BackendElasticsearch Backend = "elasticsearch"
	BackendPostgres      Backend = "postgres"
)

// QueryKind is the coarse classification of a user question. The
// classifier applies them in declaration order, first match wins, so
// aggregation intent dominates detail intent.
type QueryKind string

const (
	QueryKindAggregation QueryKind = "aggregation"
	QueryKindDetail      QueryKind = "detail"
	QueryKindSearch      QueryKind = "search"
)

// QueryPlan is a serialized backend query plus its declared target.
// The Query field is always syntactically complete: a balanced JSON
// document for the search backend or a non-empty SQL statement.
type QueryPlan struct {
	Query   string    `json:"query"`
	Backend Backend   `json:"backend"`
	Kind    QueryKind `json:"kind,omitempty"`
}
