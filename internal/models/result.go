// internal/models/result.go
package models

// Hit is a single search-backend document: its source field map.
type Hit map[string]interface{}

// ExecutionResult is the uniform raw-result envelope returned by the
// query executor for both backends. If Success is false, Rows and Hits
// are empty and Error carries the backend message verbatim; if Success
// is true, Error is empty.
type ExecutionResult struct {
	Success      bool                     `json:"success"`
	Error        string                   `json:"error,omitempty"`
	Rows         []map[string]interface{} `json:"rows,omitempty"`
	Columns      []string                 `json:"columns,omitempty"`
	Hits         []Hit                    `json:"hits,omitempty"`
	TotalHits    int                      `json:"totalHits"`
	Aggregations map[string]interface{}   `json:"aggregations,omitempty"`
	Corrections  []string                 `json:"corrections,omitempty"`
}

// RowCount returns the number of materialized relational rows.
func (r *ExecutionResult) RowCount() int {
	return len(r.Rows)
}

// HitCount returns the number of returned search hits.
func (r *ExecutionResult) HitCount() int {
	return len(r.Hits)
}

// Empty reports whether the result carries no rows and no hits.
func (r *ExecutionResult) Empty() bool {
	return len(r.Rows) == 0 && len(r.Hits) == 0
}

// FailedResult builds the envelope for a backend failure.
func FailedResult(err error) *ExecutionResult {
	return &ExecutionResult{Success: false, Error: err.Error()}
}

// TurnResponse is the Turn API envelope: one user question in, one
// answer out, with the generated query and raw results for inspection.
type TurnResponse struct {
	Success        bool             `json:"success"`
	Summary        string           `json:"summary"`
	GeneratedQuery string           `json:"generatedQuery,omitempty"`
	Backend        Backend          `json:"backend,omitempty"`
	Intent         *Intent          `json:"intent,omitempty"`
	RawResults     *ExecutionResult `json:"rawResults,omitempty"`
	Corrections    []string         `json:"corrections,omitempty"`
	ErrorMessage   string           `json:"errorMessage,omitempty"`
	SessionID      string           `json:"sessionId"`
}
