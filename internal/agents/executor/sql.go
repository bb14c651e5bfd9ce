// internal/agents/executor/sql.go
package executor

import (
	"context"
	"database/sql"
	"regexp"
	"strings"

	"semantic-search-api/internal/common/logger"
	"semantic-search-api/internal/models"
)

// Correction annotations the planner may have embedded into the
// statement, in either comment form.
var (
	lineCorrectionPattern  = regexp.MustCompile(`--\s*corrected:\s*([^\n]*?)\s*(?:\n|$)`)
	blockCorrectionPattern = regexp.MustCompile(`/\*\s*corrected:\s*(.*?)\s*\*/`)
)

// SQLExecutor runs statements against the relational backend,
// materializing rows in backend column order. Before execution it
// strips correction annotations out of the statement and carries them
// on the result envelope.
type SQLExecutor struct {
	db  *sql.DB
	log logger.Logger
}

func NewSQLExecutor(db *sql.DB, log logger.Logger) *SQLExecutor {
	return &SQLExecutor{db: db, log: log}
}

func (e *SQLExecutor) Execute(ctx context.Context, query string) *models.ExecutionResult {
	cleaned, corrections := ExtractCorrections(query)

	rows, err := e.db.QueryContext(ctx, cleaned)
	if err != nil {
		e.log.Error("Statement failed", map[string]interface{}{"error": err.Error()})
		result := models.FailedResult(err)
		result.Corrections = corrections
		return result
	}
	defer rows.Close()

	result, err := materializeRows(rows)
	if err != nil {
		failed := models.FailedResult(err)
		failed.Corrections = corrections
		return failed
	}

	result.Corrections = corrections
	return result
}

// ExtractCorrections pulls `-- corrected: …` and `/* corrected: … */`
// annotations out of a statement, returning the cleaned statement and
// the notes in order of appearance.
func ExtractCorrections(query string) (string, []string) {
	var corrections []string

	for _, m := range lineCorrectionPattern.FindAllStringSubmatch(query, -1) {
		if note := strings.TrimSpace(m[1]); note != "" {
			corrections = append(corrections, note)
		}
	}
	for _, m := range blockCorrectionPattern.FindAllStringSubmatch(query, -1) {
		if note := strings.TrimSpace(m[1]); note != "" {
			corrections = append(corrections, note)
		}
	}

	cleaned := lineCorrectionPattern.ReplaceAllString(query, "")
	cleaned = blockCorrectionPattern.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned), corrections
}

// materializeRows copies the row set into field→value maps, keeping
// the backend's column order on the side since Go maps do not.
func materializeRows(rows *sql.Rows) (*models.ExecutionResult, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &models.ExecutionResult{
		Success: true,
		Columns: columns,
		Rows:    []map[string]interface{}{},
	}

	values := make([]interface{}, len(columns))
	pointers := make([]interface{}, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = normalizeSQLValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// normalizeSQLValue converts driver byte slices into strings so the
// synthesizer and JSON encoding see plain values.
func normalizeSQLValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
