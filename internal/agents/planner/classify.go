// internal/agents/planner/classify.go
package planner

import (
	"strings"

	"semantic-search-api/internal/models"
)

// Keyword sets checked in order; aggregation dominates detail when a
// question carries both (e.g. "average grade on the transcript").
var (
	aggregationKeywords = []string{"average", "count", "how many", "statistics", "summary", "total"}
	detailKeywords      = []string{"all subjects", "transcript", "details"}
)

// Classify buckets an intent into aggregation, detail or search by
// scanning the raw question text. First matching bucket wins.
func Classify(intent *models.Intent) models.QueryKind {
	text := strings.ToLower(intent.RawQuery)

	for _, kw := range aggregationKeywords {
		if strings.Contains(text, kw) {
			return models.QueryKindAggregation
		}
	}
	for _, kw := range detailKeywords {
		if strings.Contains(text, kw) {
			return models.QueryKindDetail
		}
	}
	return models.QueryKindSearch
}
