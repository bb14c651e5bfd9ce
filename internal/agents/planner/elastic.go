// internal/agents/planner/elastic.go
package planner

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"semantic-search-api/internal/models"
)

var (
	limitPattern      = regexp.MustCompile(`(?i)\b(?:top|first|limit)\s+(\d+)\b`)
	timeSpanPattern   = regexp.MustCompile(`(?i)last\s+(\d+)\s+(day|week|month|year)s?`)
	priceTermPattern  = regexp.MustCompile(`(?i)\b(price|prices|rate|rates|usd|cost|value)\b`)
	partyTermPattern  = regexp.MustCompile(`(?i)\b(supplier|suppliers|exporter|exporters|buyer|buyers|importer|importers)\b`)
	baseSourceFields  = []string{"date", "productDesc", "countryId"}
	priceSourceFields = []string{"unitRateUsd", "unitPrice", "date"}
	partySourceFields = []string{"exporterName", "importerName"}
)

// ElasticPlanner compiles an intent into a search-engine DSL document.
// The query body is built as structured maps and serialized exactly
// once at the boundary; the output is always a balanced JSON object,
// falling back to match_all when no filter applies.
type ElasticPlanner struct {
	defaultLimit int
}

func NewElasticPlanner(defaultLimit int) *ElasticPlanner {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &ElasticPlanner{defaultLimit: defaultLimit}
}

func (p *ElasticPlanner) Plan(intent *models.Intent, resolved models.ResolvedEntities) models.QueryPlan {
	must := p.buildClauses(intent, resolved)

	body := map[string]interface{}{
		"size":    p.resultSize(intent),
		"_source": p.sourceFields(intent),
	}

	if len(must) == 0 {
		body["query"] = map[string]interface{}{"match_all": map[string]interface{}{}}
	} else {
		body["query"] = map[string]interface{}{
			"bool": map[string]interface{}{"must": must},
		}
	}

	if sort := p.sortOrder(intent); sort != nil {
		body["sort"] = sort
	}

	if isPriceRelated(intent) {
		body["aggs"] = priceAggregations()
	}

	serialized, _ := json.Marshal(body)
	return models.QueryPlan{
		Query:   string(serialized),
		Backend: models.BackendElasticsearch,
		Kind:    Classify(intent),
	}
}

// buildClauses assembles the bool/must list in priority order:
// identifier filters, product filter, time range.
func (p *ElasticPlanner) buildClauses(intent *models.Intent, resolved models.ResolvedEntities) []interface{} {
	var must []interface{}

	must = appendCompanyClause(must, "parentGlobalExporterId", resolved["Exporter"], exporterMention(intent))
	must = appendCompanyClause(must, "parentGlobalImporterId", resolved["Importer"], importerMention(intent))

	if product := strings.TrimSpace(intent.Product); product != "" {
		must = append(must, map[string]interface{}{
			"match_phrase": map[string]interface{}{"productDesc": product},
		})
	}

	if gte := timeRangeLowerBound(intent.TimeFilter); gte != "" {
		must = append(must, map[string]interface{}{
			"range": map[string]interface{}{
				"date": map[string]interface{}{"gte": gte},
			},
		})
	}

	return must
}

// appendCompanyClause prefers an exact terms clause over resolved ids;
// with no ids but a raw mention it degrades to a fuzzy match on the
// same field, which the rewriter may later upgrade.
func appendCompanyClause(must []interface{}, field string, ids []int, mention string) []interface{} {
	if len(ids) > 0 {
		must = append(must, map[string]interface{}{
			"terms": map[string]interface{}{field: ids},
		})
		return must
	}
	if mention != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{field: mention},
		})
	}
	return must
}

func exporterMention(intent *models.Intent) string {
	if intent.CompanyMentions == nil {
		return ""
	}
	return strings.TrimSpace(intent.CompanyMentions.Exporter)
}

func importerMention(intent *models.Intent) string {
	if intent.CompanyMentions == nil {
		return ""
	}
	return strings.TrimSpace(intent.CompanyMentions.Importer)
}

// timeRangeLowerBound turns a free-text time hint into a date-math
// lower bound. An unrecognized hint defaults to one year back rather
// than being dropped.
func timeRangeLowerBound(filter string) string {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return ""
	}

	if m := timeSpanPattern.FindStringSubmatch(filter); m != nil {
		n, _ := strconv.Atoi(m[1])
		unit := map[string]string{"day": "d", "week": "w", "month": "M", "year": "y"}[strings.ToLower(m[2])]
		return fmt.Sprintf("now-%d%s/d", n, unit)
	}

	lower := strings.ToLower(filter)
	switch {
	case strings.Contains(lower, "this year"):
		return "now/y"
	case strings.Contains(lower, "this month"):
		return "now/M"
	default:
		return "now-1y/d"
	}
}

// sourceFields widens the base field set contextually: price wording
// pulls in the price fields, supplier/buyer wording pulls in the
// counterparty name fields.
func (p *ElasticPlanner) sourceFields(intent *models.Intent) []string {
	fields := append([]string{}, baseSourceFields...)
	if isPriceRelated(intent) {
		fields = appendMissing(fields, priceSourceFields)
	}
	if partyTermPattern.MatchString(intent.RawQuery) {
		fields = appendMissing(fields, partySourceFields)
	}
	return fields
}

func appendMissing(fields, extra []string) []string {
	for _, f := range extra {
		seen := false
		for _, existing := range fields {
			if existing == f {
				seen = true
				break
			}
		}
		if !seen {
			fields = append(fields, f)
		}
	}
	return fields
}

func (p *ElasticPlanner) resultSize(intent *models.Intent) int {
	if m := limitPattern.FindStringSubmatch(intent.RawQuery); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	if intent.Limit > 0 {
		return intent.Limit
	}
	return p.defaultLimit
}

// sortOrder leaves relevance ordering in place except for price-focused
// questions, which get a fixed newest-and-priciest-first order.
func (p *ElasticPlanner) sortOrder(intent *models.Intent) []interface{} {
	if !isPriceRelated(intent) {
		return nil
	}
	return []interface{}{
		map[string]interface{}{"date": map[string]interface{}{"order": "desc"}},
		map[string]interface{}{"unitRateUsd": map[string]interface{}{"order": "desc"}},
	}
}

func isPriceRelated(intent *models.Intent) bool {
	if strings.EqualFold(intent.FocusField, "price") {
		return true
	}
	return priceTermPattern.MatchString(intent.RawQuery)
}

// priceAggregations is the fixed pair attached to every price-related
// query: overall stats plus a monthly trend.
func priceAggregations() map[string]interface{} {
	return map[string]interface{}{
		"price_stats": map[string]interface{}{
			"stats": map[string]interface{}{"field": "unitRateUsd"},
		},
		"monthly_price_trend": map[string]interface{}{
			"date_histogram": map[string]interface{}{
				"field":             "date",
				"calendar_interval": "month",
			},
			"aggs": map[string]interface{}{
				"avg_price": map[string]interface{}{"avg": map[string]interface{}{"field": "unitRateUsd"}},
				"min_price": map[string]interface{}{"min": map[string]interface{}{"field": "unitRateUsd"}},
				"max_price": map[string]interface{}{"max": map[string]interface{}{"field": "unitRateUsd"}},
			},
		},
	}
}
