// internal/agents/resolver/resolver.go
package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"semantic-search-api/internal/common/logger"
	"semantic-search-api/internal/models"
)

// CompanyResolver looks up free-text company names in the company
// index and returns their numeric identifiers. Resolution is
// best-effort: a name that matches nothing resolves to an empty list,
// and a lookup failure is logged and also resolves to an empty list so
// the turn can continue with an unfiltered query.
type CompanyResolver struct {
	es    *elasticsearch.Client
	index string
	limit int
	log   logger.Logger
}

func NewCompanyResolver(es *elasticsearch.Client, index string, limit int, log logger.Logger) *CompanyResolver {
	if limit <= 0 {
		limit = 1000
	}
	return &CompanyResolver{
		es:    es,
		index: index,
		limit: limit,
		log:   log,
	}
}

// ResolveMentions resolves every non-empty mention in the intent and
// keys the results by role. Roles with no mention are absent from the
// map, not present with an empty list.
func (r *CompanyResolver) ResolveMentions(ctx context.Context, intent *models.Intent) models.ResolvedEntities {
	resolved := models.ResolvedEntities{}
	if intent == nil || intent.CompanyMentions == nil {
		return resolved
	}

	if name := strings.TrimSpace(intent.CompanyMentions.Exporter); name != "" {
		resolved["Exporter"] = r.Resolve(ctx, name)
	}
	if name := strings.TrimSpace(intent.CompanyMentions.Importer); name != "" {
		resolved["Importer"] = r.Resolve(ctx, name)
	}
	return resolved
}

// Resolve returns the identifiers of every company whose name contains
// the mention, case-insensitively.
func (r *CompanyResolver) Resolve(ctx context.Context, mention string) []int {
	query := map[string]interface{}{
		"size": r.limit,
		"query": map[string]interface{}{
			"wildcard": map[string]interface{}{
				"companyName.keyword": map[string]interface{}{
					"value":            fmt.Sprintf("*%s*", strings.ToLower(mention)),
					"case_insensitive": true,
				},
			},
		},
		"_source": []string{"companyId"},
	}

	body, _ := json.Marshal(query)

	res, err := r.es.Search(
		r.es.Search.WithContext(ctx),
		r.es.Search.WithIndex(r.index),
		r.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		r.log.Warn("Company lookup failed, continuing without filter", map[string]interface{}{
			"mention": mention,
			"error":   err.Error(),
		})
		return []int{}
	}
	defer res.Body.Close()

	if res.IsError() {
		r.log.Warn("Company lookup returned an error status", map[string]interface{}{
			"mention": mention,
			"status":  res.Status(),
		})
		return []int{}
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		r.log.Warn("Company lookup response unparseable", map[string]interface{}{
			"mention": mention,
			"error":   err.Error(),
		})
		return []int{}
	}

	ids := make([]int, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		id, ok := companyID(hit.Source)
		if !ok {
			// Documents without a usable companyId are skipped, not fatal.
			continue
		}
		ids = append(ids, id)
	}

	r.log.Debug("Resolved company mention", map[string]interface{}{
		"mention": mention,
		"matches": len(ids),
	})
	return ids
}

// companyID tolerates the numeric representations JSON decoding
// produces for the id field.
func companyID(source map[string]interface{}) (int, bool) {
	raw, ok := source["companyId"]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
