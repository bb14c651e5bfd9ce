// internal/agents/rewriter/rewriter.go
package rewriter

import (
	"context"
	"encoding/json"
	"strings"

	"semantic-search-api/internal/common/logger"
)

// ResolveFunc maps a free-text company name to identifiers. The entity
// resolver satisfies it directly.
type ResolveFunc func(ctx context.Context, mention string) []int

// identifier fields that may arrive holding a literal company name
// instead of an id list.
var companyIDFields = map[string]bool{
	"parentGlobalExporterId": true,
	"parentGlobalImporterId": true,
}

// Rewriter is the post-planning pass over a serialized search query.
// It resolves company-name placeholders left in identifier fields into
// id arrays, upgrading the enclosing fuzzy clause to an exact terms
// clause, and normalizes the legacy wildcard product clause. The pass
// is idempotent and returns its input byte-for-byte when it finds
// nothing to change, so a malformed or already-rewritten query passes
// through untouched.
type Rewriter struct {
	resolve ResolveFunc
	log     logger.Logger
}

func NewRewriter(resolve ResolveFunc, log logger.Logger) *Rewriter {
	return &Rewriter{resolve: resolve, log: log}
}

func (r *Rewriter) Rewrite(ctx context.Context, dsl string) string {
	var body map[string]interface{}
	if err := json.Unmarshal([]byte(dsl), &body); err != nil {
		// Not a JSON document; nothing for this pass to do.
		return dsl
	}

	changed := r.walk(ctx, body)
	if !changed {
		return dsl
	}

	serialized, err := json.Marshal(body)
	if err != nil {
		return dsl
	}
	return string(serialized)
}

// walk descends the query tree transforming clause maps in place.
func (r *Rewriter) walk(ctx context.Context, node interface{}) bool {
	changed := false

	switch n := node.(type) {
	case map[string]interface{}:
		if r.upgradeCompanyClause(ctx, n) {
			changed = true
		}
		if normalizeProductClause(n) {
			changed = true
		}
		for _, v := range n {
			if r.walk(ctx, v) {
				changed = true
			}
		}
	case []interface{}:
		for _, v := range n {
			if r.walk(ctx, v) {
				changed = true
			}
		}
	}

	return changed
}

// upgradeCompanyClause turns {"match": {"parentGlobal…Id": "Name"}}
// (or the terms variant holding a literal name) into
// {"terms": {"parentGlobal…Id": [ids…]}}. Zero resolved ids leave the
// clause in place so the query stays executable, merely over-broad.
func (r *Rewriter) upgradeCompanyClause(ctx context.Context, clause map[string]interface{}) bool {
	for _, clauseType := range []string{"match", "terms"} {
		inner, ok := clause[clauseType].(map[string]interface{})
		if !ok {
			continue
		}

		for field, value := range inner {
			if !companyIDFields[field] {
				continue
			}
			mention, ok := value.(string)
			if !ok || strings.TrimSpace(mention) == "" {
				continue
			}

			ids := r.resolve(ctx, mention)
			if len(ids) == 0 {
				r.log.Debug("Placeholder mention resolved to nothing, leaving clause as is", map[string]interface{}{
					"field":   field,
					"mention": mention,
				})
				continue
			}

			delete(clause, clauseType)
			clause["terms"] = map[string]interface{}{field: ids}
			return true
		}
	}
	return false
}

// normalizeProductClause rewrites the legacy
// {"wildcard": {"productDescEnglish": "*term*"}} form to
// {"match_phrase": {"productDesc": "term"}}.
func normalizeProductClause(clause map[string]interface{}) bool {
	inner, ok := clause["wildcard"].(map[string]interface{})
	if !ok {
		return false
	}

	raw, ok := inner["productDescEnglish"]
	if !ok {
		return false
	}

	term := ""
	switch v := raw.(type) {
	case string:
		term = v
	case map[string]interface{}:
		if s, ok := v["value"].(string); ok {
			term = s
		}
	}
	if term == "" {
		return false
	}

	delete(clause, "wildcard")
	clause["match_phrase"] = map[string]interface{}{
		"productDesc": strings.Trim(term, "*"),
	}
	return true
}
