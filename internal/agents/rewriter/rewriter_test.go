// internal/agents/rewriter/rewriter_test.go
package rewriter

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semantic-search-api/internal/common/logger"
)

func fixedResolver(table map[string][]int) ResolveFunc {
	return func(_ context.Context, mention string) []int {
		return table[mention]
	}
}

func TestRewrite_UpgradesMatchToTerms(t *testing.T) {
	r := NewRewriter(fixedResolver(map[string][]int{"Global Spices": {9}}), logger.NewNoOpLogger())

	in := `{"query":{"bool":{"must":[{"match":{"parentGlobalExporterId":"Global Spices"}}]}}}`
	out := r.Rewrite(context.Background(), in)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	must := body["query"].(map[string]interface{})["bool"].(map[string]interface{})["must"].([]interface{})
	clause := must[0].(map[string]interface{})

	_, hasMatch := clause["match"]
	assert.False(t, hasMatch, "fuzzy clause must be replaced")
	terms := clause["terms"].(map[string]interface{})
	assert.Equal(t, []interface{}{float64(9)}, terms["parentGlobalExporterId"])
}

func TestRewrite_MultipleIDs(t *testing.T) {
	r := NewRewriter(fixedResolver(map[string][]int{"Global Spices": {3, 9}}), logger.NewNoOpLogger())

	in := `{"query":{"match":{"parentGlobalExporterId":"Global Spices"}}}`
	out := r.Rewrite(context.Background(), in)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	terms := body["query"].(map[string]interface{})["terms"].(map[string]interface{})
	assert.Equal(t, []interface{}{float64(3), float64(9)}, terms["parentGlobalExporterId"])
}

func TestRewrite_TermsPlaceholderAlsoResolved(t *testing.T) {
	r := NewRewriter(fixedResolver(map[string][]int{"Acme": {4}}), logger.NewNoOpLogger())

	in := `{"query":{"terms":{"parentGlobalImporterId":"Acme"}}}`
	out := r.Rewrite(context.Background(), in)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	terms := body["query"].(map[string]interface{})["terms"].(map[string]interface{})
	assert.Equal(t, []interface{}{float64(4)}, terms["parentGlobalImporterId"])
}

func TestRewrite_Idempotent(t *testing.T) {
	resolve := fixedResolver(map[string][]int{"Global Spices": {3, 9}})
	r := NewRewriter(resolve, logger.NewNoOpLogger())
	ctx := context.Background()

	inputs := []string{
		`{"query":{"bool":{"must":[{"match":{"parentGlobalExporterId":"Global Spices"}}]}}}`,
		`{"query":{"match_all":{}}}`,
		`{"query":{"wildcard":{"productDescEnglish":"*pepper*"}}}`,
		`not json at all`,
	}

	for _, in := range inputs {
		once := r.Rewrite(ctx, in)
		twice := r.Rewrite(ctx, once)
		assert.Equal(t, once, twice, in)
	}
}

func TestRewrite_NoPlaceholderUnchanged(t *testing.T) {
	r := NewRewriter(fixedResolver(nil), logger.NewNoOpLogger())

	in := `{"size": 10, "query": {"match_all": {}}}`
	assert.Equal(t, in, r.Rewrite(context.Background(), in))
}

func TestRewrite_ZeroIDsLeaveClauseInPlace(t *testing.T) {
	r := NewRewriter(fixedResolver(nil), logger.NewNoOpLogger())

	in := `{"query":{"match":{"parentGlobalExporterId":"Nobody Ltd"}}}`
	assert.Equal(t, in, r.Rewrite(context.Background(), in))
}

func TestRewrite_NormalizesLegacyProductClause(t *testing.T) {
	r := NewRewriter(fixedResolver(nil), logger.NewNoOpLogger())

	in := `{"query":{"wildcard":{"productDescEnglish":"*black pepper*"}}}`
	out := r.Rewrite(context.Background(), in)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	phrase := body["query"].(map[string]interface{})["match_phrase"].(map[string]interface{})
	assert.Equal(t, "black pepper", phrase["productDesc"])
}

func TestRewrite_NonJSONPassedThrough(t *testing.T) {
	r := NewRewriter(fixedResolver(nil), logger.NewNoOpLogger())

	in := `SELECT * FROM students`
	assert.Equal(t, in, r.Rewrite(context.Background(), in))
}
