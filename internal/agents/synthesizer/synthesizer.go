// internal/agents/synthesizer/synthesizer.go
package synthesizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"semantic-search-api/internal/common/genai"
	"semantic-search-api/internal/common/logger"
	"semantic-search-api/internal/models"
)

// Completer is the optional language-model phrasing collaborator. A
// nil client disables the LLM paths; every strategy has a
// deterministic fallback.
type Completer interface {
	Complete(ctx context.Context, messages []genai.Message) (string, error)
}

const schemaContext = `The relational backend is a students table with columns Name, Subject, Grade (1-5).
The search backend indexes trade shipments with productDesc, unitRateUsd, unitPrice, date, exporterName, importerName.`

// Synthesizer turns a raw execution result back into text. Strategies
// are tried in a fixed order and the final count-only fallback cannot
// fail, so Summarize always returns a non-empty answer and never
// panics past its boundary.
type Synthesizer struct {
	llm       Completer
	sampleCap int
	log       logger.Logger
}

func New(llm Completer, sampleCap int, log logger.Logger) *Synthesizer {
	if sampleCap <= 0 {
		sampleCap = 5
	}
	return &Synthesizer{llm: llm, sampleCap: sampleCap, log: log}
}

// Summarize produces the user-facing answer for a turn. It must not
// propagate a panic: any formatting failure degrades to a one-line
// count summary.
func (s *Synthesizer) Summarize(ctx context.Context, result *models.ExecutionResult, intent *models.Intent) (answer string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Synthesis panicked, using count fallback", map[string]interface{}{
				"panic": fmt.Sprintf("%v", r),
			})
			answer = countFallback(result)
		}
	}()

	strategies := []func(context.Context, *models.ExecutionResult, *models.Intent) (string, bool){
		s.summarizeFailure,
		s.summarizeAggregations,
		s.summarizeRecords,
		s.summarizeEmpty,
	}

	for _, strategy := range strategies {
		if text, ok := strategy(ctx, result, intent); ok {
			return withCorrections(text, result.Corrections)
		}
	}
	return withCorrections(countFallback(result), result.Corrections)
}

// summarizeFailure embeds the backend's message verbatim and carries
// no row or hit data.
func (s *Synthesizer) summarizeFailure(_ context.Context, result *models.ExecutionResult, _ *models.Intent) (string, bool) {
	if result.Success {
		return "", false
	}
	return fmt.Sprintf("The query could not be executed: %s", result.Error), true
}

// summarizeAggregations renders the stats block, the monthly trend and
// a capped sample of the newest records.
func (s *Synthesizer) summarizeAggregations(_ context.Context, result *models.ExecutionResult, intent *models.Intent) (string, bool) {
	if len(result.Aggregations) == 0 {
		return "", false
	}

	var b strings.Builder

	if stats, ok := result.Aggregations["price_stats"].(map[string]interface{}); ok {
		b.WriteString(fmt.Sprintf("Price summary across %s records: average %s, minimum %s, maximum %s USD.\n",
			formatCount(stats["count"]),
			formatPrice(stats["avg"]),
			formatPrice(stats["min"]),
			formatPrice(stats["max"]),
		))
	}

	if trend := trendLines(result.Aggregations["monthly_price_trend"]); len(trend) > 0 {
		b.WriteString("Monthly trend:\n")
		for _, line := range trend {
			b.WriteString("  " + line + "\n")
		}
	}

	if len(result.Hits) > 0 {
		b.WriteString(fmt.Sprintf("Most recent records (%d shown):\n", capInt(len(result.Hits), s.sampleCap)))
		for _, line := range s.hitHighlights(result.Hits, intent) {
			b.WriteString("  " + line + "\n")
		}
	}

	text := strings.TrimRight(b.String(), "\n")
	if text == "" {
		return "", false
	}
	return text, true
}

// summarizeRecords handles plain row sets and hit lists: a total-count
// line followed by capped per-record highlights. Count-shaped single
// rows get a direct phrasing instead of a listing.
func (s *Synthesizer) summarizeRecords(ctx context.Context, result *models.ExecutionResult, intent *models.Intent) (string, bool) {
	if result.Empty() {
		return "", false
	}

	if text, ok := countRowAnswer(result); ok {
		return text, true
	}

	if s.llm != nil {
		if text, err := s.llmSummary(ctx, result, intent); err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text), true
		}
	}

	var b strings.Builder
	if len(result.Rows) > 0 {
		b.WriteString(fmt.Sprintf("Found %d records.\n", result.RowCount()))
		for i, row := range result.Rows {
			if i == s.sampleCap {
				break
			}
			b.WriteString("  " + rowHighlight(row, result.Columns) + "\n")
		}
	} else {
		total := result.TotalHits
		if total == 0 {
			total = result.HitCount()
		}
		b.WriteString(fmt.Sprintf("Found %d matching shipments.\n", total))
		for _, line := range s.hitHighlights(result.Hits, intent) {
			b.WriteString("  " + line + "\n")
		}
	}

	return strings.TrimRight(b.String(), "\n"), true
}

// summarizeEmpty covers the zero-result case. With a phrasing
// collaborator available it asks for an explanation grounded in the
// schema; any failure falls back to the fixed message.
func (s *Synthesizer) summarizeEmpty(ctx context.Context, result *models.ExecutionResult, intent *models.Intent) (string, bool) {
	if !result.Success || !result.Empty() {
		return "", false
	}

	fallback := "No matching records were found for your question."

	if s.llm != nil && intent != nil {
		prompt := fmt.Sprintf(
			"The question %q matched no records.\n%s\nIn one or two sentences, explain the empty result and suggest valid alternative values the user could try.",
			intent.RawQuery, schemaContext,
		)
		text, err := s.llm.Complete(ctx, []genai.Message{
			{Role: "system", Content: "You explain empty search results briefly and concretely."},
			{Role: "user", Content: prompt},
		})
		if err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text), true
		}
		s.log.Warn("Empty-result phrasing failed, using fixed message", map[string]interface{}{})
	}

	return fallback, true
}

// llmSummary asks the phrasing collaborator to word a successful row
// set; rows are capped before prompting.
func (s *Synthesizer) llmSummary(ctx context.Context, result *models.ExecutionResult, intent *models.Intent) (string, error) {
	capped := result.Rows
	if len(capped) > s.sampleCap {
		capped = capped[:s.sampleCap]
	}
	data, err := json.Marshal(capped)
	if err != nil {
		return "", err
	}

	question := ""
	if intent != nil {
		question = intent.RawQuery
	}

	return s.llm.Complete(ctx, []genai.Message{
		{Role: "system", Content: "You summarize query results in one short paragraph of plain language. Mention the total count."},
		{Role: "user", Content: fmt.Sprintf("Question: %s\nTotal rows: %d\nSample rows: %s", question, result.RowCount(), data)},
	})
}

// countRowAnswer recognizes count-shaped single rows such as
// [{TotalStudents: 42}] and phrases them directly.
func countRowAnswer(result *models.ExecutionResult) (string, bool) {
	if len(result.Rows) != 1 {
		return "", false
	}
	row := result.Rows[0]

	for key, value := range row {
		switch {
		case strings.EqualFold(key, "TotalStudents"):
			return fmt.Sprintf("Total number of students: %v", value), true
		case strings.EqualFold(key, "TotalRecords"):
			return fmt.Sprintf("Total number of records: %v", value), true
		}
	}
	return "", false
}

// hitHighlights extracts the fields a reader cares about from each
// hit: date, product, price when the question is price-focused, and
// counterparty names.
func (s *Synthesizer) hitHighlights(hits []models.Hit, intent *models.Intent) []string {
	priceFocus := intent != nil && strings.EqualFold(intent.FocusField, "price")

	lines := make([]string, 0, capInt(len(hits), s.sampleCap))
	for i, hit := range hits {
		if i == s.sampleCap {
			break
		}
		var parts []string
		if v, ok := hit["date"]; ok {
			parts = append(parts, fmt.Sprintf("%v", v))
		}
		if v, ok := hit["productDesc"]; ok {
			parts = append(parts, fmt.Sprintf("%v", v))
		}
		if priceFocus {
			if v, ok := hit["unitRateUsd"]; ok {
				parts = append(parts, fmt.Sprintf("at %s USD", formatPrice(v)))
			}
		}
		if v, ok := hit["exporterName"]; ok {
			parts = append(parts, fmt.Sprintf("from %v", v))
		}
		if v, ok := hit["importerName"]; ok {
			parts = append(parts, fmt.Sprintf("to %v", v))
		}
		if len(parts) == 0 {
			parts = append(parts, "record")
		}
		lines = append(lines, strings.Join(parts, ", "))
	}
	return lines
}

// rowHighlight renders one relational row in backend column order.
func rowHighlight(row map[string]interface{}, columns []string) string {
	if len(columns) == 0 {
		for k := range row {
			columns = append(columns, k)
		}
	}
	parts := make([]string, 0, len(columns))
	for _, col := range columns {
		if v, ok := row[col]; ok {
			parts = append(parts, fmt.Sprintf("%s: %v", col, v))
		}
	}
	return strings.Join(parts, ", ")
}

// trendLines renders date-histogram buckets as "2024-01: avg …" lines.
func trendLines(agg interface{}) []string {
	trend, ok := agg.(map[string]interface{})
	if !ok {
		return nil
	}
	buckets, ok := trend["buckets"].([]interface{})
	if !ok {
		return nil
	}

	lines := make([]string, 0, len(buckets))
	for _, raw := range buckets {
		bucket, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		label, _ := bucket["key_as_string"].(string)
		if len(label) >= 7 {
			label = label[:7]
		}
		lines = append(lines, fmt.Sprintf("%s: avg %s (min %s, max %s)",
			label,
			formatPrice(subValue(bucket, "avg_price")),
			formatPrice(subValue(bucket, "min_price")),
			formatPrice(subValue(bucket, "max_price")),
		))
	}
	return lines
}

func subValue(bucket map[string]interface{}, name string) interface{} {
	if inner, ok := bucket[name].(map[string]interface{}); ok {
		return inner["value"]
	}
	return nil
}

// withCorrections appends the planner's correction notes to the
// answer; they supplement it, never replace it.
func withCorrections(text string, corrections []string) string {
	for _, c := range corrections {
		if from, to, ok := strings.Cut(c, " -> "); ok {
			text += fmt.Sprintf("\nNote: %s was corrected to %s.", from, to)
		} else {
			text += "\nNote: " + c
		}
	}
	return text
}

// countFallback is the terminal strategy: pure string formatting over
// the raw counts, which cannot fail.
func countFallback(result *models.ExecutionResult) string {
	if result == nil {
		return "No results."
	}
	count := result.RowCount()
	if count == 0 {
		count = result.TotalHits
	}
	if count == 0 {
		count = result.HitCount()
	}
	return fmt.Sprintf("Found %d results.", count)
}

func formatPrice(v interface{}) string {
	if f, ok := toFloat(v); ok {
		return fmt.Sprintf("%.2f", f)
	}
	return "n/a"
}

func formatCount(v interface{}) string {
	if f, ok := toFloat(v); ok {
		return fmt.Sprintf("%.0f", f)
	}
	return "0"
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func capInt(n, limit int) int {
	if n < limit {
		return n
	}
	return limit
}
