// internal/agents/intent/extractor.go
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"semantic-search-api/internal/common/genai"
	"semantic-search-api/internal/common/logger"
	"semantic-search-api/internal/models"
)

// Completer is the slice of the chat-completion client the extractor needs.
type Completer interface {
	Complete(ctx context.Context, messages []genai.Message) (string, error)
}

const systemPrompt = `You extract structured search intent from trade and student questions.
Respond with a single JSON object and nothing else. Fields:
  "focusField":      one of "price", "shipments", "companies", "product", "" when unclear
  "product":         product name mentioned, or ""
  "companyMentions": {"exporter": "<name or empty>", "importer": "<name or empty>"}
  "timeFilter":      a time expression from the question verbatim, or ""
  "limit":           requested result count as an integer, 0 when not stated
  "chartType":       "trend" when the user asks for evolution over time, else ""
Do not invent values the question does not contain.`

// intentSchema guards against structurally wrong collaborator output.
// Anything that fails here is treated the same as a parse failure.
const intentSchema = `{
  "type": "object",
  "properties": {
    "focusField": {"type": "string"},
    "product": {"type": "string"},
    "companyMentions": {
      "type": "object",
      "properties": {
        "exporter": {"type": "string"},
        "importer": {"type": "string"}
      },
      "additionalProperties": false
    },
    "timeFilter": {"type": "string"},
    "limit": {"type": "integer", "minimum": 0},
    "chartType": {"type": "string"}
  },
  "additionalProperties": true
}`

// Extractor turns a raw question into a structured intent by calling
// the language-model collaborator. Extraction is best-effort: any
// collaborator or parse failure degrades to the default intent so the
// turn can continue, and only an expired turn deadline is an error.
type Extractor struct {
	client        Completer
	log           logger.Logger
	historyWindow int
	schema        *gojsonschema.Schema
}

func NewExtractor(client Completer, log logger.Logger, historyWindow int) *Extractor {
	schemaLoader := gojsonschema.NewStringLoader(intentSchema)
	schema, err := gojsonschema.NewSchema(schemaLoader)
	if err != nil {
		// The schema is a compile-time constant; this only trips during
		// development.
		panic(fmt.Sprintf("intent schema invalid: %v", err))
	}
	return &Extractor{
		client:        client,
		log:           log,
		historyWindow: historyWindow,
		schema:        schema,
	}
}

// Extract produces the intent for userQuery, consulting recent session
// history so follow-up questions keep their referents.
func (e *Extractor) Extract(ctx context.Context, userQuery string, cc *models.ConversationContext) (*models.Intent, error) {
	if ctx.Err() != nil {
		return nil, fmt.Errorf("intent extraction: %w", ctx.Err())
	}

	messages := e.buildMessages(userQuery, cc)

	raw, err := e.client.Complete(ctx, messages)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("intent extraction: %w", ctx.Err())
		}
		e.log.Warn("Intent extraction failed, using default intent", map[string]interface{}{
			"error": err.Error(),
		})
		return models.DefaultIntent(userQuery), nil
	}

	parsed, ok := e.parse(raw)
	if !ok {
		e.log.Warn("Intent response unparseable, using default intent", map[string]interface{}{
			"response_length": len(raw),
		})
		return models.DefaultIntent(userQuery), nil
	}

	// The question text is authoritative regardless of what the model
	// echoed back.
	parsed.RawQuery = userQuery
	if parsed.Limit < 0 {
		parsed.Limit = 0
	}
	return parsed, nil
}

func (e *Extractor) buildMessages(userQuery string, cc *models.ConversationContext) []genai.Message {
	messages := []genai.Message{
		{Role: "system", Content: systemPrompt},
	}

	if cc != nil {
		for _, pair := range cc.Recent(e.historyWindow) {
			messages = append(messages,
				genai.Message{Role: "user", Content: pair.User},
				genai.Message{Role: "assistant", Content: pair.Bot},
			)
		}
	}

	messages = append(messages, genai.Message{Role: "user", Content: userQuery})
	return messages
}

// parse pulls the JSON object out of the model response, validates it
// against the intent schema and unmarshals it.
func (e *Extractor) parse(raw string) (*models.Intent, bool) {
	payload := extractJSONObject(raw)
	if payload == "" {
		return nil, false
	}

	result, err := e.schema.Validate(gojsonschema.NewStringLoader(payload))
	if err != nil || !result.Valid() {
		return nil, false
	}

	var intent models.Intent
	if err := json.Unmarshal([]byte(payload), &intent); err != nil {
		return nil, false
	}
	return &intent, true
}

// extractJSONObject tolerates code fences and prose around the object.
func extractJSONObject(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
