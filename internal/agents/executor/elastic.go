// internal/agents/executor/elastic.go
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"semantic-search-api/internal/common/logger"
	"semantic-search-api/internal/models"
)

// ElasticExecutor posts DSL documents to the search backend and maps
// the response into the uniform envelope. Backend errors land verbatim
// in the Error field with Success=false.
type ElasticExecutor struct {
	es    *elasticsearch.Client
	index string
	log   logger.Logger
}

func NewElasticExecutor(es *elasticsearch.Client, index string, log logger.Logger) *ElasticExecutor {
	return &ElasticExecutor{es: es, index: index, log: log}
}

func (e *ElasticExecutor) Execute(ctx context.Context, query string) *models.ExecutionResult {
	res, err := e.es.Search(
		e.es.Search.WithContext(ctx),
		e.es.Search.WithIndex(e.index),
		e.es.Search.WithBody(strings.NewReader(query)),
	)
	if err != nil {
		e.log.Error("Search request failed", map[string]interface{}{"error": err.Error()})
		return models.FailedResult(err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return models.FailedResult(fmt.Errorf("read search response: %w", err))
	}

	if res.IsError() {
		// The backend's own message, verbatim.
		return &models.ExecutionResult{Success: false, Error: string(body)}
	}

	return parseSearchResponse(body)
}

func parseSearchResponse(body []byte) *models.ExecutionResult {
	var parsed struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.Hit `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
		Aggregations map[string]interface{} `json:"aggregations"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return models.FailedResult(fmt.Errorf("parse search response: %w", err))
	}

	hits := make([]models.Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, h.Source)
	}

	return &models.ExecutionResult{
		Success:      true,
		Hits:         hits,
		TotalHits:    parsed.Hits.Total.Value,
		Aggregations: parsed.Aggregations,
	}
}
