// internal/common/genai/client_test.go
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semantic-search-api/internal/common/config"
)

func testConfig(baseURL string) config.GenAIConfig {
	return config.GenAIConfig{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		Model:       "test-model",
		Timeout:     2000,
		MaxRetries:  2,
		MaxTokens:   500,
		Temperature: 0.2,
	}
}

func completionResponse(content string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]interface{}{"content": content}},
		},
	})
	return string(body)
}

func TestComplete_SendsRequestAndReturnsContent(t *testing.T) {
	var captured struct {
		path string
		auth string
		body map[string]interface{}
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&captured.body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionResponse(`{"focusField": "price"}`)))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	content, err := client.Complete(context.Background(), []Message{
		{Role: "system", Content: "extract intent"},
		{Role: "user", Content: "pepper prices"},
	})

	require.NoError(t, err)
	assert.Equal(t, `{"focusField": "price"}`, content)
	assert.Equal(t, "/v1/chat/completions", captured.path)
	assert.Equal(t, "Bearer test-key", captured.auth)
	assert.Equal(t, "test-model", captured.body["model"])
	assert.Equal(t, float64(500), captured.body["max_tokens"])
}

func TestComplete_RetriesOnServerError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionResponse("recovered")))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	content, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})

	require.NoError(t, err)
	assert.Equal(t, "recovered", content)
	assert.Equal(t, 3, attempts)
}

func TestComplete_ExhaustedRetriesIsCallFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	_, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCallFailed))
}

func TestComplete_ContextExpiryIsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(completionResponse("too late")))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, []Message{{Role: "user", Content: "hi"}})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestComplete_EmptyChoicesIsCallFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	_, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCallFailed))
}
