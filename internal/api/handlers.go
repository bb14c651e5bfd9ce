// internal/api/handlers.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"semantic-search-api/internal/common/logger"
	"semantic-search-api/internal/models"
)

// TurnRunner is the orchestrator surface the API needs.
type TurnRunner interface {
	HandleTurn(ctx context.Context, sessionID, userQuery string) *models.TurnResponse
}

// QueryDispatcher executes an already-written query, bypassing the
// pipeline. Used by the direct endpoint.
type QueryDispatcher interface {
	Execute(ctx context.Context, plan models.QueryPlan) *models.ExecutionResult
}

// Handler exposes the turn pipeline over HTTP.
type Handler struct {
	turns      TurnRunner
	dispatcher QueryDispatcher
	log        logger.Logger
}

func NewHandler(turns TurnRunner, dispatcher QueryDispatcher, log logger.Logger) *Handler {
	return &Handler{turns: turns, dispatcher: dispatcher, log: log}
}

// Register wires the routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/search/query", h.handleQuery)
	mux.HandleFunc("/api/search/direct", h.handleDirect)
	mux.HandleFunc("/api/search/samples", h.handleSamples)
	mux.HandleFunc("/health", h.handleHealth)
}

type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"sessionId"`
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	response := h.turns.HandleTurn(r.Context(), sessionID, req.Query)
	writeJSON(w, http.StatusOK, response)
}

type directRequest struct {
	Query   string `json:"query"`
	Backend string `json:"backend"`
}

func (h *Handler) handleDirect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req directRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	backend := models.Backend(req.Backend)
	switch backend {
	case models.BackendElasticsearch, models.BackendPostgres:
	case "":
		backend = models.BackendElasticsearch
	default:
		writeError(w, http.StatusBadRequest, "unknown backend")
		return
	}

	result := h.dispatcher.Execute(r.Context(), models.QueryPlan{Query: req.Query, Backend: backend})
	writeJSON(w, http.StatusOK, result)
}

// sampleQuestions mirrors what the pipeline handles well; served to
// help UI clients offer suggestions.
var sampleQuestions = []string{
	"How many students are there?",
	"What is the average grade per subject?",
	"Show me John's transcript",
	"Which students are top performers?",
	"Price of black pepper in the last 6 months",
	"Top 5 exports of Global Spices",
	"Who imported the most this year?",
}

func (h *Handler) handleSamples(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"samples": sampleQuestions})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
