// internal/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "semantic-search-api/internal/common/errors"
	"semantic-search-api/internal/common/logger"
	"semantic-search-api/internal/common/metrics"
	"semantic-search-api/internal/common/observability"
	"semantic-search-api/internal/memory"
	"semantic-search-api/internal/models"
)

// Stage collaborators, narrowed to what the turn pipeline calls.
type (
	IntentExtractor interface {
		Extract(ctx context.Context, userQuery string, cc *models.ConversationContext) (*models.Intent, error)
	}
	EntityResolver interface {
		ResolveMentions(ctx context.Context, intent *models.Intent) models.ResolvedEntities
	}
	Planner interface {
		Plan(intent *models.Intent, resolved models.ResolvedEntities) models.QueryPlan
	}
	Rewriter interface {
		Rewrite(ctx context.Context, dsl string) string
	}
	Executor interface {
		Execute(ctx context.Context, plan models.QueryPlan) *models.ExecutionResult
	}
	Synthesizer interface {
		Summarize(ctx context.Context, result *models.ExecutionResult, intent *models.Intent) string
	}
)

// Orchestrator runs one user turn through the fixed stage sequence:
// load memory, extract intent, resolve entities, plan, rewrite,
// execute, synthesize, update memory. A stage failure short-circuits
// to an error response and the turn is not remembered. Turns for the
// same session are serialized by a per-session mutex; turns for
// different sessions proceed independently.
type Orchestrator struct {
	store       memory.Store
	extractor   IntentExtractor
	resolver    EntityResolver
	planner     Planner
	rewriter    Rewriter
	executor    Executor
	synthesizer Synthesizer

	turnTimeout time.Duration
	obs         *observability.Observability
	log         logger.Logger

	mu       sync.Mutex
	sessions map[string]*sync.Mutex
}

func New(
	store memory.Store,
	extractor IntentExtractor,
	resolver EntityResolver,
	planner Planner,
	rewriter Rewriter,
	executor Executor,
	synthesizer Synthesizer,
	turnTimeout time.Duration,
	obs *observability.Observability,
	log logger.Logger,
) *Orchestrator {
	if turnTimeout <= 0 {
		turnTimeout = time.Minute
	}
	return &Orchestrator{
		store:       store,
		extractor:   extractor,
		resolver:    resolver,
		planner:     planner,
		rewriter:    rewriter,
		executor:    executor,
		synthesizer: synthesizer,
		turnTimeout: turnTimeout,
		obs:         obs,
		log:         log,
		sessions:    make(map[string]*sync.Mutex),
	}
}

// HandleTurn processes one question for one session.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID, userQuery string) *models.TurnResponse {
	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	ctx, cancel := context.WithTimeout(ctx, o.turnTimeout)
	defer cancel()

	metrics.TurnsActive.Inc()
	defer metrics.TurnsActive.Dec()
	started := time.Now()

	response := o.runPipeline(ctx, sessionID, userQuery)

	status := "success"
	if !response.Success {
		status = "error"
	}
	if o.obs != nil {
		o.obs.RecordTurnProcessed(ctx, status, string(response.Backend))
		o.obs.RecordTurnDuration(ctx, time.Since(started), status)
	}
	return response
}

func (o *Orchestrator) runPipeline(ctx context.Context, sessionID, userQuery string) *models.TurnResponse {
	turnLog := o.log.WithFields(map[string]interface{}{"session_id": sessionID})

	// LoadMemory. A store failure degrades to an empty context rather
	// than killing the turn.
	cc, err := o.loadMemory(ctx, sessionID)
	if err != nil {
		turnLog.Warn("Session load failed, starting with empty context", map[string]interface{}{
			"error": err.Error(),
		})
		cc = &models.ConversationContext{}
	}

	// ExtractIntent.
	intent, err := o.timedExtract(ctx, userQuery, cc)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = apperrors.NewTurnDeadlineExceededError(err.Error())
		} else {
			err = apperrors.NewIntentParsingFailedError(err)
		}
		return o.failTurn(sessionID, "extract_intent", "", err, turnLog)
	}

	// ResolveEntities. Misses are not failures.
	resolved := o.timedResolve(ctx, intent)
	for role, ids := range resolved {
		if len(ids) == 0 {
			metrics.ResolutionMisses.Inc()
			turnLog.Debug("Entity mention resolved to nothing", map[string]interface{}{"role": role})
		}
	}
	if ctx.Err() != nil {
		return o.failTurn(sessionID, "resolve_entities", "",
			apperrors.NewTurnDeadlineExceededError(ctx.Err().Error()), turnLog)
	}

	// PlanQuery.
	plan := o.timedPlan(intent, resolved)

	// RewriteQuery.
	if plan.Backend == models.BackendElasticsearch {
		plan.Query = o.timedRewrite(ctx, plan.Query)
	}
	if ctx.Err() != nil {
		return o.failTurn(sessionID, "rewrite_query", plan.Query,
			apperrors.NewTurnDeadlineExceededError(ctx.Err().Error()), turnLog)
	}

	// ExecuteQuery. The executor reports failure inside the envelope.
	result := o.timedExecute(ctx, plan)
	if !result.Success {
		summary := o.synthesizer.Summarize(ctx, result, intent)
		execErr := apperrors.NewQueryExecutionFailedError(string(plan.Backend), errors.New(result.Error))
		metrics.TurnsFailed.WithLabelValues(string(plan.Backend), "execute_query").Inc()
		turnLog.Error("Turn failed during execution", map[string]interface{}{
			"backend":   string(plan.Backend),
			"error":     result.Error,
			"code":      string(execErr.Code),
			"retryable": apperrors.IsRetryableErrorCode(execErr.Code),
		})
		return &models.TurnResponse{
			Success:        false,
			Summary:        summary,
			GeneratedQuery: plan.Query,
			Backend:        plan.Backend,
			Intent:         intent,
			RawResults:     result,
			Corrections:    result.Corrections,
			ErrorMessage:   result.Error,
			SessionID:      sessionID,
		}
	}

	// SynthesizeAnswer. Total; cannot fail.
	summary := o.timedSynthesize(ctx, result, intent)

	// UpdateMemory. Runs only for successful turns; a save failure is
	// logged but does not retract the answer already produced.
	cc.Append(userQuery, summary)
	if err := o.store.Save(ctx, sessionID, cc); err != nil {
		turnLog.Warn("Session save failed", map[string]interface{}{
			"error": err.Error(),
			"code":  string(apperrors.ErrCodeSessionStoreFailed),
		})
	}

	metrics.TurnsCompleted.WithLabelValues(string(plan.Backend)).Inc()
	return &models.TurnResponse{
		Success:        true,
		Summary:        summary,
		GeneratedQuery: plan.Query,
		Backend:        plan.Backend,
		Intent:         intent,
		RawResults:     result,
		Corrections:    result.Corrections,
		SessionID:      sessionID,
	}
}

// failTurn is the terminal error state: a single explanatory response
// embedding the causing message, with nothing persisted.
func (o *Orchestrator) failTurn(sessionID, stage, query string, cause error, turnLog logger.Logger) *models.TurnResponse {
	message := cause.Error()
	logFields := map[string]interface{}{"stage": stage, "error": message}

	var stdErr *apperrors.StandardError
	if errors.As(cause, &stdErr) {
		logFields["code"] = string(stdErr.Code)
		logFields["category"] = apperrors.GetErrorCategory(stdErr.Code)
		if stdErr.Details != "" {
			message = fmt.Sprintf("%s: %s", stdErr.Message, stdErr.Details)
		} else {
			message = stdErr.Message
		}
	}

	metrics.TurnsFailed.WithLabelValues("none", stage).Inc()
	turnLog.Error("Turn failed", logFields)
	return &models.TurnResponse{
		Success:        false,
		Summary:        fmt.Sprintf("Sorry, your question could not be processed: %s", message),
		GeneratedQuery: query,
		ErrorMessage:   message,
		SessionID:      sessionID,
	}
}

func (o *Orchestrator) loadMemory(ctx context.Context, sessionID string) (*models.ConversationContext, error) {
	defer observeStage("load_memory")()
	return o.store.Load(ctx, sessionID)
}

func (o *Orchestrator) timedExtract(ctx context.Context, userQuery string, cc *models.ConversationContext) (*models.Intent, error) {
	defer observeStage("extract_intent")()
	return o.extractor.Extract(ctx, userQuery, cc)
}

func (o *Orchestrator) timedResolve(ctx context.Context, intent *models.Intent) models.ResolvedEntities {
	defer observeStage("resolve_entities")()
	return o.resolver.ResolveMentions(ctx, intent)
}

func (o *Orchestrator) timedPlan(intent *models.Intent, resolved models.ResolvedEntities) models.QueryPlan {
	defer observeStage("plan_query")()
	return o.planner.Plan(intent, resolved)
}

func (o *Orchestrator) timedRewrite(ctx context.Context, dsl string) string {
	defer observeStage("rewrite_query")()
	return o.rewriter.Rewrite(ctx, dsl)
}

func (o *Orchestrator) timedExecute(ctx context.Context, plan models.QueryPlan) *models.ExecutionResult {
	defer observeStage("execute_query")()
	return o.executor.Execute(ctx, plan)
}

func (o *Orchestrator) timedSynthesize(ctx context.Context, result *models.ExecutionResult, intent *models.Intent) string {
	defer observeStage("synthesize_answer")()
	return o.synthesizer.Summarize(ctx, result, intent)
}

func observeStage(stage string) func() {
	started := time.Now()
	return func() {
		metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
	}
}

func (o *Orchestrator) sessionLock(sessionID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.sessions[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		o.sessions[sessionID] = lock
	}
	return lock
}
