// internal/agents/executor/executor.go
package executor

import (
	"context"
	"fmt"

	"semantic-search-api/internal/common/logger"
	"semantic-search-api/internal/models"
)

// BackendExecutor runs a serialized query against one backend. Both
// implementations report failures inside the result envelope; an
// executor never panics or errors past its boundary.
type BackendExecutor interface {
	Execute(ctx context.Context, query string) *models.ExecutionResult
}

// Dispatcher routes a plan to the executor for its declared backend.
type Dispatcher struct {
	executors map[models.Backend]BackendExecutor
	log       logger.Logger
}

func NewDispatcher(log logger.Logger) *Dispatcher {
	return &Dispatcher{
		executors: make(map[models.Backend]BackendExecutor),
		log:       log,
	}
}

// Register wires a backend executor; later registrations replace
// earlier ones for the same backend.
func (d *Dispatcher) Register(backend models.Backend, exec BackendExecutor) {
	d.executors[backend] = exec
}

func (d *Dispatcher) Execute(ctx context.Context, plan models.QueryPlan) *models.ExecutionResult {
	exec, ok := d.executors[plan.Backend]
	if !ok {
		return models.FailedResult(fmt.Errorf("no executor registered for backend %q", plan.Backend))
	}

	d.log.Debug("Dispatching query", map[string]interface{}{
		"backend":      string(plan.Backend),
		"query_length": len(plan.Query),
	})
	return exec.Execute(ctx, plan.Query)
}
