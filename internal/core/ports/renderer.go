package ports

import (
	"context"
	"time"

	"go.trai.ch/kiln/internal/core/domain"
)

// Renderer is the abstraction for output rendering.
// It decouples telemetry collection from presentation logic.
//
//go:generate mockgen -source=renderer.go -destination=mocks/mock_renderer.go -package=mocks
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// Stop flushes any buffered output.
	Stop() error

	// OnPlanEmit is called when the scheduler has planned a run.
	// tasks: all task names of the run in execution order
	// deps: dependency map (task -> list of dependencies)
	// targets: the user-requested target tasks
	OnPlanEmit(tasks []string, deps map[string][]string, targets []string)

	// OnTaskStart is called when a span begins.
	OnTaskStart(spanID, parentID, name string, startTime time.Time)

	// OnTaskLog is called when a span emits diagnostic output.
	OnTaskLog(spanID string, data []byte)

	// OnTaskComplete is called when a span finishes.
	OnTaskComplete(spanID string, endTime time.Time, outcome SpanOutcome)

	// OnRunComplete is called with the report of every finished run.
	OnRunComplete(report *domain.Report)
}

// SpanOutcome is how a span finished.
type SpanOutcome struct {
	// Err is set when the span recorded a failure.
	Err error
	// Skipped is the reason a task span did no work, empty otherwise.
	Skipped string
	// Changed counts the outputs a task span wrote.
	Changed int
}
