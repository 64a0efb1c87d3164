package ports

import (
	"context"
	"io"
)

//go:generate mockgen -source=telemetry.go -destination=mocks/mock_telemetry.go -package=mocks

// Tracer is the entry point for creating spans.
type Tracer interface {
	// Start creates a new span.
	Start(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)
	// EmitPlan signals that a set of tasks is planned for execution.
	EmitPlan(ctx context.Context, taskNames []string, deps map[string][]string, targets []string)
}

// Span represents a unit of work.
type Span interface {
	io.Writer
	// End completes the span.
	End()
	// RecordError records an error for the span.
	RecordError(err error)
	// SetAttribute adds a key-value pair to the span.
	SetAttribute(key string, value any)
}

// Span attribute keys set by the scheduler.
const (
	AttrTask      = "kiln.task"
	AttrTransform = "kiln.transform"
	AttrSkipped   = "kiln.skipped"
	AttrChanged   = "kiln.changed"
	AttrOutputs   = "kiln.outputs"
)

// SpanConfig holds configuration for a starting span.
type SpanConfig struct {
	// Attributes are set on the span right after it starts.
	Attributes map[string]any
}

// SpanOption is a functional option for configuring a span.
type SpanOption func(*SpanConfig)

// WithAttribute sets an attribute when the span starts.
func WithAttribute(key string, value any) SpanOption {
	return func(c *SpanConfig) {
		if c.Attributes == nil {
			c.Attributes = make(map[string]any)
		}
		c.Attributes[key] = value
	}
}

type logWriterKey struct{}

// ContextWithLogWriter returns a context carrying w as the destination of diagnostic output.
func ContextWithLogWriter(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, logWriterKey{}, w)
}

// LogWriter returns the diagnostic writer stored in ctx, or io.Discard.
func LogWriter(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(logWriterKey{}).(io.Writer); ok && w != nil {
		return w
	}
	return io.Discard
}
