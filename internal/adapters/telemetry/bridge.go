package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.trai.ch/kiln/internal/core/ports"
)

var _ sdktrace.SpanProcessor = (*Bridge)(nil)

// Bridge implements sdktrace.SpanProcessor and forwards task and transform spans to a
// Renderer. The kiln.* span attributes decide the displayed name and the outcome.
type Bridge struct {
	renderer ports.Renderer
}

// NewBridge returns a new Bridge.
func NewBridge(renderer ports.Renderer) *Bridge {
	return &Bridge{renderer: renderer}
}

// OnStart reports the span under its display name: the task name for task spans and
// "task:transform" for chain steps.
func (b *Bridge) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	if b.renderer == nil {
		return
	}
	sc := s.SpanContext()
	if !sc.IsValid() {
		return
	}

	var parentID string
	if p := trace.SpanContextFromContext(parent); p.IsValid() {
		parentID = p.SpanID().String()
	}
	b.renderer.OnTaskStart(sc.SpanID().String(), parentID, displayName(s.Name(), s.Attributes()), s.StartTime())
}

// OnEnd reports the outcome recorded on the span.
func (b *Bridge) OnEnd(s sdktrace.ReadOnlySpan) {
	if b.renderer == nil {
		return
	}
	sc := s.SpanContext()
	if !sc.IsValid() {
		return
	}
	b.renderer.OnTaskComplete(sc.SpanID().String(), s.EndTime(), outcomeOf(s))
}

// ForceFlush does nothing.
func (b *Bridge) ForceFlush(_ context.Context) error {
	return nil
}

// Shutdown does nothing.
func (b *Bridge) Shutdown(_ context.Context) error {
	return nil
}

func displayName(name string, attrs []attribute.KeyValue) string {
	var task, transform string
	for _, kv := range attrs {
		switch kv.Key {
		case ports.AttrTask:
			task = kv.Value.AsString()
		case ports.AttrTransform:
			transform = kv.Value.AsString()
		}
	}
	switch {
	case task != "" && transform != "":
		return task + ":" + transform
	case task != "":
		return task
	default:
		return name
	}
}

func outcomeOf(s sdktrace.ReadOnlySpan) ports.SpanOutcome {
	var out ports.SpanOutcome
	if st := s.Status(); st.Code == codes.Error {
		desc := st.Description
		if desc == "" {
			desc = "task failed"
		}
		out.Err = errors.New(desc)
	}
	for _, kv := range s.Attributes() {
		switch kv.Key {
		case ports.AttrSkipped:
			out.Skipped = kv.Value.AsString()
		case ports.AttrChanged:
			out.Changed = int(kv.Value.AsInt64())
		}
	}
	return out
}
