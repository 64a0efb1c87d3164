package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/kiln/internal/core/ports"
)

// InstrumentationName names the tracer used for task spans.
const InstrumentationName = "kiln"

// Setup installs a global tracer provider whose spans are bridged to renderer and returns
// a tracer writing span output to the same renderer. Call shutdown when the command ends.
func Setup(renderer ports.Renderer) (tracer *OTelTracer, shutdown func(context.Context) error) {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(NewBridge(renderer)))
	otel.SetTracerProvider(tp)
	return NewOTelTracer(InstrumentationName).WithRenderer(renderer), tp.Shutdown
}
