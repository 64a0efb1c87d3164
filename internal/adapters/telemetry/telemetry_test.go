package telemetry_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.trai.ch/kiln/internal/adapters/telemetry"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func setupRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return sr
}

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestOTelTracer_SpanAttributesAndError(t *testing.T) {
	sr := setupRecorder(t)
	tracer := telemetry.NewOTelTracer("test")

	_, span := tracer.Start(context.Background(), "scss", ports.WithAttribute("kiln.task", "scss"))
	span.SetAttribute("kiln.changed", 3)
	span.SetAttribute("kiln.force", true)
	span.SetAttribute("kiln.paths", []string{"a", "b"})
	span.RecordError(errors.New("sass exited with 1"))
	span.RecordError(nil)
	span.End()

	ended := sr.Ended()
	require.Len(t, ended, 1)
	got := attrs(ended[0])
	assert.Equal(t, "scss", got["kiln.task"].AsString())
	assert.Equal(t, int64(3), got["kiln.changed"].AsInt64())
	assert.True(t, got["kiln.force"].AsBool())
	assert.Equal(t, []string{"a", "b"}, got["kiln.paths"].AsStringSlice())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "sass exited with 1", ended[0].Status().Description)
}

func TestOTelTracer_WriteWithoutRendererAddsEvent(t *testing.T) {
	sr := setupRecorder(t)
	tracer := telemetry.NewOTelTracer("test")

	_, span := tracer.Start(context.Background(), "js")
	n, err := span.Write([]byte("warning: unused variable"))
	require.NoError(t, err)
	assert.Equal(t, 24, n)
	span.End()

	events := sr.Ended()[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "log", events[0].Name)
}

func TestOTelTracer_LogsFlushedBeforeEnd(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		setupRecorder(t)
		ctrl := gomock.NewController(t)
		renderer := mocks.NewMockRenderer(ctrl)
		tracer := telemetry.NewOTelTracer("test").WithRenderer(renderer)

		renderer.EXPECT().OnTaskLog(gomock.Any(), []byte("line 1\nline 2\n")).Times(1)

		_, span := tracer.Start(context.Background(), "css")
		_, _ = span.Write([]byte("line 1\n"))
		_, _ = span.Write([]byte("line 2\n"))
		span.End()
	})
}

func TestOTelTracer_EmitPlan(t *testing.T) {
	sr := setupRecorder(t)
	ctrl := gomock.NewController(t)
	renderer := mocks.NewMockRenderer(ctrl)
	tracer := telemetry.NewOTelTracer("test").WithRenderer(renderer)

	deps := map[string][]string{"css": {"html"}}
	renderer.EXPECT().OnPlanEmit([]string{"html", "css"}, deps, []string{"css"}).Times(2)

	// Without an active span only the renderer sees the plan.
	tracer.EmitPlan(context.Background(), []string{"html", "css"}, deps, []string{"css"})

	ctx, root := otel.Tracer("test").Start(context.Background(), "run")
	tracer.EmitPlan(ctx, []string{"html", "css"}, deps, []string{"css"})
	root.End()

	ended := sr.Ended()
	require.Len(t, ended, 1)
	require.Len(t, ended[0].Events(), 1)
	assert.Equal(t, "plan_emitted", ended[0].Events()[0].Name)
}

func TestBridge_ForwardsLifecycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	renderer := mocks.NewMockRenderer(ctrl)
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(telemetry.NewBridge(renderer)))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	tracer := tp.Tracer("test")

	var parentID string
	gomock.InOrder(
		renderer.EXPECT().OnTaskStart(gomock.Any(), "", "run", gomock.Any()).
			Do(func(id, _, _ string, _ time.Time) { parentID = id }),
		renderer.EXPECT().OnTaskStart(gomock.Any(), gomock.Any(), "css", gomock.Any()).
			Do(func(_, parent, _ string, _ time.Time) { assert.Equal(t, parentID, parent) }),
		renderer.EXPECT().OnTaskComplete(gomock.Any(), gomock.Any(), gomock.Any()).
			Do(func(_ string, _ time.Time, o ports.SpanOutcome) { assert.EqualError(t, o.Err, "exit status 1") }),
		renderer.EXPECT().OnTaskComplete(gomock.Any(), gomock.Any(), ports.SpanOutcome{}),
	)

	ctx, run := tracer.Start(context.Background(), "run")
	_, task := tracer.Start(ctx, "css")
	task.SetStatus(codes.Error, "exit status 1")
	task.End()
	run.End()
}

func TestBridge_KilnAttributes(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ctrl := gomock.NewController(t)
	renderer := mocks.NewMockRenderer(ctrl)
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(telemetry.NewBridge(renderer)))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	tracer := telemetry.NewOTelTracer("test")

	ids := make(map[string]string)
	record := func(id, _, name string, _ time.Time) { ids[name] = id }
	renderer.EXPECT().OnTaskStart(gomock.Any(), "", "css", gomock.Any()).Do(record)
	renderer.EXPECT().OnTaskStart(gomock.Any(), gomock.Any(), "css:minify", gomock.Any()).Do(record)
	renderer.EXPECT().OnTaskStart(gomock.Any(), "", "html", gomock.Any()).Do(record)

	outcomes := make(map[string]ports.SpanOutcome)
	renderer.EXPECT().OnTaskComplete(gomock.Any(), gomock.Any(), gomock.Any()).
		Do(func(id string, _ time.Time, o ports.SpanOutcome) { outcomes[id] = o }).Times(3)

	ctx, css := tracer.Start(context.Background(), "css", ports.WithAttribute(ports.AttrTask, "css"))
	_, step := tracer.Start(ctx, "minify",
		ports.WithAttribute(ports.AttrTask, "css"),
		ports.WithAttribute(ports.AttrTransform, "minify"),
	)
	step.SetAttribute(ports.AttrOutputs, 2)
	step.End()
	css.SetAttribute(ports.AttrChanged, 2)
	css.End()

	_, html := tracer.Start(context.Background(), "html", ports.WithAttribute(ports.AttrTask, "html"))
	html.SetAttribute(ports.AttrSkipped, "up to date")
	html.End()

	assert.Equal(t, ports.SpanOutcome{}, outcomes[ids["css:minify"]])
	assert.Equal(t, ports.SpanOutcome{Changed: 2}, outcomes[ids["css"]])
	assert.Equal(t, ports.SpanOutcome{Skipped: "up to date"}, outcomes[ids["html"]])
}

func TestBridge_NilRenderer(t *testing.T) {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(telemetry.NewBridge(nil)))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	_, span := tp.Tracer("test").Start(context.Background(), "noop")
	span.End()
}

type flushes struct {
	mu   sync.Mutex
	data []string
}

func (f *flushes) add(b []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = append(f.data, string(b))
}

func (f *flushes) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.data...)
}

func TestLogBatcher_SizeLimitDeliversCompleteLines(t *testing.T) {
	var f flushes
	b := telemetry.NewLogBatcher(8, time.Hour, f.add)
	defer b.Close() //nolint:errcheck // test cleanup

	_, _ = b.Write([]byte("abc\nde"))
	assert.Empty(t, f.all())
	_, _ = b.Write([]byte("fgh"))
	assert.Equal(t, []string{"abc\n"}, f.all())

	// A single line over the limit is delivered whole.
	_, _ = b.Write([]byte("ijklmnop"))
	assert.Equal(t, []string{"abc\n", "defghijklmnop"}, f.all())
}

func TestLogBatcher_TimeLimit(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var f flushes
		b := telemetry.NewLogBatcher(0, 0, f.add)

		_, _ = b.Write([]byte("compiled"))
		time.Sleep(telemetry.DefaultTimeLimit + time.Millisecond)
		synctest.Wait()
		assert.Equal(t, []string{"compiled"}, f.all())

		// Idle batchers hold no timer.
		time.Sleep(10 * telemetry.DefaultTimeLimit)
		synctest.Wait()
		assert.Len(t, f.all(), 1)

		require.NoError(t, b.Close())
	})
}

func TestLogBatcher_CloseFlushesAndRejects(t *testing.T) {
	var f flushes
	b := telemetry.NewLogBatcher(0, time.Hour, f.add)

	_, _ = b.Write([]byte("tail"))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.Equal(t, []string{"tail"}, f.all())

	_, err := b.Write([]byte("late"))
	require.Error(t, err)
	b.Flush()
}

func TestLogBatcher_OutputLimit(t *testing.T) {
	var f flushes
	b := telemetry.NewLogBatcher(2, time.Hour, f.add).WithOutputLimit(4)

	_, _ = b.Write([]byte("ab\n"))
	_, _ = b.Write([]byte("cd\n"))
	n, err := b.Write([]byte("ef\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, b.Close())

	assert.Equal(t, []string{"ab\n", "c" + telemetry.TruncatedMarker}, f.all())
}

func TestSetup(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ctrl := gomock.NewController(t)
	renderer := mocks.NewMockRenderer(ctrl)
	renderer.EXPECT().OnTaskStart(gomock.Any(), "", "css", gomock.Any())
	renderer.EXPECT().OnTaskComplete(gomock.Any(), gomock.Any(), ports.SpanOutcome{})

	tracer, shutdown := telemetry.Setup(renderer)
	_, span := tracer.Start(context.Background(), "css")
	span.End()
	require.NoError(t, shutdown(context.Background()))
}
