// Package linear provides a synchronous, line-buffered renderer.
package linear

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/muesli/termenv"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/ui/output"
	"go.trai.ch/kiln/internal/ui/style"
)

var _ ports.Renderer = (*Renderer)(nil)

// Renderer implements ports.Renderer with chronological, name-prefixed lines.
// Task output goes to stdout, lifecycle and summaries to stderr.
type Renderer struct {
	stdout io.Writer
	stderr io.Writer
	output *termenv.Output

	mu      sync.Mutex
	spans   map[string]*spanState
	buffers map[string]*bytes.Buffer
}

type spanState struct {
	name      string
	startTime time.Time
	child     bool
}

// NewRenderer creates a Renderer. A nil profile selects the CI profile.
func NewRenderer(stdout, stderr io.Writer, profile func() termenv.Profile) *Renderer {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	if profile == nil {
		profile = output.ColorProfileANSI
	}

	return &Renderer{
		stdout:  stdout,
		stderr:  stderr,
		output:  output.NewWithProfile(stderr, profile),
		spans:   make(map[string]*spanState),
		buffers: make(map[string]*bytes.Buffer),
	}
}

// Start is a no-op; the renderer is synchronous.
func (r *Renderer) Start(_ context.Context) error {
	return nil
}

// Stop flushes all remaining buffers.
func (r *Renderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for spanID := range r.buffers {
		r.flushBufferLocked(spanID)
	}
	return nil
}

// OnPlanEmit prints the planned tasks.
func (r *Renderer) OnPlanEmit(tasks []string, _ map[string][]string, targets []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target := domain.AllTasks
	if len(targets) > 0 {
		target = strings.Join(targets, ", ")
	}
	_, _ = fmt.Fprintf(r.stderr, "Planning to build %d task(s) for target(s): %s\n", len(tasks), target)
}

// OnTaskStart records the span. Only top-level spans print a start line.
func (r *Renderer) OnTaskStart(spanID, parentID, name string, startTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, hasParent := r.spans[parentID]
	r.spans[spanID] = &spanState{name: name, startTime: startTime, child: hasParent}
	r.buffers[spanID] = new(bytes.Buffer)

	if hasParent {
		return
	}
	prefix := r.output.String(fmt.Sprintf("[%s]", name)).Faint().String()
	_, _ = fmt.Fprintf(r.stderr, "%s Starting...\n", prefix)
}

// OnTaskLog buffers data and prints complete lines with the span name prefix.
func (r *Renderer) OnTaskLog(spanID string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	span, ok := r.spans[spanID]
	if !ok {
		return
	}

	buf := r.buffers[spanID]
	buf.Write(data)

	for {
		line, err := buf.ReadBytes('\n')
		if err != nil {
			// Keep the partial line for the next write.
			if len(line) > 0 {
				rest := new(bytes.Buffer)
				rest.Write(line)
				r.buffers[spanID] = rest
			}
			break
		}
		r.printLineLocked(span.name, line)
	}
}

// OnTaskComplete flushes the span output and prints its outcome.
// Nested spans only report failures.
func (r *Renderer) OnTaskComplete(spanID string, endTime time.Time, outcome ports.SpanOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	span, ok := r.spans[spanID]
	if !ok {
		return
	}
	r.flushBufferLocked(spanID)

	duration := formatDuration(endTime.Sub(span.startTime))
	prefix := fmt.Sprintf("[%s]", span.name)

	switch {
	case outcome.Err != nil:
		symbol := r.output.String(style.Cross).Foreground(termenv.ANSIRed).String()
		_, _ = fmt.Fprintf(r.stderr, "%s %s Failed after %s: %v\n", prefix, symbol, duration, outcome.Err)
	case span.child:
	case outcome.Skipped != "":
		symbol := r.output.String(style.Skip).Faint().String()
		_, _ = fmt.Fprintf(r.stderr, "%s %s Skipped (%s)\n", prefix, symbol, outcome.Skipped)
	default:
		symbol := r.output.String(style.Check).Foreground(termenv.ANSIGreen).String()
		_, _ = fmt.Fprintf(r.stderr, "%s %s Completed in %s (%d changed)\n", prefix, symbol, duration, outcome.Changed)
	}

	delete(r.spans, spanID)
	delete(r.buffers, spanID)
}

// OnRunComplete prints a summary of the run.
func (r *Renderer) OnRunComplete(report *domain.Report) {
	if report == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	succeeded, failed, skipped := report.Counts()
	_, _ = fmt.Fprintf(r.stderr, "\n%s %d succeeded, %d failed, %d skipped in %s (%s)\n",
		r.output.String("kiln:").Bold().String(),
		succeeded, failed, skipped, formatDuration(report.Duration()), report.Mode)

	for _, res := range report.Results {
		switch res.Status {
		case domain.StatusSucceeded:
			symbol := r.output.String(style.Check).Foreground(termenv.ANSIGreen).String()
			_, _ = fmt.Fprintf(r.stderr, "  %s %s (%d changed)\n", symbol, res.Task, len(res.ChangedOutputs))
		case domain.StatusFailed:
			symbol := r.output.String(style.Cross).Foreground(termenv.ANSIRed).String()
			_, _ = fmt.Fprintf(r.stderr, "  %s %s: %v\n", symbol, res.Task, res.Err)
		case domain.StatusSkipped:
			symbol := r.output.String(style.Skip).Faint().String()
			_, _ = fmt.Fprintf(r.stderr, "  %s %s (%s)\n", symbol, res.Task, res.Reason)
		}
	}

	if changed := report.ChangedOutputs(); len(changed) > 0 {
		_, _ = fmt.Fprintf(r.stderr, "  %s %d output file(s) changed\n", style.Arrow, len(changed))
	}
}

// flushBufferLocked must be called with r.mu held.
func (r *Renderer) flushBufferLocked(spanID string) {
	span, ok := r.spans[spanID]
	if !ok {
		return
	}
	buf := r.buffers[spanID]
	if buf.Len() > 0 {
		r.printLineLocked(span.name, buf.Bytes())
		buf.Reset()
	}
}

// printLineLocked must be called with r.mu held.
func (r *Renderer) printLineLocked(name string, line []byte) {
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(line) == 0 {
		return
	}
	_, _ = fmt.Fprintf(r.stdout, "[%s] %s\n", name, line)
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
