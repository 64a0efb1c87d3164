// Package telemetry bridges OpenTelemetry spans to the renderer.
package telemetry

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

const (
	// DefaultSizeLimit is the buffered size that triggers delivery of complete lines.
	DefaultSizeLimit = 4096
	// DefaultTimeLimit is how long output may wait before it is delivered.
	DefaultTimeLimit = 50 * time.Millisecond
	// DefaultOutputLimit caps the output one span delivers.
	DefaultOutputLimit = 1 << 20
)

// TruncatedMarker ends the output of a span that exceeded its output limit.
const TruncatedMarker = "\n[output truncated]\n"

var errLogClosed = errors.New("span log is closed")

// LogBatcher collects the diagnostic output of one span, typically the stderr of an
// exec step, and hands it to deliver in batches. It is safe for concurrent use.
//
// Once the buffer reaches the size limit every complete line is delivered; a partial
// line waits for its newline, the time limit, or Close. Output past the output limit is
// replaced by TruncatedMarker and later writes are discarded.
type LogBatcher struct {
	sizeLimit   int
	timeLimit   time.Duration
	outputLimit int
	deliver     func([]byte)

	mu        sync.Mutex
	buf       bytes.Buffer
	timer     *time.Timer
	delivered int
	truncated bool
	closed    bool
}

// NewLogBatcher returns a LogBatcher. Non-positive limits select the defaults.
func NewLogBatcher(sizeLimit int, timeLimit time.Duration, deliver func([]byte)) *LogBatcher {
	if sizeLimit <= 0 {
		sizeLimit = DefaultSizeLimit
	}
	if timeLimit <= 0 {
		timeLimit = DefaultTimeLimit
	}
	return &LogBatcher{
		sizeLimit:   sizeLimit,
		timeLimit:   timeLimit,
		outputLimit: DefaultOutputLimit,
		deliver:     deliver,
	}
}

// WithOutputLimit sets the output cap. It must be called before the first Write.
func (b *LogBatcher) WithOutputLimit(n int) *LogBatcher {
	if n > 0 {
		b.outputLimit = n
	}
	return b
}

// Write buffers p.
func (b *LogBatcher) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, errLogClosed
	}
	if b.truncated {
		return len(p), nil
	}

	b.buf.Write(p)
	if b.buf.Len() >= b.sizeLimit {
		n := bytes.LastIndexByte(b.buf.Bytes(), '\n') + 1
		if n == 0 {
			// One line longer than the limit.
			n = b.buf.Len()
		}
		b.deliverLocked(n)
	}
	if b.buf.Len() > 0 && b.timer == nil {
		b.timer = time.AfterFunc(b.timeLimit, b.Flush)
	}
	return len(p), nil
}

// Flush delivers everything buffered, including a partial last line.
func (b *LogBatcher) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.stopTimerLocked()
	b.deliverLocked(b.buf.Len())
}

// Close delivers the remaining output. Later writes fail.
func (b *LogBatcher) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.stopTimerLocked()
	b.deliverLocked(b.buf.Len())
	b.closed = true
	return nil
}

func (b *LogBatcher) stopTimerLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// deliverLocked hands the first n buffered bytes to deliver. It runs under mu so that
// batches arrive in order.
func (b *LogBatcher) deliverLocked(n int) {
	if n == 0 || b.truncated {
		return
	}
	chunk := bytes.Clone(b.buf.Next(n))
	if room := b.outputLimit - b.delivered; len(chunk) > room {
		chunk = append(chunk[:max(room, 0)], TruncatedMarker...)
		b.truncated = true
		b.buf.Reset()
	}
	b.delivered += len(chunk)
	if b.deliver != nil {
		b.deliver(chunk)
	}
}
