// Package rebuild drives watch-mode re-runs.
package rebuild

import (
	"context"
	"maps"
	"slices"
	"sync"

	"go.trai.ch/kiln/internal/core/domain"
)

// State is the coordinator's position in its run cycle.
type State int

const (
	// StateIdle means no run is in progress.
	StateIdle State = iota
	// StateRunning means a run is in progress and no change arrived since it started.
	StateRunning
	// StateQueued means a run is in progress and changes arrived since it started.
	StateQueued
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateQueued:
		return "running-queued"
	default:
		return "unknown"
	}
}

// RunFunc performs one run over the changed paths.
type RunFunc func(ctx context.Context, paths []string) (*domain.Report, error)

// ReportFunc receives the outcome of every completed run.
type ReportFunc func(report *domain.Report, err error)

// Coordinator ensures at most one run is in flight. Changes arriving during a run are
// accumulated and trigger exactly one follow-up run.
type Coordinator struct {
	ctx      context.Context
	run      RunFunc
	onReport ReportFunc

	mu      sync.Mutex
	state   State
	pending map[string]struct{}
	wg      sync.WaitGroup
}

// NewCoordinator creates a Coordinator. Runs are started with ctx.
func NewCoordinator(ctx context.Context, run RunFunc, onReport ReportFunc) *Coordinator {
	if onReport == nil {
		onReport = func(*domain.Report, error) {}
	}
	return &Coordinator{
		ctx:      ctx,
		run:      run,
		onReport: onReport,
		pending:  make(map[string]struct{}),
	}
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Trigger records changed paths. From Idle it starts a run; while running it queues them.
// Triggers after the coordinator's context is done are ignored.
func (c *Coordinator) Trigger(paths ...string) {
	if len(paths) == 0 || c.ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range paths {
		c.pending[p] = struct{}{}
	}

	switch c.state {
	case StateIdle:
		c.state = StateRunning
		batch := c.drainLocked()
		c.wg.Add(1)
		go c.loop(batch)
	case StateRunning:
		c.state = StateQueued
	case StateQueued:
	}
}

// Start begins a run over an empty change set when idle. Changes triggered while it
// runs are queued like any other.
func (c *Coordinator) Start() {
	if c.ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return
	}
	c.state = StateRunning
	c.wg.Add(1)
	go c.loop(nil)
}

// Wait blocks until the coordinator is idle.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) loop(batch []string) {
	defer c.wg.Done()
	for {
		report, err := c.run(c.ctx, batch)
		c.onReport(report, err)

		c.mu.Lock()
		if c.state != StateQueued || c.ctx.Err() != nil {
			c.state = StateIdle
			clear(c.pending)
			c.mu.Unlock()
			return
		}
		c.state = StateRunning
		batch = c.drainLocked()
		c.mu.Unlock()
	}
}

// drainLocked must be called with mu held.
func (c *Coordinator) drainLocked() []string {
	batch := slices.Sorted(maps.Keys(c.pending))
	clear(c.pending)
	return batch
}
