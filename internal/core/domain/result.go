package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the terminal state of a task within a run.
type TaskStatus string

const (
	// StatusSucceeded means the chain ran and outputs were written.
	StatusSucceeded TaskStatus = "succeeded"
	// StatusFailed means a step of the chain or the output write failed.
	StatusFailed TaskStatus = "failed"
	// StatusSkipped means the task did not execute. Reason tells why.
	StatusSkipped TaskStatus = "skipped"
)

// Skip reasons.
const (
	ReasonUpToDate        = "up to date"
	ReasonUpstreamFailure = "upstream failure"
	ReasonRunCancelled    = "run cancelled"
)

// TaskResult is the outcome of a single task.
type TaskResult struct {
	Task           string
	Status         TaskStatus
	Reason         string
	ChangedOutputs []FileRecord
	Err            error
	StartedAt      time.Time
	Duration       time.Duration
}

// Blocking reports whether dependents of this result must be skipped.
func (r TaskResult) Blocking() bool {
	switch {
	case r.Status == StatusFailed:
		return true
	case r.Status == StatusSkipped && r.Reason != ReasonUpToDate:
		return true
	default:
		return false
	}
}

// Report aggregates the results of one scheduler run.
type Report struct {
	RunID      uuid.UUID
	Mode       Mode
	Results    []TaskResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewRunID returns a time-ordered run identifier.
func NewRunID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// OK reports whether every task that did not skip succeeded.
func (r *Report) OK() bool {
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			return false
		}
	}
	return true
}

// Failed returns the results of failed tasks.
func (r *Report) Failed() []TaskResult {
	var failed []TaskResult
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			failed = append(failed, res)
		}
	}
	return failed
}

// Result returns the result recorded for the named task.
func (r *Report) Result(name string) (TaskResult, bool) {
	for _, res := range r.Results {
		if res.Task == name {
			return res, true
		}
	}
	return TaskResult{}, false
}

// ChangedOutputs returns the union of changed outputs of succeeded tasks, deduplicated by path.
func (r *Report) ChangedOutputs() []FileRecord {
	seen := make(map[string]int)
	var out []FileRecord
	for _, res := range r.Results {
		if res.Status != StatusSucceeded {
			continue
		}
		for _, rec := range res.ChangedOutputs {
			if i, ok := seen[rec.Path]; ok {
				out[i] = rec
				continue
			}
			seen[rec.Path] = len(out)
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, func(a, b FileRecord) int {
		return strings.Compare(a.Path, b.Path)
	})
	return out
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Counts returns the number of succeeded, failed and skipped tasks.
func (r *Report) Counts() (succeeded, failed, skipped int) {
	for _, res := range r.Results {
		switch res.Status {
		case StatusSucceeded:
			succeeded++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return succeeded, failed, skipped
}
