// Package staleness decides which source files of a task are dirty and records successful runs.
package staleness

import (
	"sync"
	"time"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// Tracker implements ports.StalenessTracker over a BuildRecordStore.
type Tracker struct {
	store ports.BuildRecordStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewTracker creates a Tracker backed by store.
func NewTracker(store ports.BuildRecordStore) *Tracker {
	return &Tracker{
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

// lock returns the mutex serializing store access for one task name.
func (t *Tracker) lock(name string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[name]
	if !ok {
		l = &sync.Mutex{}
		t.locks[name] = l
	}
	return l
}

// FilterDirty returns the candidates that must be processed under the task's policy.
// Candidate order is preserved.
func (t *Tracker) FilterDirty(task *domain.Task, candidates []domain.FileRecord) ([]domain.FileRecord, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if task.Staleness == domain.AlwaysRun {
		return candidates, nil
	}

	l := t.lock(task.Name)
	l.Lock()
	record, err := t.store.Get(task.Name)
	l.Unlock()
	if err != nil {
		return nil, zerr.With(err, "task", task.Name)
	}
	if record == nil {
		return candidates, nil
	}

	dirty := make([]domain.FileRecord, 0, len(candidates))
	for _, c := range candidates {
		if isDirty(task.Staleness, record, c) {
			dirty = append(dirty, c)
		}
	}
	return dirty, nil
}

func isDirty(policy domain.StalenessPolicy, record *domain.BuildRecord, c domain.FileRecord) bool {
	switch policy {
	case domain.NewerThanLastRun:
		return c.ModTime.After(record.LastRun)
	case domain.AlwaysRun:
		return true
	default:
		prev, ok := record.Fingerprints[c.Path]
		return !ok || prev != c.Fingerprint
	}
}

// Commit replaces the task's build record with the fingerprints of every candidate.
// Files no longer among the candidates drop out of the record.
func (t *Tracker) Commit(task *domain.Task, candidates []domain.FileRecord, startedAt time.Time) error {
	record := domain.BuildRecord{
		TaskName:     task.Name,
		LastRun:      startedAt,
		Fingerprints: make(map[string]string, len(candidates)),
	}
	for _, c := range candidates {
		record.Fingerprints[c.Path] = c.Fingerprint
	}

	l := t.lock(task.Name)
	l.Lock()
	defer l.Unlock()
	if err := t.store.Put(record); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrBuildRecordUpdateFailed.Error()), "task", task.Name)
	}
	return nil
}
