package ports

import (
	"time"

	"go.trai.ch/kiln/internal/core/domain"
)

// StalenessTracker decides which source files of a task need processing.
//
//go:generate mockgen -source=staleness.go -destination=mocks/mock_staleness.go -package=mocks
type StalenessTracker interface {
	// FilterDirty returns the subset of candidates that must be processed.
	// It has no side effects.
	FilterDirty(task *domain.Task, candidates []domain.FileRecord) ([]domain.FileRecord, error)

	// Commit records a successful run of task over candidates started at startedAt.
	Commit(task *domain.Task, candidates []domain.FileRecord, startedAt time.Time) error
}
