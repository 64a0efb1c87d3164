package ports

import "go.trai.ch/kiln/internal/core/domain"

// BuildRecordStore defines the interface for storing and retrieving build records.
//
//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type BuildRecordStore interface {
	// Get retrieves the build record for a given task name.
	// Returns nil, nil if not found.
	Get(taskName string) (*domain.BuildRecord, error)

	// Put replaces the build record of record.TaskName.
	Put(record domain.BuildRecord) error

	// Close releases resources held by the store.
	Close() error
}
