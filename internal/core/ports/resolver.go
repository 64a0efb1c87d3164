package ports

import "go.trai.ch/kiln/internal/core/domain"

// SourceResolver expands source selectors into file records.
//
//go:generate mockgen -destination=mocks/mock_resolver.go -package=mocks -source=resolver.go
type SourceResolver interface {
	// Resolve expands selectors relative to root. Returned records carry path,
	// base, fingerprint, size and modification time but no contents.
	// The result is sorted by path and free of duplicates.
	Resolve(root string, selectors []string) ([]domain.FileRecord, error)

	// Read returns rec with its contents loaded from root.
	Read(root string, rec domain.FileRecord) (domain.FileRecord, error)
}

// OutputWriter persists transform outputs.
type OutputWriter interface {
	// Write places every output under root/destination/rec.Rel().
	// Files whose current content already has the same fingerprint are left alone.
	// It returns the records that were actually written, with project relative paths.
	Write(root, destination string, outputs []domain.FileRecord) ([]domain.FileRecord, error)
}
