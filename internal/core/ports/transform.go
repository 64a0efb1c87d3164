// Package ports defines the core interfaces for the application.
package ports

import (
	"context"

	"go.trai.ch/kiln/internal/core/domain"
)

// Transform is one step of a task's chain.
//
//go:generate mockgen -source=transform.go -destination=mocks/mock_transform.go -package=mocks
type Transform interface {
	// Name returns the registered name of the transform.
	Name() string

	// Apply maps input records to output records.
	// Inputs must not be mutated. A failure is reported as *domain.TransformError.
	Apply(ctx context.Context, inputs []domain.FileRecord) ([]domain.FileRecord, error)
}

// Aggregator is implemented by transforms whose output depends on every source of
// the task, not only the dirty ones. A chain containing one always receives the full
// candidate set.
type Aggregator interface {
	Aggregates() bool
}

// Aggregates reports whether any step of chain is an Aggregator that aggregates.
func Aggregates(chain []Transform) bool {
	for _, t := range chain {
		if a, ok := t.(Aggregator); ok && a.Aggregates() {
			return true
		}
	}
	return false
}

// TransformFactory builds transforms from chain step declarations.
type TransformFactory interface {
	// New returns the transform for spec.
	// It fails with ErrUnknownTransform or ErrInvalidTransformOptions.
	New(spec domain.TransformSpec) (Transform, error)
}

type workDirKey struct{}

// ContextWithWorkDir returns a context carrying the project root transforms run in.
func ContextWithWorkDir(ctx context.Context, dir string) context.Context {
	return context.WithValue(ctx, workDirKey{}, dir)
}

// WorkDir returns the project root stored in ctx, or "" when unset.
func WorkDir(ctx context.Context) string {
	dir, _ := ctx.Value(workDirKey{}).(string)
	return dir
}
