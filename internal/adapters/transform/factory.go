// Package transform provides the built-in chain steps and the factory that builds them.
package transform

import (
	"slices"
	"sync"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.TransformFactory = (*Factory)(nil)

// Builder creates a transform from its declaration.
type Builder func(spec domain.TransformSpec) (ports.Transform, error)

// Factory implements ports.TransformFactory over a registry of builders.
type Factory struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewFactory returns a Factory with every built-in transform registered.
func NewFactory() *Factory {
	f := &Factory{builders: make(map[string]Builder)}
	f.Register(CopyName, newCopy)
	f.Register(RenameName, newRename)
	f.Register(ReplaceName, newReplace)
	f.Register(ConcatName, newConcat)
	f.Register(MinifyName, newMinify)
	f.Register(ExecName, newExec)
	f.Register(SpriteName, newSprite)
	return f
}

// Register adds or replaces the builder for name.
func (f *Factory) Register(name string, b Builder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[name] = b
}

// Names returns the registered transform names, sorted.
func (f *Factory) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.builders))
	for name := range f.builders {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New builds the transform declared by spec.
func (f *Factory) New(spec domain.TransformSpec) (ports.Transform, error) {
	f.mu.RLock()
	b, ok := f.builders[spec.Use]
	f.mu.RUnlock()
	if !ok {
		return nil, zerr.With(domain.ErrUnknownTransform, "transform", spec.Use)
	}
	return b(spec)
}

func invalidOptions(name, reason string) error {
	return zerr.With(zerr.With(domain.ErrInvalidTransformOptions, "transform", name), "reason", reason)
}

// mapRecords applies fn to every record, stopping at the first error.
func mapRecords(
	name string,
	inputs []domain.FileRecord,
	fn func(domain.FileRecord) (domain.FileRecord, error),
) ([]domain.FileRecord, error) {
	out := make([]domain.FileRecord, 0, len(inputs))
	for _, rec := range inputs {
		mapped, err := fn(rec)
		if err != nil {
			return nil, domain.NewTransformError(name, zerr.With(err, "path", rec.Path))
		}
		out = append(out, mapped)
	}
	return out, nil
}
