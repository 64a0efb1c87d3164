package transform

import (
	"bytes"
	"context"
	"path"
	"strings"
	"time"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
)

// Built-in transform names.
const (
	CopyName    = "copy"
	RenameName  = "rename"
	ReplaceName = "replace"
	ConcatName  = "concat"
)

// Copy passes records through unchanged.
type Copy struct{}

func newCopy(domain.TransformSpec) (ports.Transform, error) {
	return Copy{}, nil
}

// Name implements ports.Transform.
func (Copy) Name() string { return CopyName }

// Apply implements ports.Transform.
func (Copy) Apply(_ context.Context, inputs []domain.FileRecord) ([]domain.FileRecord, error) {
	return append([]domain.FileRecord(nil), inputs...), nil
}

// Rename changes file names: Prefix and Suffix surround the stem, Ext replaces the extension.
type Rename struct {
	Prefix string
	Suffix string
	Ext    string
}

func newRename(spec domain.TransformSpec) (ports.Transform, error) {
	if spec.Prefix == "" && spec.Suffix == "" && spec.Ext == "" {
		return nil, invalidOptions(RenameName, "one of prefix, suffix or ext is required")
	}
	if strings.ContainsRune(spec.Prefix+spec.Suffix+spec.Ext, '/') {
		return nil, invalidOptions(RenameName, "prefix, suffix and ext must not contain '/'")
	}
	return Rename{Prefix: spec.Prefix, Suffix: spec.Suffix, Ext: normalizeExt(spec.Ext)}, nil
}

// Name implements ports.Transform.
func (Rename) Name() string { return RenameName }

// Apply implements ports.Transform.
func (r Rename) Apply(_ context.Context, inputs []domain.FileRecord) ([]domain.FileRecord, error) {
	return mapRecords(RenameName, inputs, func(rec domain.FileRecord) (domain.FileRecord, error) {
		return rec.WithRel(r.rename(rec.Rel())), nil
	})
}

func (r Rename) rename(rel string) string {
	dir, file := path.Split(rel)
	ext := path.Ext(file)
	stem := strings.TrimSuffix(file, ext)
	if r.Ext != "" {
		ext = r.Ext
	}
	return dir + r.Prefix + stem + r.Suffix + ext
}

// Replace substitutes every occurrence of Old with New in the contents.
type Replace struct {
	Old []byte
	New []byte
}

func newReplace(spec domain.TransformSpec) (ports.Transform, error) {
	if spec.Old == "" {
		return nil, invalidOptions(ReplaceName, "old is required")
	}
	return Replace{Old: []byte(spec.Old), New: []byte(spec.New)}, nil
}

// Name implements ports.Transform.
func (Replace) Name() string { return ReplaceName }

// Apply implements ports.Transform.
func (r Replace) Apply(_ context.Context, inputs []domain.FileRecord) ([]domain.FileRecord, error) {
	return mapRecords(ReplaceName, inputs, func(rec domain.FileRecord) (domain.FileRecord, error) {
		if !bytes.Contains(rec.Contents, r.Old) {
			return rec, nil
		}
		return rec.WithContents(bytes.ReplaceAll(rec.Contents, r.Old, r.New)), nil
	})
}

// Concat joins all records, in input order, into a single file named Output.
type Concat struct {
	Output    string
	Separator []byte
}

func newConcat(spec domain.TransformSpec) (ports.Transform, error) {
	out := path.Clean(spec.Output)
	if spec.Output == "" || path.IsAbs(out) || out == ".." || strings.HasPrefix(out, "../") {
		return nil, invalidOptions(ConcatName, "output must be a relative file name")
	}
	sep := spec.Separator
	if sep == "" {
		sep = "\n"
	}
	return Concat{Output: out, Separator: []byte(sep)}, nil
}

// Name implements ports.Transform.
func (Concat) Name() string { return ConcatName }

// Aggregates implements ports.Aggregator.
func (Concat) Aggregates() bool { return true }

// Apply implements ports.Transform.
func (c Concat) Apply(_ context.Context, inputs []domain.FileRecord) ([]domain.FileRecord, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	parts := make([][]byte, 0, len(inputs))
	for _, rec := range inputs {
		parts = append(parts, rec.Contents)
	}
	joined := domain.NewFileRecord(c.Output, ".", bytes.Join(parts, c.Separator))
	joined.ModTime = latestModTime(inputs)
	return []domain.FileRecord{joined}, nil
}

func latestModTime(records []domain.FileRecord) (latest time.Time) {
	for _, rec := range records {
		if rec.ModTime.After(latest) {
			latest = rec.ModTime
		}
	}
	return latest
}

func normalizeExt(ext string) string {
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}
