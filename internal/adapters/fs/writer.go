package fs

import (
	"bytes"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.OutputWriter = (*Writer)(nil)

// Writer implements ports.OutputWriter on the local file system.
type Writer struct {
	hasher ports.Hasher
}

// NewWriter creates a new Writer.
func NewWriter(hasher ports.Hasher) *Writer {
	return &Writer{hasher: hasher}
}

// Write places each output at destination/Rel() below root and returns the files whose
// content actually changed.
func (w *Writer) Write(root, destination string, outputs []domain.FileRecord) ([]domain.FileRecord, error) {
	dest := path.Clean(filepath.ToSlash(destination))
	var changed []domain.FileRecord

	for _, out := range outputs {
		target := path.Join(dest, out.Rel())
		if target == ".." || strings.HasPrefix(target, "../") || path.IsAbs(target) {
			return changed, zerr.With(domain.ErrOutputPathOutsideRoot, "path", target)
		}

		abs := filepath.Join(root, filepath.FromSlash(target))
		fp := domain.Fingerprint(out.Contents)
		if current, err := w.hasher.HashFile(abs); err == nil && current == fp {
			continue
		}

		if err := os.MkdirAll(filepath.Dir(abs), domain.DirPerm); err != nil {
			return changed, zerr.With(zerr.Wrap(err, domain.ErrOutputWriteFailed.Error()), "path", target)
		}
		if err := writeFileAtomic(abs, out.Contents); err != nil {
			return changed, zerr.With(zerr.Wrap(err, domain.ErrOutputWriteFailed.Error()), "path", target)
		}

		changed = append(changed, domain.FileRecord{
			Path:        target,
			Base:        dest,
			Fingerprint: fp,
			Size:        int64(len(out.Contents)),
			ModTime:     time.Now(),
			Contents:    out.Contents,
		})
	}
	return changed, nil
}

// writeFileAtomic writes data next to path and renames it into place so that a
// live reload client never observes a partially written file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // Removed by rename on success

	if _, err := bytes.NewReader(data).WriteTo(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(domain.FilePerm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
