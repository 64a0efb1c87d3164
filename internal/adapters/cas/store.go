// Package cas implements file-per-task build record storage.
package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.BuildRecordStore = (*Store)(nil)

// Store implements ports.BuildRecordStore using a file-per-task strategy.
type Store struct {
	dir string
}

// NewStoreWithPath creates a store keeping its records in dir.
// The directory is created on first write.
func NewStoreWithPath(dir string) (*Store, error) {
	if dir == "" {
		return nil, zerr.With(domain.ErrStoreCreateFailed, "reason", "empty path")
	}
	return &Store{dir: dir}, nil
}

// Get retrieves the build record for a given task name.
func (s *Store) Get(taskName string) (*domain.BuildRecord, error) {
	filename := s.getFilename(taskName)
	//nolint:gosec // Path is constructed from trusted directory and hashed filename
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.Wrap(err, domain.ErrStoreReadFailed.Error())
	}

	var record domain.BuildRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, zerr.Wrap(err, domain.ErrStoreUnmarshalFailed.Error())
	}

	return &record, nil
}

// Put stores the build record, replacing any previous one.
func (s *Store) Put(record domain.BuildRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return zerr.Wrap(err, domain.ErrStoreMarshalFailed.Error())
	}

	if err := os.MkdirAll(s.dir, domain.DirPerm); err != nil {
		return zerr.Wrap(err, domain.ErrStoreCreateFailed.Error())
	}

	filename := s.getFilename(record.TaskName)
	tmp := filename + ".tmp"
	//nolint:gosec // Path is constructed from trusted directory and hashed filename
	if err := os.WriteFile(tmp, data, domain.FilePerm); err != nil {
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	if err := os.Rename(tmp, filename); err != nil {
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}

	return nil
}

// Close is a no-op; every operation opens and closes its own file.
func (s *Store) Close() error {
	return nil
}

func (s *Store) getFilename(taskName string) string {
	hash := sha256.Sum256([]byte(taskName))
	return filepath.Join(s.dir, hex.EncodeToString(hash[:])+".json")
}
