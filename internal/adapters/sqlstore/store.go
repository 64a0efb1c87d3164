// Package sqlstore implements build record storage in a single sqlite database.
package sqlstore

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.BuildRecordStore = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS build_records (
	task     TEXT PRIMARY KEY,
	last_run INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS fingerprints (
	task        TEXT NOT NULL REFERENCES build_records(task) ON DELETE CASCADE,
	path        TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	PRIMARY KEY (task, path)
);
`

// Store implements ports.BuildRecordStore on sqlite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreCreateFailed.Error()), "path", path)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreCreateFailed.Error()), "path", path)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreCreateFailed.Error()), "path", path)
	}
	return &Store{db: db}, nil
}

// Get retrieves the build record for a given task name.
// Returns nil, nil if not found.
func (s *Store) Get(taskName string) (*domain.BuildRecord, error) {
	var lastRun int64
	err := s.db.QueryRow(`SELECT last_run FROM build_records WHERE task = ?`, taskName).Scan(&lastRun)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreReadFailed.Error()), "task", taskName)
	}

	rows, err := s.db.Query(`SELECT path, fingerprint FROM fingerprints WHERE task = ?`, taskName)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreReadFailed.Error()), "task", taskName)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	record := &domain.BuildRecord{
		TaskName:     taskName,
		LastRun:      time.Unix(0, lastRun).UTC(),
		Fingerprints: make(map[string]string),
	}
	for rows.Next() {
		var path, fp string
		if err := rows.Scan(&path, &fp); err != nil {
			return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreReadFailed.Error()), "task", taskName)
		}
		record.Fingerprints[path] = fp
	}
	if err := rows.Err(); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreReadFailed.Error()), "task", taskName)
	}
	return record, nil
}

// Put replaces the build record of record.TaskName in one transaction.
func (s *Store) Put(record domain.BuildRecord) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`DELETE FROM fingerprints WHERE task = ?`, record.TaskName); err != nil {
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	if _, err = tx.Exec(
		`INSERT INTO build_records (task, last_run) VALUES (?, ?)
		 ON CONFLICT(task) DO UPDATE SET last_run = excluded.last_run`,
		record.TaskName, record.LastRun.UnixNano(),
	); err != nil {
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}

	stmt, err := tx.Prepare(`INSERT INTO fingerprints (task, path, fingerprint) VALUES (?, ?, ?)`)
	if err != nil {
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	defer stmt.Close() //nolint:errcheck // closed with the transaction

	for path, fp := range record.Fingerprints {
		if _, err = stmt.Exec(record.TaskName, path, fp); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "path", path)
		}
	}

	if err = tx.Commit(); err != nil {
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
