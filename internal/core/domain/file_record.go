package domain

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// FileRecord is a file flowing through a transform chain.
// Path is slash-separated and relative to the project root.
// Base is the directory Path is relative to for output placement.
type FileRecord struct {
	Path        string
	Base        string
	Fingerprint string
	Size        int64
	ModTime     time.Time
	Contents    []byte
}

// Fingerprint returns the xxhash64 of b as 16 lowercase hex digits.
func Fingerprint(b []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(b))
}

// NewFileRecord builds a record from in-memory contents.
func NewFileRecord(p, base string, contents []byte) FileRecord {
	return FileRecord{
		Path:        path.Clean(p),
		Base:        cleanBase(base),
		Fingerprint: Fingerprint(contents),
		Size:        int64(len(contents)),
		Contents:    contents,
	}
}

// Rel returns Path relative to Base.
func (r FileRecord) Rel() string {
	if r.Base == "" || r.Base == "." {
		return r.Path
	}
	if rel, ok := strings.CutPrefix(r.Path, r.Base+"/"); ok {
		return rel
	}
	return path.Base(r.Path)
}

// Ext returns the extension of the record's path, including the dot.
func (r FileRecord) Ext() string {
	return path.Ext(r.Path)
}

// WithContents returns a copy of the record holding b.
// The fingerprint and size are recomputed.
func (r FileRecord) WithContents(b []byte) FileRecord {
	r.Contents = b
	r.Fingerprint = Fingerprint(b)
	r.Size = int64(len(b))
	return r
}

// WithPath returns a copy of the record moved to p. Base is kept.
func (r FileRecord) WithPath(p string) FileRecord {
	r.Path = path.Clean(p)
	return r
}

// WithRel returns a copy of the record whose Rel() is rel.
func (r FileRecord) WithRel(rel string) FileRecord {
	if r.Base == "" || r.Base == "." {
		return r.WithPath(rel)
	}
	return r.WithPath(path.Join(r.Base, rel))
}

func cleanBase(base string) string {
	if base == "" {
		return "."
	}
	return path.Clean(base)
}
