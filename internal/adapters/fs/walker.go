// Package fs provides file system adapters for resolving, hashing and writing files.
package fs

import (
	"io/fs"
	"iter"
	"path/filepath"
	"slices"
)

// skippedDirs are never descended into.
var skippedDirs = []string{".git", ".jj", "node_modules"}

// Walker provides file walking functionality.
type Walker struct {
	ignores []string
}

// NewWalker creates a new Walker. Directories whose name matches one of ignores are skipped
// in addition to .git, .jj and node_modules.
func NewWalker(ignores ...string) *Walker {
	return &Walker{ignores: ignores}
}

// WalkFiles yields the paths of all regular files below dir.
// Paths are joined with dir the way filepath.WalkDir reports them.
func (w *Walker) WalkFiles(dir string) iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				if path != dir && w.shouldSkipDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}

			if !d.Type().IsRegular() {
				return nil
			}

			if !yield(path) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

// shouldSkipDir checks if a directory should be skipped based on its name.
func (w *Walker) shouldSkipDir(name string) bool {
	if slices.Contains(skippedDirs, name) {
		return true
	}
	for _, ignore := range w.ignores {
		if matched, _ := filepath.Match(ignore, name); matched {
			return true
		}
	}
	return false
}
