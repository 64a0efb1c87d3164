package fs

import (
	"errors"
	iofs "io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.SourceResolver = (*Resolver)(nil)

// Resolver implements ports.SourceResolver with doublestar globs.
//
// Each selector is split into a static base directory and a pattern. The base becomes the
// record's Base so outputs keep the directory structure below it. Selectors prefixed with
// "!" exclude matching files.
type Resolver struct {
	walker *Walker
	hasher ports.Hasher
}

// NewResolver creates a new Resolver.
func NewResolver(walker *Walker, hasher ports.Hasher) *Resolver {
	return &Resolver{walker: walker, hasher: hasher}
}

// Resolve expands selectors relative to root.
func (r *Resolver) Resolve(root string, selectors []string) ([]domain.FileRecord, error) {
	var include, exclude []string
	for _, sel := range selectors {
		pattern, negated := strings.CutPrefix(sel, "!")
		pattern = path.Clean(strings.TrimPrefix(filepath.ToSlash(pattern), "./"))
		if !doublestar.ValidatePattern(pattern) || path.IsAbs(pattern) || strings.HasPrefix(pattern, "../") {
			return nil, zerr.With(domain.ErrInvalidSelector, "selector", sel)
		}
		if negated {
			exclude = append(exclude, pattern)
		} else {
			include = append(include, pattern)
		}
	}

	seen := make(map[string]struct{})
	var records []domain.FileRecord
	for _, pattern := range include {
		matches, base, err := r.expand(root, pattern)
		if err != nil {
			return nil, err
		}
		for _, rel := range matches {
			if _, ok := seen[rel]; ok || excluded(exclude, rel) {
				continue
			}
			seen[rel] = struct{}{}

			rec, err := r.stat(root, rel, base)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
	}

	slices.SortFunc(records, func(a, b domain.FileRecord) int {
		return strings.Compare(a.Path, b.Path)
	})
	return records, nil
}

// expand returns the slash-separated root relative paths matching pattern and the glob base.
func (r *Resolver) expand(root, pattern string) ([]string, string, error) {
	base, rest := doublestar.SplitPattern(pattern)

	if !hasMeta(rest) {
		// A literal file must exist.
		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(pattern)))
		if err != nil {
			if errors.Is(err, iofs.ErrNotExist) {
				return nil, "", zerr.With(zerr.Wrap(err, "source file not found"), "path", pattern)
			}
			return nil, "", zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "path", pattern)
		}
		if info.IsDir() {
			return r.expand(root, pattern+"/**")
		}
		return []string{pattern}, base, nil
	}

	dir := filepath.Join(root, filepath.FromSlash(base))
	var matches []string
	for file := range r.walker.WalkFiles(dir) {
		rel, err := filepath.Rel(root, file)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		if doublestar.MatchUnvalidated(pattern, rel) {
			matches = append(matches, rel)
		}
	}
	return matches, base, nil
}

func (r *Resolver) stat(root, rel, base string) (domain.FileRecord, error) {
	abs := filepath.Join(root, filepath.FromSlash(rel))
	info, err := os.Stat(abs)
	if err != nil {
		return domain.FileRecord{}, zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "path", rel)
	}
	fp, err := r.hasher.HashFile(abs)
	if err != nil {
		return domain.FileRecord{}, err
	}
	return domain.FileRecord{
		Path:        rel,
		Base:        base,
		Fingerprint: fp,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
	}, nil
}

// Read returns rec with its contents loaded.
func (r *Resolver) Read(root string, rec domain.FileRecord) (domain.FileRecord, error) {
	//nolint:gosec // Path comes from a resolved selector below root
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rec.Path)))
	if err != nil {
		return domain.FileRecord{}, zerr.With(zerr.Wrap(err, domain.ErrFileOpenFailed.Error()), "path", rec.Path)
	}
	loaded := rec.WithContents(data)
	return loaded, nil
}

func excluded(patterns []string, rel string) bool {
	for _, p := range patterns {
		if doublestar.MatchUnvalidated(p, rel) {
			return true
		}
	}
	return false
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{\\")
}
