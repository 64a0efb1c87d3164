package rebuild

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.trai.ch/kiln/internal/core/domain"
)

// Affected returns the tasks whose source selectors match any of the changed paths,
// plus every task depending on them. Paths may be absolute or relative to root.
// Paths inside stateDir are ignored. The result is sorted.
func Affected(graph *domain.Graph, root, stateDir string, paths []string) []string {
	var matched []string
	for _, name := range graph.Names() {
		task, _ := graph.GetTask(name)
		for _, p := range paths {
			rel, ok := relative(root, p)
			if !ok || insideDir(rel, stateDir) {
				continue
			}
			if MatchSelectors(task.Sources, rel) {
				matched = append(matched, name)
				break
			}
		}
	}
	if len(matched) == 0 {
		return nil
	}

	set := graph.Dependents(matched)
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// MatchSelectors reports whether rel matches at least one positive selector and no
// negated ("!"-prefixed) selector.
func MatchSelectors(selectors []string, rel string) bool {
	included := false
	for _, sel := range selectors {
		if pattern, negated := strings.CutPrefix(sel, "!"); negated {
			if ok, _ := doublestar.Match(strings.TrimPrefix(pattern, "./"), rel); ok {
				return false
			}
			continue
		}
		if included {
			continue
		}
		if ok, _ := doublestar.Match(strings.TrimPrefix(sel, "./"), rel); ok {
			included = true
		}
	}
	return included
}

func relative(root, p string) (string, bool) {
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", false
		}
		p = rel
	}
	return filepath.ToSlash(filepath.Clean(p)), true
}

func insideDir(rel, dir string) bool {
	if dir == "" {
		return false
	}
	dir = filepath.ToSlash(filepath.Clean(dir))
	return rel == dir || strings.HasPrefix(rel, dir+"/")
}
