package fs_test

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/fs"
	"go.trai.ch/kiln/internal/core/domain"
)

// writeFiles creates files below root. Keys are slash-separated relative paths.
func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, contents := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(contents), 0o600))
	}
}

func newResolver() *fs.Resolver {
	return fs.NewResolver(fs.NewWalker(domain.StateDirName), fs.NewHasher())
}

func recordPaths(records []domain.FileRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Path)
	}
	return out
}

func TestWalker_WalkFiles(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		".git/config":            "git config",
		"node_modules/x/index.js": "x",
		".kiln/records/a.json":   "{}",
		"ignored/file":           "ignored",
		"src/main.js":            "main",
		"README.md":              "# Readme",
	})

	walker := fs.NewWalker(".kiln", "ignored")
	var files []string
	for p := range walker.WalkFiles(root) {
		rel, err := filepath.Rel(root, p)
		require.NoError(t, err)
		files = append(files, filepath.ToSlash(rel))
	}
	slices.Sort(files)

	assert.Equal(t, []string{"README.md", "src/main.js"}, files)
}

func TestHasher_HashFile(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.txt": "hello"})

	fp, err := fs.NewHasher().HashFile(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, domain.Fingerprint([]byte("hello")), fp)

	_, err = fs.NewHasher().HashFile(filepath.Join(root, "missing"))
	require.ErrorContains(t, err, domain.ErrFileOpenFailed.Error())
}
