package fs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/core/domain"
)

func TestResolver_Resolve(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"src/index.html":              "<html>",
		"src/about.html":              "<html>about",
		"src/scss/style.scss":         "body{}",
		"src/scss/pages/home.scss":    ".home{}",
		"src/scss/vendor/reset.scss":  "*{}",
		"src/js/app.js":               "app",
		"src/js/app.min.js":           "app",
		".kiln/records/x.json":        "{}",
		"src/.git/HEAD":               "ref",
		"src/icons/home.svg":          "<svg/>",
	})
	resolver := newResolver()

	tests := []struct {
		name      string
		selectors []string
		want      []string
		wantRel   []string
	}{
		{
			name:      "single level glob",
			selectors: []string{"src/*.html"},
			want:      []string{"src/about.html", "src/index.html"},
			wantRel:   []string{"about.html", "index.html"},
		},
		{
			name:      "doublestar keeps structure below base",
			selectors: []string{"src/scss/**/*.scss", "!src/scss/vendor/**"},
			want:      []string{"src/scss/pages/home.scss", "src/scss/style.scss"},
			wantRel:   []string{"pages/home.scss", "style.scss"},
		},
		{
			name:      "literal file",
			selectors: []string{"./src/scss/style.scss"},
			want:      []string{"src/scss/style.scss"},
			wantRel:   []string{"style.scss"},
		},
		{
			name:      "negation",
			selectors: []string{"src/js/*.js", "!src/js/*.min.js"},
			want:      []string{"src/js/app.js"},
			wantRel:   []string{"app.js"},
		},
		{
			name:      "duplicates collapse",
			selectors: []string{"src/icons/*.svg", "src/icons/home.svg"},
			want:      []string{"src/icons/home.svg"},
			wantRel:   []string{"home.svg"},
		},
		{
			name:      "directory selector",
			selectors: []string{"src/icons"},
			want:      []string{"src/icons/home.svg"},
			wantRel:   []string{"home.svg"},
		},
		{
			name:      "state and vcs directories are skipped",
			selectors: []string{"**/*.json", "src/**/HEAD"},
			want:      nil,
			wantRel:   nil,
		},
		{
			name:      "no matches",
			selectors: []string{"src/**/*.ts"},
			want:      nil,
			wantRel:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := resolver.Resolve(root, tt.selectors)
			require.NoError(t, err)
			assert.Equal(t, tt.want, recordPaths(records))

			var rels []string
			for _, r := range records {
				rels = append(rels, r.Rel())
				assert.Len(t, r.Fingerprint, 16)
				assert.Nil(t, r.Contents)
				assert.False(t, r.ModTime.IsZero())
			}
			assert.Equal(t, tt.wantRel, rels)
		})
	}
}

func TestResolver_Resolve_Errors(t *testing.T) {
	root := t.TempDir()
	resolver := newResolver()

	_, err := resolver.Resolve(root, []string{"src/["})
	require.ErrorContains(t, err, domain.ErrInvalidSelector.Error())

	_, err = resolver.Resolve(root, []string{"../outside/*.css"})
	require.ErrorContains(t, err, domain.ErrInvalidSelector.Error())

	_, err = resolver.Resolve(root, []string{"src/missing.scss"})
	require.ErrorContains(t, err, "source file not found")
}

func TestResolver_Read(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"src/a.css": "a{}"})
	resolver := newResolver()

	records, err := resolver.Resolve(root, []string{"src/*.css"})
	require.NoError(t, err)
	require.Len(t, records, 1)

	loaded, err := resolver.Read(root, records[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("a{}"), loaded.Contents)
	assert.Equal(t, records[0].Fingerprint, loaded.Fingerprint)
	assert.Equal(t, records[0].ModTime, loaded.ModTime)

	_, err = resolver.Read(root, domain.FileRecord{Path: "src/gone.css"})
	require.ErrorContains(t, err, domain.ErrFileOpenFailed.Error())
}
