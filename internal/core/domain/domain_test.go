package domain_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/core/domain"
)

func TestFingerprint(t *testing.T) {
	fp := domain.Fingerprint([]byte("body { color: red }"))
	assert.Len(t, fp, 16)
	assert.Equal(t, fp, domain.Fingerprint([]byte("body { color: red }")))
	assert.NotEqual(t, fp, domain.Fingerprint([]byte("body { color: blue }")))
	// xxhash64 of the empty input.
	assert.Equal(t, "ef46db3751d8e999", domain.Fingerprint(nil))
}

func TestFileRecord(t *testing.T) {
	rec := domain.NewFileRecord("src/scss/pages/home.scss", "src/scss", []byte("a"))
	assert.Equal(t, "pages/home.scss", rec.Rel())
	assert.Equal(t, ".scss", rec.Ext())
	assert.Equal(t, int64(1), rec.Size)

	moved := rec.WithRel("pages/home.css")
	assert.Equal(t, "src/scss/pages/home.css", moved.Path)
	assert.Equal(t, "pages/home.css", moved.Rel())
	assert.Equal(t, "src/scss/pages/home.scss", rec.Path, "original must be unchanged")

	changed := rec.WithContents([]byte("abc"))
	assert.Equal(t, int64(3), changed.Size)
	assert.NotEqual(t, rec.Fingerprint, changed.Fingerprint)

	t.Run("root base", func(t *testing.T) {
		r := domain.NewFileRecord("index.html", "", nil)
		assert.Equal(t, "index.html", r.Rel())
		assert.Equal(t, "about.html", r.WithRel("about.html").Path)
	})

	t.Run("path outside base falls back to file name", func(t *testing.T) {
		r := domain.NewFileRecord("other/file.js", "src", nil)
		assert.Equal(t, "file.js", r.Rel())
	})
}

func TestParseStaleness(t *testing.T) {
	tests := []struct {
		in      string
		want    domain.StalenessPolicy
		wantErr bool
	}{
		{in: "", want: domain.ContentHashChanged},
		{in: "always", want: domain.AlwaysRun},
		{in: "Newer", want: domain.NewerThanLastRun},
		{in: "content", want: domain.ContentHashChanged},
		{in: "sometimes", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := domain.ParseStaleness(tt.in)
			if tt.wantErr {
				require.ErrorContains(t, err, "invalid staleness policy")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]domain.Mode{
		"":            domain.ModeDevelopment,
		"dev":         domain.ModeDevelopment,
		"development": domain.ModeDevelopment,
		"prod":        domain.ModeProduction,
		"PRODUCTION":  domain.ModeProduction,
	} {
		got, err := domain.ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}

	_, err := domain.ParseMode("staging")
	require.ErrorContains(t, err, "invalid mode")
}

func TestReport(t *testing.T) {
	a := domain.NewFileRecord("dest/a.css", "dest", []byte("a"))
	b := domain.NewFileRecord("dest/b.css", "dest", []byte("b"))
	bNew := b.WithContents([]byte("b2"))
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	report := &domain.Report{
		Results: []domain.TaskResult{
			{Task: "css", Status: domain.StatusSucceeded, ChangedOutputs: []domain.FileRecord{b, a}},
			{Task: "sprite", Status: domain.StatusSucceeded, ChangedOutputs: []domain.FileRecord{bNew}},
			{Task: "html", Status: domain.StatusSkipped, Reason: domain.ReasonUpToDate},
		},
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
	}

	assert.True(t, report.OK())
	assert.Empty(t, report.Failed())
	assert.Equal(t, time.Second, report.Duration())

	changed := report.ChangedOutputs()
	require.Len(t, changed, 2)
	assert.Equal(t, "dest/a.css", changed[0].Path)
	assert.Equal(t, bNew.Fingerprint, changed[1].Fingerprint)

	report.Results = append(report.Results,
		domain.TaskResult{Task: "js", Status: domain.StatusFailed, Err: errors.New("boom")},
		domain.TaskResult{Task: "bundle", Status: domain.StatusSkipped, Reason: domain.ReasonUpstreamFailure},
	)
	assert.False(t, report.OK())
	require.Len(t, report.Failed(), 1)

	succeeded, failed, skipped := report.Counts()
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 2, skipped)

	res, ok := report.Result("bundle")
	require.True(t, ok)
	assert.True(t, res.Blocking())
	res, _ = report.Result("html")
	assert.False(t, res.Blocking())
}

func TestNewRunID(t *testing.T) {
	id := domain.NewRunID()
	assert.Equal(t, 7, int(id.Version()))
}

func TestTransformError(t *testing.T) {
	cause := errors.New("unexpected token")
	err := domain.NewTransformError("exec", cause)
	assert.Equal(t, "transform exec: unexpected token", err.Error())
	require.ErrorIs(t, err, cause)

	var target *domain.TransformError
	require.ErrorAs(t, error(err), &target)
	assert.Equal(t, "exec", target.Transform)
}

func TestLayoutPaths(t *testing.T) {
	assert.Equal(t, filepath.Join(".kiln", "records"), domain.DefaultRecordsPath())
	assert.Equal(t, filepath.Join(".kiln", "records.db"), domain.DefaultRecordsDBPath())
}
