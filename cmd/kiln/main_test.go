package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/kiln/internal/adapters/cas"
	"go.trai.ch/kiln/internal/adapters/config"
	"go.trai.ch/kiln/internal/adapters/fs"
	"go.trai.ch/kiln/internal/adapters/livereload"
	"go.trai.ch/kiln/internal/adapters/transform"
	"go.trai.ch/kiln/internal/app"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func provide(t *testing.T, dir string, log ports.Logger) ComponentProvider {
	t.Helper()
	hasher := fs.NewHasher()
	application := app.New(
		config.NewLoader(log),
		fs.NewResolver(fs.NewWalker(), hasher),
		fs.NewWriter(hasher),
		transform.NewFactory(),
		cas.NewOpener(),
		log,
		func() (ports.Watcher, error) { return nil, errors.New("no watcher in tests") },
		func(d, addr string) *livereload.Server { return livereload.New(d, addr, log) },
	).WithWorkDir(dir).WithOutput(new(bytes.Buffer), new(bytes.Buffer))

	return func(context.Context) (*app.Components, error) {
		return app.NewComponents(application, log), nil
	}
}

func project(t *testing.T, chain string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"kiln.yaml": "version: \"1\"\ntasks:\n  html:\n    source: [\"src/*.html\"]\n    destination: dest\n" + chain,
		"src/index.html": "<p>hi</p>",
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), domain.FilePerm); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

// TestRun_Success verifies that the run function returns 0 when the command succeeds.
func TestRun_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)

	stderr := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"version"}, new(bytes.Buffer), stderr, provide(t, t.TempDir(), mockLogger))
	assert.Equal(t, 0, exitCode)
	assert.Empty(t, stderr.String())
}

func TestRun_BuildSucceeds(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)

	dir := project(t, "")
	exitCode := run(context.Background(), []string{"build", "--output", "plain"}, new(bytes.Buffer), new(bytes.Buffer),
		provide(t, dir, mockLogger))
	assert.Equal(t, 0, exitCode)
	assert.FileExists(t, filepath.Join(dir, "dest", "index.html"))
}

// TestRun_BuildFailure verifies that failed tasks map to exit code 1 without a second error log.
func TestRun_BuildFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	// Logged once by the run for the failed task, not again by main.
	mockLogger.EXPECT().Error(gomock.Any()).Times(1)

	dir := project(t, "    transforms:\n      - use: exec\n        cmd: [\"false\"]\n")
	exitCode := run(context.Background(), []string{"build", "--output", "plain"}, new(bytes.Buffer), new(bytes.Buffer),
		provide(t, dir, mockLogger))
	assert.Equal(t, 1, exitCode)
}

// TestRun_CommandError verifies that other errors are logged and map to exit code 1.
func TestRun_CommandError(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Error(gomock.Any()).Times(1)

	exitCode := run(context.Background(), []string{"build", "--mode", "staging"}, new(bytes.Buffer), new(bytes.Buffer),
		provide(t, t.TempDir(), mockLogger))
	assert.Equal(t, 1, exitCode)
}

// TestRun_ProviderError verifies that the run function returns 1 when the component provider fails.
func TestRun_ProviderError(t *testing.T) {
	provider := func(context.Context) (*app.Components, error) {
		return nil, errors.New("provider failed")
	}

	stderr := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"build"}, new(bytes.Buffer), stderr, provider)
	assert.Equal(t, 1, exitCode)
	assert.Equal(t, "Error: provider failed\n", stderr.String())
}
