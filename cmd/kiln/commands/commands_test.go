package commands_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/cmd/kiln/commands"
	"go.trai.ch/kiln/internal/adapters/logger"
	"go.trai.ch/kiln/internal/app"
	"go.trai.ch/kiln/internal/build"
	"go.trai.ch/kiln/internal/core/domain"
)

type mockApp struct {
	buildFunc func(ctx context.Context, opts app.RunOptions) error
	watchFunc func(ctx context.Context, opts app.RunOptions) error
	cleanFunc func(ctx context.Context, opts app.CleanOptions) error
	format    logger.Format
}

func (m *mockApp) Build(ctx context.Context, opts app.RunOptions) error {
	if m.buildFunc != nil {
		return m.buildFunc(ctx, opts)
	}
	return nil
}

func (m *mockApp) Watch(ctx context.Context, opts app.RunOptions) error {
	if m.watchFunc != nil {
		return m.watchFunc(ctx, opts)
	}
	return nil
}

func (m *mockApp) Clean(ctx context.Context, opts app.CleanOptions) error {
	if m.cleanFunc != nil {
		return m.cleanFunc(ctx, opts)
	}
	return nil
}

func (m *mockApp) SetLogFormat(f logger.Format) {
	m.format = f
}

func execute(t *testing.T, m *mockApp, args ...string) (string, error) {
	t.Helper()
	cli := commands.New(m)
	buf := new(bytes.Buffer)
	cli.SetOutput(buf, buf)
	cli.SetArgs(args)
	err := cli.Execute(context.Background())
	return buf.String(), err
}

func TestCommands_Build(t *testing.T) {
	t.Run("wires flags correctly", func(t *testing.T) {
		var captured app.RunOptions
		m := &mockApp{buildFunc: func(_ context.Context, opts app.RunOptions) error {
			captured = opts
			return nil
		}}

		_, err := execute(t, m, "build", "css", "js", "--mode=prod", "--force", "-j", "3", "--output", "ci")
		require.NoError(t, err)
		assert.Equal(t, app.RunOptions{
			Targets:     []string{"css", "js"},
			Mode:        domain.ModeProduction,
			Force:       true,
			Parallelism: 3,
			OutputMode:  "ci",
		}, captured)
		assert.Equal(t, logger.FormatPretty, m.format)
	})

	t.Run("defaults to development and every task", func(t *testing.T) {
		var captured app.RunOptions
		m := &mockApp{buildFunc: func(_ context.Context, opts app.RunOptions) error {
			captured = opts
			return nil
		}}

		_, err := execute(t, m, "build")
		require.NoError(t, err)
		assert.Empty(t, captured.Targets)
		assert.Equal(t, domain.ModeDevelopment, captured.Mode)
		assert.False(t, captured.Force)
	})

	t.Run("rejects an unknown mode", func(t *testing.T) {
		m := &mockApp{buildFunc: func(context.Context, app.RunOptions) error {
			panic("should not be called")
		}}
		_, err := execute(t, m, "build", "--mode=staging")
		require.ErrorContains(t, err, domain.ErrInvalidMode.Error())
	})

	t.Run("returns error on build failure", func(t *testing.T) {
		m := &mockApp{buildFunc: func(context.Context, app.RunOptions) error {
			return domain.ErrBuildExecutionFailed
		}}
		_, err := execute(t, m, "build")
		require.ErrorIs(t, err, domain.ErrBuildExecutionFailed)
	})
}

func TestCommands_LogFormat(t *testing.T) {
	m := &mockApp{}
	_, err := execute(t, m, "build", "--log-format", "json")
	require.NoError(t, err)
	assert.Equal(t, logger.FormatJSON, m.format)

	_, err = execute(t, &mockApp{}, "build", "--log-format", "xml")
	require.ErrorContains(t, err, "invalid log format")
}

func TestCommands_Watch(t *testing.T) {
	var captured app.RunOptions
	m := &mockApp{watchFunc: func(_ context.Context, opts app.RunOptions) error {
		captured = opts
		return errors.New("watch stopped")
	}}

	_, err := execute(t, m, "watch", "scss", "--mode", "production")
	require.ErrorContains(t, err, "watch stopped")
	assert.Equal(t, []string{"scss"}, captured.Targets)
	assert.Equal(t, domain.ModeProduction, captured.Mode)
}

func TestCommands_Clean(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want app.CleanOptions
	}{
		{name: "records only", args: []string{"clean"}, want: app.CleanOptions{}},
		{name: "with outputs", args: []string{"clean", "--outputs"}, want: app.CleanOptions{Outputs: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured app.CleanOptions
			called := false
			m := &mockApp{cleanFunc: func(_ context.Context, opts app.CleanOptions) error {
				captured = opts
				called = true
				return nil
			}}
			_, err := execute(t, m, tt.args...)
			require.NoError(t, err)
			assert.True(t, called)
			assert.Equal(t, tt.want, captured)
		})
	}

	_, err := execute(t, &mockApp{}, "clean", "extra")
	require.Error(t, err)
}

func TestCommands_Version(t *testing.T) {
	out, err := execute(t, &mockApp{}, "version")
	require.NoError(t, err)
	assert.Equal(t, "kiln version "+build.Version+" (commit: "+build.Commit+", date: "+build.Date+")\n", out)

	out, err = execute(t, &mockApp{}, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "kiln version "+build.Version)
}
