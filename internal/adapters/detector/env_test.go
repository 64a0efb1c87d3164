package detector_test

import (
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/detector"
)

func withTerminal(t *testing.T, isTTY bool) {
	t.Helper()
	prev := detector.IsTerminal
	detector.IsTerminal = func(int) bool { return isTTY }
	t.Cleanup(func() { detector.IsTerminal = prev })
}

func TestDetectEnvironment(t *testing.T) {
	tests := []struct {
		name     string
		ci       string
		tty      bool
		expected detector.OutputMode
	}{
		{name: "CI=true", ci: "true", tty: true, expected: detector.ModeCI},
		{name: "CI=1", ci: "1", tty: false, expected: detector.ModeCI},
		{name: "terminal", ci: "", tty: true, expected: detector.ModeColor},
		{name: "CI=false terminal", ci: "false", tty: true, expected: detector.ModeColor},
		{name: "pipe", ci: "", tty: false, expected: detector.ModePlain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CI", tt.ci)
			withTerminal(t, tt.tty)
			assert.Equal(t, tt.expected, detector.DetectEnvironment())
		})
	}
}

func TestParseAndResolveMode(t *testing.T) {
	for flag, want := range map[string]detector.OutputMode{
		"":       detector.ModeAuto,
		"auto":   detector.ModeAuto,
		"color":  detector.ModeColor,
		"linear": detector.ModeCI,
		"PLAIN":  detector.ModePlain,
	} {
		got, err := detector.ParseMode(flag)
		require.NoError(t, err, flag)
		assert.Equal(t, want, got, flag)
	}

	_, err := detector.ParseMode("tui")
	require.ErrorContains(t, err, "invalid output mode")

	assert.Equal(t, detector.ModeCI, detector.ResolveMode(detector.ModeCI, detector.ModeAuto))
	assert.Equal(t, detector.ModePlain, detector.ResolveMode(detector.ModeColor, detector.ModePlain))
	assert.Equal(t, "plain", detector.ModePlain.String())
}

func TestProfile(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	assert.Equal(t, termenv.ANSI, detector.Profile(detector.ModeCI)())
	assert.Equal(t, termenv.Ascii, detector.Profile(detector.ModePlain)())
}
