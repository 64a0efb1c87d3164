// Package detector picks the color treatment of terminal output.
package detector

import (
	"os"
	"strings"

	"github.com/muesli/termenv"
	"go.trai.ch/kiln/internal/ui/output"
	"go.trai.ch/zerr"
	"golang.org/x/term"
)

// OutputMode represents the color treatment of the renderer and logs.
type OutputMode int

const (
	// ModeAuto detects the mode from the environment.
	ModeAuto OutputMode = iota
	// ModeColor uses the full capabilities of an interactive terminal.
	ModeColor
	// ModeCI uses basic ANSI colors suitable for CI logs.
	ModeCI
	// ModePlain disables colors.
	ModePlain
)

// String returns the flag spelling of the mode.
func (m OutputMode) String() string {
	switch m {
	case ModeColor:
		return "color"
	case ModeCI:
		return "ci"
	case ModePlain:
		return "plain"
	default:
		return "auto"
	}
}

// IsTerminal reports whether fd is a terminal. Replaced in tests.
var IsTerminal = term.IsTerminal

// DetectEnvironment returns the recommended mode based on stdout and CI variables.
func DetectEnvironment() OutputMode {
	ci := os.Getenv("CI")
	if ci == "true" || ci == "1" {
		return ModeCI
	}
	if !IsTerminal(int(os.Stdout.Fd())) {
		return ModePlain
	}
	return ModeColor
}

// ParseMode converts a flag value into an OutputMode.
func ParseMode(flag string) (OutputMode, error) {
	switch strings.ToLower(strings.TrimSpace(flag)) {
	case "", "auto":
		return ModeAuto, nil
	case "color", "tty":
		return ModeColor, nil
	case "ci", "linear":
		return ModeCI, nil
	case "plain", "none":
		return ModePlain, nil
	default:
		return ModeAuto, zerr.With(zerr.New("invalid output mode, expected 'auto', 'color', 'ci' or 'plain'"), "output", flag)
	}
}

// ResolveMode applies the user override to the detected mode.
func ResolveMode(autoDetected, user OutputMode) OutputMode {
	if user == ModeAuto {
		return autoDetected
	}
	return user
}

// Profile returns the color profile selector of mode.
func Profile(mode OutputMode) func() termenv.Profile {
	switch mode {
	case ModeCI:
		return output.ColorProfileANSI
	case ModePlain:
		return output.PlainProfile
	default:
		return output.ColorProfile
	}
}
