package domain

import (
	"strings"

	"go.trai.ch/zerr"
)

// StalenessPolicy decides which candidate files of a task are dirty.
type StalenessPolicy string

const (
	// AlwaysRun treats every candidate as dirty.
	AlwaysRun StalenessPolicy = "always"
	// NewerThanLastRun treats files modified after the last recorded run as dirty.
	NewerThanLastRun StalenessPolicy = "newer"
	// ContentHashChanged treats files whose fingerprint differs from the stored one as dirty.
	ContentHashChanged StalenessPolicy = "content"
)

// DefaultStaleness is used when a task does not declare a policy.
const DefaultStaleness = ContentHashChanged

// ParseStaleness converts a config value into a StalenessPolicy.
func ParseStaleness(s string) (StalenessPolicy, error) {
	switch p := StalenessPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DefaultStaleness, nil
	case AlwaysRun, NewerThanLastRun, ContentHashChanged:
		return p, nil
	default:
		return "", zerr.With(ErrInvalidStaleness, "staleness", s)
	}
}

// Mode selects the shape of transform chains.
type Mode string

const (
	// ModeDevelopment is the default build mode.
	ModeDevelopment Mode = "development"
	// ModeProduction enables production-only chain steps.
	ModeProduction Mode = "production"
)

// ParseMode converts a flag value into a Mode. Short forms "dev" and "prod" are accepted.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dev", string(ModeDevelopment):
		return ModeDevelopment, nil
	case "prod", string(ModeProduction):
		return ModeProduction, nil
	default:
		return "", zerr.With(ErrInvalidMode, "mode", s)
	}
}

// TransformSpec describes one step of a transform chain as declared in the configuration.
type TransformSpec struct {
	// Use is the registered transform name.
	Use string
	// Cmd is the command line of an exec step.
	Cmd []string
	// Ext replaces the extension of every record.
	Ext string
	// Prefix and Suffix are inserted around the file stem by a rename step.
	Prefix string
	Suffix string
	// Old and New are the literal replacement pair of a replace step.
	Old string
	New string
	// Output is the file name produced by a concat step.
	Output string
	// Separator joins files in a concat step.
	Separator string
	// MediaType overrides extension based media type detection of a minify step.
	MediaType string
	// Strip lists attributes a sprite step removes from every element.
	Strip []string
}

// Task represents a unit of work in the pipeline.
// Tasks are immutable once the configuration is loaded.
type Task struct {
	Name         string
	Sources      []string
	Dependencies []string
	Chain        []TransformSpec
	Destination  string
	Staleness    StalenessPolicy
}
