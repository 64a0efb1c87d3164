// Package logger implements a logging adapter using log/slog.
package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// Format selects the log encoding.
type Format string

const (
	// FormatPretty writes colored human readable lines.
	FormatPretty Format = "pretty"
	// FormatJSON writes one JSON object per record.
	FormatJSON Format = "json"
)

// ParseFormat converts a flag value into a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatPretty:
		return FormatPretty, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", zerr.With(zerr.New("invalid log format, expected 'pretty' or 'json'"), "log_format", s)
	}
}

// ErrorEntry is one level of an error chain.
type ErrorEntry struct {
	Message  string
	Metadata map[string]any
}

// Logger implements ports.Logger using log/slog.
type Logger struct {
	logger   *slog.Logger
	mu       sync.RWMutex
	jsonMode bool
	output   io.Writer
}

var _ ports.Logger = (*Logger)(nil)

// New creates a new Logger writing pretty output to stderr.
func New() ports.Logger {
	l := &Logger{output: os.Stderr}
	l.rebuild()
	return l
}

// SetOutput updates the logger's output destination, keeping the current format.
// If w is nil, os.Stderr is used.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if w == nil {
		w = os.Stderr
	}
	l.output = w
	l.rebuild()
}

// SetJSON switches between JSON and pretty logging, keeping the output destination.
func (l *Logger) SetJSON(enable bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.jsonMode = enable
	l.rebuild()
}

// SetFormat is SetJSON keyed by Format.
func (l *Logger) SetFormat(f Format) {
	l.SetJSON(f == FormatJSON)
}

// rebuild must be called with mu held or before the logger is shared.
func (l *Logger) rebuild() {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var handler slog.Handler
	if l.jsonMode {
		handler = slog.NewJSONHandler(l.output, opts)
	} else {
		handler = NewPrettyHandler(l.output, opts)
	}
	l.logger = slog.New(handler)
}

// Info logs an informational message.
func (l *Logger) Info(msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Info(msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Warn(msg)
}

// Error logs err with its cause chain and metadata.
func (l *Logger) Error(err error) {
	if err == nil {
		return
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := collectErrorEntries(err)

	if l.jsonMode {
		attrs := []any{"error", err.Error()}
		for _, entry := range entries {
			for _, k := range sortedKeys(entry.Metadata) {
				attrs = append(attrs, k, entry.Metadata[k])
			}
		}
		l.logger.Error("operation failed", attrs...)
		return
	}

	if task, rest := extractTask(entries); task != "" {
		l.logger.Error(formatErrorEntries(rest), TaskKey, task)
		return
	}
	l.logger.Error(formatErrorEntries(entries))
}

// extractTask removes the first string "task" metadata value from the chain so the
// handler can render it as the line prefix.
func extractTask(entries []ErrorEntry) (string, []ErrorEntry) {
	for i, e := range entries {
		task, ok := e.Metadata[TaskKey].(string)
		if !ok || task == "" {
			continue
		}
		out := slices.Clone(entries)
		md := make(map[string]any, len(e.Metadata)-1)
		for k, v := range e.Metadata {
			if k != TaskKey {
				md[k] = v
			}
		}
		out[i].Metadata = md
		return task, out
	}
	return "", entries
}

// collectErrorEntries walks the zerr chain. A non-zerr error ends the walk with its full text.
// errors.Join trees are flattened.
func collectErrorEntries(err error) []ErrorEntry {
	var entries []ErrorEntry
	current := err
	for current != nil {
		if joined, ok := current.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				entries = append(entries, collectErrorEntries(e)...)
			}
			break
		}

		z, ok := current.(*zerr.Error)
		if !ok {
			entries = append(entries, ErrorEntry{Message: current.Error()})
			break
		}
		// An empty message is the carrier zerr.With adds around a standard error.
		if z.Message() != "" || len(z.Metadata()) > 0 {
			entries = append(entries, ErrorEntry{Message: z.Message(), Metadata: z.Metadata()})
		}
		current = errors.Unwrap(current)
	}
	return mergeCarriers(entries)
}

// mergeCarriers folds metadata of message-less entries into the entry that follows.
func mergeCarriers(entries []ErrorEntry) []ErrorEntry {
	out := entries[:0]
	var carried map[string]any
	for _, e := range entries {
		if e.Message == "" && len(e.Metadata) > 0 {
			if carried == nil {
				carried = make(map[string]any)
			}
			for k, v := range e.Metadata {
				carried[k] = v
			}
			continue
		}
		if carried != nil {
			if e.Metadata == nil {
				e.Metadata = make(map[string]any, len(carried))
			}
			for k, v := range carried {
				e.Metadata[k] = v
			}
			carried = nil
		}
		out = append(out, e)
	}
	return out
}

// formatErrorEntries renders the chain as "Error: ..." followed by an indented cause list.
func formatErrorEntries(entries []ErrorEntry) string {
	var lines []string
	for i, entry := range entries {
		msgLines := strings.Split(entry.Message, "\n")
		if i == 0 {
			lines = append(lines, "Error: "+msgLines[0])
			for _, line := range msgLines[1:] {
				lines = append(lines, "       "+line)
			}
			for _, k := range sortedKeys(entry.Metadata) {
				lines = append(lines, fmt.Sprintf("       %s: %v", k, entry.Metadata[k]))
			}
			continue
		}

		if i == 1 {
			lines = append(lines, "", "  Caused by:")
		}
		lines = append(lines, "    → "+msgLines[0])
		for _, line := range msgLines[1:] {
			lines = append(lines, "      "+line)
		}
		for _, k := range sortedKeys(entry.Metadata) {
			lines = append(lines, fmt.Sprintf("      %s: %v", k, entry.Metadata[k]))
		}
	}
	return strings.Join(lines, "\n")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
