package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/muesli/termenv"
	"go.trai.ch/kiln/internal/ui/output"
	"go.trai.ch/kiln/internal/ui/style"
)

// TaskKey is the attribute rendered as the "[task]" prefix of a line, matching the
// prefix the linear renderer puts on task output.
const TaskKey = "task"

// PrettyHandler is a slog.Handler writing colored, human readable records.
//
// A top level "task" attribute becomes the line prefix. Every other attribute is
// appended to the first line of the message as key=value, with keys qualified by the
// open groups. Continuation lines of multi-line messages are written unchanged.
type PrettyHandler struct {
	out    *termenv.Output
	level  slog.Leveler
	task   string
	attrs  []string
	groups []string
}

// NewPrettyHandler creates a new PrettyHandler writing to w.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	if w == nil {
		w = os.Stderr
	}
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	return &PrettyHandler{out: output.New(w), level: level}
}

// Enabled reports whether the handler handles records at the given level.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats and outputs the log record.
//
//nolint:gocritic // slog.Handler interface requires slog.Record by value
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	task := h.task
	pairs := append([]string(nil), h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		pairs = h.collect(pairs, &task, h.groups, a)
		return true
	})

	symbol, color := levelStyle(r.Level)
	first, rest, _ := strings.Cut(r.Message, "\n")

	var b strings.Builder
	if task != "" {
		b.WriteString("[" + task + "] ")
	}
	if symbol != "" {
		b.WriteString(symbol + " ")
	}
	b.WriteString(first)
	for _, p := range pairs {
		b.WriteString(" " + p)
	}
	if rest != "" {
		b.WriteString("\n" + rest)
	}

	styled := h.out.String(b.String()).Foreground(color)
	_, err := h.out.WriteString(styled.String() + "\n")
	return err
}

// WithAttrs returns a new Handler with the given attributes appended.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.clone()
	for _, a := range attrs {
		next.attrs = h.collect(next.attrs, &next.task, h.groups, a)
	}
	return next
}

// WithGroup returns a new Handler qualifying later attribute keys with name.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := h.clone()
	next.groups = append(next.groups, name)
	return next
}

func (h *PrettyHandler) clone() *PrettyHandler {
	return &PrettyHandler{
		out:    h.out,
		level:  h.level,
		task:   h.task,
		attrs:  append([]string(nil), h.attrs...),
		groups: append([]string(nil), h.groups...),
	}
}

// collect appends the rendered form of a to pairs. Group values are flattened.
func (h *PrettyHandler) collect(pairs []string, task *string, groups []string, a slog.Attr) []string {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return pairs
	}
	if a.Value.Kind() == slog.KindGroup {
		inner := groups
		if a.Key != "" {
			inner = append(append([]string(nil), groups...), a.Key)
		}
		for _, ga := range a.Value.Group() {
			pairs = h.collect(pairs, task, inner, ga)
		}
		return pairs
	}
	if len(groups) == 0 && a.Key == TaskKey && a.Value.Kind() == slog.KindString {
		*task = a.Value.String()
		return pairs
	}

	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}
	return append(pairs, key+"="+formatValue(a.Value))
}

func levelStyle(level slog.Level) (string, termenv.Color) {
	switch {
	case level >= slog.LevelError:
		return style.Cross, termenv.RGBColor(string(style.Red))
	case level >= slog.LevelWarn:
		return style.Warning, termenv.RGBColor(string(style.Yellow))
	default:
		return "", termenv.RGBColor(string(style.Slate))
	}
}

func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindString:
		s := v.String()
		if s == "" || strings.ContainsAny(s, " \t\n\"=") {
			return strconv.Quote(s)
		}
		return s
	default:
		return v.String()
	}
}
