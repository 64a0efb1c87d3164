package transform

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path"
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// ExecName is the registered name of the exec transform.
const ExecName = "exec"

// PathPlaceholder in an argument is replaced with the record's project relative path.
const PathPlaceholder = "{path}"

// stderrTail bounds the stderr kept for the error message.
const stderrTail = 2048

// Exec pipes each record through an external command: contents on stdin, new contents
// from stdout. Stderr is streamed to the span of the step.
type Exec struct {
	Cmd []string
	Ext string
}

func newExec(spec domain.TransformSpec) (ports.Transform, error) {
	if len(spec.Cmd) == 0 || strings.TrimSpace(spec.Cmd[0]) == "" {
		return nil, invalidOptions(ExecName, "cmd is required")
	}
	return Exec{Cmd: append([]string(nil), spec.Cmd...), Ext: normalizeExt(spec.Ext)}, nil
}

// Name implements ports.Transform.
func (Exec) Name() string { return ExecName }

// Apply implements ports.Transform.
func (e Exec) Apply(ctx context.Context, inputs []domain.FileRecord) ([]domain.FileRecord, error) {
	return mapRecords(ExecName, inputs, func(rec domain.FileRecord) (domain.FileRecord, error) {
		out, err := e.run(ctx, rec)
		if err != nil {
			return rec, err
		}
		rec = rec.WithContents(out)
		if e.Ext != "" {
			rel := rec.Rel()
			rec = rec.WithRel(strings.TrimSuffix(rel, path.Ext(rel)) + e.Ext)
		}
		return rec, nil
	})
}

func (e Exec) run(ctx context.Context, rec domain.FileRecord) ([]byte, error) {
	args := make([]string, len(e.Cmd))
	for i, arg := range e.Cmd {
		args[i] = strings.ReplaceAll(arg, PathPlaceholder, rec.Path)
	}

	// #nosec G204 -- the command line comes from the project configuration
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = ports.WorkDir(ctx)
	cmd.Env = append(os.Environ(), "KILN_FILE="+rec.Path)
	cmd.Stdin = bytes.NewReader(rec.Contents)

	var stdout bytes.Buffer
	tail := &tailBuffer{limit: stderrTail}
	cmd.Stdout = &stdout
	cmd.Stderr = io.MultiWriter(ports.LogWriter(ctx), tail)

	if err := cmd.Run(); err != nil {
		if line := lastLine(tail.String()); line != "" {
			err = zerr.Wrap(err, line)
		}
		return nil, zerr.With(err, "cmd", args[0])
	}
	return stdout.Bytes(), nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
