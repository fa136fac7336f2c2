package submit

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// CommandRunner runs a program to completion and returns its exit code.
// err is only set when the program could not be run at all.
type CommandRunner func(ctx context.Context, spec RunSpec) (code int, stderr string, err error)

// RunSpec describes one process invocation.
type RunSpec struct {
	Name    string
	Args    []string
	Env     []string
	Dir     string
	LogPath string
}

// ExecRunner is the CommandRunner backed by os/exec.
func ExecRunner(ctx context.Context, spec RunSpec) (int, string, error) {
	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	stderr := &limitedBuffer{limit: 8 << 10}
	var out io.Writer = io.Discard
	var errW io.Writer = stderr
	if spec.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(spec.LogPath), 0o755); err != nil {
			return -1, "", err
		}
		f, err := os.OpenFile(spec.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return -1, "", err
		}
		defer f.Close()
		out = f
		errW = io.MultiWriter(f, stderr)
	}
	cmd.Stdout = out
	cmd.Stderr = errW

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), stderr.String(), nil
		}
		return -1, stderr.String(), err
	}
	return 0, stderr.String(), nil
}

// limitedBuffer keeps the last limit bytes written to it.
type limitedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (l *limitedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if l.limit > 0 && len(p) >= l.limit {
		l.buf.Reset()
		p = p[len(p)-l.limit:]
	}
	l.buf.Write(p)
	if over := l.buf.Len() - l.limit; l.limit > 0 && over > 0 {
		l.buf.Next(over)
	}
	return n, nil
}

func (l *limitedBuffer) String() string {
	return l.buf.String()
}
