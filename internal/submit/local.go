package submit

import (
	"context"
	"fmt"

	"github.com/vk/callgrid/internal/ctxlog"
	"github.com/vk/callgrid/internal/workunit"
)

// Local runs external work units through a shell on this machine. Resource
// requests are logged but not enforced.
type Local struct {
	// Shell and ShellArgs form the interpreter invocation; the command text
	// is appended as the final argument.
	Shell     string
	ShellArgs []string
	Env       []string
	Run       CommandRunner
}

// NewLocal returns a Local submitter using bash with errexit and pipefail.
func NewLocal() *Local {
	return &Local{
		Shell:     "bash",
		ShellArgs: []string{"-e", "-o", "pipefail", "-c"},
		Run:       ExecRunner,
	}
}

// Submit runs u and waits for it to exit.
func (l *Local) Submit(ctx context.Context, u *workunit.WorkUnit) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if !u.IsExternal() {
		return fmt.Errorf("work unit %s is in-process and cannot be submitted", u.ID)
	}
	logger := ctxlog.FromContext(ctx).With("unit", u.ID)
	logger.Debug("Submitting work unit locally.", "memory_mb", u.Resources.MemoryMB, "cpus", u.Resources.CPUs, "queue", u.Resources.Queue)

	run := l.Run
	if run == nil {
		run = ExecRunner
	}
	shell := l.Shell
	if shell == "" {
		shell = "sh"
	}
	args := append(append([]string{}, l.ShellArgs...), u.Command)
	if len(l.ShellArgs) == 0 {
		args = []string{"-c", u.Command}
	}

	code, stderr, err := run(ctx, RunSpec{Name: shell, Args: args, Env: l.Env, LogPath: u.LogPath})
	if err != nil {
		return fmt.Errorf("failed to start work unit %s: %w", u.ID, err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if code != 0 {
		return &workunit.ExitError{Unit: u.ID, Code: code, Stderr: stderr}
	}
	logger.Debug("Work unit exited cleanly.")
	return nil
}
