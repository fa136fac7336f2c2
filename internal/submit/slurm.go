package submit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/vk/callgrid/internal/ctxlog"
	"github.com/vk/callgrid/internal/workunit"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// Slurm submits work units as batch jobs and blocks until each job ends.
// The job's exit status is sbatch's exit status.
type Slurm struct {
	// ScriptDir receives one rendered batch script per unit.
	ScriptDir string
	// Account is passed as --account when set.
	Account string
	// ExtraArgs are appended to every sbatch invocation.
	ExtraArgs []string
	Run       CommandRunner
}

// NewSlurm returns a Slurm submitter writing scripts under scriptDir.
func NewSlurm(scriptDir string) *Slurm {
	return &Slurm{ScriptDir: scriptDir, Run: ExecRunner}
}

// Script renders the batch script for u.
func (s *Slurm) Script(u *workunit.WorkUnit) string {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	fmt.Fprintf(&b, "#SBATCH --job-name=%s\n", jobName(u.ID))
	if u.Resources.MemoryMB > 0 {
		fmt.Fprintf(&b, "#SBATCH --mem=%d\n", u.Resources.MemoryMB)
	}
	cpus := u.Resources.CPUs
	if cpus <= 0 {
		cpus = 1
	}
	fmt.Fprintf(&b, "#SBATCH --cpus-per-task=%d\n", cpus)
	if u.Resources.Queue != "" {
		fmt.Fprintf(&b, "#SBATCH --partition=%s\n", u.Resources.Queue)
	}
	if s.Account != "" {
		fmt.Fprintf(&b, "#SBATCH --account=%s\n", s.Account)
	}
	if u.LogPath != "" {
		fmt.Fprintf(&b, "#SBATCH --output=%s\n", u.LogPath)
	}
	b.WriteString("set -eo pipefail\n\n")
	b.WriteString(strings.TrimRight(u.Command, "\n"))
	b.WriteString("\n")
	return b.String()
}

// Submit writes the script and runs `sbatch --wait` on it.
func (s *Slurm) Submit(ctx context.Context, u *workunit.WorkUnit) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if !u.IsExternal() {
		return fmt.Errorf("work unit %s is in-process and cannot be submitted", u.ID)
	}
	logger := ctxlog.FromContext(ctx).With("unit", u.ID)

	if err := os.MkdirAll(s.ScriptDir, 0o755); err != nil {
		return fmt.Errorf("failed to create script directory: %w", err)
	}
	script := filepath.Join(s.ScriptDir, jobName(u.ID)+".sh")
	if err := os.WriteFile(script, []byte(s.Script(u)), 0o755); err != nil {
		return fmt.Errorf("failed to write batch script for %s: %w", u.ID, err)
	}

	args := append([]string{"--wait"}, s.ExtraArgs...)
	args = append(args, script)
	logger.Debug("Submitting batch job.", "script", script, "queue", u.Resources.Queue)

	run := s.Run
	if run == nil {
		run = ExecRunner
	}
	code, stderr, err := run(ctx, RunSpec{Name: "sbatch", Args: args})
	if err != nil {
		return fmt.Errorf("failed to run sbatch for %s: %w", u.ID, err)
	}
	if code != 0 {
		return &workunit.ExitError{Unit: u.ID, Code: code, Stderr: stderr}
	}
	return nil
}

func jobName(id string) string {
	return strings.Trim(unsafeName.ReplaceAllString(id, "_"), "_")
}
