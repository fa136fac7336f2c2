// Package workunit defines the opaque, externally executed step a task node
// hands to an executor, and the contract executors implement.
package workunit

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Resources is the resource request attached to a WorkUnit.
type Resources struct {
	MemoryMB int
	CPUs     int
	Queue    string
}

// WorkUnit is one executable step. Exactly one of Command or Run is set:
// Command is shell text handed to a Submitter, Run is an in-process body
// used for scatter and gather bookkeeping. Both write only to Outputs,
// which are attempt-private temp paths.
type WorkUnit struct {
	// ID is the address of the node that built the unit.
	ID        string
	Command   string
	Run       func(ctx context.Context) error
	Resources Resources
	Inputs    []string
	Outputs   []string
	// LogPath, when set, receives the unit's stdout and stderr.
	LogPath string
}

// Validate checks the unit is executable.
func (u *WorkUnit) Validate() error {
	if u == nil {
		return errors.New("work unit is nil")
	}
	hasCmd := strings.TrimSpace(u.Command) != ""
	switch {
	case hasCmd && u.Run != nil:
		return fmt.Errorf("work unit %s sets both a command and an in-process body", u.ID)
	case !hasCmd && u.Run == nil:
		return fmt.Errorf("work unit %s has nothing to execute", u.ID)
	}
	if u.Resources.MemoryMB < 0 || u.Resources.CPUs < 0 {
		return fmt.Errorf("work unit %s requests negative resources", u.ID)
	}
	return nil
}

// IsExternal reports whether the unit must go through a Submitter.
func (u *WorkUnit) IsExternal() bool {
	return u.Run == nil
}

// Submitter runs an external WorkUnit to completion. A nil error means the
// command exited with status zero; any other outcome is a failure.
type Submitter interface {
	Submit(ctx context.Context, u *WorkUnit) error
}

// ExitError reports a non-zero exit status from an external command.
type ExitError struct {
	Unit   string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("work unit %s exited with status %d", e.Unit, e.Code)
	if tail := strings.TrimSpace(e.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}
