package localexecutor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrOutputMissing is returned when a node's work succeeded but its
	// declared output does not pass the completion oracle afterwards.
	ErrOutputMissing = errors.New("output missing or empty after successful work")
	// ErrUpstreamFailed is the skip reason of nodes blocked by a failure.
	ErrUpstreamFailed = errors.New("upstream node did not complete")
)

// Failure is one failed node.
type Failure struct {
	Node string
	Err  error
}

// RunError reports every node that failed during a run.
type RunError struct {
	Failures []Failure
	// Skipped counts nodes that never ran because of the failures.
	Skipped int
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("%d node(s) failed: %s", len(e.Failures), strings.Join(e.Failed(), ", "))
	if e.Skipped > 0 {
		msg += fmt.Sprintf(" (%d skipped)", e.Skipped)
	}
	return msg
}

// Unwrap exposes the individual node errors to errors.Is and errors.As.
func (e *RunError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// Failed returns the addresses of the failed nodes.
func (e *RunError) Failed() []string {
	ids := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		ids[i] = f.Node
	}
	return ids
}
