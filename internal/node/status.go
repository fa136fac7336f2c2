package node

import "fmt"

// Status is the execution state of a node within one run.
type Status int

const (
	// StatusPending means the node waits for its dependencies.
	StatusPending Status = iota
	// StatusRunning means a worker is executing the node.
	StatusRunning
	// StatusCompleted means the node's output is committed and complete.
	StatusCompleted
	// StatusFailed means the node's work failed; its output is incomplete.
	StatusFailed
	// StatusSkipped means an upstream failure or cancellation blocked it.
	StatusSkipped
)

var statusNames = [...]string{"pending", "running", "completed", "failed", "skipped"}

func (s Status) String() string {
	if int(s) >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// IsTerminal reports whether the status can no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusSkipped
}
