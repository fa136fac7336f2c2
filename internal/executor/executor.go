// Package executor defines the interface for the plan execution engine.
package executor

import "context"

// Executor drives a loaded plan to a terminal state. It owns concurrency,
// asks the scheduler for ready nodes, and records every outcome in the graph.
// Execute returns nil only when every plan node completed.
type Executor interface {
	Execute(ctx context.Context) error
}
