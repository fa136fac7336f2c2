// Package nodestore defines the interface for managing the mutable run state
// of plan nodes.
//
// # Why Node Store Exists
//
// The node store holds what changes while a session executes: each node's
// status, the result it committed, and the error it failed with. The plan
// structure itself lives in topologystore and never changes during a run.
//
// # Lifecycle and Usage
//
// The node store is:
//  1. **Created** once per session (ephemeral; a re-run rebuilds its state
//     from the completion oracle, never from this store)
//  2. **Mutated** by the executor as nodes transition through states
//  3. **Queried** by the scheduler (via graph) to find ready nodes and by
//     the status endpoint and run report
//  4. **Discarded** when the session ends
//
// # State Transitions
//
//	Pending → Running → Completed (with result) OR Failed (with error)
//	Pending → Skipped (an upstream node failed or the run was cancelled)
package nodestore

import (
	"context"
	"time"

	"github.com/vk/callgrid/internal/node"
	"github.com/vk/callgrid/internal/nodeid"
)

// Result is what a completed node leaves behind.
type Result struct {
	// Paths are the final paths the node committed, in output order.
	Paths []string
	// Token is the attempt token used for the node's temp paths.
	Token   string
	Elapsed time.Duration
}

// Store manages the mutable execution state of nodes.
//
// # Thread-Safety Requirements
//
// Implementations MUST be safe for concurrent use: many workers update
// different nodes at once while the scheduler reads. See internal/inmemorystore.
type Store interface {
	// SetStatus records a node's status.
	SetStatus(ctx context.Context, id nodeid.Address, status node.Status) error

	// GetStatus returns a node's status, StatusPending if never set.
	GetStatus(ctx context.Context, id nodeid.Address) (node.Status, error)

	// SetResult records the result of a completed node.
	SetResult(ctx context.Context, id nodeid.Address, result Result) error

	// GetResult returns the recorded result and whether one exists.
	GetResult(ctx context.Context, id nodeid.Address) (Result, bool, error)

	// SetError records why a node failed or was skipped.
	SetError(ctx context.Context, id nodeid.Address, nodeErr error) error

	// GetError returns the recorded error, nil if none.
	GetError(ctx context.Context, id nodeid.Address) (error, error)
}
