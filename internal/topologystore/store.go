// Package topologystore defines the interface for storing and retrieving the
// static structure of an execution plan.
//
// # Why Topology Store Exists
//
// The topology store isolates the **immutable plan structure** (the task
// nodes selected by the resolver and the edges between them) from the
// **mutable run state** (status, committed paths, errors) kept by nodestore.
//
//   - **Clarity:** Structure queries (scheduler) don't mix with state updates (executor)
//   - **Thread-Safety:** Read-heavy queries use RLocks without contention from state writes
//   - **Testability:** Plan structure can be validated independently of run state
//
// # Lifecycle and Usage
//
// The topology store is:
//  1. **Created** once per session (ephemeral, never persisted; the
//     filesystem and the completion oracle are the durable record)
//  2. **Populated** from a resolver plan before execution starts
//  3. **Read-only** during execution
//  4. **Discarded** when the session ends
//
// Only nodes that appear in the plan are stored. Upstream nodes that were
// already complete were elided by the resolver, so edges to them are never
// recorded and never block scheduling.
package topologystore

import (
	"context"

	"github.com/vk/callgrid/internal/node"
	"github.com/vk/callgrid/internal/nodeid"
)

// Store manages the static topology of one execution plan.
//
// # Thread-Safety Requirements
//
// Implementations MUST be safe for concurrent use. See internal/inmemorytopology
// for the reference implementation.
type Store interface {
	// AddNode registers a plan node. Adding the same address twice is a no-op.
	AddNode(ctx context.Context, n *node.Node) error

	// AddDependency records that 'to' depends on 'from': 'from' must complete
	// before 'to' may start. Both nodes must already be registered.
	AddDependency(ctx context.Context, from, to nodeid.Address) error

	// GetNode retrieves a node by address.
	GetNode(ctx context.Context, id nodeid.Address) (*node.Node, bool)

	// AllNodes returns every registered node in insertion order, which for a
	// resolver plan is a topological order.
	AllNodes(ctx context.Context) []*node.Node

	// DependenciesOf returns the addresses 'id' directly depends on.
	// Returns an error if 'id' is not registered.
	DependenciesOf(ctx context.Context, id nodeid.Address) ([]nodeid.Address, error)

	// DependentsOf returns the addresses that directly depend on 'id'.
	// Used to propagate failures downstream.
	DependentsOf(ctx context.Context, id nodeid.Address) ([]nodeid.Address, error)
}
