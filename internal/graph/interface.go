package graph

import (
	"context"

	"github.com/vk/callgrid/internal/node"
	"github.com/vk/callgrid/internal/nodeid"
	"github.com/vk/callgrid/internal/nodestore"
)

// Graph is the facade the scheduler and executor work against.
type Graph interface {
	// Load registers plan nodes, in order, with their in-plan dependencies.
	Load(ctx context.Context, plan []*node.Node) error

	// Node retrieves a node by address.
	Node(ctx context.Context, id nodeid.Address) (*node.Node, bool)

	// DependenciesOf returns the in-plan nodes id depends on.
	DependenciesOf(ctx context.Context, id nodeid.Address) ([]*node.Node, error)

	// DependentsOf returns the in-plan nodes that depend on id.
	DependentsOf(ctx context.Context, id nodeid.Address) ([]*node.Node, error)

	// NodeStatus returns the status of id and whether id is in the plan.
	NodeStatus(ctx context.Context, id nodeid.Address) (node.Status, bool)

	// AllNodes returns every plan node in plan order.
	AllNodes(ctx context.Context) []*node.Node

	MarkRunning(ctx context.Context, id nodeid.Address) error
	MarkCompleted(ctx context.Context, id nodeid.Address, result nodestore.Result) error
	MarkFailed(ctx context.Context, id nodeid.Address, nodeErr error) error
	MarkSkipped(ctx context.Context, id nodeid.Address, reason error) error

	// Result returns what a completed node committed.
	Result(ctx context.Context, id nodeid.Address) (nodestore.Result, bool)

	// Error returns why a node failed or was skipped.
	Error(ctx context.Context, id nodeid.Address) error

	// Counts tallies plan nodes by status.
	Counts(ctx context.Context) map[node.Status]int
}
