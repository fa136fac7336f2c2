package scheduler

import (
	"context"

	"github.com/vk/callgrid/internal/graph"
	"github.com/vk/callgrid/internal/node"
)

// Scheduler analyzes the plan graph to find runnable and blocked nodes.
type Scheduler interface {
	// Ready returns the Pending nodes whose dependencies all Completed, in
	// plan order.
	Ready(ctx context.Context) ([]*node.Node, error)

	// Blocked returns the Pending nodes with at least one Failed or Skipped
	// dependency, in plan order.
	Blocked(ctx context.Context) ([]*node.Node, error)

	// Active reports whether any node is still Pending or Running.
	Active(ctx context.Context) bool
}

// DefaultScheduler implements Scheduler by scanning the graph.
type DefaultScheduler struct {
	g graph.Graph
}

// New creates a scheduler over g.
func New(g graph.Graph) Scheduler {
	return &DefaultScheduler{g: g}
}

func (s *DefaultScheduler) Ready(ctx context.Context) ([]*node.Node, error) {
	return s.filter(ctx, func(deps []node.Status) bool {
		for _, d := range deps {
			if d != node.StatusCompleted {
				return false
			}
		}
		return true
	})
}

func (s *DefaultScheduler) Blocked(ctx context.Context) ([]*node.Node, error) {
	return s.filter(ctx, func(deps []node.Status) bool {
		for _, d := range deps {
			if d == node.StatusFailed || d == node.StatusSkipped {
				return true
			}
		}
		return false
	})
}

func (s *DefaultScheduler) Active(ctx context.Context) bool {
	counts := s.g.Counts(ctx)
	return counts[node.StatusPending] > 0 || counts[node.StatusRunning] > 0
}

func (s *DefaultScheduler) filter(ctx context.Context, keep func([]node.Status) bool) ([]*node.Node, error) {
	var out []*node.Node
	for _, n := range s.g.AllNodes(ctx) {
		if st, _ := s.g.NodeStatus(ctx, n.Address()); st != node.StatusPending {
			continue
		}
		deps, err := s.g.DependenciesOf(ctx, n.Address())
		if err != nil {
			return nil, err
		}
		statuses := make([]node.Status, len(deps))
		for i, d := range deps {
			statuses[i], _ = s.g.NodeStatus(ctx, d.Address())
		}
		if keep(statuses) {
			out = append(out, n)
		}
	}
	return out, nil
}
