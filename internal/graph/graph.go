package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vk/callgrid/internal/ctxlog"
	"github.com/vk/callgrid/internal/node"
	"github.com/vk/callgrid/internal/nodeid"
	"github.com/vk/callgrid/internal/nodestore"
	"github.com/vk/callgrid/internal/topologystore"
)

// ErrInvalidTransition is returned by Mark* for an illegal status change.
var ErrInvalidTransition = errors.New("invalid node status transition")

// Manager implements Graph over a topology store and a node store.
type Manager struct {
	topo  topologystore.Store
	state nodestore.Store
	mu    sync.Mutex
}

// New creates a graph facade over the given stores.
func New(ts topologystore.Store, ns nodestore.Store) Graph {
	return &Manager{topo: ts, state: ns}
}

// Load registers plan nodes and the edges between them.
func (m *Manager) Load(ctx context.Context, plan []*node.Node) error {
	logger := ctxlog.FromContext(ctx)
	inPlan := make(map[string]struct{}, len(plan))
	for _, n := range plan {
		if err := m.topo.AddNode(ctx, n); err != nil {
			return err
		}
		inPlan[n.ID()] = struct{}{}
	}
	edges := 0
	for _, n := range plan {
		for _, up := range n.Upstream() {
			if _, ok := inPlan[up.ID()]; !ok {
				continue
			}
			if err := m.topo.AddDependency(ctx, up.Address(), n.Address()); err != nil {
				return err
			}
			edges++
		}
	}
	logger.Debug("Plan loaded into graph.", "nodes", len(plan), "edges", edges)
	return nil
}

func (m *Manager) Node(ctx context.Context, id nodeid.Address) (*node.Node, bool) {
	return m.topo.GetNode(ctx, id)
}

func (m *Manager) DependenciesOf(ctx context.Context, id nodeid.Address) ([]*node.Node, error) {
	addrs, err := m.topo.DependenciesOf(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.resolve(ctx, addrs)
}

func (m *Manager) DependentsOf(ctx context.Context, id nodeid.Address) ([]*node.Node, error) {
	addrs, err := m.topo.DependentsOf(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.resolve(ctx, addrs)
}

func (m *Manager) resolve(ctx context.Context, addrs []nodeid.Address) ([]*node.Node, error) {
	nodes := make([]*node.Node, 0, len(addrs))
	for _, a := range addrs {
		n, ok := m.topo.GetNode(ctx, a)
		if !ok {
			return nil, fmt.Errorf("node '%s' vanished from topology", a)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (m *Manager) NodeStatus(ctx context.Context, id nodeid.Address) (node.Status, bool) {
	if _, ok := m.topo.GetNode(ctx, id); !ok {
		return node.StatusPending, false
	}
	s, err := m.state.GetStatus(ctx, id)
	if err != nil {
		ctxlog.FromContext(ctx).Error("Failed to read node status.", "id", id.String(), "error", err)
		return node.StatusPending, false
	}
	return s, true
}

func (m *Manager) AllNodes(ctx context.Context) []*node.Node {
	return m.topo.AllNodes(ctx)
}

func (m *Manager) MarkRunning(ctx context.Context, id nodeid.Address) error {
	return m.transition(ctx, id, node.StatusPending, node.StatusRunning, nil)
}

func (m *Manager) MarkCompleted(ctx context.Context, id nodeid.Address, result nodestore.Result) error {
	return m.transition(ctx, id, node.StatusRunning, node.StatusCompleted, func() error {
		return m.state.SetResult(ctx, id, result)
	})
}

func (m *Manager) MarkFailed(ctx context.Context, id nodeid.Address, nodeErr error) error {
	return m.transition(ctx, id, node.StatusRunning, node.StatusFailed, func() error {
		return m.state.SetError(ctx, id, nodeErr)
	})
}

func (m *Manager) MarkSkipped(ctx context.Context, id nodeid.Address, reason error) error {
	return m.transition(ctx, id, node.StatusPending, node.StatusSkipped, func() error {
		if reason == nil {
			return nil
		}
		return m.state.SetError(ctx, id, reason)
	})
}

func (m *Manager) transition(ctx context.Context, id nodeid.Address, from, to node.Status, record func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.topo.GetNode(ctx, id); !ok {
		return fmt.Errorf("node '%s' not found in graph", id)
	}
	cur, err := m.state.GetStatus(ctx, id)
	if err != nil {
		return err
	}
	if cur != from {
		return fmt.Errorf("%w: %s is %v, cannot become %v", ErrInvalidTransition, id, cur, to)
	}
	if record != nil {
		if err := record(); err != nil {
			return err
		}
	}
	return m.state.SetStatus(ctx, id, to)
}

func (m *Manager) Result(ctx context.Context, id nodeid.Address) (nodestore.Result, bool) {
	r, ok, err := m.state.GetResult(ctx, id)
	if err != nil {
		return nodestore.Result{}, false
	}
	return r, ok
}

func (m *Manager) Error(ctx context.Context, id nodeid.Address) error {
	err, lookupErr := m.state.GetError(ctx, id)
	if lookupErr != nil {
		return lookupErr
	}
	return err
}

func (m *Manager) Counts(ctx context.Context) map[node.Status]int {
	counts := make(map[node.Status]int)
	for _, n := range m.topo.AllNodes(ctx) {
		s, err := m.state.GetStatus(ctx, n.Address())
		if err != nil {
			continue
		}
		counts[s]++
	}
	return counts
}
