package inmemorytopology

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vk/callgrid/internal/node"
	"github.com/vk/callgrid/internal/nodeid"
	"github.com/vk/callgrid/internal/topologystore"
)

// Store implements the topologystore.Store interface using maps and a mutex
// for thread-safe concurrent access.
type Store struct {
	mu    sync.RWMutex
	order []string
	nodes map[string]*node.Node
	deps  map[string]map[string]struct{} // Key: node ID, Value: set of dependency IDs
	rdeps map[string]map[string]struct{} // Key: node ID, Value: set of dependent IDs
}

// New creates a new, empty in-memory topology store.
func New() topologystore.Store {
	return &Store{
		nodes: make(map[string]*node.Node),
		deps:  make(map[string]map[string]struct{}),
		rdeps: make(map[string]map[string]struct{}),
	}
}

// AddNode adds a new node to the store.
func (s *Store) AddNode(ctx context.Context, n *node.Node) error {
	if n == nil {
		return fmt.Errorf("cannot add a nil node")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := n.ID()
	if _, exists := s.nodes[key]; exists {
		// Adding the same node twice is not an error, it's idempotent.
		return nil
	}
	s.nodes[key] = n
	s.order = append(s.order, key)
	return nil
}

// AddDependency creates a dependency link from one node to another.
func (s *Store) AddDependency(ctx context.Context, from, to nodeid.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fromKey := from.String()
	toKey := to.String()

	if _, exists := s.nodes[fromKey]; !exists {
		return fmt.Errorf("dependency source node '%s' not found in topology", fromKey)
	}
	if _, exists := s.nodes[toKey]; !exists {
		return fmt.Errorf("dependency target node '%s' not found in topology", toKey)
	}
	if fromKey == toKey {
		return fmt.Errorf("node '%s' cannot depend on itself", toKey)
	}

	link(s.deps, toKey, fromKey)
	link(s.rdeps, fromKey, toKey)
	return nil
}

func link(m map[string]map[string]struct{}, a, b string) {
	if m[a] == nil {
		m[a] = make(map[string]struct{})
	}
	m[a][b] = struct{}{}
}

// GetNode retrieves a single node by its address.
func (s *Store) GetNode(ctx context.Context, id nodeid.Address) (*node.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id.String()]
	return n, ok
}

// AllNodes returns a slice of all nodes in insertion order.
func (s *Store) AllNodes(ctx context.Context) []*node.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]*node.Node, 0, len(s.order))
	for _, key := range s.order {
		nodes = append(nodes, s.nodes[key])
	}
	return nodes
}

// DependenciesOf returns the addresses of all nodes that the given node depends on.
func (s *Store) DependenciesOf(ctx context.Context, id nodeid.Address) ([]nodeid.Address, error) {
	return s.edges(s.deps, id)
}

// DependentsOf returns the addresses of all nodes that depend on the given node.
func (s *Store) DependentsOf(ctx context.Context, id nodeid.Address) ([]nodeid.Address, error) {
	return s.edges(s.rdeps, id)
}

func (s *Store) edges(m map[string]map[string]struct{}, id nodeid.Address) ([]nodeid.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := id.String()
	if _, exists := s.nodes[key]; !exists {
		return nil, fmt.Errorf("node '%s' not found in topology", key)
	}

	set := m[key]
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]nodeid.Address, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.nodes[k].Address())
	}
	return out, nil
}
