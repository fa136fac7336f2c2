package inmemorystore

import (
	"context"
	"slices"
	"sync"

	"github.com/vk/callgrid/internal/node"
	"github.com/vk/callgrid/internal/nodeid"
	"github.com/vk/callgrid/internal/nodestore"
)

// Store is an in-memory implementation of nodestore.Store using sync.Map
// for fine-grained concurrent access without global lock contention.
//
// Each node's state is independent and the key space is known up front
// (every plan node), which is the access pattern sync.Map is built for.
type Store struct {
	states  sync.Map // Key: node ID string, Value: node.Status
	results sync.Map // Key: node ID string, Value: nodestore.Result
	errors  sync.Map // Key: node ID string, Value: error
}

// New creates a new, empty in-memory node state store.
func New() nodestore.Store {
	return &Store{}
}

// SetStatus updates the execution status of a specific node.
func (s *Store) SetStatus(ctx context.Context, id nodeid.Address, status node.Status) error {
	s.states.Store(id.String(), status)
	return nil
}

// GetStatus retrieves the execution status of a specific node.
// If a status has not been set, it returns StatusPending.
func (s *Store) GetStatus(ctx context.Context, id nodeid.Address) (node.Status, error) {
	status, ok := s.states.Load(id.String())
	if !ok {
		return node.StatusPending, nil
	}
	return status.(node.Status), nil
}

// SetResult records the result of a completed node.
func (s *Store) SetResult(ctx context.Context, id nodeid.Address, result nodestore.Result) error {
	result.Paths = slices.Clone(result.Paths)
	s.results.Store(id.String(), result)
	return nil
}

// GetResult retrieves the recorded result of a completed node.
func (s *Store) GetResult(ctx context.Context, id nodeid.Address) (nodestore.Result, bool, error) {
	v, ok := s.results.Load(id.String())
	if !ok {
		return nodestore.Result{}, false, nil
	}
	r := v.(nodestore.Result)
	r.Paths = slices.Clone(r.Paths)
	return r, true, nil
}

// SetError records the failure error of a node.
func (s *Store) SetError(ctx context.Context, id nodeid.Address, nodeErr error) error {
	s.errors.Store(id.String(), nodeErr)
	return nil
}

// GetError retrieves the recorded error of a failed node.
func (s *Store) GetError(ctx context.Context, id nodeid.Address) (error, error) {
	err, ok := s.errors.Load(id.String())
	if !ok {
		return nil, nil // If not found, there is no error.
	}
	return err.(error), nil
}
