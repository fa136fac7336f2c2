// Package session defines the core interfaces for creating and managing an
// execution session. It abstracts away the details of local vs. remote execution.
package session

import (
	"context"

	"github.com/vk/callgrid/internal/commit"
	"github.com/vk/callgrid/internal/events"
	"github.com/vk/callgrid/internal/executor"
	"github.com/vk/callgrid/internal/graph"
	"github.com/vk/callgrid/internal/oracle"
	"github.com/vk/callgrid/internal/provenance"
	"github.com/vk/callgrid/internal/resolver"
	"github.com/vk/callgrid/internal/workunit"
)

// Options are the per-run settings of a Session.
type Options struct {
	RunID    string
	Workers  int
	FailFast bool
	// Oracle is shared with the builder and resolver so that completion
	// results cached while planning stay coherent with commits.
	Oracle    *oracle.Oracle
	Submitter workunit.Submitter
	Sink      events.Sink
	// Publisher, when set, receives every committed deliverable before its
	// marker is written.
	Publisher commit.Publisher
	// Recommit allows replacing committed outputs.
	Recommit bool
}

// SessionFactory creates an execution Session. Different implementations can
// support various backends, such as local or distributed execution.
type SessionFactory interface {
	NewSession(
		ctx context.Context,
		plan *resolver.Plan,
		prov provenance.Provenance,
		opts Options,
	) (Session, error)
}

// Session represents a single execution run and manages its lifecycle.
type Session interface {
	GetExecutor() (executor.Executor, error)
	// Graph exposes run state, e.g. for a status endpoint.
	Graph() graph.Graph
	// Close releases any resources held by the session. It accepts a context
	// to allow for graceful cleanup operations.
	Close(ctx context.Context) error
}
