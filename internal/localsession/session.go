// Package localsession provides a concrete implementation of the session.Session
// and session.SessionFactory interfaces for local, in-process execution.
package localsession

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/callgrid/internal/commit"
	"github.com/vk/callgrid/internal/ctxlog"
	"github.com/vk/callgrid/internal/executor"
	"github.com/vk/callgrid/internal/graph"
	"github.com/vk/callgrid/internal/inmemorystore"
	"github.com/vk/callgrid/internal/inmemorytopology"
	"github.com/vk/callgrid/internal/localexecutor"
	"github.com/vk/callgrid/internal/provenance"
	"github.com/vk/callgrid/internal/resolver"
	"github.com/vk/callgrid/internal/scheduler"
	"github.com/vk/callgrid/internal/session"
)

// SessionFactory implements session.SessionFactory for local runs.
type SessionFactory struct{}

// NewSession loads plan into a fresh in-memory graph and wires the
// scheduler, commit protocol and executor around it.
func (f *SessionFactory) NewSession(
	ctx context.Context,
	plan *resolver.Plan,
	prov provenance.Provenance,
	opts session.Options,
) (session.Session, error) {
	logger := ctxlog.FromContext(ctx)
	if plan == nil {
		return nil, errors.New("a session needs a plan")
	}
	if opts.Oracle == nil {
		return nil, errors.New("a session needs a completion oracle")
	}

	g := graph.New(inmemorytopology.New(), inmemorystore.New())
	if err := g.Load(ctx, plan.Nodes); err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}

	commitOpts := []commit.Option{commit.WithRecommit(opts.Recommit)}
	if opts.Publisher != nil {
		commitOpts = append(commitOpts, commit.WithPublisher(opts.Publisher))
	}
	exec := localexecutor.New(localexecutor.Deps{
		Scheduler: scheduler.New(g),
		Graph:     g,
		Oracle:    opts.Oracle,
		Commit:    commit.New(opts.Oracle, prov, opts.RunID, commitOpts...),
		Submitter: opts.Submitter,
		Sink:      opts.Sink,
	}, localexecutor.Config{
		RunID:    opts.RunID,
		Workers:  opts.Workers,
		FailFast: opts.FailFast,
	})

	logger.Debug("Local session ready.", "runID", opts.RunID, "nodes", len(plan.Nodes), "workers", opts.Workers)
	return &Session{executor: exec, graph: g}, nil
}

// Session implements session.Session for local runs.
type Session struct {
	executor executor.Executor
	graph    graph.Graph
}

// GetExecutor returns the executor that was created and wired up by the factory.
func (s *Session) GetExecutor() (executor.Executor, error) {
	return s.executor, nil
}

// Graph returns the session's run state.
func (s *Session) Graph() graph.Graph { return s.graph }

// Close logs the final status tally. The in-memory stores need no teardown.
func (s *Session) Close(ctx context.Context) error {
	counts := s.graph.Counts(ctx)
	args := make([]any, 0, 2*len(counts))
	for status, n := range counts {
		args = append(args, status.String(), n)
	}
	ctxlog.FromContext(ctx).Debug("Local session closed.", args...)
	return nil
}
