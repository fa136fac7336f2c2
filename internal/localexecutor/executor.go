package localexecutor

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vk/callgrid/internal/commit"
	"github.com/vk/callgrid/internal/ctxlog"
	"github.com/vk/callgrid/internal/events"
	"github.com/vk/callgrid/internal/executor"
	"github.com/vk/callgrid/internal/graph"
	"github.com/vk/callgrid/internal/node"
	"github.com/vk/callgrid/internal/nodestore"
	"github.com/vk/callgrid/internal/oracle"
	"github.com/vk/callgrid/internal/scheduler"
	"github.com/vk/callgrid/internal/workunit"
)

// Config tunes an Executor.
type Config struct {
	RunID string
	// Workers bounds how many nodes run at once. Zero means GOMAXPROCS.
	Workers int
	// FailFast cancels all outstanding work on the first failure.
	FailFast bool
}

// Deps are the collaborators of an Executor. Sink may be nil.
type Deps struct {
	Scheduler scheduler.Scheduler
	Graph     graph.Graph
	Oracle    *oracle.Oracle
	Commit    *commit.Protocol
	Submitter workunit.Submitter
	Sink      events.Sink
}

// Executor implements the executor.Executor interface for local execution.
type Executor struct {
	Deps
	cfg      Config
	newToken func() string
	now      func() time.Time
}

// outcome is what a worker reports back to the coordinator.
type outcome struct {
	n       *node.Node
	token   string
	err     error
	elapsed time.Duration
}

// New creates a new local executor.
func New(deps Deps, cfg Config) executor.Executor {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if deps.Sink == nil {
		deps.Sink = events.Nop{}
	}
	return &Executor{
		Deps:     deps,
		cfg:      cfg,
		newToken: func() string { return uuid.NewString() },
		now:      time.Now,
	}
}

func (e *Executor) Execute(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("runID", e.cfg.RunID)
	ctx = ctxlog.WithLogger(ctx, logger)

	total := len(e.Graph.AllNodes(ctx))
	logger.Debug("Executor starting.", "nodes", total, "workers", e.cfg.Workers, "failFast", e.cfg.FailFast)
	if total == 0 {
		return nil
	}

	// Workers run under runCtx; bookkeeping keeps using ctx so outcomes
	// are still recorded after a fail-fast cancel.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Both channels hold every node so neither side ever blocks on a send.
	readyChan := make(chan *node.Node, total)
	doneChan := make(chan outcome, total)
	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			e.worker(runCtx, readyChan, doneChan, workerID)
		}(i)
	}
	defer func() {
		close(readyChan)
		wg.Wait()
	}()

	runErr := &RunError{}
	running := 0
	for {
		if err := e.skipBlocked(ctx, runErr); err != nil {
			return err
		}
		if runCtx.Err() == nil {
			ready, err := e.Scheduler.Ready(ctx)
			if err != nil {
				return fmt.Errorf("failed to compute ready nodes: %w", err)
			}
			for _, n := range ready {
				if err := e.Graph.MarkRunning(ctx, n.Address()); err != nil {
					return err
				}
				e.emit(ctx, events.Event{Type: events.NodeStarted, Node: n.ID(), Role: n.Role().String()})
				readyChan <- n
				running++
			}
		}
		if running == 0 {
			break
		}

		res := <-doneChan
		running--
		if err := e.record(ctx, res, runErr); err != nil {
			return err
		}
		if res.err != nil && e.cfg.FailFast {
			logger.Warn("Fail-fast enabled, cancelling outstanding work.", "node", res.n.ID())
			cancel()
		}
	}

	if cause := runCtx.Err(); cause != nil {
		if err := e.skipPending(ctx, cause, runErr); err != nil {
			return err
		}
	}

	if len(runErr.Failures) > 0 {
		return runErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// worker is the processing loop of one concurrent worker.
func (e *Executor) worker(ctx context.Context, readyChan <-chan *node.Node, doneChan chan<- outcome, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for n := range readyChan {
		nodeCtx := ctxlog.WithLogger(ctx, logger.With("workerID", workerID, "node", n.ID()))
		start := e.now()
		token, err := e.runNode(nodeCtx, n)
		doneChan <- outcome{n: n, token: token, err: err, elapsed: e.now().Sub(start)}
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}

// runNode executes one node and verifies its output. It returns the attempt
// token, empty for nodes without work.
func (e *Executor) runNode(ctx context.Context, n *node.Node) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !n.HasWork() {
		return "", e.verify(n)
	}

	token := e.newToken()
	u, err := n.BuildWork(ctx, token)
	if err != nil {
		return token, err
	}

	if u.IsExternal() {
		if e.Submitter == nil {
			return token, fmt.Errorf("node %s needs a submitter to run its command", n.ID())
		}
		err = e.Submitter.Submit(ctx, u)
	} else {
		err = u.Run(ctx)
	}
	if err != nil {
		discard(ctx, u.Outputs)
		return token, err
	}

	if err := e.Commit.CommitOutput(ctx, n.ID(), n.Output(), u.Outputs); err != nil {
		discard(ctx, u.Outputs)
		return token, err
	}
	return token, e.verify(n)
}

func (e *Executor) verify(n *node.Node) error {
	if check, ok := n.CompletionOverride(); ok {
		if !check() {
			return fmt.Errorf("%w: %s", ErrOutputMissing, n.ID())
		}
		return nil
	}
	if missing := e.Oracle.Missing(n.Output()); len(missing) > 0 {
		return fmt.Errorf("%w: %s: %v", ErrOutputMissing, n.ID(), missing)
	}
	return nil
}

// discard removes what is left of a failed attempt's temp outputs.
func discard(ctx context.Context, temps []string) {
	for _, p := range temps {
		if err := os.RemoveAll(p); err != nil {
			ctxlog.FromContext(ctx).Debug("Could not remove temp output.", "path", p, "error", err)
		}
	}
}

func (e *Executor) record(ctx context.Context, res outcome, runErr *RunError) error {
	ev := events.Event{Node: res.n.ID(), Role: res.n.Role().String(), Elapsed: res.elapsed}
	if res.err != nil {
		if err := e.Graph.MarkFailed(ctx, res.n.Address(), res.err); err != nil {
			return err
		}
		if res.n.Role() == node.RoleCleanup {
			ctxlog.FromContext(ctx).Warn("Cleanup did not finish, leaving intermediates for the next pass.", "node", res.n.ID(), "error", res.err)
		} else {
			runErr.Failures = append(runErr.Failures, Failure{Node: res.n.ID(), Err: res.err})
		}
		ev.Type, ev.Err = events.NodeFailed, res.err
		e.emit(ctx, ev)
		return nil
	}

	paths := res.n.Output().Paths()
	if err := e.Graph.MarkCompleted(ctx, res.n.Address(), nodestore.Result{Paths: paths, Token: res.token, Elapsed: res.elapsed}); err != nil {
		return err
	}
	ev.Type, ev.Paths = events.NodeCompleted, paths
	e.emit(ctx, ev)
	return nil
}

// skipBlocked skips pending nodes behind a failure until none remain, so a
// skip propagates through the whole downstream closure.
func (e *Executor) skipBlocked(ctx context.Context, runErr *RunError) error {
	for {
		blocked, err := e.Scheduler.Blocked(ctx)
		if err != nil {
			return fmt.Errorf("failed to compute blocked nodes: %w", err)
		}
		if len(blocked) == 0 {
			return nil
		}
		for _, n := range blocked {
			if err := e.skip(ctx, n, ErrUpstreamFailed, runErr); err != nil {
				return err
			}
		}
	}
}

func (e *Executor) skipPending(ctx context.Context, cause error, runErr *RunError) error {
	for _, n := range e.Graph.AllNodes(ctx) {
		if st, _ := e.Graph.NodeStatus(ctx, n.Address()); st != node.StatusPending {
			continue
		}
		if err := e.skip(ctx, n, cause, runErr); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) skip(ctx context.Context, n *node.Node, reason error, runErr *RunError) error {
	if err := e.Graph.MarkSkipped(ctx, n.Address(), reason); err != nil {
		return err
	}
	runErr.Skipped++
	e.emit(ctx, events.Event{Type: events.NodeSkipped, Node: n.ID(), Role: n.Role().String(), Err: reason})
	return nil
}

func (e *Executor) emit(ctx context.Context, ev events.Event) {
	ev.RunID = e.cfg.RunID
	ev.Time = e.now()
	e.Sink.Emit(ctx, ev)
}

