package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vk/callgrid/internal/ctxlog"
	"github.com/vk/callgrid/internal/events"
	"github.com/vk/callgrid/internal/publish"
	"github.com/vk/callgrid/internal/session"
	"github.com/vk/callgrid/internal/submit"
	"github.com/vk/callgrid/internal/workunit"
)

// Run builds, resolves and executes the configured targets.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	a.healthCheckServer()
	defer a.closeHealthCheckServer()

	plan, res, err := a.Plan(ctx)
	if err != nil {
		return err
	}
	if plan.IsEmpty() {
		a.logger.Info("✨ Everything is up to date, nothing to run.", "targets", len(res.Targets))
		return nil
	}

	runID := uuid.NewString()
	logger := a.logger.With("runID", runID)
	ctx = ctxlog.WithLogger(ctx, logger)

	sink, closeSink, err := a.sink(ctx)
	if err != nil {
		return err
	}
	defer closeSink()

	opts := session.Options{
		RunID:     runID,
		Workers:   a.config.WorkerCount,
		FailFast:  a.config.FailFast,
		Oracle:    a.oracle,
		Submitter: a.submitter(),
		Sink:      sink,
		Recommit:  a.config.Recommit,
	}
	if a.config.S3.Enabled() {
		pub, err := publish.NewS3Publisher(a.config.S3)
		if err != nil {
			return fmt.Errorf("failed to configure publishing: %w", err)
		}
		opts.Publisher = pub
	}

	sess, err := a.sessions.NewSession(ctx, plan, res.Provenance, opts)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer sess.Close(ctx)
	a.setCurrent(runID, sess.Graph())

	exec, err := sess.GetExecutor()
	if err != nil {
		return err
	}

	start := time.Now()
	logger.Debug("Executing plan.", "nodes", len(plan.Nodes), "elided", len(plan.Elided), "provenance", res.Provenance.String())
	sink.Emit(ctx, events.Event{Type: events.RunStarted, RunID: runID, Time: start})

	runErr := exec.Execute(ctx)

	sink.Emit(ctx, events.Event{Type: events.RunFinished, RunID: runID, Err: runErr, Elapsed: time.Since(start), Time: time.Now()})
	if runErr != nil {
		return fmt.Errorf("execution failed: %w", runErr)
	}
	a.logger.Debug("App.Run method finished.")
	return nil
}

func (a *App) submitter() workunit.Submitter {
	if a.config.Executor == ExecutorSlurm {
		s := submit.NewSlurm(a.config.SlurmScriptDir)
		s.Account = a.config.SlurmAccount
		return s
	}
	return submit.NewLocal()
}

// sink returns the event sink of a run and a function closing it.
func (a *App) sink(ctx context.Context) (events.Sink, func(), error) {
	if a.config.NotifyURL == "" {
		return events.LogSink{}, func() {}, nil
	}
	sio, err := events.DialSocketIO(ctx, events.SocketIOConfig{URL: a.config.NotifyURL, ConnectTimeout: 10 * time.Second})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to notify endpoint: %w", err)
	}
	return events.Multi{events.LogSink{}, sio}, func() { sio.Close() }, nil
}
