package events

import (
	"context"
	"time"

	"github.com/vk/callgrid/internal/ctxlog"
)

// Type names a node lifecycle transition.
type Type string

const (
	RunStarted    Type = "run_started"
	RunFinished   Type = "run_finished"
	NodeStarted   Type = "node_started"
	NodeCompleted Type = "node_completed"
	NodeFailed    Type = "node_failed"
	NodeSkipped   Type = "node_skipped"
)

// Event is one notification. Node is empty for run-level events.
type Event struct {
	Type    Type
	RunID   string
	Node    string
	Role    string
	Paths   []string
	Err     error
	Elapsed time.Duration
	Time    time.Time
}

// Sink receives events. Emit must not block the caller for long and must be
// safe for concurrent use.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// Nop discards events.
type Nop struct{}

func (Nop) Emit(context.Context, Event) {}

// Multi fans events out to every sink in order.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, ev Event) {
	for _, s := range m {
		s.Emit(ctx, ev)
	}
}

// LogSink writes events to the context logger.
type LogSink struct{}

func (LogSink) Emit(ctx context.Context, ev Event) {
	logger := ctxlog.FromContext(ctx)
	if ev.Node != "" {
		logger = logger.With("node", ev.Node, "role", ev.Role)
	}
	switch ev.Type {
	case RunStarted:
		logger.Info("🚀 Run started")
	case RunFinished:
		if ev.Err != nil {
			logger.Error("🛑 Run finished with failures", "error", ev.Err, "elapsed", ev.Elapsed)
			return
		}
		logger.Info("🏁 Run finished", "elapsed", ev.Elapsed)
	case NodeStarted:
		logger.Info("▶️ Starting node")
	case NodeCompleted:
		logger.Info("✅ Finished node", "paths", ev.Paths, "elapsed", ev.Elapsed)
	case NodeFailed:
		logger.Error("❌ Node failed", "error", ev.Err, "elapsed", ev.Elapsed)
	case NodeSkipped:
		logger.Warn("⏭️ Skipping node", "reason", ev.Err)
	default:
		logger.Debug("Unknown event", "type", ev.Type)
	}
}
