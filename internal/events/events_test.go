package events

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/callgrid/internal/ctxlog"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Emit(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func TestMulti_FansOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Multi{a, Nop{}, b}.Emit(context.Background(), Event{Type: NodeStarted, Node: "stage.x"})
	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	assert.Equal(t, "stage.x", b.events[0].Node)
}

func TestLogSink(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := ctxlog.WithLogger(context.Background(), logger)

	LogSink{}.Emit(ctx, Event{Type: NodeFailed, RunID: "r1", Node: "stage.filter", Role: "stage", Err: errors.New("exit 1")})
	LogSink{}.Emit(ctx, Event{Type: NodeSkipped, RunID: "r1", Node: "stage.snps", Role: "stage"})

	out := buf.String()
	assert.Contains(t, out, "❌ Node failed")
	assert.Contains(t, out, "node=stage.filter")
	assert.Contains(t, out, "error=\"exit 1\"")
	assert.Contains(t, out, "⏭️ Skipping node")
}

func TestPayload(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p := Payload(Event{
		Type:    NodeCompleted,
		RunID:   "r1",
		Node:    "stage.genotype_gvcf.shard[2]",
		Role:    "shard",
		Paths:   []string{"/out/a_2.vcf.gz"},
		Elapsed: 1500 * time.Millisecond,
		Time:    ts,
	})
	assert.Equal(t, "node_completed", p["type"])
	assert.Equal(t, "stage.genotype_gvcf.shard[2]", p["node"])
	assert.Equal(t, int64(1500), p["elapsed_ms"])
	assert.Equal(t, "2024-03-01T12:00:00Z", p["time"])
	assert.NotContains(t, p, "error")

	run := Payload(Event{Type: RunFinished, RunID: "r1", Err: errors.New("2 nodes failed"), Time: ts})
	assert.NotContains(t, run, "node")
	assert.Equal(t, "2 nodes failed", run["error"])
}
