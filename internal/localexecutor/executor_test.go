package localexecutor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/callgrid/internal/commit"
	"github.com/vk/callgrid/internal/events"
	"github.com/vk/callgrid/internal/executor"
	"github.com/vk/callgrid/internal/graph"
	"github.com/vk/callgrid/internal/inmemorystore"
	"github.com/vk/callgrid/internal/inmemorytopology"
	"github.com/vk/callgrid/internal/node"
	"github.com/vk/callgrid/internal/nodeid"
	"github.com/vk/callgrid/internal/oracle"
	"github.com/vk/callgrid/internal/output"
	"github.com/vk/callgrid/internal/provenance"
	"github.com/vk/callgrid/internal/scheduler"
	"github.com/vk/callgrid/internal/workunit"
)

type fixture struct {
	dir  string
	g    graph.Graph
	sink *recordingSink
}

type recordingSink struct {
	mu    sync.Mutex
	types map[string][]events.Type
}

func (r *recordingSink) Emit(_ context.Context, ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[ev.Node] = append(r.types[ev.Node], ev.Type)
}

// fakeSubmitter runs external units by writing the command text into every
// temp output, or fails with the configured exit code.
type fakeSubmitter struct {
	mu       sync.Mutex
	failCode map[string]int
	seen     []string
}

func (f *fakeSubmitter) Submit(_ context.Context, u *workunit.WorkUnit) error {
	f.mu.Lock()
	f.seen = append(f.seen, u.ID)
	code := f.failCode[u.ID]
	f.mu.Unlock()
	for _, p := range u.Outputs {
		if err := os.WriteFile(p, []byte(u.Command), 0o644); err != nil {
			return err
		}
	}
	if code != 0 {
		return &workunit.ExitError{Unit: u.ID, Code: code, Stderr: "tool crashed"}
	}
	return nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		dir:  t.TempDir(),
		g:    graph.New(inmemorytopology.New(), inmemorystore.New()),
		sink: &recordingSink{types: map[string][]events.Type{}},
	}
}

func (f *fixture) executor(t *testing.T, plan []*node.Node, sub workunit.Submitter, cfg Config) executor.Executor {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.g.Load(ctx, plan))
	prov, err := provenance.New("v1", "test", "")
	require.NoError(t, err)
	o := oracle.New()
	cfg.RunID = "run-1"
	return New(Deps{
		Scheduler: scheduler.New(f.g),
		Graph:     f.g,
		Oracle:    o,
		Commit:    commit.New(o, prov, cfg.RunID),
		Submitter: sub,
		Sink:      f.sink,
	}, cfg)
}

func (f *fixture) path(name string) string { return filepath.Join(f.dir, name) }

// inProcess builds a stage whose in-process body writes content.
func inProcess(t *testing.T, name, final string, body func(ctx context.Context, temp string) error, upstream ...*node.Node) *node.Node {
	t.Helper()
	n, err := node.New(node.Spec{
		Address:  nodeid.New("stage", name),
		Params:   node.Params{Kind: "test", Name: name, Role: node.RoleStage},
		Upstream: upstream,
		Output:   output.NewSingle(final),
		Work: func(ctx context.Context, token string) (*workunit.WorkUnit, error) {
			temp := output.TempPath(final, token)
			return &workunit.WorkUnit{
				Outputs: []string{temp},
				Run:     func(ctx context.Context) error { return body(ctx, temp) },
			}, nil
		},
	})
	require.NoError(t, err)
	return n
}

func writes(content string) func(context.Context, string) error {
	return func(_ context.Context, temp string) error {
		return os.WriteFile(temp, []byte(content), 0o644)
	}
}

func external(t *testing.T, name, final, command string, upstream ...*node.Node) *node.Node {
	t.Helper()
	n, err := node.New(node.Spec{
		Address:  nodeid.New("stage", name),
		Params:   node.Params{Kind: "test", Name: name, Role: node.RoleStage},
		Upstream: upstream,
		Output:   output.NewSingle(final),
		Work: func(ctx context.Context, token string) (*workunit.WorkUnit, error) {
			return &workunit.WorkUnit{Command: command, Outputs: []string{output.TempPath(final, token)}}, nil
		},
	})
	require.NoError(t, err)
	return n
}

func status(t *testing.T, g graph.Graph, n *node.Node) node.Status {
	t.Helper()
	st, ok := g.NodeStatus(context.Background(), n.Address())
	require.True(t, ok)
	return st
}

func TestExecute_Diamond(t *testing.T) {
	f := newFixture(t)
	a := inProcess(t, "a", f.path("a.vcf"), writes("a"))
	b := external(t, "b", f.path("b.vcf"), "run b", a)
	c := external(t, "c", f.path("c.vcf"), "run c", a)
	d := inProcess(t, "d", f.path("d.vcf"), writes("d"), b, c)
	sub := &fakeSubmitter{}

	err := f.executor(t, []*node.Node{a, b, c, d}, sub, Config{Workers: 2}).Execute(context.Background())
	require.NoError(t, err)

	for _, n := range []*node.Node{a, b, c, d} {
		assert.Equal(t, node.StatusCompleted, status(t, f.g, n), n.ID())
	}
	got, err := os.ReadFile(f.path("b.vcf"))
	require.NoError(t, err)
	assert.Equal(t, "run b", string(got))
	assert.ElementsMatch(t, []string{"stage.b", "stage.c"}, sub.seen)

	leftovers, _ := filepath.Glob(f.path("*.temp-*"))
	assert.Empty(t, leftovers, "temp outputs are renamed into place")

	res, ok := f.g.Result(context.Background(), d.Address())
	require.True(t, ok)
	assert.Equal(t, []string{f.path("d.vcf")}, res.Paths)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, []events.Type{events.NodeStarted, events.NodeCompleted}, f.sink.types["stage.d"])
}

func TestExecute_FailureSkipsOnlyDependents(t *testing.T) {
	f := newFixture(t)
	bad := external(t, "bad", f.path("bad.vcf"), "boom")
	downstream := inProcess(t, "downstream", f.path("down.vcf"), writes("x"), bad)
	further := inProcess(t, "further", f.path("further.vcf"), writes("x"), downstream)
	independent := inProcess(t, "independent", f.path("ind.vcf"), writes("ok"))
	sub := &fakeSubmitter{failCode: map[string]int{"stage.bad": 3}}

	err := f.executor(t, []*node.Node{bad, downstream, further, independent}, sub, Config{Workers: 2}).Execute(context.Background())
	require.Error(t, err)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, []string{"stage.bad"}, runErr.Failed())
	assert.Equal(t, 2, runErr.Skipped)
	var exitErr *workunit.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Code)

	assert.Equal(t, node.StatusFailed, status(t, f.g, bad))
	assert.Equal(t, node.StatusSkipped, status(t, f.g, downstream))
	assert.Equal(t, node.StatusSkipped, status(t, f.g, further))
	assert.Equal(t, node.StatusCompleted, status(t, f.g, independent))
	assert.ErrorIs(t, f.g.Error(context.Background(), further.Address()), ErrUpstreamFailed)

	assert.NoFileExists(t, f.path("bad.vcf"), "a failed unit never reaches its final path")
	leftovers, _ := filepath.Glob(f.path("bad.temp-*"))
	assert.Empty(t, leftovers)
}

func TestExecute_PartialWriteThenCrash(t *testing.T) {
	f := newFixture(t)
	n := inProcess(t, "crash", f.path("crash.vcf"), func(_ context.Context, temp string) error {
		if err := os.WriteFile(temp, []byte("##fileformat=VCFv4.2\n"), 0o644); err != nil {
			return err
		}
		return errors.New("killed")
	})

	err := f.executor(t, []*node.Node{n}, nil, Config{}).Execute(context.Background())
	require.Error(t, err)
	assert.NoFileExists(t, f.path("crash.vcf"))
	assert.False(t, oracle.New().IsComplete(n.Output()))
}

func TestExecute_EmptyOutputFails(t *testing.T) {
	f := newFixture(t)
	n := inProcess(t, "empty", f.path("empty.vcf"), writes(""))

	err := f.executor(t, []*node.Node{n}, nil, Config{}).Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, commit.ErrIncomplete)
	assert.NoFileExists(t, f.path("empty.vcf"))
}

func TestExecute_ExternalWithoutSubmitter(t *testing.T) {
	f := newFixture(t)
	n := external(t, "x", f.path("x.vcf"), "echo")

	err := f.executor(t, []*node.Node{n}, nil, Config{}).Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs a submitter")
}

func TestExecute_GroupVerifiesOutputs(t *testing.T) {
	f := newFixture(t)
	a := inProcess(t, "a", f.path("a.vcf"), writes("a"))
	group, err := node.New(node.Spec{
		Address:  nodeid.New("group", "all"),
		Params:   node.Params{Kind: "group", Name: "all", Role: node.RoleGroup},
		Upstream: []*node.Node{a},
		Output:   output.Union(a.Output()),
	})
	require.NoError(t, err)

	err = f.executor(t, []*node.Node{a, group}, nil, Config{}).Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, node.StatusCompleted, status(t, f.g, group))
}

func TestExecute_GroupWithMissingOutputFails(t *testing.T) {
	f := newFixture(t)
	group, err := node.New(node.Spec{
		Address: nodeid.New("group", "all"),
		Params:  node.Params{Kind: "group", Name: "all", Role: node.RoleGroup},
		Output:  output.NewMulti(f.path("never.vcf")),
	})
	require.NoError(t, err)

	err = f.executor(t, []*node.Node{group}, nil, Config{}).Execute(context.Background())
	assert.ErrorIs(t, err, ErrOutputMissing)
}

func TestExecute_FailFast(t *testing.T) {
	f := newFixture(t)
	bad := external(t, "bad", f.path("bad.vcf"), "boom")
	slow := inProcess(t, "slow", f.path("slow.vcf"), func(ctx context.Context, _ string) error {
		<-ctx.Done()
		return ctx.Err()
	})
	after := inProcess(t, "after", f.path("after.vcf"), writes("x"), slow)
	sub := &fakeSubmitter{failCode: map[string]int{"stage.bad": 1}}

	err := f.executor(t, []*node.Node{bad, slow, after}, sub, Config{Workers: 2, FailFast: true}).Execute(context.Background())
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Contains(t, runErr.Failed(), "stage.bad")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, node.StatusSkipped, status(t, f.g, after))
}

func TestExecute_EmptyPlan(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.executor(t, nil, nil, Config{}).Execute(context.Background()))
}

func TestExecute_CleanupFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	n, err := node.New(node.Spec{
		Address: nodeid.New("cleanup", "c"),
		Params:  node.Params{Kind: "cleanup", Name: "c", Role: node.RoleCleanup},
		Output:  output.NewMulti(),
		Work: func(ctx context.Context, token string) (*workunit.WorkUnit, error) {
			return &workunit.WorkUnit{Run: func(context.Context) error { return errors.New("permission denied") }}, nil
		},
	})
	require.NoError(t, err)

	err = f.executor(t, []*node.Node{n}, nil, Config{}).Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, node.StatusFailed, status(t, f.g, n))
}
