package builder

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/vk/callgrid/internal/cleanup"
	"github.com/vk/callgrid/internal/config"
	"github.com/vk/callgrid/internal/ctxlog"
	"github.com/vk/callgrid/internal/node"
	"github.com/vk/callgrid/internal/nodeid"
	"github.com/vk/callgrid/internal/oracle"
	"github.com/vk/callgrid/internal/output"
	"github.com/vk/callgrid/internal/provenance"
	"github.com/vk/callgrid/internal/scatter"
	"github.com/zclconf/go-cty/cty"
)

// Reference is the reference data every stage may use.
type Reference struct {
	Genome string
	Mask   string
	// Contigs is the contig list or BED file region and VCF scatters
	// partition.
	Contigs string
}

// Request describes one run of a pipeline.
type Request struct {
	// Targets are block references such as "group.callset". Empty selects
	// every block nothing else depends on.
	Targets []string
	Samples []string
	Prefix  string
	// Shards is the shard count of scattered stages that do not set one.
	Shards     int
	BaseDir    string
	ScratchDir string
	// LogDir, when set, receives one log file per work unit attempt.
	LogDir string
	Ref    Reference
}

func (r Request) validate() error {
	var errs []error
	if r.BaseDir == "" || !filepath.IsAbs(r.BaseDir) {
		errs = append(errs, fmt.Errorf("base directory %q must be an absolute path", r.BaseDir))
	}
	if r.ScratchDir != "" && !filepath.IsAbs(r.ScratchDir) {
		errs = append(errs, fmt.Errorf("scratch directory %q must be an absolute path", r.ScratchDir))
	}
	if !nodeid.ValidName(r.Prefix) {
		errs = append(errs, fmt.Errorf("invalid run prefix %q", r.Prefix))
	}
	if r.Shards < 1 {
		errs = append(errs, fmt.Errorf("%w: default shard count %d", scatter.ErrInvalidShards, r.Shards))
	}
	seen := make(map[string]bool, len(r.Samples))
	for _, s := range r.Samples {
		if s == "" {
			errs = append(errs, errors.New("sample names cannot be empty"))
			continue
		}
		if seen[s] {
			errs = append(errs, fmt.Errorf("duplicate sample %q", s))
		}
		seen[s] = true
	}
	return errors.Join(errs...)
}

// Result is the node graph of one run.
type Result struct {
	Provenance provenance.Provenance
	// Targets are the nodes of the requested references, in request order.
	Targets []*node.Node
	// Nodes holds every built node by address.
	Nodes map[string]*node.Node

	refs map[string][]*node.Node
}

// Lookup returns the nodes a block reference expanded into.
func (r *Result) Lookup(ref string) ([]*node.Node, bool) {
	ns, ok := r.refs[ref]
	return ns, ok
}

// Builder builds node graphs for one pipeline definition.
type Builder struct {
	pipeline *config.Pipeline
	oracle   *oracle.Oracle
}

// New returns a Builder for p. The oracle backs the completion test of
// cleanup nodes.
func New(p *config.Pipeline, o *oracle.Oracle) *Builder {
	return &Builder{pipeline: p, oracle: o}
}

// Build expands the request's targets into nodes.
func (b *Builder) Build(ctx context.Context, req Request) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("invalid run request: %w", err)
	}
	if err := b.check(); err != nil {
		return nil, err
	}
	prov, err := provenance.New(b.pipeline.Version, b.pipeline.Name, b.pipeline.Hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidPipeline, err)
	}

	targets := req.Targets
	if len(targets) == 0 {
		targets = b.sinks()
	}

	r := &run{
		Builder:  b,
		ctx:      ctx,
		req:      req,
		prov:     prov,
		base:     baseVars(b.pipeline, req),
		products: make(map[string][]*node.Node),
		visiting: make(map[string]bool),
		nodes:    make(map[string]*node.Node),
	}
	res := &Result{Provenance: prov}
	for _, ref := range targets {
		ns, err := r.expand(ref)
		if err != nil {
			return nil, err
		}
		res.Targets = append(res.Targets, ns...)
	}
	res.Nodes = r.nodes
	res.refs = r.products

	logger.Debug("Built node graph.", "provenance", prov.String(), "targets", targets, "nodes", len(r.nodes))
	return res, nil
}

// sinks returns every stage, group and cleanup no other block depends on,
// in declaration order.
func (b *Builder) sinks() []string {
	var refs []string
	for _, s := range b.pipeline.Stages {
		refs = append(refs, config.KindStage+"."+s.Name)
	}
	for _, g := range b.pipeline.Groups {
		refs = append(refs, config.KindGroup+"."+g.Name)
	}
	for _, c := range b.pipeline.Cleanups {
		refs = append(refs, config.KindCleanup+"."+c.Name)
	}
	used := make(map[string]bool)
	for _, ref := range refs {
		for _, dep := range b.pipeline.Deps(ref) {
			used[dep] = true
		}
	}
	return slices.DeleteFunc(refs, func(ref string) bool { return used[ref] })
}

// BuildError reports the innermost block reference that failed to build.
type BuildError struct {
	Ref string
	Err error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("failed to build %s: %v", e.Ref, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// run is the state of a single Build call.
type run struct {
	*Builder
	ctx      context.Context
	req      Request
	prov     provenance.Provenance
	base     map[string]cty.Value
	products map[string][]*node.Node
	visiting map[string]bool
	nodes    map[string]*node.Node
	contigs  []scatter.Interval
}

func (r *run) expand(ref string) ([]*node.Node, error) {
	if ns, ok := r.products[ref]; ok {
		return ns, nil
	}
	if err := r.ctx.Err(); err != nil {
		return nil, err
	}
	if r.visiting[ref] {
		return nil, fmt.Errorf("%w: %s depends on itself", config.ErrCycle, ref)
	}
	r.visiting[ref] = true
	defer delete(r.visiting, ref)

	kind, name, err := config.ParseRef(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrUnknownReference, err)
	}
	unknown := fmt.Errorf("%w: %s", config.ErrUnknownReference, ref)

	var ns []*node.Node
	switch kind {
	case config.KindSource:
		src, ok := r.pipeline.Source(name)
		if !ok {
			return nil, unknown
		}
		ns, err = r.source(src)
	case config.KindStage:
		st, ok := r.pipeline.Stage(name)
		if !ok {
			return nil, unknown
		}
		ns, err = one(r.stage(st))
	case config.KindGroup:
		g, ok := r.pipeline.Group(name)
		if !ok {
			return nil, unknown
		}
		ns, err = one(r.group(g))
	case config.KindCleanup:
		c, ok := r.pipeline.Cleanup(name)
		if !ok {
			return nil, unknown
		}
		ns, err = one(r.cleanup(c))
	}
	if err != nil {
		var be *BuildError
		if errors.As(err, &be) {
			return nil, err
		}
		return nil, &BuildError{Ref: ref, Err: err}
	}
	r.products[ref] = ns
	return ns, nil
}

func one(n *node.Node, err error) ([]*node.Node, error) {
	if err != nil {
		return nil, err
	}
	return []*node.Node{n}, nil
}

// add registers a freshly built node.
func (r *run) add(n *node.Node, err error) (*node.Node, error) {
	if err != nil {
		return nil, err
	}
	if _, dup := r.nodes[n.ID()]; dup {
		return nil, fmt.Errorf("node %s built twice", n.ID())
	}
	r.nodes[n.ID()] = n
	return n, nil
}

func (r *run) source(src *config.Source) ([]*node.Node, error) {
	if !src.PerSample {
		return one(r.sourceNode(src, nodeid.New(config.KindSource, src.Name), r.base))
	}
	if len(r.req.Samples) == 0 {
		return nil, errors.New("per-sample source but the run has no samples")
	}
	ns := make([]*node.Node, 0, len(r.req.Samples))
	for i, sample := range r.req.Samples {
		vars := with(r.base, map[string]cty.Value{
			"sample": cty.StringVal(sample),
			"index":  cty.NumberIntVal(int64(i)),
		})
		n, err := r.sourceNode(src, nodeid.NewIndexed(config.KindSource, src.Name, i), vars)
		if err != nil {
			return nil, err
		}
		ns = append(ns, n)
	}
	return ns, nil
}

func (r *run) sourceNode(src *config.Source, addr nodeid.Address, vars map[string]cty.Value) (*node.Node, error) {
	path, err := evalString(src.Path, vars)
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(path) {
		return nil, fmt.Errorf("path %q of %s must be absolute", path, addr)
	}
	return r.add(node.New(node.Spec{
		Address: addr,
		Params: node.Params{
			Kind:   config.KindSource,
			Name:   src.Name,
			Role:   node.RoleSource,
			Prefix: r.req.Prefix,
			Values: map[string]string{"path": path},
		},
		Provenance: r.prov,
		Output:     output.NewMulti(path),
	}))
}

func (r *run) group(g *config.Group) (*node.Node, error) {
	var upstream []*node.Node
	var outs []output.Output
	for _, member := range g.Members {
		ns, err := r.expand(member)
		if err != nil {
			return nil, err
		}
		for _, n := range ns {
			upstream = append(upstream, n)
			outs = append(outs, n.Output())
		}
	}
	return r.add(node.New(node.Spec{
		Address: nodeid.New(config.KindGroup, g.Name),
		Params: node.Params{
			Kind:   config.KindGroup,
			Name:   g.Name,
			Role:   node.RoleGroup,
			Prefix: r.req.Prefix,
			Inputs: g.Members,
		},
		Provenance: r.prov,
		Upstream:   upstream,
		Output:     output.Union(outs...),
	}))
}

func (r *run) cleanup(c *config.Cleanup) (*node.Node, error) {
	targets, err := r.expand(c.Target)
	if err != nil {
		return nil, err
	}
	return r.add(cleanup.New(r.oracle, targets...).Node(c.Name, r.prov))
}

// loadContigs reads the reference contig list once per build.
func (r *run) loadContigs() ([]scatter.Interval, error) {
	if r.contigs != nil {
		return r.contigs, nil
	}
	if r.req.Ref.Contigs == "" {
		return nil, errors.New("scattering by region needs a reference contig list")
	}
	ivs, err := scatter.ReadIntervals(r.req.Ref.Contigs)
	if err != nil {
		return nil, err
	}
	if len(ivs) == 0 {
		return nil, fmt.Errorf("contig list %s is empty", r.req.Ref.Contigs)
	}
	r.contigs = ivs
	return ivs, nil
}
