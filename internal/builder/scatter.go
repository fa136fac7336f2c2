package builder

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/vk/callgrid/internal/cleanup"
	"github.com/vk/callgrid/internal/config"
	"github.com/vk/callgrid/internal/node"
	"github.com/vk/callgrid/internal/output"
	"github.com/vk/callgrid/internal/scatter"
	"github.com/vk/callgrid/internal/workunit"
)

// requested returns the stage's shard count before clamping.
func (s *stageBuild) requested() (int, error) {
	if s.st.Scatter.Shards == nil {
		return s.req.Shards, nil
	}
	n, err := evalInt(s.st.Scatter.Shards, s.vars)
	if err != nil {
		return 0, fmt.Errorf("shards: %w", err)
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: shard count %d", scatter.ErrInvalidShards, n)
	}
	return n, nil
}

// plan returns the shard specs for an input of length items.
func (s *stageBuild) plan(length int) ([]scatter.ShardSpec, error) {
	requested, err := s.requested()
	if err != nil {
		return nil, err
	}
	return scatter.Plan(length, scatter.Effective(length, requested))
}

func (s *stageBuild) shardPath(i int) string {
	if ext := s.st.Scatter.ShardExt; ext != "" {
		return output.ShardPathExt(s.final, i, ext)
	}
	return output.ShardPath(s.final, i)
}

// splitItems cuts the stage's inputs into contiguous groups, one shard
// each. Every shard depends only on the nodes producing its group.
func (s *stageBuild) splitItems() (*node.Node, error) {
	if len(s.inputs) == 0 {
		return nil, errors.New("nothing to scatter: the stage has no inputs")
	}
	specs, err := s.plan(len(s.inputs))
	if err != nil {
		return nil, err
	}
	shards := make([]*node.Node, len(specs))
	for i, spec := range specs {
		group := s.inputs[spec.Range.Start:spec.Range.End]
		var paths []string
		var upstream []*node.Node
		seen := make(map[*node.Node]bool)
		for _, in := range group {
			paths = append(paths, in.path)
			if !seen[in.node] {
				seen[in.node] = true
				upstream = append(upstream, in.node)
			}
		}
		if shards[i], err = s.commandNode(unit{
			addr:     s.addr.Shard(i),
			role:     node.RoleShard,
			shard:    spec,
			upstream: upstream,
			inputs:   paths,
			out:      output.NewSingle(s.shardPath(i)),
		}); err != nil {
			return nil, err
		}
	}
	return s.gather(shards)
}

// regions partitions the reference contigs into interval lists. Every
// shard sees all of the stage's inputs and its own interval list.
func (s *stageBuild) regions() (*node.Node, error) {
	contigs, err := s.loadContigs()
	if err != nil {
		return nil, err
	}
	specs, err := s.plan(len(contigs))
	if err != nil {
		return nil, err
	}
	parts := make([]string, len(specs))
	for i := range specs {
		parts[i] = output.ScatterPath(s.final, i, "intervals", ".list")
	}
	scat, err := s.scatterNode(config.PolicyRegions, parts, s.inputPaths(), func(ctx context.Context, temps []string) error {
		for i, spec := range specs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := scatter.WriteIntervals(temps[i], contigs[spec.Range.Start:spec.Range.End]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	upstream := append([]*node.Node{scat}, s.deps...)
	shards := make([]*node.Node, len(specs))
	for i, spec := range specs {
		if shards[i], err = s.commandNode(unit{
			addr:      s.addr.Shard(i),
			role:      node.RoleShard,
			shard:     spec,
			upstream:  upstream,
			inputs:    s.inputPaths(),
			intervals: parts[i],
			out:       output.NewSingle(s.shardPath(i)),
		}); err != nil {
			return nil, err
		}
	}
	return s.gather(shards)
}

// vcf splits the stage's single VCF input by contig. Each shard reads one
// partition.
func (s *stageBuild) vcf() (*node.Node, error) {
	if len(s.inputs) != 1 {
		return nil, fmt.Errorf("vcf scatter needs exactly one input, got %d", len(s.inputs))
	}
	src := s.inputs[0].path
	contigs, err := s.loadContigs()
	if err != nil {
		return nil, err
	}
	specs, err := s.plan(len(contigs))
	if err != nil {
		return nil, err
	}
	groups := make([][]scatter.Interval, len(specs))
	parts := make([]string, len(specs))
	for i, spec := range specs {
		groups[i] = contigs[spec.Range.Start:spec.Range.End]
		parts[i] = output.ScatterPath(s.final, i, "input", ".vcf")
	}
	scat, err := s.scatterNode(config.PolicyVCF, parts, []string{src}, func(ctx context.Context, temps []string) error {
		return scatter.SplitVCF(ctx, src, groups, temps)
	})
	if err != nil {
		return nil, err
	}

	shards := make([]*node.Node, len(specs))
	for i, spec := range specs {
		if shards[i], err = s.commandNode(unit{
			addr:     s.addr.Shard(i),
			role:     node.RoleShard,
			shard:    spec,
			upstream: []*node.Node{scat},
			inputs:   []string{parts[i]},
			out:      output.NewSingle(s.shardPath(i)),
		}); err != nil {
			return nil, err
		}
	}
	return s.gather(shards)
}

// scatterNode builds the in-process node writing the partitions.
func (s *stageBuild) scatterNode(policy string, parts, inputs []string, fill func(ctx context.Context, temps []string) error) (*node.Node, error) {
	addr := s.addr.Child("scatter")
	id := addr.String()
	return s.add(node.New(node.Spec{
		Address: addr,
		Params: node.Params{
			Kind:   config.KindStage,
			Name:   s.st.Name,
			Role:   node.RoleScatter,
			Prefix: s.req.Prefix,
			Inputs: inputs,
			Values: map[string]string{
				"policy":  policy,
				"contigs": s.req.Ref.Contigs,
				"shards":  strconv.Itoa(len(parts)),
			},
		},
		Provenance: s.prov,
		Upstream:   s.deps,
		Output:     output.NewMulti(parts...),
		Work: func(ctx context.Context, token string) (*workunit.WorkUnit, error) {
			temps, err := tempPaths(parts, token)
			if err != nil {
				return nil, err
			}
			return &workunit.WorkUnit{
				ID:      id,
				Run:     func(ctx context.Context) error { return fill(ctx, temps) },
				Inputs:  inputs,
				Outputs: temps,
			}, nil
		},
	}))
}

// gather builds the node at the stage's own address. Ungathered stages get
// a group node exposing the shard outputs.
func (s *stageBuild) gather(shards []*node.Node) (*node.Node, error) {
	parts := make([]string, len(shards))
	for i, sh := range shards {
		parts[i] = sh.Output().Primary()
	}
	kind := s.st.Scatter.Gather
	params := node.Params{
		Kind:   config.KindStage,
		Name:   s.st.Name,
		Prefix: s.req.Prefix,
		Inputs: parts,
		Values: map[string]string{cleanup.GatherKey: kind},
	}

	if kind == config.GatherNone {
		params.Role = node.RoleGroup
		return s.add(node.New(node.Spec{
			Address:    s.addr,
			Params:     params,
			Provenance: s.prov,
			Upstream:   shards,
			Output:     output.NewMulti(parts...),
		}))
	}

	merger, err := scatter.MergerFor(kind)
	if err != nil {
		return nil, err
	}
	out := output.NewSingle(s.final)
	if s.st.Committed {
		out = output.NewCommitted(s.final)
	}
	params.Role = node.RoleGather
	id := s.addr.String()
	final := s.final
	return s.add(node.New(node.Spec{
		Address:    s.addr,
		Params:     params,
		Provenance: s.prov,
		Upstream:   shards,
		Output:     out,
		Work: func(ctx context.Context, token string) (*workunit.WorkUnit, error) {
			temps, err := tempPaths([]string{final}, token)
			if err != nil {
				return nil, err
			}
			return &workunit.WorkUnit{
				ID:      id,
				Run:     func(ctx context.Context) error { return merger.Merge(ctx, temps[0], parts) },
				Inputs:  parts,
				Outputs: temps,
			}, nil
		},
	}))
}
