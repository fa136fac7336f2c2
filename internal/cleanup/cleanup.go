package cleanup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/bmatcuk/doublestar"
	"github.com/vk/callgrid/internal/commit"
	"github.com/vk/callgrid/internal/ctxlog"
	"github.com/vk/callgrid/internal/node"
	"github.com/vk/callgrid/internal/nodeid"
	"github.com/vk/callgrid/internal/oracle"
	"github.com/vk/callgrid/internal/output"
	"github.com/vk/callgrid/internal/provenance"
	"github.com/vk/callgrid/internal/workunit"
)

// GatherKey is the node parameter naming a gather node's merger.
const GatherKey = "gather"

// ManifestGather is the merger whose output lists shard outputs in place.
const ManifestGather = "manifest"

// ErrTargetIncomplete is returned by Run when the outputs the pass protects
// are not all present yet.
var ErrTargetIncomplete = errors.New("cleanup target is not complete")

// Report summarizes one Run.
type Report struct {
	Removed []string
	Failed  []string
}

// Pass removes intermediates of a target graph.
type Pass struct {
	oracle   *oracle.Oracle
	targets  []*node.Node
	patterns []string
}

// New derives the patterns of the graph behind targets.
func New(o *oracle.Oracle, targets ...*node.Node) *Pass {
	return &Pass{
		oracle:   o,
		targets:  slices.Clone(targets),
		patterns: Patterns(targets...),
	}
}

// Patterns walks the upstream closure of targets and returns the sorted
// glob patterns of their intermediate artifacts: shard artifacts of merging
// gathers, scatter partitions, and temp files of every produced output.
func Patterns(targets ...*node.Node) []string {
	seen := make(map[string]bool)
	set := make(map[string]struct{})
	var visit func(n *node.Node)
	visit = func(n *node.Node) {
		if seen[n.Identity()] {
			return
		}
		seen[n.Identity()] = true

		if n.Role() != node.RoleSource {
			for _, p := range n.Output().Paths() {
				set[output.TempPattern(p)] = struct{}{}
			}
			if out := n.Output(); out.IsCommitted() {
				set[output.TempPattern(commit.MarkerPath(out.Primary()))] = struct{}{}
			}
		}
		if n.Role() == node.RoleScatter {
			for _, p := range n.Output().Paths() {
				set[output.LiteralPattern(p)] = struct{}{}
			}
		}
		// Manifest gathers reference their shard outputs, which therefore
		// are deliverables rather than intermediates.
		if n.Role() == node.RoleGather && n.Params().Values[GatherKey] != ManifestGather {
			shards := shardCount(n)
			for _, p := range n.Output().Paths() {
				for i := 0; i < shards; i++ {
					set[output.ShardPattern(p, i)] = struct{}{}
				}
			}
		}
		for _, up := range n.Upstream() {
			visit(up)
		}
	}
	for _, t := range targets {
		visit(t)
	}

	patterns := make([]string, 0, len(set))
	for p := range set {
		patterns = append(patterns, p)
	}
	slices.Sort(patterns)
	return patterns
}

func shardCount(gather *node.Node) int {
	count := 0
	for _, up := range gather.Upstream() {
		if up.Role() == node.RoleShard {
			count = max(count, up.Params().Shard.Count)
		}
	}
	return count
}

// Patterns returns the patterns the pass deletes.
func (p *Pass) Patterns() []string { return slices.Clone(p.patterns) }

// Matches returns every filesystem entry currently matching a pattern.
func (p *Pass) Matches() ([]string, error) {
	var matches []string
	for _, pattern := range p.patterns {
		m, err := doublestar.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid cleanup pattern %q: %w", pattern, err)
		}
		matches = append(matches, m...)
	}
	slices.Sort(matches)
	return slices.Compact(matches), nil
}

// TargetComplete reports whether every target passes its completion test.
func (p *Pass) TargetComplete() bool {
	for _, t := range p.targets {
		if check, ok := t.CompletionOverride(); ok {
			if !check() {
				return false
			}
			continue
		}
		if !p.oracle.IsComplete(t.Output()) {
			return false
		}
	}
	return true
}

// IsComplete is true only when nothing matches a pattern and the target
// graph is complete. Absent intermediates alone never count as done.
func (p *Pass) IsComplete() bool {
	matches, err := p.Matches()
	if err != nil || len(matches) > 0 {
		return false
	}
	return p.TargetComplete()
}

// Run deletes every match. Individual failures are logged and collected in
// the report; they never abort the pass.
func (p *Pass) Run(ctx context.Context) (*Report, error) {
	logger := ctxlog.FromContext(ctx)
	if !p.TargetComplete() {
		return nil, ErrTargetIncomplete
	}
	matches, err := p.Matches()
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := os.RemoveAll(m); err != nil {
			logger.Warn("Could not remove intermediate artifact.", "path", m, "error", err)
			report.Failed = append(report.Failed, m)
			continue
		}
		p.oracle.Forget(m)
		report.Removed = append(report.Removed, m)
	}
	logger.Info("🧹 Cleanup pass finished.", "removed", len(report.Removed), "failed", len(report.Failed))
	return report, nil
}

// Node wraps the pass in a terminal cleanup node depending on the targets.
func (p *Pass) Node(name string, prov provenance.Provenance) (*node.Node, error) {
	inputs := make([]string, 0, len(p.targets))
	for _, t := range p.targets {
		inputs = append(inputs, t.ID())
	}
	return node.New(node.Spec{
		Address:    nodeid.New("cleanup", name),
		Params:     node.Params{Kind: "cleanup", Name: name, Role: node.RoleCleanup, Inputs: inputs},
		Provenance: prov,
		Upstream:   p.targets,
		Output:     output.NewMulti(),
		Work: func(ctx context.Context, token string) (*workunit.WorkUnit, error) {
			return &workunit.WorkUnit{
				Run: func(ctx context.Context) error {
					_, err := p.Run(ctx)
					return err
				},
			}, nil
		},
		Complete: p.IsComplete,
	})
}
