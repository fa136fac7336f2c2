package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/callgrid/internal/nodeid"
	"github.com/vk/callgrid/internal/scatter"
)

// Block kinds usable in references.
const (
	KindSource  = "source"
	KindStage   = "stage"
	KindGroup   = "group"
	KindCleanup = "cleanup"
)

// ParseRef splits a reference such as "stage.genotype_gvcf" into its block
// kind and name. References never carry an index.
func ParseRef(ref string) (kind, name string, err error) {
	addr, err := nodeid.Parse(ref)
	if err != nil || len(addr.Path) != 2 || addr.Path[0].HasIndex() || addr.Path[1].HasIndex() {
		return "", "", fmt.Errorf("malformed reference %q, want <kind>.<name>", ref)
	}
	kind, name = addr.Kind(), addr.Name()
	switch kind {
	case KindSource, KindStage, KindGroup, KindCleanup:
		return kind, name, nil
	}
	return "", "", fmt.Errorf("reference %q has unknown kind %q", ref, kind)
}

// Validate checks names, references, scatter settings, and the absence of
// cycles. It returns every problem found, joined.
func (p *Pipeline) Validate() error {
	var errs []error
	add := func(e *Error) { errs = append(errs, e) }

	if p.Name == "" || !nodeid.ValidName(p.Name) {
		add(newError(ErrInvalidPipeline, "pipeline", hcl.Range{}, "invalid pipeline name %q", p.Name))
	}
	if p.Version == "" {
		add(newError(ErrInvalidPipeline, "pipeline", hcl.Range{}, "version is required"))
	}

	declared := make(map[string]hcl.Range)
	declare := func(kind, name string, rng hcl.Range) {
		ref := kind + "." + name
		if !nodeid.ValidName(name) {
			add(newError(ErrInvalidPipeline, ref, rng, "invalid name"))
		}
		if prev, dup := declared[ref]; dup {
			add(newError(ErrInvalidPipeline, ref, rng, "duplicate declaration, first declared at %s", prev))
		}
		declared[ref] = rng
	}
	for _, s := range p.Sources {
		declare(KindSource, s.Name, s.Range)
	}
	for _, s := range p.Stages {
		declare(KindStage, s.Name, s.Range)
	}
	for _, g := range p.Groups {
		declare(KindGroup, g.Name, g.Range)
	}
	for _, c := range p.Cleanups {
		declare(KindCleanup, c.Name, c.Range)
	}

	checkRefs := func(block string, rng hcl.Range, refs []string) {
		for _, ref := range refs {
			kind, _, err := ParseRef(ref)
			if err != nil {
				add(newError(ErrUnknownReference, block, rng, "%v", err))
				continue
			}
			if kind == KindCleanup {
				add(newError(ErrInvalidPipeline, block, rng, "cleanup %q cannot be depended on", ref))
				continue
			}
			if _, ok := declared[ref]; !ok {
				add(newError(ErrUnknownReference, block, rng, "%q is not declared", ref))
			}
		}
	}

	for _, s := range p.Stages {
		block := KindStage + "." + s.Name
		checkRefs(block, s.Range, s.DependsOn)
		if len(s.DependsOn) == 0 {
			add(newError(ErrInvalidPipeline, block, s.Range, "a stage needs at least one dependency"))
		}
		if s.Resources.MemoryMB < 0 || s.Resources.CPUs < 0 {
			add(newError(ErrInvalidPipeline, block, s.Range, "resources cannot be negative"))
		}
		if s.Paired && s.Committed {
			add(newError(ErrInvalidPipeline, block, s.Range, "paired outputs cannot be committed"))
		}
		if s.Scatter != nil {
			for _, e := range s.Scatter.validate(block, s) {
				add(e)
			}
		}
	}
	for _, g := range p.Groups {
		block := KindGroup + "." + g.Name
		if len(g.Members) == 0 {
			add(newError(ErrInvalidPipeline, block, g.Range, "a group needs members"))
		}
		checkRefs(block, g.Range, g.Members)
	}
	for _, c := range p.Cleanups {
		checkRefs(KindCleanup+"."+c.Name, c.Range, []string{c.Target})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if err := p.checkCycles(); err != nil {
		return err
	}
	return nil
}

func (s *Scatter) validate(block string, st *Stage) []*Error {
	var errs []*Error
	switch s.Policy {
	case PolicyItems, PolicyRegions, PolicyVCF:
	default:
		errs = append(errs, newError(ErrInvalidPipeline, block, st.Range, "unknown scatter policy %q", s.Policy))
	}
	if s.Gather != GatherNone && !slices.Contains(scatter.GatherKinds(), s.Gather) {
		errs = append(errs, newError(ErrInvalidPipeline, block, st.Range, "unknown gather kind %q, want one of %v or %q", s.Gather, scatter.GatherKinds(), GatherNone))
	}
	if s.Gather == GatherNone && s.Policy != PolicyItems {
		errs = append(errs, newError(ErrInvalidPipeline, block, st.Range, "only the items policy can leave shards ungathered"))
	}
	if s.Gather == GatherNone && st.Committed {
		errs = append(errs, newError(ErrInvalidPipeline, block, st.Range, "an ungathered stage cannot be committed"))
	}
	if st.Paired {
		errs = append(errs, newError(ErrInvalidPipeline, block, st.Range, "paired stages cannot be scattered"))
	}
	if s.ShardExt != "" && !strings.HasPrefix(s.ShardExt, ".") {
		errs = append(errs, newError(ErrInvalidPipeline, block, st.Range, "shard_ext %q must start with a dot", s.ShardExt))
	}
	return errs
}

// Deps returns the references a block depends on.
func (p *Pipeline) Deps(ref string) []string {
	kind, name, err := ParseRef(ref)
	if err != nil {
		return nil
	}
	switch kind {
	case KindStage:
		if s, ok := p.Stage(name); ok {
			return s.DependsOn
		}
	case KindGroup:
		if g, ok := p.Group(name); ok {
			return g.Members
		}
	case KindCleanup:
		if c, ok := p.Cleanup(name); ok {
			return []string{c.Target}
		}
	}
	return nil
}

// checkCycles runs a depth-first search with an in-progress marker over
// every block reference.
func (p *Pipeline) checkCycles() error {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int)
	var stack []string
	var visit func(ref string) error
	visit = func(ref string) error {
		switch state[ref] {
		case done:
			return nil
		case visiting:
			start := slices.Index(stack, ref)
			cycle := append(slices.Clone(stack[start:]), ref)
			return newError(ErrCycle, ref, hcl.Range{}, "cycle: %s", strings.Join(cycle, " -> "))
		}
		state[ref] = visiting
		stack = append(stack, ref)
		for _, dep := range p.Deps(ref) {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[ref] = done
		return nil
	}

	var roots []string
	for _, s := range p.Stages {
		roots = append(roots, KindStage+"."+s.Name)
	}
	for _, g := range p.Groups {
		roots = append(roots, KindGroup+"."+g.Name)
	}
	for _, c := range p.Cleanups {
		roots = append(roots, KindCleanup+"."+c.Name)
	}
	for _, r := range roots {
		if err := visit(r); err != nil {
			return err
		}
	}
	return nil
}
