package config

import (
	"github.com/hashicorp/hcl/v2"
)

// Pipeline is the unified, format-agnostic representation of one pipeline
// definition.
type Pipeline struct {
	Name        string
	Version     string
	Description string
	// Hash fingerprints the definition sources. It is recorded in commit
	// markers so a deliverable can be traced to the exact definition.
	Hash     string
	Sources  []*Source
	Stages   []*Stage
	Groups   []*Group
	Cleanups []*Cleanup
}

// Source is an externally produced input, the format-agnostic form of a
// `source` block.
type Source struct {
	Name string
	// Path evaluates to an absolute path. Per-sample sources see `sample`
	// and `index`.
	Path      hcl.Expression
	PerSample bool
	Range     hcl.Range
}

// Stage is the format-agnostic representation of a `stage` block.
type Stage struct {
	Name        string
	Description string
	// DependsOn holds block references such as "source.gvcf" or
	// "stage.genotype_gvcf", in input order.
	DependsOn []string
	// Output evaluates to a path relative to the stage's output directory.
	Output    hcl.Expression
	Command   hcl.Expression
	Params    map[string]hcl.Expression
	Resources Resources
	Scatter   *Scatter
	Paired    bool
	Committed bool
	// Scratch places the output under the scratch directory.
	Scratch bool
	Range   hcl.Range
}

// Resources is the resource request of every work unit of a stage.
type Resources struct {
	MemoryMB int
	CPUs     int
	Queue    string
}

// Scatter policies.
const (
	PolicyItems   = "items"
	PolicyRegions = "regions"
	PolicyVCF     = "vcf"
)

// GatherNone leaves shard outputs as the stage's outputs.
const GatherNone = "none"

// Scatter describes how a stage is split into shards and reassembled.
type Scatter struct {
	Policy string
	// Shards overrides the run's shard count when set.
	Shards hcl.Expression
	// Gather names a merger, or GatherNone.
	Gather string
	// ShardExt overrides the extension of per-shard outputs.
	ShardExt string
}

// Group aggregates the outputs of other blocks under one name.
type Group struct {
	Name    string
	Members []string
	Range   hcl.Range
}

// Cleanup is a terminal pass removing intermediates behind Target.
type Cleanup struct {
	Name   string
	Target string
	Range  hcl.Range
}

// Stage returns the stage named name.
func (p *Pipeline) Stage(name string) (*Stage, bool) {
	for _, s := range p.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// Source returns the source named name.
func (p *Pipeline) Source(name string) (*Source, bool) {
	for _, s := range p.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// Group returns the group named name.
func (p *Pipeline) Group(name string) (*Group, bool) {
	for _, g := range p.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return nil, false
}

// Cleanup returns the cleanup named name.
func (p *Pipeline) Cleanup(name string) (*Cleanup, bool) {
	for _, c := range p.Cleanups {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}
