package hcl

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes every top-level block a pipeline file may contain.
type fileRoot struct {
	Pipelines []*pipelineBlock `hcl:"pipeline,block"`
	Sources   []*sourceBlock   `hcl:"source,block"`
	Stages    []*stageBlock    `hcl:"stage,block"`
	Groups    []*groupBlock    `hcl:"group,block"`
	Cleanups  []*cleanupBlock  `hcl:"cleanup,block"`
}

type pipelineBlock struct {
	Name        string `hcl:"name,label"`
	Version     string `hcl:"version"`
	Description string `hcl:"description,optional"`
}

type sourceBlock struct {
	Name      string         `hcl:"name,label"`
	Path      hcl.Expression `hcl:"path"`
	PerSample bool           `hcl:"per_sample,optional"`
}

type stageBlock struct {
	Name        string          `hcl:"name,label"`
	Description string          `hcl:"description,optional"`
	DependsOn   []string        `hcl:"depends_on"`
	Output      hcl.Expression  `hcl:"output"`
	Command     hcl.Expression  `hcl:"command"`
	Paired      bool            `hcl:"paired,optional"`
	Committed   bool            `hcl:"committed,optional"`
	Scratch     bool            `hcl:"scratch,optional"`
	Params      *paramsBlock    `hcl:"params,block"`
	Resources   *resourcesBlock `hcl:"resources,block"`
	Scatter     *scatterBlock   `hcl:"scatter,block"`
}

// paramsBlock holds free-form stage parameters.
type paramsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

type resourcesBlock struct {
	MemoryMB int    `hcl:"memory_mb,optional"`
	CPUs     int    `hcl:"cpus,optional"`
	Queue    string `hcl:"queue,optional"`
}

type scatterBlock struct {
	Policy   string         `hcl:"policy"`
	Shards   hcl.Expression `hcl:"shards,optional"`
	Gather   string         `hcl:"gather,optional"`
	ShardExt string         `hcl:"shard_ext,optional"`
}

type groupBlock struct {
	Name    string   `hcl:"name,label"`
	Members []string `hcl:"members"`
}

type cleanupBlock struct {
	Name   string `hcl:"name,label"`
	Target string `hcl:"target"`
}
