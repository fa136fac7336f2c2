package hcl

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/callgrid/internal/config"
	"github.com/vk/callgrid/internal/ctxlog"
	"github.com/vk/callgrid/internal/fsutil"
	"github.com/vk/callgrid/internal/provenance"
)

//go:embed pipelines/callset.hcl
var callsetHCL []byte

// DefaultPipelineFile is the name the embedded pipeline is parsed under.
const DefaultPipelineFile = "callset.hcl"

// File is one named pipeline source.
type File struct {
	Name string
	Src  []byte
}

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL pipeline loader.
func NewLoader() *Loader {
	return &Loader{}
}

var _ config.Loader = (*Loader)(nil)

// Load reads every .hcl file under paths and parses them as one pipeline.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Pipeline, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	names, err := fsutil.CollectFiles(".hcl", paths...)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no .hcl files found in %v", config.ErrInvalidPipeline, paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(names))

	files := make([]File, 0, len(names))
	for _, name := range names {
		src, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		files = append(files, File{Name: name, Src: src})
	}
	return l.Parse(ctx, files...)
}

// LoadDefault parses the embedded Callset pipeline.
func (l *Loader) LoadDefault(ctx context.Context) (*config.Pipeline, error) {
	return l.Parse(ctx, File{Name: DefaultPipelineFile, Src: callsetHCL})
}

// Parse decodes files, in order, into one validated pipeline.
func (l *Loader) Parse(ctx context.Context, files ...File) (*config.Pipeline, error) {
	logger := ctxlog.FromContext(ctx)
	parser := hclparse.NewParser()
	p := &config.Pipeline{}
	var pipelines []*pipelineBlock
	srcs := make([][]byte, 0, len(files))

	for _, f := range files {
		hclFile, diags := parser.ParseHCL(f.Src, f.Name)
		if diags.HasErrors() {
			return nil, fmt.Errorf("%w: failed to parse HCL file %s: %w", config.ErrInvalidPipeline, f.Name, diags)
		}
		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("%w: failed to decode HCL file %s: %w", config.ErrInvalidPipeline, f.Name, diags)
		}
		srcs = append(srcs, f.Src)

		pipelines = append(pipelines, root.Pipelines...)
		for _, s := range root.Sources {
			p.Sources = append(p.Sources, translateSource(s))
		}
		for _, s := range root.Stages {
			st, err := translateStage(ctx, s)
			if err != nil {
				return nil, err
			}
			p.Stages = append(p.Stages, st)
		}
		for _, g := range root.Groups {
			p.Groups = append(p.Groups, &config.Group{Name: g.Name, Members: g.Members})
		}
		for _, c := range root.Cleanups {
			p.Cleanups = append(p.Cleanups, &config.Cleanup{Name: c.Name, Target: c.Target})
		}
	}

	if len(pipelines) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one pipeline block, found %d", config.ErrInvalidPipeline, len(pipelines))
	}
	p.Name = pipelines[0].Name
	p.Version = pipelines[0].Version
	p.Description = pipelines[0].Description
	p.Hash = provenance.HashSources(srcs...)

	if err := p.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("HCL loading complete.", "pipeline", p.Name, "version", p.Version,
		"sources", len(p.Sources), "stages", len(p.Stages), "groups", len(p.Groups), "cleanups", len(p.Cleanups))
	return p, nil
}

// isExprDefined reports whether an optional attribute was actually written.
// gohcl fills omitted optional expressions with a zero-width placeholder,
// so a nil check alone is not enough.
func isExprDefined(expr hcl.Expression) bool {
	if expr == nil {
		return false
	}
	rng := expr.Range()
	return rng.End.Byte > rng.Start.Byte
}
