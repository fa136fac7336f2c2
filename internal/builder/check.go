package builder

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/callgrid/internal/config"
	"github.com/vk/callgrid/internal/exprcheck"
)

var (
	funcNames    = slices.Sorted(maps.Keys(functions))
	baseRoots    = []string{"run", "ref", "pipeline"}
	sourceRoots  = append(slices.Clone(baseRoots), "sample", "index")
	outputRoots  = append(slices.Clone(baseRoots), "params")
	commandRoots = append(slices.Clone(outputRoots),
		"input", "inputs", "output", "outputs", "shard", "upstream", "resources")
)

// check rejects expressions that reference variables or functions no
// evaluation would provide. Commands may only name their declared
// dependencies under `upstream` and their declared params under `params`.
func (b *Builder) check() error {
	var errs []error
	fail := func(block string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", block, err))
		}
	}

	for _, src := range b.pipeline.Sources {
		fail(config.KindSource+"."+src.Name,
			exprcheck.Check(exprcheck.Scope{Roots: sourceRoots, Funcs: funcNames}, src.Path))
	}
	for _, st := range b.pipeline.Stages {
		block := config.KindStage + "." + st.Name
		names := slices.Sorted(maps.Keys(st.Params))

		params := make([]hcl.Expression, 0, len(names))
		for _, name := range names {
			params = append(params, st.Params[name])
		}
		fail(block, exprcheck.Check(exprcheck.Scope{Roots: baseRoots, Funcs: funcNames}, params...))

		restrict := map[string][]string{"params": names}
		outputs := []hcl.Expression{st.Output}
		if st.Scatter != nil && st.Scatter.Shards != nil {
			outputs = append(outputs, st.Scatter.Shards)
		}
		fail(block, exprcheck.Check(exprcheck.Scope{Roots: outputRoots, Attrs: restrict, Funcs: funcNames}, outputs...))

		var deps []string
		for _, ref := range st.DependsOn {
			if _, name, err := config.ParseRef(ref); err == nil {
				deps = append(deps, name)
			}
		}
		restrict["upstream"] = deps
		fail(block, exprcheck.Check(exprcheck.Scope{Roots: commandRoots, Attrs: restrict, Funcs: funcNames}, st.Command))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", config.ErrInvalidPipeline, errors.Join(errs...))
	}
	return nil
}
