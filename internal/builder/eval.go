package builder

import (
	"fmt"
	"maps"
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/callgrid/internal/config"
	"github.com/vk/callgrid/internal/workunit"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	"github.com/zclconf/go-cty/cty/gocty"
)

// functions are the functions pipeline expressions may call.
var functions = map[string]function.Function{
	"join":       stdlib.JoinFunc,
	"format":     stdlib.FormatFunc,
	"formatlist": stdlib.FormatListFunc,
	"upper":      stdlib.UpperFunc,
	"lower":      stdlib.LowerFunc,
}

// baseVars are the variables visible to every expression of a run.
func baseVars(p *config.Pipeline, req Request) map[string]cty.Value {
	return map[string]cty.Value{
		"run": cty.ObjectVal(map[string]cty.Value{
			"prefix":      cty.StringVal(req.Prefix),
			"base_dir":    cty.StringVal(req.BaseDir),
			"scratch_dir": cty.StringVal(req.ScratchDir),
			"log_dir":     cty.StringVal(req.LogDir),
			"shards":      cty.NumberIntVal(int64(req.Shards)),
			"samples":     stringList(req.Samples),
		}),
		"ref": cty.ObjectVal(map[string]cty.Value{
			"genome":  cty.StringVal(req.Ref.Genome),
			"mask":    cty.StringVal(req.Ref.Mask),
			"contigs": cty.StringVal(req.Ref.Contigs),
		}),
		"pipeline": cty.ObjectVal(map[string]cty.Value{
			"name":    cty.StringVal(p.Name),
			"version": cty.StringVal(p.Version),
		}),
	}
}

// unitVars are the per-work-unit variables of a command.
type unitVars struct {
	inputs    []string
	outputs   []string
	index     int
	count     int
	intervals string
	upstream  map[string][]string
	resources workunit.Resources
}

func (u unitVars) values() map[string]cty.Value {
	input, output := "", ""
	if len(u.inputs) > 0 {
		input = u.inputs[0]
	}
	if len(u.outputs) > 0 {
		output = u.outputs[0]
	}
	upstream := make(map[string]cty.Value, len(u.upstream))
	for name, paths := range u.upstream {
		upstream[name] = stringList(paths)
	}
	return map[string]cty.Value{
		"input":   cty.StringVal(input),
		"inputs":  stringList(u.inputs),
		"output":  cty.StringVal(output),
		"outputs": stringList(u.outputs),
		"shard": cty.ObjectVal(map[string]cty.Value{
			"index":     cty.NumberIntVal(int64(u.index)),
			"count":     cty.NumberIntVal(int64(u.count)),
			"intervals": cty.StringVal(u.intervals),
		}),
		"upstream": cty.ObjectVal(upstream),
		"resources": cty.ObjectVal(map[string]cty.Value{
			"memory_mb": cty.NumberIntVal(int64(u.resources.MemoryMB)),
			"cpus":      cty.NumberIntVal(int64(u.resources.CPUs)),
			"queue":     cty.StringVal(u.resources.Queue),
		}),
	}
}

// with returns a copy of base extended by extra.
func with(base, extra map[string]cty.Value) map[string]cty.Value {
	vars := maps.Clone(base)
	maps.Copy(vars, extra)
	return vars
}

func stringList(ss []string) cty.Value {
	if len(ss) == 0 {
		return cty.ListValEmpty(cty.String)
	}
	vals := make([]cty.Value, len(ss))
	for i, s := range ss {
		vals[i] = cty.StringVal(s)
	}
	return cty.ListVal(vals)
}

func eval(expr hcl.Expression, vars map[string]cty.Value) (cty.Value, error) {
	val, diags := expr.Value(&hcl.EvalContext{Variables: vars, Functions: functions})
	if diags.HasErrors() {
		return cty.NilVal, diags
	}
	if val.IsNull() || !val.IsWhollyKnown() {
		return cty.NilVal, fmt.Errorf("%s: expression has no value", expr.Range())
	}
	return val, nil
}

func evalString(expr hcl.Expression, vars map[string]cty.Value) (string, error) {
	val, err := eval(expr, vars)
	if err != nil {
		return "", err
	}
	s, err := convert.Convert(val, cty.String)
	if err != nil {
		return "", fmt.Errorf("%s: %w", expr.Range(), err)
	}
	return s.AsString(), nil
}

func evalInt(expr hcl.Expression, vars map[string]cty.Value) (int, error) {
	val, err := eval(expr, vars)
	if err != nil {
		return 0, err
	}
	var n int
	if err := gocty.FromCtyValue(val, &n); err != nil {
		return 0, fmt.Errorf("%s: want a whole number: %w", expr.Range(), err)
	}
	return n, nil
}

// evalParams evaluates a stage's params in name order. The values are
// exposed to commands as strings.
func evalParams(params map[string]hcl.Expression, vars map[string]cty.Value) (map[string]string, error) {
	out := make(map[string]string, len(params))
	for _, name := range slices.Sorted(maps.Keys(params)) {
		s, err := evalString(params[name], vars)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", name, err)
		}
		out[name] = s
	}
	return out, nil
}

func paramsVal(params map[string]string) cty.Value {
	vals := make(map[string]cty.Value, len(params))
	for k, v := range params {
		vals[k] = cty.StringVal(v)
	}
	return cty.ObjectVal(vals)
}
