package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/callgrid/internal/config"
	"github.com/vk/callgrid/internal/ctxlog"
)

func translateSource(s *sourceBlock) *config.Source {
	return &config.Source{
		Name:      s.Name,
		Path:      s.Path,
		PerSample: s.PerSample,
		Range:     s.Path.Range(),
	}
}

// translateStage converts the HCL stage schema into the agnostic model.
func translateStage(ctx context.Context, s *stageBlock) (*config.Stage, error) {
	st := &config.Stage{
		Name:        s.Name,
		Description: s.Description,
		DependsOn:   s.DependsOn,
		Output:      s.Output,
		Command:     s.Command,
		Paired:      s.Paired,
		Committed:   s.Committed,
		Scratch:     s.Scratch,
		Range:       s.Output.Range(),
	}
	if s.Resources != nil {
		st.Resources = config.Resources{MemoryMB: s.Resources.MemoryMB, CPUs: s.Resources.CPUs, Queue: s.Resources.Queue}
	}
	if st.Resources.CPUs == 0 {
		st.Resources.CPUs = 1
	}

	if s.Params != nil {
		attrs, diags := s.Params.Body.JustAttributes()
		if diags.HasErrors() {
			return nil, fmt.Errorf("%w: stage %q params: %w", config.ErrInvalidPipeline, s.Name, diags)
		}
		st.Params = make(map[string]hcl.Expression, len(attrs))
		for name, attr := range attrs {
			st.Params[name] = attr.Expr
		}
	}

	if s.Scatter != nil {
		sc := &config.Scatter{
			Policy:   s.Scatter.Policy,
			Gather:   s.Scatter.Gather,
			ShardExt: s.Scatter.ShardExt,
		}
		if isExprDefined(s.Scatter.Shards) {
			sc.Shards = s.Scatter.Shards
		}
		if sc.Gather == "" {
			sc.Gather = defaultGather(sc.Policy)
		}
		st.Scatter = sc
	}

	ctxlog.FromContext(ctx).Debug("Translated stage.", "stage", st.Name, "dependsOn", st.DependsOn, "scattered", st.Scatter != nil)
	return st, nil
}

func defaultGather(policy string) string {
	if policy == config.PolicyItems {
		return config.GatherNone
	}
	return "vcf"
}
