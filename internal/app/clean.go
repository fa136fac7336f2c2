package app

import (
	"context"
	"fmt"

	"github.com/vk/callgrid/internal/cleanup"
	"github.com/vk/callgrid/internal/config"
	"github.com/vk/callgrid/internal/ctxlog"
)

// Clean runs only the cleanup pass behind ref. ref is either a cleanup
// block, whose target is used, or any other block reference.
func (a *App) Clean(ctx context.Context, ref string) (*cleanup.Report, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	target := ref
	if kind, name, err := config.ParseRef(ref); err == nil && kind == config.KindCleanup {
		c, ok := a.pipeline.Cleanup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", config.ErrUnknownReference, ref)
		}
		target = c.Target
	}

	req, err := a.config.request([]string{target})
	if err != nil {
		return nil, err
	}
	res, err := a.builder().Build(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to build node graph: %w", err)
	}
	return cleanup.New(a.oracle, res.Targets...).Run(ctx)
}
