package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/vk/callgrid/internal/builder"
	"github.com/vk/callgrid/internal/config"
	"github.com/vk/callgrid/internal/ctxlog"
	"github.com/vk/callgrid/internal/graph"
	"github.com/vk/callgrid/internal/localsession"
	"github.com/vk/callgrid/internal/oracle"
	"github.com/vk/callgrid/internal/resolver"
	"github.com/vk/callgrid/internal/session"
)

// DefaultLoader loads a pipeline. Implemented by the hcl package.
type DefaultLoader interface {
	config.Loader
	LoadDefault(ctx context.Context) (*config.Pipeline, error)
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx      context.Context
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	pipeline *config.Pipeline
	oracle   *oracle.Oracle
	sessions session.SessionFactory

	httpServer *http.Server

	mu    sync.Mutex
	runID string
	graph graph.Graph
}

// NewApp is the constructor for the main application. It configures an
// isolated logger and loads the pipeline definition.
func NewApp(outW io.Writer, cfg *Config, loader DefaultLoader) (*App, error) {
	logger := NewLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	var (
		p   *config.Pipeline
		err error
	)
	if cfg.PipelinePath == "" {
		p, err = loader.LoadDefault(ctx)
	} else {
		p, err = loader.Load(ctx, cfg.PipelinePath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline: %w", err)
	}
	logger.Debug("Pipeline loaded.", "pipeline", p.Name, "version", p.Version, "hash", p.Hash)

	return &App{
		ctx:      ctx,
		outW:     outW,
		logger:   logger,
		config:   cfg,
		pipeline: p,
		oracle:   oracle.New(),
		sessions: &localsession.SessionFactory{},
	}, nil
}

// Pipeline returns the loaded pipeline definition.
func (a *App) Pipeline() *config.Pipeline { return a.pipeline }

// Plan builds the node graph of the configured targets and resolves it
// against what is already on disk.
func (a *App) Plan(ctx context.Context) (*resolver.Plan, *builder.Result, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	return a.plan(ctx, a.config.Targets)
}

func (a *App) plan(ctx context.Context, targets []string) (*resolver.Plan, *builder.Result, error) {
	req, err := a.config.request(targets)
	if err != nil {
		return nil, nil, err
	}
	res, err := a.builder().Build(ctx, req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build node graph: %w", err)
	}
	plan, err := resolver.New(a.oracle).Plan(ctx, res.Targets...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve plan: %w", err)
	}
	return plan, res, nil
}

func (a *App) builder() *builder.Builder { return builder.New(a.pipeline, a.oracle) }

// current returns the graph of the running session, if any.
func (a *App) current() (string, graph.Graph) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.runID, a.graph
}

func (a *App) setCurrent(runID string, g graph.Graph) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runID, a.graph = runID, g
}
