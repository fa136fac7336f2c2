// Package testutil holds helpers for tests that run whole pipelines.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/callgrid/internal/app"
	"github.com/vk/callgrid/internal/hcl"
)

// LogsEnv, when set to "1" or "true", streams captured logs to the test log.
const LogsEnv = "CALLGRID_TEST_LOGS"

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
}

// Harness runs pipelines against a private temporary directory.
type Harness struct {
	t      *testing.T
	Dir    string
	Config app.Config
}

// NewHarness writes files, keyed by path relative to the pipeline
// directory, and returns a harness configured to run them with the local
// executor.
func NewHarness(t *testing.T, files map[string]string) *Harness {
	t.Helper()
	dir := t.TempDir()
	pipelineDir := filepath.Join(dir, "pipeline")
	require.NoError(t, os.MkdirAll(pipelineDir, 0o755))

	h := &Harness{
		t:   t,
		Dir: dir,
		Config: app.Config{
			PipelinePath: pipelineDir,
			Prefix:       "test",
			Shards:       2,
			BaseDir:      filepath.Join(dir, "base"),
			LogDir:       filepath.Join(dir, "logs"),
			LogLevel:     "debug",
			LogFormat:    "text",
			WorkerCount:  4,
		},
	}
	for name, content := range files {
		h.Write(filepath.Join("pipeline", name), content)
	}
	return h
}

// Write creates a file below the harness directory and returns its path.
func (h *Harness) Write(rel, content string) string {
	h.t.Helper()
	path := filepath.Join(h.Dir, rel)
	require.NoError(h.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(h.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// Contigs writes a contig list and points the configuration at it.
func (h *Harness) Contigs(names ...string) string {
	h.t.Helper()
	h.Config.Contigs = h.Write("ref/contigs.txt", strings.Join(names, "\n")+"\n")
	return h.Config.Contigs
}

// Output returns where a pipeline writes rel for the harness prefix.
func (h *Harness) Output(version, pipeline, rel string) string {
	return filepath.Join(h.Config.BaseDir, version, pipeline, h.Config.Prefix, rel)
}

// NewApp creates an App logging into a SafeBuffer.
func (h *Harness) NewApp() (*app.App, *SafeBuffer, error) {
	h.t.Helper()
	logs := &SafeBuffer{}
	h.t.Cleanup(func() { dumpLogs(h.t, logs) })

	cfg, err := app.NewConfig(h.Config)
	if err != nil {
		return nil, logs, err
	}
	a, err := app.NewApp(logs, cfg, hcl.NewLoader())
	return a, logs, err
}

// Run creates an App and runs it to completion.
func (h *Harness) Run(ctx context.Context) *HarnessResult {
	h.t.Helper()
	a, logs, err := h.NewApp()
	if err != nil {
		return &HarnessResult{LogOutput: logs.String(), Err: fmt.Errorf("application startup failed | %w", err)}
	}
	err = a.Run(ctx)
	return &HarnessResult{LogOutput: logs.String(), Err: err, App: a}
}

func dumpLogs(t *testing.T, logs *SafeBuffer) {
	switch os.Getenv(LogsEnv) {
	case "1", "true":
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
	}
}
