package app

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/callgrid/internal/builder"
	"github.com/vk/callgrid/internal/publish"
)

// Executor backends.
const (
	ExecutorLocal = "local"
	ExecutorSlurm = "slurm"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// PipelinePath is a file or directory of *.hcl files. Empty selects the
	// embedded Callset pipeline.
	PipelinePath string
	Targets      []string
	Samples      []string
	// SamplesFile lists further samples, one per line.
	SamplesFile string
	Prefix      string
	Shards      int
	BaseDir     string
	ScratchDir  string
	LogDir      string
	Genome      string
	Mask        string
	Contigs     string

	Executor       string
	SlurmScriptDir string
	SlurmAccount   string
	WorkerCount    int
	FailFast       bool
	Recommit       bool

	NotifyURL string
	S3        publish.S3Config

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

// NewConfig validates cfg and makes its directories absolute.
func NewConfig(cfg Config) (*Config, error) {
	var errs []error
	if cfg.Prefix == "" {
		errs = append(errs, errors.New("Prefix is a required configuration field and cannot be empty"))
	}
	if cfg.BaseDir == "" {
		errs = append(errs, errors.New("BaseDir is a required configuration field and cannot be empty"))
	}
	if cfg.Shards < 1 {
		errs = append(errs, fmt.Errorf("shard count must be at least 1, got %d", cfg.Shards))
	}
	if cfg.WorkerCount < 0 {
		errs = append(errs, fmt.Errorf("worker count cannot be negative, got %d", cfg.WorkerCount))
	}
	switch cfg.Executor {
	case "":
		cfg.Executor = ExecutorLocal
	case ExecutorLocal, ExecutorSlurm:
	default:
		errs = append(errs, fmt.Errorf("unknown executor %q, want %q or %q", cfg.Executor, ExecutorLocal, ExecutorSlurm))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	for _, dir := range []*string{&cfg.BaseDir, &cfg.ScratchDir, &cfg.LogDir, &cfg.SlurmScriptDir, &cfg.Contigs} {
		if *dir == "" {
			continue
		}
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return nil, err
		}
		*dir = abs
	}
	if cfg.Executor == ExecutorSlurm && cfg.SlurmScriptDir == "" {
		cfg.SlurmScriptDir = filepath.Join(cfg.BaseDir, ".slurm")
	}
	return &cfg, nil
}

// samples returns Samples followed by the entries of SamplesFile. Blank
// lines and lines starting with '#' are ignored.
func (c *Config) samples() ([]string, error) {
	out := append([]string(nil), c.Samples...)
	if c.SamplesFile == "" {
		return out, nil
	}
	f, err := os.Open(c.SamplesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open samples file: %w", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read samples file: %w", err)
	}
	return out, nil
}

// request translates the config into a build request.
func (c *Config) request(targets []string) (builder.Request, error) {
	samples, err := c.samples()
	if err != nil {
		return builder.Request{}, err
	}
	return builder.Request{
		Targets:    targets,
		Samples:    samples,
		Prefix:     c.Prefix,
		Shards:     c.Shards,
		BaseDir:    c.BaseDir,
		ScratchDir: c.ScratchDir,
		LogDir:     c.LogDir,
		Ref: builder.Reference{
			Genome:  c.Genome,
			Mask:    c.Mask,
			Contigs: c.Contigs,
		},
	}, nil
}
