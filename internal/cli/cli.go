package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vk/callgrid/internal/app"
	"github.com/vk/callgrid/internal/config"
	"github.com/vk/callgrid/internal/hcl"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// usageError marks errors caused by invalid invocation.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// options are the flag values shared by every subcommand.
type options struct {
	pipeline    string
	targets     []string
	samples     []string
	samplesFile string
	prefix      string
	shards      int
	baseDir     string
	scratchDir  string
	logDir      string
	genome      string
	mask        string
	contigs     string
	logLevel    string
	logFormat   string

	executor        string
	workers         int
	failFast        bool
	recommit        bool
	notifyURL       string
	healthcheckPort int
	slurmScriptDir  string
	slurmAccount    string
}

// NewRootCommand returns the callgrid command tree writing to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "callgrid",
		Short: "Resumable variant-calling workflows on a shared filesystem",
		Long: `callgrid runs a declarative variant-calling pipeline as a graph of
idempotent tasks. Finished outputs are detected on disk, so an interrupted
run picks up where it stopped.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(out)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError{err} })

	f := root.PersistentFlags()
	f.StringVarP(&opts.pipeline, "pipeline", "p", env("PIPELINE", ""), "Pipeline file or directory of .hcl files. Defaults to the built-in callset pipeline.")
	f.StringSliceVarP(&opts.targets, "target", "t", envList("TARGETS"), "Block to build, e.g. group.callset. Repeatable. Defaults to every terminal block.")
	f.StringSliceVarP(&opts.samples, "sample", "s", envList("SAMPLES"), "Sample name. Repeatable.")
	f.StringVar(&opts.samplesFile, "samples-file", env("SAMPLES_FILE", ""), "File listing one sample per line.")
	f.StringVar(&opts.prefix, "prefix", env("PREFIX", ""), "Run prefix naming the output directory and files.")
	f.IntVar(&opts.shards, "shards", envInt("SHARDS", 10), "Default shard count of scattered stages.")
	f.StringVar(&opts.baseDir, "base-dir", env("BASE_DIR", ""), "Root of all outputs.")
	f.StringVar(&opts.scratchDir, "scratch-dir", env("SCRATCH_DIR", ""), "Root of scratch outputs. Defaults to the base directory.")
	f.StringVar(&opts.logDir, "log-dir", env("LOG_DIR", ""), "Directory for per-task logs.")
	f.StringVar(&opts.genome, "genome", env("GENOME", ""), "Reference genome FASTA.")
	f.StringVar(&opts.mask, "mask", env("MASK", ""), "Region mask BED file.")
	f.StringVar(&opts.contigs, "contigs", env("CONTIGS", ""), "Contig list used to scatter by region.")
	f.StringVar(&opts.logLevel, "log-level", env("LOG_LEVEL", "info"), "Logging level: debug, info, warn or error.")
	f.StringVar(&opts.logFormat, "log-format", env("LOG_FORMAT", "text"), "Log output format: text or json.")

	root.AddCommand(runCmd(opts), planCmd(opts), cleanCmd(opts))
	return root
}

func runCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every incomplete task behind the targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.newApp(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.executor, "executor", env("EXECUTOR", app.ExecutorLocal), "Where tasks run: local or slurm.")
	f.IntVarP(&opts.workers, "workers", "w", envInt("WORKERS", 0), "Maximum concurrent tasks. 0 uses the number of CPUs.")
	f.BoolVar(&opts.failFast, "fail-fast", false, "Cancel everything on the first failure.")
	f.BoolVar(&opts.recommit, "recommit", false, "Allow replacing committed deliverables.")
	f.StringVar(&opts.notifyURL, "notify-url", env("NOTIFY_URL", ""), "socket.io endpoint receiving run events.")
	f.IntVar(&opts.healthcheckPort, "healthcheck-port", envInt("HEALTHCHECK_PORT", 0), "Port for the /health and /status server. 0 is disabled.")
	f.StringVar(&opts.slurmScriptDir, "slurm-script-dir", env("SLURM_SCRIPT_DIR", ""), "Directory for rendered sbatch scripts.")
	f.StringVar(&opts.slurmAccount, "slurm-account", env("SLURM_ACCOUNT", ""), "Slurm account to charge.")
	return cmd
}

func planCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Print the tasks a run would execute",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.newApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return a.PrintPlan(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func cleanCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "clean <block>",
		Short: "Remove intermediate files behind a finished block",
		Long: `clean runs only the cleanup pass. <block> is a cleanup block such as
cleanup.cleanup_callset, or any block whose intermediates should go.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			report, err := a.Clean(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d, failed %d\n", len(report.Removed), len(report.Failed))
			for _, p := range report.Failed {
				fmt.Fprintf(cmd.OutOrStdout(), "could not remove %s\n", p)
			}
			return nil
		},
	}
}

func (o *options) newApp(logW io.Writer) (*app.App, error) {
	logFormat := strings.ToLower(o.logFormat)
	if logFormat != "text" && logFormat != "json" {
		return nil, usageError{errors.New("invalid log-format: must be 'text' or 'json'")}
	}
	logLevel := strings.ToLower(o.logLevel)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, usageError{errors.New("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")}
	}

	cfg, err := app.NewConfig(app.Config{
		PipelinePath:    o.pipeline,
		Targets:         o.targets,
		Samples:         o.samples,
		SamplesFile:     o.samplesFile,
		Prefix:          o.prefix,
		Shards:          o.shards,
		BaseDir:         o.baseDir,
		ScratchDir:      o.scratchDir,
		LogDir:          o.logDir,
		Genome:          o.genome,
		Mask:            o.mask,
		Contigs:         o.contigs,
		Executor:        o.executor,
		SlurmScriptDir:  o.slurmScriptDir,
		SlurmAccount:    o.slurmAccount,
		WorkerCount:     o.workers,
		FailFast:        o.failFast,
		Recommit:        o.recommit,
		NotifyURL:       o.notifyURL,
		S3:              s3FromEnv(),
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		HealthcheckPort: o.healthcheckPort,
	})
	if err != nil {
		return nil, usageError{err}
	}
	slog.Debug("CLI configuration parsed.", "prefix", cfg.Prefix, "pipeline", cfg.PipelinePath)
	return app.NewApp(logW, cfg, hcl.NewLoader())
}

// Execute runs the command tree with args. Errors are mapped to an
// ExitError: 2 for invalid invocations and pipeline definitions, 1 for
// everything else.
func Execute(ctx context.Context, args []string, out io.Writer) error {
	root := NewRootCommand(out)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var ue usageError
	if errors.As(err, &ue) || errors.Is(err, config.ErrInvalidPipeline) || isCobraUsage(err) {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	return &ExitError{Code: 1, Message: err.Error()}
}

// isCobraUsage recognizes argument-count and unknown-command errors, which
// cobra does not type.
func isCobraUsage(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "accepts ") ||
		strings.Contains(msg, "arg(s)")
}
