package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/bor/internal/config"
	"github.com/roach88/bor/internal/engine"
	"github.com/roach88/bor/internal/ir"
	"github.com/roach88/bor/internal/logging"
	"github.com/roach88/bor/internal/observe"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	LogLevel   string
	LogFormat  string

	// Config is loaded by the root command before any subcommand runs.
	Config *config.Config

	// Clock stamps registry entries, ledger epochs and audit history.
	// Nil means the system clock.
	Clock engine.Clock

	// TracerProvider creates the spans of a prove run. Nil means the global
	// provider, which load replaces when trace.file is set.
	TracerProvider trace.TracerProvider
	TraceOut       string

	traceShutdown func(context.Context) error
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// config returns the loaded configuration, or the defaults when a subcommand
// runs without the root command.
func (o *RootOptions) config() *config.Config {
	if o.Config == nil {
		o.Config = config.Default()
	}
	return o.Config
}

func (o *RootOptions) clock() engine.Clock {
	if o.Clock == nil {
		return engine.SystemClock{}
	}
	return o.Clock
}

func (o *RootOptions) tracer() trace.Tracer {
	if o.TracerProvider == nil {
		return otel.Tracer(tracerName)
	}
	return o.TracerProvider.Tracer(tracerName)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// NewRootCommand creates the root command for the bor CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bor",
		Short:   "bor - replay-verifiable proofs of reasoning chains",
		Long:    "Build rich proof bundles for deterministic reasoning chains, register them, derive consensus and audit persisted bundles by replay.",
		Version: ir.EngineVersion,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true, // main prints the error once
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.load(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.shutdownTracing(cmd.Context())
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", config.DefaultFile, "configuration file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error), overrides log.level")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format (text|json), overrides log.format")
	cmd.PersistentFlags().StringVar(&opts.TraceOut, "trace-out", "", "write spans as JSON lines to this file, overrides trace.file")

	cmd.AddCommand(NewProveCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewRegisterCommand(opts))
	cmd.AddCommand(NewLedgerCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))
	cmd.AddCommand(NewIndexCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// load reads the configuration file, applies log flag overrides and
// initializes logging. An explicitly passed --config must exist.
func (o *RootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath, cmd.Flags().Changed("config"))
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Log.Format = o.LogFormat
	}
	if o.TraceOut != "" {
		cfg.Trace.File = o.TraceOut
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	logging.Init(level, cfg.Log.Format, cmd.ErrOrStderr())

	o.Config = cfg
	if cfg.Trace.File != "" && o.TracerProvider == nil {
		if err := o.startTracing(cfg.Trace.File); err != nil {
			return WrapExitError(ExitCommandError, "open trace file", err)
		}
	}
	return nil
}

// startTracing installs a provider exporting spans to path. Spans are written
// as they end, so a failed command still leaves its spans behind.
func (o *RootOptions) startTracing(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	tp := observe.NewJSONLTracerProvider(f)
	o.TracerProvider = tp
	o.traceShutdown = func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), f.Close())
	}
	return nil
}

func (o *RootOptions) shutdownTracing(ctx context.Context) error {
	if o.traceShutdown == nil {
		return nil
	}
	shutdown := o.traceShutdown
	o.traceShutdown = nil
	if ctx == nil {
		ctx = context.Background()
	}
	return shutdown(ctx)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
