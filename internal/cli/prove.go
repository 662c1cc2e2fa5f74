package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/bor/internal/artifact"
	"github.com/roach88/bor/internal/bundle"
	"github.com/roach88/bor/internal/compiler"
	"github.com/roach88/bor/internal/engine"
	"github.com/roach88/bor/internal/ir"
	"github.com/roach88/bor/internal/logging"
	"github.com/roach88/bor/internal/observe"
	"github.com/roach88/bor/internal/registry"
)

const tracerName = "github.com/roach88/bor"

// ProveOptions holds flags for the prove command.
type ProveOptions struct {
	*RootOptions
	Name       string // chain to prove when the file declares several
	OutDir     string
	Verifier   string
	NoRegister bool
	Compare    string // previous bundle whose H_MASTER must match
}

// ProveResult is the output of a prove run.
type ProveResult struct {
	Chain      string          `json:"chain"`
	BundleID   string          `json:"bundle_id"`
	Bundle     string          `json:"bundle"`
	HMaster    string          `json:"H_MASTER"`
	HRich      string          `json:"H_RICH"`
	Subproofs  map[string]bool `json:"subproofs"`
	Verifier   string          `json:"verifier,omitempty"`
	Registered bool            `json:"registered"`
	Ledger     string          `json:"ledger,omitempty"`
	Comparison *Comparison     `json:"comparison,omitempty"`
}

// Comparison records a check of the new H_MASTER against an earlier bundle.
type Comparison struct {
	Bundle  string `json:"bundle"`
	HMaster string `json:"H_MASTER"`
	Match   bool   `json:"match"`
}

// NewProveCommand creates the prove command.
func NewProveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "prove <chain.cue>",
		Short: "Build, persist and register a rich proof bundle",
		Long: `Run a reasoning chain, build its rich proof bundle and write it to a
fresh bundle directory under the output directory.

Unless --no-register is given, the bundle is appended to the registry under
the verifier identity and the consensus ledger is regenerated. The verifier
comes from --verifier, then the chain definition, then the configuration.

Exit codes:
  0 - Bundle built (and registered)
  1 - Chain invalid, build failed, or H_MASTER differs from --compare
  2 - Command error (unreadable chain, missing verifier, etc.)

Examples:
  bor prove chains/demo.cue --verifier node-a
  bor prove chains/ --name demo --no-register
  bor prove chains/demo.cue --compare out/<id>/rich_proof_bundle.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProve(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "chain name (required when the file declares several)")
	cmd.Flags().StringVarP(&opts.OutDir, "out", "o", "", "output directory (default from config)")
	cmd.Flags().StringVar(&opts.Verifier, "verifier", "", "verifier identity for the registry entry")
	cmd.Flags().BoolVar(&opts.NoRegister, "no-register", false, "write the bundle without registering it")
	cmd.Flags().StringVar(&opts.Compare, "compare", "", "earlier bundle whose H_MASTER must match")

	return cmd
}

func runProve(opts *ProveOptions, chainPath string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	cfg := opts.config()
	formatter := opts.formatter(cmd)
	logger := logging.New("prove")

	chain, err := compiler.LoadChain(chainPath, opts.Name)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "load chain", err)
	}
	steps := engine.DefaultRegistry()
	if errs := compiler.Validate(chain, steps); len(errs) > 0 {
		return outputValidationErrors(formatter, []string{chain.Name}, errs)
	}

	verifier := firstNonEmpty(opts.Verifier, chain.Verifier, cfg.Verifier)
	if !opts.NoRegister {
		withVerifier := *cfg
		withVerifier.Verifier = verifier
		if err := withVerifier.RequireVerifier(); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeRegistry, "register", err)
		}
	}

	in, err := chain.Input(steps)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "resolve chain", err)
	}

	formatter.VerboseLog("Proving chain %s (%d stages)", chain.Name, len(chain.Stages))
	builder := bundle.NewBuilder(
		bundle.WithEnv(DefaultEnv()),
		bundle.WithClock(opts.clock()),
		bundle.WithConcurrency(cfg.Concurrency),
		bundle.WithObserver(observe.Multi(
			observe.NewLogObserver(logging.New("engine")),
			observe.NewTraceObserver(ctx, opts.tracer()),
		)),
	)
	b, err := builder.Build(ctx, in)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeBuild, "build bundle", err)
	}

	written, err := artifact.NewWriter(firstNonEmpty(opts.OutDir, cfg.OutDir), nil).Write(b)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "write bundle", err)
	}
	logger.Info("bundle written", "bundle", written.Bundle, "h_rich", b.HRich)

	result := ProveResult{
		Chain:     chain.Name,
		BundleID:  written.ID,
		Bundle:    written.Bundle,
		HMaster:   b.HMaster,
		HRich:     b.HRich,
		Subproofs: subproofStatus(b),
		Verifier:  verifier,
	}

	if !opts.NoRegister {
		r, err := openRegistry(cfg)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeRegistry, "register", err)
		}
		defer r.Close()
		if err := r.Append(ctx, registry.NewEntry(b, verifier, written.Bundle, opts.clock().Now())); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeRegistry, "register", err)
		}
		if _, err := rebuildLedger(ctx, cfg, r, cfg.Ledger.Quorum, opts.clock().Now()); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeRegistry, "update ledger", err)
		}
		result.Registered = true
		result.Ledger = cfg.Ledger.Path
	}

	var failure *CLIError
	if opts.Compare != "" {
		prev, _, err := artifact.ReadBundle(opts.Compare)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, "read comparison bundle", err)
		}
		result.Comparison = &Comparison{
			Bundle:  opts.Compare,
			HMaster: prev.HMaster,
			Match:   prev.HMaster == b.HMaster,
		}
		if !result.Comparison.Match {
			logger.Warn("H_MASTER drift", "previous", prev.HMaster, "current", b.HMaster, "bundle", opts.Compare)
			failure = &CLIError{Code: ErrCodeDrift, Message: "H_MASTER differs from " + opts.Compare}
		}
	}

	if err := formatter.Report(result, failure, func(w io.Writer) { printProve(w, result) }); err != nil {
		return err
	}
	if failure != nil {
		return NewExitError(ExitFailure, failure.Message)
	}
	return nil
}

func subproofStatus(b *ir.Bundle) map[string]bool {
	status := make(map[string]bool, len(b.Subproofs))
	for name, res := range b.Subproofs {
		ok, _ := res["ok"].(ir.IRBool)
		status[name] = bool(ok)
	}
	return status
}

func printProve(w io.Writer, r ProveResult) {
	fmt.Fprintf(w, "✓ Bundle %s (chain %s)\n", r.BundleID, r.Chain)
	fmt.Fprintf(w, "  H_MASTER: %s\n", r.HMaster)
	fmt.Fprintf(w, "  H_RICH:   %s\n", r.HRich)
	fmt.Fprintf(w, "  file:     %s\n", r.Bundle)
	for _, name := range ir.SortedNames(r.Subproofs) {
		mark := "✓"
		if !r.Subproofs[name] {
			mark = "✗"
		}
		fmt.Fprintf(w, "  %s %s\n", mark, name)
	}
	if r.Registered {
		fmt.Fprintf(w, "Registered as %s (ledger %s)\n", r.Verifier, r.Ledger)
	}
	if c := r.Comparison; c != nil {
		if c.Match {
			fmt.Fprintf(w, "✓ H_MASTER matches %s\n", c.Bundle)
		} else {
			fmt.Fprintf(w, "✗ H_MASTER differs from %s (was %s)\n", c.Bundle, c.HMaster)
		}
	}
}
