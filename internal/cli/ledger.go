package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/bor/internal/consensus"
	"github.com/roach88/bor/internal/ir"
)

// LedgerOptions holds flags for the ledger command.
type LedgerOptions struct {
	*RootOptions
	Quorum  int
	Out     string
	Require bool // fail unless the leading commitment reached quorum
}

// LedgerResult is the regenerated ledger and its consensus summary.
type LedgerResult struct {
	Path      string           `json:"path"`
	Epochs    []ir.Epoch       `json:"epochs"`
	Confirmed int              `json:"confirmed"`
	Pending   int              `json:"pending"`
	Consensus consensus.Result `json:"consensus"`
}

// NewLedgerCommand creates the ledger command.
func NewLedgerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LedgerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Regenerate the consensus ledger from the registry",
		Long: `Group every registry entry by H_RICH and classify each group.

A group is CONFIRMED once at least quorum distinct verifiers registered it,
otherwise PENDING. The ledger file is replaced on every run.

Exit codes:
  0 - Ledger written
  1 - --require-quorum given and no commitment reached quorum
  2 - Command error (unreadable registry, invalid quorum)`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLedger(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Quorum, "quorum", 0, "distinct verifiers required (default from config)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "ledger file (default from config)")
	cmd.Flags().BoolVar(&opts.Require, "require-quorum", false, "exit 1 unless a commitment reached quorum")

	return cmd
}

func runLedger(opts *LedgerOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	cfg := *opts.config()
	formatter := opts.formatter(cmd)

	if opts.Quorum != 0 {
		cfg.Ledger.Quorum = opts.Quorum
	}
	if opts.Out != "" {
		cfg.Ledger.Path = opts.Out
	}
	if cfg.Ledger.Quorum < 1 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("quorum must be at least 1, got %d", cfg.Ledger.Quorum), nil)
	}

	r, err := openRegistry(&cfg)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRegistry, "ledger", err)
	}
	defer r.Close()

	entries, err := r.Entries(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRegistry, "read registry", err)
	}
	formatter.VerboseLog("Read %d registry entries from %s", len(entries), cfg.Registry.Path)

	epochs, err := rebuildLedger(ctx, &cfg, r, cfg.Ledger.Quorum, opts.clock().Now())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRegistry, "ledger", err)
	}
	check, err := consensus.Check(entries, cfg.Ledger.Quorum)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRegistry, "ledger", err)
	}

	result := LedgerResult{Path: cfg.Ledger.Path, Epochs: epochs, Consensus: check}
	if result.Epochs == nil {
		result.Epochs = []ir.Epoch{}
	}
	result.Confirmed, result.Pending = consensus.Counts(epochs)

	var failure *CLIError
	if opts.Require && !check.Reached {
		failure = &CLIError{
			Code:    ErrCodeRegistry,
			Message: fmt.Sprintf("no commitment reached quorum %d (best %d)", check.Quorum, check.Count),
		}
	}
	if err := formatter.Report(result, failure, func(w io.Writer) { printLedger(w, result) }); err != nil {
		return err
	}
	if failure != nil {
		return NewExitError(ExitFailure, failure.Message)
	}
	return nil
}

func printLedger(w io.Writer, r LedgerResult) {
	fmt.Fprintf(w, "Ledger %s: %d confirmed, %d pending\n", r.Path, r.Confirmed, r.Pending)
	for _, e := range r.Epochs {
		fmt.Fprintf(w, "  %-9s %s  %d verifier(s) %v\n", e.Status, e.Hash, e.Count, e.Verifiers)
	}
	if r.Consensus.Reached {
		fmt.Fprintf(w, "✓ Consensus on %s (%d/%d)\n", r.Consensus.Hash, r.Consensus.Count, r.Consensus.Quorum)
	} else {
		fmt.Fprintf(w, "✗ No consensus (best %d/%d)\n", r.Consensus.Count, r.Consensus.Quorum)
	}
}
