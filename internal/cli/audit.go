package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/bor/internal/audit"
	"github.com/roach88/bor/internal/ir"
	"github.com/roach88/bor/internal/logging"
	"github.com/roach88/bor/internal/store"
)

// AuditOptions holds flags for the audit command.
type AuditOptions struct {
	*RootOptions
	Last    int
	History string
	List    int // print this many recorded runs instead of auditing
}

// AuditResult is the output of an audit run.
type AuditResult struct {
	Root   string         `json:"root"`
	Report ir.AuditReport `json:"report"`
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "audit [root]",
		Short: "Replay the most recent bundles and report drift",
		Long: `Discover the most recently modified bundles under root (default from
config), replay each one and report every bundle that drifted.

Malformed or unreadable bundle files count as drift. With a history
database (--history or audit.history) every report is recorded; --list
prints recorded runs instead of auditing.

Exit codes:
  0 - No drift
  1 - At least one bundle drifted
  2 - Command error`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := ""
			if len(args) == 1 {
				root = args[0]
			}
			return runAudit(opts, root, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Last, "last", "n", -1, "number of bundles to audit, 0 for all (default from config)")
	cmd.Flags().StringVar(&opts.History, "history", "", "SQLite database recording audit reports")
	cmd.Flags().IntVar(&opts.List, "list", 0, "list this many recorded audit runs and exit")

	return cmd
}

func runAudit(opts *AuditOptions, root string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	cfg := opts.config()
	formatter := opts.formatter(cmd)

	root = firstNonEmpty(root, cfg.Audit.Root)
	last := cfg.Audit.Limit
	if opts.Last >= 0 {
		last = opts.Last
	}

	auditOpts := []audit.Option{audit.WithLogger(logging.New("audit")), audit.WithClock(opts.clock())}
	if path := firstNonEmpty(opts.History, cfg.Audit.History); path != "" {
		st, err := store.Open(path)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "open audit history", err)
		}
		defer st.Close()
		if opts.List > 0 {
			return listAuditRuns(formatter, st, opts.List, cmd)
		}
		auditOpts = append(auditOpts, audit.WithHistory(st))
	} else if opts.List > 0 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--list needs a history database", nil)
	}

	auditor, err := audit.New(auditOpts...)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "init auditor", err)
	}
	formatter.VerboseLog("Auditing up to %d bundle(s) under %s", last, root)
	rep, err := auditor.AuditLastN(ctx, root, last)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "audit", err)
	}

	result := AuditResult{Root: root, Report: rep}
	var failure *CLIError
	if !rep.OK {
		failure = &CLIError{Code: ErrCodeDrift, Message: fmt.Sprintf("%d bundle(s) drifted", len(rep.Drift))}
	}
	err = formatter.Report(result, failure, func(w io.Writer) {
		fmt.Fprintf(w, "Audited %d bundle(s) under %s: %d verified\n", rep.Checked, root, rep.Verified)
		for _, d := range rep.Drift {
			fmt.Fprintf(w, "✗ %s\n  %s\n", d.Bundle, d.Reason)
		}
		if rep.OK {
			fmt.Fprintln(w, "✓ No drift")
		}
	})
	if err != nil {
		return err
	}
	if failure != nil {
		return NewExitError(ExitFailure, failure.Message)
	}
	return nil
}

func listAuditRuns(formatter *OutputFormatter, st *store.Store, limit int, cmd *cobra.Command) error {
	runs, err := st.AuditRuns(cmd.Context(), limit)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "read audit history", err)
	}
	return formatter.Report(runs, nil, func(w io.Writer) {
		if len(runs) == 0 {
			fmt.Fprintln(w, "No audit runs recorded.")
			return
		}
		for _, r := range runs {
			mark := "✓"
			if !r.Report.OK {
				mark = "✗"
			}
			fmt.Fprintf(w, "%s #%d %s %s: %d/%d verified\n", mark, r.Seq, r.RunAt, r.Root, r.Report.Verified, r.Report.Checked)
		}
	})
}
