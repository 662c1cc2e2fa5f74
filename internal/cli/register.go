package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/bor/internal/artifact"
	"github.com/roach88/bor/internal/audit"
	"github.com/roach88/bor/internal/logging"
	"github.com/roach88/bor/internal/registry"
)

// RegisterOptions holds flags for the register command.
type RegisterOptions struct {
	*RootOptions
	Verifier string
	NoVerify bool
}

// RegisterResult describes the appended registry entry.
type RegisterResult struct {
	Bundle   string `json:"bundle"`
	HRich    string `json:"H_RICH"`
	HMaster  string `json:"H_MASTER"`
	Verifier string `json:"verifier"`
	Ledger   string `json:"ledger"`
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegisterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "register <bundle-file>",
		Short: "Register an existing bundle under a verifier",
		Long: `Append a registry entry for a bundle produced elsewhere and regenerate the
consensus ledger.

The bundle is replayed first; a bundle that does not verify is not
registered unless --no-verify is given.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Verifier, "verifier", "", "verifier identity (default from config)")
	cmd.Flags().BoolVar(&opts.NoVerify, "no-verify", false, "register without replaying the bundle")

	return cmd
}

func runRegister(opts *RegisterOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	cfg := *opts.config()
	formatter := opts.formatter(cmd)

	cfg.Verifier = firstNonEmpty(opts.Verifier, cfg.Verifier)
	if err := cfg.RequireVerifier(); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRegistry, "register", err)
	}

	b, _, err := artifact.ReadBundle(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "read bundle", err)
	}
	if !opts.NoVerify {
		auditor, err := audit.New(audit.WithLogger(logging.New("audit")))
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "init auditor", err)
		}
		if err := auditor.VerifyBundleFile(ctx, path); err != nil {
			return formatter.Fail(ExitFailure, ErrCodeDrift, "bundle does not verify", err)
		}
	}

	r, err := openRegistry(&cfg)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRegistry, "register", err)
	}
	defer r.Close()
	if err := r.Append(ctx, registry.NewEntry(b, cfg.Verifier, path, opts.clock().Now())); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRegistry, "register", err)
	}
	if _, err := rebuildLedger(ctx, &cfg, r, cfg.Ledger.Quorum, opts.clock().Now()); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRegistry, "update ledger", err)
	}
	logging.New("registry").Info("bundle registered", "bundle", path, "verifier", cfg.Verifier, "h_rich", b.HRich)

	result := RegisterResult{
		Bundle:   path,
		HRich:    b.HRich,
		HMaster:  b.HMaster,
		Verifier: cfg.Verifier,
		Ledger:   cfg.Ledger.Path,
	}
	return formatter.Report(result, nil, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Registered %s as %s\n", result.HRich, result.Verifier)
		fmt.Fprintf(w, "  ledger: %s\n", result.Ledger)
	})
}
