package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/bor/internal/artifact"
	"github.com/roach88/bor/internal/audit"
	"github.com/roach88/bor/internal/engine"
	"github.com/roach88/bor/internal/logging"
)

// VerifyResult is the outcome of verifying one file.
type VerifyResult struct {
	File   string `json:"file"`
	Kind   string `json:"kind"` // "bundle" | "primary"
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <file>",
		Short: "Replay a persisted bundle or primary proof",
		Long: `Verify a rich proof bundle by replaying it from its recorded inputs.

Every recorded hash is recomputed: step fingerprints, H0, the master
commitment, each sub-proof hash, H_MASTER and H_RICH. A primary_proof.json
file is checked against itself without executing any step.

Exit codes:
  0 - Verified
  1 - Drift, or the file is not a valid bundle
  2 - Command error (file not found)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runVerify(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	if _, err := os.Stat(path); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "file not found", err)
	}

	result := VerifyResult{File: path, Kind: "bundle"}
	var verr error
	if filepath.Base(path) == artifact.PrimaryFile {
		result.Kind = "primary"
		p, err := artifact.ReadPrimary(path)
		if err != nil {
			verr = err
		} else {
			verr = engine.VerifyPrimary(p)
		}
	} else {
		auditor, err := audit.New(audit.WithLogger(logging.New("audit")))
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "init auditor", err)
		}
		verr = auditor.VerifyBundleFile(cmd.Context(), path)
	}

	result.OK = verr == nil
	var failure *CLIError
	if verr != nil {
		result.Reason = verr.Error()
		failure = &CLIError{Code: ErrCodeDrift, Message: verr.Error()}
	}

	err := formatter.Report(result, failure, func(w io.Writer) {
		if result.OK {
			fmt.Fprintf(w, "✓ %s verified (%s)\n", result.File, result.Kind)
			return
		}
		fmt.Fprintf(w, "✗ %s failed verification\n", result.File)
		fmt.Fprintf(w, "  %s\n", result.Reason)
	})
	if err != nil {
		return err
	}
	if verr != nil {
		return WrapExitError(ExitFailure, "verification failed", verr)
	}
	return nil
}
