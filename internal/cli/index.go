package cli

import (
	"fmt"
	"io"
	"maps"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/bor/internal/artifact"
	"github.com/roach88/bor/internal/ir"
)

// IndexOptions holds flags for the index command.
type IndexOptions struct {
	*RootOptions
	Write bool
	Check bool
}

// IndexResult is a bundle index and, with --check, how the stored index compares.
type IndexResult struct {
	Bundle  string         `json:"bundle"`
	Index   ir.BundleIndex `json:"index"`
	Written string         `json:"written,omitempty"`
	Checked bool           `json:"checked,omitempty"`
	Match   bool           `json:"match,omitempty"`
	Reason  string         `json:"reason,omitempty"`
}

// NewIndexCommand creates the index command.
func NewIndexCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IndexOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "index <bundle-file>",
		Short: "Print, write or check a bundle index",
		Long: `Derive the compact index of a bundle: H_RICH and the per-sub-proof hashes.

--write stores it as bundle_index.json next to the bundle. --check compares
the stored index with the bundle and recomputes its H_RICH.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Write, "write", false, "write bundle_index.json next to the bundle")
	cmd.Flags().BoolVar(&opts.Check, "check", false, "check the stored bundle_index.json against the bundle")

	return cmd
}

func runIndex(opts *IndexOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	b, _, err := artifact.ReadBundle(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "read bundle", err)
	}
	result := IndexResult{Bundle: path, Index: b.Index()}
	indexPath := filepath.Join(filepath.Dir(path), artifact.IndexFile)

	var failure *CLIError
	if opts.Check {
		stored, err := artifact.ReadIndex(indexPath)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, "read bundle index", err)
		}
		result.Checked = true
		result.Reason = compareIndex(stored, &result.Index)
		result.Match = result.Reason == ""
		if !result.Match {
			failure = &CLIError{Code: ErrCodeDrift, Message: result.Reason}
		}
	}
	if opts.Write {
		if err := artifact.WriteJSON(indexPath, &result.Index); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "write bundle index", err)
		}
		result.Written = indexPath
	}

	if err := formatter.Report(result, failure, func(w io.Writer) { printIndex(w, result) }); err != nil {
		return err
	}
	if failure != nil {
		return NewExitError(ExitFailure, failure.Message)
	}
	return nil
}

// compareIndex returns why stored does not describe the bundle, or "".
func compareIndex(stored, derived *ir.BundleIndex) string {
	if h := ir.RichCommitment(stored.SubproofHashes); h != stored.HRich {
		return fmt.Sprintf("index H_RICH %s does not match its sub-proof hashes (%s)", stored.HRich, h)
	}
	if stored.HRich != derived.HRich {
		return fmt.Sprintf("index H_RICH %s, bundle H_RICH %s", stored.HRich, derived.HRich)
	}
	if !maps.Equal(stored.SubproofHashes, derived.SubproofHashes) {
		return "index sub-proof hashes differ from the bundle"
	}
	return ""
}

func printIndex(w io.Writer, r IndexResult) {
	fmt.Fprintf(w, "H_RICH %s\n", r.Index.HRich)
	for _, name := range ir.SortedNames(r.Index.SubproofHashes) {
		fmt.Fprintf(w, "  %-5s %s\n", name, r.Index.SubproofHashes[name])
	}
	if r.Written != "" {
		fmt.Fprintf(w, "Wrote %s\n", r.Written)
	}
	if r.Checked {
		if r.Match {
			fmt.Fprintln(w, "✓ Stored index matches")
		} else {
			fmt.Fprintf(w, "✗ %s\n", r.Reason)
		}
	}
}
