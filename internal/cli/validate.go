package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/bor/internal/compiler"
	"github.com/roach88/bor/internal/engine"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Chains []string                   `json:"chains"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <chains>",
		Short: "Validate chain definitions without running them",
		Long: `Compile CUE chain definitions and check them against the step registry.

<chains> is a .cue file or a directory holding one CUE package. Every chain
is checked; errors are reported all at once. No step is executed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if _, err := os.Stat(path); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "chain definitions not found", err)
	}
	chains, err := compiler.LoadChains(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "compile chains", err)
	}

	steps := engine.DefaultRegistry()
	names := make([]string, len(chains))
	var errs []compiler.ValidationError
	for i := range chains {
		names[i] = chains[i].Name
		formatter.VerboseLog("Validating chain: %s", chains[i].Name)
		errs = append(errs, compiler.Validate(&chains[i], steps)...)
	}

	if len(errs) > 0 {
		return outputValidationErrors(formatter, names, errs)
	}
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Chains: names})
	}
	fmt.Fprintf(formatter.Writer, "✓ %d chain(s) valid\n", len(names))
	return nil
}

// outputValidationErrors reports every validation error and returns an
// ExitFailure error.
func outputValidationErrors(formatter *OutputFormatter, chains []string, errs []compiler.ValidationError) error {
	msg := fmt.Sprintf("validation failed with %d error(s)", len(errs))
	if formatter.Format == "json" {
		err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Chains: chains, Errors: errs},
			Error:  &CLIError{Code: errs[0].Code, Message: errs[0].Message},
		})
		if err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range errs {
		fmt.Fprintf(formatter.Writer, "  %s %s.%s: %s\n", e.Code, e.Chain, e.Field, e.Message)
	}
	return NewExitError(ExitFailure, msg)
}
