package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/bor/internal/artifact"
	"github.com/roach88/bor/internal/harness"
	"github.com/roach88/bor/internal/ir"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios>",
		Short: "Run conformance scenarios",
		Long: `Run conformance scenarios through the harness.

<scenarios> is a scenario file or a directory of *.yaml scenarios. Each
scenario builds its chain with a deterministic clock, checks its assertions
and, when golden/<name>.golden exists beside it, compares the canonical
primary proof byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  bor test ./scenarios
  bor test ./scenarios --filter "demo-*"
  bor test ./scenarios --update
  bor test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if _, err := os.Stat(path); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scenarios not found: %s", path), nil)
	}
	files, err := harness.FindScenarios(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "find scenarios", err)
	}
	files, err = filterScenarios(files, opts.Filter)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "filter scenarios", err)
	}

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	if len(files) == 0 {
		return formatter.Report(result, nil, func(w io.Writer) { fmt.Fprintln(w, "No scenarios found.") })
	}

	for _, o := range harness.New(nil).RunAll(cmd.Context(), files) {
		sr := scenarioResult(o, opts.Update)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	var failure *CLIError
	if result.Failed > 0 {
		failure = &CLIError{Code: ErrCodeTestFailed, Message: fmt.Sprintf("%d scenario(s) failed", result.Failed)}
	}
	if err := formatter.Report(result, failure, func(w io.Writer) { printTests(w, result) }); err != nil {
		return err
	}
	if failure != nil {
		return NewExitError(ExitFailure, failure.Message)
	}
	return nil
}

// filterScenarios keeps the files whose base name without extension matches pattern.
func filterScenarios(files []string, pattern string) ([]string, error) {
	if pattern == "" {
		return files, nil
	}
	var kept []string
	for _, f := range files {
		base := filepath.Base(f)
		matched, err := filepath.Match(pattern, strings.TrimSuffix(base, filepath.Ext(base)))
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
		if matched {
			kept = append(kept, f)
		}
	}
	return kept, nil
}

// scenarioResult folds the harness outcome and the golden comparison together.
func scenarioResult(o harness.Outcome, update bool) ScenarioResult {
	sr := ScenarioResult{Name: o.Name, Path: o.Path, Pass: o.Passed()}
	if sr.Name == "" {
		sr.Name = filepath.Base(o.Path)
	}
	if o.Err != "" {
		sr.Errors = append(sr.Errors, o.Err)
	}
	if o.Result != nil {
		sr.Errors = append(sr.Errors, o.Result.Errors...)
	}
	if o.Result == nil || o.Result.Bundle == nil {
		return sr
	}

	goldenPath := goldenFilePath(o.Path)
	if update {
		if err := updateGoldenFile(goldenPath, o.Result.Bundle); err != nil {
			sr.Pass = false
			sr.Errors = append(sr.Errors, err.Error())
		}
		return sr
	}
	match, err := compareWithGolden(goldenPath, o.Result.Bundle)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// No golden file: assertions only.
	case err != nil:
		sr.Pass = false
		sr.Errors = append(sr.Errors, err.Error())
	case !match:
		sr.Pass = false
		sr.Errors = append(sr.Errors, "primary proof does not match golden file (run with --update to regenerate)")
	}
	return sr
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

// updateGoldenFile writes the canonical primary proof as the golden file.
func updateGoldenFile(goldenPath string, b *ir.Bundle) error {
	data, err := ir.MarshalCanonical(&b.Primary)
	if err != nil {
		return fmt.Errorf("marshal primary proof: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(goldenPath), 0o755); err != nil {
		return fmt.Errorf("create golden directory: %w", err)
	}
	return artifact.WriteFileAtomic(goldenPath, data)
}

// compareWithGolden compares the canonical primary proof against the golden file.
func compareWithGolden(goldenPath string, b *ir.Bundle) (bool, error) {
	golden, err := os.ReadFile(goldenPath)
	if err != nil {
		return false, err
	}
	current, err := ir.MarshalCanonical(&b.Primary)
	if err != nil {
		return false, fmt.Errorf("marshal primary proof: %w", err)
	}
	return bytes.Equal(golden, current), nil
}

func printTests(w io.Writer, result TestResult) {
	for _, s := range result.Scenarios {
		if s.Pass {
			fmt.Fprintf(w, "✓ %s\n", s.Name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", s.Name)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed == 0 {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
}
