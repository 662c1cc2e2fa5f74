package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/bor/internal/ir"
)

// RunWithGolden executes a scenario and compares the canonical primary proof
// against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if the scenario cannot run or does not produce a bundle.
// Test failure (via goldie) occurs if the proof doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the canonical primary proof of an existing result
// against the golden file for name.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	if result.Bundle == nil {
		return fmt.Errorf("scenario %s produced no bundle: %v", name, result.Errors)
	}
	proofJSON, err := ir.MarshalCanonical(&result.Bundle.Primary)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, proofJSON)
	return nil
}
