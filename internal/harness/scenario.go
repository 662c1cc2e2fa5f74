package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance scenario over one chain.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Chain is the path to a CUE chain definition file or directory.
	// Relative paths are resolved from the scenario file location.
	Chain string `yaml:"chain"`

	// ChainName selects a chain when the definition declares several.
	ChainName string `yaml:"chain_name,omitempty"`

	// Env is the environment fingerprint recorded in the primary proof.
	// If empty, the proof records null.
	Env map[string]any `yaml:"env,omitempty"`

	// Audit writes the bundle to a temporary directory and replays it.
	Audit bool `yaml:"audit,omitempty"`

	// ExpectError, when set, requires the build to fail with an error
	// containing this text.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Assertions validate the built bundle and the trace.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates one property of a scenario result.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Equals is the expected hash (master, h_rich), step output (step_output)
	// or sub-proof field value (subproof).
	Equals any `yaml:"equals,omitempty"`

	// Step is the 1-based step index (step_output).
	Step int `yaml:"step,omitempty"`

	// Count is the expected number of steps (step_count).
	Count int `yaml:"count,omitempty"`

	// Fns is the expected step order (trace_order).
	Fns []string `yaml:"fns,omitempty"`

	// Name is the sub-proof name (subproof).
	Name string `yaml:"name,omitempty"`

	// OK is the expected ok flag (subproof). Defaults to true.
	OK *bool `yaml:"ok,omitempty"`

	// Field names a sub-proof result field compared against Equals (subproof).
	Field string `yaml:"field,omitempty"`
}

// Assertion type constants.
const (
	AssertMaster     = "master"
	AssertHRich      = "h_rich"
	AssertStepCount  = "step_count"
	AssertStepOutput = "step_output"
	AssertTraceOrder = "trace_order"
	AssertSubproof   = "subproof"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Chain != "" && !filepath.IsAbs(scenario.Chain) {
		scenario.Chain = filepath.Join(filepath.Dir(path), scenario.Chain)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Chain == "" {
		return fmt.Errorf("chain is required")
	}
	if _, err := os.Stat(s.Chain); os.IsNotExist(err) {
		return fmt.Errorf("chain file not found: %s", s.Chain)
	}
	if s.ExpectError == "" && len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required unless expect_error is set")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertMaster, AssertHRich:
		if s, ok := a.Equals.(string); !ok || s == "" {
			return fmt.Errorf("assertions[%d]: equals must be a hash string for %s", index, a.Type)
		}
	case AssertStepCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for step_count", index)
		}
	case AssertStepOutput:
		if a.Step < 1 {
			return fmt.Errorf("assertions[%d]: step must be >= 1 for step_output", index)
		}
	case AssertTraceOrder:
		if len(a.Fns) == 0 {
			return fmt.Errorf("assertions[%d]: fns list is required for trace_order", index)
		}
	case AssertSubproof:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for subproof", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
