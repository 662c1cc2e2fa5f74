package harness

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_DemoChain(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/demo_chain.yaml")
	require.NoError(t, err)
	require.NoError(t, RunWithGolden(t, s))
}

func TestAssertGolden_NoBundle(t *testing.T) {
	result := NewResult()
	result.AddError("build failed")
	require.Error(t, AssertGolden(t, "none", result))
}
