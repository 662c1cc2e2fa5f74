package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bor/internal/ir"
)

func TestBuiltinSteps(t *testing.T) {
	cfg := ir.IRObject{"offset": ir.IRInt(4)}
	tests := []struct {
		name  string
		input ir.IRValue
		want  ir.IRValue
	}{
		{"add", ir.IRInt(7), ir.IRInt(11)},
		{"add", ir.IRFloat(0.5), ir.IRFloat(4.5)},
		{"add", ir.IRFloat(1e16), ir.IRInt(10000000000000004)},
		{"square", ir.IRInt(11), ir.IRInt(121)},
		{"square", ir.IRFloat(1.5), ir.IRFloat(2.25)},
		{"double", ir.IRInt(-3), ir.IRInt(-6)},
		{"negate", ir.IRInt(5), ir.IRInt(-5)},
		{"identity", ir.IRString("same"), ir.IRString("same")},
	}

	reg := DefaultRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := reg.Lookup(tt.name)
			require.NoError(t, err)
			got, err := s.Fn(tt.input, cfg, "v1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuiltinStepErrors(t *testing.T) {
	_, err := addStep(ir.IRInt(1), ir.IRObject{}, "v1")
	assert.ErrorContains(t, err, "offset")

	_, err = squareStep(ir.IRString("x"), nil, "v1")
	assert.ErrorContains(t, err, "number")

	_, err = squareStep(ir.IRInt(math.MaxInt64), nil, "v1")
	assert.ErrorContains(t, err, "overflow")

	_, err = addStep(ir.IRInt(math.MaxInt64), ir.IRObject{"offset": ir.IRInt(1)}, "v1")
	assert.ErrorContains(t, err, "overflow")

	_, err = negateStep(ir.IRInt(math.MinInt64), nil, "v1")
	assert.ErrorContains(t, err, "overflow")
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewStep("identity", identityStep)))

	assert.Error(t, reg.Register(NewStep("identity", identityStep)), "duplicate name")
	assert.Error(t, reg.Register(NewStep("", identityStep)), "empty name")
	assert.True(t, IsDeterminismError(reg.Register(Step{Name: "nil"})))

	_, err := reg.Lookup("nope")
	assert.True(t, IsUnknownStep(err))

	_, err = reg.Resolve([]string{"identity", "nope"})
	require.Error(t, err)
	assert.True(t, IsUnknownStep(err))
	assert.Contains(t, err.Error(), "stage 2")

	assert.Equal(t, []string{"add", "double", "identity", "negate", "square"}, DefaultRegistry().Names())
}
