package bundle

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bor/internal/engine"
	"github.com/roach88/bor/internal/ir"
	"github.com/roach88/bor/internal/observe"
	"github.com/roach88/bor/internal/testutil"
)

// perturbedMaster is the scenario master with the DP delta set to 1.
const perturbedMaster = "ce8e93c9310f993a1e3c8cd439542929b2fa81d33d7b074a1cb90e07ccfec0c0"

var scenarioSubproofHashes = map[string]string{
	"CCP":  "ff37d35898f68d7bb0d91e6fc31e609aa4d864acbcc9ce6abb67e238c1035717",
	"CMIP": "55635a5a0d5d566ac39605965f6571ea6b79c516b4475dd5f658e6f713dce92c",
	"DIP":  "55635a5a0d5d566ac39605965f6571ea6b79c516b4475dd5f658e6f713dce92c",
	"DP":   "30f7f7a7798d629cb0ef1babaea19363645ede5595dbe15d86d6e55a9fd67b3a",
	"PEP":  "9783c4c57f4f96980af49dcab85ec27f4b1d150d2fe236bc0c81583af6d9193c",
	"PP":   "55635a5a0d5d566ac39605965f6571ea6b79c516b4475dd5f658e6f713dce92c",
	"PoPI": "55635a5a0d5d566ac39605965f6571ea6b79c516b4475dd5f658e6f713dce92c",
	"TRP":  "55635a5a0d5d566ac39605965f6571ea6b79c516b4475dd5f658e6f713dce92c",
}

func scenarioInput(t *testing.T) Input {
	t.Helper()
	steps, err := engine.DefaultRegistry().Resolve(testutil.ScenarioStages())
	require.NoError(t, err)
	return Input{
		Initial: testutil.ScenarioInitial(),
		Config:  testutil.ScenarioConfig(),
		Version: testutil.ScenarioVersion,
		Steps:   steps,
	}
}

func TestBuildScenario(t *testing.T) {
	b := NewBuilder(WithClock(testutil.NewDeterministicClock()), WithEnv(testutil.ScenarioEnv()))

	bundle, err := b.Build(context.Background(), scenarioInput(t))
	require.NoError(t, err)

	assert.Equal(t, testutil.ScenarioMaster, bundle.Primary.Master)
	assert.Equal(t, testutil.ScenarioMaster, bundle.HMaster)
	assert.Equal(t, scenarioSubproofHashes, bundle.SubproofHashes)
	assert.Equal(t, testutil.ScenarioHRich, bundle.HRich)
	assert.Equal(t, ir.RichCommitment(bundle.SubproofHashes), bundle.HRich)
	assert.Equal(t, "2025-01-01T00:00:00Z", bundle.GeneratedAt)
	assert.Equal(t, ir.FormatVersion, bundle.FormatVersion)

	require.Len(t, bundle.Subproofs, 8)
	for name, res := range bundle.Subproofs {
		assert.Equal(t, ir.IRBool(true), res["ok"], "subproof %s", name)
	}
	assert.Equal(t, ir.IRString(perturbedMaster), bundle.Subproofs["DP"]["perturbed_master"])
	assert.Equal(t, ir.IRInt(1), bundle.Subproofs["DP"]["delta"])
	assert.Equal(t, ir.IRString("STEP_NOT_CALLABLE: step 1 (__bor_malformed__)"), bundle.Subproofs["PEP"]["exception"])
}

func TestBuildCommitmentsIgnoreEnvAndClock(t *testing.T) {
	a, err := NewBuilder(
		WithEnv(ir.IRString("host-a")),
		WithClock(testutil.NewDeterministicClockAt(testutil.DefaultStart, 0)),
	).Build(context.Background(), scenarioInput(t))
	require.NoError(t, err)

	b, err := NewBuilder(
		WithEnv(ir.IRObject{"host": ir.IRString("b"), "cpu": ir.IRInt(64)}),
		WithClock(testutil.NewDeterministicClockAt(testutil.DefaultStart.Add(48*time.Hour), 0)),
	).Build(context.Background(), scenarioInput(t))
	require.NoError(t, err)

	assert.NotEqual(t, a.Primary.Meta.H0, b.Primary.Meta.H0)
	assert.NotEqual(t, a.GeneratedAt, b.GeneratedAt)
	assert.Equal(t, a.HRich, b.HRich)
	assert.Equal(t, a.HMaster, b.HMaster)
	if diff := cmp.Diff(a.SubproofHashes, b.SubproofHashes); diff != "" {
		t.Errorf("subproof hashes differ (-a +b):\n%s", diff)
	}
}

func TestBuildIndependentOfSchedule(t *testing.T) {
	baseline, err := NewBuilder().Build(context.Background(), scenarioInput(t))
	require.NoError(t, err)

	reversed := Subproofs()
	slices.Reverse(reversed)

	schedules := map[string][]Option{
		"serial":          {WithConcurrency(1)},
		"pairs":           {WithConcurrency(2)},
		"reversed":        {WithSubproofs(reversed)},
		"reversed serial": {WithSubproofs(reversed), WithConcurrency(1)},
	}
	for name, opts := range schedules {
		t.Run(name, func(t *testing.T) {
			got, err := NewBuilder(opts...).Build(context.Background(), scenarioInput(t))
			require.NoError(t, err)
			assert.Equal(t, baseline.HRich, got.HRich)
			assert.Equal(t, baseline.SubproofHashes, got.SubproofHashes)
		})
	}
}

func TestBuildSubproofsAreIsolated(t *testing.T) {
	vandal := Subproof{
		Name: "ZZZ",
		Run: func(_ context.Context, in Input, primary *ir.PrimaryProof) (ir.IRObject, error) {
			in.Config["offset"] = ir.IRInt(1000)
			primary.Master = "tampered"
			primary.Steps[0].Input = ir.V(ir.IRInt(-1))
			primary.StageHashes[0] = "tampered"
			return ir.IRObject{"ok": ir.IRBool(true)}, nil
		},
	}
	set := append([]Subproof{vandal}, Subproofs()...)

	for i := 0; i < 5; i++ {
		got, err := NewBuilder(WithSubproofs(set)).Build(context.Background(), scenarioInput(t))
		require.NoError(t, err)
		assert.Equal(t, testutil.ScenarioMaster, got.HMaster)
		for name, want := range scenarioSubproofHashes {
			assert.Equal(t, want, got.SubproofHashes[name], "subproof %s", name)
		}
	}
}

func TestBuildDoesNotMutateInput(t *testing.T) {
	in := scenarioInput(t)
	_, err := NewBuilder().Build(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, testutil.ScenarioConfig(), in.Config)
	_, hasDelta := in.Config[DeltaKey]
	assert.False(t, hasDelta)
}

func TestBuildInternalErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	set := append(Subproofs(), Subproof{
		Name: "BROKEN",
		Run: func(context.Context, Input, *ir.PrimaryProof) (ir.IRObject, error) {
			return nil, boom
		},
	})

	_, err := NewBuilder(WithSubproofs(set)).Build(context.Background(), scenarioInput(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "BROKEN")
}

func TestBuildPrimaryFailure(t *testing.T) {
	in := scenarioInput(t)
	in.Config = ir.IRObject{}

	_, err := NewBuilder().Build(context.Background(), in)
	require.Error(t, err)
	assert.True(t, engine.IsDeterminismError(err))
}

func TestBuildCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBuilder().Build(ctx, scenarioInput(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildObservesPrimaryOnly(t *testing.T) {
	var steps, started int
	var built []observe.BundleBuilt
	obs := observe.Funcs{
		RunStarted:   func(observe.RunStarted) { started++ },
		StepRecorded: func(observe.StepRecorded) { steps++ },
		BundleBuilt:  func(e observe.BundleBuilt) { built = append(built, e) },
	}

	bundle, err := NewBuilder(WithObserver(obs)).Build(context.Background(), scenarioInput(t))
	require.NoError(t, err)

	assert.Equal(t, 1, started)
	assert.Equal(t, 2, steps)
	require.Len(t, built, 1)
	assert.Equal(t, bundle.HRich, built[0].HRich)
	assert.Equal(t, SubproofNames(), built[0].Subproofs)
}

func TestSubproofsNegativeOutcomesAreData(t *testing.T) {
	// With no steps the configuration never reaches the master, so DP reports
	// that perturbation changed nothing.
	b, err := NewBuilder().Build(context.Background(), Input{Initial: ir.IRInt(1), Version: "v1"})
	require.NoError(t, err)

	assert.Equal(t, ir.IRBool(false), b.Subproofs["DP"]["ok"])
	assert.Equal(t, ir.IRBool(true), b.Subproofs["DIP"]["ok"])
	assert.Equal(t, ir.MasterCommitment(nil), b.HMaster)
}

func TestDivergenceIncrementsExistingDelta(t *testing.T) {
	in := scenarioInput(t)
	in.Config[DeltaKey] = ir.IRInt(41)

	primary, err := NewBuilder().BuildPrimary(in)
	require.NoError(t, err)
	res, err := divergenceUnderPerturbation(context.Background(), in.clone(), primary)
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(42), res["delta"])
	assert.Equal(t, ir.IRBool(true), res["ok"])
}

func TestReverseRebuild(t *testing.T) {
	v := ir.IRObject{"b": ir.IRArray{ir.IRObject{"y": ir.IRInt(1), "x": ir.IRInt(2)}}, "a": ir.IRNull{}}
	assert.Equal(t, v, reverseRebuild(v))
}

func TestSubproofNamesSorted(t *testing.T) {
	names := SubproofNames()
	assert.True(t, slices.IsSorted(names))
	assert.Equal(t, []string{"CCP", "CMIP", "DIP", "DP", "PEP", "PP", "PoPI", "TRP"}, names)
}
