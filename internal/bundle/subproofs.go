package bundle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/roach88/bor/internal/engine"
	"github.com/roach88/bor/internal/ir"
)

// DeltaKey is the configuration key perturbed by the DP sub-proof.
const DeltaKey = "__bor_delta__"

// malformedStep is the step name PEP submits without a function.
const malformedStep = "__bor_malformed__"

// SubproofFunc checks one property of a chain. It receives private copies of the
// inputs and of the primary proof and must return the same result for the same
// arguments. Results must never carry wall time or the environment fingerprint.
type SubproofFunc func(ctx context.Context, in Input, primary *ir.PrimaryProof) (ir.IRObject, error)

// Subproof is a named auxiliary check.
type Subproof struct {
	Name string
	Run  SubproofFunc
}

// Subproofs returns the standard sub-proof set in name order.
func Subproofs() []Subproof {
	return []Subproof{
		{Name: "CCP", Run: canonicalizationConsistency},
		{Name: "CMIP", Run: crossModuleIntegrity},
		{Name: "DIP", Run: deterministicIdentity},
		{Name: "DP", Run: divergenceUnderPerturbation},
		{Name: "PEP", Run: purityException},
		{Name: "PP", Run: persistence},
		{Name: "PoPI", Run: primaryIntegrity},
		{Name: "TRP", Run: temporalReproducibility},
	}
}

// SubproofNames returns the names of the standard set.
func SubproofNames() []string {
	sps := Subproofs()
	names := make([]string, len(sps))
	for i, sp := range sps {
		names[i] = sp.Name
	}
	return names
}

func result(ok bool, fields ...ir.IRPair) ir.IRObject {
	obj := ir.NewIRObjectFromPairs(fields...)
	obj["ok"] = ir.IRBool(ok)
	return obj
}

func failed(err error) ir.IRObject {
	return result(false, ir.O("error", ir.IRString(err.Error())))
}

// replay executes the chain with no environment and no observer.
func replay(in Input) (string, error) {
	p, err := engine.Execute(in.Initial, in.Config, in.Version, in.Steps)
	if err != nil {
		return "", err
	}
	return p.Master, nil
}

// canonicalizationConsistency checks that (S0, C) encode to the same bytes after a
// decode/re-encode cycle and after rebuilding every object in reverse key order.
func canonicalizationConsistency(_ context.Context, in Input, _ *ir.PrimaryProof) (ir.IRObject, error) {
	doc := ir.IRObject{"S0": ir.Clone(in.Initial), "C": ir.CloneObject(in.Config)}

	first, err := ir.MarshalCanonical(doc)
	if err != nil {
		return nil, err
	}
	decoded, err := ir.UnmarshalIRValue(first)
	if err != nil {
		return nil, err
	}
	second, err := ir.MarshalCanonical(decoded)
	if err != nil {
		return nil, err
	}
	third, err := ir.MarshalCanonical(reverseRebuild(doc))
	if err != nil {
		return nil, err
	}

	ok := bytes.Equal(first, second) && bytes.Equal(first, third)
	return result(ok, ir.O("hash", ir.IRString(ir.MustContentHash(ir.IRString(first))))), nil
}

func reverseRebuild(v ir.IRValue) ir.IRValue {
	switch val := v.(type) {
	case ir.IRObject:
		keys := val.SortedKeys()
		slices.Reverse(keys)
		out := make(ir.IRObject, len(val))
		for _, k := range keys {
			out[k] = reverseRebuild(val[k])
		}
		return out
	case ir.IRArray:
		out := make(ir.IRArray, len(val))
		for i, e := range val {
			out[i] = reverseRebuild(e)
		}
		return out
	default:
		return ir.Clone(v)
	}
}

// crossModuleIntegrity recomputes every fingerprint and the master from the step
// records alone, independently of the executor.
func crossModuleIntegrity(_ context.Context, _ Input, primary *ir.PrimaryProof) (ir.IRObject, error) {
	ok := true
	fps := make([]string, len(primary.Steps))
	for i, rec := range primary.Steps {
		fp, err := ir.Fingerprint(rec.Fn, rec.Input.Get(), rec.Config, rec.Version)
		if err != nil {
			return nil, err
		}
		ok = ok && fp == rec.Fingerprint
		fps[i] = fp
	}
	master := ir.MasterCommitment(fps)
	ok = ok && master == primary.Master
	return result(ok, ir.O("master", ir.IRString(master))), nil
}

// deterministicIdentity runs the chain twice from scratch and compares masters.
func deterministicIdentity(_ context.Context, in Input, _ *ir.PrimaryProof) (ir.IRObject, error) {
	a, err := replay(in.clone())
	if err != nil {
		return failed(err), nil
	}
	b, err := replay(in.clone())
	if err != nil {
		return failed(err), nil
	}
	return result(a == b, ir.O("master", ir.IRString(a))), nil
}

// divergenceUnderPerturbation reruns the chain with DeltaKey set to 1 (or
// incremented) and records whether the master changed.
func divergenceUnderPerturbation(_ context.Context, in Input, primary *ir.PrimaryProof) (ir.IRObject, error) {
	cfg := ir.CloneObject(in.Config)
	if d, isInt := cfg[DeltaKey].(ir.IRInt); isInt {
		cfg[DeltaKey] = d + 1
	} else {
		cfg[DeltaKey] = ir.IRInt(1)
	}
	in.Config = cfg

	m, err := replay(in)
	if err != nil {
		return failed(err), nil
	}
	return result(m != primary.Master,
		ir.O("delta", cfg[DeltaKey]),
		ir.O("perturbed_master", ir.IRString(m)),
	), nil
}

// purityException submits a step without a function and expects the executor to
// reject it with a deterministic error.
func purityException(_ context.Context, in Input, _ *ir.PrimaryProof) (ir.IRObject, error) {
	r, err := engine.NewRun(in.Initial, in.Config, in.Version)
	if err != nil {
		return nil, err
	}
	stepErr := r.AddStep(engine.Step{Name: malformedStep})
	if stepErr == nil {
		return result(false, ir.O("exception", ir.IRNull{})), nil
	}
	return result(engine.IsDeterminismError(stepErr), ir.O("exception", ir.IRString(stepErr.Error()))), nil
}

// persistence round-trips the primary proof through JSON and checks that the
// decoded proof still verifies to the same master.
func persistence(_ context.Context, _ Input, primary *ir.PrimaryProof) (ir.IRObject, error) {
	data, err := json.Marshal(primary)
	if err != nil {
		return nil, fmt.Errorf("encode primary: %w", err)
	}
	var decoded ir.PrimaryProof
	if err := json.Unmarshal(data, &decoded); err != nil {
		return failed(err), nil
	}
	ok := engine.VerifyPrimary(&decoded) == nil &&
		decoded.Master == primary.Master &&
		slices.Equal(decoded.StageHashes, primary.StageHashes)
	return result(ok, ir.O("master", ir.IRString(decoded.Master))), nil
}

// primaryIntegrity recomputes the master from the stored stage hashes.
func primaryIntegrity(_ context.Context, _ Input, primary *ir.PrimaryProof) (ir.IRObject, error) {
	master := ir.MasterCommitment(primary.StageHashes)
	return result(master == primary.Master, ir.O("master", ir.IRString(master))), nil
}

// temporalReproducibility replays the chain after the primary run and checks
// that it reproduces the primary master.
func temporalReproducibility(ctx context.Context, in Input, primary *ir.PrimaryProof) (ir.IRObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := replay(in)
	if err != nil {
		return failed(err), nil
	}
	return result(m == primary.Master, ir.O("master", ir.IRString(m))), nil
}
