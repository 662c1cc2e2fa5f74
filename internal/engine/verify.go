package engine

import (
	"fmt"

	"github.com/roach88/bor/internal/ir"
)

// VerifyPrimary checks a decoded primary proof without re-executing any step.
//
// It recomputes P0, every fingerprint and the master, and checks the chain links:
// the first input is S0, each later input is the previous output, and every record
// carries the run's configuration and version. The first disagreement is returned
// as a *HashMismatchError.
func VerifyPrimary(p *ir.PrimaryProof) error {
	if p == nil {
		return fmt.Errorf("verify primary: nil proof")
	}

	h0, err := ir.InitHash(p.Meta.S0.Get(), p.Meta.C, p.Meta.V, p.Meta.Env.Get())
	if err != nil {
		return fmt.Errorf("verify primary: %w", err)
	}
	if h0 != p.Meta.H0 {
		return &HashMismatchError{What: "H0", Expected: p.Meta.H0, Actual: h0}
	}

	if len(p.StageHashes) != len(p.Steps) {
		return &HashMismatchError{
			What:     "stage_hashes",
			Expected: fmt.Sprintf("%d entries", len(p.Steps)),
			Actual:   fmt.Sprintf("%d entries", len(p.StageHashes)),
		}
	}

	configHash, err := ir.ContentHash(p.Meta.C)
	if err != nil {
		return fmt.Errorf("verify primary: %w", err)
	}

	prev := p.Meta.S0.Get()
	fps := make([]string, len(p.Steps))
	for i, rec := range p.Steps {
		pos := i + 1
		if rec.Index != pos {
			return &HashMismatchError{What: "step index", Expected: fmt.Sprint(pos), Actual: fmt.Sprint(rec.Index)}
		}
		if rec.Version != p.Meta.V {
			return &HashMismatchError{What: fmt.Sprintf("version[%d]", pos), Expected: p.Meta.V, Actual: rec.Version}
		}
		if err := sameContent(fmt.Sprintf("config[%d]", pos), configHash, rec.Config); err != nil {
			return err
		}
		prevHash, err := ir.ContentHash(prev)
		if err != nil {
			return fmt.Errorf("verify primary step %d: %w", pos, err)
		}
		if err := sameContent(fmt.Sprintf("input[%d]", pos), prevHash, rec.Input.Get()); err != nil {
			return err
		}

		fp, err := ir.Fingerprint(rec.Fn, rec.Input.Get(), rec.Config, rec.Version)
		if err != nil {
			return fmt.Errorf("verify primary step %d: %w", pos, err)
		}
		if fp != rec.Fingerprint {
			return &HashMismatchError{What: fmt.Sprintf("fingerprint[%d]", pos), Expected: rec.Fingerprint, Actual: fp}
		}
		if fp != p.StageHashes[i] {
			return &HashMismatchError{What: fmt.Sprintf("stage_hashes[%d]", pos), Expected: p.StageHashes[i], Actual: fp}
		}
		fps[i] = fp
		prev = rec.Output.Get()
	}

	if m := ir.MasterCommitment(fps); m != p.Master {
		return &HashMismatchError{What: "master", Expected: p.Master, Actual: m}
	}
	return nil
}

func sameContent(what, expected string, v ir.IRValue) error {
	actual, err := ir.ContentHash(v)
	if err != nil {
		return fmt.Errorf("verify %s: %w", what, err)
	}
	if actual != expected {
		return &HashMismatchError{What: what, Expected: expected, Actual: actual}
	}
	return nil
}
