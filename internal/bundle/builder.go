// Package bundle builds rich proof bundles: a primary proof plus a fixed set of
// independent sub-proofs, committed together under H_RICH.
package bundle

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/bor/internal/engine"
	"github.com/roach88/bor/internal/ir"
	"github.com/roach88/bor/internal/observe"
)

// Input is one reasoning chain to prove.
type Input struct {
	Initial ir.IRValue
	Config  ir.IRObject
	Version string
	Steps   []engine.Step
}

// clone returns a private copy of in. Step functions are shared; they are pure.
func (in Input) clone() Input {
	return Input{
		Initial: ir.Clone(in.Initial),
		Config:  ir.CloneObject(in.Config),
		Version: in.Version,
		Steps:   append([]engine.Step(nil), in.Steps...),
	}
}

// Builder assembles bundles.
//
// Thread-safety: a Builder holds no per-build state and may be shared.
type Builder struct {
	clock       engine.Clock
	observer    observe.Observer
	env         ir.IRValue
	concurrency int
	subproofs   []Subproof
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock sets the clock used for generated_at. Default: engine.SystemClock.
func WithClock(c engine.Clock) Option {
	return func(b *Builder) { b.clock = c }
}

// WithObserver sets the observer for the primary run and bundle events.
// Sub-proof runs are never observed.
func WithObserver(o observe.Observer) Option {
	return func(b *Builder) { b.observer = observe.Multi(o) }
}

// WithEnv sets the environment fingerprint recorded in the primary proof.
func WithEnv(env ir.IRValue) Option {
	return func(b *Builder) { b.env = ir.Clone(env) }
}

// WithConcurrency bounds how many sub-proofs run at once. Zero means no bound.
func WithConcurrency(n int) Option {
	return func(b *Builder) { b.concurrency = n }
}

// WithSubproofs replaces the sub-proof set. Used by tests to inject schedules.
func WithSubproofs(s []Subproof) Option {
	return func(b *Builder) { b.subproofs = append([]Subproof(nil), s...) }
}

// NewBuilder creates a Builder with the standard sub-proof set.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		clock:     engine.SystemClock{},
		observer:  observe.Nop{},
		env:       ir.IRNull{},
		subproofs: Subproofs(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildPrimary runs the chain once and returns the finalized primary proof.
func (b *Builder) BuildPrimary(in Input) (*ir.PrimaryProof, error) {
	in = in.clone()
	return engine.Execute(in.Initial, in.Config, in.Version, in.Steps,
		engine.WithEnv(b.env), engine.WithObserver(b.observer))
}

// Build runs the primary chain, then every sub-proof concurrently, and folds the
// sub-proof hashes into H_RICH.
//
// Each sub-proof works on private copies of the inputs and of the primary proof.
// Results are collected by name and folded in sorted-name order, so scheduling
// cannot influence H_RICH. A sub-proof reporting ok=false is data; only an
// internal error aborts the build.
func (b *Builder) Build(ctx context.Context, in Input) (*ir.Bundle, error) {
	primary, err := b.BuildPrimary(in)
	if err != nil {
		return nil, fmt.Errorf("build primary: %w", err)
	}

	results := make([]ir.IRObject, len(b.subproofs))
	g, gctx := errgroup.WithContext(ctx)
	if b.concurrency > 0 {
		g.SetLimit(b.concurrency)
	}
	for i, sp := range b.subproofs {
		i, sp := i, sp
		privIn := in.clone()
		privPrimary := primary.Clone()
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := sp.Run(gctx, privIn, privPrimary)
			if err != nil {
				return fmt.Errorf("subproof %s: %w", sp.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	subproofs := make(map[string]ir.IRObject, len(results))
	hashes := make(map[string]string, len(results))
	for i, sp := range b.subproofs {
		if _, dup := subproofs[sp.Name]; dup {
			return nil, fmt.Errorf("subproof %s: duplicate name", sp.Name)
		}
		h, err := ir.ContentHash(results[i])
		if err != nil {
			return nil, fmt.Errorf("hash subproof %s: %w", sp.Name, err)
		}
		subproofs[sp.Name] = results[i]
		hashes[sp.Name] = h
	}

	bundle := &ir.Bundle{
		Primary:        *primary,
		Subproofs:      subproofs,
		SubproofHashes: hashes,
		HRich:          ir.RichCommitment(hashes),
		HMaster:        primary.Master,
		GeneratedAt:    engine.Timestamp(b.clock.Now()),
		FormatVersion:  ir.FormatVersion,
	}

	b.observer.OnBundleBuilt(observe.BundleBuilt{
		HRich:     bundle.HRich,
		HMaster:   bundle.HMaster,
		Subproofs: ir.SortedNames(hashes),
	})
	return bundle, nil
}
