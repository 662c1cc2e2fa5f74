package engine

import (
	"fmt"

	"github.com/roach88/bor/internal/ir"
	"github.com/roach88/bor/internal/observe"
)

// RunState is the lifecycle state of a Run.
type RunState int

const (
	StateInitialized RunState = iota
	StateRunning
	StateFinalized
	StateAborted
)

func (s RunState) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateFinalized:
		return "finalized"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("RunState(%d)", int(s))
	}
}

// Option configures a Run.
type Option func(*Run)

// WithEnv sets the opaque environment fingerprint folded into P0.
// It never reaches a step fingerprint or the master commitment.
func WithEnv(env ir.IRValue) Option {
	return func(r *Run) {
		r.env = ir.Normalize(env)
	}
}

// WithObserver sets the observer notified of run events. Default: observe.Nop.
func WithObserver(o observe.Observer) Option {
	return func(r *Run) {
		if o == nil {
			o = observe.Nop{}
		}
		r.observer = o
	}
}

// Run executes one reasoning chain and accumulates its step records.
//
// INVARIANTS:
//   - records are append-only and never modified after they are appended
//   - current is always the output of the last record (or S0)
//   - master is set exactly once, by the first successful Finalize
type Run struct {
	initial  ir.IRValue
	config   ir.IRObject
	version  string
	env      ir.IRValue
	h0       string
	observer observe.Observer

	state   RunState
	current ir.IRValue
	records []ir.StepRecord
	master  string
	err     error // abort cause, set once
}

// NewRun computes the initialization hash P0 and returns a run ready for steps.
// Inputs are deep-copied and normalized (ir.Normalize); later changes by the
// caller do not affect the run.
func NewRun(initial ir.IRValue, config ir.IRObject, version string, opts ...Option) (*Run, error) {
	r := &Run{
		initial:  ir.Normalize(initial),
		config:   ir.NormalizeObject(config),
		version:  version,
		env:      ir.IRNull{},
		observer: observe.Nop{},
	}
	for _, opt := range opts {
		opt(r)
	}

	h0, err := ir.InitHash(r.initial, r.config, r.version, r.env)
	if err != nil {
		return nil, fmt.Errorf("new run: %w", err)
	}
	r.h0 = h0
	r.current = ir.Clone(r.initial)
	r.state = StateInitialized

	r.observer.OnRunStarted(observe.RunStarted{H0: h0, Version: version, Initial: ir.Clone(r.initial)})
	return r, nil
}

// State returns the lifecycle state.
func (r *Run) State() RunState { return r.state }

// H0 returns the initialization hash P0.
func (r *Run) H0() string { return r.h0 }

// Current returns a copy of the latest state.
func (r *Run) Current() ir.IRValue { return ir.Clone(r.current) }

// AddStep applies step to the current state and records it.
//
// Errors:
//   - *DeterminismError: nil function, error return, panic, or an output with no
//     canonical encoding. The run is aborted; every later AddStep or Finalize
//     returns RUN_ABORTED wrapping that error.
//   - INVALID_STATE after Finalize.
func (r *Run) AddStep(step Step) error {
	switch r.state {
	case StateAborted:
		return r.aborted()
	case StateFinalized:
		return &DeterminismError{
			Code: ErrCodeInvalidState,
			Step: step.Name,
			Err:  fmt.Errorf("run already finalized"),
		}
	}

	index := len(r.records) + 1
	if step.Fn == nil {
		return r.abort(&DeterminismError{Code: ErrCodeNotCallable, Step: step.Name, Index: index})
	}

	input := ir.Clone(r.current)
	output, err := r.apply(step, input)
	if err != nil {
		return r.abort(stepFailed(index, step.Name, err))
	}
	// The next input must be what a replay reads back from the stored output.
	output = ir.Normalize(output)
	// Encodability is part of determinism: an output without a canonical form
	// would poison the next fingerprint.
	if _, err := ir.MarshalCanonical(output); err != nil {
		return r.abort(&DeterminismError{Code: ErrCodeUnencodable, Step: step.Name, Index: index, Err: err})
	}

	fp, err := ir.Fingerprint(step.Name, input, r.config, r.version)
	if err != nil {
		return r.abort(&DeterminismError{Code: ErrCodeUnencodable, Step: step.Name, Index: index, Err: err})
	}

	rec := ir.StepRecord{
		Index:       index,
		Fn:          step.Name,
		Input:       ir.V(input),
		Output:      ir.V(ir.Clone(output)),
		Config:      ir.CloneObject(r.config),
		Version:     r.version,
		Fingerprint: fp,
	}
	r.records = append(r.records, rec)
	r.current = output
	r.state = StateRunning

	r.observer.OnStepRecorded(observe.StepRecorded{Record: rec.Clone()})
	return nil
}

// apply calls the step function, converting a panic into an error.
// The function receives private copies; it cannot reach the run's state.
func (r *Run) apply(step Step, input ir.IRValue) (out ir.IRValue, err error) {
	defer func() {
		if p := recover(); p != nil {
			out = nil
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	out, err = step.Fn(ir.Clone(input), ir.CloneObject(r.config), r.version)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = ir.IRNull{}
	}
	return out, nil
}

func (r *Run) abort(err *DeterminismError) error {
	r.state = StateAborted
	r.err = err
	r.observer.OnRunAborted(observe.RunAborted{Step: err.Step, Err: err})
	return err
}

// aborted reports an operation on an aborted run. It wraps the failure that
// aborted it.
func (r *Run) aborted() error {
	return &DeterminismError{Code: ErrCodeAborted, Err: r.err}
}

// RunSteps applies steps in order, stopping at the first failure.
func (r *Run) RunSteps(steps ...Step) error {
	for _, s := range steps {
		if err := r.AddStep(s); err != nil {
			return err
		}
	}
	return nil
}

// Finalize computes the master commitment over the recorded fingerprints.
//
// The first call is authoritative. Later calls recompute the commitment and return
// the stored proof, or a *HashMismatchError if the records no longer agree.
// A run with zero steps finalizes to the commitment over the empty sequence.
func (r *Run) Finalize() (*ir.PrimaryProof, error) {
	switch r.state {
	case StateAborted:
		return nil, r.aborted()
	case StateFinalized:
		if err := r.Verify(); err != nil {
			return nil, err
		}
		return r.proof(), nil
	}

	r.master = ir.MasterCommitment(r.fingerprints())
	r.state = StateFinalized
	r.observer.OnRunFinalized(observe.RunFinalized{Master: r.master, Steps: len(r.records)})
	return r.proof(), nil
}

// Verify recomputes every fingerprint from the stored records, then the master.
// It never mutates the run.
func (r *Run) Verify() error {
	if r.state != StateFinalized {
		return &DeterminismError{
			Code: ErrCodeInvalidState,
			Err:  fmt.Errorf("verify requires a finalized run, state is %s", r.state),
		}
	}
	fps := make([]string, len(r.records))
	for i, rec := range r.records {
		fp, err := ir.Fingerprint(rec.Fn, rec.Input.Get(), rec.Config, rec.Version)
		if err != nil {
			return fmt.Errorf("verify step %d: %w", rec.Index, err)
		}
		if fp != rec.Fingerprint {
			return &HashMismatchError{What: fmt.Sprintf("fingerprint[%d]", rec.Index), Expected: rec.Fingerprint, Actual: fp}
		}
		fps[i] = fp
	}
	if m := ir.MasterCommitment(fps); m != r.master {
		return &HashMismatchError{What: "master", Expected: r.master, Actual: m}
	}
	return nil
}

// PrimaryProof returns a deep copy of the finalized proof.
func (r *Run) PrimaryProof() (*ir.PrimaryProof, error) {
	if r.state != StateFinalized {
		return nil, &DeterminismError{
			Code: ErrCodeInvalidState,
			Err:  fmt.Errorf("no primary proof before finalize, state is %s", r.state),
		}
	}
	return r.proof(), nil
}

// Summary describes a run at a glance.
type Summary struct {
	Initial      ir.IRValue
	Steps        int
	Fingerprints []string
	Master       string // empty until finalized
}

// Summary returns the initial state, step count, fingerprints and master.
func (r *Run) Summary() Summary {
	return Summary{
		Initial:      ir.Clone(r.initial),
		Steps:        len(r.records),
		Fingerprints: r.fingerprints(),
		Master:       r.master,
	}
}

func (r *Run) fingerprints() []string {
	fps := make([]string, len(r.records))
	for i, rec := range r.records {
		fps[i] = rec.Fingerprint
	}
	return fps
}

func (r *Run) proof() *ir.PrimaryProof {
	steps := make([]ir.StepRecord, len(r.records))
	for i, rec := range r.records {
		steps[i] = rec.Clone()
	}
	return &ir.PrimaryProof{
		Meta: ir.Meta{
			S0:  ir.V(ir.Clone(r.initial)),
			C:   ir.CloneObject(r.config),
			V:   r.version,
			Env: ir.V(ir.Clone(r.env)),
			H0:  r.h0,
		},
		Steps:       steps,
		StageHashes: r.fingerprints(),
		Master:      r.master,
	}
}

// Execute runs steps end to end and returns the finalized proof.
func Execute(initial ir.IRValue, config ir.IRObject, version string, steps []Step, opts ...Option) (*ir.PrimaryProof, error) {
	r, err := NewRun(initial, config, version, opts...)
	if err != nil {
		return nil, err
	}
	if err := r.RunSteps(steps...); err != nil {
		return nil, err
	}
	return r.Finalize()
}
