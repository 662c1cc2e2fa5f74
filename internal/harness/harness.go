package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/roach88/bor/internal/artifact"
	"github.com/roach88/bor/internal/audit"
	"github.com/roach88/bor/internal/bundle"
	"github.com/roach88/bor/internal/compiler"
	"github.com/roach88/bor/internal/engine"
	"github.com/roach88/bor/internal/ir"
	"github.com/roach88/bor/internal/observe"
	"github.com/roach88/bor/internal/testutil"
)

// Harness runs scenarios with a deterministic clock and sequential bundle IDs.
type Harness struct {
	steps  *engine.Registry
	logger *slog.Logger
}

// New creates a harness resolving stages through steps. A nil steps uses
// engine.DefaultRegistry().
func New(steps *engine.Registry) *Harness {
	if steps == nil {
		steps = engine.DefaultRegistry()
	}
	return &Harness{
		steps:  steps,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
}

// Run executes a scenario with the built-in steps.
func Run(scenario *Scenario) (*Result, error) {
	return New(nil).Run(context.Background(), scenario)
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Load and compile the chain definition
//  2. Build the rich proof bundle, recording observer events as the trace
//  3. Check expect_error, or evaluate assertions
//  4. Optionally write the bundle and replay it through the auditor
//
// An error is returned only when the scenario cannot be run at all.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	chain, err := compiler.LoadChain(scenario.Chain, scenario.ChainName)
	if err != nil {
		return nil, fmt.Errorf("load chain: %w", err)
	}
	env, err := scenarioEnv(scenario)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	b, buildErr := h.build(ctx, chain, env, result)

	if scenario.ExpectError != "" {
		switch {
		case buildErr == nil:
			result.AddError(fmt.Sprintf("expected error containing %q, build succeeded", scenario.ExpectError))
		case !strings.Contains(buildErr.Error(), scenario.ExpectError):
			result.AddError(fmt.Sprintf("expected error containing %q, got %q", scenario.ExpectError, buildErr.Error()))
		}
		return result, nil
	}
	if buildErr != nil {
		result.AddError(fmt.Sprintf("build failed: %v", buildErr))
		return result, nil
	}
	result.Bundle = b

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	if scenario.Audit {
		if err := h.audit(ctx, b, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func scenarioEnv(s *Scenario) (ir.IRValue, error) {
	if s.Env == nil {
		return ir.IRNull{}, nil
	}
	env, err := ir.FromGo(s.Env)
	if err != nil {
		return nil, fmt.Errorf("scenario env: %w", err)
	}
	return env, nil
}

func (h *Harness) build(ctx context.Context, chain *compiler.Chain, env ir.IRValue, result *Result) (*ir.Bundle, error) {
	in, err := chain.Input(h.steps)
	if err != nil {
		return nil, err
	}
	b := bundle.NewBuilder(
		bundle.WithClock(testutil.NewDeterministicClock()),
		bundle.WithEnv(env),
		bundle.WithObserver(traceRecorder(result)),
	)
	return b.Build(ctx, in)
}

// traceRecorder appends every observer event to the result trace.
func traceRecorder(result *Result) observe.Observer {
	return observe.Funcs{
		RunStarted: func(e observe.RunStarted) {
			result.addTrace(TraceEvent{Type: EventRunStarted, Hash: e.H0})
		},
		StepRecorded: func(e observe.StepRecorded) {
			result.addTrace(TraceEvent{Type: EventStepRecorded, Fn: e.Record.Fn, Fingerprint: e.Record.Fingerprint})
		},
		RunFinalized: func(e observe.RunFinalized) {
			result.addTrace(TraceEvent{Type: EventRunFinalized, Hash: e.Master})
		},
		RunAborted: func(e observe.RunAborted) {
			result.addTrace(TraceEvent{Type: EventRunAborted, Fn: e.Step, Error: e.Err.Error()})
		},
		BundleBuilt: func(e observe.BundleBuilt) {
			result.addTrace(TraceEvent{Type: EventBundleBuilt, Hash: e.HRich})
		},
	}
}

// audit writes b to a scratch directory and replays it.
func (h *Harness) audit(ctx context.Context, b *ir.Bundle, result *Result) error {
	dir, err := os.MkdirTemp("", "bor-harness-*")
	if err != nil {
		return fmt.Errorf("audit scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	if _, err := artifact.NewWriter(dir, testutil.NewSequentialIDs()).Write(b); err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}
	a, err := audit.New(audit.WithSteps(h.steps), audit.WithLogger(h.logger))
	if err != nil {
		return err
	}
	rep, err := a.AuditLastN(ctx, dir, 0)
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	result.Audit = &rep
	if !rep.OK {
		for _, d := range rep.Drift {
			result.AddError(fmt.Sprintf("audit drift: %s", d.Reason))
		}
	}
	return nil
}
