package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span and event names.
const (
	SpanRun    = "bor.run"
	SpanBundle = "bor.bundle"
	EventStep  = "step"
)

// TraceObserver turns a run into an OpenTelemetry span with one event per step,
// and each built bundle into a child span of the context it was created with.
//
// Thread-safety: TraceObserver is safe for concurrent use, but it tracks one
// open run span at a time.
type TraceObserver struct {
	ctx    context.Context
	tracer trace.Tracer

	mu  sync.Mutex
	run trace.Span
}

// NewTraceObserver returns an observer creating spans with tracer under ctx.
func NewTraceObserver(ctx context.Context, tracer trace.Tracer) *TraceObserver {
	return &TraceObserver{ctx: ctx, tracer: tracer}
}

func (o *TraceObserver) OnRunStarted(e RunStarted) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.run != nil {
		o.run.End()
	}
	_, o.run = o.tracer.Start(o.ctx, SpanRun, trace.WithAttributes(
		attribute.String("bor.h0", e.H0),
		attribute.String("bor.version", e.Version),
	))
}

func (o *TraceObserver) OnStepRecorded(e StepRecorded) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.run == nil {
		return
	}
	o.run.AddEvent(EventStep, trace.WithAttributes(
		attribute.Int("bor.step.i", e.Record.Index),
		attribute.String("bor.step.fn", e.Record.Fn),
		attribute.String("bor.step.fingerprint", e.Record.Fingerprint),
	))
}

func (o *TraceObserver) OnRunFinalized(e RunFinalized) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.run == nil {
		return
	}
	o.run.SetAttributes(
		attribute.String("bor.master", e.Master),
		attribute.Int("bor.steps", e.Steps),
	)
	o.run.SetStatus(codes.Ok, "")
	o.run.End()
	o.run = nil
}

func (o *TraceObserver) OnRunAborted(e RunAborted) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.run == nil {
		return
	}
	o.run.SetAttributes(attribute.String("bor.failed_step", e.Step))
	msg := "aborted"
	if e.Err != nil {
		o.run.RecordError(e.Err)
		msg = e.Err.Error()
	}
	o.run.SetStatus(codes.Error, msg)
	o.run.End()
	o.run = nil
}

func (o *TraceObserver) OnBundleBuilt(e BundleBuilt) {
	_, span := o.tracer.Start(o.ctx, SpanBundle, trace.WithAttributes(
		attribute.String("bor.h_rich", e.HRich),
		attribute.String("bor.h_master", e.HMaster),
		attribute.StringSlice("bor.subproofs", e.Subproofs),
	))
	span.End()
}
