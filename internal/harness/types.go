package harness

import "github.com/roach88/bor/internal/ir"

// Trace event types.
const (
	EventRunStarted   = "run_started"
	EventStepRecorded = "step_recorded"
	EventRunFinalized = "run_finalized"
	EventRunAborted   = "run_aborted"
	EventBundleBuilt  = "bundle_built"
)

// TraceEvent is one observer event of a scenario run.
type TraceEvent struct {
	Type        string `json:"type"`
	Seq         int64  `json:"seq"`
	Fn          string `json:"fn,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Hash        string `json:"hash,omitempty"` // H0, master or H_RICH depending on Type
	Error       string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	Pass bool `json:"pass"`

	// Trace contains every observer event in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Bundle is the built bundle, nil when the build failed.
	Bundle *ir.Bundle `json:"-"`

	// Audit is the self-audit report of the written bundle, when requested.
	Audit *ir.AuditReport `json:"audit,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) addTrace(e TraceEvent) {
	e.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, e)
}
