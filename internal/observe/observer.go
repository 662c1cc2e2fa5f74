// Package observe defines the pluggable observer surface of the executor and the
// bundle builder.
//
// Observers are passed in at construction time; there is no global hook registry.
// The default is Nop. Observers are notified synchronously, in order, on the
// goroutine that produced the event, and must not mutate the values they receive.
package observe

import "github.com/roach88/bor/internal/ir"

// RunStarted is emitted once the initialization hash P0 has been computed.
type RunStarted struct {
	H0      string
	Version string
	Initial ir.IRValue
}

// StepRecorded is emitted immediately after a step record is appended.
type StepRecorded struct {
	Record ir.StepRecord
}

// RunFinalized is emitted when the master commitment is first computed.
type RunFinalized struct {
	Master string
	Steps  int
}

// RunAborted is emitted when a step fails and the run can no longer finalize.
type RunAborted struct {
	Step string
	Err  error
}

// BundleBuilt is emitted after H_RICH has been computed.
type BundleBuilt struct {
	HRich     string
	HMaster   string
	Subproofs []string
}

// Observer receives lifecycle events of a run and of bundle construction.
type Observer interface {
	OnRunStarted(RunStarted)
	OnStepRecorded(StepRecorded)
	OnRunFinalized(RunFinalized)
	OnRunAborted(RunAborted)
	OnBundleBuilt(BundleBuilt)
}

// Nop ignores every event.
type Nop struct{}

func (Nop) OnRunStarted(RunStarted)     {}
func (Nop) OnStepRecorded(StepRecorded) {}
func (Nop) OnRunFinalized(RunFinalized) {}
func (Nop) OnRunAborted(RunAborted)     {}
func (Nop) OnBundleBuilt(BundleBuilt)   {}

// Funcs adapts optional callbacks to the Observer interface.
// Nil fields are skipped.
type Funcs struct {
	RunStarted   func(RunStarted)
	StepRecorded func(StepRecorded)
	RunFinalized func(RunFinalized)
	RunAborted   func(RunAborted)
	BundleBuilt  func(BundleBuilt)
}

func (f Funcs) OnRunStarted(e RunStarted) {
	if f.RunStarted != nil {
		f.RunStarted(e)
	}
}

func (f Funcs) OnStepRecorded(e StepRecorded) {
	if f.StepRecorded != nil {
		f.StepRecorded(e)
	}
}

func (f Funcs) OnRunFinalized(e RunFinalized) {
	if f.RunFinalized != nil {
		f.RunFinalized(e)
	}
}

func (f Funcs) OnRunAborted(e RunAborted) {
	if f.RunAborted != nil {
		f.RunAborted(e)
	}
}

func (f Funcs) OnBundleBuilt(e BundleBuilt) {
	if f.BundleBuilt != nil {
		f.BundleBuilt(e)
	}
}

// multi fans every event out to its observers in registration order.
type multi []Observer

// Multi combines zero or more observers. Nil entries are dropped; with nothing
// left the result is Nop.
func Multi(observers ...Observer) Observer {
	var m multi
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	switch len(m) {
	case 0:
		return Nop{}
	case 1:
		return m[0]
	}
	return m
}

func (m multi) OnRunStarted(e RunStarted) {
	for _, o := range m {
		o.OnRunStarted(e)
	}
}

func (m multi) OnStepRecorded(e StepRecorded) {
	for _, o := range m {
		o.OnStepRecorded(e)
	}
}

func (m multi) OnRunFinalized(e RunFinalized) {
	for _, o := range m {
		o.OnRunFinalized(e)
	}
}

func (m multi) OnRunAborted(e RunAborted) {
	for _, o := range m {
		o.OnRunAborted(e)
	}
}

func (m multi) OnBundleBuilt(e BundleBuilt) {
	for _, o := range m {
		o.OnBundleBuilt(e)
	}
}
