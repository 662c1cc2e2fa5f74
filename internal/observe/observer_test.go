package observe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/bor/internal/ir"
)

// recorder collects event kinds in order.
type recorder struct {
	tag    string
	events *[]string
}

func (r recorder) OnRunStarted(RunStarted)     { *r.events = append(*r.events, r.tag+":started") }
func (r recorder) OnStepRecorded(StepRecorded) { *r.events = append(*r.events, r.tag+":step") }
func (r recorder) OnRunFinalized(RunFinalized) { *r.events = append(*r.events, r.tag+":finalized") }
func (r recorder) OnRunAborted(RunAborted)     { *r.events = append(*r.events, r.tag+":aborted") }
func (r recorder) OnBundleBuilt(BundleBuilt)   { *r.events = append(*r.events, r.tag+":bundle") }

func TestMultiFansOutInOrder(t *testing.T) {
	var events []string
	o := Multi(recorder{"a", &events}, nil, recorder{"b", &events})

	o.OnRunStarted(RunStarted{})
	o.OnStepRecorded(StepRecorded{})
	o.OnRunFinalized(RunFinalized{})
	o.OnRunAborted(RunAborted{})
	o.OnBundleBuilt(BundleBuilt{})

	assert.Equal(t, []string{
		"a:started", "b:started",
		"a:step", "b:step",
		"a:finalized", "b:finalized",
		"a:aborted", "b:aborted",
		"a:bundle", "b:bundle",
	}, events)
}

func TestMultiCollapses(t *testing.T) {
	assert.Equal(t, Nop{}, Multi())
	assert.Equal(t, Nop{}, Multi(nil, nil))

	var events []string
	single := recorder{"only", &events}
	assert.Equal(t, single, Multi(nil, single))
}

func TestFuncsSkipsNilCallbacks(t *testing.T) {
	var steps []int
	o := Funcs{StepRecorded: func(e StepRecorded) { steps = append(steps, e.Record.Index) }}

	o.OnRunStarted(RunStarted{})
	o.OnStepRecorded(StepRecorded{Record: ir.StepRecord{Index: 1}})
	o.OnStepRecorded(StepRecorded{Record: ir.StepRecord{Index: 2}})
	o.OnRunFinalized(RunFinalized{})
	o.OnRunAborted(RunAborted{Err: errors.New("boom")})
	o.OnBundleBuilt(BundleBuilt{})

	assert.Equal(t, []int{1, 2}, steps)
}
