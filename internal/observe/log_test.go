package observe

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/bor/internal/ir"
)

func TestLogObserver(t *testing.T) {
	var buf bytes.Buffer
	o := NewLogObserver(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	o.OnRunStarted(RunStarted{H0: "h0", Version: "v1.0"})
	o.OnStepRecorded(StepRecorded{Record: ir.StepRecord{Index: 1, Fn: "add", Fingerprint: "fp1"}})
	o.OnRunFinalized(RunFinalized{Master: "m", Steps: 1})
	o.OnBundleBuilt(BundleBuilt{HRich: "hr", HMaster: "m", Subproofs: []string{"CCP", "DP"}})
	o.OnRunAborted(RunAborted{Step: "square", Err: errors.New("boom")})

	out := buf.String()
	assert.Contains(t, out, `msg="run started" h0=h0 version=v1.0`)
	assert.Contains(t, out, `msg="step recorded" i=1 fn=add fingerprint=fp1`)
	assert.Contains(t, out, `msg="run finalized" master=m steps=1`)
	assert.Contains(t, out, `msg="bundle built" h_rich=hr h_master=m subproofs=2`)
	assert.Contains(t, out, `level=ERROR msg="run aborted" step=square error=boom`)
}

func TestLogObserverStepsAtDebug(t *testing.T) {
	var buf bytes.Buffer
	o := NewLogObserver(slog.New(slog.NewTextHandler(&buf, nil)))

	o.OnStepRecorded(StepRecorded{Record: ir.StepRecord{Index: 1, Fn: "add"}})
	assert.Empty(t, buf.String())
}
