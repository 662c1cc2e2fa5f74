package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bor/internal/ir"
)

func TestJSONLTracerProviderWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	tp := NewJSONLTracerProvider(&buf)
	o := NewTraceObserver(context.Background(), tp.Tracer("bor-test"))

	o.OnRunStarted(RunStarted{H0: "h0", Version: "v1.0"})
	o.OnStepRecorded(StepRecorded{Record: ir.StepRecord{Index: 1, Fn: "add", Fingerprint: "fp1"}})
	o.OnRunFinalized(RunFinalized{Master: "m", Steps: 1})
	o.OnBundleBuilt(BundleBuilt{HRich: "r", HMaster: "m", Subproofs: []string{"CCP"}})
	require.NoError(t, tp.Shutdown(context.Background()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var run spanRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &run))
	assert.Equal(t, SpanRun, run.Name)
	assert.Equal(t, "Ok", run.Status)
	assert.Equal(t, "m", run.Attributes["bor.master"])
	assert.Len(t, run.TraceID, 32)
	require.Len(t, run.Events, 1)
	assert.Equal(t, EventStep, run.Events[0].Name)
	assert.Equal(t, "add", run.Events[0].Attributes["bor.step.fn"])

	var bundle spanRecord
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &bundle))
	assert.Equal(t, SpanBundle, bundle.Name)
	assert.Equal(t, "r", bundle.Attributes["bor.h_rich"])
	assert.Empty(t, bundle.ParentSpanID)
}

func TestJSONLExporterEmptyBatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONLExporter(&buf).ExportSpans(context.Background(), nil))
	assert.Empty(t, buf.String())
}
