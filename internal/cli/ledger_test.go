package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bor/internal/ir"
	"github.com/roach88/bor/internal/testutil"
)

func TestLedgerEmptyRegistry(t *testing.T) {
	ws := newWorkspace(t)

	out, err := ws.run(t, "ledger", "--format", "json")
	require.NoError(t, err, out)

	var lr LedgerResult
	assert.Equal(t, "ok", decodeResponse(t, out, &lr))
	assert.Empty(t, lr.Epochs)
	assert.False(t, lr.Consensus.Reached)

	data, err := os.ReadFile(ws.ledger)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestLedgerQuorum(t *testing.T) {
	ws := newWorkspace(t)
	ws.prove(t, "node-a")
	ws.prove(t, "node-b")

	out, err := ws.run(t, "ledger", "--format", "json")
	require.NoError(t, err, out)
	var lr LedgerResult
	decodeResponse(t, out, &lr)
	require.Len(t, lr.Epochs, 1)
	assert.Equal(t, ir.StatusPending, lr.Epochs[0].Status)
	assert.Equal(t, []string{"node-a", "node-b"}, lr.Epochs[0].Verifiers)
	assert.Equal(t, "2025-01-01", lr.Epochs[0].Epoch)
	assert.Equal(t, 0, lr.Confirmed)
	assert.Equal(t, 1, lr.Pending)

	out, err = ws.run(t, "ledger", "--quorum", "2", "--format", "json")
	require.NoError(t, err, out)
	lr = LedgerResult{}
	decodeResponse(t, out, &lr)
	assert.Equal(t, ir.StatusConfirmed, lr.Epochs[0].Status)
	assert.True(t, lr.Consensus.Reached)
	assert.Equal(t, testutil.ScenarioHRich, lr.Consensus.Hash)
}

func TestLedgerRequireQuorum(t *testing.T) {
	ws := newWorkspace(t)
	ws.prove(t, "node-a")

	out, err := ws.run(t, "ledger", "--require-quorum")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "No consensus (best 1/3)")

	ws.prove(t, "node-b")
	ws.prove(t, "node-c")
	out, err = ws.run(t, "ledger", "--require-quorum")
	require.NoError(t, err)
	assert.Contains(t, out, "1 confirmed, 0 pending")
	assert.Contains(t, out, "✓ Consensus on "+testutil.ScenarioHRich+" (3/3)")
}

func TestLedgerOutFlag(t *testing.T) {
	ws := newWorkspace(t)
	ws.prove(t, "node-a")
	alt := filepath.Join(ws.dir, "alt_ledger.json")

	_, err := ws.run(t, "ledger", "--out", alt)
	require.NoError(t, err)
	assert.FileExists(t, alt)
}

func TestLedgerInvalidQuorum(t *testing.T) {
	ws := newWorkspace(t)

	_, err := ws.run(t, "ledger", "--quorum", "-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestClockStampsEntriesAndEpochs(t *testing.T) {
	ws := newWorkspace(t)
	ws.clock = testutil.NewDeterministicClockAt(time.Date(2030, time.June, 2, 12, 0, 0, 0, time.UTC), time.Minute)
	ws.prove(t, "node-a")

	data, err := os.ReadFile(ws.registry)
	require.NoError(t, err)
	var entry ir.RegistryEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.True(t, strings.HasPrefix(entry.Timestamp, "2030-06-02T12:"), entry.Timestamp)

	out, err := ws.run(t, "ledger", "--format", "json")
	require.NoError(t, err, out)
	var lr LedgerResult
	decodeResponse(t, out, &lr)
	require.Len(t, lr.Epochs, 1)
	assert.Equal(t, "2030-06-02", lr.Epochs[0].Epoch)
}
