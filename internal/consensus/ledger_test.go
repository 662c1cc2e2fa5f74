package consensus

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bor/internal/ir"
	"github.com/roach88/bor/internal/testutil"
)

func e(hash, verifier string) ir.RegistryEntry {
	return ir.RegistryEntry{HRich: hash, HMaster: "m-" + hash, Verifier: verifier, Timestamp: "t"}
}

func sampleEntries() []ir.RegistryEntry {
	return []ir.RegistryEntry{
		e("h2", "dave"),
		e("h1", "alice"),
		e("h0", "alice"),
		e("h1", "bob"),
		e("h1", "alice"), // repeat registration counts once
		e("h0", "bob"),
		e("h1", "carol"),
	}
}

func TestComputeEpochsQuorum(t *testing.T) {
	entries := []ir.RegistryEntry{e("h1", "a"), e("h1", "b"), e("h1", "c"), e("h2", "a")}

	epochs, err := ComputeEpochs(entries, 3, "2025-01-01")
	require.NoError(t, err)
	require.Len(t, epochs, 2)

	assert.Equal(t, "h1", epochs[0].Hash)
	assert.Equal(t, ir.StatusConfirmed, epochs[0].Status)
	assert.Equal(t, 3, epochs[0].Count)
	assert.Equal(t, []string{"a", "b", "c"}, epochs[0].Verifiers)

	assert.Equal(t, "h2", epochs[1].Hash)
	assert.Equal(t, ir.StatusPending, epochs[1].Status)
	assert.Equal(t, 1, epochs[1].Count)
}

func TestComputeEpochsOrdering(t *testing.T) {
	epochs, err := ComputeEpochs(sampleEntries(), 3, "2025-01-01")
	require.NoError(t, err)

	var hashes []string
	for _, ep := range epochs {
		hashes = append(hashes, ep.Hash)
	}
	// Confirmed first, then ascending hash.
	assert.Equal(t, []string{"h1", "h0", "h2"}, hashes)
}

func TestComputeEpochsQuorumBoundary(t *testing.T) {
	entries := []ir.RegistryEntry{e("h", "a"), e("h", "b")}

	epochs, err := ComputeEpochs(entries, 2, "d")
	require.NoError(t, err)
	assert.Equal(t, ir.StatusConfirmed, epochs[0].Status)

	epochs, err = ComputeEpochs(entries, 3, "d")
	require.NoError(t, err)
	assert.Equal(t, ir.StatusPending, epochs[0].Status)
}

func TestComputeEpochsDoesNotMutateInput(t *testing.T) {
	entries := sampleEntries()
	before := append([]ir.RegistryEntry(nil), entries...)

	_, err := ComputeEpochs(entries, 3, "d")
	require.NoError(t, err)
	assert.Equal(t, before, entries)
}

func TestComputeEpochsErrors(t *testing.T) {
	_, err := ComputeEpochs(nil, 0, "d")
	assert.ErrorContains(t, err, "quorum")

	_, err = ComputeEpochs([]ir.RegistryEntry{e("h", "")}, 3, "d")
	assert.ErrorContains(t, err, "verifier")
}

func TestComputeEpochsEmpty(t *testing.T) {
	epochs, err := ComputeEpochs(nil, 3, "d")
	require.NoError(t, err)
	assert.Empty(t, epochs)

	data, err := MarshalLedger(epochs)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestBuildLedgerUsesClockDate(t *testing.T) {
	now := time.Date(2025, time.March, 9, 23, 59, 0, 0, time.UTC)
	epochs, err := BuildLedger([]ir.RegistryEntry{e("h", "a")}, 1, now)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-09", epochs[0].Epoch)
	assert.Equal(t, ir.StatusConfirmed, epochs[0].Status)
}

func TestLedgerGolden(t *testing.T) {
	epochs, err := BuildLedger(sampleEntries(), DefaultQuorum, testutil.DefaultStart)
	require.NoError(t, err)

	data, err := MarshalLedger(epochs)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "ledger", data)
}

func TestWriteLedgerReplacesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "consensus_ledger.json")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	epochs, err := ComputeEpochs([]ir.RegistryEntry{e("h", "a")}, 3, "2025-01-01")
	require.NoError(t, err)
	require.NoError(t, WriteLedger(path, epochs))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `[{"count":1,"epoch":"2025-01-01","hash":"h","status":"PENDING","verifiers":["a"]}]`, string(data))
}

func TestCounts(t *testing.T) {
	epochs, err := ComputeEpochs(sampleEntries(), 3, "d")
	require.NoError(t, err)
	confirmed, pending := Counts(epochs)
	assert.Equal(t, 1, confirmed)
	assert.Equal(t, 2, pending)
}

func TestCheck(t *testing.T) {
	res, err := Check(sampleEntries(), 3)
	require.NoError(t, err)
	assert.Equal(t, Result{
		Hash:      "h1",
		Verifiers: []string{"alice", "bob", "carol"},
		Count:     3,
		Quorum:    3,
		Reached:   true,
		Groups:    3,
	}, res)

	res, err = Check(sampleEntries(), 4)
	require.NoError(t, err)
	assert.Equal(t, "h1", res.Hash)
	assert.False(t, res.Reached)
}

func TestCheckTieBreaksOnHash(t *testing.T) {
	res, err := Check([]ir.RegistryEntry{e("hb", "x"), e("ha", "y")}, 3)
	require.NoError(t, err)
	assert.Equal(t, "ha", res.Hash)
	assert.False(t, res.Reached)
}

func TestCheckEmpty(t *testing.T) {
	res, err := Check(nil, 3)
	require.NoError(t, err)
	assert.Empty(t, res.Hash)
	assert.False(t, res.Reached)
	assert.Equal(t, 0, res.Groups)
}
