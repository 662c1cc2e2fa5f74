package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/bor/internal/artifact"
	"github.com/roach88/bor/internal/testutil"
)

const demoChain = `chain: demo: {
	initial: 7
	config: offset: 4
	version: "v1.0"
	stages: ["add", "square"]
}
`

// workspace is a temporary directory holding a config file, a chain file and
// every path the config points at.
type workspace struct {
	dir      string
	config   string
	chain    string
	out      string
	registry string
	ledger   string
	clock    *testutil.DeterministicClock
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()
	ws := &workspace{
		dir:      dir,
		config:   filepath.Join(dir, "bor.yaml"),
		chain:    filepath.Join(dir, "demo.cue"),
		out:      filepath.Join(dir, "out"),
		registry: filepath.Join(dir, "proof_registry.jsonl"),
		ledger:   filepath.Join(dir, "consensus_ledger.json"),
		clock:    testutil.NewDeterministicClock(),
	}
	cfg := fmt.Sprintf("out_dir: %q\nregistry:\n  path: %q\nledger:\n  path: %q\naudit:\n  root: %q\nlog:\n  level: error\n",
		ws.out, ws.registry, ws.ledger, ws.out)
	require.NoError(t, os.WriteFile(ws.config, []byte(cfg), 0o644))
	require.NoError(t, os.WriteFile(ws.chain, []byte(demoChain), 0o644))
	return ws
}

// run executes the root command with the workspace config and returns stdout.
func (ws *workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(&RootOptions{Clock: ws.clock})
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", ws.config}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// prove builds and registers the demo chain as verifier and returns the result.
func (ws *workspace) prove(t *testing.T, verifier string) ProveResult {
	t.Helper()
	out, err := ws.run(t, "prove", ws.chain, "--verifier", verifier, "--format", "json")
	require.NoError(t, err, out)
	var res ProveResult
	require.Equal(t, "ok", decodeResponse(t, out, &res))
	return res
}

// decodeResponse parses a JSON CLI response, decodes its data into v and
// returns the status.
func decodeResponse(t *testing.T, out string, v any) string {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	if v != nil {
		require.NoError(t, json.Unmarshal(resp.Data, v), out)
	}
	return resp.Status
}

// tamperBundle edits the bundle at path through a generic JSON document.
func tamperBundle(t *testing.T, path string, edit func(doc map[string]any)) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	edit(doc)
	require.NoError(t, artifact.WriteJSON(path, doc))
}
