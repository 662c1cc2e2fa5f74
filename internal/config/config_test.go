package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.Ledger.Quorum)
	assert.Equal(t, "file", cfg.Registry.Backend)
	assert.Equal(t, 5, cfg.Audit.Limit)
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)

	cfg, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(path, true)
	assert.Error(t, err)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(`
verifier: alice
registry:
  backend: sqlite
  path: bor.db
ledger:
  quorum: 2
log:
  format: json
trace:
  file: spans.jsonl
`), 0o644))

	cfg, err := Load(path, true)
	require.NoError(t, err)

	assert.Equal(t, "alice", cfg.Verifier)
	assert.Equal(t, "sqlite", cfg.Registry.Backend)
	assert.Equal(t, "bor.db", cfg.Registry.Path)
	assert.Equal(t, 2, cfg.Ledger.Quorum)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "spans.jsonl", cfg.Trace.File)
	// Untouched fields keep their defaults.
	assert.Equal(t, "consensus_ledger.json", cfg.Ledger.Path)
	assert.Equal(t, "out", cfg.OutDir)
	assert.Equal(t, "info", cfg.Log.Level)
	require.NoError(t, cfg.RequireVerifier())
}

func TestParseEmptyDocument(t *testing.T) {
	cfg := Default()
	require.NoError(t, Parse(nil, cfg))
	assert.Equal(t, Default(), cfg)
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":      "verfier: typo\n",
		"zero quorum":      "ledger:\n  quorum: 0\n",
		"bad backend":      "registry:\n  backend: postgres\n",
		"bad log level":    "log:\n  level: loud\n",
		"bad log format":   "log:\n  format: xml\n",
		"negative limit":   "audit:\n  limit: -1\n",
		"empty out dir":    "out_dir: \"\"\n",
		"negative workers": "concurrency: -2\n",
		"not yaml":         "verifier: [\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, Parse([]byte(doc), Default()))
		})
	}
}

func TestRequireVerifier(t *testing.T) {
	err := Default().RequireVerifier()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verifier is required")
}
