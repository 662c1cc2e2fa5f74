package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bor/internal/config"
	"github.com/roach88/bor/internal/ir"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "bor", cmd.Use)
	assert.Equal(t, ir.EngineVersion, cmd.Version)
	assert.Contains(t, cmd.Long, "rich proof bundles")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"prove", "verify", "register", "ledger", "audit", "index", "validate", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, config.DefaultFile, configFlag.DefValue)

	for _, name := range []string{"log-level", "log-format"} {
		f := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, "", f.DefValue)
	}
}

func TestProveCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	proveCmd, _, err := cmd.Find([]string{"prove"})
	require.NoError(t, err)

	outFlag := proveCmd.Flags().Lookup("out")
	require.NotNil(t, outFlag)
	assert.Equal(t, "o", outFlag.Shorthand)

	for _, name := range []string{"name", "verifier", "no-register", "compare"} {
		assert.NotNil(t, proveCmd.Flags().Lookup(name), name)
	}
}

func TestAuditCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	auditCmd, _, err := cmd.Find([]string{"audit"})
	require.NoError(t, err)

	lastFlag := auditCmd.Flags().Lookup("last")
	require.NotNil(t, lastFlag)
	assert.Equal(t, "n", lastFlag.Shorthand)
	// -1 defers to audit.limit in the config
	assert.Equal(t, "-1", lastFlag.DefValue)
}

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestInvalidFormat(t *testing.T) {
	_, err := executeRoot(t, "ledger", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid format")
}

func TestExplicitConfigMustExist(t *testing.T) {
	_, err := executeRoot(t, "ledger", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "load config")
}

func TestConfigRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("verifer: typo\n"), 0o644))

	_, err := executeRoot(t, "ledger", "--config", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestLogFlagsOverrideConfig(t *testing.T) {
	ws := newWorkspace(t)

	_, err := ws.run(t, "ledger", "--log-level", "loud")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "log.level")

	_, err = ws.run(t, "ledger", "--log-level", "debug", "--log-format", "json")
	require.NoError(t, err)
}

func TestConfigLoadedIntoOptions(t *testing.T) {
	ws := newWorkspace(t)

	out, err := ws.run(t, "ledger", "--format", "json")
	require.NoError(t, err)
	var lr LedgerResult
	decodeResponse(t, out, &lr)
	assert.Equal(t, ws.ledger, lr.Path)
}
