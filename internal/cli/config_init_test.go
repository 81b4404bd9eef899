package cli_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/ghgfocus/internal/cli"
	"github.com/rshade/ghgfocus/internal/config"
)

// setupConfigInitTest isolates GHGFOCUS_HOME and registers cleanup for global state.
func setupConfigInitTest(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("GHGFOCUS_HOME", home)
	t.Setenv("GHGFOCUS_LOG_LEVEL", "error")
	t.Cleanup(config.ResetGlobalConfigForTest)
	return home
}

func runInit(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := cli.NewRootCmd("test")
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(append([]string{"config", "init"}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

// TestConfigInit_DefaultPath verifies that "config init" writes config.yaml
// under GHGFOCUS_HOME with the built-in defaults.
func TestConfigInit_DefaultPath(t *testing.T) {
	home := setupConfigInitTest(t)

	out, err := runInit(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration initialized successfully")

	path := filepath.Join(home, "config.yaml")
	assert.Contains(t, out, path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "ghg_protocol", cfg.Report.Framework)
	assert.Equal(t, "ifrs-s2", cfg.Tags.Framework)
	require.NoError(t, cfg.Validate())
}

// TestConfigInit_ExistingFile verifies that an existing file is only replaced with --force.
func TestConfigInit_ExistingFile(t *testing.T) {
	setupConfigInitTest(t)

	path := filepath.Join(t.TempDir(), "custom.yaml")
	custom := "# hand written\nreport:\n  confidentiality: Internal\n"
	require.NoError(t, os.WriteFile(path, []byte(custom), 0o600))

	_, err := runInit(t, "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "use --force")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, custom, string(data), "file must be untouched without --force")

	config.ResetGlobalConfigForTest()
	_, err = runInit(t, "--config", path, "--force")
	require.NoError(t, err)

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, custom, string(data))
}

// TestConfigInit_SQLite verifies that --sqlite points storage at the data directory.
func TestConfigInit_SQLite(t *testing.T) {
	home := setupConfigInitTest(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	_, err := runInit(t, "--config", path, "--sqlite")
	require.NoError(t, err)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, filepath.Join(home, "data", "ghgfocus.db"), cfg.Storage.DSN)
}
