package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "conductor.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{"command": "echo-server"}`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "echo-server", cfg.Command)
	assert.Equal(t, defaultStartupTimeout, cfg.StartupTimeout)
	assert.Equal(t, defaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, defaultPostInitializeDelay, cfg.PostInitializeDelay)
	assert.Equal(t, defaultClientName, cfg.ClientName)
}

func TestLoadHonorsExplicitFields(t *testing.T) {
	path := writeConfig(t, `{
		"command": "mcp-server",
		"args": ["--stdio"],
		"startupTimeoutMs": 2000,
		"requestTimeoutMs": 500,
		"readyPattern": "listening",
		"clientName": "custom-client"
	}`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"--stdio"}, cfg.Args)
	assert.Equal(t, 2*time.Second, cfg.StartupTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.RequestTimeout)
	assert.Equal(t, "listening", cfg.ReadyPattern)
	assert.Equal(t, "custom-client", cfg.ClientName)
}

func TestLoadHonorsRequestsPerSecond(t *testing.T) {
	path := writeConfig(t, `{"command": "x", "requestsPerSecond": 5}`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 5.0, cfg.RequestsPerSecond)
}

func TestLoadDefaultsRequestsPerSecondToUnlimited(t *testing.T) {
	path := writeConfig(t, `{"command": "x"}`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Zero(t, cfg.RequestsPerSecond)
}

func TestLoadRejectsMissingCommand(t *testing.T) {
	path := writeConfig(t, `{"args": ["x"]}`)
	_, err := Load(path, nil)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidReadyPattern(t *testing.T) {
	path := writeConfig(t, `{"command": "x", "readyPattern": "("}`)
	_, err := Load(path, nil)
	assert.Error(t, err)
}

func TestLoadIgnoresUnknownFields(t *testing.T) {
	path := writeConfig(t, `{"command": "x", "somethingElse": 123}`)
	_, err := Load(path, nil)
	assert.NoError(t, err)
}

func TestOverlayEnvFoldsPrefixedVars(t *testing.T) {
	path := writeConfig(t, `{"command": "x", "env": {"FOO": "file"}}`)
	t.Setenv("CONDUCTOR_SERVER_ENV_FOO", "overridden")
	t.Setenv("CONDUCTOR_SERVER_ENV_BAR", "added")
	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "overridden", cfg.Env["FOO"])
	assert.Equal(t, "added", cfg.Env["BAR"])
}

func TestResolvePathPrefersFlag(t *testing.T) {
	t.Setenv(EnvConfigPath, "/env/path.json")
	p, err := ResolvePath("/flag/path.json")
	require.NoError(t, err)
	assert.Equal(t, "/flag/path.json", p)
}

func TestResolvePathFallsBackToEnv(t *testing.T) {
	t.Setenv(EnvConfigPath, "/env/path.json")
	p, err := ResolvePath("")
	require.NoError(t, err)
	assert.Equal(t, "/env/path.json", p)
}

func TestResolvePathErrorsWithNeither(t *testing.T) {
	os.Unsetenv(EnvConfigPath)
	_, err := ResolvePath("")
	assert.Error(t, err)
}
