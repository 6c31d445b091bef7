package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear any env vars that might interfere with defaults.
	for _, key := range []string{
		"BACKHAUL_DATA_DIR", "BACKHAUL_SCRIPTS_DIR", "BACKHAUL_ARTIFACTS_DIR",
		"HTTP_LISTEN_ADDR", "LOG_LEVEL", "CONNECT_TIMEOUT", "OPERATION_TIMEOUT",
		"BACKHAUL_CONFIG_FILE",
	} {
		os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "scripts", cfg.ScriptsDir)
	assert.Equal(t, "backups", cfg.ArtifactsDir)
	assert.Equal(t, ":8001", cfg.HTTPListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 30*time.Minute, cfg.OperationTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BACKHAUL_DATA_DIR", "/var/lib/backhaul")
	t.Setenv("HTTP_LISTEN_ADDR", ":9999")
	t.Setenv("CONNECT_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/backhaul", cfg.DataDir)
	assert.Equal(t, ":9999", cfg.HTTPListenAddr)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
}

func TestLoad_BareSecondsDuration(t *testing.T) {
	t.Setenv("COMMAND_TIMEOUT", "45")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.CommandTimeout)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backhaul.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"data_dir: /srv/backhaul\nlog_level: debug\noperation_timeout: 1h\n",
	), 0o644))
	t.Setenv("BACKHAUL_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/backhaul", cfg.DataDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, time.Hour, cfg.OperationTimeout)
}

func TestLoad_ConfigFileMissing(t *testing.T) {
	t.Setenv("BACKHAUL_CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{DataDir: "data", ConnectTimeout: time.Second, OperationTimeout: time.Minute}
	require.NoError(t, cfg.Validate())

	cfg.DataDir = ""
	assert.Error(t, cfg.Validate())

	cfg = &Config{DataDir: "data", ConnectTimeout: 0, OperationTimeout: time.Minute}
	assert.Error(t, cfg.Validate())
}
