package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all process configuration. Values come from environment
// variables, optionally overridden by a YAML settings file pointed to by
// BACKHAUL_CONFIG_FILE.
type Config struct {
	// DataDir holds hosts.json, secrets.enc and vault.key.
	DataDir string
	// ScriptsDir holds the helper scripts uploaded to remote hosts and run
	// by the local executor.
	ScriptsDir string
	// ArtifactsDir is the local artifact store exchanged with the download step.
	ArtifactsDir string

	HTTPListenAddr string
	LogLevel       string
	ServiceName    string

	// ConnectTimeout bounds SSH connection establishment, not operations.
	ConnectTimeout time.Duration
	// CommandTimeout is the default timeout for short remote commands.
	CommandTimeout time.Duration
	// OperationTimeout bounds a full remote backup or restore execution.
	// Generous (the work is I/O- and compression-bound) but never unbounded.
	OperationTimeout time.Duration

	// VaultPassphrase, when set, derives the vault key from a passphrase
	// instead of the generated key file.
	VaultPassphrase string

	// InstanceFilter is the container name filter for instance discovery.
	InstanceFilter string
}

func Load() (*Config, error) {
	cfg := &Config{
		DataDir:          getEnv("BACKHAUL_DATA_DIR", "data"),
		ScriptsDir:       getEnv("BACKHAUL_SCRIPTS_DIR", "scripts"),
		ArtifactsDir:     getEnv("BACKHAUL_ARTIFACTS_DIR", "backups"),
		HTTPListenAddr:   getEnv("HTTP_LISTEN_ADDR", ":8001"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		ServiceName:      getEnv("SERVICE_NAME", "backhaul"),
		ConnectTimeout:   getDuration("CONNECT_TIMEOUT", 10*time.Second),
		CommandTimeout:   getDuration("COMMAND_TIMEOUT", 30*time.Second),
		OperationTimeout: getDuration("OPERATION_TIMEOUT", 30*time.Minute),
		VaultPassphrase:  getEnv("BACKHAUL_VAULT_PASSPHRASE", ""),
		InstanceFilter:   getEnv("INSTANCE_FILTER", "n8n"),
	}

	if path := os.Getenv("BACKHAUL_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// fileSettings mirrors Config for the YAML settings file. Durations are
// given in Go duration syntax ("30s", "1h").
type fileSettings struct {
	DataDir          string `yaml:"data_dir"`
	ScriptsDir       string `yaml:"scripts_dir"`
	ArtifactsDir     string `yaml:"artifacts_dir"`
	HTTPListenAddr   string `yaml:"http_listen_addr"`
	LogLevel         string `yaml:"log_level"`
	ServiceName      string `yaml:"service_name"`
	ConnectTimeout   string `yaml:"connect_timeout"`
	CommandTimeout   string `yaml:"command_timeout"`
	OperationTimeout string `yaml:"operation_timeout"`
	InstanceFilter   string `yaml:"instance_filter"`
}

// applyFile overlays settings from a YAML file onto the config.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fs fileSettings
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&c.DataDir, fs.DataDir)
	setString(&c.ScriptsDir, fs.ScriptsDir)
	setString(&c.ArtifactsDir, fs.ArtifactsDir)
	setString(&c.HTTPListenAddr, fs.HTTPListenAddr)
	setString(&c.LogLevel, fs.LogLevel)
	setString(&c.ServiceName, fs.ServiceName)
	setString(&c.InstanceFilter, fs.InstanceFilter)

	for _, d := range []struct {
		raw string
		dst *time.Duration
	}{
		{fs.ConnectTimeout, &c.ConnectTimeout},
		{fs.CommandTimeout, &c.CommandTimeout},
		{fs.OperationTimeout, &c.OperationTimeout},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse duration %q in config file %s: %w", d.raw, path, err)
		}
		*d.dst = parsed
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate checks that the config is usable for serving.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data dir must not be empty")
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive")
	}
	if c.OperationTimeout <= 0 {
		return fmt.Errorf("operation timeout must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// Bare numbers are seconds.
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
