// Package appkey manages the n8n application encryption key: the secret n8n
// uses to encrypt stored credentials, which must travel with backups for a
// restore on another machine to succeed. Keys are only ever exposed masked.
package appkey

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

const (
	envVar  = "N8N_ENCRYPTION_KEY"
	keyLen  = 32
	keyFile = ".n8n_encryption_key"
)

// Source identifies where a key was found.
const (
	SourceEnvironment = "environment"
	SourceConfigFile  = "config_file"
	SourceLocalFile   = "local_file"
)

// Info describes a located key without carrying its value to callers that
// only render it.
type Info struct {
	Key    string `json:"-"`
	Source string `json:"source"`
	Path   string `json:"path,omitempty"`
	Masked string `json:"masked"`
	Length int    `json:"length"`
	Valid  bool   `json:"valid"`
}

// Manager locates, generates, and persists application keys. dataDir holds
// the locally-managed key file.
type Manager struct {
	dataDir string
	logger  zerolog.Logger
}

func NewManager(dataDir string, logger zerolog.Logger) *Manager {
	return &Manager{
		dataDir: dataDir,
		logger:  logger.With().Str("component", "appkey").Logger(),
	}
}

// Locate searches the known key sources in precedence order: process
// environment, the n8n user config file, then the locally-managed key file.
// Returns nil when no source yields a key.
func (m *Manager) Locate() *Info {
	if key := os.Getenv(envVar); key != "" {
		return describe(key, SourceEnvironment, "")
	}

	if home, err := os.UserHomeDir(); err == nil {
		configPath := filepath.Join(home, ".n8n", "config")
		if key := keyFromConfig(configPath); key != "" {
			return describe(key, SourceConfigFile, configPath)
		}
	}

	localPath := filepath.Join(m.dataDir, keyFile)
	if data, err := os.ReadFile(localPath); err == nil {
		if key := strings.TrimSpace(string(data)); key != "" {
			return describe(key, SourceLocalFile, localPath)
		}
	}

	return nil
}

// Generate produces a new 32-character hex key. The caller must save it
// explicitly; generation alone activates nothing.
func (m *Manager) Generate() (string, error) {
	buf := make([]byte, keyLen/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Save persists a key to the locally-managed file with owner-only
// permissions.
func (m *Manager) Save(key string) (string, error) {
	if err := Validate(key); err != nil {
		return "", err
	}
	if err := os.MkdirAll(m.dataDir, 0o700); err != nil {
		return "", fmt.Errorf("create key dir: %w", err)
	}
	p := filepath.Join(m.dataDir, keyFile)
	if err := os.WriteFile(p, []byte(key), 0o600); err != nil {
		return "", fmt.Errorf("write key file: %w", err)
	}
	m.logger.Info().Str("path", p).Msg("application key saved")
	return p, nil
}

// Validate checks the key format n8n expects.
func Validate(key string) error {
	if len(key) != keyLen {
		return fmt.Errorf("invalid key length %d, must be %d characters", len(key), keyLen)
	}
	return nil
}

// Mask renders a key safe for display, keeping just enough of each end to
// let an operator recognize it.
func Mask(key string) string {
	if len(key) <= 16 {
		return strings.Repeat("*", len(key))
	}
	return key[:8] + "..." + key[len(key)-8:]
}

func describe(key, source, path string) *Info {
	return &Info{
		Key:    key,
		Source: source,
		Path:   path,
		Masked: Mask(key),
		Length: len(key),
		Valid:  Validate(key) == nil,
	}
}

func keyFromConfig(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var doc struct {
		EncryptionKey string `json:"encryptionKey"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return ""
	}
	return doc.EncryptionKey
}
