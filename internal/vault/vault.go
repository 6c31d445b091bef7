// Package vault stores per-host credentials encrypted at rest. The whole
// host-id → secret mapping lives in a single AES-256-GCM blob that is
// re-encrypted on every write; the mapping is small and writes are
// human-driven, so whole-container encryption is the simple safe choice.
package vault

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cwarner/backhaul/internal/crypto"
	"github.com/cwarner/backhaul/internal/model"
)

const (
	containerFile = "secrets.enc"
	keyFile       = "vault.key"
	saltFile      = "vault.salt"
)

// Vault is the encrypted-at-rest credential store. Decryption failure is a
// value, not a fault: a vault that cannot be read behaves as an empty one.
type Vault struct {
	mu     sync.Mutex
	path   string
	key    []byte
	logger zerolog.Logger
}

// Open loads or initializes the vault under dir. When passphrase is
// non-empty the key is derived with Argon2id from it (salt persisted next to
// the container); otherwise a random key is generated once and persisted
// with owner-only permissions. Losing the key file renders all stored
// secrets permanently undecipherable — there is no escrow.
func Open(dir, passphrase string, logger zerolog.Logger) (*Vault, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	v := &Vault{
		path:   filepath.Join(dir, containerFile),
		logger: logger.With().Str("component", "vault").Logger(),
	}

	var err error
	if passphrase != "" {
		v.key, err = deriveKey(filepath.Join(dir, saltFile), passphrase, v.logger)
	} else {
		v.key, err = loadOrGenerateKey(filepath.Join(dir, keyFile), v.logger)
	}
	if err != nil {
		return nil, err
	}

	return v, nil
}

// Get returns the decrypted secret for a host. The second return is false
// when no entry is recorded or the container cannot be decrypted; it never
// raises either condition as an error.
func (v *Vault) Get(hostID string) (model.Secret, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	secrets := v.load()
	s, ok := secrets[hostID]
	return s, ok
}

// Put merges the non-empty fields of s into the host's existing entry and
// persists the re-encrypted container.
func (v *Vault) Put(hostID string, s model.Secret) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	secrets := v.load()
	secrets[hostID] = secrets[hostID].Merge(s)
	return v.save(secrets)
}

// Delete removes the host's entry. Deleting an absent entry still persists
// the container and succeeds (idempotent).
func (v *Vault) Delete(hostID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	secrets := v.load()
	delete(secrets, hostID)
	return v.save(secrets)
}

// load reads and decrypts the container. Missing, empty, corrupted or
// wrong-key containers all degrade to an empty mapping.
func (v *Vault) load() map[string]model.Secret {
	data, err := os.ReadFile(v.path)
	if err != nil || len(data) == 0 {
		return map[string]model.Secret{}
	}

	plaintext, err := crypto.Decrypt(v.key, data)
	if err != nil {
		v.logger.Warn().Err(err).Msg("secret container unreadable, treating vault as empty")
		return map[string]model.Secret{}
	}

	var secrets map[string]model.Secret
	if err := json.Unmarshal(plaintext, &secrets); err != nil {
		v.logger.Warn().Err(err).Msg("secret container malformed, treating vault as empty")
		return map[string]model.Secret{}
	}
	return secrets
}

func (v *Vault) save(secrets map[string]model.Secret) error {
	plaintext, err := json.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}

	ciphertext, err := crypto.Encrypt(v.key, plaintext)
	if err != nil {
		return fmt.Errorf("encrypt secrets: %w", err)
	}

	if err := os.WriteFile(v.path, ciphertext, 0o600); err != nil {
		return fmt.Errorf("write secret container: %w", err)
	}
	restrictPerms(v.path, v.logger)
	return nil
}

// loadOrGenerateKey reads the persisted key, generating one on first use.
func loadOrGenerateKey(path string, logger zerolog.Logger) ([]byte, error) {
	if data, err := os.ReadFile(path); err == nil {
		key, err := base64.StdEncoding.DecodeString(string(data))
		if err != nil {
			return nil, fmt.Errorf("decode vault key: %w", err)
		}
		if len(key) != crypto.KeySize {
			return nil, fmt.Errorf("vault key has wrong size %d", len(key))
		}
		return key, nil
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(base64.StdEncoding.EncodeToString(key)), 0o600); err != nil {
		return nil, fmt.Errorf("write vault key: %w", err)
	}
	restrictPerms(path, logger)
	logger.Info().Str("path", path).Msg("generated new vault key")
	return key, nil
}

// deriveKey derives the vault key from a passphrase, persisting the salt on
// first use.
func deriveKey(saltPath, passphrase string, logger zerolog.Logger) ([]byte, error) {
	salt, err := os.ReadFile(saltPath)
	if err != nil {
		salt, err = crypto.GenerateSalt()
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(saltPath, salt, 0o600); err != nil {
			return nil, fmt.Errorf("write vault salt: %w", err)
		}
		restrictPerms(saltPath, logger)
	}
	return crypto.DeriveKey([]byte(passphrase), salt)
}

// restrictPerms re-asserts owner-only access. Not all filesystems support
// this; failure is logged, not fatal.
func restrictPerms(path string, logger zerolog.Logger) {
	if err := os.Chmod(path, 0o600); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("could not restrict file permissions")
	}
}
