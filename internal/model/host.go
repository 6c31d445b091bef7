package model

import "time"

// Auth modes for remote hosts. The mode determines which secret field is
// mandatory in the vault entry: password for AuthTypePassword, key path for
// AuthTypeKey.
const (
	AuthTypePassword = "password"
	AuthTypeKey      = "key"
)

// ConnTypeSSH is the only supported connection type.
const ConnTypeSSH = "ssh"

// Host is the non-secret connection metadata for one remote target. Secret
// material (password, key path, API token) lives only in the vault, keyed by
// the same ID.
type Host struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Type            string    `json:"type"`
	Host            string    `json:"host"`
	Port            int       `json:"port"`
	Username        string    `json:"username"`
	AuthType        string    `json:"auth_type"`
	ServiceURL      string    `json:"service_url,omitempty"`
	DefaultInstance string    `json:"default_instance,omitempty"`
	Enabled         bool      `json:"enabled"`
	CreatedAt       time.Time `json:"created_at"`
}

// HostSummary is a Host plus presence flags for its vault entry. Flags are
// computed by cross-referencing the vault, never by holding secret values.
type HostSummary struct {
	Host
	HasPassword bool `json:"has_password"`
	HasKeyPath  bool `json:"has_key_path"`
	HasAPIKey   bool `json:"has_api_key"`
}

// Secret is the credential material for one host. Never serialized in
// plaintext to any response or log.
type Secret struct {
	Password string `json:"password,omitempty"`
	KeyPath  string `json:"key_path,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
}

// IsZero reports whether no secret field is set.
func (s Secret) IsZero() bool {
	return s.Password == "" && s.KeyPath == "" && s.APIKey == ""
}

// Merge overlays the non-empty fields of other onto s and returns the result.
// Fields absent from an update retain their prior values.
func (s Secret) Merge(other Secret) Secret {
	if other.Password != "" {
		s.Password = other.Password
	}
	if other.KeyPath != "" {
		s.KeyPath = other.KeyPath
	}
	if other.APIKey != "" {
		s.APIKey = other.APIKey
	}
	return s
}
