// Package registry is the durable store of non-secret host metadata. Hosts
// are kept in a single JSON document read and written wholesale (last writer
// wins); credential material is split out to the vault at the API boundary
// and never stored here.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cwarner/backhaul/internal/model"
	"github.com/cwarner/backhaul/internal/platform"
)

const hostsFile = "hosts.json"

// ErrNotFound is returned when no host has the given id.
var ErrNotFound = errors.New("host not found")

// SecretStore is the slice of the vault the registry needs: presence flags
// for list/get, the split write on add/update, and the cascade on delete.
type SecretStore interface {
	Get(hostID string) (model.Secret, bool)
	Put(hostID string, s model.Secret) error
	Delete(hostID string) error
}

// Registry manages host records backed by a JSON document on disk.
type Registry struct {
	mu      sync.Mutex
	path    string
	secrets SecretStore
	logger  zerolog.Logger
}

// hostsDoc is the on-disk document shape.
type hostsDoc struct {
	Hosts []model.Host `json:"hosts"`
}

// New opens the registry under dir, creating an empty document on first use.
func New(dir string, secrets SecretStore, logger zerolog.Logger) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create registry dir: %w", err)
	}

	r := &Registry{
		path:    filepath.Join(dir, hostsFile),
		secrets: secrets,
		logger:  logger.With().Str("component", "registry").Logger(),
	}

	if _, err := os.Stat(r.path); os.IsNotExist(err) {
		if err := r.save(hostsDoc{Hosts: []model.Host{}}); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// HostInput is the caller-supplied data for a new host. Secret fields are
// routed to the vault, everything else to the registry document.
type HostInput struct {
	Name            string
	Type            string
	Host            string
	Port            int
	Username        string
	AuthType        string
	ServiceURL      string
	DefaultInstance string
	Enabled         *bool

	Password string
	KeyPath  string
	APIKey   string
}

// HostUpdate carries a partial update; nil fields retain prior values.
type HostUpdate struct {
	Name            *string
	Type            *string
	Host            *string
	Port            *int
	Username        *string
	AuthType        *string
	ServiceURL      *string
	DefaultInstance *string
	Enabled         *bool

	Password *string
	KeyPath  *string
	APIKey   *string
}

// List returns all hosts with secret values stripped and presence flags
// computed from the vault.
func (r *Registry) List() ([]model.HostSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return nil, err
	}

	summaries := make([]model.HostSummary, 0, len(doc.Hosts))
	for _, h := range doc.Hosts {
		summaries = append(summaries, r.summarize(h))
	}
	return summaries, nil
}

// Get returns one host with presence flags, or ErrNotFound.
func (r *Registry) Get(id string) (model.HostSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return model.HostSummary{}, err
	}
	for _, h := range doc.Hosts {
		if h.ID == id {
			return r.summarize(h), nil
		}
	}
	return model.HostSummary{}, ErrNotFound
}

// Add validates the input, persists the non-secret fields, then stores the
// secret fields in the vault. Validation failure writes nothing. A vault
// write failure after the registry write leaves an orphaned host record;
// that is surfaced in the returned error rather than rolled back.
func (r *Registry) Add(in HostInput) (string, error) {
	if err := validateAuthSecrets(in.AuthType, in.Password, in.KeyPath); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return "", err
	}

	host := model.Host{
		ID:              platform.NewID(),
		Name:            in.Name,
		Type:            in.Type,
		Host:            in.Host,
		Port:            in.Port,
		Username:        in.Username,
		AuthType:        in.AuthType,
		ServiceURL:      in.ServiceURL,
		DefaultInstance: in.DefaultInstance,
		Enabled:         true,
		CreatedAt:       time.Now().UTC(),
	}
	if host.Name == "" {
		host.Name = "Unnamed Host"
	}
	if host.Type == "" {
		host.Type = model.ConnTypeSSH
	}
	if host.Port == 0 {
		host.Port = 22
	}
	if host.AuthType == "" {
		host.AuthType = model.AuthTypePassword
	}
	if in.Enabled != nil {
		host.Enabled = *in.Enabled
	}

	doc.Hosts = append(doc.Hosts, host)
	if err := r.save(doc); err != nil {
		return "", err
	}

	secret := model.Secret{Password: in.Password, KeyPath: in.KeyPath, APIKey: in.APIKey}
	if !secret.IsZero() {
		if err := r.secrets.Put(host.ID, secret); err != nil {
			return host.ID, fmt.Errorf("host %s created but storing its secrets failed: %w", host.ID, err)
		}
	}

	return host.ID, nil
}

// Update merges the partial update into the host, keeping id and creation
// timestamp, and routes any new secret fields to the vault.
func (r *Registry) Update(id string, up HostUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}

	idx := -1
	for i, h := range doc.Hosts {
		if h.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ErrNotFound
	}

	h := doc.Hosts[idx]
	setIf(&h.Name, up.Name)
	setIf(&h.Type, up.Type)
	setIf(&h.Host, up.Host)
	setIf(&h.Username, up.Username)
	setIf(&h.AuthType, up.AuthType)
	setIf(&h.ServiceURL, up.ServiceURL)
	setIf(&h.DefaultInstance, up.DefaultInstance)
	if up.Port != nil {
		h.Port = *up.Port
	}
	if up.Enabled != nil {
		h.Enabled = *up.Enabled
	}
	doc.Hosts[idx] = h

	if err := r.save(doc); err != nil {
		return err
	}

	secret := model.Secret{}
	if up.Password != nil {
		secret.Password = *up.Password
	}
	if up.KeyPath != nil {
		secret.KeyPath = *up.KeyPath
	}
	if up.APIKey != nil {
		secret.APIKey = *up.APIKey
	}
	if !secret.IsZero() {
		if err := r.secrets.Put(id, secret); err != nil {
			return fmt.Errorf("host %s updated but storing its secrets failed: %w", id, err)
		}
	}

	return nil
}

// Delete removes the host and cascades to its vault entry.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}

	kept := doc.Hosts[:0]
	found := false
	for _, h := range doc.Hosts {
		if h.ID == id {
			found = true
			continue
		}
		kept = append(kept, h)
	}
	if !found {
		return ErrNotFound
	}
	doc.Hosts = kept

	if err := r.save(doc); err != nil {
		return err
	}

	if err := r.secrets.Delete(id); err != nil {
		// The host record is gone; an orphaned vault entry is inert.
		r.logger.Warn().Err(err).Str("host_id", id).Msg("failed to delete vault entry for removed host")
	}

	return nil
}

func (r *Registry) summarize(h model.Host) model.HostSummary {
	s, _ := r.secrets.Get(h.ID)
	return model.HostSummary{
		Host:        h,
		HasPassword: s.Password != "",
		HasKeyPath:  s.KeyPath != "",
		HasAPIKey:   s.APIKey != "",
	}
}

func (r *Registry) load() (hostsDoc, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return hostsDoc{}, fmt.Errorf("read hosts document: %w", err)
	}
	var doc hostsDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return hostsDoc{}, fmt.Errorf("parse hosts document: %w", err)
	}
	return doc, nil
}

func (r *Registry) save(doc hostsDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal hosts document: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("write hosts document: %w", err)
	}
	return nil
}

// validateAuthSecrets checks that the declared auth mode has its mandatory
// secret field present in the input.
func validateAuthSecrets(authType, password, keyPath string) error {
	switch authType {
	case model.AuthTypeKey:
		if keyPath == "" {
			return fmt.Errorf("key path required for key authentication")
		}
	case model.AuthTypePassword, "":
		if password == "" {
			return fmt.Errorf("password required for password authentication")
		}
	default:
		return fmt.Errorf("unknown auth type %q", authType)
	}
	return nil
}

func setIf(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
