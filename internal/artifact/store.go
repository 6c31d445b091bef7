// Package artifact manages the local backup store: the directory where
// downloaded and locally-produced backups live as compressed files or
// expanded backup directories.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cwarner/backhaul/internal/model"
)

// ErrNotFound reports a backup name that resolves to nothing in the store.
var ErrNotFound = errors.New("backup not found")

// tryExtensions is appended to bare names during lookup so callers can refer
// to a backup with or without its archive suffix.
var tryExtensions = []string{".tar.gz", ".zip"}

type Store struct {
	dir    string
	logger zerolog.Logger
}

func NewStore(dir string, logger zerolog.Logger) *Store {
	return &Store{
		dir:    dir,
		logger: logger.With().Str("component", "artifact").Logger(),
	}
}

// Dir returns the store's backing directory.
func (s *Store) Dir() string { return s.dir }

// List returns every backup in the store, newest first. A missing store
// directory is an empty store, not an error.
func (s *Store) List() ([]model.Artifact, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []model.Artifact{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact dir: %w", err)
	}

	artifacts := make([]model.Artifact, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		isArchive := !e.IsDir() && (strings.HasSuffix(name, ".gz") || strings.HasSuffix(name, ".zip"))
		isBackupDir := e.IsDir() && strings.Contains(strings.ToLower(name), "backup")
		if !isArchive && !isBackupDir {
			continue
		}
		a, err := s.describe(filepath.Join(s.dir, name), false)
		if err != nil {
			s.logger.Warn().Err(err).Str("name", name).Msg("skipping unreadable backup")
			continue
		}
		artifacts = append(artifacts, a)
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].CreatedAt > artifacts[j].CreatedAt
	})
	return artifacts, nil
}

// Details returns full information for one backup, including its raw
// metadata document when one exists.
func (s *Store) Details(name string) (model.Artifact, error) {
	p, err := s.resolve(name)
	if err != nil {
		return model.Artifact{}, err
	}
	return s.describe(p, true)
}

// Path resolves a backup name to its on-disk path. Only regular files are
// returned; directory backups cannot be served or pushed as a single file.
func (s *Store) Path(name string) (string, error) {
	p, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(p)
	if err != nil {
		return "", fmt.Errorf("stat backup: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("backup %s is a directory, not a file", name)
	}
	return p, nil
}

// Delete removes a backup file or directory from the store.
func (s *Store) Delete(name string) error {
	p, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(p); err != nil {
		return fmt.Errorf("delete backup %s: %w", name, err)
	}
	s.logger.Info().Str("name", name).Msg("backup deleted")
	return nil
}

// Usage summarizes what the store holds.
func (s *Store) Usage() (model.StorageUsage, error) {
	artifacts, err := s.List()
	if err != nil {
		return model.StorageUsage{}, err
	}
	usage := model.StorageUsage{Dir: s.dir, TotalBackups: len(artifacts)}
	for _, a := range artifacts {
		usage.TotalSizeBytes += a.SizeBytes
	}
	return usage, nil
}

// resolve maps a backup name to its path, trying common archive extensions
// for bare names. Names carrying path separators are rejected outright.
func (s *Store) resolve(name string) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid backup name %q", name)
	}
	candidates := []string{name}
	for _, ext := range tryExtensions {
		candidates = append(candidates, name+ext)
	}
	for _, c := range candidates {
		p := filepath.Join(s.dir, c)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s: %w", name, ErrNotFound)
}

func (s *Store) describe(p string, detailed bool) (model.Artifact, error) {
	info, err := os.Stat(p)
	if err != nil {
		return model.Artifact{}, fmt.Errorf("stat %s: %w", p, err)
	}

	a := model.Artifact{
		Name:         info.Name(),
		Path:         p,
		IsCompressed: !info.IsDir(),
		CreatedAt:    info.ModTime().Unix(),
		CreatedDate:  info.ModTime().Format(time.DateTime),
		BackupType:   typeFromName(info.Name()),
	}

	if info.IsDir() {
		a.SizeBytes, err = dirSize(p)
		if err != nil {
			return model.Artifact{}, err
		}
		s.readMetadata(&a, p, detailed)
	} else {
		a.SizeBytes = info.Size()
	}
	return a, nil
}

func typeFromName(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "enhanced"):
		return model.BackupTypeEnhanced
	case strings.Contains(lower, "docker"):
		return model.BackupTypeDocker
	case strings.Contains(lower, "native"):
		return model.BackupTypeNative
	default:
		return model.BackupTypeUnknown
	}
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", root, err)
	}
	return total, nil
}

// metadataDoc is the slice of a backup's metadata file the store cares
// about; the rest is carried opaquely in detailed views.
type metadataDoc struct {
	BackupContents struct {
		WorkflowsCount        int  `json:"workflows_count"`
		CredentialsFileExists bool `json:"credentials_file_exists"`
	} `json:"backup_contents"`
}

func (s *Store) readMetadata(a *model.Artifact, dir string, detailed bool) {
	var raw []byte
	for _, name := range []string{"backup_metadata.json", "enhanced_backup_metadata.json"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			raw = data
			break
		}
	}
	if raw == nil {
		return
	}

	var doc metadataDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		s.logger.Warn().Err(err).Str("backup", a.Name).Msg("unparseable backup metadata")
		return
	}
	a.Workflows = doc.BackupContents.WorkflowsCount
	a.HasSecrets = doc.BackupContents.CredentialsFileExists
	if detailed {
		a.Metadata = json.RawMessage(raw)
	}
}
