package model

import "encoding/json"

// Backup type labels inferred from artifact names.
const (
	BackupTypeNative   = "native"
	BackupTypeDocker   = "docker"
	BackupTypeEnhanced = "enhanced"
	BackupTypeUnknown  = "unknown"
)

// Artifact describes one member of the local artifact store: a compressed
// backup file or a backup directory.
type Artifact struct {
	Name         string          `json:"name"`
	Path         string          `json:"path"`
	IsCompressed bool            `json:"is_compressed"`
	SizeBytes    int64           `json:"size_bytes"`
	CreatedAt    int64           `json:"created_timestamp"`
	CreatedDate  string          `json:"created_date"`
	BackupType   string          `json:"backup_type"`
	Workflows    int             `json:"workflows_count"`
	HasSecrets   bool            `json:"has_credentials"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
}

// StorageUsage summarizes the artifact store.
type StorageUsage struct {
	TotalBackups   int    `json:"total_backups"`
	TotalSizeBytes int64  `json:"total_size_bytes"`
	Dir            string `json:"backups_dir"`
}
