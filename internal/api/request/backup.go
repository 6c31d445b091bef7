package request

import "github.com/cwarner/backhaul/internal/executor"

// CreateBackup holds the request body for a local backup run.
type CreateBackup struct {
	BackupType     string `json:"backup_type" validate:"omitempty,oneof=native docker enhanced"`
	ContainerName  string `json:"container_name"`
	IncludeVolumes bool   `json:"include_volumes"`
	IncludeLogs    bool   `json:"include_logs"`
}

func (r CreateBackup) Options() executor.BackupOptions {
	t := r.BackupType
	if t == "" {
		t = "docker"
	}
	return executor.BackupOptions{
		Type:           t,
		Container:      r.ContainerName,
		IncludeVolumes: r.IncludeVolumes,
		IncludeLogs:    r.IncludeLogs,
	}
}

// RestoreBackup holds the request body for a local restore run.
type RestoreBackup struct {
	BackupName        string `json:"backup_name" validate:"required"`
	RestoreType       string `json:"restore_type" validate:"omitempty,oneof=native docker enhanced"`
	ContainerName     string `json:"container_name"`
	RecreateContainer bool   `json:"recreate_container"`
}

func (r RestoreBackup) Options() executor.RestoreOptions {
	t := r.RestoreType
	if t == "" {
		t = "docker"
	}
	return executor.RestoreOptions{
		Type:              t,
		Archive:           r.BackupName,
		Container:         r.ContainerName,
		RecreateContainer: r.RecreateContainer,
	}
}

// RemoteBackup holds the request body for a backup run on a registered host.
type RemoteBackup struct {
	HostID string `json:"host_id" validate:"required"`
	CreateBackup
}

// RemoteRestore holds the request body for pushing a local backup to a
// registered host and restoring it there.
type RemoteRestore struct {
	HostID string `json:"host_id" validate:"required"`
	RestoreBackup
}
