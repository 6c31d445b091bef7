package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cwarner/backhaul/internal/api/request"
	"github.com/cwarner/backhaul/internal/api/response"
	"github.com/cwarner/backhaul/internal/artifact"
	"github.com/cwarner/backhaul/internal/executor"
	"github.com/cwarner/backhaul/internal/model"
)

// LocalRunner streams local backup and restore runs.
type LocalRunner interface {
	Backup(ctx context.Context, opts executor.BackupOptions) <-chan model.ProgressLine
	Restore(ctx context.Context, opts executor.RestoreOptions) <-chan model.ProgressLine
}

// RemoteRunner streams backup and restore workflows against registered
// hosts.
type RemoteRunner interface {
	Backup(ctx context.Context, hostID string, opts executor.BackupOptions) <-chan model.ProgressLine
	Restore(ctx context.Context, hostID string, opts executor.RestoreOptions) <-chan model.ProgressLine
}

// Backup handles the backup store and backup/restore run endpoints.
type Backup struct {
	store  *artifact.Store
	local  LocalRunner
	remote RemoteRunner
}

// NewBackup creates a new Backup handler.
func NewBackup(store *artifact.Store, local LocalRunner, remote RemoteRunner) *Backup {
	return &Backup{store: store, local: local, remote: remote}
}

func (h *Backup) List(w http.ResponseWriter, r *http.Request) {
	backups, err := h.store.List()
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, backups)
}

func (h *Backup) Details(w http.ResponseWriter, r *http.Request) {
	name, err := request.RequireID(chi.URLParam(r, "backupName"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	details, err := h.store.Details(name)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, details)
}

func (h *Backup) Delete(w http.ResponseWriter, r *http.Request) {
	name, err := request.RequireID(chi.URLParam(r, "backupName"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Delete(name); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Download serves a backup archive as a file attachment. Directory backups
// are not downloadable.
func (h *Backup) Download(w http.ResponseWriter, r *http.Request) {
	name, err := request.RequireID(chi.URLParam(r, "backupName"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.store.Path(name)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeFile(w, r, p)
}

func (h *Backup) Storage(w http.ResponseWriter, r *http.Request) {
	usage, err := h.store.Usage()
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, usage)
}

// Create runs a local backup and streams its progress as server-sent
// events.
func (h *Backup) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateBackup
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	streamProgress(w, h.local.Backup(r.Context(), req.Options()))
}

// Restore runs a local restore and streams its progress.
func (h *Backup) Restore(w http.ResponseWriter, r *http.Request) {
	var req request.RestoreBackup
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	streamProgress(w, h.local.Restore(r.Context(), req.Options()))
}

// CreateRemote runs the backup workflow on a registered host and streams
// its progress.
func (h *Backup) CreateRemote(w http.ResponseWriter, r *http.Request) {
	var req request.RemoteBackup
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	streamProgress(w, h.remote.Backup(r.Context(), req.HostID, req.Options()))
}

// RestoreRemote pushes a local backup to a registered host and streams the
// restore's progress.
func (h *Backup) RestoreRemote(w http.ResponseWriter, r *http.Request) {
	var req request.RemoteRestore
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	streamProgress(w, h.remote.Restore(r.Context(), req.HostID, req.Options()))
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, artifact.ErrNotFound) {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	response.WriteError(w, http.StatusBadRequest, err.Error())
}
