package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwarner/backhaul/internal/artifact"
	"github.com/cwarner/backhaul/internal/executor"
	"github.com/cwarner/backhaul/internal/model"
)

type fakeStreams struct {
	backupOpts  []executor.BackupOptions
	restoreOpts []executor.RestoreOptions
	hostIDs     []string
	lines       []model.ProgressLine
}

func (f *fakeStreams) stream() <-chan model.ProgressLine {
	ch := make(chan model.ProgressLine, len(f.lines))
	for _, l := range f.lines {
		ch <- l
	}
	close(ch)
	return ch
}

func (f *fakeStreams) Backup(_ context.Context, opts executor.BackupOptions) <-chan model.ProgressLine {
	f.backupOpts = append(f.backupOpts, opts)
	return f.stream()
}

func (f *fakeStreams) Restore(_ context.Context, opts executor.RestoreOptions) <-chan model.ProgressLine {
	f.restoreOpts = append(f.restoreOpts, opts)
	return f.stream()
}

type fakeRemoteStreams struct {
	fakeStreams
}

func (f *fakeRemoteStreams) Backup(ctx context.Context, hostID string, opts executor.BackupOptions) <-chan model.ProgressLine {
	f.hostIDs = append(f.hostIDs, hostID)
	return f.fakeStreams.Backup(ctx, opts)
}

func (f *fakeRemoteStreams) Restore(ctx context.Context, hostID string, opts executor.RestoreOptions) <-chan model.ProgressLine {
	f.hostIDs = append(f.hostIDs, hostID)
	return f.fakeStreams.Restore(ctx, opts)
}

func newBackupHandler(t *testing.T) (*Backup, string, *fakeStreams, *fakeRemoteStreams) {
	t.Helper()
	dir := t.TempDir()
	local := &fakeStreams{lines: []model.ProgressLine{
		{Text: "working"},
		{Text: "SUCCESS: done"},
	}}
	remote := &fakeRemoteStreams{fakeStreams: fakeStreams{lines: []model.ProgressLine{
		{Text: "remote working"},
		{Text: "SUCCESS: done"},
	}}}
	h := NewBackup(artifact.NewStore(dir, zerolog.Nop()), local, remote)
	return h, dir, local, remote
}

func TestBackupList(t *testing.T) {
	h, dir, _, _ := newBackupHandler(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b1.tar.gz"), []byte("x"), 0o644))

	rec := httptest.NewRecorder()
	h.List(rec, newRequest(http.MethodGet, "/backups", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var backups []model.Artifact
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &backups))
	require.Len(t, backups, 1)
	assert.Equal(t, "b1.tar.gz", backups[0].Name)
}

func TestBackupDetails_NotFound(t *testing.T) {
	h, _, _, _ := newBackupHandler(t)

	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequest(http.MethodGet, "/backups/ghost", nil), "backupName", "ghost")
	h.Details(rec, r)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBackupDelete(t *testing.T) {
	h, dir, _, _ := newBackupHandler(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b1.tar.gz"), []byte("x"), 0o644))

	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequest(http.MethodDelete, "/backups/b1.tar.gz", nil), "backupName", "b1.tar.gz")
	h.Delete(rec, r)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, err := os.Stat(filepath.Join(dir, "b1.tar.gz"))
	assert.True(t, os.IsNotExist(err))
}

func TestBackupDownload(t *testing.T) {
	h, dir, _, _ := newBackupHandler(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b1.tar.gz"), []byte("archive-bytes"), 0o644))

	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequest(http.MethodGet, "/backups/b1.tar.gz/download", nil), "backupName", "b1.tar.gz")
	h.Download(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "b1.tar.gz")
	assert.Equal(t, "archive-bytes", rec.Body.String())
}

func TestBackupStorage(t *testing.T) {
	h, dir, _, _ := newBackupHandler(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b1.tar.gz"), []byte("xyz"), 0o644))

	rec := httptest.NewRecorder()
	h.Storage(rec, newRequest(http.MethodGet, "/backups/storage", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var usage model.StorageUsage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &usage))
	assert.Equal(t, 1, usage.TotalBackups)
	assert.Equal(t, int64(3), usage.TotalSizeBytes)
}

func TestBackupCreate_StreamsSSE(t *testing.T) {
	h, _, local, _ := newBackupHandler(t)

	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/backups", map[string]any{
		"backup_type": "native", "include_volumes": true,
	})
	h.Create(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	events := strings.Split(strings.TrimSpace(rec.Body.String()), "\n\n")
	require.Len(t, events, 2)
	assert.Contains(t, events[0], `"message":"working"`)
	assert.Contains(t, events[1], "SUCCESS")

	require.Len(t, local.backupOpts, 1)
	assert.Equal(t, "native", local.backupOpts[0].Type)
	assert.True(t, local.backupOpts[0].IncludeVolumes)
}

func TestBackupCreate_DefaultsToDocker(t *testing.T) {
	h, _, local, _ := newBackupHandler(t)

	rec := httptest.NewRecorder()
	h.Create(rec, newRequest(http.MethodPost, "/backups", map[string]any{}))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, local.backupOpts, 1)
	assert.Equal(t, "docker", local.backupOpts[0].Type)
}

func TestBackupCreate_RejectsUnknownType(t *testing.T) {
	h, _, _, _ := newBackupHandler(t)

	rec := httptest.NewRecorder()
	h.Create(rec, newRequest(http.MethodPost, "/backups", map[string]any{"backup_type": "tarball"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBackupRestore_RequiresName(t *testing.T) {
	h, _, _, _ := newBackupHandler(t)

	rec := httptest.NewRecorder()
	h.Restore(rec, newRequest(http.MethodPost, "/backups/restore", map[string]any{}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBackupCreateRemote(t *testing.T) {
	h, _, _, remote := newBackupHandler(t)

	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/backups/remote", map[string]any{
		"host_id": "h1", "backup_type": "docker", "container_name": "n8n-main",
	})
	h.CreateRemote(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"h1"}, remote.hostIDs)
	require.Len(t, remote.backupOpts, 1)
	assert.Equal(t, "n8n-main", remote.backupOpts[0].Container)
}

func TestBackupCreateRemote_RequiresHostID(t *testing.T) {
	h, _, _, _ := newBackupHandler(t)

	rec := httptest.NewRecorder()
	h.CreateRemote(rec, newRequest(http.MethodPost, "/backups/remote", map[string]any{"backup_type": "docker"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBackupRestoreRemote(t *testing.T) {
	h, _, _, remote := newBackupHandler(t)

	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/backups/remote/restore", map[string]any{
		"host_id": "h1", "backup_name": "b1.tar.gz", "recreate_container": true,
	})
	h.RestoreRemote(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, remote.restoreOpts, 1)
	assert.Equal(t, "b1.tar.gz", remote.restoreOpts[0].Archive)
	assert.True(t, remote.restoreOpts[0].RecreateContainer)
}
