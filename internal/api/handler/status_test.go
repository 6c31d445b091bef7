package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwarner/backhaul/internal/dockerstat"
)

type fakeDockerStat struct {
	available bool
	instances []dockerstat.Instance
	status    dockerstat.Status
	err       error
	actions   []string
}

func (f *fakeDockerStat) Available(context.Context) bool { return f.available }

func (f *fakeDockerStat) ListInstances(context.Context) ([]dockerstat.Instance, error) {
	return f.instances, f.err
}

func (f *fakeDockerStat) InstanceStatus(context.Context, string) (dockerstat.Status, error) {
	return f.status, f.err
}

func (f *fakeDockerStat) Start(_ context.Context, name string) error {
	f.actions = append(f.actions, "start "+name)
	return f.err
}

func (f *fakeDockerStat) Stop(_ context.Context, name string) error {
	f.actions = append(f.actions, "stop "+name)
	return f.err
}

func (f *fakeDockerStat) Restart(_ context.Context, name string) error {
	f.actions = append(f.actions, "restart "+name)
	return f.err
}

func TestStatusDocker_Available(t *testing.T) {
	docker := &fakeDockerStat{
		available: true,
		instances: []dockerstat.Instance{{Name: "n8n-main", State: "running"}},
	}
	h := NewStatus(docker)

	rec := httptest.NewRecorder()
	h.Docker(rec, newRequest(http.MethodGet, "/status/docker", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Available bool                  `json:"available"`
		Instances []dockerstat.Instance `json:"instances"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Available)
	require.Len(t, body.Instances, 1)
	assert.Equal(t, "n8n-main", body.Instances[0].Name)
}

func TestStatusDocker_Unavailable(t *testing.T) {
	h := NewStatus(&fakeDockerStat{available: false})

	rec := httptest.NewRecorder()
	h.Docker(rec, newRequest(http.MethodGet, "/status/docker", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["available"])
	assert.Empty(t, body["instances"])
}

func TestStatusContainer(t *testing.T) {
	docker := &fakeDockerStat{status: dockerstat.Status{Name: "n8n-main", Running: true}}
	h := NewStatus(docker)

	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequest(http.MethodGet, "/status/container/n8n-main", nil), "containerName", "n8n-main")
	h.Container(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	var st dockerstat.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.True(t, st.Running)
}

func TestStatusContainer_NotFound(t *testing.T) {
	h := NewStatus(&fakeDockerStat{err: errors.New("no such container")})

	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequest(http.MethodGet, "/status/container/ghost", nil), "containerName", "ghost")
	h.Container(rec, r)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusLifecycle(t *testing.T) {
	docker := &fakeDockerStat{}
	h := NewStatus(docker)

	for _, tc := range []struct {
		name string
		fn   http.HandlerFunc
	}{
		{"start", h.Start},
		{"stop", h.Stop},
		{"restart", h.Restart},
	} {
		rec := httptest.NewRecorder()
		r := withChiURLParam(newRequest(http.MethodPost, "/status/container/n8n-main/"+tc.name, nil), "containerName", "n8n-main")
		tc.fn(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, []string{"start n8n-main", "stop n8n-main", "restart n8n-main"}, docker.actions)
}

func TestStatusLifecycle_DaemonError(t *testing.T) {
	h := NewStatus(&fakeDockerStat{err: errors.New("daemon gone")})

	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequest(http.MethodPost, "/status/container/n8n-main/start", nil), "containerName", "n8n-main")
	h.Start(rec, r)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
