package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cwarner/backhaul/internal/api/request"
	"github.com/cwarner/backhaul/internal/api/response"
	"github.com/cwarner/backhaul/internal/model"
	"github.com/cwarner/backhaul/internal/registry"
)

// RemoteOps is the slice of the orchestrator the host handler uses for
// connection-level utilities.
type RemoteOps interface {
	TestConnection(ctx context.Context, hostID string) (model.CommandResult, error)
	ListInstances(ctx context.Context, hostID string) ([]string, error)
	RunCommand(ctx context.Context, hostID, command string) (model.CommandResult, error)
}

// Host handles host registry endpoints.
type Host struct {
	reg    *registry.Registry
	remote RemoteOps
}

// NewHost creates a new Host handler.
func NewHost(reg *registry.Registry, remote RemoteOps) *Host {
	return &Host{reg: reg, remote: remote}
}

func (h *Host) List(w http.ResponseWriter, r *http.Request) {
	hosts, err := h.reg.List()
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, hosts)
}

func (h *Host) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "hostID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	host, err := h.reg.Get(id)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, host)
}

func (h *Host) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateHost
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.reg.Add(req.Input())
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	host, err := h.reg.Get(id)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusCreated, host)
}

func (h *Host) Update(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "hostID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.UpdateHost
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.reg.Update(id, req.Update()); err != nil {
		writeRegistryError(w, err)
		return
	}

	host, err := h.reg.Get(id)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, host)
}

func (h *Host) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "hostID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.reg.Delete(id); err != nil {
		writeRegistryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Test opens a connection to the host and runs a trivial remote command.
func (h *Host) Test(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "hostID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.remote.TestConnection(r.Context(), id)
	if err != nil {
		writeRemoteError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, res)
}

// Instances lists the filtered container names running on the host.
func (h *Host) Instances(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "hostID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	instances, err := h.remote.ListInstances(r.Context(), id)
	if err != nil {
		writeRemoteError(w, err)
		return
	}
	if instances == nil {
		instances = []string{}
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"instances": instances})
}

// Command runs one ad hoc command on the host and returns its captured
// result.
func (h *Host) Command(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "hostID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.ExecCommand
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.remote.RunCommand(r.Context(), id, req.Command)
	if err != nil {
		writeRemoteError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, res)
}

func writeRegistryError(w http.ResponseWriter, err error) {
	if errors.Is(err, registry.ErrNotFound) {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	response.WriteError(w, http.StatusBadRequest, err.Error())
}

// writeRemoteError maps resolution failures to 404 and everything else,
// including unreachable hosts, to 502.
func writeRemoteError(w http.ResponseWriter, err error) {
	if errors.Is(err, registry.ErrNotFound) {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	response.WriteError(w, http.StatusBadGateway, err.Error())
}
