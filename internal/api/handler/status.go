package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cwarner/backhaul/internal/api/request"
	"github.com/cwarner/backhaul/internal/api/response"
	"github.com/cwarner/backhaul/internal/dockerstat"
)

// DockerStat is the slice of the docker service the status handler uses.
type DockerStat interface {
	Available(ctx context.Context) bool
	ListInstances(ctx context.Context) ([]dockerstat.Instance, error)
	InstanceStatus(ctx context.Context, name string) (dockerstat.Status, error)
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	Restart(ctx context.Context, name string) error
}

// Status handles local Docker status and container lifecycle endpoints.
type Status struct {
	docker DockerStat
}

// NewStatus creates a new Status handler.
func NewStatus(docker DockerStat) *Status {
	return &Status{docker: docker}
}

// Docker reports daemon availability and the matching local instances.
func (h *Status) Docker(w http.ResponseWriter, r *http.Request) {
	available := h.docker.Available(r.Context())
	out := map[string]any{
		"available": available,
		"instances": []dockerstat.Instance{},
	}
	if available {
		instances, err := h.docker.ListInstances(r.Context())
		if err != nil {
			response.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if instances != nil {
			out["instances"] = instances
		}
	}
	response.WriteJSON(w, http.StatusOK, out)
}

// Container reports the inspected state of one container.
func (h *Status) Container(w http.ResponseWriter, r *http.Request) {
	name, err := request.RequireID(chi.URLParam(r, "containerName"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	st, err := h.docker.InstanceStatus(r.Context(), name)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, st)
}

func (h *Status) Start(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.docker.Start)
}

func (h *Status) Stop(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.docker.Stop)
}

func (h *Status) Restart(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.docker.Restart)
}

func (h *Status) lifecycle(w http.ResponseWriter, r *http.Request, op func(context.Context, string) error) {
	name, err := request.RequireID(chi.URLParam(r, "containerName"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := op(r.Context(), name); err != nil {
		response.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
