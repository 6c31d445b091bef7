package handler

import (
	"net/http"

	"github.com/cwarner/backhaul/internal/api/request"
	"github.com/cwarner/backhaul/internal/api/response"
	"github.com/cwarner/backhaul/internal/appkey"
)

// AppKey handles application encryption key endpoints. Key values never
// leave the server except immediately after generation, before they are
// active anywhere.
type AppKey struct {
	mgr *appkey.Manager
}

// NewAppKey creates a new AppKey handler.
func NewAppKey(mgr *appkey.Manager) *AppKey {
	return &AppKey{mgr: mgr}
}

// Get reports where a key was found and its masked form.
func (h *AppKey) Get(w http.ResponseWriter, r *http.Request) {
	info := h.mgr.Locate()
	if info == nil {
		response.WriteJSON(w, http.StatusOK, map[string]any{
			"found":   false,
			"message": "No encryption key found",
		})
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"found":    true,
		"key_info": info,
	})
}

// Generate produces a fresh key. The key is returned once; saving it is a
// separate, explicit step.
func (h *AppKey) Generate(w http.ResponseWriter, r *http.Request) {
	key, err := h.mgr.Generate()
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"key":     key,
		"masked":  appkey.Mask(key),
		"length":  len(key),
		"message": "New key generated. Save it to activate.",
	})
}

// Save persists a key to the locally-managed key file.
func (h *AppKey) Save(w http.ResponseWriter, r *http.Request) {
	var req request.SaveAppKey
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.mgr.Save(req.Key)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"path":    p,
		"message": "Key saved successfully",
	})
}

// Validate checks a key's format without storing it.
func (h *AppKey) Validate(w http.ResponseWriter, r *http.Request) {
	var req request.ValidateAppKey
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	out := map[string]any{
		"valid":  appkey.Validate(req.Key) == nil,
		"length": len(req.Key),
		"masked": appkey.Mask(req.Key),
	}
	if err := appkey.Validate(req.Key); err != nil {
		out["error"] = err.Error()
	}
	response.WriteJSON(w, http.StatusOK, out)
}
