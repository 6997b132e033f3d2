package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Live is the running recognition pipeline.
type Live interface {
	Status() any
	SetEnabled(enabled bool)
	ResetSession(clearCooldown bool)
}

// LiveHandler exposes the live pipeline's status and controls.
type LiveHandler struct {
	live Live
}

// NewLiveHandler creates a LiveHandler.
func NewLiveHandler(l Live) *LiveHandler {
	return &LiveHandler{live: l}
}

// Routes registers the live routes on r.
func (h *LiveHandler) Routes(r chi.Router) {
	r.Get("/", h.status)
	r.Put("/enabled", h.setEnabled)
	r.Post("/reset", h.reset)
}

type enabledRequest struct {
	Enabled bool `json:"enabled"`
}

type resetRequest struct {
	ClearCooldown bool `json:"clear_cooldown"`
}

// status handles GET /api/live.
func (h *LiveHandler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.live.Status())
}

// setEnabled handles PUT /api/live/enabled.
func (h *LiveHandler) setEnabled(w http.ResponseWriter, r *http.Request) {
	var req enabledRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.live.SetEnabled(req.Enabled)
	writeJSON(w, http.StatusOK, h.live.Status())
}

// reset handles POST /api/live/reset. An empty body keeps the cooldown.
func (h *LiveHandler) reset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	h.live.ResetSession(req.ClearCooldown)
	writeJSON(w, http.StatusAccepted, h.live.Status())
}
