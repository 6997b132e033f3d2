package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/store"
)

// ConceptHandler handles HTTP requests for concept resources.
type ConceptHandler struct {
	store *store.Store
}

// NewConceptHandler creates a new ConceptHandler with the given store.
func NewConceptHandler(s *store.Store) *ConceptHandler {
	return &ConceptHandler{store: s}
}

// Routes registers the concept routes on r.
func (h *ConceptHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Get("/{id}/recordings", NewRecordingHandler(h.store).list)
}

type conceptRequest struct {
	Name     string `json:"name"`
	Artifact string `json:"artifact"`
}

type conceptResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Artifact   string `json:"artifact,omitempty"`
	Recordings int    `json:"recordings"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type listConceptsResponse struct {
	Concepts []conceptResponse `json:"concepts"`
}

func toConceptResponse(c *store.Concept) conceptResponse {
	return conceptResponse{
		ID:         c.ID,
		Name:       c.Name,
		Artifact:   c.Artifact,
		Recordings: c.Recordings,
		CreatedAt:  c.CreatedAt.Format(timeFormat),
		UpdatedAt:  c.UpdatedAt.Format(timeFormat),
	}
}

// list handles GET /api/concepts.
func (h *ConceptHandler) list(w http.ResponseWriter, r *http.Request) {
	concepts, err := h.store.Concepts().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list concepts")
		return
	}

	response := listConceptsResponse{Concepts: make([]conceptResponse, 0, len(concepts))}
	for _, c := range concepts {
		response.Concepts = append(response.Concepts, toConceptResponse(c))
	}
	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/concepts/{id}.
func (h *ConceptHandler) get(w http.ResponseWriter, r *http.Request) {
	concept, err := h.store.Concepts().GetByID(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Concept not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get concept")
		return
	}
	writeJSON(w, http.StatusOK, toConceptResponse(concept))
}

// create handles POST /api/concepts.
func (h *ConceptHandler) create(w http.ResponseWriter, r *http.Request) {
	var req conceptRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}
	if _, err := h.store.Concepts().GetByName(name); err == nil {
		writeError(w, http.StatusConflict, "Concept already exists")
		return
	}

	concept := &store.Concept{
		ID:       uuid.New().String(),
		Name:     name,
		Artifact: req.Artifact,
	}
	if err := h.store.Concepts().Create(concept); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create concept")
		return
	}
	writeJSON(w, http.StatusCreated, toConceptResponse(concept))
}

// update handles PUT /api/concepts/{id}. Empty fields are left unchanged.
func (h *ConceptHandler) update(w http.ResponseWriter, r *http.Request) {
	concept, err := h.store.Concepts().GetByID(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Concept not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get concept")
		return
	}

	var req conceptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		concept.Name = name
	}
	if req.Artifact != "" {
		concept.Artifact = req.Artifact
	}

	if err := h.store.Concepts().Update(concept); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update concept")
		return
	}
	writeJSON(w, http.StatusOK, toConceptResponse(concept))
}

// delete handles DELETE /api/concepts/{id}. Recordings and actions go with it.
func (h *ConceptHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Concepts().Delete(chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Concept not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete concept")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
