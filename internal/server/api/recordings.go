package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/library"
	"github.com/ayusman/mudra/internal/store"
)

// maxRecordingSize bounds an uploaded signature file.
const maxRecordingSize = 32 << 20

// RecordingHandler handles HTTP requests for recorded signatures.
type RecordingHandler struct {
	store *store.Store
}

// NewRecordingHandler creates a new RecordingHandler with the given store.
func NewRecordingHandler(s *store.Store) *RecordingHandler {
	return &RecordingHandler{store: s}
}

// Routes registers the recording routes on r.
func (h *RecordingHandler) Routes(r chi.Router) {
	r.Post("/", h.upload)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.delete)
}

type recordingResponse struct {
	ID        int64  `json:"id"`
	ConceptID string `json:"concept_id"`
	Library   string `json:"library"`
	Source    string `json:"source,omitempty"`
	Frames    int    `json:"frames"`
	CreatedAt string `json:"created_at"`
}

type listRecordingsResponse struct {
	Recordings []recordingResponse `json:"recordings"`
}

func toRecordingResponse(rec *store.Recording) recordingResponse {
	return recordingResponse{
		ID:        rec.ID,
		ConceptID: rec.ConceptID,
		Library:   rec.Library,
		Source:    rec.Source,
		Frames:    rec.Frames,
		CreatedAt: rec.CreatedAt.Format(timeFormat),
	}
}

// upload handles POST /api/recordings. The body is a recorded signature; the
// library and source query parameters are optional.
func (h *RecordingHandler) upload(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRecordingSize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "Recording too large")
		return
	}

	q := r.URL.Query()
	rec, err := library.Import(h.store, data, q.Get("source"), q.Get("library"))
	switch {
	case errors.Is(err, detector.ErrInvalidSignature),
		errors.Is(err, library.ErrMissingSign),
		errors.Is(err, library.ErrMissingLanguage):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to store recording")
		return
	}
	writeJSON(w, http.StatusCreated, toRecordingResponse(rec))
}

// list handles GET /api/concepts/{id}/recordings.
func (h *RecordingHandler) list(w http.ResponseWriter, r *http.Request) {
	conceptID := chi.URLParam(r, "id")
	if _, err := h.store.Concepts().GetByID(conceptID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Concept not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get concept")
		return
	}

	recordings, err := h.store.Recordings().ListByConcept(conceptID, r.URL.Query().Get("library"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list recordings")
		return
	}

	response := listRecordingsResponse{Recordings: make([]recordingResponse, 0, len(recordings))}
	for i := range recordings {
		response.Recordings = append(response.Recordings, toRecordingResponse(&recordings[i]))
	}
	writeJSON(w, http.StatusOK, response)
}

func recordingID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid recording id")
		return 0, false
	}
	return id, true
}

// get handles GET /api/recordings/{id} and returns the recording with its signature data.
func (h *RecordingHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := recordingID(w, r)
	if !ok {
		return
	}
	rec, err := h.store.Recordings().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Recording not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get recording")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// delete handles DELETE /api/recordings/{id}.
func (h *RecordingHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := recordingID(w, r)
	if !ok {
		return
	}
	if err := h.store.Recordings().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Recording not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete recording")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
