package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/library"
	"github.com/ayusman/mudra/internal/store"
)

// LibraryHandler builds, lists and compares compiled reference libraries.
type LibraryHandler struct {
	store    *store.Store
	snapshot *library.Snapshot
	builder  *library.Builder

	// onBuild receives every successfully built library, e.g. to reload the live session.
	onBuild func(*gesture.Library)
}

// NewLibraryHandler creates a LibraryHandler. onBuild may be nil.
func NewLibraryHandler(s *store.Store, snap *library.Snapshot, b *library.Builder, onBuild func(*gesture.Library)) *LibraryHandler {
	return &LibraryHandler{store: s, snapshot: snap, builder: b, onBuild: onBuild}
}

// Routes registers the library routes on r.
func (h *LibraryHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{name}", h.get)
	r.Post("/{name}/build", h.build)
	r.Get("/{name}/builds", h.builds)
}

type librarySummary struct {
	Name       string        `json:"name"`
	Recordings bool          `json:"recordings"`
	Snapshot   *library.Meta `json:"snapshot,omitempty"`
}

type listLibrariesResponse struct {
	Libraries []librarySummary `json:"libraries"`
}

type libraryResponse struct {
	Meta     *library.Meta `json:"meta"`
	Concepts []conceptRef  `json:"concepts"`
}

type conceptRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Artifact string `json:"artifact,omitempty"`
}

type buildResponse struct {
	BuildID string              `json:"build_id"`
	Report  gesture.BuildReport `json:"report"`
}

type listBuildsResponse struct {
	Builds []*store.Build `json:"builds"`
}

// list handles GET /api/libraries: every library with recordings or a saved snapshot.
func (h *LibraryHandler) list(w http.ResponseWriter, r *http.Request) {
	recorded, err := h.store.Recordings().Libraries()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list libraries")
		return
	}
	saved, err := h.snapshot.Names()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list snapshots")
		return
	}

	byName := make(map[string]*librarySummary)
	var order []string
	add := func(name string) *librarySummary {
		if s, ok := byName[name]; ok {
			return s
		}
		byName[name] = &librarySummary{Name: name}
		order = append(order, name)
		return byName[name]
	}
	for _, name := range recorded {
		add(name).Recordings = true
	}
	for _, name := range saved {
		meta, err := h.snapshot.Info(name)
		if err != nil {
			log.Printf("Snapshot info for %s: %v", name, err)
			continue
		}
		add(name).Snapshot = meta
	}

	response := listLibrariesResponse{Libraries: make([]librarySummary, 0, len(order))}
	for _, name := range order {
		response.Libraries = append(response.Libraries, *byName[name])
	}
	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/libraries/{name} and lists the concepts of a saved library.
func (h *LibraryHandler) get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	lib, err := h.snapshot.Load(name)
	if err != nil {
		if errors.Is(err, library.ErrLibraryNotFound) || errors.Is(err, gesture.ErrEmptyLibrary) {
			writeError(w, http.StatusNotFound, "Library not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load library")
		return
	}
	meta, err := h.snapshot.Info(name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load library")
		return
	}

	response := libraryResponse{Meta: meta, Concepts: make([]conceptRef, 0, lib.Len())}
	for _, c := range lib.Concepts() {
		response.Concepts = append(response.Concepts, conceptRef{ID: c.ConceptID, Name: c.Name, Artifact: c.Artifact})
	}
	writeJSON(w, http.StatusOK, response)
}

// build handles POST /api/libraries/{name}/build.
func (h *LibraryHandler) build(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	result, err := h.builder.Build(name)
	switch {
	case errors.Is(err, library.ErrNoRecordings):
		writeError(w, http.StatusNotFound, "No recordings for library")
		return
	case errors.Is(err, gesture.ErrEmptyLibrary):
		// The build row is kept so the report explains why nothing survived.
		writeJSON(w, http.StatusUnprocessableEntity, buildResponse{BuildID: result.BuildID, Report: result.Report})
		return
	case err != nil:
		log.Printf("Build %s failed: %v", name, err)
		writeError(w, http.StatusInternalServerError, "Failed to build library")
		return
	}

	if h.onBuild != nil {
		h.onBuild(result.Library)
	}
	writeJSON(w, http.StatusCreated, buildResponse{BuildID: result.BuildID, Report: result.Report})
}

// builds handles GET /api/libraries/{name}/builds, newest first.
func (h *LibraryHandler) builds(w http.ResponseWriter, r *http.Request) {
	builds, err := h.store.Builds().List(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list builds")
		return
	}
	if builds == nil {
		builds = []*store.Build{}
	}
	writeJSON(w, http.StatusOK, listBuildsResponse{Builds: builds})
}

// Alignment handles GET /api/alignment?source=asl&target=bsl&min=0.85.
func (h *LibraryHandler) Alignment(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	source, target := q.Get("source"), q.Get("target")
	if source == "" || target == "" {
		writeError(w, http.StatusBadRequest, "source and target are required")
		return
	}

	minSim := gesture.DefaultMinAlignment
	if v := q.Get("min"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid min")
			return
		}
		minSim = f
	}

	libs := make([]*gesture.Library, 2)
	for i, name := range []string{source, target} {
		lib, err := h.snapshot.Load(name)
		if err != nil {
			if errors.Is(err, library.ErrLibraryNotFound) || errors.Is(err, gesture.ErrEmptyLibrary) {
				writeError(w, http.StatusNotFound, "Library not found: "+name)
				return
			}
			writeError(w, http.StatusInternalServerError, "Failed to load library")
			return
		}
		libs[i] = lib
	}

	writeJSON(w, http.StatusOK, gesture.CompareLibraries(libs[0], libs[1], minSim))
}
