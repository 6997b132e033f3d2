// Package server provides the HTTP server for the mudra catalog, library builds,
// and live recognition events.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/library"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/transport"
)

// Config holds the server configuration. Routes are only mounted for the parts that are set.
type Config struct {
	StaticDir string
	Store     *store.Store
	Snapshot  *library.Snapshot
	Builder   *library.Builder
	Events    *transport.Hub
	Live      api.Live

	// OnBuild receives every library built through the API.
	OnBuild func(*gesture.Library)
}

// Server represents the HTTP server for the mudra application.
type Server struct {
	config Config
	router chi.Router
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		router: chi.NewRouter(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	r := s.router
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/api/health", s.handleHealth)

	if s.config.Store != nil {
		r.Route("/api/concepts", api.NewConceptHandler(s.config.Store).Routes)
		r.Route("/api/recordings", api.NewRecordingHandler(s.config.Store).Routes)
		r.Route("/api/actions", api.NewActionHandler(s.config.Store).Routes)
	}

	if s.config.Store != nil && s.config.Snapshot != nil && s.config.Builder != nil {
		libraries := api.NewLibraryHandler(s.config.Store, s.config.Snapshot, s.config.Builder, s.config.OnBuild)
		r.Route("/api/libraries", libraries.Routes)
		r.Get("/api/alignment", libraries.Alignment)
	}

	if s.config.Live != nil {
		r.Route("/api/live", api.NewLiveHandler(s.config.Live).Routes)
	}

	if s.config.Events != nil {
		r.Handle("/api/events", s.config.Events)
	}

	if s.config.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Uptime: time.Since(s.start).Round(time.Second).String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
