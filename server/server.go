// Package server implements the Sprocket HTTP server: the REST API for
// sessions, categories, and task control, plus SSE real-time events.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/GoCodeAlone/sprocket/category"
	"github.com/GoCodeAlone/sprocket/config"
	"github.com/GoCodeAlone/sprocket/event"
	"github.com/GoCodeAlone/sprocket/session"
)

// Server is the Sprocket HTTP server.
type Server struct {
	cfg     config.Config
	mux     *http.ServeMux
	httpSrv *http.Server
	logger  *slog.Logger

	sessions   *session.Manager
	categories category.Store
	hub        *event.Hub

	startTime time.Time
	version   string
}

// New creates a new Server with the given config and logger.
func New(cfg config.Config, ver string, logger *slog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		logger:    logger,
		startTime: time.Now(),
		version:   ver,
	}
}

// SetSessionManager attaches the session manager.
func (s *Server) SetSessionManager(mgr *session.Manager) {
	s.sessions = mgr
}

// SetCategoryStore attaches the category store.
func (s *Server) SetCategoryStore(store category.Store) {
	s.categories = store
}

// SetHub attaches the event hub serving SSE streams.
func (s *Server) SetHub(hub *event.Hub) {
	s.hub = hub
}

// Start registers routes and begins listening.
func (s *Server) Start() error {
	s.registerRoutes()

	addr := s.cfg.Server.Addr
	if addr == "" {
		addr = ":9090"
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 15 * time.Second,
	}
	s.logger.Info("server listening", slog.String("addr", addr))
	return s.httpSrv.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/sessions", s.createSession)
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.deleteSession)
	s.mux.HandleFunc("GET /api/sessions/{id}/events", s.sessionEvents)
	s.mux.HandleFunc("GET /api/sessions/{id}/history", s.sessionHistory)
	s.mux.HandleFunc("GET /api/sessions/{id}/tasks", s.sessionTasks)
	s.mux.HandleFunc("GET /api/sessions/{id}/tools", s.sessionTools)
	s.mux.HandleFunc("POST /api/sessions/{id}/messages", s.postMessage)
	s.mux.HandleFunc("POST /api/sessions/{id}/tasks/{taskID}/start", s.startTask)
	s.mux.HandleFunc("POST /api/sessions/{id}/tasks/{taskID}/subtasks/{subtaskID}/output", s.postSubtaskOutput)

	s.mux.HandleFunc("GET /api/categories", s.listCategories)
	s.mux.HandleFunc("POST /api/categories", s.createCategory)
	s.mux.HandleFunc("GET /api/categories/{id}", s.getCategory)
	s.mux.HandleFunc("PUT /api/categories/{id}", s.updateCategory)
	s.mux.HandleFunc("DELETE /api/categories/{id}", s.deleteCategory)

	s.mux.HandleFunc("GET /api/status", s.status)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
