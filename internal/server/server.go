// Package server provides the HTTP server for the glove studio.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sawtak/glovestudio/internal/app"
	"github.com/sawtak/glovestudio/internal/server/api"
	"github.com/sawtak/glovestudio/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Studio    *app.App
	Store     *store.Store
	// Owner is the local user; only their submissions can be merged.
	Owner string
	// Live and Review render the live pose and the trim preview.
	Live         Renderer
	Review       Renderer
	PoseInterval time.Duration
	Logger       *zap.Logger
}

// Server represents the HTTP server for the glove studio.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	pose   *PoseHandler
	logger *zap.Logger
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		logger: logger,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Studio != nil {
		studioHandler := api.NewStudioHandler(s.config.Studio)
		s.mux.Handle("/api/studio", studioHandler)
		s.mux.Handle("/api/studio/", studioHandler)

		s.pose = NewPoseHandler(s.config.Studio, s.config.PoseInterval, s.logger)
		s.mux.Handle("/api/pose", s.pose)
	}

	if s.config.Store != nil {
		submissionHandler := api.NewSubmissionHandler(s.config.Store, s.config.Owner)
		s.mux.Handle("/api/submissions", submissionHandler)
		s.mux.Handle("/api/submissions/", submissionHandler)
	}

	if s.config.Live != nil {
		s.mux.Handle("/api/preview", NewStreamHandler(s.config.Live, s.config.Review))
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Studio != nil {
		response["connected"] = s.config.Studio.Connected()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Close stops background broadcasters.
func (s *Server) Close() {
	if s.pose != nil {
		s.pose.Close()
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
