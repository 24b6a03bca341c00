// Package server provides the HTTP and WebSocket server for the E-NOR robot.
package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/martingsewell/e-nor/internal/chat"
	"github.com/martingsewell/e-nor/internal/config"
	"github.com/martingsewell/e-nor/internal/extension"
	"github.com/martingsewell/e-nor/internal/server/api"
	"github.com/martingsewell/e-nor/internal/state"
	"github.com/martingsewell/e-nor/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir  string
	Hub        *state.Hub
	Registry   *extension.Registry
	Dispatcher *extension.Dispatcher
	Stops      *extension.StopFlags
	Chat       *chat.Service
	Store      *store.Store
	Robot      *config.Manager
}

// Server represents the HTTP server for the E-NOR robot.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Registry != nil {
		extHandler := api.NewExtensionHandler(s.config.Registry, s.config.Robot)
		s.mux.Handle("/api/extensions", extHandler)
		s.mux.Handle("/api/extensions/", extHandler)
	}

	if s.config.Chat != nil {
		s.mux.Handle("/api/chat", api.NewChatHandler(s.config.Chat))
	}

	if s.config.Store != nil {
		memHandler := api.NewMemoriesHandler(s.config.Store)
		s.mux.Handle("/api/memories", memHandler)
		s.mux.Handle("/api/memories/", memHandler)
	}

	if s.config.Hub != nil {
		s.mux.Handle("/ws", NewClientHandler(s.config))
	}

	// Serve the face, admin and controller UIs if StaticDir is configured
	if s.config.StaticDir != "" {
		s.mux.HandleFunc("/admin", s.servePage("admin.html"))
		s.mux.HandleFunc("/controller", s.servePage("controller.html"))
		s.mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// servePage returns a handler serving one named page from the static dir.
func (s *Server) servePage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(s.config.StaticDir, name)
		if _, err := os.Stat(path); err != nil {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, path)
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
	if s.config.Hub != nil {
		response["clients"] = s.config.Hub.ClientCount()
	}
	if s.config.Registry != nil {
		response["extensions_loaded"] = len(s.config.Registry.List())
	}
	if s.config.Robot != nil {
		cfg := s.config.Robot.Get()
		response["robot"] = cfg.RobotName
		response["child"] = cfg.ChildName
		response["setup_complete"] = cfg.SetupComplete
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
