// Package server provides the HTTP API for driving the rover remotely.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/camrover/internal/display"
	"github.com/ayusman/camrover/internal/log"
	"github.com/ayusman/camrover/internal/server/api"
	"github.com/ayusman/camrover/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir  string
	Controller api.Controller
	Store      *store.Store
	Hub        *display.Hub
	// StatusEvery is the websocket push interval.
	StatusEvery time.Duration
}

// Server represents the HTTP server for the camrover application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	status *StatusHandler

	mu     sync.Mutex
	http   *http.Server
	closed bool
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.StatusEvery <= 0 {
		config.StatusEvery = DefaultStatusEvery
	}
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

	if s.config.Controller != nil {
		api.NewControlHandler(s.config.Controller).Register(s.mux)

		s.status = NewStatusHandler(s.config.Controller, s.config.StatusEvery)
		s.mux.Handle("/api/ws", s.status)
	}

	if s.config.Store != nil {
		api.NewJournalHandler(s.config.Store).Register(s.mux)
	}

	if s.config.Hub != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Hub))
		s.mux.HandleFunc("/api/frame", s.handleFrame)
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

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// handleFrame returns the latest rendered frame as a single JPEG.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, _ := s.config.Hub.Latest()
	if data == nil {
		http.Error(w, "No frame yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(data)
}

// ListenAndServe starts the HTTP server on the given address and blocks
// until Shutdown is called or the listener fails. It returns nil without
// listening when Shutdown already ran.
func (s *Server) ListenAndServe(addr string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	hs := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.http = hs
	s.mu.Unlock()

	log.Info("http server listening", "addr", addr)
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server and closes websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.status != nil {
		s.status.Close()
	}

	s.mu.Lock()
	s.closed = true
	hs := s.http
	s.mu.Unlock()

	if hs == nil {
		return nil
	}
	return hs.Shutdown(ctx)
}
