// Package server provides the HTTP server of handsign: the JSON API, the
// annotated MJPEG stream and the live gesture websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ayusman/handsign/internal/capture"
	"github.com/ayusman/handsign/internal/server/api"
	"github.com/ayusman/handsign/internal/store"
)

// Config holds the server configuration. Optional parts left nil disable
// their routes.
type Config struct {
	StaticDir string
	Store     *store.Store
	Frames    *capture.FrameBuffer
	Live      *LiveHandler
	Logger    *zap.SugaredLogger
}

// Server represents the HTTP server for the handsign application.
type Server struct {
	config Config
	logger *zap.SugaredLogger
	mux    *http.ServeMux
	start  time.Time

	mu   sync.Mutex
	http *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}
	s := &Server{
		config: config,
		logger: config.Logger,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	gestures := api.NewGestureHandler()
	s.mux.Handle("/api/gestures", gestures)
	s.mux.Handle("/api/gestures/", gestures)
	s.mux.Handle("/api/classify", api.NewClassifyHandler(s.logger))

	if s.config.Store != nil {
		sessions := api.NewSessionHandler(s.config.Store)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)
	}

	if s.config.Frames != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Frames))
	}

	if s.config.Live != nil {
		s.mux.Handle("/api/live", s.config.Live)
	}

	if s.config.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Live != nil {
		response["liveClients"] = s.config.Live.Clients()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// ListenAndServe serves on addr until Shutdown or Close. It returns nil
// after a clean shutdown.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	s.logger.Infow("http server listening", "addr", addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for active requests.
// Websocket and stream clients are disconnected.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.config.Live != nil {
		err = multierr.Append(err, s.config.Live.Close())
	}

	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv != nil {
		err = multierr.Append(err, srv.Shutdown(ctx))
	}
	return err
}

// Close shuts down immediately.
func (s *Server) Close() error {
	var err error
	if s.config.Live != nil {
		err = multierr.Append(err, s.config.Live.Close())
	}

	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv != nil {
		err = multierr.Append(err, srv.Close())
	}
	return err
}
