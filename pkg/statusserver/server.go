// Package statusserver exposes the consumer's liveness and sensor presence
// over a small HTTP surface.
package statusserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/warapong-pj/temperature-and-humidity-simulator/pkg/presence"
)

// EnvStatusPort configures the listen address of the status server.
const EnvStatusPort = "STATUS_PORT"

// LoadPortFromEnv returns the status server listen address.
func LoadPortFromEnv() string {
	if v := os.Getenv(EnvStatusPort); v != "" {
		return v
	}
	return ":8089"
}

// Server provides the consumer's HTTP status endpoints: /healthz for probes
// and /sensors for the current presence listing.
type Server struct {
	logger     zerolog.Logger
	httpPort   string
	httpServer *http.Server
	mux        *http.ServeMux
	store      presence.Store
	actualAddr string
	mu         sync.RWMutex
}

// New creates and initializes a status Server.
func New(httpPort string, store presence.Store, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{
		logger:   logger.With().Str("component", "StatusServer").Logger(),
		httpPort: httpPort,
		mux:      mux,
		store:    store,
		httpServer: &http.Server{
			Addr:    httpPort,
			Handler: mux,
		},
	}

	mux.HandleFunc("/healthz", HealthzHandler)
	mux.HandleFunc("/sensors", s.handleSensors)
	return s
}

// Start initiates the HTTP server in a background goroutine.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.httpPort)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", s.httpPort, err)
	}

	s.mu.Lock()
	s.actualAddr = listener.Addr().String()
	s.mu.Unlock()

	s.logger.Info().Str("address", s.actualAddr).Msg("Status server starting to listen")

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Status server failed")
		}
	}()

	return nil
}

// Shutdown gracefully stops the HTTP server, respecting the provided
// context's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down status server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Error during status server shutdown.")
		return err
	}
	s.logger.Info().Msg("Status server stopped.")
	return nil
}

// GetHTTPPort returns the actual port the server is listening on.
func (s *Server) GetHTTPPort() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, port, err := net.SplitHostPort(s.actualAddr)
	if err != nil {
		return s.httpPort
	}
	return ":" + port
}

// handleSensors lists the sensors that have reported within the presence TTL.
func (s *Server) handleSensors(w http.ResponseWriter, r *http.Request) {
	observations, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list sensor presence.")
		http.Error(w, "failed to list sensors", http.StatusInternalServerError)
		return
	}
	if observations == nil {
		observations = []presence.Observation{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(observations); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode sensor listing.")
	}
}

// HealthzHandler responds to health check probes.
func HealthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
