// Package health exposes the monitoring HTTP surface: a liveness
// endpoint with a snapshot of the active run and the Prometheus
// metrics handler.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Snapshot is the payload served on /health.
type Snapshot struct {
	Status    string  `json:"status"`
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Progress  float64 `json:"progress"`
}

// Server provides HTTP endpoints for health monitoring.
type Server struct {
	server *http.Server

	mu   sync.RWMutex
	snap Snapshot
}

// NewServer creates a health server listening on the given port.
func NewServer(port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		snap: Snapshot{Status: "idle"},
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Track records the progress of the active run. Safe to call from the
// scheduler's progress callback.
func (s *Server) Track(completed, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap = Snapshot{
		Status:    "running",
		Completed: completed,
		Total:     total,
	}
	if total > 0 {
		s.snap.Progress = float64(completed) / float64(total)
	}
	if completed == total {
		s.snap.Status = "idle"
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(snap)
}
