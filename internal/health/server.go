package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/recoverd/internal/degrade"
)

// StateSource exposes the current fallback switches.
type StateSource interface {
	Snapshot() degrade.State
}

// Server provides HTTP endpoints for health monitoring.
type Server struct {
	monitor *Monitor
	state   StateSource
	mux     *http.ServeMux
	server  *http.Server
}

// NewServer creates a new health server. Middleware wraps every route, outermost first.
func NewServer(monitor *Monitor, state StateSource, port int, middleware ...func(http.Handler) http.Handler) *Server {
	mux := http.NewServeMux()
	s := &Server{
		monitor: monitor,
		state:   state,
		mux:     mux,
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/detailed", s.handleDetailed)
	mux.HandleFunc("/stats", s.handleStats)
	mux.Handle("/metrics", promhttp.Handler())

	var handler http.Handler = mux
	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
	}
	return s
}

// Handle registers an extra route on the server.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// Handler returns the root handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
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
	stats := s.monitor.Check()

	status := http.StatusOK
	if stats.SystemHealth == StatusCritical {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"status": string(stats.SystemHealth)})
}

type detailedReport struct {
	Status       SystemStatus   `json:"status"`
	TotalErrors  int            `json:"total_errors"`
	RecoveryRate float64        `json:"recovery_rate"`
	Recent       int            `json:"recent_errors"`
	Degradation  *degrade.State `json:"degradation,omitempty"`
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	stats := s.monitor.Check()

	report := detailedReport{
		Status:       stats.SystemHealth,
		TotalErrors:  stats.TotalErrors,
		RecoveryRate: stats.RecoveryRate,
		Recent:       len(stats.RecentErrors),
	}
	if s.state != nil {
		st := s.state.Snapshot()
		report.Degradation = &st
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Check())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
