package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/recoverd/internal/core/config"
	"github.com/vietddude/recoverd/internal/degrade"
	redisclient "github.com/vietddude/recoverd/internal/infra/redis"
	"github.com/vietddude/recoverd/internal/infra/storage/memory"
)

const (
	defaultMaxRestarts  = 3
	defaultRestartDelay = time.Second
	defaultHealthyAfter = 5 * time.Minute
)

// Supervisor runs the service and restarts it in safe mode after a safe reload.
type Supervisor struct {
	cfg          *config.AppConfig
	log          *slog.Logger
	markers      degrade.MarkerStore
	closeMarkers func() error

	maxRestarts  int
	restartDelay time.Duration
	healthyAfter time.Duration // a run this long resets the restart count
	onStart      func(*Service)
}

// NewSupervisor picks the marker store: Redis when configured and reachable,
// otherwise process memory.
func NewSupervisor(cfg *config.AppConfig, log *slog.Logger) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	s := &Supervisor{
		cfg:          cfg,
		log:          log.With("component", "supervisor"),
		maxRestarts:  defaultMaxRestarts,
		restartDelay: defaultRestartDelay,
		healthyAfter: defaultHealthyAfter,
	}

	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err == nil {
			s.markers = redisclient.NewMarkerStore(client, 0)
			s.closeMarkers = client.Close
			return s
		}
		s.log.Warn("Failed to connect to Redis, safe-mode marker kept in memory", "error", err)
	}

	s.markers = memory.NewMarkerStore(memory.NewMemoryStorage())
	return s
}

// Markers returns the marker store in use.
func (s *Supervisor) Markers() degrade.MarkerStore { return s.markers }

// ClearSafeMode removes a persisted safe-mode marker.
func (s *Supervisor) ClearSafeMode(ctx context.Context) error {
	if err := s.markers.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear safe-mode marker: %w", err)
	}
	s.log.Info("Safe-mode marker cleared")
	return nil
}

// Close releases the marker store connection, if any.
func (s *Supervisor) Close() error {
	if s.closeMarkers == nil {
		return nil
	}
	err := s.closeMarkers()
	s.closeMarkers = nil
	return err
}

// Run starts the service and keeps restarting it after safe reloads until
// ctx is done or more than maxRestarts reloads happen in a row, each within
// healthyAfter of its start.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.Close()

	restarts := 0
	for {
		marker, err := s.markers.Get(ctx)
		if err != nil {
			s.log.Warn("Failed to read safe-mode marker, starting normally", "error", err)
			marker = nil
		}

		svc, err := New(ctx, s.cfg, Options{Markers: s.markers, SafeMode: marker, Logger: s.log})
		if err != nil {
			return fmt.Errorf("failed to build service: %w", err)
		}
		if s.onStart != nil {
			s.onStart(svc)
		}

		started := time.Now()
		reload, err := svc.Run(ctx)
		if err != nil {
			return err
		}
		if reload == nil || ctx.Err() != nil {
			s.log.Info("Service stopped")
			return nil
		}

		if time.Since(started) >= s.healthyAfter {
			restarts = 0
		}
		restarts++
		if restarts > s.maxRestarts {
			return fmt.Errorf("safe reload requested %d times in a row, giving up", restarts)
		}
		s.log.Warn("Restarting in safe mode", "restart", restarts, "reason", reload.Reason)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.restartDelay):
		}
	}
}
