// Package degrade holds the process-wide fallback switches flipped by
// recovery strategies and the critical escalation path.
package degrade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/recoverd/internal/metrics"
)

// ErrNoReloadHook is returned by SafeReload when nothing can restart the process.
var ErrNoReloadHook = errors.New("no reload hook registered")

// Marker records that the next startup must run in safe mode.
type Marker struct {
	Reason    string    `json:"reason"`
	ErrorID   string    `json:"error_id"`
	CreatedAt time.Time `json:"created_at"`
}

// MarkerStore persists the safe-mode marker across restarts.
type MarkerStore interface {
	Set(ctx context.Context, m Marker) error
	Get(ctx context.Context) (*Marker, error)
	Clear(ctx context.Context) error
}

// ReloadFunc restarts the host in safe mode.
type ReloadFunc func(m Marker)

// State is a snapshot of the fallback switches.
type State struct {
	OptimizationsDisabled bool `json:"optimizations_disabled"`
	SafeMode              bool `json:"safe_mode"`
	BasicPerformance      bool `json:"basic_performance"`
	LocalAnalytics        bool `json:"local_analytics"`
	ControlVariant        bool `json:"control_variant"`
	CacheBypassed         bool `json:"cache_bypassed"`
	SimpleInteractions    bool `json:"simple_interactions"`
	CompatibilityMode     bool `json:"compatibility_mode"`
	Reloads               int  `json:"reloads"`
}

// Controller owns the fallback switches.
type Controller struct {
	mu     sync.RWMutex
	state  State
	store  MarkerStore
	reload ReloadFunc
	log    *slog.Logger
}

// NewController creates a controller. store may be nil.
func NewController(store MarkerStore, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		store: store,
		log:   log.With("component", "degrade"),
	}
}

// SetReloadHook registers the function invoked by SafeReload.
func (c *Controller) SetReloadHook(fn ReloadFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reload = fn
}

// Snapshot returns the current switches.
func (c *Controller) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) set(name string, fn func(s *State)) {
	c.mu.Lock()
	fn(&c.state)
	c.mu.Unlock()
	c.log.Info("Fallback enabled", "switch", name)
}

// UseBasicPerformanceTracking drops to lightweight performance sampling.
func (c *Controller) UseBasicPerformanceTracking() {
	c.set("basic_performance", func(s *State) { s.BasicPerformance = true })
}

// BufferAnalyticsLocally keeps analytics in a local buffer instead of the remote collector.
func (c *Controller) BufferAnalyticsLocally() {
	c.set("local_analytics", func(s *State) { s.LocalAnalytics = true })
}

// AssignControlVariant pins experiment assignment to the control variant.
func (c *Controller) AssignControlVariant() {
	c.set("control_variant", func(s *State) { s.ControlVariant = true })
}

// BypassCache routes requests around the cache layer.
func (c *Controller) BypassCache() {
	c.set("cache_bypassed", func(s *State) { s.CacheBypassed = true })
}

// SimplifyInteractions disables complex interactions.
func (c *Controller) SimplifyInteractions() {
	c.set("simple_interactions", func(s *State) { s.SimpleInteractions = true })
}

// EnableCompatibilityMode switches to conservative runtime code paths.
func (c *Controller) EnableCompatibilityMode() {
	c.set("compatibility_mode", func(s *State) { s.CompatibilityMode = true })
}

// DisableOptimizations turns off every non-essential optimization.
func (c *Controller) DisableOptimizations() {
	c.set("optimizations_disabled", func(s *State) { s.OptimizationsDisabled = true })
}

// EnableSafeMode enables the degraded-but-safe mode.
func (c *Controller) EnableSafeMode() {
	c.set("safe_mode", func(s *State) { s.SafeMode = true })
}

// Restore applies a persisted marker at startup: safe mode with optimizations off.
func (c *Controller) Restore(m Marker) {
	c.mu.Lock()
	c.state.SafeMode = true
	c.state.OptimizationsDisabled = true
	c.mu.Unlock()
	c.log.Warn("Starting in safe mode", "reason", m.Reason, "error_id", m.ErrorID)
}

// SafeReload persists the safe-mode marker and asks the host to restart.
// The hook still runs when persisting the marker fails.
func (c *Controller) SafeReload(ctx context.Context, errorID, reason string) error {
	m := Marker{Reason: reason, ErrorID: errorID, CreatedAt: time.Now()}

	c.mu.Lock()
	c.state.Reloads++
	hook := c.reload
	store := c.store
	c.mu.Unlock()

	metrics.SafeReloads.Inc()
	c.log.Error("Initiating safe reload", "error_id", errorID, "reason", reason)

	var storeErr error
	if store != nil {
		if err := store.Set(ctx, m); err != nil {
			storeErr = fmt.Errorf("failed to persist safe-mode marker: %w", err)
			c.log.Warn("Safe-mode marker not persisted", "error", err)
		}
	}

	if hook == nil {
		return errors.Join(storeErr, ErrNoReloadHook)
	}
	hook(m)
	return storeErr
}
