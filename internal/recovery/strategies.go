package recovery

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vietddude/recoverd/internal/core/domain"
)

// Built-in strategy names.
const (
	StrategyPerformance   = "performance-fallback"
	StrategyAnalytics     = "analytics-fallback"
	StrategyVariant       = "variant-fallback"
	StrategyCache         = "cache-fallback"
	StrategyNetwork       = "network-retry"
	StrategyInteraction   = "interaction-fallback"
	StrategyCompatibility = "compatibility-fallback"
)

// Fallbacks are the degradation switches the built-in strategies flip.
type Fallbacks interface {
	UseBasicPerformanceTracking()
	BufferAnalyticsLocally()
	AssignControlVariant()
	BypassCache()
	SimplifyInteractions()
	EnableCompatibilityMode()
}

// Prober checks whether the network is reachable again.
type Prober func(ctx context.Context) error

var (
	lowToHigh   = []domain.Severity{domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh}
	lowToMedium = []domain.Severity{domain.SeverityLow, domain.SeverityMedium}
)

// DefaultStrategies returns the built-in catalogue in registration order.
// A nil probe makes network-retry always succeed.
func DefaultStrategies(fb Fallbacks, probe Prober) []*Func {
	flip := func(fn func()) RecoverFunc {
		return func(context.Context, domain.ErrorRecord) (bool, error) {
			fn()
			return true, nil
		}
	}

	return []*Func{
		NewFunc(Spec{
			Name:       StrategyPerformance,
			Types:      []domain.ErrorType{domain.ErrorTypePerformance},
			Severities: lowToHigh,
			MaxRetries: 3,
			RetryDelay: time.Second,
		}, flip(fb.UseBasicPerformanceTracking)),
		NewFunc(Spec{
			Name:       StrategyAnalytics,
			Types:      []domain.ErrorType{domain.ErrorTypeAnalytics},
			Severities: lowToMedium,
			MaxRetries: 2,
			RetryDelay: 2 * time.Second,
		}, flip(fb.BufferAnalyticsLocally)),
		NewFunc(Spec{
			Name:       StrategyVariant,
			Types:      []domain.ErrorType{domain.ErrorTypeVariant},
			Severities: lowToHigh,
			MaxRetries: 1,
			RetryDelay: 500 * time.Millisecond,
		}, flip(fb.AssignControlVariant)),
		NewFunc(Spec{
			Name:       StrategyCache,
			Types:      []domain.ErrorType{domain.ErrorTypeCache},
			Severities: lowToHigh,
			MaxRetries: 2,
			RetryDelay: 1500 * time.Millisecond,
		}, flip(fb.BypassCache)),
		NewFunc(Spec{
			Name:       StrategyNetwork,
			Types:      []domain.ErrorType{domain.ErrorTypeNetwork},
			Severities: lowToMedium,
			MaxRetries: 3,
			RetryDelay: 2 * time.Second,
		}, func(ctx context.Context, _ domain.ErrorRecord) (bool, error) {
			if probe == nil {
				return true, nil
			}
			if err := probe(ctx); err != nil {
				return false, fmt.Errorf("network probe: %w", err)
			}
			return true, nil
		}),
		NewFunc(Spec{
			Name:       StrategyInteraction,
			Types:      []domain.ErrorType{domain.ErrorTypeUserInteraction},
			Severities: lowToMedium,
			MaxRetries: 1,
			RetryDelay: 100 * time.Millisecond,
		}, flip(fb.SimplifyInteractions)),
		NewFunc(Spec{
			Name:       StrategyCompatibility,
			Types:      []domain.ErrorType{domain.ErrorTypeCompatibility},
			Severities: lowToHigh,
			MaxRetries: 1,
			RetryDelay: 250 * time.Millisecond,
		}, flip(fb.EnableCompatibilityMode)),
	}
}

// ApplyOverrides applies per-name overrides and returns the result as strategies.
// Overrides naming an unknown strategy are rejected.
func ApplyOverrides(funcs []*Func, overrides map[string]Override) ([]Strategy, error) {
	known := make(map[string]bool, len(funcs))
	out := make([]Strategy, 0, len(funcs))
	for _, f := range funcs {
		known[f.Name()] = true
		if o, ok := overrides[f.Name()]; ok {
			f = f.WithOverride(o)
		}
		out = append(out, f)
	}
	for name := range overrides {
		if !known[name] {
			return nil, fmt.Errorf("override for unknown strategy %q", name)
		}
	}
	return out, nil
}

// HTTPProbe returns a Prober that GETs url and expects a non-5xx response.
func HTTPProbe(client *http.Client, url string) Prober {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("build probe request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("probe returned status %d", resp.StatusCode)
		}
		return nil
	}
}
