package recovery

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/vietddude/recoverd/internal/core/domain"
)

// Strategy is a named, stateless remediation procedure.
// Retry bookkeeping lives on the error record, never in the strategy.
type Strategy interface {
	// Name uniquely identifies the strategy in a registry.
	Name() string

	// Applies reports whether the strategy handles this type and severity.
	Applies(t domain.ErrorType, s domain.Severity) bool

	// MaxRetries caps the attempts per error.
	MaxRetries() int

	// RetryDelay is the base of the linear backoff between attempts.
	RetryDelay() time.Duration

	// Recover tries to remediate the error. A returned error or a panic
	// counts as a failed attempt.
	Recover(ctx context.Context, rec domain.ErrorRecord) (bool, error)
}

// RecoverFunc is the body of a Func strategy.
type RecoverFunc func(ctx context.Context, rec domain.ErrorRecord) (bool, error)

// Spec describes a Func strategy.
type Spec struct {
	Name       string
	Types      []domain.ErrorType
	Severities []domain.Severity
	MaxRetries int
	RetryDelay time.Duration
}

// Func is a Strategy built from metadata and a function.
type Func struct {
	spec Spec
	fn   RecoverFunc
}

var _ Strategy = (*Func)(nil)

// NewFunc creates a strategy from spec and fn.
func NewFunc(spec Spec, fn RecoverFunc) *Func {
	spec.Types = slices.Clone(spec.Types)
	spec.Severities = slices.Clone(spec.Severities)
	return &Func{spec: spec, fn: fn}
}

func (f *Func) Name() string              { return f.spec.Name }
func (f *Func) MaxRetries() int           { return f.spec.MaxRetries }
func (f *Func) RetryDelay() time.Duration { return f.spec.RetryDelay }

// Spec returns a copy of the strategy metadata.
func (f *Func) Spec() Spec {
	s := f.spec
	s.Types = slices.Clone(s.Types)
	s.Severities = slices.Clone(s.Severities)
	return s
}

func (f *Func) Applies(t domain.ErrorType, s domain.Severity) bool {
	return slices.Contains(f.spec.Types, t) && slices.Contains(f.spec.Severities, s)
}

func (f *Func) Recover(ctx context.Context, rec domain.ErrorRecord) (bool, error) {
	if f.fn == nil {
		return false, fmt.Errorf("strategy %s has no recover function", f.spec.Name)
	}
	return f.fn(ctx, rec)
}

// Override adjusts a strategy's budget from configuration. Zero values keep the default.
type Override struct {
	MaxRetries int
	RetryDelay time.Duration
	Severities []domain.Severity
}

// WithOverride returns a copy of f with o applied.
func (f *Func) WithOverride(o Override) *Func {
	spec := f.Spec()
	if o.MaxRetries > 0 {
		spec.MaxRetries = o.MaxRetries
	}
	if o.RetryDelay > 0 {
		spec.RetryDelay = o.RetryDelay
	}
	if len(o.Severities) > 0 {
		spec.Severities = slices.Clone(o.Severities)
	}
	return &Func{spec: spec, fn: f.fn}
}

// Registry is a read-only, name-keyed strategy catalogue.
type Registry struct {
	order  []Strategy
	byName map[string]Strategy
}

// NewRegistry builds a registry, rejecting empty or duplicate names.
func NewRegistry(strategies ...Strategy) (*Registry, error) {
	r := &Registry{byName: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		if s == nil {
			continue
		}
		name := s.Name()
		if name == "" {
			return nil, fmt.Errorf("strategy with empty name")
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("duplicate strategy %q", name)
		}
		if s.MaxRetries() <= 0 {
			return nil, fmt.Errorf("strategy %q: max retries must be positive", name)
		}
		r.byName[name] = s
		r.order = append(r.order, s)
	}
	return r, nil
}

// Get looks a strategy up by name.
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// All returns the strategies in registration order.
func (r *Registry) All() []Strategy {
	return slices.Clone(r.order)
}

// Match returns the strategies applicable to rec, least-tried first.
// Ties keep registration order.
func (r *Registry) Match(rec *domain.ErrorRecord) []Strategy {
	var matched []Strategy
	for _, s := range r.order {
		if s.Applies(rec.Type, rec.Severity) {
			matched = append(matched, s)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return rec.AttemptsFor(matched[i].Name()) < rec.AttemptsFor(matched[j].Name())
	})
	return matched
}
