package recovery

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/recoverd/internal/core/domain"
)

const (
	defaultMessage = "Unknown error"
	defaultSource  = "unknown"
)

// ContextProvider captures the client context at ingestion time.
type ContextProvider interface {
	Snapshot() domain.UserContext
}

// Session is a mutable view of the client context that hands out value snapshots.
type Session struct {
	mu  sync.RWMutex
	ctx domain.UserContext
}

// NewSession creates a session for the given device and location.
func NewSession(device domain.DeviceType, location string) *Session {
	if device == "" {
		device = domain.DeviceDesktop
	}
	return &Session{ctx: domain.UserContext{
		DeviceType:        device,
		RuntimeDescriptor: fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
		CurrentLocation:   location,
	}}
}

// SetVariant records the experiment variant. An empty string clears it.
func (s *Session) SetVariant(variant string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if variant == "" {
		s.ctx.Variant = nil
		return
	}
	s.ctx.Variant = &variant
}

// SetLocation records where the client currently is.
func (s *Session) SetLocation(location string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx.CurrentLocation = location
}

// SetDeviceType records the client device class.
func (s *Session) SetDeviceType(device domain.DeviceType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx.DeviceType = device
}

// Snapshot returns a copy of the current context.
func (s *Session) Snapshot() domain.UserContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx.Clone()
}

// Builder turns partial input into complete error records.
type Builder struct {
	provider ContextProvider
	now      func() time.Time
}

// NewBuilder creates a builder. A nil provider yields an empty desktop context.
func NewBuilder(provider ContextProvider, now func() time.Time) *Builder {
	if provider == nil {
		provider = NewSession(domain.DeviceDesktop, "")
	}
	if now == nil {
		now = time.Now
	}
	return &Builder{provider: provider, now: now}
}

// Build normalizes in into a new record. It performs no I/O.
func (b *Builder) Build(in domain.ErrorInput) *domain.ErrorRecord {
	now := b.now()

	rec := &domain.ErrorRecord{
		ID:               newID(now),
		Type:             in.Type,
		Severity:         in.Severity,
		Message:          in.Message,
		Details:          in.Details,
		Timestamp:        now,
		Source:           in.Source,
		RecoveryAttempts: []domain.RecoveryAttempt{},
		Stack:            in.Stack,
	}

	if !rec.Type.Valid() {
		rec.Type = domain.ErrorTypeCompatibility
	}
	if !rec.Severity.Valid() {
		rec.Severity = domain.SeverityMedium
	}
	if rec.Message == "" {
		rec.Message = defaultMessage
	}
	if rec.Source == "" {
		rec.Source = defaultSource
	}

	if in.UserContext != nil {
		rec.UserContext = in.UserContext.Clone()
	} else {
		rec.UserContext = b.provider.Snapshot()
	}

	return rec
}

func newID(now time.Time) string {
	return fmt.Sprintf("err-%d-%s", now.UnixMilli(), uuid.NewString())
}
