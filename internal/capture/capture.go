// Package capture turns otherwise-unhandled failures into ingested errors.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/vietddude/recoverd/internal/core/domain"
)

const (
	PanicMessage = "Uncaught panic"
	AsyncMessage = "Unhandled asynchronous failure"

	panicSource = "global-panic-handler"
	asyncSource = "global-async-handler"
)

// Handler is the ingestion point failures are forwarded to.
type Handler interface {
	HandleError(ctx context.Context, in domain.ErrorInput) string
}

// Hooks forward panics and orphaned goroutine errors while installed.
// Uninstalled hooks let panics propagate and only log async errors.
type Hooks struct {
	handler   Handler
	log       *slog.Logger
	installed atomic.Bool
	wg        sync.WaitGroup
}

// New creates hooks for handler. They start uninstalled.
func New(handler Handler, log *slog.Logger) *Hooks {
	if log == nil {
		log = slog.Default()
	}
	return &Hooks{
		handler: handler,
		log:     log.With("component", "capture"),
	}
}

// Install starts forwarding failures.
func (h *Hooks) Install() {
	if !h.installed.Swap(true) {
		h.log.Debug("Capture hooks installed")
	}
}

// Uninstall stops forwarding failures.
func (h *Hooks) Uninstall() {
	if h.installed.Swap(false) {
		h.log.Debug("Capture hooks removed")
	}
}

// Installed reports whether failures are being forwarded.
func (h *Hooks) Installed() bool {
	return h.installed.Load()
}

// Guard runs fn and converts a panic into a compatibility error.
// It reports the id of the recorded error, or "" when fn returned normally.
func (h *Hooks) Guard(ctx context.Context, source string, fn func()) (id string) {
	if !h.Installed() {
		fn()
		return ""
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if r == http.ErrAbortHandler {
			panic(r)
		}
		id = h.forwardPanic(ctx, source, r)
	}()

	fn()
	return ""
}

// Go runs fn in a new goroutine. A returned error or panic is forwarded.
func (h *Hooks) Go(ctx context.Context, source string, fn func(ctx context.Context) error) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.Guard(ctx, source, func() {
			if err := fn(ctx); err != nil {
				h.forwardAsync(ctx, source, err)
			}
		})
	}()
}

// Wait blocks until every goroutine started by Go has returned.
func (h *Hooks) Wait() {
	h.wg.Wait()
}

// Middleware recovers handler panics, records them and answers 500.
func (h *Hooks) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		source := fmt.Sprintf("http %s %s", r.Method, r.URL.Path)
		panicked := true
		id := h.Guard(r.Context(), source, func() {
			next.ServeHTTP(w, r)
			panicked = false
		})
		if panicked {
			if id != "" {
				w.Header().Set("X-Error-Id", id)
			}
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	})
}

func (h *Hooks) forwardPanic(ctx context.Context, source string, r any) string {
	var err error
	if e, ok := r.(error); ok {
		err = errors.WithStack(e)
	} else {
		err = errors.Errorf("%v", r)
	}
	if source == "" {
		source = panicSource
	}

	h.log.Error("Recovered panic", "source", source, "error", err)
	return h.handler.HandleError(ctx, domain.ErrorInput{
		Type:     domain.ErrorTypeCompatibility,
		Severity: domain.SeverityMedium,
		Message:  PanicMessage,
		Details:  fmt.Sprint(r),
		Source:   source,
		Stack:    fmt.Sprintf("%+v", err),
	})
}

func (h *Hooks) forwardAsync(ctx context.Context, source string, err error) string {
	if !h.Installed() {
		h.log.Warn("Unhandled asynchronous failure", "source", source, "error", err)
		return ""
	}
	if source == "" {
		source = asyncSource
	}

	stack := fmt.Sprintf("%+v", errors.WithStack(err))
	return h.handler.HandleError(ctx, domain.ErrorInput{
		Type:     domain.ErrorTypeNetwork,
		Severity: domain.SeverityMedium,
		Message:  AsyncMessage,
		Details:  err.Error(),
		Source:   source,
		Stack:    stack,
	})
}
