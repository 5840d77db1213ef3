package control

import (
	"encoding/json"
	"net/http"

	"github.com/vietddude/recoverd/internal/core/domain"
	"github.com/vietddude/recoverd/internal/health"
	"github.com/vietddude/recoverd/internal/recovery"
)

// errorRequest is the JSON body of POST /errors. Every field is optional.
type errorRequest struct {
	Type        string        `json:"type"`
	Severity    string        `json:"severity"`
	Message     string        `json:"message"`
	Details     string        `json:"details"`
	Source      string        `json:"source"`
	Stack       string        `json:"stack"`
	UserContext *contextPatch `json:"user_context,omitempty"`
}

// contextPatch is the JSON form of a user context.
type contextPatch struct {
	Variant    *string `json:"variant"`
	DeviceType string  `json:"device_type"`
	Location   string  `json:"current_location"`
}

type api struct {
	orchestrator *recovery.Orchestrator
	session      *recovery.Session
}

func registerAPI(srv *health.Server, o *recovery.Orchestrator, session *recovery.Session) {
	a := &api{orchestrator: o, session: session}
	srv.Handle("POST /errors", http.HandlerFunc(a.handleIngest))
	srv.Handle("GET /errors/{id}", http.HandlerFunc(a.handleGet))
	srv.Handle("PUT /session", http.HandlerFunc(a.handleSession))
}

func (a *api) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req errorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	in := domain.ErrorInput{
		// Unknown types and severities fall back to defaults in the builder.
		Type:     domain.ErrorType(req.Type),
		Severity: domain.Severity(req.Severity),
		Message:  req.Message,
		Details:  req.Details,
		Source:   req.Source,
		Stack:    req.Stack,
	}
	if req.UserContext != nil {
		in.UserContext = &domain.UserContext{
			Variant:         req.UserContext.Variant,
			DeviceType:      domain.DeviceType(req.UserContext.DeviceType),
			CurrentLocation: req.UserContext.Location,
		}
	}

	id := a.orchestrator.HandleError(r.Context(), in)
	if id == "" {
		writeError(w, http.StatusServiceUnavailable, "ingestion disabled")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

func (a *api) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, ok := a.orchestrator.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "error not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *api) handleSession(w http.ResponseWriter, r *http.Request) {
	var patch contextPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if patch.Variant != nil {
		a.session.SetVariant(*patch.Variant)
	}
	if patch.DeviceType != "" {
		a.session.SetDeviceType(domain.DeviceType(patch.DeviceType))
	}
	if patch.Location != "" {
		a.session.SetLocation(patch.Location)
	}
	writeJSON(w, http.StatusOK, a.session.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
