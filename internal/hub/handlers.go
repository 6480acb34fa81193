package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/debutade/debutade-hub/internal/orchestrator"
)

// LaunchResponse is the body of POST /api/launch/{id}.
type LaunchResponse struct {
	URL   string `json:"url,omitempty"`
	Error string `json:"error,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

// StopResponse is the body of POST /stop/{id}.
type StopResponse struct {
	Success bool   `json:"success"`
	Stopped int    `json:"stopped,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusForKind maps orchestrator failures to HTTP statuses.
func statusForKind(kind orchestrator.Kind) int {
	switch kind {
	case orchestrator.KindUnknownApp:
		return http.StatusNotFound
	case orchestrator.KindPortConflict:
		return http.StatusConflict
	case orchestrator.KindScriptNotFound:
		return http.StatusUnprocessableEntity
	case orchestrator.KindReadinessTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// launch runs a launch that survives the client hanging up; the readiness
// deadline still bounds it.
func (s *Server) launch(r *http.Request, id string) (string, error) {
	return s.cfg.Apps.EnsureRunning(context.WithoutCancel(r.Context()), id)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		HubURL: s.cfg.HubURL,
		Error:  r.URL.Query().Get("error"),
		Today:  time.Now().Format("02-01-2006"),
	}
	running := map[string]bool{}
	for _, st := range s.cfg.Apps.Statuses(r.Context()) {
		running[st.ID] = st.Running
	}
	for _, app := range s.cfg.Registry.List() {
		data.Apps = append(data.Apps, tile{
			ID:          app.ID,
			Name:        app.Name,
			Description: app.Description,
			Running:     running[app.ID],
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.render(w, data); err != nil {
		s.logger.Error("rendering index failed", "error", err)
	}
}

func (s *Server) handleLaunchRedirect(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	target, err := s.launch(r, id)
	if err != nil {
		s.logger.Warn("launch failed", "app", id, "error", err)
		http.Redirect(w, r, "/?error="+url.QueryEscape(err.Error()), http.StatusFound)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) handleLaunchAPI(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	target, err := s.launch(r, id)
	if err != nil {
		s.logger.Warn("launch failed", "app", id, "error", err)
		kind := orchestrator.KindOf(err)
		writeJSON(w, statusForKind(kind), LaunchResponse{Error: err.Error(), Kind: string(kind)})
		return
	}
	writeJSON(w, http.StatusOK, LaunchResponse{URL: target})
}

func (s *Server) handleApps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Apps.Statuses(r.Context()))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]orchestrator.Status)
	for _, st := range s.cfg.Apps.Statuses(r.Context()) {
		out[st.ID] = st.Status
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	n, err := s.cfg.Apps.StopApp(r.Context(), id)
	switch {
	case errors.Is(err, orchestrator.ErrUnknownApp), err == nil && n == 0:
		writeJSON(w, http.StatusNotFound, StopResponse{Success: false, Message: "no process found"})
	case err != nil:
		s.logger.Warn("stop failed", "app", id, "stopped", n, "error", err)
		writeJSON(w, http.StatusInternalServerError, StopResponse{Success: false, Stopped: n, Message: err.Error()})
	default:
		writeJSON(w, http.StatusOK, StopResponse{Success: true, Stopped: n})
	}
}

// handleQuit answers the UI's quit button. The hub itself keeps running.
func (s *Server) handleQuit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StopResponse{Success: true, Message: "hub stays active"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
