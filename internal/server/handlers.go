package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/helpdeskbr/n1agent/internal/session"
	"github.com/helpdeskbr/n1agent/internal/triage"
)

// turnResponse is the POST /api/turns payload.
type turnResponse struct {
	SessionID  string  `json:"session_id"`
	Reply      string  `json:"reply"`
	Intent     string  `json:"intent"`
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
}

// sessionResponse bundles a session with its event history for admin
// inspection.
type sessionResponse struct {
	Session *session.Session         `json:"session"`
	Pending []session.ScheduledEvent `json:"pending_events"`
	Fired   []session.ScheduledEvent `json:"fired_events"`
	Turns   []session.Turn           `json:"turns"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req triage.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}
	if req.Mode == "" {
		req.Mode = session.ModeChatDriven
	}

	result, err := s.deps.Orchestrator.HandleTurn(r.Context(), req)
	if err != nil {
		if errors.Is(err, triage.ErrClassificationUnavailable) {
			// The turn was not processed; the client may retry as-is.
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "não foi possível processar sua mensagem agora, tente novamente em instantes",
			})
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, turnResponse{
		SessionID:  result.SessionID,
		Reply:      result.Reply,
		Intent:     result.Intent,
		Action:     string(result.Action),
		Confidence: result.Confidence,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.deps.Sessions.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrUnknownSession) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	pending, err := s.deps.Sessions.PendingEvents(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	fired, err := s.deps.Sessions.FiredEvents(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	turns, err := s.deps.Sessions.Turns(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Session: sess,
		Pending: pending,
		Fired:   fired,
		Turns:   turns,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
