package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/helpdeskbr/n1agent/internal/session"
	"github.com/helpdeskbr/n1agent/internal/triage"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// chatRequest is the incoming WebSocket message format.
type chatRequest struct {
	SessionID string `json:"session_id"` // empty for new conversations
	Content   string `json:"content"`
	Email     string `json:"email,omitempty"`
}

// chatResponse is the outgoing WebSocket message format.
type chatResponse struct {
	Type       string  `json:"type"` // "response" or "error"
	SessionID  string  `json:"session_id"`
	Content    string  `json:"content"`
	Action     string  `json:"action,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// handleChatSocket runs a chat-driven conversation over one WebSocket. Every
// received message is one triage turn on the same session.
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("server: websocket read: %v", err)
			}
			return
		}

		var req chatRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.sendChatError(conn, "", "invalid message format")
			continue
		}
		if req.Content == "" {
			s.sendChatError(conn, req.SessionID, "content is required")
			continue
		}
		if req.SessionID == "" {
			req.SessionID = uuid.New().String()
		}

		result, err := s.deps.Orchestrator.HandleTurn(r.Context(), triage.TurnRequest{
			SessionID:      req.SessionID,
			Mode:           session.ModeChatDriven,
			Message:        req.Content,
			RequesterEmail: req.Email,
		})
		if err != nil {
			if errors.Is(err, triage.ErrClassificationUnavailable) {
				s.sendChatError(conn, req.SessionID, "não consegui processar agora, tente novamente")
				continue
			}
			s.sendChatError(conn, req.SessionID, "processing failed: "+err.Error())
			continue
		}

		s.sendChat(conn, chatResponse{
			Type:       "response",
			SessionID:  result.SessionID,
			Content:    result.Reply,
			Action:     string(result.Action),
			Confidence: result.Confidence,
		})
	}
}

func (s *Server) sendChat(conn *websocket.Conn, resp chatResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		log.Printf("server: websocket write: %v", err)
	}
}

func (s *Server) sendChatError(conn *websocket.Conn, sessionID, msg string) {
	s.sendChat(conn, chatResponse{Type: "error", SessionID: sessionID, Content: msg})
}
