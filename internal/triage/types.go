package triage

import (
	"errors"

	"github.com/helpdeskbr/n1agent/internal/search"
	"github.com/helpdeskbr/n1agent/internal/session"
)

// Action is the closed set of decisions a triage turn can produce. The
// collaborator returns free-form strings; anything unrecognized maps to
// ask_followup so downstream logic stays exhaustive.
type Action string

const (
	ActionResolve     Action = "resolve"
	ActionAnswer      Action = "answer"
	ActionAskFollowup Action = "ask_followup"
	ActionEscalate    Action = "escalate"
)

// ParseAction normalizes a collaborator-proposed action.
func ParseAction(raw string) Action {
	switch Action(raw) {
	case ActionResolve, ActionAnswer, ActionAskFollowup, ActionEscalate:
		return Action(raw)
	case "ask": // older prompt wording
		return ActionAskFollowup
	default:
		return ActionAskFollowup
	}
}

// Ticket carries the originating ticket context of a conversation.
type Ticket struct {
	ID          string `json:"id,omitempty"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

// HistoryMessage is one prior message of the conversation.
type HistoryMessage struct {
	Role string `json:"role"` // user | assistant
	Text string `json:"text"`
}

// TurnRequest is one inbound conversational turn.
type TurnRequest struct {
	SessionID      string           `json:"session_id"`
	Mode           session.Mode     `json:"mode"`
	Ticket         Ticket           `json:"ticket"`
	History        []HistoryMessage `json:"history"`
	Message        string           `json:"message"`
	RequesterEmail string           `json:"requester_email,omitempty"`
}

// Result is the structured outcome of one turn. It is transient: only the
// turn record persists.
type Result struct {
	SessionID  string       `json:"session_id"`
	Intent     string       `json:"intent"`
	Action     Action       `json:"action"`
	Confidence float64      `json:"confidence"`
	Reply      string       `json:"reply"`
	UsedChunks []search.Hit `json:"used_chunks,omitempty"`
}

// ErrClassificationUnavailable indicates the collaborator failed or timed
// out. The turn is aborted with no session mutation beyond the activity
// refresh; callers surface a retry-safe message.
var ErrClassificationUnavailable = errors.New("triage: classification collaborator unavailable")
