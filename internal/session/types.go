package session

import (
	"errors"
	"time"
)

// Mode distinguishes who the watchdog is waiting on.
//
// ticket_driven sessions originate from a ticket and get a single reminder
// before the final close; chat_driven sessions escalate through staged
// nudges.
type Mode string

const (
	ModeTicketDriven Mode = "ticket_driven"
	ModeChatDriven   Mode = "chat_driven"
)

// Status is the lifecycle state of a session. At most one of
// active/reminded/escalating holds at a time; closed is terminal and no
// scheduled event on a closed session may fire.
type Status string

const (
	StatusActive     Status = "active"
	StatusReminded   Status = "reminded"
	StatusEscalating Status = "escalating"
	StatusClosed     Status = "closed"
)

// EventKind identifies a follow-up step.
type EventKind string

const (
	KindReminder   EventKind = "reminder"
	KindNudge1     EventKind = "nudge_1"
	KindNudge2     EventKind = "nudge_2"
	KindFinalClose EventKind = "final_close"
)

// Session is one tracked conversation.
type Session struct {
	ID                  string    `json:"id"`
	Mode                Mode      `json:"mode"`
	Status              Status    `json:"status"`
	TicketID            string    `json:"ticket_id,omitempty"`
	Subject             string    `json:"subject,omitempty"`
	RequesterEmail      string    `json:"requester_email,omitempty"`
	CloseReason         string    `json:"close_reason,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	LastUserActivityAt  time.Time `json:"last_user_activity_at"`
	LastAgentActivityAt time.Time `json:"last_agent_activity_at"`
}

// ScheduledEvent is one pending or consumed follow-up. Fired is monotonic
// per successful dispatch: a claim that fails to dispatch is released back
// to pending.
type ScheduledEvent struct {
	ID        string     `json:"id"`
	SessionID string     `json:"session_id"`
	Kind      EventKind  `json:"kind"`
	DueAt     time.Time  `json:"due_at"`
	Message   string     `json:"message"`
	Fired     bool       `json:"fired"`
	Cancelled bool       `json:"cancelled"`
	FiredAt   *time.Time `json:"fired_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// EventSpec describes one follow-up to schedule.
type EventSpec struct {
	Kind    EventKind
	DueAt   time.Time
	Message string
}

// Turn is one recorded message of a conversation.
type Turn struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Role       string    `json:"role"` // user | assistant
	Text       string    `json:"text"`
	Intent     string    `json:"intent,omitempty"`
	Action     string    `json:"action,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ErrUnknownSession indicates an operation on a session id that was never
// created. Turn handling treats it as implicit creation; admin lookups
// surface it as a hard error.
var ErrUnknownSession = errors.New("session: unknown session")
