package notify

import (
	"context"
	"log"
	"time"
)

// Message is one follow-up delivery to the conversation's transport.
type Message struct {
	SessionID      string    `json:"session_id"`
	TicketID       string    `json:"ticket_id,omitempty"`
	RequesterEmail string    `json:"requester_email,omitempty"`
	Kind           string    `json:"kind"` // reminder | nudge_1 | nudge_2 | final_close
	Text           string    `json:"text"`
	DueAt          time.Time `json:"due_at"`
}

// Notifier delivers follow-up messages. A returned error means the delivery
// did not happen and the caller should retry later.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier writes deliveries to the process log. Used when no webhook is
// configured, so the state machine still completes its transitions.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, msg Message) error {
	log.Printf("notify: session=%s kind=%s text=%q", msg.SessionID, msg.Kind, msg.Text)
	return nil
}
