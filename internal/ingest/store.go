// Package ingest receives ticket webhooks, records the ticket, and attaches
// a preliminary N1-candidacy classification.
package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/helpdeskbr/n1agent/internal/db"
)

// Ticket is one ingested helpdesk ticket with its classification verdict.
type Ticket struct {
	ID             string    `json:"id"`
	Subject        string    `json:"subject"`
	Description    string    `json:"description"`
	RequesterEmail string    `json:"requester_email,omitempty"`
	Classification `json:"classification"`
	FirstSeenAt    time.Time `json:"first_seen_at"`
	LastSeenAt     time.Time `json:"last_seen_at"`
}

// ErrUnknownTicket indicates a lookup for a ticket id never ingested.
var ErrUnknownTicket = errors.New("ingest: unknown ticket")

// Store persists ingested tickets.
type Store struct {
	db  *db.DB
	now func() time.Time
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database, now: time.Now}
}

// Upsert records a ticket. Re-ingesting an existing id refreshes the
// subject, body and classification and bumps last_seen_at; first_seen_at is
// preserved.
func (s *Store) Upsert(ctx context.Context, t Ticket) (*Ticket, error) {
	if t.ID == "" {
		return nil, fmt.Errorf("ingest: ticket id is required")
	}
	now := s.now().UTC()
	t.LastSeenAt = now
	if t.FirstSeenAt.IsZero() {
		t.FirstSeenAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tickets (id, subject, description, requester_email, n1_candidate, reason,
		                     suggested_service, suggested_category, suggested_urgency,
		                     confidence, admin_required, classifier, first_seen_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			subject = excluded.subject,
			description = excluded.description,
			requester_email = excluded.requester_email,
			n1_candidate = excluded.n1_candidate,
			reason = excluded.reason,
			suggested_service = excluded.suggested_service,
			suggested_category = excluded.suggested_category,
			suggested_urgency = excluded.suggested_urgency,
			confidence = excluded.confidence,
			admin_required = excluded.admin_required,
			classifier = excluded.classifier,
			last_seen_at = excluded.last_seen_at`,
		t.ID, t.Subject, t.Description, t.RequesterEmail, boolInt(t.N1Candidate), t.Reason,
		t.SuggestedService, t.SuggestedCategory, t.SuggestedUrgency,
		t.Confidence, boolInt(t.AdminRequired), t.Classifier,
		t.FirstSeenAt.Format(time.RFC3339), t.LastSeenAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("upserting ticket: %w", err)
	}
	return &t, nil
}

// Get retrieves an ingested ticket by id.
func (s *Store) Get(ctx context.Context, id string) (*Ticket, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, subject, description, requester_email, n1_candidate, reason,
		       suggested_service, suggested_category, suggested_urgency,
		       confidence, admin_required, classifier, first_seen_at, last_seen_at
		  FROM tickets WHERE id = ?`, id)

	var (
		t                   Ticket
		n1, admin           int
		firstSeen, lastSeen string
	)
	err := row.Scan(&t.ID, &t.Subject, &t.Description, &t.RequesterEmail, &n1, &t.Reason,
		&t.SuggestedService, &t.SuggestedCategory, &t.SuggestedUrgency,
		&t.Confidence, &admin, &t.Classifier, &firstSeen, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTicket, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying ticket: %w", err)
	}
	t.N1Candidate = n1 != 0
	t.AdminRequired = admin != 0
	t.FirstSeenAt, _ = time.Parse(time.RFC3339, firstSeen)
	t.LastSeenAt, _ = time.Parse(time.RFC3339, lastSeen)
	return &t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
