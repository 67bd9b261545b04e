package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/helpdeskbr/n1agent/internal/db"
)

// Store persists sessions, scheduled events and turns. It is the single
// source of truth for the follow-up state machine; all transitions go
// through it so the invariants hold under concurrent triage calls and
// watchdog ticks.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// Create inserts a new active session.
func (s *Store) Create(ctx context.Context, sess Session) (*Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	if sess.Mode == "" {
		sess.Mode = ModeChatDriven
	}
	sess.Status = StatusActive
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	if sess.LastUserActivityAt.IsZero() {
		sess.LastUserActivityAt = sess.CreatedAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, mode, status, ticket_id, subject, requester_email, created_at, last_user_activity_at, last_agent_activity_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, string(sess.Mode), string(sess.Status), sess.TicketID, sess.Subject,
		sess.RequesterEmail, fmtTime(sess.CreatedAt), fmtTime(sess.LastUserActivityAt),
		timeOrEmpty(sess.LastAgentActivityAt),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}
	return &sess, nil
}

// Get retrieves a session by id.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, mode, status, ticket_id, subject, requester_email, close_reason,
		       created_at, last_user_activity_at, last_agent_activity_at
		  FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return sess, err
}

// TouchUser records fresh user activity: it refreshes the activity
// timestamp, cancels every not-yet-fired event, and returns the session to
// active. A closed session is reopened; the old lifecycle's events were
// already cancelled at close time and stay cancelled.
func (s *Store) TouchUser(ctx context.Context, id string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		   SET last_user_activity_at = ?, status = ?, close_reason = ''
		 WHERE id = ?`,
		fmtTime(now), string(StatusActive), id)
	if err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return s.CancelPending(ctx, id)
}

// TouchAgent records an assistant reply timestamp.
func (s *Store) TouchAgent(ctx context.Context, id string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET last_agent_activity_at = ? WHERE id = ?`,
		fmtTime(now), id)
	if err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return nil
}

// CancelPending cancels every not-yet-fired event of the session and stamps
// the cancellation time.
func (s *Store) CancelPending(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_events SET cancelled = 1, cancelled_at = ?
		 WHERE session_id = ? AND fired = 0 AND cancelled = 0`,
		fmtTime(time.Now()), sessionID)
	if err != nil {
		return fmt.Errorf("cancelling events: %w", err)
	}
	return nil
}

// Schedule replaces the session's pending follow-ups: it cancels everything
// still pending, moves the session to the given waiting status, and inserts
// the new events. This keeps the per-kind uniqueness invariant among
// pending events.
func (s *Store) Schedule(ctx context.Context, sessionID string, status Status, events []EventSpec) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning schedule tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE sessions SET status = ? WHERE id = ? AND status != ?`,
		string(status), sessionID, string(StatusClosed))
	if err != nil {
		return fmt.Errorf("updating session status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}

	now := fmtTime(time.Now())
	if _, err := tx.ExecContext(ctx, `
		UPDATE scheduled_events SET cancelled = 1, cancelled_at = ?
		 WHERE session_id = ? AND fired = 0 AND cancelled = 0`, now, sessionID); err != nil {
		return fmt.Errorf("cancelling events: %w", err)
	}

	for _, ev := range events {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO scheduled_events (id, session_id, kind, due_at, message, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), sessionID, string(ev.Kind), fmtTime(ev.DueAt), ev.Message, now,
		); err != nil {
			return fmt.Errorf("inserting event: %w", err)
		}
	}

	return tx.Commit()
}

// Close terminates the session and cancels its pending events. Closed is
// terminal for the current lifecycle: nothing scheduled before the close
// may fire afterwards.
func (s *Store) Close(ctx context.Context, id, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET status = ?, close_reason = ? WHERE id = ?`,
		string(StatusClosed), reason, id)
	if err != nil {
		return fmt.Errorf("closing session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return s.CancelPending(ctx, id)
}

// DueEvents returns pending events whose due time has passed and whose
// owning session is not closed, oldest first.
func (s *Store) DueEvents(ctx context.Context, now time.Time, limit int) ([]ScheduledEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.session_id, e.kind, e.due_at, e.message, e.fired, e.cancelled, e.fired_at, e.created_at
		  FROM scheduled_events e
		  JOIN sessions s ON s.id = e.session_id
		 WHERE e.fired = 0 AND e.cancelled = 0 AND e.due_at <= ? AND s.status != ?
		 ORDER BY e.due_at ASC
		 LIMIT ?`,
		fmtTime(now), string(StatusClosed), limit)
	if err != nil {
		return nil, fmt.Errorf("querying due events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ClaimEvent atomically marks an event fired (compare-and-set on fired=0).
// It re-checks the owning session's status inside the same statement, so an
// event whose session closed between scheduling and firing is never
// claimed. Returns false when another tick already won the race or the
// event became ineligible; that is a skip, not an error.
func (s *Store) ClaimEvent(ctx context.Context, eventID string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_events
		   SET fired = 1, fired_at = ?
		 WHERE id = ? AND fired = 0 AND cancelled = 0
		   AND (SELECT status FROM sessions WHERE id = scheduled_events.session_id) != ?`,
		fmtTime(now), eventID, string(StatusClosed))
	if err != nil {
		return false, fmt.Errorf("claiming event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claiming event: %w", err)
	}
	return n == 1, nil
}

// ReleaseEvent returns a claimed event to pending after a failed dispatch,
// so the next tick retries it (at-least-once side effects).
func (s *Store) ReleaseEvent(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_events SET fired = 0, fired_at = NULL WHERE id = ? AND fired = 1`,
		eventID)
	if err != nil {
		return fmt.Errorf("releasing event: %w", err)
	}
	return nil
}

// PendingEvents lists the session's not-yet-fired, not-cancelled events,
// soonest first.
func (s *Store) PendingEvents(ctx context.Context, sessionID string) ([]ScheduledEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, kind, due_at, message, fired, cancelled, fired_at, created_at
		  FROM scheduled_events
		 WHERE session_id = ? AND fired = 0 AND cancelled = 0
		 ORDER BY due_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying pending events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// FiredEvents lists the session's fired events, oldest first.
func (s *Store) FiredEvents(ctx context.Context, sessionID string) ([]ScheduledEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, kind, due_at, message, fired, cancelled, fired_at, created_at
		  FROM scheduled_events
		 WHERE session_id = ? AND fired = 1
		 ORDER BY fired_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying fired events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// AppendTurn records one conversation message.
func (s *Store) AppendTurn(ctx context.Context, t Turn) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (id, session_id, role, text, intent, action, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.SessionID, t.Role, t.Text, t.Intent, t.Action, t.Confidence, fmtTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting turn: %w", err)
	}
	return nil
}

// Turns returns the session's conversation history, oldest first.
func (s *Store) Turns(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, text, intent, action, confidence, created_at
		  FROM turns WHERE session_id = ? ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var (
			t       Turn
			created string
		)
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Role, &t.Text, &t.Intent, &t.Action, &t.Confidence, &created); err != nil {
			return nil, err
		}
		t.CreatedAt = parseTime(created)
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanSession(row *sql.Row) (*Session, error) {
	var (
		sess                      Session
		mode, status              string
		created, lastUser, lastAg string
	)
	if err := row.Scan(&sess.ID, &mode, &status, &sess.TicketID, &sess.Subject,
		&sess.RequesterEmail, &sess.CloseReason, &created, &lastUser, &lastAg); err != nil {
		return nil, err
	}
	sess.Mode = Mode(mode)
	sess.Status = Status(status)
	sess.CreatedAt = parseTime(created)
	sess.LastUserActivityAt = parseTime(lastUser)
	if lastAg != "" {
		sess.LastAgentActivityAt = parseTime(lastAg)
	}
	return &sess, nil
}

func collectEvents(rows *sql.Rows) ([]ScheduledEvent, error) {
	var out []ScheduledEvent
	for rows.Next() {
		var (
			ev               ScheduledEvent
			kind, due        string
			fired, cancelled int
			firedAt          sql.NullString
			created          string
		)
		if err := rows.Scan(&ev.ID, &ev.SessionID, &kind, &due, &ev.Message, &fired, &cancelled, &firedAt, &created); err != nil {
			return nil, err
		}
		ev.Kind = EventKind(kind)
		ev.DueAt = parseTime(due)
		ev.Fired = fired != 0
		ev.Cancelled = cancelled != 0
		if firedAt.Valid {
			t := parseTime(firedAt.String)
			ev.FiredAt = &t
		}
		ev.CreatedAt = parseTime(created)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func timeOrEmpty(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmtTime(t)
}
