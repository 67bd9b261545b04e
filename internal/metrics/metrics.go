// Package metrics exposes a read-only operational summary of the follow-up
// machinery.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/helpdeskbr/n1agent/internal/db"
	"github.com/helpdeskbr/n1agent/internal/feedback"
)

// window is the rolling period for event counts.
const window = 24 * time.Hour

// Summary is the /api/metrics payload.
type Summary struct {
	WindowHours          int             `json:"window_hours"`
	EventsFired          int             `json:"events_fired"`
	EventsCancelled      int             `json:"events_cancelled"`
	EventsPending        int             `json:"events_pending"`
	SessionsWithPending  int             `json:"sessions_with_pending"`
	NextEventDueAt       *time.Time      `json:"next_event_due_at,omitempty"`
	SessionsByStatus     map[string]int  `json:"sessions_by_status"`
	Feedback             feedback.Totals `json:"feedback"`
}

// Collector assembles the summary from the database.
type Collector struct {
	db       *db.DB
	feedback *feedback.Store
	now      func() time.Time
}

// NewCollector creates a Collector.
func NewCollector(database *db.DB, fb *feedback.Store) *Collector {
	return &Collector{db: database, feedback: fb, now: time.Now}
}

// Collect gathers the current summary.
func (c *Collector) Collect(ctx context.Context) (*Summary, error) {
	now := c.now().UTC()
	since := now.Add(-window).Format(time.RFC3339)

	s := &Summary{
		WindowHours:      int(window.Hours()),
		SessionsByStatus: map[string]int{},
	}

	row := c.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM scheduled_events WHERE fired = 1 AND fired_at >= ?),
			(SELECT COUNT(*) FROM scheduled_events WHERE cancelled = 1 AND cancelled_at >= ?),
			(SELECT COUNT(*) FROM scheduled_events WHERE fired = 0 AND cancelled = 0),
			(SELECT COUNT(DISTINCT session_id) FROM scheduled_events WHERE fired = 0 AND cancelled = 0)`,
		since, since)
	if err := row.Scan(&s.EventsFired, &s.EventsCancelled, &s.EventsPending, &s.SessionsWithPending); err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}

	var nextDue sql.NullString
	row = c.db.QueryRowContext(ctx, `
		SELECT MIN(e.due_at)
		  FROM scheduled_events e
		  JOIN sessions se ON se.id = e.session_id
		 WHERE e.fired = 0 AND e.cancelled = 0 AND se.status != 'closed'`)
	if err := row.Scan(&nextDue); err != nil {
		return nil, fmt.Errorf("finding next due event: %w", err)
	}
	if nextDue.Valid && nextDue.String != "" {
		if t, err := time.Parse(time.RFC3339, nextDue.String); err == nil {
			s.NextEventDueAt = &t
		}
	}

	rows, err := c.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM sessions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting sessions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		s.SessionsByStatus[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	totals, err := c.feedback.GlobalTotals(ctx)
	if err != nil {
		return nil, err
	}
	s.Feedback = totals
	return s, nil
}

// RegisterRoutes mounts GET /api/metrics.
func RegisterRoutes(r chi.Router, collector *Collector) {
	r.Get("/api/metrics", func(w http.ResponseWriter, req *http.Request) {
		summary, err := collector.Collect(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(summary)
	})
}
