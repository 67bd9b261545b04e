// Package feedback records whether a knowledge article actually resolved a
// request and turns that history into per-article ranking priors.
package feedback

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/helpdeskbr/n1agent/internal/db"
)

const (
	// halfLifeDays halves an event's weight every 90 days so recent
	// feedback dominates.
	halfLifeDays = 90.0
	// smoothing keeps priors conservative while the sample is small.
	smoothing = 10.0
)

// Event is one recorded resolution outcome for an article.
type Event struct {
	ID          string    `json:"id"`
	ArticleSlug string    `json:"article_slug"`
	Success     bool      `json:"success"`
	Intent      string    `json:"intent,omitempty"`
	SessionID   string    `json:"session_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Totals summarizes recorded feedback for observability.
type Totals struct {
	Events      int     `json:"events"`
	Successes   int     `json:"successes"`
	Failures    int     `json:"failures"`
	SuccessRate float64 `json:"success_rate"`
}

// Store persists feedback events and derives priors from them.
type Store struct {
	db  *db.DB
	now func() time.Time
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database, now: time.Now}
}

// Record appends one feedback event.
func (s *Store) Record(ctx context.Context, ev Event) (*Event, error) {
	if ev.ArticleSlug == "" {
		return nil, fmt.Errorf("feedback: article slug is required")
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback_events (id, article_slug, success, intent, session_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.ArticleSlug, boolInt(ev.Success), ev.Intent, ev.SessionID,
		ev.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("inserting feedback event: %w", err)
	}
	return &ev, nil
}

// ArticlePriors aggregates recorded outcomes into per-article priors in
// [-1, +1]. Positive values boost articles that historically resolved
// requests; the exponential age weighting and the smoothing constant keep a
// handful of events from swinging the ranking.
func (s *Store) ArticlePriors(ctx context.Context) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT article_slug, success, created_at FROM feedback_events`)
	if err != nil {
		return nil, fmt.Errorf("querying feedback events: %w", err)
	}
	defer rows.Close()

	now := s.now().UTC()
	type tally struct{ wins, fails float64 }
	agg := map[string]*tally{}
	for rows.Next() {
		var (
			slug    string
			success int
			created string
		)
		if err := rows.Scan(&slug, &success, &created); err != nil {
			return nil, err
		}
		w := ageWeight(created, now)
		t := agg[slug]
		if t == nil {
			t = &tally{}
			agg[slug] = t
		}
		if success != 0 {
			t.wins += w
		} else {
			t.fails += w
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	priors := make(map[string]float64, len(agg))
	for slug, t := range agg {
		p := (t.wins - t.fails) / (t.wins + t.fails + smoothing)
		priors[slug] = clamp(p, -1, 1)
	}
	return priors, nil
}

// GlobalTotals returns unweighted counts across all feedback.
func (s *Store) GlobalTotals(ctx context.Context) (Totals, error) {
	var t Totals
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(success), 0) FROM feedback_events`)
	if err := row.Scan(&t.Events, &t.Successes); err != nil {
		return t, fmt.Errorf("counting feedback events: %w", err)
	}
	t.Failures = t.Events - t.Successes
	if t.Events > 0 {
		t.SuccessRate = float64(t.Successes) / float64(t.Events)
	}
	return t, nil
}

func ageWeight(createdAt string, now time.Time) float64 {
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return 1.0
	}
	ageDays := now.Sub(t).Hours() / 24
	if ageDays <= 0 {
		return 1.0
	}
	return math.Pow(0.5, ageDays/halfLifeDays)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
