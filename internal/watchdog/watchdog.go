// Package watchdog periodically scans the session store for due follow-up
// events and fires each exactly once. All scheduling state lives in the
// store, so a restarted process resumes scanning with nothing to recover.
package watchdog

import (
	"context"
	"log"
	"time"

	"github.com/helpdeskbr/n1agent/internal/notify"
	"github.com/helpdeskbr/n1agent/internal/session"
)

// scanLimit bounds how many due events one tick processes.
const scanLimit = 50

// Watchdog drives the time-based part of the session state machine.
type Watchdog struct {
	sessions *session.Store
	notifier notify.Notifier
	interval time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// New creates a watchdog scanning at the given interval.
func New(sessions *session.Store, notifier notify.Notifier, interval time.Duration) *Watchdog {
	return &Watchdog{
		sessions: sessions,
		notifier: notifier,
		interval: interval,
		now:      time.Now,
	}
}

// Run ticks at the configured interval until the context is cancelled.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.Printf("watchdog: scanning every %s", w.interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("watchdog: stopped")
			return
		case <-ticker.C:
			if fired, err := w.Tick(ctx); err != nil {
				log.Printf("watchdog: tick: %v", err)
			} else if fired > 0 {
				log.Printf("watchdog: fired %d event(s)", fired)
			}
		}
	}
}

// Tick evaluates every due event once and returns how many dispatched.
//
// Each event is claimed with a compare-and-set before its side effect runs,
// so concurrent ticks racing on the same event produce exactly one
// dispatch. A failed dispatch releases the claim and does not stop the
// remaining events of the same scan.
func (w *Watchdog) Tick(ctx context.Context) (int, error) {
	now := w.now()
	due, err := w.sessions.DueEvents(ctx, now, scanLimit)
	if err != nil {
		return 0, err
	}

	fired := 0
	for _, ev := range due {
		won, err := w.sessions.ClaimEvent(ctx, ev.ID, now)
		if err != nil {
			log.Printf("watchdog: claim %s: %v", ev.ID, err)
			continue
		}
		if !won {
			// Another tick got here first, or the session closed meanwhile.
			continue
		}

		if err := w.dispatch(ctx, ev); err != nil {
			log.Printf("watchdog: dispatch %s (%s): %v", ev.ID, ev.Kind, err)
			if relErr := w.sessions.ReleaseEvent(ctx, ev.ID); relErr != nil {
				log.Printf("watchdog: release %s: %v", ev.ID, relErr)
			}
			continue
		}
		fired++
	}
	return fired, nil
}

// dispatch delivers the event's side effect. A final_close additionally
// terminates the session, but only after the notification went out, so a
// delivery failure leaves the session eligible for retry.
func (w *Watchdog) dispatch(ctx context.Context, ev session.ScheduledEvent) error {
	sess, err := w.sessions.Get(ctx, ev.SessionID)
	if err != nil {
		return err
	}

	msg := notify.Message{
		SessionID:      sess.ID,
		TicketID:       sess.TicketID,
		RequesterEmail: sess.RequesterEmail,
		Kind:           string(ev.Kind),
		Text:           ev.Message,
		DueAt:          ev.DueAt,
	}
	if err := w.notifier.Send(ctx, msg); err != nil {
		return err
	}

	if ev.Kind == session.KindFinalClose {
		if err := w.sessions.Close(ctx, sess.ID, "timeout"); err != nil {
			// The notification already went out; closing is idempotent and
			// the next tick cannot re-fire this event, so just report it.
			log.Printf("watchdog: close %s: %v", sess.ID, err)
		}
	}
	return nil
}
