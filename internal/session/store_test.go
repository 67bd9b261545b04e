package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/helpdeskbr/n1agent/internal/db"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func mustCreate(t *testing.T, s *Store, sess Session) *Session {
	t.Helper()
	created, err := s.Create(context.Background(), sess)
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}
	return created
}

func TestCreateAndGet(t *testing.T) {
	s := setupStore(t)
	sess := mustCreate(t, s, Session{Mode: ModeTicketDriven, TicketID: "42", Subject: "vpn fora"})

	got, err := s.Get(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusActive {
		t.Errorf("new session should be active, got %s", got.Status)
	}
	if got.Mode != ModeTicketDriven || got.TicketID != "42" {
		t.Errorf("session fields not persisted: %+v", got)
	}

	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("expected ErrUnknownSession, got %v", err)
	}
}

func TestScheduleReplacesPendingEvents(t *testing.T) {
	s := setupStore(t)
	sess := mustCreate(t, s, Session{Mode: ModeChatDriven})
	now := time.Now().UTC()

	err := s.Schedule(context.Background(), sess.ID, StatusEscalating, []EventSpec{
		{Kind: KindNudge1, DueAt: now.Add(10 * time.Minute), Message: "n1"},
		{Kind: KindNudge2, DueAt: now.Add(25 * time.Minute), Message: "n2"},
	})
	if err != nil {
		t.Fatalf("first schedule: %v", err)
	}

	err = s.Schedule(context.Background(), sess.ID, StatusEscalating, []EventSpec{
		{Kind: KindFinalClose, DueAt: now.Add(85 * time.Minute), Message: "fc"},
	})
	if err != nil {
		t.Fatalf("second schedule: %v", err)
	}

	pending, err := s.PendingEvents(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Kind != KindFinalClose {
		t.Fatalf("rescheduling should replace pending events, got %+v", pending)
	}

	got, _ := s.Get(context.Background(), sess.ID)
	if got.Status != StatusEscalating {
		t.Errorf("schedule should move the session to escalating, got %s", got.Status)
	}
}

func TestTouchUserCancelsPendingAndReopens(t *testing.T) {
	s := setupStore(t)
	sess := mustCreate(t, s, Session{Mode: ModeChatDriven})
	now := time.Now().UTC()

	if err := s.Schedule(context.Background(), sess.ID, StatusReminded, []EventSpec{
		{Kind: KindReminder, DueAt: now.Add(15 * time.Minute), Message: "r"},
	}); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	if err := s.TouchUser(context.Background(), sess.ID, now.Add(5*time.Minute)); err != nil {
		t.Fatalf("touch: %v", err)
	}

	pending, _ := s.PendingEvents(context.Background(), sess.ID)
	if len(pending) != 0 {
		t.Errorf("user activity should cancel pending events, got %d", len(pending))
	}
	got, _ := s.Get(context.Background(), sess.ID)
	if got.Status != StatusActive {
		t.Errorf("user activity should return the session to active, got %s", got.Status)
	}

	// A closed session reopens on a new user turn.
	if err := s.Close(context.Background(), sess.ID, "timeout"); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.TouchUser(context.Background(), sess.ID, now.Add(2*time.Hour)); err != nil {
		t.Fatalf("touch after close: %v", err)
	}
	got, _ = s.Get(context.Background(), sess.ID)
	if got.Status != StatusActive || got.CloseReason != "" {
		t.Errorf("closed session should reopen active, got %s (%q)", got.Status, got.CloseReason)
	}
}

func TestDueEventsExcludesFutureCancelledAndClosed(t *testing.T) {
	s := setupStore(t)
	now := time.Now().UTC()

	open := mustCreate(t, s, Session{Mode: ModeChatDriven})
	closed := mustCreate(t, s, Session{Mode: ModeChatDriven})

	if err := s.Schedule(context.Background(), open.ID, StatusEscalating, []EventSpec{
		{Kind: KindNudge1, DueAt: now.Add(-time.Minute), Message: "due"},
		{Kind: KindNudge2, DueAt: now.Add(time.Hour), Message: "future"},
	}); err != nil {
		t.Fatalf("schedule open: %v", err)
	}
	if err := s.Schedule(context.Background(), closed.ID, StatusEscalating, []EventSpec{
		{Kind: KindNudge1, DueAt: now.Add(-time.Minute), Message: "due"},
	}); err != nil {
		t.Fatalf("schedule closed: %v", err)
	}
	if err := s.Close(context.Background(), closed.ID, "resolved"); err != nil {
		t.Fatalf("close: %v", err)
	}

	due, err := s.DueEvents(context.Background(), now, 50)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected exactly one due event, got %d", len(due))
	}
	if due[0].SessionID != open.ID || due[0].Kind != KindNudge1 {
		t.Errorf("wrong due event: %+v", due[0])
	}
}

func TestClaimEventSingleWinner(t *testing.T) {
	s := setupStore(t)
	now := time.Now().UTC()
	sess := mustCreate(t, s, Session{Mode: ModeChatDriven})

	if err := s.Schedule(context.Background(), sess.ID, StatusEscalating, []EventSpec{
		{Kind: KindNudge1, DueAt: now.Add(-time.Minute), Message: "due"},
	}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	due, _ := s.DueEvents(context.Background(), now, 1)
	if len(due) != 1 {
		t.Fatalf("expected one due event, got %d", len(due))
	}
	eventID := due[0].ID

	const claimers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := s.ClaimEvent(context.Background(), eventID, now)
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			if won {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one winning claim, got %d", wins)
	}
}

func TestClaimEventSkipsClosedSession(t *testing.T) {
	s := setupStore(t)
	now := time.Now().UTC()
	sess := mustCreate(t, s, Session{Mode: ModeChatDriven})

	if err := s.Schedule(context.Background(), sess.ID, StatusEscalating, []EventSpec{
		{Kind: KindFinalClose, DueAt: now.Add(-time.Minute), Message: "fc"},
	}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	due, _ := s.DueEvents(context.Background(), now, 1)
	if len(due) != 1 {
		t.Fatalf("expected one due event, got %d", len(due))
	}

	// Session closes between the scan and the claim.
	if err := s.Close(context.Background(), sess.ID, "resolved"); err != nil {
		t.Fatalf("close: %v", err)
	}

	won, err := s.ClaimEvent(context.Background(), due[0].ID, now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if won {
		t.Error("an event on a closed session must never be claimed")
	}
}

func TestReleaseEventReturnsToPending(t *testing.T) {
	s := setupStore(t)
	now := time.Now().UTC()
	sess := mustCreate(t, s, Session{Mode: ModeChatDriven})

	if err := s.Schedule(context.Background(), sess.ID, StatusEscalating, []EventSpec{
		{Kind: KindNudge1, DueAt: now.Add(-time.Minute), Message: "due"},
	}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	due, _ := s.DueEvents(context.Background(), now, 1)
	if won, _ := s.ClaimEvent(context.Background(), due[0].ID, now); !won {
		t.Fatal("expected to win the claim")
	}

	if err := s.ReleaseEvent(context.Background(), due[0].ID); err != nil {
		t.Fatalf("release: %v", err)
	}

	// The released event is due again.
	again, _ := s.DueEvents(context.Background(), now, 1)
	if len(again) != 1 || again[0].ID != due[0].ID {
		t.Errorf("released event should be due again, got %+v", again)
	}
}

func TestAppendAndListTurns(t *testing.T) {
	s := setupStore(t)
	sess := mustCreate(t, s, Session{Mode: ModeChatDriven})
	base := time.Now().UTC()

	for i, turn := range []Turn{
		{SessionID: sess.ID, Role: "user", Text: "minha vpn caiu"},
		{SessionID: sess.ID, Role: "assistant", Text: "reinicie o cliente", Intent: "vpn", Action: "answer", Confidence: 0.8},
	} {
		turn.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := s.AppendTurn(context.Background(), turn); err != nil {
			t.Fatalf("append turn %d: %v", i, err)
		}
	}

	turns, err := s.Turns(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("turns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != "user" || turns[1].Role != "assistant" {
		t.Errorf("turns out of order: %+v", turns)
	}
	if turns[1].Action != "answer" || turns[1].Confidence != 0.8 {
		t.Errorf("assistant turn metadata lost: %+v", turns[1])
	}
}
