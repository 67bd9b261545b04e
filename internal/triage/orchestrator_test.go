package triage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/helpdeskbr/n1agent/internal/db"
	"github.com/helpdeskbr/n1agent/internal/llm"
	"github.com/helpdeskbr/n1agent/internal/search"
	"github.com/helpdeskbr/n1agent/internal/session"
)

// scriptedProvider returns a fixed JSON payload, or an error.
type scriptedProvider struct {
	response string
	err      error
	calls    int
}

func (p *scriptedProvider) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &llm.CompletionResponse{Content: p.response}, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

func testOptions() Options {
	return Options{
		TopK:                6,
		PriorAlpha:          0.3,
		ConfidenceThreshold: 0.5,
		Timeout:             5 * time.Second,
		ReminderOffset:      15 * time.Minute,
		TimeoutOffset:       60 * time.Minute,
		Nudge1Offset:        10 * time.Minute,
		Nudge2Offset:        25 * time.Minute,
		FinalCloseOffset:    85 * time.Minute,
	}
}

func setupOrchestrator(t *testing.T, provider llm.Provider) (*Orchestrator, *session.Store) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	sessions := session.NewStore(database)
	engine := search.NewEngine(func(ctx context.Context) ([]search.Document, error) {
		return []search.Document{{
			Slug:    "vpn_access",
			Title:   "VPN não conecta",
			Content: "Reinicie o cliente VPN e verifique sua senha de rede.",
		}}, nil
	})
	if _, err := engine.Reindex(context.Background()); err != nil {
		t.Fatalf("building index: %v", err)
	}

	return New(sessions, engine, provider, nil, testOptions()), sessions
}

func chatTurn(id, msg string) TurnRequest {
	return TurnRequest{SessionID: id, Mode: session.ModeChatDriven, Message: msg}
}

func TestHandleTurnAnswerSchedulesChatNudges(t *testing.T) {
	provider := &scriptedProvider{
		response: `{"intent": "vpn", "action": "answer", "confidence": 0.8, "reply": "Reinicie o cliente VPN."}`,
	}
	o, sessions := setupOrchestrator(t, provider)

	res, err := o.HandleTurn(context.Background(), chatTurn("s1", "minha vpn não conecta"))
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if res.Action != ActionAnswer || res.Reply == "" {
		t.Errorf("unexpected result: %+v", res)
	}
	if len(res.UsedChunks) == 0 {
		t.Error("expected retrieved chunks in the result")
	}

	sess, err := sessions.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("session not created: %v", err)
	}
	if sess.Status != session.StatusEscalating {
		t.Errorf("chat-driven answer should move to escalating, got %s", sess.Status)
	}

	pending, _ := sessions.PendingEvents(context.Background(), "s1")
	kinds := map[session.EventKind]bool{}
	for _, ev := range pending {
		kinds[ev.Kind] = true
	}
	if len(pending) != 3 || !kinds[session.KindNudge1] || !kinds[session.KindNudge2] || !kinds[session.KindFinalClose] {
		t.Errorf("expected nudge_1/nudge_2/final_close pending, got %+v", pending)
	}

	turns, _ := sessions.Turns(context.Background(), "s1")
	if len(turns) != 2 {
		t.Errorf("expected user and assistant turns, got %d", len(turns))
	}
}

func TestHandleTurnTicketModeSchedulesReminder(t *testing.T) {
	provider := &scriptedProvider{
		response: `{"intent": "vpn", "action": "ask_followup", "confidence": 0.7, "reply": "Qual o erro exibido?"}`,
	}
	o, sessions := setupOrchestrator(t, provider)

	_, err := o.HandleTurn(context.Background(), TurnRequest{
		SessionID: "t1",
		Mode:      session.ModeTicketDriven,
		Ticket:    Ticket{ID: "900", Subject: "vpn não conecta", Description: "erro ao conectar"},
		Message:   "vpn não conecta",
	})
	if err != nil {
		t.Fatalf("turn: %v", err)
	}

	sess, _ := sessions.Get(context.Background(), "t1")
	if sess.Status != session.StatusReminded {
		t.Errorf("ticket-driven turn should move to reminded, got %s", sess.Status)
	}
	if sess.TicketID != "900" {
		t.Errorf("ticket id not carried onto the session: %+v", sess)
	}

	pending, _ := sessions.PendingEvents(context.Background(), "t1")
	if len(pending) != 2 {
		t.Fatalf("expected reminder and final_close, got %d", len(pending))
	}
	if pending[0].Kind != session.KindReminder || pending[1].Kind != session.KindFinalClose {
		t.Errorf("wrong pending kinds: %+v", pending)
	}
}

func TestHandleTurnLowConfidenceBecomesFollowup(t *testing.T) {
	provider := &scriptedProvider{
		response: `{"intent": "vpn", "action": "resolve", "confidence": 0.3, "reply": "Acho que resolveu."}`,
	}
	o, sessions := setupOrchestrator(t, provider)

	res, err := o.HandleTurn(context.Background(), chatTurn("s1", "vpn"))
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if res.Action != ActionAskFollowup {
		t.Errorf("below-threshold resolve must become ask_followup, got %s", res.Action)
	}

	sess, _ := sessions.Get(context.Background(), "s1")
	if sess.Status == session.StatusClosed {
		t.Error("low-confidence turn must not close the session")
	}
}

func TestHandleTurnLowConfidenceEscalateBecomesFollowup(t *testing.T) {
	provider := &scriptedProvider{
		response: `{"intent": "ad", "action": "escalate", "confidence": 0.1, "reply": "Vou encaminhar ao time responsável."}`,
	}
	o, sessions := setupOrchestrator(t, provider)

	res, err := o.HandleTurn(context.Background(), chatTurn("s1", "acho que preciso de acesso admin"))
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if res.Action != ActionAskFollowup {
		t.Errorf("below-threshold escalate must become ask_followup, got %s", res.Action)
	}

	sess, _ := sessions.Get(context.Background(), "s1")
	if sess.Status == session.StatusClosed {
		t.Errorf("low-confidence escalate must not close the session, got %s (%q)", sess.Status, sess.CloseReason)
	}
	pending, _ := sessions.PendingEvents(context.Background(), "s1")
	if len(pending) != 3 {
		t.Errorf("follow-up question should arm the waiting flow, got %d pending", len(pending))
	}
}

func TestHandleTurnResolveClosesSession(t *testing.T) {
	provider := &scriptedProvider{
		response: `{"intent": "vpn", "action": "resolve", "confidence": 0.9, "reply": "Resolvido, vou encerrar."}`,
	}
	o, sessions := setupOrchestrator(t, provider)

	if _, err := o.HandleTurn(context.Background(), chatTurn("s1", "funcionou, obrigado")); err != nil {
		t.Fatalf("turn: %v", err)
	}

	sess, _ := sessions.Get(context.Background(), "s1")
	if sess.Status != session.StatusClosed || sess.CloseReason != "resolved" {
		t.Errorf("resolve should close with reason resolved, got %s (%q)", sess.Status, sess.CloseReason)
	}
	pending, _ := sessions.PendingEvents(context.Background(), "s1")
	if len(pending) != 0 {
		t.Errorf("closed session must have no pending events, got %d", len(pending))
	}
}

func TestHandleTurnEscalateClosesWithReason(t *testing.T) {
	provider := &scriptedProvider{
		response: `{"intent": "ad", "action": "escalate", "confidence": 0.9, "reply": "Vou encaminhar ao time responsável."}`,
	}
	o, sessions := setupOrchestrator(t, provider)

	res, err := o.HandleTurn(context.Background(), chatTurn("s1", "preciso de acesso admin no servidor"))
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if res.Action != ActionEscalate {
		t.Errorf("expected escalate, got %s", res.Action)
	}

	sess, _ := sessions.Get(context.Background(), "s1")
	if sess.Status != session.StatusClosed || sess.CloseReason != "escalated" {
		t.Errorf("escalate should close with reason escalated, got %s (%q)", sess.Status, sess.CloseReason)
	}
}

func TestHandleTurnProviderFailureIsRetrySafe(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("upstream down")}
	o, sessions := setupOrchestrator(t, provider)

	_, err := o.HandleTurn(context.Background(), chatTurn("s1", "vpn não conecta"))
	if !errors.Is(err, ErrClassificationUnavailable) {
		t.Fatalf("expected ErrClassificationUnavailable, got %v", err)
	}

	// The session exists with refreshed activity but no assistant turn and
	// no scheduled follow-ups.
	sess, err := sessions.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("session should exist after failed turn: %v", err)
	}
	if sess.Status != session.StatusActive {
		t.Errorf("failed turn must leave the session active, got %s", sess.Status)
	}
	pending, _ := sessions.PendingEvents(context.Background(), "s1")
	if len(pending) != 0 {
		t.Errorf("failed turn must not schedule follow-ups, got %d", len(pending))
	}
	turns, _ := sessions.Turns(context.Background(), "s1")
	for _, turn := range turns {
		if turn.Role == "assistant" {
			t.Error("failed turn must not record an assistant reply")
		}
	}
}

func TestHandleTurnNoProviderFailsFast(t *testing.T) {
	o, _ := setupOrchestrator(t, nil)

	_, err := o.HandleTurn(context.Background(), chatTurn("s1", "olá"))
	if !errors.Is(err, ErrClassificationUnavailable) {
		t.Fatalf("expected ErrClassificationUnavailable without a provider, got %v", err)
	}
}

func TestHandleTurnUnknownActionFallsBack(t *testing.T) {
	provider := &scriptedProvider{
		response: `{"intent": "x", "action": "ponder", "confidence": 0.9, "reply": "hmm"}`,
	}
	o, _ := setupOrchestrator(t, provider)

	res, err := o.HandleTurn(context.Background(), chatTurn("s1", "mensagem"))
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if res.Action != ActionAskFollowup {
		t.Errorf("unknown action must map to ask_followup, got %s", res.Action)
	}
}

func TestHandleTurnFreesSessionLocks(t *testing.T) {
	provider := &scriptedProvider{
		response: `{"intent": "vpn", "action": "answer", "confidence": 0.8, "reply": "Tente reiniciar."}`,
	}
	o, _ := setupOrchestrator(t, provider)

	for _, id := range []string{"s1", "s2", "s3"} {
		if _, err := o.HandleTurn(context.Background(), chatTurn(id, "vpn não conecta")); err != nil {
			t.Fatalf("turn %s: %v", id, err)
		}
	}

	o.mu.Lock()
	live := len(o.locks)
	o.mu.Unlock()
	if live != 0 {
		t.Errorf("per-session locks must be freed once no turn holds them, got %d live entries", live)
	}
}

func TestHandleTurnNewTurnCancelsPreviousSchedule(t *testing.T) {
	provider := &scriptedProvider{
		response: `{"intent": "vpn", "action": "answer", "confidence": 0.8, "reply": "Tente reiniciar."}`,
	}
	o, sessions := setupOrchestrator(t, provider)

	if _, err := o.HandleTurn(context.Background(), chatTurn("s1", "vpn caiu")); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	first, _ := sessions.PendingEvents(context.Background(), "s1")

	if _, err := o.HandleTurn(context.Background(), chatTurn("s1", "ainda não funciona")); err != nil {
		t.Fatalf("second turn: %v", err)
	}
	second, _ := sessions.PendingEvents(context.Background(), "s1")

	if len(second) != 3 {
		t.Fatalf("expected a fresh schedule after the second turn, got %d", len(second))
	}
	for _, old := range first {
		for _, cur := range second {
			if old.ID == cur.ID {
				t.Error("old pending events must be replaced, not kept")
			}
		}
	}
}
