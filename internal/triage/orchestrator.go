package triage

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/helpdeskbr/n1agent/internal/llm"
	"github.com/helpdeskbr/n1agent/internal/search"
	"github.com/helpdeskbr/n1agent/internal/session"
)

// PriorSource supplies per-article ranking priors in [-1, 1], typically
// aggregated from requester feedback. A nil source means neutral priors.
type PriorSource interface {
	ArticlePriors(ctx context.Context) (map[string]float64, error)
}

// Options configures one orchestrator.
type Options struct {
	TopK                int
	PriorAlpha          float64
	ConfidenceThreshold float64
	Timeout             time.Duration

	// Follow-up offsets, measured from the moment the assistant replies.
	ReminderOffset   time.Duration
	TimeoutOffset    time.Duration
	Nudge1Offset     time.Duration
	Nudge2Offset     time.Duration
	FinalCloseOffset time.Duration
}

// Orchestrator runs the triage pipeline for one turn: retrieval, the
// collaborator call, persistence, and follow-up scheduling.
type Orchestrator struct {
	sessions *session.Store
	engine   *search.Engine
	provider llm.Provider
	priors   PriorSource
	opts     Options

	// Turns on the same session serialize; different sessions run freely.
	// Entries are reference-counted and removed when the last holder
	// releases, so the map stays bounded by in-flight turns.
	mu    sync.Mutex
	locks map[string]*sessionLock

	now func() time.Time
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// New creates an orchestrator. provider and priors may be nil.
func New(sessions *session.Store, engine *search.Engine, provider llm.Provider, priors PriorSource, opts Options) *Orchestrator {
	return &Orchestrator{
		sessions: sessions,
		engine:   engine,
		provider: provider,
		priors:   priors,
		opts:     opts,
		locks:    make(map[string]*sessionLock),
		now:      time.Now,
	}
}

func (o *Orchestrator) acquire(sessionID string) *sessionLock {
	o.mu.Lock()
	l, ok := o.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		o.locks[sessionID] = l
	}
	l.refs++
	o.mu.Unlock()
	l.mu.Lock()
	return l
}

func (o *Orchestrator) release(sessionID string, l *sessionLock) {
	l.mu.Unlock()
	o.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(o.locks, sessionID)
	}
	o.mu.Unlock()
}

// HandleTurn processes one inbound message and returns the assistant's
// decision. On ErrClassificationUnavailable nothing beyond the activity
// refresh persists, so retrying the same turn is safe.
func (o *Orchestrator) HandleTurn(ctx context.Context, req TurnRequest) (*Result, error) {
	l := o.acquire(req.SessionID)
	defer o.release(req.SessionID, l)

	now := o.now().UTC()

	sess, err := o.ensureSession(ctx, req, now)
	if err != nil {
		return nil, err
	}

	// Fresh user activity supersedes every pending follow-up.
	if err := o.sessions.TouchUser(ctx, sess.ID, now); err != nil {
		return nil, err
	}
	if err := o.sessions.AppendTurn(ctx, session.Turn{
		SessionID: sess.ID,
		Role:      "user",
		Text:      req.Message,
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}

	hits := o.retrieve(ctx, req)

	cls, err := o.classify(ctx, req, hits)
	if err != nil {
		return nil, err
	}

	action := ParseAction(cls.Action)
	if cls.Confidence < o.opts.ConfidenceThreshold {
		// Below the threshold the turn always becomes a follow-up question,
		// whatever the collaborator proposed.
		action = ActionAskFollowup
	}

	if err := o.sessions.AppendTurn(ctx, session.Turn{
		SessionID:  sess.ID,
		Role:       "assistant",
		Text:       cls.Reply,
		Intent:     cls.Intent,
		Action:     string(action),
		Confidence: cls.Confidence,
		CreatedAt:  now,
	}); err != nil {
		return nil, err
	}
	if err := o.sessions.TouchAgent(ctx, sess.ID, now); err != nil {
		return nil, err
	}

	if err := o.applyAction(ctx, sess, action, now); err != nil {
		return nil, err
	}

	return &Result{
		SessionID:  sess.ID,
		Intent:     cls.Intent,
		Action:     action,
		Confidence: cls.Confidence,
		Reply:      cls.Reply,
		UsedChunks: hits,
	}, nil
}

// ensureSession loads the session, creating it on first contact.
func (o *Orchestrator) ensureSession(ctx context.Context, req TurnRequest, now time.Time) (*session.Session, error) {
	sess, err := o.sessions.Get(ctx, req.SessionID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, session.ErrUnknownSession) {
		return nil, err
	}
	return o.sessions.Create(ctx, session.Session{
		ID:                 req.SessionID,
		Mode:               req.Mode,
		TicketID:           req.Ticket.ID,
		Subject:            req.Ticket.Subject,
		RequesterEmail:     req.RequesterEmail,
		CreatedAt:          now,
		LastUserActivityAt: now,
	})
}

// retrieve runs lexical retrieval over the knowledge base. Retrieval
// problems degrade to an empty context instead of failing the turn.
func (o *Orchestrator) retrieve(ctx context.Context, req TurnRequest) []search.Hit {
	query := strings.TrimSpace(strings.Join([]string{
		req.Ticket.Subject, req.Ticket.Description, req.Message,
	}, " "))

	var priors map[string]float64
	if o.priors != nil {
		p, err := o.priors.ArticlePriors(ctx)
		if err != nil {
			log.Printf("triage: loading priors: %v", err)
		} else {
			priors = p
		}
	}
	return o.engine.Search(query, o.opts.TopK, priors, o.opts.PriorAlpha)
}

// applyAction performs the lifecycle transition the decided action implies.
func (o *Orchestrator) applyAction(ctx context.Context, sess *session.Session, action Action, now time.Time) error {
	switch action {
	case ActionResolve:
		return o.sessions.Close(ctx, sess.ID, "resolved")
	case ActionEscalate:
		return o.sessions.Close(ctx, sess.ID, "escalated")
	}

	// answer and ask_followup both leave the ball in the requester's court,
	// so the waiting flow arms.
	if sess.Mode == session.ModeTicketDriven {
		return o.sessions.Schedule(ctx, sess.ID, session.StatusReminded, []session.EventSpec{
			{
				Kind:    session.KindReminder,
				DueAt:   now.Add(o.opts.ReminderOffset),
				Message: "Oi! Passando para lembrar do seu chamado. Conseguiu testar o que sugerimos? Se já estiver resolvido, pode me avisar que encerro por aqui.",
			},
			{
				Kind:    session.KindFinalClose,
				DueAt:   now.Add(o.opts.TimeoutOffset),
				Message: "Como não tivemos retorno, estou encerrando este chamado. Se o problema voltar, é só abrir um novo que a gente continua de onde parou.",
			},
		})
	}

	return o.sessions.Schedule(ctx, sess.ID, session.StatusEscalating, []session.EventSpec{
		{
			Kind:    session.KindNudge1,
			DueAt:   now.Add(o.opts.Nudge1Offset),
			Message: "Oi! Ainda está por aí? Se precisar de mais um detalhe do passo a passo, é só dizer.",
		},
		{
			Kind:    session.KindNudge2,
			DueAt:   now.Add(o.opts.Nudge2Offset),
			Message: "Só confirmando: deu certo a orientação? Se não responder, vou encerrar o atendimento em breve.",
		},
		{
			Kind:    session.KindFinalClose,
			DueAt:   now.Add(o.opts.FinalCloseOffset),
			Message: "Encerrando o atendimento por falta de retorno. Qualquer coisa, me chame de novo que retomamos.",
		},
	})
}
