// Package server wires the HTTP surface: conversation turns, knowledge
// administration, ticket ingestion, feedback and metrics.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/helpdeskbr/n1agent/internal/config"
	"github.com/helpdeskbr/n1agent/internal/feedback"
	"github.com/helpdeskbr/n1agent/internal/ingest"
	"github.com/helpdeskbr/n1agent/internal/kb"
	"github.com/helpdeskbr/n1agent/internal/metrics"
	"github.com/helpdeskbr/n1agent/internal/session"
	"github.com/helpdeskbr/n1agent/internal/triage"
)

// Deps collects the collaborators the server exposes over HTTP.
type Deps struct {
	Articles     *kb.Store
	Sessions     *session.Store
	Reindexer    kb.Reindexer
	Orchestrator *triage.Orchestrator
	Feedback     *feedback.Store
	Tickets      *ingest.Store
	Classifier   *ingest.Classifier
	Metrics      *metrics.Collector
}

// Server is the n1agent HTTP server.
type Server struct {
	cfg        *config.Config
	deps       Deps
	router     chi.Router
	httpServer *http.Server
}

// New creates a server with all routes mounted.
func New(cfg *config.Config, deps Deps) *Server {
	s := &Server{cfg: cfg, deps: deps}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Post("/api/turns", s.handleTurn)
	r.Get("/api/sessions/{id}", s.handleGetSession)
	r.Get("/ws/chat", s.handleChatSocket)

	kb.RegisterRoutes(r, s.deps.Articles, s.deps.Reindexer)
	feedback.RegisterRoutes(r, s.deps.Feedback)
	ingest.RegisterRoutes(r, s.deps.Tickets, s.deps.Classifier, s.cfg.IngestSecret)
	metrics.RegisterRoutes(r, s.deps.Metrics)

	return r
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("n1agent listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
