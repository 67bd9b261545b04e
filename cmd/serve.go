package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/helpdeskbr/n1agent/internal/config"
	"github.com/helpdeskbr/n1agent/internal/db"
	"github.com/helpdeskbr/n1agent/internal/feedback"
	"github.com/helpdeskbr/n1agent/internal/ingest"
	"github.com/helpdeskbr/n1agent/internal/kb"
	"github.com/helpdeskbr/n1agent/internal/llm"
	"github.com/helpdeskbr/n1agent/internal/metrics"
	"github.com/helpdeskbr/n1agent/internal/notify"
	"github.com/helpdeskbr/n1agent/internal/search"
	"github.com/helpdeskbr/n1agent/internal/server"
	"github.com/helpdeskbr/n1agent/internal/session"
	"github.com/helpdeskbr/n1agent/internal/triage"
	"github.com/helpdeskbr/n1agent/internal/watchdog"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the triage server and the follow-up watchdog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		database, err := db.Open(filepath.Join(cfg.DataDir, "n1agent.db"))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		articles := kb.NewStore(database)
		sessions := session.NewStore(database)
		feedbackStore := feedback.NewStore(database)
		tickets := ingest.NewStore(database)

		engine := search.NewEngine(articleSource(articles))
		if _, err := engine.Reindex(cmd.Context()); err != nil {
			// An empty knowledge base is a valid cold start; searches return
			// nothing until articles are imported and reindexed.
			fmt.Fprintf(os.Stderr, "Warning: initial index build: %v\n", err)
		}

		provider, err := llm.NewProvider(cfg)
		if err != nil {
			return fmt.Errorf("creating LLM provider: %w", err)
		}
		if provider == nil {
			fmt.Fprintln(os.Stderr, "Warning: no LLM provider configured; turns will be rejected and ingestion uses subject rules")
		}

		orchestrator := triage.New(sessions, engine, provider, feedbackStore, triage.Options{
			TopK:                cfg.Retrieval.TopK,
			PriorAlpha:          cfg.Retrieval.PriorAlpha,
			ConfidenceThreshold: cfg.Triage.ConfidenceThreshold,
			Timeout:             time.Duration(cfg.Triage.TimeoutSeconds) * time.Second,
			ReminderOffset:      time.Duration(cfg.Watchdog.ReminderMinutes) * time.Minute,
			TimeoutOffset:       time.Duration(cfg.Watchdog.TimeoutMinutes) * time.Minute,
			Nudge1Offset:        time.Duration(cfg.Watchdog.Nudge1Minutes) * time.Minute,
			Nudge2Offset:        time.Duration(cfg.Watchdog.Nudge2Minutes) * time.Minute,
			FinalCloseOffset:    time.Duration(cfg.Watchdog.FinalCloseMinutes) * time.Minute,
		})

		srv := server.New(cfg, server.Deps{
			Articles:     articles,
			Sessions:     sessions,
			Reindexer:    engine,
			Orchestrator: orchestrator,
			Feedback:     feedbackStore,
			Tickets:      tickets,
			Classifier:   ingest.NewClassifier(provider),
			Metrics:      metrics.NewCollector(database, feedbackStore),
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.Watchdog.Enabled {
			var notifier notify.Notifier = notify.LogNotifier{}
			if cfg.WebhookURL != "" {
				notifier = notify.NewWebhookNotifier(cfg.WebhookURL)
			}
			wd := watchdog.New(sessions, notifier, time.Duration(cfg.Watchdog.IntervalSeconds)*time.Second)
			go wd.Run(ctx)
		} else {
			fmt.Fprintln(os.Stderr, "Warning: watchdog disabled; scheduled follow-ups will not fire")
		}

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		fmt.Fprintf(os.Stderr, "n1agent v%s starting on port %d\n", Version, cfg.Port)
		return srv.Start()
	},
}

// articleSource adapts the article store to the search engine's corpus
// interface. Only active articles are indexed.
func articleSource(store *kb.Store) search.Source {
	return func(ctx context.Context) ([]search.Document, error) {
		articles, err := store.ListActive(ctx)
		if err != nil {
			return nil, err
		}
		docs := make([]search.Document, 0, len(articles))
		for _, a := range articles {
			docs = append(docs, search.Document{
				Slug:     a.Slug,
				Title:    a.Title,
				Tags:     a.Tags,
				Synonyms: a.Synonyms,
				Content:  a.Content,
			})
		}
		return docs, nil
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
