package feedback

import (
	"context"
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

func record(t *testing.T, s *Store, slug string, success bool) {
	t.Helper()
	if _, err := s.Record(context.Background(), Event{ArticleSlug: slug, Success: success}); err != nil {
		t.Fatalf("recording feedback: %v", err)
	}
}

func TestArticlePriorsSign(t *testing.T) {
	s := setupStore(t)

	for i := 0; i < 8; i++ {
		record(t, s, "onedrive_sync", true)
	}
	for i := 0; i < 8; i++ {
		record(t, s, "printer_queue", false)
	}
	record(t, s, "vpn_access", true)
	record(t, s, "vpn_access", false)

	priors, err := s.ArticlePriors(context.Background())
	if err != nil {
		t.Fatalf("priors: %v", err)
	}

	if priors["onedrive_sync"] <= 0 {
		t.Errorf("all-success article should have a positive prior, got %f", priors["onedrive_sync"])
	}
	if priors["printer_queue"] >= 0 {
		t.Errorf("all-failure article should have a negative prior, got %f", priors["printer_queue"])
	}
	if p := priors["vpn_access"]; p < -0.05 || p > 0.05 {
		t.Errorf("balanced feedback should sit near zero, got %f", p)
	}
	for slug, p := range priors {
		if p < -1 || p > 1 {
			t.Errorf("prior for %s out of range: %f", slug, p)
		}
	}
}

func TestArticlePriorsSmoothing(t *testing.T) {
	s := setupStore(t)
	record(t, s, "onedrive_sync", true)

	priors, err := s.ArticlePriors(context.Background())
	if err != nil {
		t.Fatalf("priors: %v", err)
	}
	// One event over smoothing m=10 stays well below full confidence.
	if p := priors["onedrive_sync"]; p > 0.2 {
		t.Errorf("single event should stay conservative, got %f", p)
	}
}

func TestArticlePriorsAgeDecay(t *testing.T) {
	s := setupStore(t)
	now := time.Now().UTC()

	// Old failures, fresh successes.
	s.now = func() time.Time { return now.Add(-365 * 24 * time.Hour) }
	for i := 0; i < 5; i++ {
		record(t, s, "vpn_access", false)
	}
	s.now = func() time.Time { return now }
	for i := 0; i < 5; i++ {
		record(t, s, "vpn_access", true)
	}

	priors, err := s.ArticlePriors(context.Background())
	if err != nil {
		t.Fatalf("priors: %v", err)
	}
	if priors["vpn_access"] <= 0 {
		t.Errorf("recent successes should outweigh year-old failures, got %f", priors["vpn_access"])
	}
}

func TestGlobalTotals(t *testing.T) {
	s := setupStore(t)
	record(t, s, "a1", true)
	record(t, s, "a1", true)
	record(t, s, "a2", false)

	totals, err := s.GlobalTotals(context.Background())
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.Events != 3 || totals.Successes != 2 || totals.Failures != 1 {
		t.Errorf("wrong totals: %+v", totals)
	}
	if totals.SuccessRate < 0.66 || totals.SuccessRate > 0.67 {
		t.Errorf("wrong success rate: %f", totals.SuccessRate)
	}
}

func TestRecordRequiresSlug(t *testing.T) {
	s := setupStore(t)
	if _, err := s.Record(context.Background(), Event{Success: true}); err == nil {
		t.Error("expected an error for an empty article slug")
	}
}
