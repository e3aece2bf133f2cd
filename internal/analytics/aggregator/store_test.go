package aggregator

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/postgres"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("MD_TEST_POSTGRES") == "" {
		t.Skip("MD_TEST_POSTGRES not set; skipping PostgreSQL tests")
	}
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s := NewStore(db)
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSaveAndList(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	agg := analytics.NewAggregator()
	agg.RecordFind(analytics.FindEvent{Type: analytics.EventFind, Found: true, Score: 0.8, Title: "Hujan", Mood: "sad"})
	if err := s.SaveSnapshot(ctx, agg.Stats()); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	latest, err := s.LatestSnapshot(ctx)
	if err != nil || latest == nil {
		t.Fatalf("LatestSnapshot = %v, %v", latest, err)
	}
	if latest.Stats.Matches < 1 {
		t.Errorf("latest matches = %d", latest.Stats.Matches)
	}

	snaps, err := s.ListSnapshots(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) == 0 || len(snaps) > 5 {
		t.Errorf("ListSnapshots returned %d", len(snaps))
	}
}

func TestPeriodicSaveFinalSnapshot(t *testing.T) {
	s := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := s.StartPeriodicSave(ctx, analytics.NewAggregator(), time.Hour)
	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("periodic save did not stop")
	}
}
