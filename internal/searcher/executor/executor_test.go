package executor

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/index"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/vectorizer"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/melodetect/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/proto"
)

type recordingTracker struct {
	mu     sync.Mutex
	events []any
}

func (r *recordingTracker) Track(_ analytics.EventType, event any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func testIndex(t *testing.T) *index.Index {
	t.Helper()
	idx, err := index.Build([]catalog.Entry{
		{Title: "Hujan", Artist: "Utopia", Mood: "sad", Lyrics: "hujan turun lagi di malam yang sepi aku menunggu", HasLyrics: true},
		{Title: "Pelangi", Artist: "HiVi!", Mood: "happy", Lyrics: "pelangi di matamu warna warni indah", HasLyrics: true},
		{Title: "Laut", Artist: "Iwan", Mood: "calm", Lyrics: "ombak laut biru tenang di pantai", HasLyrics: true},
		{Title: "Sunyi", Artist: "Anon", Mood: "sad"},
	}, vectorizer.Options{}, "build-1")
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

func testConfig() config.SearchConfig {
	return config.SearchConfig{
		MatchThreshold:          0.1,
		ReportSubThresholdScore: true,
		DefaultRecommendations:  2,
		MaxRecommendations:      3,
		MoodSampleSize:          2,
		MaxQueryLength:          200,
	}
}

func intPtr(v int) *int { return &v }

func TestFindMatchWithRecommendations(t *testing.T) {
	tracker := &recordingTracker{}
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	exec := New(testIndex(t), testConfig(), Deps{Tracker: tracker, Metrics: m, Tracing: true})

	resp, err := exec.Find(context.Background(), proto.FindSongRequest{Text: "Hujan turun lagi!"}, "test")
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Found || resp.Song == nil || resp.Song.Title != "Hujan" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Song.Lyrics == "" {
		t.Error("matched song should carry lyrics")
	}
	if resp.Normalized != "hujan turun lagi" {
		t.Errorf("Normalized = %q", resp.Normalized)
	}
	if len(resp.Recommendations) != 2 {
		t.Fatalf("got %d recommendations, want default 2", len(resp.Recommendations))
	}
	for _, r := range resp.Recommendations {
		if r.Title == "Hujan" {
			t.Error("recommendations must exclude the matched song")
		}
		if r.Lyrics != "" {
			t.Error("recommendations should not carry lyrics")
		}
	}
	if resp.BuildID != "build-1" || resp.Threshold != 0.1 {
		t.Errorf("BuildID = %q Threshold = %v", resp.BuildID, resp.Threshold)
	}
	if got := testutil.ToFloat64(m.FindQueriesTotal.WithLabelValues("found")); got != 1 {
		t.Errorf("found counter = %v", got)
	}
	if got := testutil.ToFloat64(m.CatalogSongs); got != 4 {
		t.Errorf("catalog gauge = %v", got)
	}
	if len(tracker.events) != 1 {
		t.Fatalf("tracked %d events", len(tracker.events))
	}
	ev := tracker.events[0].(analytics.FindEvent)
	if ev.Title != "Hujan" || !ev.Found || ev.Source != "test" {
		t.Errorf("event = %+v", ev)
	}
}

func TestFindCountHandling(t *testing.T) {
	exec := New(testIndex(t), testConfig(), Deps{})
	ctx := context.Background()

	resp, err := exec.Find(ctx, proto.FindSongRequest{Text: "pelangi di matamu", Recommendations: intPtr(0)}, "test")
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Found || len(resp.Recommendations) != 0 {
		t.Errorf("n=0: found=%v recs=%d", resp.Found, len(resp.Recommendations))
	}

	resp, err = exec.Find(ctx, proto.FindSongRequest{Text: "pelangi di matamu", Recommendations: intPtr(50)}, "test")
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Recommendations) != 3 {
		t.Errorf("n above max: got %d, want 3", len(resp.Recommendations))
	}

	_, err = exec.Find(ctx, proto.FindSongRequest{Text: "x", Recommendations: intPtr(-1)}, "test")
	if !errors.Is(err, apperrors.ErrInvalidInput) || apperrors.HTTPStatusCode(err) != http.StatusBadRequest {
		t.Errorf("negative n: err = %v", err)
	}
}

func TestFindRejectsLongQuery(t *testing.T) {
	exec := New(testIndex(t), testConfig(), Deps{})
	_, err := exec.Find(context.Background(), proto.FindSongRequest{Text: strings.Repeat("a", 201)}, "test")
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestFindEmptyAndNoOverlap(t *testing.T) {
	exec := New(testIndex(t), testConfig(), Deps{})
	for _, q := range []string{"", "?!", "zzz qqq"} {
		resp, err := exec.Find(context.Background(), proto.FindSongRequest{Text: q}, "test")
		if err != nil {
			t.Fatalf("%q: %v", q, err)
		}
		if resp.Found || resp.Song != nil || resp.Score != 0 {
			t.Errorf("%q: %+v", q, resp)
		}
		if resp.Recommendations == nil {
			t.Errorf("%q: recommendations should encode as []", q)
		}
	}
}

func TestFindCached(t *testing.T) {
	idx := testIndex(t)
	c := cache.New[proto.FindSongResponse](idx.BuildID, nil, cache.Config{LocalSize: 8, LocalTTL: time.Minute}, nil)
	exec := New(idx, testConfig(), Deps{FindCache: c})
	ctx := context.Background()

	first, err := exec.Find(ctx, proto.FindSongRequest{Text: "Ombak laut"}, "test")
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached {
		t.Error("first call should not be cached")
	}
	second, err := exec.Find(ctx, proto.FindSongRequest{Text: "ombak, LAUT!"}, "test")
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached {
		t.Error("equivalent normalized query should hit the cache")
	}
	if second.Query != "ombak, LAUT!" {
		t.Errorf("Query = %q, want the caller's own text", second.Query)
	}
	if second.Song == nil || second.Song.Title != first.Song.Title || second.Score != first.Score {
		t.Error("cached result differs from computed result")
	}
}

func TestRecommend(t *testing.T) {
	tracker := &recordingTracker{}
	exec := New(testIndex(t), testConfig(), Deps{Tracker: tracker})
	ctx := context.Background()

	resp, err := exec.Recommend(ctx, proto.RecommendRequest{Title: "Hujan"}, "test")
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Found || len(resp.Recommendations) != 2 {
		t.Fatalf("resp = %+v", resp)
	}
	for _, r := range resp.Recommendations {
		if r.Title == "Hujan" {
			t.Error("anchor must not be recommended")
		}
	}

	resp, err = exec.Recommend(ctx, proto.RecommendRequest{Title: "Hujn"}, "test")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Found || len(resp.Recommendations) != 0 {
		t.Errorf("unknown title: %+v", resp)
	}
	if len(resp.Suggestions) == 0 || resp.Suggestions[0].Title != "Hujan" {
		t.Errorf("suggestions = %+v", resp.Suggestions)
	}

	if _, err := exec.Recommend(ctx, proto.RecommendRequest{}, "test"); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("empty title: err = %v", err)
	}
	if len(tracker.events) != 2 {
		t.Errorf("tracked %d events, want 2", len(tracker.events))
	}
}
