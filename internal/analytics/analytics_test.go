package analytics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/goleak"

	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/kafka"
)

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	err     error
}

func (p *recordingPublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, append([]kafka.Event(nil), events...))
	return p.err
}

func (p *recordingPublisher) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func TestCollectorBatchesAndDrains(t *testing.T) {
	defer goleak.VerifyNone(t)

	pub := &recordingPublisher{}
	c := NewCollector(pub, CollectorConfig{BatchSize: 3, FlushInterval: time.Hour})
	c.Start(context.Background())
	for i := 0; i < 7; i++ {
		c.Track(EventFind, FindEvent{Type: EventFind, Query: "q"})
	}
	c.Close()

	if got := pub.total(); got != 7 {
		t.Errorf("published %d events, want 7", got)
	}
	for _, b := range pub.batches {
		if len(b) > 3 {
			t.Errorf("batch of %d exceeds batch size", len(b))
		}
		if b[0].Key != string(EventFind) {
			t.Errorf("key = %q", b[0].Key)
		}
	}

	c.Track(EventFind, FindEvent{})
	c.Close()
	if got := pub.total(); got != 7 {
		t.Errorf("event tracked after Close was published")
	}
}

func TestCollectorFlushInterval(t *testing.T) {
	defer goleak.VerifyNone(t)

	pub := &recordingPublisher{}
	c := NewCollector(pub, CollectorConfig{BatchSize: 100, FlushInterval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	c.Track(EventRecommend, RecommendEvent{Type: EventRecommend})

	deadline := time.Now().Add(2 * time.Second)
	for pub.total() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if pub.total() != 1 {
		t.Errorf("interval flush published %d events", pub.total())
	}
	cancel()
	c.Close()
}

func TestCollectorDropsWhenFull(t *testing.T) {
	pub := &recordingPublisher{}
	var drops int
	c := NewCollector(pub, CollectorConfig{BufferSize: 2, OnDrop: func() { drops++ }})
	// not started: nothing consumes the buffer
	for i := 0; i < 5; i++ {
		c.Track(EventFind, FindEvent{})
	}
	if c.Dropped() != 3 || drops != 3 {
		t.Errorf("dropped = %d (callback %d), want 3", c.Dropped(), drops)
	}
}

func TestCollectorPublishErrorDoesNotStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	pub := &recordingPublisher{err: errors.New("broker down")}
	c := NewCollector(pub, CollectorConfig{BatchSize: 1, FlushInterval: time.Hour})
	c.Start(context.Background())
	c.Track(EventFind, FindEvent{})
	c.Track(EventFind, FindEvent{})
	c.Close()
	if got := pub.total(); got != 2 {
		t.Errorf("attempted %d events, want 2", got)
	}
}

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	agg.RecordFind(FindEvent{Found: true, Score: 0.8, Title: "Hujan", Artist: "Utopia", Mood: "sad", LatencyMs: 2})
	agg.RecordFind(FindEvent{Found: true, Score: 0.4, Title: "Hujan", Artist: "Utopia", Mood: "sad", LatencyMs: 4, CacheHit: true})
	agg.RecordFind(FindEvent{Found: true, Score: 0.6, Title: "Pelangi", Artist: "HiVi!", Mood: "happy", LatencyMs: 6})
	agg.RecordFind(FindEvent{Found: false, Normalized: "la la la", LatencyMs: 8})
	agg.RecordRecommend(RecommendEvent{Found: true, Returned: 5})
	agg.RecordRecommend(RecommendEvent{Found: false})

	s := agg.Stats()
	if s.TotalFinds != 4 || s.Matches != 3 {
		t.Fatalf("totals = %d/%d", s.TotalFinds, s.Matches)
	}
	if s.MatchRate != 0.75 || s.CacheHitRate != 0.25 {
		t.Errorf("rates = %v, %v", s.MatchRate, s.CacheHitRate)
	}
	if diff := s.AvgMatchedScore - 0.6; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("AvgMatchedScore = %v", s.AvgMatchedScore)
	}
	if s.AvgLatencyMs != 5 || s.P50LatencyMs != 6 || s.P99LatencyMs != 8 {
		t.Errorf("latency avg/p50/p99 = %v/%v/%v", s.AvgLatencyMs, s.P50LatencyMs, s.P99LatencyMs)
	}
	if len(s.TopSongs) != 2 || s.TopSongs[0] != (QueryCount{"Hujan - Utopia", 2}) {
		t.Errorf("TopSongs = %v", s.TopSongs)
	}
	if len(s.TopUnmatchedQueries) != 1 || s.TopUnmatchedQueries[0].Query != "la la la" {
		t.Errorf("TopUnmatchedQueries = %v", s.TopUnmatchedQueries)
	}
	if len(s.MoodDistribution) != 2 || s.MoodDistribution[0] != (QueryCount{"sad", 2}) {
		t.Errorf("MoodDistribution = %v", s.MoodDistribution)
	}
	if s.TotalRecommendations != 2 || s.UnknownAnchors != 1 {
		t.Errorf("recommend totals = %d/%d", s.TotalRecommendations, s.UnknownAnchors)
	}
}

func TestAggregatorLatencyWindow(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < latencyWindow+10; i++ {
		agg.RecordFind(FindEvent{LatencyMs: 1})
	}
	if len(agg.latencies) != latencyWindow {
		t.Errorf("latency window grew to %d", len(agg.latencies))
	}
}

func TestHandleEventDispatch(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)
	find, _ := json.Marshal(FindEvent{Type: EventFind, Found: true, Title: "A"})
	rec, _ := json.Marshal(RecommendEvent{Type: EventRecommend, Found: false})

	for _, v := range [][]byte{find, rec, []byte(`{"type":"other"}`), []byte(`not json`)} {
		if err := handle(context.Background(), nil, v); err != nil {
			t.Errorf("handler returned %v", err)
		}
	}
	s := agg.Stats()
	if s.Matches != 1 || s.UnknownAnchors != 1 {
		t.Errorf("stats = %+v", s)
	}
}

type fakeHistory struct {
	snaps []Snapshot
	limit int
}

func (f *fakeHistory) ListSnapshots(_ context.Context, limit int) ([]Snapshot, error) {
	f.limit = limit
	return f.snaps, nil
}

func TestHandlerRoutes(t *testing.T) {
	agg := NewAggregator()
	agg.RecordFind(FindEvent{Found: true, Title: "A"})
	hist := &fakeHistory{snaps: []Snapshot{{CapturedAt: time.Now()}}}
	mux := http.NewServeMux()
	NewHandler(agg, hist).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"matches":1`) {
		t.Errorf("stats response %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history?limit=9999", nil))
	if rec.Code != http.StatusOK || hist.limit != maxHistoryLimit {
		t.Errorf("history response %d, limit %d", rec.Code, hist.limit)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history?limit=abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit gave %d", rec.Code)
	}
}

func TestHandlerWithoutHistory(t *testing.T) {
	mux := http.NewServeMux()
	NewHandler(NewAggregator(), nil).Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("code = %d", rec.Code)
	}
}
