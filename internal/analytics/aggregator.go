package analytics

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/kafka"
)

const (
	latencyWindow = 10000
	topCount      = 10
)

type Stats struct {
	TotalFinds           int64        `json:"total_finds"`
	Matches              int64        `json:"matches"`
	MatchRate            float64      `json:"match_rate"`
	AvgMatchedScore      float64      `json:"avg_matched_score"`
	CacheHits            int64        `json:"cache_hits"`
	CacheHitRate         float64      `json:"cache_hit_rate"`
	AvgLatencyMs         float64      `json:"avg_latency_ms"`
	P50LatencyMs         float64      `json:"p50_latency_ms"`
	P95LatencyMs         float64      `json:"p95_latency_ms"`
	P99LatencyMs         float64      `json:"p99_latency_ms"`
	TopSongs             []QueryCount `json:"top_songs"`
	TopUnmatchedQueries  []QueryCount `json:"top_unmatched_queries"`
	MoodDistribution     []QueryCount `json:"mood_distribution"`
	TotalRecommendations int64        `json:"total_recommendations"`
	UnknownAnchors       int64        `json:"unknown_anchors"`
	FindsPerMinute       float64      `json:"finds_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps running totals of find and recommend events. Latency
// percentiles cover the most recent events only.
type Aggregator struct {
	mu              sync.Mutex
	totalFinds      int64
	matches         int64
	matchedScoreSum float64
	cacheHits       int64
	latencies       []float64
	latencyNext     int
	songCounts      map[string]int64
	unmatched       map[string]int64
	moods           map[string]int64
	recommends      int64
	unknownAnchors  int64
	startTime       time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:  make([]float64, 0, latencyWindow),
		songCounts: make(map[string]int64),
		unmatched:  make(map[string]int64),
		moods:      make(map[string]int64),
		startTime:  time.Now(),
		logger:     slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent decodes events from the analytics topic into agg.
// Undecodable messages are logged and skipped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		head, err := kafka.DecodeJSON[struct {
			Type EventType `json:"type"`
		}](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		switch head.Type {
		case EventFind:
			ev, err := kafka.DecodeJSON[FindEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode find event", "error", err)
				return nil
			}
			agg.RecordFind(ev)
		case EventRecommend:
			ev, err := kafka.DecodeJSON[RecommendEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode recommend event", "error", err)
				return nil
			}
			agg.RecordRecommend(ev)
		default:
			agg.logger.Warn("unknown analytics event type", "type", head.Type, "key", string(key))
		}
		return nil
	}
}

func (a *Aggregator) RecordFind(ev FindEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalFinds++
	if ev.CacheHit {
		a.cacheHits++
	}
	a.addLatency(ev.LatencyMs)
	if ev.Found {
		a.matches++
		a.matchedScoreSum += ev.Score
		a.songCounts[songKey(ev.Title, ev.Artist)]++
		if ev.Mood != "" {
			a.moods[ev.Mood]++
		}
		return
	}
	if ev.Normalized != "" {
		a.unmatched[ev.Normalized]++
	}
}

func (a *Aggregator) RecordRecommend(ev RecommendEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recommends++
	if !ev.Found {
		a.unknownAnchors++
	}
}

func (a *Aggregator) addLatency(ms float64) {
	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, ms)
		return
	}
	a.latencies[a.latencyNext] = ms
	a.latencyNext = (a.latencyNext + 1) % latencyWindow
}

func songKey(title, artist string) string {
	if artist == "" {
		return title
	}
	return title + " - " + artist
}

func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Stats{
		TotalFinds:           a.totalFinds,
		Matches:              a.matches,
		CacheHits:            a.cacheHits,
		TotalRecommendations: a.recommends,
		UnknownAnchors:       a.unknownAnchors,
		TopSongs:             topN(a.songCounts, topCount),
		TopUnmatchedQueries:  topN(a.unmatched, topCount),
		MoodDistribution:     topN(a.moods, 0),
	}
	if a.totalFinds > 0 {
		s.MatchRate = float64(a.matches) / float64(a.totalFinds)
		s.CacheHitRate = float64(a.cacheHits) / float64(a.totalFinds)
	}
	if a.matches > 0 {
		s.AvgMatchedScore = a.matchedScoreSum / float64(a.matches)
	}
	if len(a.latencies) > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)
		var sum float64
		for _, l := range sorted {
			sum += l
		}
		s.AvgLatencyMs = sum / float64(len(sorted))
		s.P50LatencyMs = percentile(sorted, 50)
		s.P95LatencyMs = percentile(sorted, 95)
		s.P99LatencyMs = percentile(sorted, 99)
	}
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		s.FindsPerMinute = float64(a.totalFinds) / elapsed
	}
	return s
}

func percentile(sorted []float64, pct int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count descending then key ascending; n <= 0 keeps all.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	slices.SortFunc(result, func(a, b QueryCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Query, b.Query)
	})
	if n > 0 && len(result) > n {
		result = result[:n]
	}
	return result
}
