// Package executor runs lyric searches and recommendations for the HTTP and
// RPC front ends: input validation, result caching, tracing, metrics and
// analytics around the matcher and recommender.
package executor

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/index"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/normalizer"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/recommender"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/melodetect/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/tracing"
)

const suggestionCount = 5

// Tracker receives analytics events. *analytics.Collector satisfies it.
type Tracker interface {
	Track(eventType analytics.EventType, event any)
}

// Deps are the optional collaborators; nil fields are skipped.
type Deps struct {
	FindCache      *cache.QueryCache[proto.FindSongResponse]
	RecommendCache *cache.QueryCache[proto.RecommendResponse]
	Tracker        Tracker
	Metrics        *metrics.Metrics
	Tracing        bool
}

type Executor struct {
	idx         *index.Index
	matcher     *matcher.Matcher
	recommender *recommender.Recommender
	cfg         config.SearchConfig
	deps        Deps
	logger      *slog.Logger
}

func New(idx *index.Index, cfg config.SearchConfig, deps Deps) *Executor {
	m := matcher.New(idx, matcher.Options{
		Threshold:               cfg.MatchThreshold,
		ReportSubThresholdScore: cfg.ReportSubThresholdScore,
		ParallelThreshold:       cfg.ParallelThreshold,
		Workers:                 cfg.ScanWorkers,
	})
	r := recommender.New(idx, m.Scanner(), recommender.Options{
		DefaultCount: cfg.DefaultRecommendations,
		MaxCount:     cfg.MaxRecommendations,
	})
	if deps.Metrics != nil {
		deps.Metrics.CatalogSongs.Set(float64(idx.Catalog.Len()))
		deps.Metrics.VocabularySize.Set(float64(idx.Vectorizer.Dim()))
	}
	return &Executor{
		idx:         idx,
		matcher:     m,
		recommender: r,
		cfg:         cfg,
		deps:        deps,
		logger:      logger.WithComponent("search-executor"),
	}
}

func (e *Executor) Index() *index.Index { return e.idx }

func (e *Executor) FindCache() *cache.QueryCache[proto.FindSongResponse] { return e.deps.FindCache }

func (e *Executor) RecommendCache() *cache.QueryCache[proto.RecommendResponse] {
	return e.deps.RecommendCache
}

// count resolves an optional requested count against the configured default
// and maximum.
func (e *Executor) count(n *int) (int, error) {
	if n == nil {
		return e.recommender.DefaultCount(), nil
	}
	if *n < 0 {
		return 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "recommendation count must not be negative")
	}
	return min(*n, e.cfg.MaxRecommendations), nil
}

// Find matches req.Text against the catalog and, on a match, attaches the
// songs most similar to it. An empty text is a normal miss.
func (e *Executor) Find(ctx context.Context, req proto.FindSongRequest, source string) (proto.FindSongResponse, error) {
	start := time.Now()
	log := logger.FromContext(ctx)

	if e.cfg.MaxQueryLength > 0 && len(req.Text) > e.cfg.MaxQueryLength {
		return proto.FindSongResponse{}, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"query is %d bytes, limit is %d", len(req.Text), e.cfg.MaxQueryLength)
	}
	n, err := e.count(req.Recommendations)
	if err != nil {
		return proto.FindSongResponse{}, err
	}

	var span *tracing.Span
	if e.deps.Tracing {
		ctx, span = tracing.StartSpan(ctx, "find", logger.RequestID(ctx))
	}

	normalized := normalizer.Normalize(req.Text)
	compute := func() (proto.FindSongResponse, error) {
		return e.computeFind(ctx, req.Text, n), nil
	}

	var (
		resp   proto.FindSongResponse
		cached bool
	)
	if c := e.deps.FindCache; c != nil {
		resp, cached, err = c.GetOrCompute(ctx, c.Key("find", normalized, n), compute)
		if err != nil {
			return proto.FindSongResponse{}, err
		}
	} else {
		resp, _ = compute()
	}
	resp.Query = req.Text
	resp.Cached = cached
	latency := time.Since(start)
	resp.LatencyMs = float64(latency.Microseconds()) / 1000

	if span != nil {
		span.SetAttr("cached", cached)
		span.SetAttr("found", resp.Found)
		span.End()
		span.Log(log)
	}

	outcome := "not_found"
	switch {
	case normalized == "":
		outcome = "empty"
	case resp.Found:
		outcome = "found"
	}
	if m := e.deps.Metrics; m != nil {
		m.FindQueriesTotal.WithLabelValues(outcome).Inc()
		m.FindLatency.WithLabelValues(cacheStatus(e.deps.FindCache != nil, cached)).Observe(latency.Seconds())
		m.MatchScore.Observe(resp.Score)
	}

	log.Info("find completed",
		"outcome", outcome,
		"score", resp.Score,
		"recommendations", len(resp.Recommendations),
		"cache_hit", cached,
		"latency_ms", resp.LatencyMs,
		"source", source,
	)

	if e.deps.Tracker != nil {
		ev := analytics.FindEvent{
			Type:            analytics.EventFind,
			Query:           req.Text,
			Normalized:      normalized,
			Found:           resp.Found,
			Score:           resp.Score,
			Recommendations: len(resp.Recommendations),
			LatencyMs:       resp.LatencyMs,
			CacheHit:        cached,
			Source:          source,
			RequestID:       logger.RequestID(ctx),
			Timestamp:       time.Now().UTC(),
		}
		if resp.Song != nil {
			ev.Title, ev.Artist, ev.Mood = resp.Song.Title, resp.Song.Artist, resp.Song.Mood
		}
		e.deps.Tracker.Track(analytics.EventFind, ev)
	}
	return resp, nil
}

func (e *Executor) computeFind(ctx context.Context, text string, n int) proto.FindSongResponse {
	started := time.Now()
	res, tr := e.matcher.FindSongTraced(text)
	tracing.Record(ctx, "vectorize", started, tr.Vectorize, "terms", tr.Terms)
	tracing.Record(ctx, "scan", started.Add(tr.Vectorize), tr.Scan, "rows", e.idx.Matrix.Rows())
	if m := e.deps.Metrics; m != nil && tr.Normalized != "" {
		m.ScanDuration.Observe(tr.Scan.Seconds())
	}

	resp := proto.FindSongResponse{
		Normalized:      tr.Normalized,
		Found:           res.Found,
		Score:           res.Score,
		Threshold:       e.matcher.Threshold(),
		Recommendations: []proto.ScoredSong{},
		BuildID:         e.idx.BuildID,
	}
	if !res.Found {
		return resp
	}
	song := toSong(res.Index, res.Entry, true)
	resp.Song = &song

	recStart := time.Now()
	recs := e.recommender.RecommendIndex(res.Index, n)
	tracing.Record(ctx, "recommend", recStart, time.Since(recStart), "returned", len(recs))
	resp.Recommendations = toScored(recs)
	return resp
}

// Recommend returns songs similar to the first catalog song titled exactly
// req.Title. An unknown title is not an error: the response is empty and
// carries close title suggestions.
func (e *Executor) Recommend(ctx context.Context, req proto.RecommendRequest, source string) (proto.RecommendResponse, error) {
	start := time.Now()
	if req.Title == "" {
		return proto.RecommendResponse{}, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "title is required")
	}
	n, err := e.count(req.N)
	if err != nil {
		return proto.RecommendResponse{}, err
	}

	compute := func() (proto.RecommendResponse, error) {
		return e.computeRecommend(req.Title, n), nil
	}
	var (
		resp   proto.RecommendResponse
		cached bool
	)
	if c := e.deps.RecommendCache; c != nil {
		resp, cached, err = c.GetOrCompute(ctx, c.Key("recommend", req.Title, n), compute)
		if err != nil {
			return proto.RecommendResponse{}, err
		}
	} else {
		resp, _ = compute()
	}
	resp.Cached = cached
	latency := time.Since(start)

	if m := e.deps.Metrics; m != nil {
		m.RecommendationsTotal.Inc()
		m.RecommendationCount.Observe(float64(len(resp.Recommendations)))
	}
	logger.FromContext(ctx).Info("recommend completed",
		"title", req.Title,
		"found", resp.Found,
		"returned", len(resp.Recommendations),
		"cache_hit", cached,
		"latency_ms", latency.Milliseconds(),
		"source", source,
	)
	if e.deps.Tracker != nil {
		e.deps.Tracker.Track(analytics.EventRecommend, analytics.RecommendEvent{
			Type:      analytics.EventRecommend,
			Title:     req.Title,
			Found:     resp.Found,
			Returned:  len(resp.Recommendations),
			LatencyMs: float64(latency.Microseconds()) / 1000,
			CacheHit:  cached,
			Source:    source,
			RequestID: logger.RequestID(ctx),
			Timestamp: time.Now().UTC(),
		})
	}
	return resp, nil
}

func (e *Executor) computeRecommend(title string, n int) proto.RecommendResponse {
	resp := proto.RecommendResponse{
		Title:           title,
		Recommendations: []proto.ScoredSong{},
		BuildID:         e.idx.BuildID,
	}
	if _, ok := e.idx.Catalog.IndexOfTitle(title); !ok {
		for _, s := range e.idx.Catalog.SuggestTitles(title, suggestionCount) {
			resp.Suggestions = append(resp.Suggestions, proto.Suggestion{
				Title:      s.Title,
				Artist:     s.Artist,
				Similarity: s.Similarity,
			})
		}
		return resp
	}
	resp.Found = true
	resp.Recommendations = toScored(e.recommender.Recommend(title, n))
	return resp
}

func cacheStatus(enabled, hit bool) string {
	switch {
	case !enabled:
		return "disabled"
	case hit:
		return "hit"
	default:
		return "miss"
	}
}

// toSong converts a catalog entry for the wire. Placeholder lyrics are never
// sent.
func toSong(i int, e catalog.Entry, withLyrics bool) proto.Song {
	s := proto.Song{
		Index:     i,
		Title:     e.Title,
		Artist:    e.Artist,
		Mood:      e.Mood,
		HasLyrics: e.HasLyrics,
		ListenURL: catalog.SearchURL(e),
	}
	if withLyrics && e.HasLyrics {
		s.Lyrics = e.Lyrics
	}
	return s
}

// ToSong is toSong without lyrics, for list endpoints.
func ToSong(i int, e catalog.Entry) proto.Song { return toSong(i, e, false) }

func toScored(recs []recommender.Recommendation) []proto.ScoredSong {
	out := make([]proto.ScoredSong, len(recs))
	for k, r := range recs {
		out[k] = proto.ScoredSong{Song: toSong(r.Index, r.Entry, false), Score: r.Score}
	}
	return out
}
