package handler

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/index"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/vectorizer"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/rpc"
)

func newTestExecutor(t *testing.T, withCache bool) *executor.Executor {
	t.Helper()
	return newExecutorFor(t, []catalog.Entry{
		{Title: "Hujan", Artist: "Utopia", Mood: "sad", Lyrics: "hujan turun lagi di malam yang sepi aku menunggu", HasLyrics: true},
		{Title: "Pelangi", Artist: "HiVi!", Mood: "happy", Lyrics: "pelangi di matamu warna warni indah", HasLyrics: true},
		{Title: "Laut", Artist: "Iwan", Mood: "calm", Lyrics: "ombak laut biru tenang di pantai", HasLyrics: true},
		{Title: "Gerimis", Artist: "Utopia", Mood: "sad", Lyrics: "gerimis di malam sepi", HasLyrics: true},
		{Title: "Sunyi", Artist: "Anon", Mood: "sad"},
	}, withCache)
}

func newExecutorFor(t *testing.T, entries []catalog.Entry, withCache bool) *executor.Executor {
	t.Helper()
	idx, err := index.Build(entries, vectorizer.Options{}, "build-h")
	if err != nil {
		t.Fatal(err)
	}
	var deps executor.Deps
	if withCache {
		cfg := cache.Config{LocalSize: 16, LocalTTL: time.Minute}
		cfg.Namespace = "find"
		deps.FindCache = cache.New[proto.FindSongResponse](idx.BuildID, nil, cfg, nil)
		cfg.Namespace = "recommend"
		deps.RecommendCache = cache.New[proto.RecommendResponse](idx.BuildID, nil, cfg, nil)
	}
	return executor.New(idx, config.SearchConfig{
		MatchThreshold:          0.1,
		ReportSubThresholdScore: true,
		DefaultRecommendations:  2,
		MaxRecommendations:      4,
		MoodSampleSize:          2,
		MaxQueryLength:          100,
	}, deps)
}

func newTestServer(t *testing.T, withCache bool) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	New(newTestExecutor(t, withCache), 2).Register(mux)
	return middleware.RequestID(mux)
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %s: %v", rec.Body.String(), err)
	}
	return v
}

func TestFindGet(t *testing.T) {
	h := newTestServer(t, false)
	rec := do(t, h, http.MethodGet, "/api/v1/find?q=pelangi+di+matamu&n=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	resp := decode[proto.FindSongResponse](t, rec)
	if !resp.Found || resp.Song.Title != "Pelangi" {
		t.Fatalf("resp = %+v", resp)
	}
	if len(resp.Recommendations) != 1 {
		t.Errorf("got %d recommendations, want 1", len(resp.Recommendations))
	}
	if !strings.HasPrefix(resp.Song.ListenURL, "https://www.youtube.com/results?search_query=") {
		t.Errorf("ListenURL = %q", resp.Song.ListenURL)
	}
}

func TestFindPost(t *testing.T) {
	h := newTestServer(t, false)
	rec := do(t, h, http.MethodPost, "/api/v1/find", `{"text":"gerimis di malam","recommendations":0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	resp := decode[proto.FindSongResponse](t, rec)
	if !resp.Found || resp.Song.Title != "Gerimis" || len(resp.Recommendations) != 0 {
		t.Errorf("resp = %+v", resp)
	}

	rec = do(t, h, http.MethodPost, "/api/v1/find", `{"text":`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d", rec.Code)
	}
	errResp := decode[proto.ErrorResponse](t, rec)
	if errResp.RequestID == "" {
		t.Error("error response should carry the request id")
	}
}

func TestFindErrors(t *testing.T) {
	h := newTestServer(t, false)
	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"bad n", "/api/v1/find?q=hujan&n=abc", http.StatusBadRequest},
		{"negative n", "/api/v1/find?q=hujan&n=-2", http.StatusBadRequest},
		{"too long", "/api/v1/find?q=" + strings.Repeat("a", 101), http.StatusBadRequest},
		{"empty query is a miss", "/api/v1/find", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, http.MethodGet, tt.target, ""); rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestRecommendEndpoint(t *testing.T) {
	h := newTestServer(t, true)
	rec := do(t, h, http.MethodGet, "/api/v1/recommend?title=Hujan&n=3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[proto.RecommendResponse](t, rec)
	if !resp.Found || len(resp.Recommendations) != 3 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Recommendations[0].Title != "Gerimis" {
		t.Errorf("top recommendation = %q, want Gerimis", resp.Recommendations[0].Title)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/recommend?title=Hujan&n=3", "")
	if resp := decode[proto.RecommendResponse](t, rec); !resp.Cached {
		t.Error("repeat request should be served from cache")
	}

	rec = do(t, h, http.MethodGet, "/api/v1/recommend?title=Nothing+Like+It", "")
	resp = decode[proto.RecommendResponse](t, rec)
	if rec.Code != http.StatusOK || resp.Found || len(resp.Recommendations) != 0 {
		t.Errorf("unknown title: %d %+v", rec.Code, resp)
	}

	if rec := do(t, h, http.MethodGet, "/api/v1/recommend", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("missing title status = %d", rec.Code)
	}
}

func TestDuplicateTitlesKeepTheirIndex(t *testing.T) {
	mux := http.NewServeMux()
	New(newExecutorFor(t, []catalog.Entry{
		{Title: "Hujan", Artist: "Utopia", Mood: "sad", Lyrics: "hujan turun lagi di malam sepi", HasLyrics: true},
		{Title: "Hujan", Artist: "Cover", Mood: "happy", Lyrics: "hujan reda matahari bersinar", HasLyrics: true},
	}, false), 5).Register(mux)

	songs := decode[proto.MoodSongsResponse](t, do(t, mux, http.MethodGet, "/api/v1/moods/happy/songs", ""))
	if len(songs.Songs) != 1 {
		t.Fatalf("songs = %+v", songs.Songs)
	}
	if s := songs.Songs[0]; s.Index != 1 || s.Artist != "Cover" {
		t.Errorf("happy Hujan = index %d by %q, want index 1 by Cover", s.Index, s.Artist)
	}

	artist := decode[proto.ArtistResponse](t, do(t, mux, http.MethodGet, "/api/v1/artists/Cover", ""))
	if len(artist.Songs) != 1 || artist.Songs[0].Index != 1 {
		t.Errorf("artist songs = %+v, want the song at index 1", artist.Songs)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	h := newTestServer(t, false)

	moods := decode[proto.ListResponse](t, do(t, h, http.MethodGet, "/api/v1/moods", ""))
	if moods.Total != 3 {
		t.Errorf("moods = %+v", moods)
	}

	rec := do(t, h, http.MethodGet, "/api/v1/moods/sad/songs", "")
	songs := decode[proto.MoodSongsResponse](t, rec)
	if len(songs.Songs) != 2 {
		t.Errorf("default sample size: got %d songs", len(songs.Songs))
	}
	for _, s := range songs.Songs {
		if s.Mood != "sad" {
			t.Errorf("song %q has mood %q", s.Title, s.Mood)
		}
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/moods/angry/songs", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown mood status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/moods/sad/songs?n=0", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("n=0 status = %d", rec.Code)
	}

	artist := decode[proto.ArtistResponse](t, do(t, h, http.MethodGet, "/api/v1/artists/Utopia", ""))
	if artist.TotalSongs != 2 || len(artist.Songs) != 2 {
		t.Errorf("artist = %+v", artist)
	}
	if len(artist.MoodDistribution) != 1 || artist.MoodDistribution[0].Count != 2 {
		t.Errorf("mood distribution = %+v", artist.MoodDistribution)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/artists/Nobody", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown artist status = %d", rec.Code)
	}

	stats := decode[catalog.Stats](t, do(t, h, http.MethodGet, "/api/v1/stats", ""))
	if stats.TotalSongs != 5 || stats.UniqueMoods != 3 {
		t.Errorf("stats = %+v", stats)
	}

	info := decode[index.Info](t, do(t, h, http.MethodGet, "/api/v1/index", ""))
	if info.BuildID != "build-h" || info.Songs != 5 {
		t.Errorf("info = %+v", info)
	}
}

func TestCacheEndpoints(t *testing.T) {
	h := newTestServer(t, false)
	if rec := do(t, h, http.MethodPost, "/api/v1/cache/invalidate", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("invalidate without cache status = %d", rec.Code)
	}

	h = newTestServer(t, true)
	do(t, h, http.MethodGet, "/api/v1/find?q=hujan", "")
	do(t, h, http.MethodGet, "/api/v1/find?q=hujan", "")
	rec := do(t, h, http.MethodGet, "/api/v1/cache/stats", "")
	stats := decode[map[string]cache.Stats](t, rec)
	if stats["find"].Hits != 1 || stats["find"].Misses != 1 {
		t.Errorf("find cache stats = %+v", stats["find"])
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/cache/invalidate", ""); rec.Code != http.StatusOK {
		t.Errorf("invalidate status = %d", rec.Code)
	}
	resp := decode[proto.FindSongResponse](t, do(t, h, http.MethodGet, "/api/v1/find?q=hujan", ""))
	if resp.Cached {
		t.Error("result should be recomputed after invalidation")
	}
}

func TestRPC(t *testing.T) {
	srv := rpc.NewServer()
	RegisterRPC(srv, newTestExecutor(t, false))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go srv.Serve(ln)
	t.Cleanup(srv.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := rpc.Dial(ctx, ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	var found proto.FindSongResponse
	if err := client.Call(ctx, MethodFindSong, proto.FindSongRequest{Text: "ombak laut biru"}, &found); err != nil {
		t.Fatal(err)
	}
	if !found.Found || found.Song.Title != "Laut" {
		t.Errorf("find = %+v", found)
	}

	var recs proto.RecommendResponse
	err = client.Call(ctx, MethodRecommend, proto.RecommendRequest{}, &recs)
	callErr, ok := err.(*rpc.CallError)
	if !ok || callErr.Status != http.StatusBadRequest {
		t.Errorf("empty title err = %v", err)
	}

	var info index.Info
	if err := client.Call(ctx, MethodIndexInfo, nil, &info); err != nil {
		t.Fatal(err)
	}
	if info.Songs != 5 {
		t.Errorf("info = %+v", info)
	}
}
