package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/melodetect/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/proto"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	executor   *executor.Executor
	sampleSize int
	logger     *slog.Logger
}

// New builds the HTTP handler. sampleSize is the number of songs returned
// per mood listing when the caller does not pass n.
func New(exec *executor.Executor, sampleSize int) *Handler {
	return &Handler{
		executor:   exec,
		sampleSize: sampleSize,
		logger:     logger.WithComponent("search-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/find", h.FindGet)
	mux.HandleFunc("POST /api/v1/find", h.FindPost)
	mux.HandleFunc("GET /api/v1/recommend", h.Recommend)
	mux.HandleFunc("GET /api/v1/moods", h.Moods)
	mux.HandleFunc("GET /api/v1/moods/{mood}/songs", h.MoodSongs)
	mux.HandleFunc("GET /api/v1/artists", h.Artists)
	mux.HandleFunc("GET /api/v1/artists/{artist}", h.Artist)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/index", h.IndexInfo)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// FindGet handles GET /api/v1/find?q=...&n=...
func (h *Handler) FindGet(w http.ResponseWriter, r *http.Request) {
	n, ok := h.optionalInt(w, r, "n")
	if !ok {
		return
	}
	h.find(w, r, proto.FindSongRequest{Text: r.URL.Query().Get("q"), Recommendations: n})
}

// FindPost handles POST /api/v1/find with a FindSongRequest body.
func (h *Handler) FindPost(w http.ResponseWriter, r *http.Request) {
	var req proto.FindSongRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	h.find(w, r, req)
}

func (h *Handler) find(w http.ResponseWriter, r *http.Request, req proto.FindSongRequest) {
	resp, err := h.executor.Find(r.Context(), req, "http")
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Recommend handles GET /api/v1/recommend?title=...&n=...
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	n, ok := h.optionalInt(w, r, "n")
	if !ok {
		return
	}
	resp, err := h.executor.Recommend(r.Context(), proto.RecommendRequest{
		Title: r.URL.Query().Get("title"),
		N:     n,
	}, "http")
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Moods(w http.ResponseWriter, r *http.Request) {
	moods := h.executor.Index().Catalog.Moods()
	h.writeJSON(w, http.StatusOK, proto.ListResponse{Items: moods, Total: len(moods)})
}

// MoodSongs returns a random sample of songs tagged with the path mood.
func (h *Handler) MoodSongs(w http.ResponseWriter, r *http.Request) {
	cat := h.executor.Index().Catalog
	mood := r.PathValue("mood")
	if !cat.HasMood(mood) {
		h.writeError(w, r, http.StatusNotFound, "unknown mood: "+mood)
		return
	}
	n := h.sampleSize
	if p, ok := h.optionalInt(w, r, "n"); !ok {
		return
	} else if p != nil {
		if *p <= 0 {
			h.writeError(w, r, http.StatusBadRequest, "n must be positive")
			return
		}
		n = *p
	}
	sample := cat.SampleByMood(mood, n, nil)
	songs := make([]proto.Song, len(sample))
	for i, s := range sample {
		songs[i] = executor.ToSong(s.Index, s.Entry)
	}
	h.writeJSON(w, http.StatusOK, proto.MoodSongsResponse{Mood: mood, Songs: songs})
}

func (h *Handler) Artists(w http.ResponseWriter, r *http.Request) {
	artists := h.executor.Index().Catalog.Artists()
	h.writeJSON(w, http.StatusOK, proto.ListResponse{Items: artists, Total: len(artists)})
}

func (h *Handler) Artist(w http.ResponseWriter, r *http.Request) {
	cat := h.executor.Index().Catalog
	artist := r.PathValue("artist")
	profile, ok := cat.ArtistProfile(artist)
	if !ok {
		h.writeError(w, r, http.StatusNotFound, "unknown artist: "+artist)
		return
	}
	resp := proto.ArtistResponse{
		Artist:           profile.Artist,
		TotalSongs:       len(profile.Songs),
		Songs:            make([]proto.Song, len(profile.Songs)),
		MoodDistribution: make([]proto.CountItem, len(profile.MoodDistribution)),
	}
	for i, s := range profile.Songs {
		resp.Songs[i] = executor.ToSong(s.Index, s.Entry)
	}
	for i, c := range profile.MoodDistribution {
		resp.MoodDistribution[i] = proto.CountItem{Name: c.Name, Count: c.Count}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.executor.Index().Catalog.Stats())
}

func (h *Handler) IndexInfo(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.executor.Index().Info())
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	find, rec := h.executor.FindCache(), h.executor.RecommendCache()
	if find == nil && rec == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	out := map[string]any{}
	if find != nil {
		out["find"] = find.Stats()
	}
	if rec != nil {
		out["recommend"] = rec.Stats()
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	find, rec := h.executor.FindCache(), h.executor.RecommendCache()
	if find == nil && rec == nil {
		h.writeError(w, r, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	var removed int64
	if find != nil {
		n, err := find.Invalidate(r.Context())
		if err != nil {
			h.logger.Error("cache invalidation failed", "cache", "find", "error", err)
			h.writeError(w, r, http.StatusInternalServerError, "cache invalidation failed")
			return
		}
		removed += n
	}
	if rec != nil {
		n, err := rec.Invalidate(r.Context())
		if err != nil {
			h.logger.Error("cache invalidation failed", "cache", "recommend", "error", err)
			h.writeError(w, r, http.StatusInternalServerError, "cache invalidation failed")
			return
		}
		removed += n
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_removed": removed})
}

// optionalInt parses an integer query parameter. It writes a 400 and
// returns ok=false when the value is malformed.
func (h *Handler) optionalInt(w http.ResponseWriter, r *http.Request, name string) (*int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, name+" must be an integer")
		return nil, false
	}
	return &v, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.writeJSON(w, status, proto.ErrorResponse{
		Error:     message,
		RequestID: middleware.GetRequestID(r.Context()),
	})
}

func (h *Handler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	msg := "internal server error"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	h.writeError(w, r, status, msg)
}
