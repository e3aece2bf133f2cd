// Package proto defines the message types exchanged over the internal RPC
// layer (pkg/rpc) and returned by the public HTTP API. They are plain
// structs with JSON tags.
package proto

// Song is one catalog entry as seen by callers.
type Song struct {
	Index     int    `json:"index"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Mood      string `json:"mood"`
	Lyrics    string `json:"lyrics,omitempty"`
	HasLyrics bool   `json:"has_lyrics"`
	ListenURL string `json:"listen_url,omitempty"`
}

type ScoredSong struct {
	Song
	Score float64 `json:"score"`
}

// FindSongRequest asks for the song matching a lyric fragment, typically a
// speech transcript. Recommendations is the number of similar songs to
// return with a match; nil means the server default and 0 means none.
type FindSongRequest struct {
	Text            string `json:"text"`
	Recommendations *int   `json:"recommendations,omitempty"`
}

type FindSongResponse struct {
	Query           string       `json:"query"`
	Normalized      string       `json:"normalized"`
	Found           bool         `json:"found"`
	Score           float64      `json:"score"`
	Threshold       float64      `json:"threshold"`
	Song            *Song        `json:"song,omitempty"`
	Recommendations []ScoredSong `json:"recommendations"`
	BuildID         string       `json:"build_id"`
	Cached          bool         `json:"cached"`
	LatencyMs       float64      `json:"latency_ms"`
}

type RecommendRequest struct {
	Title string `json:"title"`
	N     *int   `json:"n,omitempty"`
}

type RecommendResponse struct {
	Title           string       `json:"title"`
	Found           bool         `json:"found"`
	Recommendations []ScoredSong `json:"recommendations"`
	Suggestions     []Suggestion `json:"suggestions,omitempty"`
	BuildID         string       `json:"build_id"`
	Cached          bool         `json:"cached"`
}

// Suggestion is a catalog title close to an unknown recommendation anchor.
type Suggestion struct {
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Similarity float32 `json:"similarity"`
}

type MoodSongsResponse struct {
	Mood  string `json:"mood"`
	Songs []Song `json:"songs"`
}

type ListResponse struct {
	Items []string `json:"items"`
	Total int      `json:"total"`
}

type CountItem struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type ArtistResponse struct {
	Artist           string      `json:"artist"`
	TotalSongs       int         `json:"total_songs"`
	Songs            []Song      `json:"songs"`
	MoodDistribution []CountItem `json:"mood_distribution"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
