package analytics

import "time"

type EventType string

const (
	EventFind      EventType = "find"
	EventRecommend EventType = "recommend"
)

// FindEvent describes one lyric search.
type FindEvent struct {
	Type            EventType `json:"type"`
	Query           string    `json:"query"`
	Normalized      string    `json:"normalized"`
	Found           bool      `json:"found"`
	Score           float64   `json:"score"`
	Title           string    `json:"title,omitempty"`
	Artist          string    `json:"artist,omitempty"`
	Mood            string    `json:"mood,omitempty"`
	Recommendations int       `json:"recommendations"`
	LatencyMs       float64   `json:"latency_ms"`
	CacheHit        bool      `json:"cache_hit"`
	Source          string    `json:"source"`
	RequestID       string    `json:"request_id,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// RecommendEvent describes one title-anchored recommendation request.
type RecommendEvent struct {
	Type      EventType `json:"type"`
	Title     string    `json:"title"`
	Found     bool      `json:"found"`
	Returned  int       `json:"returned"`
	LatencyMs float64   `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Source    string    `json:"source"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
