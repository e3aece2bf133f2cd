package catalog

import (
	"cmp"
	"math/rand/v2"
	"net/url"
	"slices"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/normalizer"
)

const (
	topArtistCount = 10
	topWordCount   = 20

	// MinSuggestionSimilarity is the Jaro-Winkler floor for title suggestions.
	MinSuggestionSimilarity = 0.7
)

type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type ArtistProfile struct {
	Artist           string  `json:"artist"`
	Songs            []Song  `json:"songs"`
	MoodDistribution []Count `json:"mood_distribution"`
}

type Stats struct {
	TotalSongs    int     `json:"total_songs"`
	UniqueArtists int     `json:"unique_artists"`
	UniqueMoods   int     `json:"unique_moods"`
	MoodCounts    []Count `json:"mood_counts"`
	TopArtists    []Count `json:"top_artists"`
	TopWords      []Count `json:"top_words"`
}

type Suggestion struct {
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Similarity float32 `json:"similarity"`
}

// ArtistProfile returns ok=false when the artist has no songs.
func (c *Catalog) ArtistProfile(artist string) (ArtistProfile, bool) {
	songs := c.ByArtist(artist)
	if len(songs) == 0 {
		return ArtistProfile{}, false
	}
	moods := make(map[string]int)
	for _, s := range songs {
		moods[s.Mood]++
	}
	return ArtistProfile{Artist: artist, Songs: songs, MoodDistribution: ranked(moods, 0)}, true
}

// Stats summarises the catalog. Songs sharing title and artist are counted
// once.
func (c *Catalog) Stats() Stats { return c.stats() }

func (c *Catalog) computeStats() Stats {
	type key struct{ title, artist string }
	seen := make(map[key]struct{}, len(c.entries))
	moods := make(map[string]int)
	artists := make(map[string]int)
	words := make(map[string]int)
	for _, e := range c.entries {
		k := key{e.Title, e.Artist}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		moods[e.Mood]++
		artists[e.Artist]++
		if !e.HasLyrics {
			continue
		}
		for _, w := range strings.Fields(normalizer.Normalize(e.Lyrics)) {
			if len([]rune(w)) < 2 {
				continue
			}
			if _, stop := stopWords[w]; stop {
				continue
			}
			words[w]++
		}
	}
	return Stats{
		TotalSongs:    len(seen),
		UniqueArtists: len(artists),
		UniqueMoods:   len(moods),
		MoodCounts:    ranked(moods, 0),
		TopArtists:    ranked(artists, topArtistCount),
		TopWords:      ranked(words, topWordCount),
	}
}

// ranked orders counts descending with names ascending on ties. limit <= 0
// keeps everything.
func ranked(counts map[string]int, limit int) []Count {
	out := make([]Count, 0, len(counts))
	for name, n := range counts {
		out = append(out, Count{Name: name, Count: n})
	}
	slices.SortFunc(out, func(a, b Count) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SampleByMood picks up to n distinct songs of the mood at random. A nil rng
// uses the global source.
func (c *Catalog) SampleByMood(mood string, n int, rng *rand.Rand) []Song {
	pool := c.ByMood(mood)
	if n <= 0 || len(pool) == 0 {
		return nil
	}
	if n > len(pool) {
		n = len(pool)
	}
	intN := rand.IntN
	if rng != nil {
		intN = rng.IntN
	}
	// partial Fisher-Yates
	for i := 0; i < n; i++ {
		j := i + intN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}

// SuggestTitles returns up to n titles close to q, most similar first.
func (c *Catalog) SuggestTitles(q string, n int) []Suggestion {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" || n <= 0 {
		return nil
	}
	var out []Suggestion
	for i, e := range c.entries {
		if c.titles[e.Title] != i {
			continue
		}
		sim, err := edlib.StringsSimilarity(q, strings.ToLower(e.Title), edlib.JaroWinkler)
		if err != nil || sim < MinSuggestionSimilarity {
			continue
		}
		out = append(out, Suggestion{Title: e.Title, Artist: e.Artist, Similarity: sim})
	}
	slices.SortStableFunc(out, func(a, b Suggestion) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// SearchURL links to a YouTube search for the song's lyrics video.
func SearchURL(e Entry) string {
	q := strings.TrimSpace(e.Artist + " " + e.Title + " lyrics")
	return "https://www.youtube.com/results?search_query=" + url.QueryEscape(q)
}
