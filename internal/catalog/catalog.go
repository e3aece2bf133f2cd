// Package catalog holds the ordered list of labeled songs. Position i in the
// catalog is row i of the lyric matrix, so the order never changes after
// construction.
package catalog

import (
	"fmt"
	"slices"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/melodetect/pkg/errors"
)

// MissingLyrics replaces the lyrics of songs stored without full text.
const MissingLyrics = "Lirik tidak tersedia."

type Entry struct {
	Title     string `json:"title" validate:"required"`
	Artist    string `json:"artist"`
	Mood      string `json:"mood" validate:"required"`
	Lyrics    string `json:"lyrics"`
	HasLyrics bool   `json:"has_lyrics"`
}

// Song is an entry paired with its catalog position, which is the song's
// identity: titles are not unique.
type Song struct {
	Index int `json:"index"`
	Entry
}

// Catalog is immutable and safe for concurrent reads.
type Catalog struct {
	entries []Entry
	titles  map[string]int
	moods   []string
	artists []string

	stats func() Stats
}

func New(entries []Entry) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: catalog has no songs", apperrors.ErrInvalidCatalog)
	}
	c := &Catalog{
		entries: entries,
		titles:  make(map[string]int, len(entries)),
	}
	moods := make(map[string]struct{})
	artists := make(map[string]struct{})
	for i := range entries {
		e := &entries[i]
		if err := validate.Struct(e); err != nil {
			return nil, fmt.Errorf("%w: song %d: %v", apperrors.ErrInvalidCatalog, i, err)
		}
		if !e.HasLyrics {
			e.Lyrics = MissingLyrics
		}
		if _, dup := c.titles[e.Title]; !dup {
			c.titles[e.Title] = i
		}
		moods[e.Mood] = struct{}{}
		artists[e.Artist] = struct{}{}
	}
	c.moods = sortedKeys(moods)
	c.artists = sortedKeys(artists)
	c.stats = sync.OnceValue(c.computeStats)
	return c, nil
}

func (c *Catalog) Len() int { return len(c.entries) }

func (c *Catalog) Entry(i int) Entry { return c.entries[i] }

// Entries returns the backing slice; callers must not modify it.
func (c *Catalog) Entries() []Entry { return c.entries }

// IndexOfTitle finds a song by exact title. Duplicate titles resolve to the
// first occurrence.
func (c *Catalog) IndexOfTitle(title string) (int, bool) {
	i, ok := c.titles[title]
	return i, ok
}

// HasMood reports whether any song carries the mood label.
func (c *Catalog) HasMood(mood string) bool {
	_, ok := slices.BinarySearch(c.moods, mood)
	return ok
}

func (c *Catalog) Moods() []string { return slices.Clone(c.moods) }

func (c *Catalog) Artists() []string { return slices.Clone(c.artists) }

func (c *Catalog) ByMood(mood string) []Song {
	return c.filter(func(e Entry) bool { return e.Mood == mood })
}

func (c *Catalog) ByArtist(artist string) []Song {
	return c.filter(func(e Entry) bool { return e.Artist == artist })
}

// filter returns matching songs in catalog order.
func (c *Catalog) filter(keep func(Entry) bool) []Song {
	var out []Song
	for i, e := range c.entries {
		if keep(e) {
			out = append(out, Song{Index: i, Entry: e})
		}
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
