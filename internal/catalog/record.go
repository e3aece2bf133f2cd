package catalog

import (
	"bytes"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	apperrors "github.com/Adithya-Monish-Kumar-K/melodetect/pkg/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Record is one song as stored on disk. Pointer fields distinguish a missing
// key from an empty value. Older exports call the mood field "emotion".
type Record struct {
	Title      *string `json:"title" validate:"required"`
	Artist     *string `json:"artist" validate:"required"`
	Mood       *string `json:"mood,omitempty"`
	Emotion    *string `json:"emotion,omitempty"`
	LyricsFull *string `json:"lyrics_full,omitempty"`
}

// File is the catalog artifact layout.
type File struct {
	BuildID string   `json:"build_id"`
	Songs   []Record `json:"songs"`
}

// Entry converts and validates a record.
func (r Record) Entry() (Entry, error) {
	if err := validate.Struct(r); err != nil {
		return Entry{}, err
	}
	mood := r.Mood
	if mood == nil {
		mood = r.Emotion
	}
	if mood == nil {
		return Entry{}, fmt.Errorf("missing mood")
	}
	e := Entry{Title: *r.Title, Artist: *r.Artist, Mood: *mood}
	if r.LyricsFull != nil {
		e.Lyrics = *r.LyricsFull
		e.HasLyrics = true
	} else {
		e.Lyrics = MissingLyrics
	}
	return e, validate.Struct(e)
}

// RecordOf is the inverse of Record.Entry.
func RecordOf(e Entry) Record {
	r := Record{Title: &e.Title, Artist: &e.Artist, Mood: &e.Mood}
	if e.HasLyrics {
		r.LyricsFull = &e.Lyrics
	}
	return r
}

// Unmarshal decodes either a catalog artifact object or a bare array of
// records, which is the shape of labeled exports fed to the index build.
// The build id is empty for bare arrays.
func Unmarshal(data []byte) (string, []Entry, error) {
	var f File
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &f.Songs); err != nil {
			return "", nil, fmt.Errorf("%w: %v", apperrors.ErrArtifactCorrupt, err)
		}
	} else if err := json.Unmarshal(trimmed, &f); err != nil {
		return "", nil, fmt.Errorf("%w: %v", apperrors.ErrArtifactCorrupt, err)
	}

	entries := make([]Entry, len(f.Songs))
	for i, r := range f.Songs {
		e, err := r.Entry()
		if err != nil {
			return "", nil, fmt.Errorf("%w: song %d: %v", apperrors.ErrInvalidCatalog, i, err)
		}
		entries[i] = e
	}
	return f.BuildID, entries, nil
}

func Marshal(buildID string, entries []Entry) ([]byte, error) {
	f := File{BuildID: buildID, Songs: make([]Record, len(entries))}
	for i, e := range entries {
		f.Songs[i] = RecordOf(e)
	}
	return json.Marshal(f)
}
