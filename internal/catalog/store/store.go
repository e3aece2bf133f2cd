// Package store reads and writes labeled songs in a SQLite database, an
// alternative to JSON exports as the source for an index build.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/catalog"
)

type Song struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	Title      string `gorm:"not null;index:idx_song_meta,priority:1"`
	Artist     string `gorm:"not null;index:idx_song_meta,priority:2"`
	Mood       string `gorm:"not null;index:idx_song_mood"`
	LyricsFull *string
}

type Store struct {
	DB *gorm.DB
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Song{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &Store{DB: db, db: sqlDB}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Entries returns every song in insertion order, which becomes catalog
// order.
func (s *Store) Entries(ctx context.Context) ([]catalog.Entry, error) {
	var songs []Song
	if err := s.DB.WithContext(ctx).Order("id ASC").Find(&songs).Error; err != nil {
		return nil, fmt.Errorf("listing songs: %w", err)
	}
	entries := make([]catalog.Entry, len(songs))
	for i, song := range songs {
		e := catalog.Entry{Title: song.Title, Artist: song.Artist, Mood: song.Mood, Lyrics: catalog.MissingLyrics}
		if song.LyricsFull != nil {
			e.Lyrics = *song.LyricsFull
			e.HasLyrics = true
		}
		entries[i] = e
	}
	return entries, nil
}

// Import appends entries in one transaction.
func (s *Store) Import(ctx context.Context, entries []catalog.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	songs := make([]Song, len(entries))
	for i, e := range entries {
		songs[i] = Song{Title: e.Title, Artist: e.Artist, Mood: e.Mood}
		if e.HasLyrics {
			lyrics := e.Lyrics
			songs[i].LyricsFull = &lyrics
		}
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(songs, 500).Error; err != nil {
			return fmt.Errorf("inserting songs: %w", err)
		}
		return nil
	})
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&Song{}).Count(&n).Error
	return n, err
}
