package lyricflow

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists training runs, per-epoch logs and generated lyrics in sqlite
type Store struct {
	db *sql.DB
}

// EpochRecord is one row of a run's training history
type EpochRecord struct {
	Epoch int
	Logs  map[string]float64
}

// LyricRecord is one generated lyric
type LyricRecord struct {
	Seed      string
	WordCount int
	Censored  bool
	Text      string
	Created   time.Time
}

// OpenStore opens (creating if needed) the database at path
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("lyricflow: open store: %w", err)
	}
	schema := []string{
		`CREATE TABLE IF NOT EXISTS runs(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts REAL NOT NULL,
			config TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS epochs(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL,
			epoch INTEGER NOT NULL,
			logs TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS lyrics(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts REAL NOT NULL,
			seed TEXT NOT NULL,
			word_count INTEGER NOT NULL,
			censored INTEGER NOT NULL,
			text TEXT NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("lyricflow: init store: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close releases the database handle
func (s *Store) Close() error {
	return s.db.Close()
}

func now() float64 {
	return float64(time.Now().UnixMilli()) / 1000.0
}

// BeginRun records a new training run and returns its id
func (s *Store) BeginRun(cfg TrainConfig) (int64, error) {
	blob, err := json.Marshal(cfg)
	if err != nil {
		return 0, err
	}
	res, err := s.db.Exec("INSERT INTO runs(ts, config) VALUES(?,?)", now(), string(blob))
	if err != nil {
		return 0, fmt.Errorf("lyricflow: begin run: %w", err)
	}
	return res.LastInsertId()
}

// RecordEpoch stores the logs of one finished epoch
func (s *Store) RecordEpoch(runID int64, epoch int, logs map[string]float64) error {
	blob, err := json.Marshal(logs)
	if err != nil {
		return err
	}
	_, err = s.db.Exec("INSERT INTO epochs(run_id, epoch, logs) VALUES(?,?,?)", runID, epoch, string(blob))
	if err != nil {
		return fmt.Errorf("lyricflow: record epoch %d: %w", epoch, err)
	}
	return nil
}

// EpochHistory returns a run's epochs in order
func (s *Store) EpochHistory(runID int64) ([]EpochRecord, error) {
	rows, err := s.db.Query("SELECT epoch, logs FROM epochs WHERE run_id = ? ORDER BY epoch ASC", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []EpochRecord
	for rows.Next() {
		var rec EpochRecord
		var blob string
		if err := rows.Scan(&rec.Epoch, &blob); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(blob), &rec.Logs); err != nil {
			return nil, err
		}
		history = append(history, rec)
	}
	return history, rows.Err()
}

// SaveLyric stores one generated lyric
func (s *Store) SaveLyric(rec LyricRecord) error {
	censored := 0
	if rec.Censored {
		censored = 1
	}
	_, err := s.db.Exec("INSERT INTO lyrics(ts, seed, word_count, censored, text) VALUES(?,?,?,?,?)",
		now(), rec.Seed, rec.WordCount, censored, rec.Text)
	if err != nil {
		return fmt.Errorf("lyricflow: save lyric: %w", err)
	}
	return nil
}

// RecentLyrics returns up to limit lyrics, oldest first
func (s *Store) RecentLyrics(limit int) ([]LyricRecord, error) {
	rows, err := s.db.Query("SELECT ts, seed, word_count, censored, text FROM lyrics ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lyrics []LyricRecord
	for rows.Next() {
		var rec LyricRecord
		var ts float64
		var censored int
		if err := rows.Scan(&ts, &rec.Seed, &rec.WordCount, &censored, &rec.Text); err != nil {
			return nil, err
		}
		rec.Censored = censored != 0
		rec.Created = time.UnixMilli(int64(ts * 1000))
		lyrics = append(lyrics, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Reverse to chronological order
	for i, j := 0, len(lyrics)-1; i < j; i, j = i+1, j-1 {
		lyrics[i], lyrics[j] = lyrics[j], lyrics[i]
	}
	return lyrics, nil
}
