// Package runlog records the outcome of every synchronization run in a
// local SQLite database, so `dmarchive history` can answer "when did this
// last run and what did it bring in" without parsing log files.
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// Run is one recorded synchronization run.
type Run struct {
	ID              string
	Friend          string
	StartedAt       time.Time
	FinishedAt      time.Time
	Outcome         string // "ok", "aborted", "failed"
	NewMessages     int64
	Duplicates      int64
	MediaDownloaded int64
	MediaFailed     int64
	PagesFetched    int64
	Detail          string // failure reason or abort cursor, empty on success
}

// Store persists run history in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open run database: %w", err)
	}

	// Single connection for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db, logger: logger}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run database migration failed: %w", err)
	}
	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id               TEXT PRIMARY KEY,
		friend           TEXT NOT NULL,
		started_at       DATETIME NOT NULL,
		finished_at      DATETIME NOT NULL,
		outcome          TEXT NOT NULL,
		new_messages     INTEGER DEFAULT 0,
		duplicates       INTEGER DEFAULT 0,
		media_downloaded INTEGER DEFAULT 0,
		media_failed     INTEGER DEFAULT 0,
		pages_fetched    INTEGER DEFAULT 0,
		detail           TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_friend ON runs(friend, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record inserts one finished run. A missing id is generated.
func (s *Store) Record(ctx context.Context, run Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, friend, started_at, finished_at, outcome,
		                   new_messages, duplicates, media_downloaded, media_failed,
		                   pages_fetched, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Friend, run.StartedAt, run.FinishedAt, run.Outcome,
		run.NewMessages, run.Duplicates, run.MediaDownloaded, run.MediaFailed,
		run.PagesFetched, run.Detail,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	s.logger.Debug("run recorded", "id", run.ID, "outcome", run.Outcome)
	return nil
}

// Recent returns the most recent runs for a friend, newest first.
func (s *Store) Recent(ctx context.Context, friend string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, friend, started_at, finished_at, outcome,
		        new_messages, duplicates, media_downloaded, media_failed,
		        pages_fetched, detail
		 FROM runs WHERE friend = ?
		 ORDER BY started_at DESC LIMIT ?`,
		friend, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Friend, &r.StartedAt, &r.FinishedAt, &r.Outcome,
			&r.NewMessages, &r.Duplicates, &r.MediaDownloaded, &r.MediaFailed,
			&r.PagesFetched, &r.Detail); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LastSuccessful returns the newest run with outcome "ok", or nil if the
// friend has never synced cleanly.
func (s *Store) LastSuccessful(ctx context.Context, friend string) (*Run, error) {
	runs, err := s.Recent(ctx, friend, 50)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		if runs[i].Outcome == "ok" {
			return &runs[i], nil
		}
	}
	return nil, nil
}

func (s *Store) Close() error { return s.db.Close() }
