// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog records pipeline runs in a SQLite database so that past
// reconstructions can be listed and exported.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/obs-wrangler/pkg/types"
)

// ErrNotFound means no run has the requested ID.
var ErrNotFound = errors.New("run not found")

const timeLayout = time.RFC3339Nano

// Store manages the run catalog database.
type Store struct {
	db    *sql.DB
	path  string
	clock clockwork.Clock
	newID func() string
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for run timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithIDFunc sets the run ID generator.
func WithIDFunc(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// Open opens or creates the catalog database at cfg.Path and creates the
// schema if it does not exist.
func Open(cfg types.CatalogConfig, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating catalog directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:    db,
		path:  cfg.Path,
		clock: clockwork.NewRealClock(),
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			status TEXT NOT NULL,
			input_path TEXT NOT NULL,
			output_dir TEXT NOT NULL,
			global_mean INTEGER NOT NULL,
			skip_months INTEGER NOT NULL,
			n_time INTEGER NOT NULL DEFAULT 0,
			n_lat INTEGER NOT NULL DEFAULT 0,
			n_lon INTEGER NOT NULL DEFAULT 0,
			time_start TEXT,
			time_end TEXT,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Begin records a new running run. It assigns the ID and start time and
// returns the stored record.
func (s *Store) Begin(ctx context.Context, run types.Run) (types.Run, error) {
	run.ID = s.newID()
	run.StartedAt = s.clock.Now().UTC()
	run.FinishedAt = time.Time{}
	run.Status = types.RunRunning
	run.Error = ""

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, status, input_path, output_dir, global_mean, skip_months)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.Format(timeLayout), string(run.Status),
		run.InputPath, run.OutputDir, run.GlobalMean, run.SkipMonths,
	)
	if err != nil {
		return types.Run{}, fmt.Errorf("inserting run: %w", err)
	}
	return run, nil
}

// Finish marks run as finished. A nil runErr records success along with
// the grid shape and time range; otherwise the run is recorded as failed
// with the error message.
func (s *Store) Finish(ctx context.Context, run types.Run, runErr error) (types.Run, error) {
	run.FinishedAt = s.clock.Now().UTC()
	run.Status = types.RunSucceeded
	run.Error = ""
	if runErr != nil {
		run.Status = types.RunFailed
		run.Error = runErr.Error()
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, n_time = ?, n_lat = ?, n_lon = ?,
			time_start = ?, time_end = ?, error = ?
		WHERE id = ?`,
		run.FinishedAt.Format(timeLayout), string(run.Status),
		run.NTime, run.NLat, run.NLon,
		formatTime(run.TimeStart), formatTime(run.TimeEnd), nullString(run.Error),
		run.ID,
	)
	if err != nil {
		return types.Run{}, fmt.Errorf("updating run %s: %w", run.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return types.Run{}, fmt.Errorf("updating run %s: %w", run.ID, ErrNotFound)
	}
	return run, nil
}

// Get returns the run with the given ID.
func (s *Store) Get(ctx context.Context, id string) (types.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return types.Run{}, fmt.Errorf("looking up run %s: %w", id, err)
	}
	return run, nil
}

func formatTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
