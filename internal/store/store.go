// Package store keeps the history of send runs in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/swatto/wabulk/internal/campaign"
	"github.com/swatto/wabulk/internal/contacts"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrNotFound is returned for unknown run IDs.
var ErrNotFound = errors.New("store: run not found")

// timeLayout sorts lexicographically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements campaign.Recorder on SQLite.
type Store struct {
	db *sql.DB
}

var _ campaign.Recorder = (*Store)(nil)

// RunInfo is one line of the run history.
type RunInfo struct {
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	ID         string           `json:"id"`
	Template   string           `json:"template"`
	Error      string           `json:"error,omitempty"`
	Summary    campaign.Summary `json:"summary"`
}

// Open opens (creating if needed) the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
		}
	}

	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// SQLite allows one writer; the runner and the HTTP handlers share it.
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("store: load migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("store: create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("store: apply migrations: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginRun implements campaign.Recorder.
func (s *Store) BeginRun(ctx context.Context, r *campaign.Report) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, template, started_at, total) VALUES (?, ?, ?, ?)`,
		r.RunID, r.Template, formatTime(r.StartedAt), r.Total)
	if err != nil {
		return fmt.Errorf("store: insert run %s: %w", r.RunID, err)
	}
	return nil
}

// RecordAttempt implements campaign.Recorder.
func (s *Store) RecordAttempt(ctx context.Context, runID string, a campaign.Attempt) error {
	fields, err := json.Marshal(a.Fields)
	if err != nil {
		return fmt.Errorf("store: encode fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO attempts (run_id, row_num, name, phone, status, error, message, fields_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, a.Row, a.Name, a.Phone, string(a.Status), a.Error, a.Message, string(fields), formatTime(a.Timestamp))
	if err != nil {
		return fmt.Errorf("store: insert attempt for run %s: %w", runID, err)
	}
	return nil
}

// FinishRun implements campaign.Recorder.
func (s *Store) FinishRun(ctx context.Context, r *campaign.Report) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, error = ? WHERE id = ?`,
		formatTime(r.FinishedAt), r.Error, r.RunID)
	if err != nil {
		return fmt.Errorf("store: update run %s: %w", r.RunID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, r.RunID)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunInfo, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.template, r.started_at, r.finished_at, r.total, r.error,
		       COALESCE(SUM(CASE WHEN a.status = 'sent' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN a.status = 'failed' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN a.status = 'skipped' THEN 1 ELSE 0 END), 0)
		FROM runs r
		LEFT JOIN attempts a ON a.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []RunInfo
	for rows.Next() {
		var (
			info              RunInfo
			started, finished string
			sent, failed, skp int
		)
		if err := rows.Scan(&info.ID, &info.Template, &started, &finished, &info.Summary.Total, &info.Error, &sent, &failed, &skp); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		info.StartedAt = parseTime(started)
		info.FinishedAt = parseTime(finished)
		// Recompute through Report so history and live runs agree on totals.
		r := campaign.Report{Total: info.Summary.Total, Error: info.Error, Attempts: syntheticAttempts(sent, failed, skp)}
		info.Summary = r.Summary()
		out = append(out, info)
	}
	return out, rows.Err()
}

func syntheticAttempts(sent, failed, skipped int) []campaign.Attempt {
	out := make([]campaign.Attempt, 0, sent+failed+skipped)
	for range sent {
		out = append(out, campaign.Attempt{Status: campaign.StatusSent})
	}
	for range failed {
		out = append(out, campaign.Attempt{Status: campaign.StatusFailed})
	}
	for range skipped {
		out = append(out, campaign.Attempt{Status: campaign.StatusSkipped})
	}
	return out
}

// GetRun loads a run with all its attempts.
func (s *Store) GetRun(ctx context.Context, id string) (*campaign.Report, error) {
	var started, finished string
	r := &campaign.Report{RunID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT template, started_at, finished_at, total, error FROM runs WHERE id = ?`, id).
		Scan(&r.Template, &started, &finished, &r.Total, &r.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get run %s: %w", id, err)
	}
	r.StartedAt = parseTime(started)
	r.FinishedAt = parseTime(finished)

	rows, err := s.db.QueryContext(ctx, `
		SELECT row_num, name, phone, status, error, message, fields_json, created_at
		FROM attempts WHERE run_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("store: list attempts for run %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			a              campaign.Attempt
			status, fields string
			created        string
		)
		if err := rows.Scan(&a.Row, &a.Name, &a.Phone, &status, &a.Error, &a.Message, &fields, &created); err != nil {
			return nil, fmt.Errorf("store: scan attempt: %w", err)
		}
		a.Status = campaign.Status(status)
		a.Timestamp = parseTime(created)
		if err := json.Unmarshal([]byte(fields), &a.Fields); err != nil {
			return nil, fmt.Errorf("store: decode fields for row %d: %w", a.Row, err)
		}
		r.Attempts = append(r.Attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return r, nil
}

// FailedContacts rebuilds the contacts a run did not reach, for a retry run.
// The template of the original run is returned alongside.
func (s *Store) FailedContacts(ctx context.Context, id string) ([]contacts.Contact, string, error) {
	r, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, "", err
	}
	var out []contacts.Contact
	for _, a := range r.Failed() {
		phone := a.Fields[contacts.ColumnPhone]
		if phone == "" {
			phone = a.Phone
		}
		out = append(out, contacts.Contact{Row: a.Row, Phone: phone, Name: a.Name, Fields: a.Fields})
	}
	return out, r.Template, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
