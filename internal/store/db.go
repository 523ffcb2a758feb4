// Package store keeps a history of listing runs in Postgres.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

type Store struct {
	db *sql.DB
}

func NewStore(connStr string) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Schema returns the embedded schema the server applies on start.
func Schema() string {
	return schemaSQL
}

// RunMigrations applies the schema at schemaPath, or the embedded schema
// when schemaPath is empty.
func (s *Store) RunMigrations(schemaPath string) error {
	schema := schemaSQL
	if schemaPath != "" {
		content, err := os.ReadFile(schemaPath)
		if err != nil {
			return fmt.Errorf("failed to read schema file: %w", err)
		}
		schema = string(content)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

func clampLimit(limit int, defaultLimit, maxLimit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// Run is the persisted summary of one request.
type Run struct {
	ID           string    `json:"id"`
	Planner      string    `json:"planner"`
	State        string    `json:"state"`
	ListingCount int       `json:"listing_count"`
	Turns        int       `json:"turns"`
	DurationMS   int64     `json:"duration_ms"`
	Blocked      bool      `json:"blocked"`
	Input        string    `json:"input,omitempty"`
	Output       string    `json:"output,omitempty"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s *Store) SaveRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs (id, planner, state, listing_count, turns, duration_ms, blocked, input, output, error, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
ON CONFLICT (id) DO UPDATE SET
    state = EXCLUDED.state,
    listing_count = EXCLUDED.listing_count,
    turns = EXCLUDED.turns,
    duration_ms = EXCLUDED.duration_ms,
    output = EXCLUDED.output,
    error = EXCLUDED.error
`, run.ID, run.Planner, run.State, run.ListingCount, run.Turns, run.DurationMS, run.Blocked, run.Input, run.Output, run.Error)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

const runColumns = `id, planner, state, listing_count, turns, duration_ms, blocked, input, output, error, created_at`

func (s *Store) ListRuns(ctx context.Context, limit, offset int) ([]Run, error) {
	limit = clampLimit(limit, 20, 200)
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT `+runColumns+`
FROM runs
ORDER BY created_at DESC
LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return r, err
}

// DeleteOldRuns drops history older than olderThan.
func (s *Store) DeleteOldRuns(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res, err := s.db.ExecContext(ctx, `
DELETE FROM runs
WHERE created_at < $1
`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var r Run
	err := row.Scan(
		&r.ID,
		&r.Planner,
		&r.State,
		&r.ListingCount,
		&r.Turns,
		&r.DurationMS,
		&r.Blocked,
		&r.Input,
		&r.Output,
		&r.Error,
		&r.CreatedAt,
	)
	return r, err
}
