// Package runlog keeps a ledger of detection runs in the detection_runs table.
package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/otherjamesbrown/dupdetect/pkg/duplicates"
)

// Entry is one recorded run.
type Entry struct {
	RunID         string          `json:"run_id" yaml:"run_id"`
	Status        string          `json:"status" yaml:"status"`
	DryRun        bool            `json:"dry_run" yaml:"dry_run"`
	EntityTypes   []string        `json:"entity_types" yaml:"entity_types"`
	PairsDetected int             `json:"pairs_detected" yaml:"pairs_detected"`
	FailedBatches int             `json:"failed_batches" yaml:"failed_batches"`
	Cleared       *int64          `json:"cleared,omitempty" yaml:"cleared,omitempty"`
	Summary       json.RawMessage `json:"summary,omitempty" yaml:"-"`
	StartedAt     time.Time       `json:"started_at" yaml:"started_at"`
	FinishedAt    time.Time       `json:"finished_at" yaml:"finished_at"`
}

// Duration returns the run's wall time.
func (e Entry) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// Recorder writes and reads run ledger rows.
type Recorder struct {
	db *sql.DB
}

// Open connects to PostgreSQL through lib/pq. The ledger only needs a
// couple of connections.
func Open(connStr string) (*Recorder, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	return NewRecorder(db), nil
}

// NewRecorder wraps an existing connection.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// Close closes the database connection.
func (r *Recorder) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *Recorder) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const insertRunQuery = `
	INSERT INTO detection_runs (
		run_id, status, dry_run, entity_types, pairs_detected,
		failed_batches, cleared, summary, started_at, finished_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (run_id) DO UPDATE SET
		status = EXCLUDED.status,
		pairs_detected = EXCLUDED.pairs_detected,
		failed_batches = EXCLUDED.failed_batches,
		cleared = EXCLUDED.cleared,
		summary = EXCLUDED.summary,
		finished_at = EXCLUDED.finished_at`

// RecordRun stores a finished run's summary.
func (r *Recorder) RecordRun(ctx context.Context, s *duplicates.Summary) error {
	if s == nil {
		return fmt.Errorf("recording run: nil summary")
	}

	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}

	types := make([]string, 0, len(s.Entities))
	for _, e := range s.Entities {
		types = append(types, string(e.EntityType))
	}

	var cleared sql.NullInt64
	if s.Cleared != nil {
		cleared = sql.NullInt64{Int64: *s.Cleared, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, insertRunQuery,
		s.RunID,
		s.Status,
		s.DryRun,
		pq.Array(types),
		s.TotalPairs(),
		s.FailedBatches(),
		cleared,
		body,
		s.StartedAt,
		s.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", s.RunID, err)
	}
	return nil
}

const listRunsQuery = `
	SELECT run_id, status, dry_run, entity_types, pairs_detected,
	       failed_batches, cleared, summary, started_at, finished_at
	FROM detection_runs
	ORDER BY started_at DESC
	LIMIT $1`

// List returns the most recent runs, newest first.
func (r *Recorder) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, listRunsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			cleared sql.NullInt64
			summary []byte
		)
		if err := rows.Scan(
			&e.RunID,
			&e.Status,
			&e.DryRun,
			pq.Array(&e.EntityTypes),
			&e.PairsDetected,
			&e.FailedBatches,
			&cleared,
			&summary,
			&e.StartedAt,
			&e.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if cleared.Valid {
			v := cleared.Int64
			e.Cleared = &v
		}
		if len(summary) > 0 {
			e.Summary = json.RawMessage(summary)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}

	return entries, nil
}
