package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by GetRun for an unknown id.
var ErrNotFound = errors.New("run not found")

// timeLayout is fixed-width so started_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// RunRecord is one persisted harness run.
type RunRecord struct {
	ID              string        `json:"id"`
	PlanName        string        `json:"plan_name,omitempty"`
	Source          string        `json:"source"`
	Target          string        `json:"target"`
	Samples         int           `json:"samples"`
	Threads         int           `json:"threads"`
	IterationTarget int64         `json:"iteration_target"`
	Iterations      int64         `json:"iterations"`
	Mode            string        `json:"mode"`
	ReferenceDigest string        `json:"reference_digest"`
	Outcome         string        `json:"outcome"`
	Failure         string        `json:"failure,omitempty"`
	Duration        time.Duration `json:"duration_ns"`
	StartedAt       time.Time     `json:"started_at"`
}

// RecordRun inserts a run record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
// Other constraint violations (e.g., CHECK) will still return errors.
func (s *Store) RecordRun(ctx context.Context, rec RunRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("record run: empty id")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, plan_name, source, target, samples, threads, iteration_target, iterations,
		 mode, reference_digest, outcome, failure, duration_ns, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.PlanName,
		rec.Source,
		rec.Target,
		rec.Samples,
		rec.Threads,
		rec.IterationTarget,
		rec.Iterations,
		rec.Mode,
		rec.ReferenceDigest,
		rec.Outcome,
		rec.Failure,
		int64(rec.Duration),
		rec.StartedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// GetRun returns the run with the given id, or ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE id = ?
	`, id)

	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return rec, nil
}

// ListRuns returns up to limit runs, newest first. A limit <= 0 returns
// every run. Ties on started_at are broken by id so the order is stable.
//
// Returns an empty slice (not nil) if no runs are recorded.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

const runColumns = `id, plan_name, source, target, samples, threads, iteration_target, iterations,
		mode, reference_digest, outcome, failure, duration_ns, started_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var (
		rec        RunRecord
		durationNS int64
		startedAt  string
	)
	err := row.Scan(
		&rec.ID,
		&rec.PlanName,
		&rec.Source,
		&rec.Target,
		&rec.Samples,
		&rec.Threads,
		&rec.IterationTarget,
		&rec.Iterations,
		&rec.Mode,
		&rec.ReferenceDigest,
		&rec.Outcome,
		&rec.Failure,
		&durationNS,
		&startedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, err
		}
		return RunRecord{}, fmt.Errorf("scan run: %w", err)
	}

	rec.Duration = time.Duration(durationNS)
	rec.StartedAt, err = time.Parse(timeLayout, startedAt)
	if err != nil {
		return RunRecord{}, fmt.Errorf("scan run %s: parse started_at: %w", rec.ID, err)
	}
	return rec, nil
}
