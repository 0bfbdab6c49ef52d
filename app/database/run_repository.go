package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

var _ RunStore = (*RunRepository)(nil)

// RunRepository keeps a history of collection runs.
type RunRepository struct {
	db *DB
}

func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// RecordRun stores run, assigning it an ID when it has none.
func (r *RunRepository) RecordRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	debug, err := json.Marshal(orEmpty(run.Debug))
	if err != nil {
		return fmt.Errorf("failed to encode run debug: %w", err)
	}
	errs, err := json.Marshal(orEmpty(run.Errors))
	if err != nil {
		return fmt.Errorf("failed to encode run errors: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO collection_runs (
			id, cache_key, days, started_at, finished_at,
			event_count, failed_sources, debug, errors
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Key, run.Days, formatTime(run.StartedAt), formatTime(run.FinishedAt),
		run.EventCount, run.FailedSources, string(debug), string(errs))
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	return nil
}

// LatestRuns returns up to limit runs, newest first.
func (r *RunRepository) LatestRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, cache_key, days, started_at, finished_at,
		       event_count, failed_sources, debug, errors
		FROM collection_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		var startedAt, finishedAt, debug, errs string
		err := rows.Scan(
			&run.ID, &run.Key, &run.Days, &startedAt, &finishedAt,
			&run.EventCount, &run.FailedSources, &debug, &errs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}

		if run.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("failed to parse run start: %w", err)
		}
		if run.FinishedAt, err = parseTime(finishedAt); err != nil {
			return nil, fmt.Errorf("failed to parse run finish: %w", err)
		}
		if err := json.Unmarshal([]byte(debug), &run.Debug); err != nil {
			return nil, fmt.Errorf("failed to decode run debug: %w", err)
		}
		if err := json.Unmarshal([]byte(errs), &run.Errors); err != nil {
			return nil, fmt.Errorf("failed to decode run errors: %w", err)
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}

	return runs, nil
}

func orEmpty[M ~map[string]V, V any](m M) M {
	if m == nil {
		return M{}
	}
	return m
}
