package database

import (
	"context"
	"fmt"
	"time"

	"github.com/lysyi3m/civic-events/app/facility"
	"github.com/lysyi3m/civic-events/app/geo"
)

var _ FacilityStore = (*FacilityRepository)(nil)

// FacilityRepository persists the facility master. Rows are insert-only so
// the first resolution of a venue stays authoritative across restarts.
type FacilityRepository struct {
	db *DB
}

func NewFacilityRepository(db *DB) *FacilityRepository {
	return &FacilityRepository{db: db}
}

// LoadAll returns every stored entry in insertion order, addresses first.
func (r *FacilityRepository) LoadAll(ctx context.Context) ([]facility.Entry, error) {
	var entries []facility.Entry

	rows, err := r.db.QueryContext(ctx, `SELECT source, venue, address FROM facility_addresses ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to load facility addresses: %w", err)
	}
	for rows.Next() {
		var e facility.Entry
		if err := rows.Scan(&e.Source, &e.Venue, &e.Address); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan facility address row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating facility address rows: %w", err)
	}
	rows.Close()

	rows, err = r.db.QueryContext(ctx, `SELECT source, venue, lat, lng, address FROM facility_points ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to load facility points: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e facility.Entry
		var p geo.Point
		if err := rows.Scan(&e.Source, &e.Venue, &p.Lat, &p.Lng, &p.Address); err != nil {
			return nil, fmt.Errorf("failed to scan facility point row: %w", err)
		}
		e.Point = &p
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating facility point rows: %w", err)
	}

	return entries, nil
}

// SaveAll inserts entries not yet stored and returns how many were new.
// Existing keys are left untouched.
func (r *FacilityRepository) SaveAll(ctx context.Context, entries []facility.Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	addrStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO facility_addresses (source, venue, address, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (source, venue) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare address insert: %w", err)
	}
	defer addrStmt.Close()

	pointStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO facility_points (source, venue, lat, lng, address, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (source, venue) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare point insert: %w", err)
	}
	defer pointStmt.Close()

	now := formatTime(time.Now())
	inserted := 0

	for _, e := range entries {
		var affected int64
		switch {
		case e.Point != nil:
			res, err := pointStmt.ExecContext(ctx, e.Source, e.Venue, e.Point.Lat, e.Point.Lng, e.Point.Address, now)
			if err != nil {
				return 0, fmt.Errorf("failed to store facility point %s/%s: %w", e.Source, e.Venue, err)
			}
			affected, _ = res.RowsAffected()
		case e.Address != "":
			res, err := addrStmt.ExecContext(ctx, e.Source, e.Venue, e.Address, now)
			if err != nil {
				return 0, fmt.Errorf("failed to store facility address %s/%s: %w", e.Source, e.Venue, err)
			}
			affected, _ = res.RowsAffected()
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit facilities: %w", err)
	}
	return inserted, nil
}

// Counts returns the number of stored addresses and points.
func (r *FacilityRepository) Counts(ctx context.Context) (int, int, error) {
	var addresses, points int
	err := r.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM facility_addresses), (SELECT COUNT(*) FROM facility_points)
	`).Scan(&addresses, &points)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count facilities: %w", err)
	}
	return addresses, points, nil
}
