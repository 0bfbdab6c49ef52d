package database

import (
	"context"

	"github.com/lysyi3m/civic-events/app/facility"
)

type FacilityStore interface {
	LoadAll(ctx context.Context) ([]facility.Entry, error)
	SaveAll(ctx context.Context, entries []facility.Entry) (int, error)
	Counts(ctx context.Context) (int, int, error)
}

type RunStore interface {
	RecordRun(ctx context.Context, run *Run) error
	LatestRuns(ctx context.Context, limit int) ([]Run, error)
}
