package tasks

import (
	"context"

	"github.com/lysyi3m/civic-events/app/snapshot"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application to run periodic snapshot refreshes in the
// background.
//
//	scheduler := NewScheduler(orchestrator, []int{14}, interval, 1)
//	scheduler.Start()
//	defer scheduler.Stop()
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// SnapshotProvider serves snapshots for a window of days. Implemented by
// Orchestrator; the API and the scheduler depend on this.
type SnapshotProvider interface {
	Get(ctx context.Context, days int, refresh bool) (*snapshot.Snapshot, bool, error)
	Peek(days int) *snapshot.Snapshot
}
