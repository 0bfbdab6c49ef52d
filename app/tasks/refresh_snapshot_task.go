package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/civic-events/app/snapshot"
)

// RefreshSnapshotTask asks the provider for a snapshot of one window. With
// force unset it only collects when the cached snapshot is missing or stale.
type RefreshSnapshotTask struct {
	Task
	provider SnapshotProvider
	days     int
	force    bool
}

func NewRefreshSnapshotTask(provider SnapshotProvider, days int, force bool) *RefreshSnapshotTask {
	return &RefreshSnapshotTask{
		Task:     NewTask(TaskTypeRefreshSnapshot, snapshot.Key(days)),
		provider: provider,
		days:     days,
		force:    force,
	}
}

func (t *RefreshSnapshotTask) Execute(ctx context.Context) error {
	s, fromCache, err := t.provider.Get(ctx, t.days, t.force)
	if err != nil {
		return fmt.Errorf("failed to refresh snapshot: %w", err)
	}

	slog.Debug("Task completed",
		"type", string(t.Type),
		"key", s.Key,
		"from_cache", fromCache,
		"count", s.Count,
		"duration", t.GetDuration().String())
	return nil
}
