package tasks

import (
	"context"
	"fmt"

	"github.com/lysyi3m/civic-events/app/collect"
)

// CollectSourceTask runs one collector. A collector that panics or outlives
// its context yields an error and no events; late results are dropped.
type CollectSourceTask struct {
	Task
	collector collect.Collector
	days      int
	finished  chan struct{}
	Events    []collect.EventRecord
}

func NewCollectSourceTask(collector collect.Collector, days int) *CollectSourceTask {
	task := &CollectSourceTask{
		Task:      NewTask(TaskTypeCollectSource, collector.Key()),
		collector: collector,
		days:      days,
	}
	task.MaxRetries = 0
	return task
}

type collectResult struct {
	events []collect.EventRecord
	err    error
}

// Finished is closed once the collector has returned, which can be after
// Execute stopped waiting for it. It is nil before Execute runs.
func (t *CollectSourceTask) Finished() <-chan struct{} {
	return t.finished
}

func (t *CollectSourceTask) Execute(ctx context.Context) error {
	finished := make(chan struct{})
	t.finished = finished

	select {
	case <-ctx.Done():
		close(finished)
		return ctx.Err()
	default:
	}

	done := make(chan collectResult, 1)
	go func() {
		defer close(finished)
		defer func() {
			if r := recover(); r != nil {
				done <- collectResult{err: fmt.Errorf("collector panicked: %v", r)}
			}
		}()
		events, err := t.collector.Collect(ctx, t.days)
		done <- collectResult{events: events, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return res.err
		}
		t.Events = res.events
		return nil
	case <-ctx.Done():
		return fmt.Errorf("collector timed out: %w", ctx.Err())
	}
}
