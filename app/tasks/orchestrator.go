package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lysyi3m/civic-events/app/collect"
	"github.com/lysyi3m/civic-events/app/database"
	"github.com/lysyi3m/civic-events/app/facility"
	"github.com/lysyi3m/civic-events/app/geocode"
	"github.com/lysyi3m/civic-events/app/snapshot"
)

const (
	DefaultTTL              = 10 * time.Minute
	DefaultConcurrency      = 2
	DefaultCollectorTimeout = 300 * time.Second
)

var _ SnapshotProvider = (*Orchestrator)(nil)

type Options struct {
	TTL              time.Duration
	Concurrency      int
	CollectorTimeout time.Duration
	Timezone         *time.Location
	Clock            func() time.Time
}

// Persistence lists where a published snapshot and the resolution state are
// written. Every field is optional.
type Persistence struct {
	Stores           []snapshot.Store
	GeocodeCache     *geocode.Cache
	GeocodeCachePath string
	Master           *facility.Master
	Facilities       database.FacilityStore
	Runs             database.RunStore
}

// Orchestrator runs every collector, merges their events and serves the
// result from a per-window snapshot that lives for the TTL.
type Orchestrator struct {
	collectors []collect.Collector
	persist    Persistence
	opts       Options

	group singleflight.Group

	mu       sync.Mutex
	slots    map[string]*atomic.Pointer[snapshot.Snapshot]
	restored map[string]bool
	inFlight map[string]bool
}

func NewOrchestrator(collectors []collect.Collector, persist Persistence, opts Options) *Orchestrator {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.CollectorTimeout <= 0 {
		opts.CollectorTimeout = DefaultCollectorTimeout
	}
	if opts.Timezone == nil {
		opts.Timezone = time.Local
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Orchestrator{
		collectors: collectors,
		persist:    persist,
		opts:       opts,
		slots:      make(map[string]*atomic.Pointer[snapshot.Snapshot]),
		restored:   make(map[string]bool),
		inFlight:   make(map[string]bool),
	}
}

func (o *Orchestrator) TTL() time.Duration {
	return o.opts.TTL
}

func (o *Orchestrator) CollectorCount() int {
	return len(o.collectors)
}

// Get returns the snapshot for days and whether it came from the cache. A
// fresh snapshot is served as is. A stale or missing one is collected,
// unless a collection for the same window is already running and a previous
// snapshot exists: then the previous one is served immediately.
func (o *Orchestrator) Get(ctx context.Context, days int, refresh bool) (*snapshot.Snapshot, bool, error) {
	if days < 1 {
		return nil, false, fmt.Errorf("days must be positive, got %d", days)
	}

	key := snapshot.Key(days)
	slot := o.slot(key)
	o.restore(ctx, key, slot)

	current := slot.Load()
	if current != nil && !refresh && current.Age(o.opts.Clock()) < o.opts.TTL {
		return current, true, nil
	}
	if current != nil && o.isInFlight(key) {
		slog.Debug("Collection in flight, serving previous snapshot", "key", key)
		return current, true, nil
	}

	v, err, _ := o.group.Do(key, func() (any, error) {
		o.setInFlight(key, true)
		defer o.setInFlight(key, false)
		return o.collect(context.WithoutCancel(ctx), key, days)
	})
	if err != nil {
		if current != nil {
			slog.Warn("Collection failed, serving previous snapshot", "key", key, "error", err)
			return current, true, nil
		}
		return nil, false, err
	}
	return v.(*snapshot.Snapshot), false, nil
}

// Peek returns the current snapshot for days without collecting.
func (o *Orchestrator) Peek(days int) *snapshot.Snapshot {
	return o.slot(snapshot.Key(days)).Load()
}

func (o *Orchestrator) collect(ctx context.Context, key string, days int) (*snapshot.Snapshot, error) {
	startedAt := o.opts.Clock()
	today := collect.DateOf(startedAt.In(o.opts.Timezone))

	slog.Info("Collection started", "key", key, "collectors", len(o.collectors))

	collectTasks := o.runCollectors(ctx, days)

	payload := snapshot.Payload{
		From:   today.String(),
		To:     today.AddDays(days - 1).String(),
		Debug:  make(map[string]int, len(collectTasks)),
		Errors: make(map[string]string),
	}

	batches := make([][]collect.EventRecord, 0, len(collectTasks))
	for _, t := range collectTasks {
		payload.Debug[t.task.Source] = len(t.task.Events)
		if t.err != nil {
			payload.Errors[t.task.Source] = t.err.Error()
			continue
		}
		batches = append(batches, t.task.Events)
	}

	if len(o.collectors) > 0 && len(payload.Errors) == len(o.collectors) {
		return nil, errors.New("all collectors failed")
	}

	payload.Items = Merge(batches, today, days, o.opts.Timezone)
	if payload.Items == nil {
		payload.Items = []collect.EventRecord{}
	}
	payload.Count = len(payload.Items)

	s := &snapshot.Snapshot{Key: key, SavedAt: o.opts.Clock(), Payload: payload}
	o.slot(key).Store(s)

	slog.Info("Collection completed",
		"key", key,
		"count", s.Count,
		"failed", len(payload.Errors),
		"duration", s.SavedAt.Sub(startedAt).String())

	o.publish(ctx, s, days, startedAt)
	return s, nil
}

type collectOutcome struct {
	task *CollectSourceTask
	err  error
}

func (o *Orchestrator) runCollectors(ctx context.Context, days int) []collectOutcome {
	outcomes := make([]collectOutcome, len(o.collectors))
	pool := collect.NewPool(o.opts.Concurrency, 0)

	for i, c := range o.collectors {
		task := NewCollectSourceTask(c, days)
		outcomes[i].task = task

		// A timed-out collector keeps its slot until it actually returns.
		pool.SubmitHeld(func() <-chan struct{} {
			outcomes[i].err = o.executeTask(ctx, task)
			return task.Finished()
		})
	}
	pool.Wait()

	return outcomes
}

func (o *Orchestrator) executeTask(ctx context.Context, task *CollectSourceTask) error {
	task.Start()

	taskCtx, cancel := context.WithTimeout(ctx, o.opts.CollectorTimeout)
	defer cancel()

	if err := task.Execute(taskCtx); err != nil {
		task.Events = nil
		slog.Error("Task failed", "type", string(task.GetType()), "source", task.GetSource(), "duration", task.GetDuration().String(), "error", err)
		return err
	}

	slog.Debug("Task completed", "type", string(task.GetType()), "source", task.GetSource(), "events", len(task.Events), "duration", task.GetDuration().String())
	return nil
}

// publish writes the snapshot and the resolution state. Failures are logged
// and never undo the in-memory swap.
func (o *Orchestrator) publish(ctx context.Context, s *snapshot.Snapshot, days int, startedAt time.Time) {
	for _, store := range o.persist.Stores {
		if err := store.Save(ctx, s); err != nil {
			slog.Warn("Failed to persist snapshot", "key", s.Key, "error", err)
		}
	}

	if o.persist.GeocodeCache != nil && o.persist.GeocodeCachePath != "" {
		if err := o.persist.GeocodeCache.SaveFile(o.persist.GeocodeCachePath); err != nil {
			slog.Warn("Failed to persist geocode cache", "path", o.persist.GeocodeCachePath, "error", err)
		}
	}

	if o.persist.Master != nil && o.persist.Facilities != nil {
		inserted, err := o.persist.Facilities.SaveAll(ctx, o.persist.Master.Entries())
		if err != nil {
			slog.Warn("Failed to persist facilities", "error", err)
		} else if inserted > 0 {
			slog.Debug("Facilities persisted", "inserted", inserted)
		}
	}

	if o.persist.Runs != nil {
		run := &database.Run{
			Key:           s.Key,
			Days:          days,
			StartedAt:     startedAt,
			FinishedAt:    s.SavedAt,
			EventCount:    s.Count,
			FailedSources: len(s.Errors),
			Debug:         s.Debug,
			Errors:        s.Errors,
		}
		if err := o.persist.Runs.RecordRun(ctx, run); err != nil {
			slog.Warn("Failed to record run", "key", s.Key, "error", err)
		}
	}
}

// restore loads a persisted snapshot into an empty slot, once per key.
func (o *Orchestrator) restore(ctx context.Context, key string, slot *atomic.Pointer[snapshot.Snapshot]) {
	o.mu.Lock()
	if o.restored[key] {
		o.mu.Unlock()
		return
	}
	o.restored[key] = true
	o.mu.Unlock()

	if slot.Load() != nil {
		return
	}

	for _, store := range o.persist.Stores {
		s, err := store.Load(ctx, key)
		if err != nil {
			if !errors.Is(err, snapshot.ErrNotFound) {
				slog.Warn("Failed to load snapshot", "key", key, "error", err)
			}
			continue
		}
		if slot.CompareAndSwap(nil, s) {
			slog.Info("Snapshot restored", "key", key, "count", s.Count, "saved_at", s.SavedAt)
		}
		return
	}
}

func (o *Orchestrator) slot(key string) *atomic.Pointer[snapshot.Snapshot] {
	o.mu.Lock()
	defer o.mu.Unlock()

	p, ok := o.slots[key]
	if !ok {
		p = &atomic.Pointer[snapshot.Snapshot]{}
		o.slots[key] = p
	}
	return p
}

func (o *Orchestrator) isInFlight(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight[key]
}

func (o *Orchestrator) setInFlight(key string, v bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inFlight[key] = v
}
