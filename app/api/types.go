package api

import (
	"context"

	"github.com/lysyi3m/civic-events/app/database"
	"github.com/lysyi3m/civic-events/app/facility"
	"github.com/lysyi3m/civic-events/app/geo"
	"github.com/lysyi3m/civic-events/app/geocode"
	"github.com/lysyi3m/civic-events/app/locale"
	"github.com/lysyi3m/civic-events/app/snapshot"
	"github.com/lysyi3m/civic-events/app/tasks"
)

type GeneratorInterface interface {
	Run(s *snapshot.Snapshot, selfLink string) (string, error)
}

var _ GeneratorInterface = (*Generator)(nil)

type LocaleLister interface {
	All() []*locale.Locale
}

var _ LocaleLister = (*locale.Registry)(nil)

type GeocodeStats interface {
	Len() int
	Stats() (hits int, misses int)
}

var _ GeocodeStats = (*geocode.Cache)(nil)

type FacilityCounter interface {
	Counts() (addresses int, points int)
}

var _ FacilityCounter = (*facility.Master)(nil)

type StoreHealth interface {
	Health(ctx context.Context) map[string]any
}

var _ StoreHealth = (*snapshot.RedisStore)(nil)

// Stats are the optional collaborators reported by /health.
type Stats struct {
	Geocode    GeocodeStats
	Facilities FacilityCounter
	Snapshots  StoreHealth
}

// DayWindow bounds the days parameter accepted by the events endpoints.
type DayWindow struct {
	Default int
	Max     int
}

func (w DayWindow) Clamp(days int) int {
	if days < 1 {
		return 1
	}
	if w.Max > 0 && days > w.Max {
		return w.Max
	}
	return days
}

type Handler struct {
	provider  tasks.SnapshotProvider
	generator GeneratorInterface
	locales   LocaleLister
	runs      database.RunStore
	scheduler tasks.TaskSchedulerInterface
	stats     Stats
	window    DayWindow
}

// eventsResponse is the snapshot document plus how it was served.
type eventsResponse struct {
	*snapshot.Snapshot
	FromCache bool `json:"from_cache"`
}

type sourceInfo struct {
	Key      string     `json:"key"`
	Label    string     `json:"label"`
	Enabled  bool       `json:"enabled"`
	Kind     string     `json:"kind"`
	Renderer string     `json:"renderer"`
	URL      string     `json:"url"`
	Center   *geo.Point `json:"center,omitempty"`
	RadiusKm float64    `json:"radius_km"`
	Tags     []string   `json:"tags"`
}
