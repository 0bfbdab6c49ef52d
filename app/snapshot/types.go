package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lysyi3m/civic-events/app/collect"
)

var ErrNotFound = errors.New("snapshot not found")

// Payload is the merged result of one collection run.
type Payload struct {
	From   string                `json:"from"`
	To     string                `json:"to"`
	Count  int                   `json:"count"`
	Debug  map[string]int        `json:"debug"`
	Errors map[string]string     `json:"errors"`
	Items  []collect.EventRecord `json:"items"`
}

// Snapshot is a published payload. It is replaced wholesale, never edited.
type Snapshot struct {
	Key     string    `json:"key"`
	SavedAt time.Time `json:"saved_at"`
	Payload
}

// Age reports how old the snapshot is at now.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.SavedAt)
}

type Store interface {
	Save(ctx context.Context, s *Snapshot) error
	Load(ctx context.Context, key string) (*Snapshot, error)
}

// Key is the cache key for a window of days.
func Key(days int) string {
	return fmt.Sprintf("days:%d", days)
}
