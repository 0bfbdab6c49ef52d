package geocode

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lysyi3m/civic-events/app/geo"
)

// Cache memoizes lookups by normalized query. A nil point is an explicit
// absence marker: the query was looked up and produced nothing usable.
// Entries are only ever added, never replaced.
type Cache struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*geo.Point
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]*geo.Point)}
}

// NormalizeQuery collapses all whitespace runs (including ideographic
// spaces) so equivalent phrasings share one slot.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

func (c *Cache) Get(query string) (*geo.Point, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.entries[query]
	return p, ok
}

// Put stores p for query unless the query already has an entry.
func (c *Cache) Put(query string, p *geo.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[query]; exists {
		return
	}
	c.entries[query] = p
	c.order = append(c.order, query)
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns the number of positive and negative entries.
func (c *Cache) Stats() (hits int, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.entries {
		if p != nil {
			hits++
		} else {
			misses++
		}
	}
	return hits, misses
}

func (c *Cache) MarshalJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	pairs := make([][2]any, 0, len(c.order))
	for _, q := range c.order {
		pairs = append(pairs, [2]any{q, c.entries[q]})
	}
	return json.Marshal(pairs)
}

func (c *Cache) UnmarshalJSON(data []byte) error {
	var pairs [][]json.RawMessage
	if err := json.Unmarshal(data, &pairs); err != nil {
		return fmt.Errorf("failed to parse geocode cache: %w", err)
	}

	for i, pair := range pairs {
		if len(pair) != 2 {
			return fmt.Errorf("invalid geocode cache entry at index %d", i)
		}
		var query string
		if err := json.Unmarshal(pair[0], &query); err != nil {
			return fmt.Errorf("invalid geocode cache query at index %d: %w", i, err)
		}
		var p *geo.Point
		if err := json.Unmarshal(pair[1], &p); err != nil {
			return fmt.Errorf("invalid geocode cache point at index %d: %w", i, err)
		}
		c.Put(query, p)
	}
	return nil
}

// LoadCacheFile reads a persisted cache. A missing or corrupt file yields an
// empty cache; that is a cold start, not a failure.
func LoadCacheFile(path string) *Cache {
	cache := NewCache()
	if path == "" {
		return cache
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to read geocode cache, starting cold", "path", path, "error", err)
		}
		return cache
	}

	loaded := NewCache()
	if err := json.Unmarshal(data, loaded); err != nil {
		slog.Warn("Corrupt geocode cache, starting cold", "path", path, "error", err)
		return cache
	}

	slog.Debug("Geocode cache loaded", "path", path, "entries", loaded.Len())
	return loaded
}

// SaveFile rewrites the cache file wholesale via a temp file and rename.
func (c *Cache) SaveFile(path string) error {
	if path == "" {
		return nil
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode geocode cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write geocode cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace geocode cache: %w", err)
	}
	return nil
}
