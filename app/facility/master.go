package facility

import (
	"strings"
	"sync"

	"github.com/lysyi3m/civic-events/app/geo"
)

const DefaultMinFuzzyLength = 3

type Key struct {
	Source string
	Venue  string
}

// Locales supplies per-source knowledge the master needs: which venue names
// are placeholders and where a source's points may lie.
type Locales interface {
	IsGenericVenue(source, venue string) bool
	Area(source string) geo.Area
}

// Entry is one persisted row of either table.
type Entry struct {
	Source  string     `json:"source"`
	Venue   string     `json:"venue"`
	Address string     `json:"address,omitempty"`
	Point   *geo.Point `json:"point,omitempty"`
}

// Master memoizes venue resolutions per source. Both tables are write-once
// per key: the first resolved value is authoritative for the process
// lifetime and later writes are ignored.
type Master struct {
	mu        sync.RWMutex
	validator *geo.Validator
	locales   Locales
	minFuzzy  int

	addresses  map[Key]string
	points     map[Key]geo.Point
	addrOrder  []Key
	pointOrder []Key
}

type Option func(*Master)

// WithMinFuzzyLength sets the minimum rune length a name must have to take
// part in substring matching.
func WithMinFuzzyLength(n int) Option {
	return func(m *Master) {
		if n > 0 {
			m.minFuzzy = n
		}
	}
}

func NewMaster(validator *geo.Validator, locales Locales, opts ...Option) *Master {
	m := &Master{
		validator: validator,
		locales:   locales,
		minFuzzy:  DefaultMinFuzzyLength,
		addresses: make(map[Key]string),
		points:    make(map[Key]geo.Point),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Master) GetAddress(source, venue string) string {
	key, ok := m.key(source, venue)
	if !ok {
		return ""
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if addr, ok := m.addresses[key]; ok {
		return addr
	}
	for _, k := range m.addrOrder {
		if k.Source == key.Source && fuzzyMatch(key.Venue, k.Venue, m.minFuzzy) {
			return m.addresses[k]
		}
	}
	return ""
}

func (m *Master) GetPoint(source, venue string) *geo.Point {
	key, ok := m.key(source, venue)
	if !ok {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if p, ok := m.points[key]; ok {
		return &p
	}
	for _, k := range m.pointOrder {
		if k.Source == key.Source && fuzzyMatch(key.Venue, k.Venue, m.minFuzzy) {
			p := m.points[k]
			return &p
		}
	}
	return nil
}

// SetAddress records address for the venue unless one is already known.
// It reports whether the write happened.
func (m *Master) SetAddress(source, venue, address string) bool {
	address = strings.TrimSpace(address)
	key, ok := m.key(source, venue)
	if !ok || address == "" {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.addresses[key]; exists {
		return false
	}
	m.addresses[key] = address
	m.addrOrder = append(m.addrOrder, key)
	return true
}

// SetPoint records p for the venue unless one is already known. Points that
// fail validation for the source's area are never stored.
func (m *Master) SetPoint(source, venue string, p *geo.Point) bool {
	key, ok := m.key(source, venue)
	if !ok || p == nil {
		return false
	}
	if m.validator != nil && m.validator.Validate(p, m.area(source)) == nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.points[key]; exists {
		return false
	}
	m.points[key] = *p
	m.pointOrder = append(m.pointOrder, key)
	return true
}

// Counts returns the sizes of the address and point tables.
func (m *Master) Counts() (int, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.addresses), len(m.points)
}

// Entries returns every stored value in insertion order, addresses first.
func (m *Master) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]Entry, 0, len(m.addrOrder)+len(m.pointOrder))
	for _, k := range m.addrOrder {
		entries = append(entries, Entry{Source: k.Source, Venue: k.Venue, Address: m.addresses[k]})
	}
	for _, k := range m.pointOrder {
		p := m.points[k]
		entries = append(entries, Entry{Source: k.Source, Venue: k.Venue, Point: &p})
	}
	return entries
}

// Restore replays persisted entries through the normal write path, so
// guards, validation and write-once semantics still apply.
func (m *Master) Restore(entries []Entry) int {
	restored := 0
	for _, e := range entries {
		if e.Address != "" && m.SetAddress(e.Source, e.Venue, e.Address) {
			restored++
		}
		if e.Point != nil && m.SetPoint(e.Source, e.Venue, e.Point) {
			restored++
		}
	}
	return restored
}

func (m *Master) key(source, venue string) (Key, bool) {
	v := NormalizeVenue(venue)
	if source == "" || v == "" {
		return Key{}, false
	}
	if m.locales != nil && m.locales.IsGenericVenue(source, venue) {
		return Key{}, false
	}
	return Key{Source: source, Venue: v}, true
}

func (m *Master) area(source string) geo.Area {
	if m.locales == nil {
		return geo.Area{}
	}
	return m.locales.Area(source)
}
