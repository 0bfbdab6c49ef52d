package locale

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/civic-events/app/facility"
	"github.com/lysyi3m/civic-events/app/geo"
)

var _ facility.Locales = (*Registry)(nil)

// Registry holds every locale loaded from the sources directory, one YAML
// file per locale.
type Registry struct {
	sourcesDir string
	cache      map[string]*Locale
	mu         sync.RWMutex
}

func NewRegistry(sourcesDir string) *Registry {
	return &Registry{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*Locale),
	}
}

func (r *Registry) Run() error {
	if _, err := os.Stat(r.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(r.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		key := strings.TrimSuffix(filepath.Base(file), ".yml")

		loc, err := r.LoadLocale(key)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source loaded", "source", key, "enabled", loc.Settings.Enabled, "kind", loc.Collector.Kind, "renderer", loc.Settings.Renderer)
	}

	return nil
}

func (r *Registry) LoadLocale(key string) (*Locale, error) {
	file := filepath.Join(r.sourcesDir, key+".yml")

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var loc Locale
	if err := yaml.Unmarshal(data, &loc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	loc.Key = key

	if err := r.Add(&loc); err != nil {
		return nil, fmt.Errorf("invalid source %s: %w", file, err)
	}
	return &loc, nil
}

// Add applies defaults, validates and registers loc under its Key.
func (r *Registry) Add(loc *Locale) error {
	applyDefaults(loc)
	if err := validate(loc); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[loc.Key] = loc
	return nil
}

func (r *Registry) Get(key string) (*Locale, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	loc, ok := r.cache[key]
	if !ok {
		return nil, fmt.Errorf("source with key '%s' not found", key)
	}
	return loc, nil
}

// All returns every registered locale sorted by key.
func (r *Registry) All() []*Locale {
	return r.list(func(*Locale) bool { return true })
}

func (r *Registry) Enabled() []*Locale {
	return r.list(func(l *Locale) bool { return l.Settings.Enabled })
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

func (r *Registry) IsGenericVenue(source, venue string) bool {
	loc, err := r.Get(source)
	if err != nil {
		return false
	}
	return loc.IsGenericVenue(venue)
}

func (r *Registry) Area(source string) geo.Area {
	loc, err := r.Get(source)
	if err != nil {
		return geo.Area{}
	}
	return loc.Area()
}

func (r *Registry) list(keep func(*Locale) bool) []*Locale {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Locale, 0, len(r.cache))
	for _, l := range r.cache {
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func applyDefaults(loc *Locale) {
	if loc.AdminLabel == "" {
		loc.AdminLabel = loc.Label
	}
	if len(loc.GenericSuffixes) == 0 {
		loc.GenericSuffixes = DefaultGenericSuffixes
	}
	if loc.Center != nil && loc.RadiusKm == 0 {
		loc.RadiusKm = 15
	}
	if loc.Settings.Timeout == 0 {
		loc.Settings.Timeout = 30
	}
	if loc.Settings.MaxItems == 0 {
		loc.Settings.MaxItems = 200
	}
	if loc.Settings.DetailConcurrency == 0 {
		loc.Settings.DetailConcurrency = 4
	}
	if loc.Settings.Renderer == "" {
		loc.Settings.Renderer = RendererHTTP
	}
	if loc.Collector.Kind == "" {
		loc.Collector.Kind = KindRSS
		if loc.Collector.Item != "" {
			loc.Collector.Kind = KindHTML
		}
	}
}

func validate(loc *Locale) error {
	if loc == nil {
		return fmt.Errorf("source is nil")
	}

	requiredFields := map[string]string{
		"source key":   loc.Key,
		"source label": loc.Label,
		"source URL":   loc.URL,
	}

	for fieldName, fieldValue := range requiredFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	nonNegativeFields := map[string]int{
		"timeout":            loc.Settings.Timeout,
		"max items":          loc.Settings.MaxItems,
		"detail concurrency": loc.Settings.DetailConcurrency,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	if loc.RadiusKm < 0 {
		return fmt.Errorf("radius must be non-negative")
	}
	if loc.Center != nil && (!loc.Center.IsFinite() || math.Abs(loc.Center.Lat) > 90 || math.Abs(loc.Center.Lng) > 180) {
		return fmt.Errorf("invalid center %v,%v", loc.Center.Lat, loc.Center.Lng)
	}

	switch loc.Collector.Kind {
	case KindRSS:
	case KindHTML:
		if loc.Collector.Item == "" || loc.Collector.Title == "" {
			return fmt.Errorf("html collector requires item and title selectors")
		}
	default:
		return fmt.Errorf("unknown collector kind: %s", loc.Collector.Kind)
	}

	if loc.Settings.Renderer != RendererHTTP && loc.Settings.Renderer != RendererBrowser {
		return fmt.Errorf("unknown renderer: %s", loc.Settings.Renderer)
	}

	validFields := map[string]bool{
		"title":       true,
		"venue":       true,
		"address":     true,
		"description": true,
		"link":        true,
	}

	for i, filter := range loc.Filters {
		if !validFields[filter.Field] {
			return fmt.Errorf("invalid filter field at index %d: %s", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}

	return nil
}
