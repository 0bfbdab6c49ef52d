package locale

import (
	"time"

	"github.com/lysyi3m/civic-events/app/geo"
)

const (
	KindRSS  = "rss"
	KindHTML = "html"

	RendererHTTP    = "http"
	RendererBrowser = "browser"
)

// DefaultGenericSuffixes are appended to a locale's label to form the
// placeholder venue names pages use when no real venue is given.
var DefaultGenericSuffixes = []string{"子ども関連施設", "関連施設", "区内施設", "市内施設"}

// Locale is one municipal event source: a ward, city or town with its
// listing page and the geography its events must fall in.
type Locale struct {
	Key                  string     // Derived from filename (without .yml extension)
	Label                string     `yaml:"label"`
	AdminLabel           string     `yaml:"admin_label"` // municipality expected in addresses, defaults to Label
	Prefecture           string     `yaml:"prefecture"`
	URL                  string     `yaml:"url"`
	Center               *geo.Point `yaml:"center"`
	RadiusKm             float64    `yaml:"radius_km"`
	GenericSuffixes      []string   `yaml:"generic_suffixes"`
	BoilerplateAddresses []string   `yaml:"boilerplate_addresses"`
	Tags                 []string   `yaml:"tags"`
	Settings             Settings   `yaml:"settings"`
	Collector            Collector  `yaml:"collector"`
	Filters              []Filter   `yaml:"filters"`
}

type Settings struct {
	Enabled           bool   `yaml:"enabled"`
	Timeout           int    `yaml:"timeout"` // seconds, per page fetch
	MaxItems          int    `yaml:"max_items"`
	DetailConcurrency int    `yaml:"detail_concurrency"`
	Renderer          string `yaml:"renderer"` // http or browser
}

// Collector describes how to pull drafts out of the listing pages. For
// kind "html" the fields are goquery selectors relative to Item.
type Collector struct {
	Kind        string   `yaml:"kind"`
	Pages       []string `yaml:"pages"`
	Item        string   `yaml:"item"`
	Title       string   `yaml:"title"`
	Link        string   `yaml:"link"`
	Date        string   `yaml:"date"`
	Venue       string   `yaml:"venue"`
	Address     string   `yaml:"address"`
	Description string   `yaml:"description"`
	Detail      Detail   `yaml:"detail"`
}

// Detail configures optional enrichment from each event's own page.
type Detail struct {
	Enabled     bool   `yaml:"enabled"`
	Date        string `yaml:"date"`
	Venue       string `yaml:"venue"`
	Address     string `yaml:"address"`
	Description string `yaml:"description"`
	Readability bool   `yaml:"readability"` // fall back to main-content text
}

type Filter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

func (l *Locale) Area() geo.Area {
	return geo.Area{Center: l.Center, RadiusKm: l.RadiusKm}
}

func (l *Locale) Timeout() time.Duration {
	return time.Duration(l.Settings.Timeout) * time.Second
}

// ListingURLs returns the main URL followed by any extra listing pages.
func (l *Locale) ListingURLs() []string {
	urls := make([]string, 0, 1+len(l.Collector.Pages))
	urls = append(urls, l.URL)
	return append(urls, l.Collector.Pages...)
}
