package collect

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/lysyi3m/civic-events/app/facility"
)

// Collector produces the events of one source for the next maxDays days.
type Collector interface {
	Key() string
	Collect(ctx context.Context, maxDays int) ([]EventRecord, error)
}

// CivilDate is a calendar date without a time zone.
type CivilDate struct {
	Year  int
	Month time.Month
	Day   int
}

func DateOf(t time.Time) CivilDate {
	y, m, d := t.Date()
	return CivilDate{Year: y, Month: m, Day: d}
}

func (d CivilDate) In(loc *time.Location, hour, minute int) time.Time {
	return time.Date(d.Year, d.Month, d.Day, hour, minute, 0, 0, loc)
}

func (d CivilDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d CivilDate) Before(o CivilDate) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d CivilDate) AddDays(n int) CivilDate {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 12, 0, 0, 0, time.UTC))
}

type TimeRange struct {
	StartHour   int
	StartMinute int
	EndHour     int
	EndMinute   int
	HasEnd      bool
}

// EventDraft is what an extractor pulls out of a page, before resolution.
type EventDraft struct {
	Title       string
	VenueRaw    string
	AddressRaw  string
	Dates       []CivilDate
	TimeRange   *TimeRange
	SourceKey   string
	SourceLabel string
	URL         string
	Description string
	Tags        []string
}

// EventRecord is one dated occurrence of an event with its resolved place.
type EventRecord struct {
	ID               string     `json:"id"`
	Source           string     `json:"source"`
	SourceLabel      string     `json:"source_label"`
	Title            string     `json:"title"`
	StartsAt         time.Time  `json:"starts_at"`
	EndsAt           *time.Time `json:"ends_at,omitempty"`
	TimeUnknown      bool       `json:"time_unknown"`
	VenueName        string     `json:"venue_name"`
	Address          string     `json:"address"`
	Lat              float64    `json:"lat"`
	Lng              float64    `json:"lng"`
	Geohash          string     `json:"geohash,omitempty"`
	LocationFallback bool       `json:"location_fallback,omitempty"`
	Tags             []string   `json:"tags"`
	URL              string     `json:"url"`
}

// DateKey is the local calendar date of the start.
func (r EventRecord) DateKey() string {
	return DateOf(r.StartsAt).String()
}

// ContentKey identifies the same physical event reached through different
// listing pages: source, title, date and venue.
func (r EventRecord) ContentKey() string {
	return strings.Join([]string{
		r.Source,
		facility.NormalizeVenue(r.Title),
		r.DateKey(),
		facility.NormalizeVenue(r.VenueName),
	}, "|")
}

// RecordID is the identity key: source plus a hash of canonical URL, title
// and date.
func RecordID(source, link, title, dateKey string) string {
	sum := sha256.Sum256([]byte(CanonicalURL(link) + "|" + strings.TrimSpace(title) + "|" + dateKey))
	return source + ":" + hex.EncodeToString(sum[:8])
}

var trackingParams = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "fbclid", "gclid"}

// CanonicalURL lowercases scheme and host, drops the fragment, tracking
// parameters and a trailing slash, and sorts the query.
func CanonicalURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for _, p := range trackingParams {
		q.Del(p)
	}
	u.RawQuery = q.Encode()
	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String()
}

// SortRecords orders by start, then source, then title.
func SortRecords(records []EventRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.StartsAt.Equal(b.StartsAt) {
			return a.StartsAt.Before(b.StartsAt)
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Title < b.Title
	})
}
