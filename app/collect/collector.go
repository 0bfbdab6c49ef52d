package collect

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lysyi3m/civic-events/app/geo"
	"github.com/lysyi3m/civic-events/app/locale"
	"github.com/lysyi3m/civic-events/app/resolve"
)

var _ Collector = (*SourceCollector)(nil)

type Options struct {
	Timezone *time.Location
	Clock    func() time.Time
	// DetailInterval spaces out detail-page requests to one source.
	DetailInterval time.Duration
}

// SourceCollector is the generic collector driven by a locale's YAML
// definition: fetch listing pages, extract drafts, enrich, filter, resolve.
type SourceCollector struct {
	locale    *locale.Locale
	fetcher   Fetcher
	extractor Extractor
	enricher  *Enricher
	filterer  *Filterer
	resolver  *resolve.Resolver
	tz        *time.Location
	now       func() time.Time
}

func NewSourceCollector(loc *locale.Locale, fetcher Fetcher, resolver *resolve.Resolver, opts Options) *SourceCollector {
	if opts.Timezone == nil {
		opts.Timezone = time.Local
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &SourceCollector{
		locale:    loc,
		fetcher:   fetcher,
		extractor: ExtractorFor(loc.Collector.Kind),
		enricher:  NewEnricher(fetcher, opts.DetailInterval),
		filterer:  NewFilterer(),
		resolver:  resolver,
		tz:        opts.Timezone,
		now:       opts.Clock,
	}
}

func (c *SourceCollector) Key() string {
	return c.locale.Key
}

func (c *SourceCollector) Collect(ctx context.Context, maxDays int) ([]EventRecord, error) {
	now := c.now().In(c.tz)

	drafts, err := c.fetchDrafts(ctx, now)
	if err != nil {
		return nil, err
	}

	if limit := c.locale.Settings.MaxItems; limit > 0 && len(drafts) > limit {
		drafts = drafts[:limit]
	}

	enriched := 0
	if c.locale.Collector.Detail.Enabled {
		enriched = c.enricher.Run(ctx, c.locale, drafts, now)
	}

	kept, filtered := c.filterer.Run(drafts, c.locale.Filters)
	records := c.buildRecords(ctx, kept, now, maxDays)
	SortRecords(records)

	slog.Debug("Source collected",
		"source", c.locale.Key,
		"drafts", len(drafts),
		"enriched", enriched,
		"filtered", filtered,
		"events", len(records))

	return records, nil
}

func (c *SourceCollector) fetchDrafts(ctx context.Context, now time.Time) ([]EventDraft, error) {
	var drafts []EventDraft
	var lastErr error
	fetched := 0

	for _, pageURL := range c.locale.ListingURLs() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pageCtx, cancel := context.WithTimeout(ctx, c.locale.Timeout())
		data, err := c.fetcher.Fetch(pageCtx, pageURL)
		cancel()
		if err != nil {
			slog.Warn("Failed to fetch listing page", "source", c.locale.Key, "url", pageURL, "error", err)
			lastErr = err
			continue
		}

		page, err := c.extractor.Extract(data, pageURL, c.locale, now)
		if err != nil {
			slog.Warn("Failed to extract listing page", "source", c.locale.Key, "url", pageURL, "error", err)
			lastErr = err
			continue
		}

		fetched++
		drafts = append(drafts, page...)
	}

	if fetched == 0 && lastErr != nil {
		return nil, fmt.Errorf("failed to collect listing: %w", lastErr)
	}
	return drafts, nil
}

// buildRecords resolves each draft once and emits one record per date in
// [today, today+maxDays).
func (c *SourceCollector) buildRecords(ctx context.Context, drafts []EventDraft, now time.Time, maxDays int) []EventRecord {
	today := DateOf(now)
	end := today.AddDays(maxDays)

	var records []EventRecord
	for _, d := range drafts {
		var dates []CivilDate
		for _, date := range d.Dates {
			if !date.Before(today) && date.Before(end) {
				dates = append(dates, date)
			}
		}
		if len(dates) == 0 {
			continue
		}

		venue := strings.TrimSpace(d.VenueRaw)
		if venue == "" {
			venue = c.locale.GenericVenue()
		}

		res := resolve.Resolution{}
		if c.resolver != nil {
			res = c.resolver.Resolve(ctx, c.locale, d.Title, venue, d.AddressRaw)
		}

		for _, date := range dates {
			records = append(records, c.newRecord(d, date, venue, res))
		}
	}
	return records
}

func (c *SourceCollector) newRecord(d EventDraft, date CivilDate, venue string, res resolve.Resolution) EventRecord {
	r := EventRecord{
		ID:               RecordID(c.locale.Key, d.URL, d.Title, date.String()),
		Source:           c.locale.Key,
		SourceLabel:      c.locale.Label,
		Title:            d.Title,
		StartsAt:         date.In(c.tz, 0, 0),
		VenueName:        venue,
		Address:          res.Address,
		LocationFallback: res.Fallback,
		Tags:             mergeTags(d.Tags, c.locale.Tags),
		URL:              d.URL,
	}

	if tr := d.TimeRange; tr != nil {
		r.StartsAt = date.In(c.tz, tr.StartHour, tr.StartMinute)
		if tr.HasEnd {
			endsAt := date.In(c.tz, tr.EndHour, tr.EndMinute)
			r.EndsAt = &endsAt
		}
	}

	if res.Point != nil {
		r.Lat, r.Lng = res.Point.Lat, res.Point.Lng
		r.Geohash = geo.Cell(r.Lat, r.Lng)
	}

	return r
}

func mergeTags(lists ...[]string) []string {
	seen := make(map[string]bool)
	tags := []string{}
	for _, list := range lists {
		for _, t := range list {
			t = strings.TrimSpace(t)
			if t != "" && !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}
	return tags
}
