package collect

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"time"

	"codeberg.org/readeck/go-readability"
	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/civic-events/app/locale"
)

// Enricher fills fields the listing page left empty from each event's own
// page. It only ever fills gaps; listing values win.
type Enricher struct {
	fetcher  Fetcher
	interval time.Duration
}

func NewEnricher(fetcher Fetcher, interval time.Duration) *Enricher {
	return &Enricher{fetcher: fetcher, interval: interval}
}

// Run enriches drafts in place with at most the source's detail
// concurrency in flight.
func (e *Enricher) Run(ctx context.Context, loc *locale.Locale, drafts []EventDraft, ref time.Time) int {
	pool := NewPool(loc.Settings.DetailConcurrency, e.interval)
	results := make([]bool, len(drafts))

	for i := range drafts {
		if drafts[i].URL == "" || !needsDetail(drafts[i]) {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		i := i
		pool.Submit(func() {
			pageCtx, cancel := context.WithTimeout(ctx, loc.Timeout())
			defer cancel()

			data, err := e.fetcher.Fetch(pageCtx, drafts[i].URL)
			if err != nil {
				slog.Debug("Detail page failed", "source", loc.Key, "url", drafts[i].URL, "error", err)
				return
			}
			results[i] = fillFromDetail(&drafts[i], data, loc.Collector.Detail, ref)
		})
	}
	pool.Wait()

	enriched := 0
	for _, ok := range results {
		if ok {
			enriched++
		}
	}
	return enriched
}

func needsDetail(d EventDraft) bool {
	return len(d.Dates) == 0 || d.TimeRange == nil || d.VenueRaw == "" || d.AddressRaw == "" || d.Description == ""
}

// fillFromDetail applies selectors, then labeled lines, then the page's
// main-content text. It reports whether any field changed.
func fillFromDetail(d *EventDraft, data []byte, sel locale.Detail, ref time.Time) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return false
	}
	breakBlocks(doc.Selection)
	body := blockText(doc.Find("body"))

	texts := []string{body}
	if sel.Readability {
		if main := mainContent(data, d.URL); main != "" {
			texts = []string{main, body}
		}
	}

	changed := false
	set := func(dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
			changed = true
		}
	}

	set(&d.VenueRaw, oneLine(selectText(doc.Selection, sel.Venue)))
	set(&d.AddressRaw, oneLine(selectText(doc.Selection, sel.Address)))
	set(&d.Description, oneLine(selectText(doc.Selection, sel.Description)))

	dateText := selectText(doc.Selection, sel.Date)
	if len(d.Dates) == 0 && dateText != "" {
		if dates := ExtractDates(dateText, ref); len(dates) > 0 {
			d.Dates, changed = dates, true
		}
	}
	if d.TimeRange == nil && dateText != "" {
		if tr := ExtractTimeRange(dateText); tr != nil {
			d.TimeRange, changed = tr, true
		}
	}

	for _, text := range texts {
		set(&d.VenueRaw, labeledValue(text, venueLabels))
		set(&d.AddressRaw, labeledValue(text, addressLabels))
		if len(d.Dates) == 0 {
			if dates := ExtractDates(text, ref); len(dates) > 0 {
				d.Dates, changed = dates, true
			}
		}
	}

	if d.Description == "" && len(texts) > 1 {
		set(&d.Description, clip(oneLine(texts[0])))
	}

	return changed
}

// mainContent extracts the article body with readability, as block text.
func mainContent(data []byte, pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		u = nil
	}

	article, err := readability.FromReader(bytes.NewReader(data), u)
	if err != nil || article.Content == "" {
		return ""
	}
	return htmlText(article.Content)
}
