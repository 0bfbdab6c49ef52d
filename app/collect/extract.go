package collect

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/lysyi3m/civic-events/app/locale"
)

// Extractor turns one listing page into drafts. ref anchors dates written
// without a year.
type Extractor interface {
	Extract(data []byte, pageURL string, loc *locale.Locale, ref time.Time) ([]EventDraft, error)
}

func ExtractorFor(kind string) Extractor {
	if kind == locale.KindHTML {
		return &HTMLExtractor{}
	}
	return &RSSExtractor{}
}

type RSSExtractor struct{}

func (e *RSSExtractor) Extract(data []byte, pageURL string, loc *locale.Locale, ref time.Time) ([]EventDraft, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	drafts := make([]EventDraft, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil || strings.TrimSpace(item.Title) == "" {
			continue
		}

		body := htmlText(item.Description + "\n" + item.Content)
		text := item.Title + "\n" + body

		d := EventDraft{
			Title:       oneLine(item.Title),
			URL:         resolveLink(pageURL, item.Link),
			Description: oneLine(body),
			VenueRaw:    labeledValue(body, venueLabels),
			AddressRaw:  labeledValue(body, addressLabels),
			Dates:       ExtractDates(text, ref),
			TimeRange:   ExtractTimeRange(body),
			Tags:        append([]string(nil), item.Categories...),
		}

		if start := eventStart(item); start != nil && len(d.Dates) == 0 {
			d.Dates = []CivilDate{DateOf(start.In(ref.Location()))}
			if d.TimeRange == nil && (start.Hour() != 0 || start.Minute() != 0) {
				local := start.In(ref.Location())
				d.TimeRange = &TimeRange{StartHour: local.Hour(), StartMinute: local.Minute()}
			}
		}

		drafts = append(drafts, withSource(d, loc))
	}

	return drafts, nil
}

// eventStart reads the RSS event module's ev:startdate when present.
func eventStart(item *gofeed.Item) *time.Time {
	ev, ok := item.Extensions["ev"]
	if !ok {
		return nil
	}
	for _, ext := range ev["startdate"] {
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-0700", "2006-01-02"} {
			if t, err := time.Parse(layout, strings.TrimSpace(ext.Value)); err == nil {
				return &t
			}
		}
	}
	return nil
}

// HTMLExtractor reads listing pages with the source's goquery selectors.
type HTMLExtractor struct{}

func (e *HTMLExtractor) Extract(data []byte, pageURL string, loc *locale.Locale, ref time.Time) ([]EventDraft, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	breakBlocks(doc.Selection)

	sel := loc.Collector
	var drafts []EventDraft

	doc.Find(sel.Item).Each(func(_ int, item *goquery.Selection) {
		title := oneLine(selectText(item, sel.Title))
		if title == "" {
			return
		}

		text := blockText(item)
		dateText := text
		if sel.Date != "" {
			if s := selectText(item, sel.Date); s != "" {
				dateText = s
			}
		}

		d := EventDraft{
			Title:       title,
			URL:         resolveLink(pageURL, selectLink(item, sel.Link)),
			Dates:       ExtractDates(dateText, ref),
			TimeRange:   ExtractTimeRange(dateText),
			VenueRaw:    selectOrLabeled(item, sel.Venue, text, venueLabels),
			AddressRaw:  selectOrLabeled(item, sel.Address, text, addressLabels),
			Description: oneLine(selectText(item, sel.Description)),
		}
		if d.TimeRange == nil && dateText != text {
			d.TimeRange = ExtractTimeRange(text)
		}

		drafts = append(drafts, withSource(d, loc))
	})

	return drafts, nil
}

func selectText(sel *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return blockText(sel.Find(selector).First())
}

func selectOrLabeled(sel *goquery.Selection, selector, text string, labels []string) string {
	if v := oneLine(selectText(sel, selector)); v != "" {
		return v
	}
	return labeledValue(text, labels)
}

func selectLink(sel *goquery.Selection, selector string) string {
	if selector != "" {
		return sel.Find(selector).First().AttrOr("href", "")
	}
	if href, ok := sel.Attr("href"); ok {
		return href
	}
	return sel.Find("a[href]").First().AttrOr("href", "")
}

func resolveLink(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

func withSource(d EventDraft, loc *locale.Locale) EventDraft {
	d.SourceKey = loc.Key
	d.SourceLabel = loc.Label
	return d
}
