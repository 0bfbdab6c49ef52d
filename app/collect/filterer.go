package collect

import (
	"fmt"
	"strings"

	"github.com/lysyi3m/civic-events/app/locale"
)

var onlineMarkers = []string{"オンライン", "online", "ウェビナー", "webinar", "zoom", "web開催", "ライブ配信", "youtube"}

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run drops drafts excluded by the source's filters or recognized as
// online-only, and returns the kept drafts with the number dropped.
func (f *Filterer) Run(drafts []EventDraft, filters []locale.Filter) ([]EventDraft, int) {
	kept := make([]EventDraft, 0, len(drafts))
	dropped := 0

	for _, d := range drafts {
		if isFiltered, _ := f.Check(d, filters); isFiltered {
			dropped++
			continue
		}
		kept = append(kept, d)
	}

	return kept, dropped
}

// Check reports whether the draft should be dropped and why.
func (f *Filterer) Check(d EventDraft, filters []locale.Filter) (bool, string) {
	for _, filter := range filters {
		value := f.getFieldValue(d, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	if f.IsOnlineOnly(d) {
		return true, "Excluded as online-only"
	}

	return false, ""
}

// IsOnlineOnly is a best-effort test for events with no physical venue:
// an online marker in the title or venue and no street address.
func (f *Filterer) IsOnlineOnly(d EventDraft) bool {
	if strings.TrimSpace(d.AddressRaw) != "" {
		return false
	}

	venue := strings.ToLower(d.VenueRaw)
	for _, marker := range onlineMarkers {
		if strings.Contains(venue, marker) {
			return true
		}
	}

	if d.VenueRaw != "" {
		return false
	}
	title := strings.ToLower(d.Title)
	for _, marker := range onlineMarkers {
		if strings.Contains(title, marker) {
			return true
		}
	}
	return false
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(d EventDraft, field string) string {
	switch field {
	case "title":
		return d.Title
	case "venue":
		return d.VenueRaw
	case "address":
		return d.AddressRaw
	case "description":
		return d.Description
	case "link":
		return d.URL
	default:
		return ""
	}
}
