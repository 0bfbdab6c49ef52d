package tasks

import (
	"time"

	"github.com/lysyi3m/civic-events/app/collect"
)

// InferTimeUnknown flags records whose start sits exactly on local midnight
// with no end: the source gave a date but no time.
func InferTimeUnknown(records []collect.EventRecord, tz *time.Location) {
	for i := range records {
		r := &records[i]
		if r.EndsAt != nil {
			continue
		}
		local := r.StartsAt.In(tz)
		if local.Hour() == 0 && local.Minute() == 0 && local.Second() == 0 {
			r.TimeUnknown = true
		}
	}
}

// Dedup removes duplicates first by record ID and then by content key. The
// first record wins per key unless a later one carries a real time or a
// non-fallback location. Running it twice changes nothing.
func Dedup(records []collect.EventRecord) []collect.EventRecord {
	return dedupBy(dedupBy(records, func(r collect.EventRecord) string { return r.ID }),
		func(r collect.EventRecord) string { return r.ContentKey() })
}

func dedupBy(records []collect.EventRecord, key func(collect.EventRecord) string) []collect.EventRecord {
	index := make(map[string]int, len(records))
	out := make([]collect.EventRecord, 0, len(records))

	for _, r := range records {
		k := key(r)
		if i, ok := index[k]; ok {
			if better(r, out[i]) {
				out[i] = r
			}
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}
	return out
}

func better(candidate, kept collect.EventRecord) bool {
	if candidate.TimeUnknown != kept.TimeUnknown {
		return !candidate.TimeUnknown
	}
	return kept.LocationFallback && !candidate.LocationFallback
}

// InWindow keeps records starting on a local date in [from, from+days).
func InWindow(records []collect.EventRecord, from collect.CivilDate, days int, tz *time.Location) []collect.EventRecord {
	end := from.AddDays(days)
	out := records[:0:0]
	for _, r := range records {
		d := collect.DateOf(r.StartsAt.In(tz))
		if !d.Before(from) && d.Before(end) {
			out = append(out, r)
		}
	}
	return out
}

// Merge flattens per-source batches into the published event list.
func Merge(batches [][]collect.EventRecord, from collect.CivilDate, days int, tz *time.Location) []collect.EventRecord {
	var all []collect.EventRecord
	for _, b := range batches {
		all = append(all, b...)
	}

	InferTimeUnknown(all, tz)
	merged := InWindow(Dedup(all), from, days, tz)
	collect.SortRecords(merged)
	return merged
}
