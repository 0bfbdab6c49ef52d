package collect

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

const (
	maxRangeDays = 31
	reiwaBase    = 2018
)

var (
	// 年月日, YYYY/M/D or YYYY-MM-DD, 令和N年M月D日.
	fullDate = regexp.MustCompile(`(\d{4})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日|(\d{4})[/.\-](\d{1,2})[/.\-](\d{1,2})|令和\s*(\d{1,2}|元)\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日`)
	monthDay = regexp.MustCompile(`(\d{1,2})\s*月\s*(\d{1,2})\s*日`)

	// "〜6日", "(土)～4月6日", "-2025年1月3日" directly after a date.
	rangeTail = regexp.MustCompile(`^\s*(?:\([^)]{1,4}\))?\s*(?:~|〜|-|‐|－|から)\s*(?:(\d{4})\s*年\s*)?(?:(\d{1,2})\s*月\s*)?(\d{1,2})\s*日`)

	clock    = regexp.MustCompile(`(午前|午後)?\s*(\d{1,2})\s*(?::|時)\s*(\d{1,2})?\s*分?`)
	rangeSep = regexp.MustCompile(`^\s*(?:~|〜|-|‐|－|–|から)\s*`)
)

// ExtractDates returns every calendar date mentioned in text, sorted and
// without duplicates. Dates without a year take ref's year, or the next
// one when that would put them more than 90 days before ref.
func ExtractDates(text string, ref time.Time) []CivilDate {
	t := norm.NFKC.String(text)
	seen := make(map[CivilDate]bool)
	var dates []CivilDate

	add := func(d CivilDate) {
		if !seen[d] {
			seen[d] = true
			dates = append(dates, d)
		}
	}

	var consumed [][]int
	for _, m := range fullDate.FindAllStringSubmatchIndex(t, -1) {
		consumed = append(consumed, m[:2])

		var y, mo, d int
		switch {
		case m[2] >= 0:
			y, mo, d = atoi(t, m[2], m[3]), atoi(t, m[4], m[5]), atoi(t, m[6], m[7])
		case m[8] >= 0:
			y, mo, d = atoi(t, m[8], m[9]), atoi(t, m[10], m[11]), atoi(t, m[12], m[13])
		default:
			era := t[m[14]:m[15]]
			n := 1
			if era != "元" {
				n = atoi(t, m[14], m[15])
			}
			y, mo, d = reiwaBase+n, atoi(t, m[16], m[17]), atoi(t, m[18], m[19])
		}

		start, ok := civil(y, mo, d)
		if !ok {
			continue
		}
		add(start)
		expandRange(t[m[1]:], start, add)
	}

	for _, m := range monthDay.FindAllStringSubmatchIndex(t, -1) {
		if overlaps(consumed, m[0], m[1]) {
			continue
		}
		start, ok := inferYear(atoi(t, m[2], m[3]), atoi(t, m[4], m[5]), ref)
		if !ok {
			continue
		}
		add(start)
		expandRange(t[m[1]:], start, add)
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

func expandRange(rest string, start CivilDate, add func(CivilDate)) {
	m := rangeTail.FindStringSubmatch(rest)
	if m == nil {
		return
	}

	y, mo := start.Year, int(start.Month)
	if m[1] != "" {
		y, _ = strconv.Atoi(m[1])
	}
	if m[2] != "" {
		mo, _ = strconv.Atoi(m[2])
		if m[1] == "" && time.Month(mo) < start.Month {
			y++
		}
	}
	day, _ := strconv.Atoi(m[3])

	end, ok := civil(y, mo, day)
	if !ok || !start.Before(end) {
		return
	}
	for d, n := start.AddDays(1), 0; !end.Before(d) && n < maxRangeDays; d, n = d.AddDays(1), n+1 {
		add(d)
	}
}

// ExtractTimeRange returns the first "HH:MM" or "H時M分" time in text and,
// when a range separator follows, the end time.
func ExtractTimeRange(text string) *TimeRange {
	t := norm.NFKC.String(text)

	for _, m := range clock.FindAllStringSubmatchIndex(t, -1) {
		h, minute, ok := clockAt(t, m)
		if !ok {
			continue
		}

		tr := &TimeRange{StartHour: h, StartMinute: minute}
		rest := t[m[1]:]
		if sep := rangeSep.FindStringIndex(rest); sep != nil {
			rest = rest[sep[1]:]
			if em := clock.FindStringSubmatchIndex(rest); em != nil && em[0] == 0 {
				eh, emin, ok := clockAt(rest, em)
				// "午後2時から4時" ends at 16:00.
				if ok && h >= 12 && eh < 12 {
					eh += 12
				}
				if ok && eh*60+emin > h*60+minute {
					tr.EndHour, tr.EndMinute, tr.HasEnd = eh, emin, true
				}
			}
		}
		return tr
	}
	return nil
}

func clockAt(t string, m []int) (int, int, bool) {
	// "1時間" is a duration, not a time of day.
	if strings.HasPrefix(t[m[1]:], "間") {
		return 0, 0, false
	}
	// A bare "10時" is fine, a bare "10" followed by ":" needs minutes.
	if strings.Contains(t[m[0]:m[1]], ":") && m[6] < 0 {
		return 0, 0, false
	}

	h := atoi(t, m[4], m[5])
	minute := 0
	if m[6] >= 0 {
		minute = atoi(t, m[6], m[7])
	}
	if m[2] >= 0 && t[m[2]:m[3]] == "午後" && h < 12 {
		h += 12
	}
	if h > 23 || minute > 59 {
		return 0, 0, false
	}
	return h, minute, true
}

func inferYear(month, day int, ref time.Time) (CivilDate, bool) {
	d, ok := civil(ref.Year(), month, day)
	if !ok {
		return d, false
	}
	if d.In(ref.Location(), 0, 0).Before(ref.AddDate(0, 0, -90)) {
		return civil(ref.Year()+1, month, day)
	}
	return d, true
}

func civil(y, m, d int) (CivilDate, bool) {
	if m < 1 || m > 12 || d < 1 || d > 31 || y < 1900 || y > 2200 {
		return CivilDate{}, false
	}
	t := time.Date(y, time.Month(m), d, 12, 0, 0, 0, time.UTC)
	if t.Day() != d {
		return CivilDate{}, false
	}
	return CivilDate{Year: y, Month: time.Month(m), Day: d}, true
}

func overlaps(spans [][]int, start, end int) bool {
	for _, s := range spans {
		if start < s[1] && end > s[0] {
			return true
		}
	}
	return false
}

func atoi(s string, from, to int) int {
	n, _ := strconv.Atoi(s[from:to])
	return n
}
