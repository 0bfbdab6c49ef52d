package resolve

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/lysyi3m/civic-events/app/geocode"
	"github.com/lysyi3m/civic-events/app/locale"
)

// Candidates is an ordered list of geocoding queries, most specific first:
// full street address, venue qualified by municipality, bare venue, and
// last a venue recovered from the title. Blank and duplicate entries never
// appear.
type Candidates []string

func (c *Candidates) add(q string) {
	q = geocode.NormalizeQuery(q)
	if q == "" {
		return
	}
	for _, existing := range *c {
		if existing == q {
			return
		}
	}
	*c = append(*c, q)
}

// BuildCandidates ranks the geocoding queries for one event.
func BuildCandidates(title, venue, address string, loc *locale.Locale) Candidates {
	var c Candidates

	municipality := ""
	prefecture := ""
	generic := false
	if loc != nil {
		municipality = loc.ExpectedMunicipality()
		prefecture = loc.Prefecture
		generic = loc.IsGenericVenue(venue)
	}

	if addr := SanitizeAddress(address); addr != "" && (loc == nil || !loc.IsBoilerplateAddress(addr)) {
		if municipality != "" && !strings.Contains(addr, municipality) {
			c.add(prefecture + municipality + addr)
		}
		c.add(addr)
	}

	v := strings.TrimSpace(venue)
	if v != "" && !generic {
		if municipality != "" && !strings.Contains(v, municipality) {
			c.add(municipality + " " + v)
		}
		c.add(v)
	}

	if tv := venueFromTitle(title); tv != "" && (loc == nil || !loc.IsGenericVenue(tv)) {
		if municipality != "" {
			c.add(municipality + " " + tv)
		}
		c.add(tv)
	}

	return c
}

var (
	postalCode    = regexp.MustCompile(`〒?\s*\d{3}\s*-\s*\d{4}`)
	addressLabel  = regexp.MustCompile(`^(?:住所|所在地|会場住所|場所)\s*[:：]?\s*`)
	titleVenue    = regexp.MustCompile(`(?:[@＠]|会場\s*[:：])\s*([^\s()（）【】「」]+)`)
	titleBrackets = regexp.MustCompile(`[（(]\s*(?:会場\s*[:：]\s*)?([^()（）]+?(?:館|センター|ホール|会館|プラザ|公園|図書館|集会所))\s*[)）]`)

	// A block/lot number ("1-4-1", "4丁目", "38番地") pins an address below
	// municipality level.
	streetToken = regexp.MustCompile(`\d+\s*-\s*\d+|\d+\s*丁目|[一二三四五六七八九十]+丁目|\d+\s*番地?`)
)

// SanitizeAddress strips labels and postal codes and normalizes width, so
// "住所：〒132-8501 東京都江戸川区中央１－４－１" becomes
// "東京都江戸川区中央1-4-1".
func SanitizeAddress(raw string) string {
	s := norm.NFKC.String(raw)
	s = strings.Join(strings.Fields(s), " ")
	s = addressLabel.ReplaceAllString(s, "")
	s = postalCode.ReplaceAllString(s, "")
	return strings.Trim(strings.Join(strings.Fields(s), " "), " ,、。")
}

// HasStreetToken reports whether address names a block or lot.
func HasStreetToken(address string) bool {
	return streetToken.MatchString(norm.NFKC.String(address))
}

func venueFromTitle(title string) string {
	t := norm.NFKC.String(title)
	if m := titleVenue.FindStringSubmatch(t); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := titleBrackets.FindStringSubmatch(t); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
