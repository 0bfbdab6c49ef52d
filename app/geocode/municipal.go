package geocode

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	prefecturePrefix = regexp.MustCompile(`^(?:東京都|北海道|京都府|大阪府|[^\s都道府県\d]{2,3}県)`)

	// A ward of a designated city ("横浜市中区") with nothing after it.
	wardOnly = regexp.MustCompile(`^[^\s\d区]{1,4}区$`)
)

// Cities whose own name ends in 市. Scanning for the first suffix would cut
// them one character short.
var doubledCities = []string{"四日市市", "廿日市市", "野々市市"}

const maxMunicipalityName = 6

// IsMunicipalityLevel reports whether address names nothing more precise
// than a prefecture or municipality. Such a match is a centroid and is
// worse than no match at all.
func IsMunicipalityLevel(address string) bool {
	a := strings.TrimSpace(address)
	if a == "" {
		return false
	}
	rest := StripPrefecture(a)
	if rest == "" {
		return true
	}
	m := municipalityOf(rest)
	if m == "" {
		return false
	}
	tail := strings.TrimPrefix(rest, m)
	return tail == "" || wardOnly.MatchString(tail)
}

// Municipality extracts the city/ward/town/village component of an address,
// or "" when the address has none.
func Municipality(address string) string {
	return municipalityOf(StripPrefecture(address))
}

// StripPrefecture drops a leading prefecture name.
func StripPrefecture(address string) string {
	return prefecturePrefix.ReplaceAllString(strings.TrimSpace(address), "")
}

// municipalityOf reads the municipality at the start of an address with its
// prefecture already removed. Towns and villages follow a county (郡);
// otherwise a city (市) or ward (区) suffix wins over 町 and 村, which also
// appear inside city names such as 町田市 and 東村山市.
func municipalityOf(rest string) string {
	for _, name := range doubledCities {
		if strings.HasPrefix(rest, name) {
			return name
		}
	}

	runes := []rune(rest)

	if county := suffixAt(runes, 0, "郡", 5); county > 0 {
		start := county + 1
		if i := suffixAt(runes, start, "市区町村", maxMunicipalityName); i > 0 && runes[i] != '市' && runes[i] != '区' {
			return string(runes[:i+1])
		}
		// 郡 was part of a city name (大和郡山市).
	}

	if i := suffixAt(runes, 0, "市区", maxMunicipalityName); i > 0 {
		return string(runes[:i+1])
	}
	if i := suffixAt(runes, 0, "町村", maxMunicipalityName); i > 0 {
		return string(runes[:i+1])
	}
	return ""
}

// suffixAt returns the index of the first rune in suffixes after
// runes[start], at most maxLen runes in, or -1. Names never contain spaces or
// digits, so the scan stops at either.
func suffixAt(runes []rune, start int, suffixes string, maxLen int) int {
	for i := start; i < len(runes) && i <= start+maxLen; i++ {
		r := runes[i]
		if unicode.IsSpace(r) || unicode.IsDigit(r) {
			return -1
		}
		if i > start && strings.ContainsRune(suffixes, r) {
			return i
		}
	}
	return -1
}
