package locale

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lysyi3m/civic-events/app/facility"
)

func compact(s string) string {
	return strings.ReplaceAll(facility.NormalizeVenue(s), " ", "")
}

// IsGenericVenue reports whether venue is one of the locale's placeholder
// names, "<label><suffix>" or the bare suffix.
func (l *Locale) IsGenericVenue(venue string) bool {
	v := compact(venue)
	if v == "" {
		return false
	}

	for _, suffix := range l.GenericSuffixes {
		s := compact(suffix)
		if s == "" {
			continue
		}
		if v == s {
			return true
		}
		for _, label := range []string{l.Label, l.AdminLabel} {
			if label != "" && v == compact(label)+s {
				return true
			}
		}
	}
	return false
}

// GenericVenue is the placeholder name used when a page gives no venue.
func (l *Locale) GenericVenue() string {
	if len(l.GenericSuffixes) == 0 {
		return ""
	}
	return l.Label + l.GenericSuffixes[0]
}

// IsBoilerplateAddress reports whether address is one of the municipal
// office addresses that pages attach to every event by default.
func (l *Locale) IsBoilerplateAddress(address string) bool {
	a := compact(address)
	if a == "" {
		return false
	}

	for _, b := range l.BoilerplateAddresses {
		bp := compact(b)
		if bp == "" || !strings.HasPrefix(a, bp) {
			continue
		}
		// "中央1-4-1" must not swallow "中央1-4-10".
		next, _ := utf8.DecodeRuneInString(a[len(bp):])
		if next == utf8.RuneError || !unicode.IsDigit(next) {
			return true
		}
	}
	return false
}

// ExpectedMunicipality is the administrative unit addresses in this locale
// must name.
func (l *Locale) ExpectedMunicipality() string {
	if l.AdminLabel != "" {
		return l.AdminLabel
	}
	return l.Label
}
