package facility

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var punctuationReplacer = strings.NewReplacer(
	"(", " ", ")", " ", "[", " ", "]", " ", "{", " ", "}", " ", "<", " ", ">", " ",
	"「", " ", "」", " ", "『", " ", "』", " ", "【", " ", "】", " ", "〔", " ", "〕", " ",
	"〈", " ", "〉", " ", "《", " ", "》", " ",
	"・", " ", "･", " ", "•", " ", "●", " ", "○", " ", "◎", " ", "◆", " ", "◇", " ",
	"■", " ", "□", " ", "★", " ", "☆", " ", "※", " ", "▼", " ", "▲", " ",
	"\"", " ", "“", " ", "”", " ", "‘", " ", "’", " ",
)

// NormalizeVenue folds a venue name into its lookup form: NFKC and width
// folding, bracket and bullet punctuation removed, lowercased, whitespace
// collapsed. The result is not reversible to the original text.
func NormalizeVenue(raw string) string {
	s := width.Fold.String(norm.NFKC.String(raw))
	s = punctuationReplacer.Replace(s)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

var roomSuffixes = []*regexp.Regexp{
	regexp.MustCompile(`(?:第?[0-9一二三四五六七八九十]+)?(?:会議室|集会室|研修室|多目的室|和室|洋室|展示室|ギャラリー|講座室|調理室|工作室|音楽室|視聴覚室|号室)[0-9a-z]*$`),
	regexp.MustCompile(`(?:^|[\s,、])(?:meeting room|conference room|multipurpose room|gallery|room|floor)\s*[0-9a-z]{0,3}$`),
	regexp.MustCompile(`(?:地下|b)?[0-9一二三四五六七八九十]+\s*(?:f|階)$`),
}

const suffixTrimSet = " ,、-‐–—:："

// StripRoomSuffix removes trailing room, gallery and floor designations from
// a normalized venue name, so "central hall, 3f meeting room" becomes
// "central hall".
func StripRoomSuffix(name string) string {
	s := strings.Trim(name, suffixTrimSet)
	for {
		before := s
		for _, re := range roomSuffixes {
			s = strings.Trim(re.ReplaceAllString(s, ""), suffixTrimSet)
		}
		if s == before {
			return s
		}
	}
}

// fuzzyMatch accepts a and b when, after suffix stripping, either contains
// the other and the contained name has at least minLen runes.
func fuzzyMatch(a, b string, minLen int) bool {
	a, b = StripRoomSuffix(a), StripRoomSuffix(b)
	if a == "" || b == "" {
		return false
	}

	shorter, longer := a, b
	if utf8.RuneCountInString(shorter) > utf8.RuneCountInString(longer) {
		shorter, longer = longer, shorter
	}
	if utf8.RuneCountInString(shorter) < minLen {
		return false
	}
	return strings.Contains(longer, shorter)
}
