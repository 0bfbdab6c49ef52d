package collect

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

const maxLabeledRunes = 80

var (
	venueLabels   = []string{"開催場所", "会場", "場所", "Venue", "Place", "Location"}
	addressLabels = []string{"会場住所", "住所", "所在地", "Address"}

	nextLabel = regexp.MustCompile(`\s*(?:住所|所在地|日時|開催日|時間|対象|定員|費用|参加費|申込|申し込み|問合せ|問い合わせ|内容|会場|場所)\s*:`)
)

// breakBlocks inserts line breaks at block boundaries so Text() keeps one
// logical field per line.
func breakBlocks(sel *goquery.Selection) {
	sel.Find("br").ReplaceWithHtml("\n")
	sel.Find("p,li,tr,dt,dd,div,th,td,h1,h2,h3,h4,h5,h6").AppendHtml("\n")
}

// blockText returns the NFKC-normalized text of sel, one line per block.
func blockText(sel *goquery.Selection) string {
	return norm.NFKC.String(sel.Text())
}

// htmlText parses an HTML fragment and returns its block text.
func htmlText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return norm.NFKC.String(fragment)
	}
	breakBlocks(doc.Selection)
	return blockText(doc.Selection)
}

// oneLine collapses all whitespace in s.
func oneLine(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

// labeledValue finds a "label: value" line (or a label line followed by
// the value on the next line) and returns the value.
func labeledValue(text string, labels []string) string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(l), "■□●○◆◇・*【["))
		if l != "" {
			lines = append(lines, l)
		}
	}

	for i, line := range lines {
		for _, label := range labels {
			if !strings.HasPrefix(line, label) {
				continue
			}
			rest := strings.TrimPrefix(line, label)
			// "会場住所" is not "会場".
			if r, _ := utf8.DecodeRuneInString(rest); rest != "" && !strings.ContainsRune("】]:： \t", r) {
				continue
			}
			rest = strings.TrimLeft(rest, "】]:： \t")
			if rest == "" {
				if i+1 >= len(lines) {
					return ""
				}
				rest = lines[i+1]
			}
			return clip(cutAtNextLabel(rest))
		}
	}
	return ""
}

func cutAtNextLabel(s string) string {
	if loc := nextLabel.FindStringIndex(s); loc != nil && loc[0] > 0 {
		s = s[:loc[0]]
	}
	return oneLine(s)
}

func clip(s string) string {
	if utf8.RuneCountInString(s) <= maxLabeledRunes {
		return s
	}
	return string([]rune(s)[:maxLabeledRunes])
}
