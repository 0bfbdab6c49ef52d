package collect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/civic-events/app/locale"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:ev="http://purl.org/rss/1.0/modules/event/">
  <channel>
    <title>江戸川区 イベント</title>
    <link>https://www.city.edogawa.tokyo.jp/</link>
    <item>
      <title>親子リトミック</title>
      <link>/event/rhythm.html</link>
      <category>子育て</category>
      <description><![CDATA[日時：2025年4月5日(土) 10:00〜12:00<br>会場：小岩アーバンプラザ<br>住所：東京都江戸川区北小岩1-17-1<br>対象：未就学児]]></description>
    </item>
    <item>
      <title>春の自然観察会</title>
      <link>https://www.city.edogawa.tokyo.jp/event/nature.html</link>
      <description>集合は公園入口です</description>
      <ev:startdate>2025-04-10T14:00:00+09:00</ev:startdate>
    </item>
    <item>
      <title></title>
      <description>no title</description>
    </item>
  </channel>
</rss>`

func TestRSSExtractor(t *testing.T) {
	loc := &locale.Locale{Key: "edogawa", Label: "江戸川区"}
	ref := time.Date(2025, 4, 1, 9, 0, 0, 0, jst)

	drafts, err := (&RSSExtractor{}).Extract([]byte(testFeed), "https://www.city.edogawa.tokyo.jp/event/rss.xml", loc, ref)
	require.NoError(t, err)
	require.Len(t, drafts, 2)

	first := drafts[0]
	assert.Equal(t, "親子リトミック", first.Title)
	assert.Equal(t, "https://www.city.edogawa.tokyo.jp/event/rhythm.html", first.URL)
	assert.Equal(t, "小岩アーバンプラザ", first.VenueRaw)
	assert.Equal(t, "東京都江戸川区北小岩1-17-1", first.AddressRaw)
	assert.Equal(t, dates("2025-04-05"), first.Dates)
	assert.Equal(t, &TimeRange{StartHour: 10, EndHour: 12, HasEnd: true}, first.TimeRange)
	assert.Equal(t, []string{"子育て"}, first.Tags)
	assert.Equal(t, "edogawa", first.SourceKey)
	assert.Equal(t, "江戸川区", first.SourceLabel)

	second := drafts[1]
	assert.Equal(t, dates("2025-04-10"), second.Dates, "event module start date is used when the text has none")
	assert.Equal(t, &TimeRange{StartHour: 14}, second.TimeRange)
	assert.Empty(t, second.VenueRaw)
}

func TestRSSExtractorMalformed(t *testing.T) {
	_, err := (&RSSExtractor{}).Extract([]byte("<html>not a feed"), "https://example.com", &locale.Locale{}, time.Now())
	assert.Error(t, err)
}

const testListing = `<html><body>
<ul class="event-list">
  <li>
    <a href="/event/1.html">親子ヨガ教室</a>
    <span class="date">2025年4月5日(土) 10:00〜11:30</span>
    <span class="venue">グリーンパレス</span>
  </li>
  <li>
    <a href="detail/2.html">絵本の読み聞かせ</a>
    <p>日程：4月6日(日)<br>場所：中央図書館 2階<br>所在地：東京都江戸川区中央3-1-3</p>
  </li>
  <li><span class="date">4月7日</span></li>
</ul>
</body></html>`

func TestHTMLExtractor(t *testing.T) {
	loc := &locale.Locale{
		Key:   "edogawa",
		Label: "江戸川区",
		Collector: locale.Collector{
			Kind:  locale.KindHTML,
			Item:  "ul.event-list li",
			Title: "a",
			Date:  ".date",
			Venue: ".venue",
		},
	}
	ref := time.Date(2025, 4, 1, 9, 0, 0, 0, jst)

	drafts, err := (&HTMLExtractor{}).Extract([]byte(testListing), "https://www.city.edogawa.tokyo.jp/event/list/", loc, ref)
	require.NoError(t, err)
	require.Len(t, drafts, 2, "items without a title are skipped")

	first := drafts[0]
	assert.Equal(t, "親子ヨガ教室", first.Title)
	assert.Equal(t, "https://www.city.edogawa.tokyo.jp/event/1.html", first.URL)
	assert.Equal(t, dates("2025-04-05"), first.Dates)
	assert.Equal(t, &TimeRange{StartHour: 10, EndHour: 11, EndMinute: 30, HasEnd: true}, first.TimeRange)
	assert.Equal(t, "グリーンパレス", first.VenueRaw)

	second := drafts[1]
	assert.Equal(t, "https://www.city.edogawa.tokyo.jp/event/list/detail/2.html", second.URL)
	assert.Equal(t, dates("2025-04-06"), second.Dates, "falls back to the item text without a date element")
	assert.Equal(t, "中央図書館 2階", second.VenueRaw)
	assert.Equal(t, "東京都江戸川区中央3-1-3", second.AddressRaw)
	assert.Nil(t, second.TimeRange)
}

func TestLabeledValue(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"same line", "会場:グリーンパレス", "グリーンパレス"},
		{"next line", "会場\nグリーンパレス 2階 集会室\n住所\n東京都", "グリーンパレス 2階 集会室"},
		{"bracketed label", "【会場】タワーホール船堀", "タワーホール船堀"},
		{"cut at next label", "会場:グリーンパレス 住所:東京都江戸川区松島1-38-1", "グリーンパレス"},
		{"longer label is not a match", "会場住所:東京都江戸川区松島1-38-1", ""},
		{"missing", "対象:小学生", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, labeledValue(tt.text, venueLabels))
		})
	}
}
