package api

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/lysyi3m/civic-events/app/collect"
	"github.com/lysyi3m/civic-events/app/snapshot"
)

var weekdays = [...]string{"日", "月", "火", "水", "木", "金", "土"}

type Generator struct {
	version string
}

func NewGenerator(version string) *Generator {
	return &Generator{version: version}
}

// Run renders a snapshot as an RSS 2.0 channel, one item per event, with
// GeoRSS points for located events.
func (g *Generator) Run(s *snapshot.Snapshot, selfLink string) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom" xmlns:georss="http://www.georss.org/georss">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", "Civic Events", 4)
	g.writeElement(&buf, "link", selfLink, 4)
	g.writeElement(&buf, "description", fmt.Sprintf("Municipal events from %s to %s", s.From, s.To), 4)

	if selfLink != "" {
		buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
			html.EscapeString(selfLink)))
	}

	g.writeElement(&buf, "lastBuildDate", s.SavedAt.In(time.Local).Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("Civic-Events/%s", cmp.Or(g.version, "dev")), 4)
	g.writeElement(&buf, "language", "ja", 4)

	for _, record := range s.Items {
		g.writeItem(&buf, record)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, record collect.EventRecord) {
	buf.WriteString("    <item>\n")

	buf.WriteString("      <guid isPermaLink=\"false\">")
	xml.EscapeText(buf, []byte(record.ID))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", fmt.Sprintf("%s %s", eventWhen(record), record.Title), 6)
	g.writeElement(buf, "link", record.URL, 6)
	g.writeElement(buf, "description", eventDescription(record), 6)
	g.writeElement(buf, "pubDate", record.StartsAt.Format(time.RFC1123Z), 6)
	g.writeElement(buf, "category", record.SourceLabel, 6)

	for _, tag := range record.Tags {
		if tag != "" {
			g.writeElement(buf, "category", tag, 6)
		}
	}

	if record.Lat != 0 || record.Lng != 0 {
		g.writeElement(buf, "georss:point",
			strconv.FormatFloat(record.Lat, 'f', 6, 64)+" "+strconv.FormatFloat(record.Lng, 'f', 6, 64), 6)
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

// eventWhen formats the start as 4/5(土) 10:00, dropping the time when it
// is not known.
func eventWhen(r collect.EventRecord) string {
	start := r.StartsAt
	when := fmt.Sprintf("%d/%d(%s)", start.Month(), start.Day(), weekdays[start.Weekday()])
	if r.TimeUnknown {
		return when
	}
	when += start.Format(" 15:04")
	if r.EndsAt != nil {
		when += r.EndsAt.In(start.Location()).Format("〜15:04")
	}
	return when
}

func eventDescription(r collect.EventRecord) string {
	var parts []string
	if r.VenueName != "" {
		parts = append(parts, "会場："+r.VenueName)
	}
	if r.Address != "" {
		parts = append(parts, "住所："+r.Address)
	}
	if r.LocationFallback {
		parts = append(parts, "(地図上の位置は目安です)")
	}
	return strings.Join(parts, " / ")
}
