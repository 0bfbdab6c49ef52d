package api

import (
	"encoding/xml"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/civic-events/app/collect"
	"github.com/lysyi3m/civic-events/app/snapshot"
)

var jst = time.FixedZone("JST", 9*3600)

func TestGenerateRSS(t *testing.T) {
	generator := NewGenerator("test")

	end := time.Date(2025, 4, 5, 12, 0, 0, 0, jst)
	s := &snapshot.Snapshot{
		Key:     "days:14",
		SavedAt: time.Date(2025, 4, 1, 9, 0, 0, 0, jst),
		Payload: snapshot.Payload{
			From:  "2025-04-01",
			To:    "2025-04-14",
			Count: 2,
			Items: []collect.EventRecord{
				{
					ID:          "edogawa:abc",
					Source:      "edogawa",
					SourceLabel: "江戸川区",
					Title:       "親子リトミック & 体操",
					StartsAt:    time.Date(2025, 4, 5, 10, 0, 0, 0, jst),
					EndsAt:      &end,
					VenueName:   "小岩アーバンプラザ",
					Address:     "東京都江戸川区北小岩1-17-1",
					Lat:         35.7463,
					Lng:         139.8832,
					Tags:        []string{"子育て"},
					URL:         "https://example.jp/event/rhythm.html",
				},
				{
					ID:               "koto:def",
					Source:           "koto",
					SourceLabel:      "江東区",
					Title:            "防災講座",
					StartsAt:         time.Date(2025, 4, 7, 0, 0, 0, 0, jst),
					TimeUnknown:      true,
					VenueName:        "江東区区内施設",
					LocationFallback: true,
				},
			},
		},
	}

	rss, err := generator.Run(s, "http://localhost:8080/api/events.rss")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !strings.Contains(rss, `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Error("RSS should contain XML declaration")
	}
	if !strings.Contains(rss, `<guid isPermaLink="false">edogawa:abc</guid>`) {
		t.Error("RSS should use record IDs as non-permalink GUIDs")
	}
	if !strings.Contains(rss, "<title>4/5(土) 10:00〜12:00 親子リトミック &amp; 体操</title>") {
		t.Errorf("RSS should contain the dated, escaped title, got:\n%s", rss)
	}
	if !strings.Contains(rss, "<title>4/7(月) 防災講座</title>") {
		t.Error("Time-unknown events should carry only the date")
	}
	if !strings.Contains(rss, "<georss:point>35.746300 139.883200</georss:point>") {
		t.Error("RSS should contain a GeoRSS point for located events")
	}
	if strings.Count(rss, "<georss:point>") != 1 {
		t.Error("Events without coordinates should have no GeoRSS point")
	}
	if !strings.Contains(rss, "<category>子育て</category>") || !strings.Contains(rss, "<category>江戸川区</category>") {
		t.Error("RSS should list the source label and tags as categories")
	}
	if !strings.Contains(rss, "<generator>Civic-Events/test</generator>") {
		t.Error("RSS should name the generator version")
	}

	var doc struct {
		Items []struct {
			Title string `xml:"title"`
		} `xml:"channel>item"`
	}
	if err := xml.Unmarshal([]byte(rss), &doc); err != nil {
		t.Fatalf("Generated RSS is not well-formed XML: %v", err)
	}
	if len(doc.Items) != 2 {
		t.Errorf("Expected 2 items, got %d", len(doc.Items))
	}
}

func TestEventsRSSEndpoint(t *testing.T) {
	provider := &fakeProvider{}
	rec, _ := serve(t, newTestServer(provider, nil, ""), http.MethodGet, "/api/events.rss?days=7&refresh=1", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if got := provider.lastCall(); got.days != 7 || got.refresh {
		t.Errorf("Expected a cached read of 7 days, got %+v", got)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/xml") {
		t.Errorf("Expected XML content type, got %s", ct)
	}
	if rec.Header().Get("X-Feed-Items") != "1" {
		t.Errorf("Expected X-Feed-Items 1, got %s", rec.Header().Get("X-Feed-Items"))
	}
	if !strings.Contains(rec.Body.String(), "<atom:link href=\"http://example.com/api/events.rss?days=7&amp;refresh=1\"") {
		t.Errorf("Expected self link built from the request, got:\n%s", rec.Body.String())
	}
}
