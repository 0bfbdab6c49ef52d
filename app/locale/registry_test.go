package locale

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSource(t *testing.T, dir, key, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, key+".yml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRegistryLoadValidSource(t *testing.T) {
	tempDir := t.TempDir()

	writeSource(t, tempDir, "edogawa", `
label: "江戸川区"
prefecture: "東京都"
url: "https://www.city.edogawa.tokyo.jp/event/list.html"
center:
  lat: 35.7066
  lng: 139.8683
radius_km: 8
boilerplate_addresses:
  - "東京都江戸川区中央1-4-1"
tags: ["kids"]

settings:
  enabled: true
  timeout: 15
  renderer: browser

collector:
  item: "ul.event-list li"
  title: "a"
  link: "a"
  date: ".date"
  detail:
    enabled: true
    venue: "th:contains('会場') + td"

filters:
  - field: "title"
    excludes:
      - "中止"
`)

	registry := NewRegistry(tempDir)
	if err := registry.Run(); err != nil {
		t.Fatal(err)
	}

	if registry.Count() != 1 {
		t.Errorf("Expected 1 source, got %d", registry.Count())
	}

	loc, err := registry.Get("edogawa")
	if err != nil {
		t.Fatal(err)
	}

	if loc.Key != "edogawa" {
		t.Errorf("Expected key 'edogawa', got '%s'", loc.Key)
	}
	if loc.Collector.Kind != KindHTML {
		t.Errorf("Expected kind inferred as html, got '%s'", loc.Collector.Kind)
	}
	if loc.Settings.Renderer != RendererBrowser {
		t.Errorf("Expected browser renderer, got '%s'", loc.Settings.Renderer)
	}
	if loc.Center == nil || loc.Center.Lat != 35.7066 || loc.RadiusKm != 8 {
		t.Errorf("Unexpected area: %+v", loc.Area())
	}
	if loc.AdminLabel != "江戸川区" {
		t.Errorf("Expected admin label to default to label, got '%s'", loc.AdminLabel)
	}
	if loc.Settings.DetailConcurrency != 4 {
		t.Errorf("Expected default detail concurrency 4, got %d", loc.Settings.DetailConcurrency)
	}
	if len(loc.Filters) != 1 {
		t.Errorf("Expected 1 filter, got %d", len(loc.Filters))
	}
}

func TestRegistryDefaults(t *testing.T) {
	tempDir := t.TempDir()

	writeSource(t, tempDir, "ichikawa", `
label: "市川市"
url: "https://www.city.ichikawa.lg.jp/event/rss.xml"
center:
  lat: 35.7219
  lng: 139.9311
`)

	registry := NewRegistry(tempDir)
	if err := registry.Run(); err != nil {
		t.Fatal(err)
	}

	loc, err := registry.Get("ichikawa")
	if err != nil {
		t.Fatal(err)
	}

	if loc.Collector.Kind != KindRSS {
		t.Errorf("Expected default kind rss, got '%s'", loc.Collector.Kind)
	}
	if loc.RadiusKm != 15 {
		t.Errorf("Expected default radius 15km, got %v", loc.RadiusKm)
	}
	if loc.Settings.Timeout != 30 {
		t.Errorf("Expected default timeout 30, got %d", loc.Settings.Timeout)
	}
	if loc.Settings.Enabled {
		t.Error("Expected source disabled by default")
	}
	if got := len(registry.Enabled()); got != 0 {
		t.Errorf("Expected no enabled sources, got %d", got)
	}
}

func TestRegistryInvalidSources(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing url", `label: "江戸川区"`, "source URL is required"},
		{"missing label", `url: "https://example.com"`, "source label is required"},
		{"html without selectors", "label: x\nurl: https://example.com\ncollector:\n  kind: html\n", "requires item and title"},
		{"unknown kind", "label: x\nurl: https://example.com\ncollector:\n  kind: pdf\n", "unknown collector kind"},
		{"unknown renderer", "label: x\nurl: https://example.com\nsettings:\n  renderer: curl\n", "unknown renderer"},
		{"bad filter field", "label: x\nurl: https://example.com\nfilters:\n  - field: authors\n    excludes: [a]\n", "invalid filter field"},
		{"empty filter", "label: x\nurl: https://example.com\nfilters:\n  - field: title\n", "at least one include or exclude"},
		{"negative radius", "label: x\nurl: https://example.com\nradius_km: -1\n", "radius must be non-negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := t.TempDir()
			writeSource(t, tempDir, "bad", tt.content)

			err := NewRegistry(tempDir).Run()
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRegistryMissingDirectory(t *testing.T) {
	registry := NewRegistry(filepath.Join(t.TempDir(), "nope"))
	if err := registry.Run(); err != nil {
		t.Errorf("Expected missing directory to be ignored, got %v", err)
	}
	if _, err := registry.Get("anything"); err == nil {
		t.Error("Expected lookup of unknown source to fail")
	}
}

func TestIsGenericVenue(t *testing.T) {
	loc := &Locale{Key: "springfield", Label: "Springfield", URL: "https://example.com", GenericSuffixes: []string{" Child Facility"}}
	edogawa := &Locale{Key: "edogawa", Label: "江戸川区", URL: "https://example.com"}

	registry := NewRegistry("")
	for _, l := range []*Locale{loc, edogawa} {
		if err := registry.Add(l); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		source string
		venue  string
		want   bool
	}{
		{"springfield", "Springfield Child Facility", true},
		{"springfield", "ＳＰＲＩＮＧＦＩＥＬＤ　Child Facility", true},
		{"springfield", "Child Facility", true},
		{"springfield", "Springfield Child Facility Annex", false},
		{"springfield", "Central Hall", false},
		{"edogawa", "江戸川区子ども関連施設", true},
		{"edogawa", "江戸川区 区内施設", true},
		{"edogawa", "グリーンパレス", false},
		{"unknown", "Springfield Child Facility", false},
		{"springfield", "", false},
	}

	for _, tt := range tests {
		if got := registry.IsGenericVenue(tt.source, tt.venue); got != tt.want {
			t.Errorf("IsGenericVenue(%q, %q) = %v, want %v", tt.source, tt.venue, got, tt.want)
		}
	}

	if got := edogawa.GenericVenue(); got != "江戸川区子ども関連施設" {
		t.Errorf("GenericVenue() = %q", got)
	}
}

func TestIsBoilerplateAddress(t *testing.T) {
	loc := &Locale{BoilerplateAddresses: []string{"東京都江戸川区中央1-4-1"}}

	tests := map[string]bool{
		"東京都江戸川区中央1-4-1":       true,
		"東京都江戸川区中央１－４－１":       true,
		"東京都 江戸川区 中央1-4-1 区役所": true,
		"東京都江戸川区中央1-4-10":      false,
		"東京都江戸川区松島1-38-1":      false,
		"":                      false,
	}

	for address, want := range tests {
		if got := loc.IsBoilerplateAddress(address); got != want {
			t.Errorf("IsBoilerplateAddress(%q) = %v, want %v", address, got, want)
		}
	}
}
