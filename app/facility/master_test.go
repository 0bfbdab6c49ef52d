package facility

import (
	"strings"
	"testing"

	"github.com/lysyi3m/civic-events/app/geo"
)

// stubLocales treats "<label> Child Facility" and "<label>子ども関連施設" as
// placeholders for every source.
type stubLocales struct {
	labels map[string]string
	areas  map[string]geo.Area
}

func (s stubLocales) IsGenericVenue(source, venue string) bool {
	label := s.labels[source]
	v := NormalizeVenue(venue)
	for _, suffix := range []string{" Child Facility", "子ども関連施設"} {
		if v == NormalizeVenue(label+suffix) {
			return true
		}
	}
	return false
}

func (s stubLocales) Area(source string) geo.Area {
	return s.areas[source]
}

func newTestMaster(opts ...Option) *Master {
	locales := stubLocales{
		labels: map[string]string{"springfield": "Springfield", "edogawa": "江戸川区"},
		areas: map[string]geo.Area{
			"edogawa": {Center: geo.NewPoint(35.7066, 139.8683, ""), RadiusKm: 8},
		},
	}
	return NewMaster(geo.NewValidator(geo.DefaultBounds), locales, opts...)
}

func TestNormalizeVenue(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"full-width latin", "ＣＥＮＴＲＡＬ　ＨＡＬＬ", "central hall"},
		{"half-width katakana", "ｸﾞﾘｰﾝﾊﾟﾚｽ", "グリーンパレス"},
		{"brackets and bullets", "【小岩】アーバンプラザ・ホール", "小岩 アーバンプラザ ホール"},
		{"whitespace runs", "  Central   Hall \t", "central hall"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeVenue(tt.in); got != tt.want {
				t.Errorf("NormalizeVenue(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStripRoomSuffix(t *testing.T) {
	tests := map[string]string{
		"central hall, 3f meeting room": "central hall",
		"central hall":                  "central hall",
		"小岩アーバンプラザ 第1会議室":              "小岩アーバンプラザ",
		"グリーンパレス 2階 集会室":               "グリーンパレス",
		"タワーホール船堀 ギャラリー":               "タワーホール船堀",
		"区民センター 3f":                    "区民センター",
		"gallery":                       "",
	}

	for in, want := range tests {
		if got := StripRoomSuffix(in); got != want {
			t.Errorf("StripRoomSuffix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSetAddressIsWriteOnce(t *testing.T) {
	m := newTestMaster()

	if !m.SetAddress("edogawa", "グリーンパレス", "東京都江戸川区松島1-38-1") {
		t.Fatal("first write should succeed")
	}
	if m.SetAddress("edogawa", "ｸﾞﾘｰﾝﾊﾟﾚｽ", "東京都江戸川区中央1-4-1") {
		t.Error("second write for the same normalized key should be a no-op")
	}

	if got := m.GetAddress("edogawa", "グリーンパレス"); got != "東京都江戸川区松島1-38-1" {
		t.Errorf("GetAddress = %q, want first value", got)
	}
}

func TestSetPointIsWriteOnceAndValidated(t *testing.T) {
	m := newTestMaster()

	yokohama := geo.NewPoint(35.4437, 139.6380, "神奈川県横浜市中区本町一丁目")
	if m.SetPoint("edogawa", "横浜市民ギャラリー", yokohama) {
		t.Error("point outside the source radius must not be stored")
	}

	first := geo.NewPoint(35.7330, 139.8810, "東京都江戸川区北小岩一丁目")
	second := geo.NewPoint(35.7066, 139.8683, "東京都江戸川区中央一丁目")
	if !m.SetPoint("edogawa", "小岩アーバンプラザ", first) {
		t.Fatal("first point write should succeed")
	}
	if m.SetPoint("edogawa", "小岩アーバンプラザ", second) {
		t.Error("second point write should be a no-op")
	}

	got := m.GetPoint("edogawa", "小岩アーバンプラザ")
	if got == nil || got.Lat != first.Lat || got.Address != first.Address {
		t.Errorf("GetPoint = %+v, want %+v", got, first)
	}
}

func TestFuzzyLookupSymmetry(t *testing.T) {
	m := newTestMaster()
	m.SetAddress("springfield", "Central Hall", "1-2-3 Main Street")

	tests := []struct {
		name  string
		venue string
		want  string
	}{
		{"query extends registered name", "Central Hall, 3F Meeting Room", "1-2-3 Main Street"},
		{"query is a substring of registered name", "Central Hal", "1-2-3 Main Street"},
		{"exact", "central hall", "1-2-3 Main Street"},
		{"unrelated", "Riverside Library", ""},
		{"too short to fuzzy match", "Ce", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.GetAddress("springfield", tt.venue); got != tt.want {
				t.Errorf("GetAddress(%q) = %q, want %q", tt.venue, got, tt.want)
			}
		})
	}

	t.Run("registered name is the longer one", func(t *testing.T) {
		m := newTestMaster()
		m.SetAddress("springfield", "Central Hall Annex Gallery", "9 Annex Road")
		if got := m.GetAddress("springfield", "Central Hall Annex"); got != "9 Annex Road" {
			t.Errorf("GetAddress = %q", got)
		}
	})

	t.Run("other sources never match", func(t *testing.T) {
		if got := m.GetAddress("edogawa", "Central Hall"); got != "" {
			t.Errorf("GetAddress across sources = %q", got)
		}
	})
}

func TestMinFuzzyLengthIsTunable(t *testing.T) {
	strict := newTestMaster(WithMinFuzzyLength(6))
	strict.SetAddress("edogawa", "船堀タワーホール", "東京都江戸川区船堀4-1-1")

	if got := strict.GetAddress("edogawa", "タワーホール"); got == "" {
		t.Error("six-rune name should match with min length 6")
	}
	if got := strict.GetAddress("edogawa", "ホール"); got != "" {
		t.Errorf("three-rune name should not match with min length 6, got %q", got)
	}

	loose := newTestMaster()
	loose.SetAddress("edogawa", "船堀タワーホール", "東京都江戸川区船堀4-1-1")
	if got := loose.GetAddress("edogawa", "ホール"); got == "" {
		t.Error("three-rune name should match with the default min length")
	}
}

func TestGenericVenueGuard(t *testing.T) {
	m := newTestMaster()

	if m.SetAddress("springfield", "Springfield Child Facility", "") {
		t.Error("empty address must not be stored")
	}
	if m.SetAddress("springfield", "Springfield Child Facility", "Springfield City Hall, 1 Civic Plaza") {
		t.Error("generic venue must never be written")
	}
	if m.SetPoint("springfield", "Springfield Child Facility", geo.NewPoint(35.7, 139.8, "")) {
		t.Error("generic venue point must never be written")
	}

	addresses, points := m.Counts()
	if addresses != 0 || points != 0 {
		t.Fatalf("tables should be empty, got %d addresses and %d points", addresses, points)
	}

	m.SetAddress("springfield", "Springfield Child Facility Annex", "22 Elm Street")
	if got := m.GetAddress("springfield", "Springfield Child Facility"); got != "" {
		t.Errorf("generic venue must not fuzzy match a real facility, got %q", got)
	}

	if got := m.GetAddress("springfield", "Evergreen Community Center"); got != "" {
		t.Errorf("unrelated venue matched %q", got)
	}
}

func TestEntriesRestore(t *testing.T) {
	m := newTestMaster()
	m.SetAddress("edogawa", "グリーンパレス", "東京都江戸川区松島1-38-1")
	m.SetPoint("edogawa", "グリーンパレス", geo.NewPoint(35.7072, 139.8657, "東京都江戸川区松島一丁目"))

	entries := m.Entries()
	if len(entries) != 2 {
		t.Fatalf("Entries() returned %d entries, want 2", len(entries))
	}

	restored := newTestMaster()
	if n := restored.Restore(entries); n != 2 {
		t.Errorf("Restore() = %d, want 2", n)
	}
	if got := restored.GetAddress("edogawa", "グリーンパレス"); !strings.HasPrefix(got, "東京都江戸川区松島") {
		t.Errorf("restored address = %q", got)
	}
	if p := restored.GetPoint("edogawa", "グリーンパレス 2階 集会室"); p == nil {
		t.Error("restored point should be reachable through fuzzy lookup")
	}

	if n := restored.Restore(entries); n != 0 {
		t.Errorf("second Restore() = %d, want 0", n)
	}
}
