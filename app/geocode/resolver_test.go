package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/civic-events/app/geo"
)

type fakeFeature struct {
	lat, lng float64
	title    string
}

// newAddressSearch serves the address-search response format for the given
// query table and counts requests per query.
func newAddressSearch(t *testing.T, table map[string][]fakeFeature) (*httptest.Server, *sync.Map) {
	t.Helper()
	calls := &sync.Map{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		n, _ := calls.LoadOrStore(q, new(int64))
		atomic.AddInt64(n.(*int64), 1)

		switch q {
		case "boom":
			w.WriteHeader(http.StatusInternalServerError)
			return
		case "garbage":
			w.Write([]byte(`{"not":"an array"`))
			return
		}

		out := []map[string]any{}
		for _, f := range table[q] {
			out = append(out, map[string]any{
				"type":       "Feature",
				"geometry":   map[string]any{"type": "Point", "coordinates": []float64{f.lng, f.lat}},
				"properties": map[string]any{"addressCode": "", "title": f.title},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func callCount(calls *sync.Map, q string) int64 {
	n, ok := calls.Load(q)
	if !ok {
		return 0
	}
	return atomic.LoadInt64(n.(*int64))
}

var edogawaArea = geo.Area{Center: geo.NewPoint(35.7066, 139.8683, ""), RadiusKm: 8}

func TestResolveEmptyQueryMakesNoCall(t *testing.T) {
	srv, calls := newAddressSearch(t, nil)
	r := NewResolver(NewCache(), geo.NewValidator(geo.DefaultBounds), Options{Endpoint: srv.URL})

	assert.Nil(t, r.Resolve(context.Background(), "   "))
	assert.Equal(t, int64(0), callCount(calls, ""))
	assert.Equal(t, 0, r.Cache().Len())
}

func TestResolveReturnsTopCandidateAndCaches(t *testing.T) {
	srv, calls := newAddressSearch(t, map[string][]fakeFeature{
		"江戸川区 中央1-4-1": {
			{35.7066, 139.8683, "東京都江戸川区中央一丁目"},
			{35.0, 139.0, "somewhere else"},
		},
	})
	r := NewResolver(NewCache(), geo.NewValidator(geo.DefaultBounds), Options{Endpoint: srv.URL})
	ctx := context.Background()

	p := r.Resolve(ctx, "江戸川区　 中央1-4-1")
	require.NotNil(t, p)
	assert.InDelta(t, 35.7066, p.Lat, 1e-9)
	assert.InDelta(t, 139.8683, p.Lng, 1e-9)
	assert.Equal(t, "東京都江戸川区中央一丁目", p.Address)

	again := r.Lookup(ctx, "江戸川区 中央1-4-1")
	assert.True(t, again.Cached)
	assert.Equal(t, Found, again.Outcome)
	assert.Equal(t, int64(1), callCount(calls, "江戸川区 中央1-4-1"))
}

func TestResolveFailuresAreCachedAsAbsence(t *testing.T) {
	srv, calls := newAddressSearch(t, nil)
	r := NewResolver(NewCache(), geo.NewValidator(geo.DefaultBounds), Options{Endpoint: srv.URL})
	ctx := context.Background()

	tests := []struct {
		query   string
		outcome Outcome
	}{
		{"boom", Error},
		{"garbage", Error},
		{"nowhere", NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			res := r.Lookup(ctx, tt.query)
			assert.Nil(t, res.Point)
			assert.Equal(t, tt.outcome, res.Outcome)

			second := r.Lookup(ctx, tt.query)
			assert.Nil(t, second.Point)
			assert.True(t, second.Cached)
			assert.Equal(t, int64(1), callCount(calls, tt.query))
		})
	}
}

func TestResolveUnreachableServiceIsNoResult(t *testing.T) {
	srv, _ := newAddressSearch(t, nil)
	endpoint := srv.URL
	srv.Close()

	r := NewResolver(NewCache(), nil, Options{Endpoint: endpoint})
	res := r.Lookup(context.Background(), "江戸川区")
	assert.Nil(t, res.Point)
	assert.Equal(t, Error, res.Outcome)
	assert.Error(t, res.Err)
}

func TestAbandonedLookupLeavesNoAbsence(t *testing.T) {
	srv, calls := newAddressSearch(t, map[string][]fakeFeature{
		"小岩アーバンプラザ": {{35.7330, 139.8810, "東京都江戸川区北小岩一丁目"}},
	})
	r := NewResolver(NewCache(), nil, Options{Endpoint: srv.URL})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	abandoned := r.Lookup(ctx, "小岩アーバンプラザ")
	assert.Equal(t, Error, abandoned.Outcome)
	assert.ErrorIs(t, abandoned.Err, context.Canceled)
	assert.Equal(t, 0, r.Cache().Len())

	res := r.Lookup(context.Background(), "小岩アーバンプラザ")
	require.Equal(t, Found, res.Outcome)
	assert.False(t, res.Cached)
	assert.Equal(t, "東京都江戸川区北小岩一丁目", res.Point.Address)
	assert.Equal(t, int64(1), callCount(calls, "小岩アーバンプラザ"))
}

func TestSharedLookupOutlivesCancelledCaller(t *testing.T) {
	arrived := make(chan struct{})
	release := make(chan struct{})
	var requests int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&requests, 1) == 1 {
			close(arrived)
		}
		<-release
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"geometry":{"coordinates":[139.8620,35.6440]},"properties":{"title":"東京都江戸川区臨海町六丁目"}}]`))
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() {
		select {
		case <-release:
		default:
			close(release)
		}
	})

	r := NewResolver(NewCache(), nil, Options{Endpoint: srv.URL})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan Result, 1)
	go func() { first <- r.Lookup(ctx, "葛西臨海公園") }()

	<-arrived
	cancel()

	abandoned := <-first
	assert.Equal(t, Error, abandoned.Outcome)
	assert.ErrorIs(t, abandoned.Err, context.Canceled)

	close(release)

	res := r.Lookup(context.Background(), "葛西臨海公園")
	require.Equal(t, Found, res.Outcome)
	assert.Equal(t, "東京都江戸川区臨海町六丁目", res.Point.Address)
	assert.Equal(t, int64(1), atomic.LoadInt64(&requests))

	p, ok := r.Cache().Get("葛西臨海公園")
	assert.True(t, ok)
	assert.NotNil(t, p)
}

func TestConcurrentLookupsShareOneRequest(t *testing.T) {
	srv, calls := newAddressSearch(t, map[string][]fakeFeature{
		"葛西臨海公園": {{35.6440, 139.8620, "東京都江戸川区臨海町六丁目"}},
	})
	r := NewResolver(NewCache(), nil, Options{Endpoint: srv.URL})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Resolve(context.Background(), "葛西臨海公園")
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), callCount(calls, "葛西臨海公園"))
}

func TestResolveRanked(t *testing.T) {
	srv, _ := newAddressSearch(t, map[string][]fakeFeature{
		"東京都江戸川区":   {{35.7066, 139.8683, "東京都江戸川区"}},
		"横浜市民ギャラリー": {{35.4437, 139.6380, "神奈川県横浜市中区本町一丁目"}},
		"小岩アーバンプラザ": {{35.7330, 139.8810, "東京都江戸川区北小岩一丁目"}},
	})
	r := NewResolver(NewCache(), geo.NewValidator(geo.DefaultBounds), Options{Endpoint: srv.URL})
	ctx := context.Background()

	t.Run("skips municipality-level and distant matches", func(t *testing.T) {
		p := r.ResolveRanked(ctx, []string{"東京都江戸川区", "横浜市民ギャラリー", "小岩アーバンプラザ"}, edogawaArea)
		require.NotNil(t, p)
		assert.Equal(t, "東京都江戸川区北小岩一丁目", p.Address)
	})

	t.Run("top-ranked hit outside radius is never returned", func(t *testing.T) {
		assert.Nil(t, r.ResolveRanked(ctx, []string{"横浜市民ギャラリー"}, edogawaArea))
	})

	t.Run("no candidates", func(t *testing.T) {
		assert.Nil(t, r.ResolveRanked(ctx, nil, edogawaArea))
	})
}

func TestCacheRoundTrip(t *testing.T) {
	cache := NewCache()
	cache.Put("小岩アーバンプラザ", geo.NewPoint(35.7330, 139.8810, "東京都江戸川区北小岩一丁目"))
	cache.Put("どこにもない施設", nil)
	cache.Put("葛西臨海公園", geo.NewPoint(35.6440, 139.8620, "東京都江戸川区臨海町六丁目"))

	path := filepath.Join(t.TempDir(), "geocode-cache.json")
	require.NoError(t, cache.SaveFile(path))

	loaded := LoadCacheFile(path)
	require.Equal(t, cache.Len(), loaded.Len())

	for _, q := range []string{"小岩アーバンプラザ", "どこにもない施設", "葛西臨海公園"} {
		want, wantOK := cache.Get(q)
		got, gotOK := loaded.Get(q)
		assert.Equal(t, wantOK, gotOK, q)
		assert.Equal(t, want, got, q)
	}

	absent, ok := loaded.Get("どこにもない施設")
	assert.True(t, ok, "absence marker must survive the round trip")
	assert.Nil(t, absent)

	original, err := json.Marshal(cache)
	require.NoError(t, err)
	reloaded, err := json.Marshal(loaded)
	require.NoError(t, err)
	assert.JSONEq(t, string(original), string(reloaded), "entry order must be preserved")
}

func TestLoadCacheFileColdStart(t *testing.T) {
	dir := t.TempDir()

	assert.Equal(t, 0, LoadCacheFile(filepath.Join(dir, "missing.json")).Len())

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, writeFile(corrupt, `[["a", {"lat": 1}], "oops"`))
	assert.Equal(t, 0, LoadCacheFile(corrupt).Len())
}

func TestCachePutIsAddOnly(t *testing.T) {
	cache := NewCache()
	cache.Put("q", nil)
	cache.Put("q", geo.NewPoint(35.7, 139.8, "later"))

	p, ok := cache.Get("q")
	assert.True(t, ok)
	assert.Nil(t, p)

	hits, misses := cache.Stats()
	assert.Equal(t, 0, hits)
	assert.Equal(t, 1, misses)
}

func TestIsMunicipalityLevel(t *testing.T) {
	tests := []struct {
		address string
		want    bool
	}{
		{"東京都江戸川区", true},
		{"東京都", true},
		{"神奈川県横浜市中区", true},
		{"千葉県市川市", true},
		{"東京都西多摩郡瑞穂町", true},
		{"東京都江戸川区中央一丁目", false},
		{"東京都江戸川区篠崎町", false},
		{"東京都町田市中町", false},
		{"神奈川県横浜市中区本町一丁目", false},
		{"三重県四日市市", true},
		{"三重県四日市市諏訪町1-5", false},
		{"東京都東村山市", true},
		{"奈良県大和郡山市", true},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			assert.Equal(t, tt.want, IsMunicipalityLevel(tt.address))
		})
	}
}

func TestMunicipality(t *testing.T) {
	tests := map[string]string{
		"東京都江戸川区中央一丁目":   "江戸川区",
		"千葉県市川市八幡":       "市川市",
		"神奈川県横浜市中区本町一丁目": "横浜市",
		"東京都町田市中町":       "町田市",
		"三重県四日市市諏訪町1-5":  "四日市市",
		"広島県廿日市市下平良一丁目": "廿日市市",
		"千葉県市川市市川一丁目":    "市川市",
		"東京都東村山市本町":      "東村山市",
		"新潟県十日町市本町":      "十日町市",
		"奈良県大和郡山市北郡山町":   "大和郡山市",
		"福島県郡山市朝日":       "郡山市",
		"東京都西多摩郡瑞穂町箱根ケ崎": "西多摩郡瑞穂町",
		"":               "",
	}
	for address, want := range tests {
		assert.Equal(t, want, Municipality(address), fmt.Sprintf("Municipality(%q)", address))
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}
