// Package bootstrap assembles the collection pipeline from configuration.
// Both the server and the batch collector start from here.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/lysyi3m/civic-events/app/api"
	"github.com/lysyi3m/civic-events/app/cfg"
	"github.com/lysyi3m/civic-events/app/collect"
	"github.com/lysyi3m/civic-events/app/database"
	"github.com/lysyi3m/civic-events/app/facility"
	"github.com/lysyi3m/civic-events/app/geo"
	"github.com/lysyi3m/civic-events/app/geocode"
	"github.com/lysyi3m/civic-events/app/locale"
	"github.com/lysyi3m/civic-events/app/resolve"
	"github.com/lysyi3m/civic-events/app/snapshot"
	"github.com/lysyi3m/civic-events/app/tasks"
)

type App struct {
	Registry     *locale.Registry
	GeocodeCache *geocode.Cache
	Master       *facility.Master
	DB           *database.DB
	Runs         database.RunStore
	Orchestrator *tasks.Orchestrator

	redis   *snapshot.RedisStore
	browser *collect.BrowserFetcher
}

// SetupLogging installs the default slog handler.
func SetupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

// New loads sources, restores persisted resolution state and builds one
// collector per enabled source. Redis is optional: when it cannot be
// reached snapshots are kept on disk only.
func New(ctx context.Context, c *cfg.Cfg) (*App, error) {
	registry := locale.NewRegistry(c.SourcesDir)
	if err := registry.Run(); err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}
	slog.Info("Sources loaded", "count", registry.Count(), "enabled", len(registry.Enabled()), "dir", c.SourcesDir)

	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := database.Open(c.DBPath)
	if err != nil {
		return nil, err
	}

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("Database ready", "path", c.DBPath, "version", version, "dirty", dirty)

	validator := geo.NewValidator(geo.DefaultBounds)

	geoCache := geocode.LoadCacheFile(c.GeocodeCachePath)
	slog.Info("Geocode cache loaded", "entries", geoCache.Len(), "path", c.GeocodeCachePath)

	geocoder := geocode.NewResolver(geoCache, validator, geocode.Options{
		Endpoint:  c.GeocodeEndpoint,
		Timeout:   c.GeocodeTimeoutDuration(),
		UserAgent: c.UserAgent,
	})

	master := facility.NewMaster(validator, registry, facility.WithMinFuzzyLength(c.FuzzyMinLength))
	facilities := database.NewFacilityRepository(db)
	if entries, err := facilities.LoadAll(ctx); err != nil {
		slog.Warn("Failed to restore facility master", "error", err)
	} else {
		restored := master.Restore(entries)
		addresses, points := master.Counts()
		slog.Info("Facility master restored", "entries", restored, "addresses", addresses, "points", points)
	}

	app := &App{
		Registry:     registry,
		GeocodeCache: geoCache,
		Master:       master,
		DB:           db,
		Runs:         database.NewRunRepository(db),
	}

	stores := []snapshot.Store{snapshot.NewFileStore(c.SnapshotDir)}
	if c.RedisAddr != "" {
		redisStore, err := snapshot.NewRedisStore(ctx, c.RedisAddr, c.RedisPassword, 2*c.CacheTTLDuration())
		if err != nil {
			slog.Warn("Redis unavailable, keeping snapshots on disk only", "addr", c.RedisAddr, "error", err)
		} else {
			app.redis = redisStore
			stores = append(stores, redisStore)
			slog.Info("Snapshot mirror enabled", "redis", c.RedisAddr)
		}
	}

	app.browser = collect.NewBrowserFetcher(c.UserAgent, c.BrowserSettleDuration())
	fetchers := collect.Fetchers{
		HTTP:    collect.NewHTTPFetcher(&http.Client{Timeout: 60 * time.Second}, c.UserAgent),
		Browser: app.browser,
	}

	resolver := resolve.NewResolver(geocoder, master, validator)
	var collectors []collect.Collector
	for _, loc := range registry.Enabled() {
		collectors = append(collectors, collect.NewSourceCollector(loc, fetchers.For(loc), resolver, collect.Options{
			Timezone:       time.Local,
			DetailInterval: c.DetailIntervalDuration(),
		}))
	}

	app.Orchestrator = tasks.NewOrchestrator(collectors, tasks.Persistence{
		Stores:           stores,
		GeocodeCache:     geoCache,
		GeocodeCachePath: c.GeocodeCachePath,
		Master:           master,
		Facilities:       facilities,
		Runs:             app.Runs,
	}, tasks.Options{
		TTL:              c.CacheTTLDuration(),
		Concurrency:      c.CollectorConcurrency,
		CollectorTimeout: c.CollectorTimeoutDuration(),
		Timezone:         time.Local,
	})
	slog.Info("Orchestrator ready",
		"collectors", len(collectors),
		"concurrency", c.CollectorConcurrency,
		"ttl", c.CacheTTLDuration().String())

	return app, nil
}

// Close releases the browser, Redis and the database.
// Stats collects what /health reports. The Redis mirror is included only
// when it is connected.
func (a *App) Stats() api.Stats {
	stats := api.Stats{Geocode: a.GeocodeCache, Facilities: a.Master}
	if a.redis != nil {
		stats.Snapshots = a.redis
	}
	return stats
}

func (a *App) Close() {
	if a.browser != nil {
		a.browser.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			slog.Warn("Failed to close Redis", "error", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			slog.Warn("Failed to close database", "error", err)
		}
	}
}
