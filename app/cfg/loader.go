package cfg

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DataDir          string `long:"data-dir" env:"DATA_DIR" default:"./data" description:"Directory for the database, snapshots and geocode cache"`
	DBPath           string `long:"db-path" env:"DB_PATH" description:"SQLite database file (default: <data-dir>/events.db)"`
	SnapshotDir      string `long:"snapshot-dir" env:"SNAPSHOT_DIR" description:"Snapshot directory (default: <data-dir>/snapshots)"`
	GeocodeCachePath string `long:"geocode-cache" env:"GEOCODE_CACHE_PATH" description:"Geocode cache file (default: <data-dir>/geocode_cache.json)"`
	RedisAddr        string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for mirroring snapshots (optional)"`
	RedisPassword    string `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password"`

	// Sources and collection
	SourcesDir           string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source definition files"`
	UserAgent            string `long:"user-agent" env:"USER_AGENT" default:"Civic Events/1.0" description:"User agent string for HTTP requests"`
	CacheTTL             int    `long:"cache-ttl" env:"CACHE_TTL" default:"600" description:"Snapshot lifetime in seconds"`
	DefaultDays          int    `long:"default-days" env:"DEFAULT_DAYS" default:"14" description:"Window served when a request names none"`
	MaxDays              int    `long:"max-days" env:"MAX_DAYS" default:"60" description:"Largest window a request may ask for"`
	CollectorConcurrency int    `long:"collector-concurrency" env:"COLLECTOR_CONCURRENCY" default:"2" description:"Sources collected in parallel"`
	CollectorTimeout     int    `long:"collector-timeout" env:"COLLECTOR_TIMEOUT" default:"300" description:"Per-source collection timeout in seconds"`
	DetailInterval       int    `long:"detail-interval" env:"DETAIL_INTERVAL_MS" default:"200" description:"Minimum gap between detail-page requests to one source in milliseconds"`
	BrowserSettle        int    `long:"browser-settle" env:"BROWSER_SETTLE_MS" default:"1500" description:"Wait after page load for browser-rendered sources in milliseconds"`
	SchedulerInterval    int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"0" description:"Background refresh interval in seconds (0 disables)"`
	WorkerCount          int    `long:"worker-count" env:"WORKER_COUNT" default:"1" description:"Number of background refresh workers"`

	// Resolution
	GeocodeEndpoint string `long:"geocode-endpoint" env:"GEOCODE_ENDPOINT" description:"Address search endpoint (default: GSI address search)"`
	GeocodeTimeout  int    `long:"geocode-timeout" env:"GEOCODE_TIMEOUT" default:"12" description:"Geocoding request timeout in seconds"`
	FuzzyMinLength  int    `long:"fuzzy-min-length" env:"FUZZY_MIN_LENGTH" default:"3" description:"Minimum venue name length for fuzzy facility matches"`

	// HTTP server
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"Asia/Tokyo" description:"Timezone for event dates (e.g., Asia/Tokyo)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs parses args and the environment, after loading a .env file when
// one exists. Extra option groups (a command's own flags) are parsed
// alongside. A nil config with a nil error means help was shown.
func LoadArgs(args []string, groups ...any) (*Cfg, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Printf("Warning: Failed to load .env file: %v\n", err)
	}

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)
	for _, group := range groups {
		if _, err := parser.AddGroup("Command Options", "", group); err != nil {
			return nil, fmt.Errorf("failed to register options: %w", err)
		}
	}

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DataDir:              raw.DataDir,
		DBPath:               cmp.Or(raw.DBPath, filepath.Join(raw.DataDir, "events.db")),
		SnapshotDir:          cmp.Or(raw.SnapshotDir, filepath.Join(raw.DataDir, "snapshots")),
		GeocodeCachePath:     cmp.Or(raw.GeocodeCachePath, filepath.Join(raw.DataDir, "geocode_cache.json")),
		RedisAddr:            raw.RedisAddr,
		RedisPassword:        raw.RedisPassword,
		SourcesDir:           raw.SourcesDir,
		UserAgent:            raw.UserAgent,
		CacheTTL:             raw.CacheTTL,
		DefaultDays:          raw.DefaultDays,
		MaxDays:              raw.MaxDays,
		CollectorConcurrency: raw.CollectorConcurrency,
		CollectorTimeout:     raw.CollectorTimeout,
		DetailInterval:       raw.DetailInterval,
		BrowserSettle:        raw.BrowserSettle,
		SchedulerInterval:    raw.SchedulerInterval,
		WorkerCount:          raw.WorkerCount,
		GeocodeEndpoint:      raw.GeocodeEndpoint,
		GeocodeTimeout:       raw.GeocodeTimeout,
		FuzzyMinLength:       raw.FuzzyMinLength,
		Port:                 raw.Port,
		APIAccessKey:         raw.APIAccessKey,
		Timezone:             raw.Timezone,
		Debug:                raw.Debug,
		Version:              GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func validate(cfg *Cfg) error {
	positiveFields := map[string]int{
		"cache TTL":             cfg.CacheTTL,
		"default days":          cfg.DefaultDays,
		"max days":              cfg.MaxDays,
		"collector concurrency": cfg.CollectorConcurrency,
		"collector timeout":     cfg.CollectorTimeout,
		"geocode timeout":       cfg.GeocodeTimeout,
		"fuzzy min length":      cfg.FuzzyMinLength,
	}

	for fieldName, fieldValue := range positiveFields {
		if fieldValue <= 0 {
			return fmt.Errorf("%s must be positive", fieldName)
		}
	}

	if cfg.DefaultDays > cfg.MaxDays {
		return fmt.Errorf("default days (%d) exceeds max days (%d)", cfg.DefaultDays, cfg.MaxDays)
	}
	if cfg.SchedulerInterval < 0 || cfg.DetailInterval < 0 || cfg.BrowserSettle < 0 {
		return fmt.Errorf("intervals must be non-negative")
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
