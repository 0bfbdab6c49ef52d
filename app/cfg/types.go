package cfg

import "time"

type Cfg struct {
	// Storage
	DataDir          string
	DBPath           string
	SnapshotDir      string
	GeocodeCachePath string
	RedisAddr        string
	RedisPassword    string

	// Sources and collection
	SourcesDir           string
	UserAgent            string
	CacheTTL             int
	DefaultDays          int
	MaxDays              int
	CollectorConcurrency int
	CollectorTimeout     int
	DetailInterval       int
	BrowserSettle        int
	SchedulerInterval    int
	WorkerCount          int

	// Resolution
	GeocodeEndpoint string
	GeocodeTimeout  int
	FuzzyMinLength  int

	// HTTP server
	Port         string
	APIAccessKey string

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}

func (c *Cfg) CacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

func (c *Cfg) CollectorTimeoutDuration() time.Duration {
	return time.Duration(c.CollectorTimeout) * time.Second
}

// BatchTimeoutDuration is the longest one full collection over collectors
// sources can take, running CollectorConcurrency of them at a time.
func (c *Cfg) BatchTimeoutDuration(collectors int) time.Duration {
	workers := max(c.CollectorConcurrency, 1)
	rounds := max((collectors+workers-1)/workers, 1)
	return time.Duration(rounds) * c.CollectorTimeoutDuration()
}

func (c *Cfg) DetailIntervalDuration() time.Duration {
	return time.Duration(c.DetailInterval) * time.Millisecond
}

func (c *Cfg) BrowserSettleDuration() time.Duration {
	return time.Duration(c.BrowserSettle) * time.Millisecond
}

func (c *Cfg) SchedulerIntervalDuration() time.Duration {
	return time.Duration(c.SchedulerInterval) * time.Second
}

func (c *Cfg) GeocodeTimeoutDuration() time.Duration {
	return time.Duration(c.GeocodeTimeout) * time.Second
}

// ClampDays bounds a requested window to [1, MaxDays]; zero means the
// default window.
func (c *Cfg) ClampDays(days int) int {
	if days == 0 {
		days = c.DefaultDays
	}
	if days < 1 {
		return 1
	}
	if c.MaxDays > 0 && days > c.MaxDays {
		return c.MaxDays
	}
	return days
}
