// Package config defines service configuration and its loading order:
// defaults, then an optional YAML file, then CLIMATE_-prefixed environment
// variables.
package config

import (
	"errors"
	"fmt"
	"time"
)

// SourceKind selects the feed adapter used for a data source.
const (
	// SourceKindNSIDC is the NSIDC daily sea ice extent CSV format.
	SourceKindNSIDC = "nsidc_csv"
	// SourceKindReanalyzer is the Climate Reanalyzer year-keyed JSON format.
	SourceKindReanalyzer = "reanalyzer_json"
)

// Source describes one configured climate data feed.
type Source struct {
	ID    string `koanf:"id"`
	Kind  string `koanf:"kind"`
	URL   string `koanf:"url"`
	Title string `koanf:"title"`
	// Unit is the measurement unit forwarded to the renderer, e.g. "°C".
	Unit string `koanf:"unit"`
}

// Config holds all service settings.
type Config struct {
	HTTPAddr        string        `koanf:"http_addr"`
	LogLevel        string        `koanf:"log_level"`
	LogFormat       string        `koanf:"log_format"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Fetch and refresh behaviour.
	FetchTimeout    time.Duration `koanf:"fetch_timeout"`
	RefreshInterval time.Duration `koanf:"refresh_interval"`
	CacheTTL        time.Duration `koanf:"cache_ttl"`
	CacheSize       int           `koanf:"cache_size"`

	// Default baseline range, clamped per source to its observed span.
	BaselineStartYear int `koanf:"baseline_start_year"`
	BaselineEndYear   int `koanf:"baseline_end_year"`

	Sources []Source `koanf:"sources"`

	// Optional Kafka sink for enriched observations.
	KafkaBrokers []string `koanf:"kafka_brokers"`
	KafkaTopic   string   `koanf:"kafka_topic"`
}

// KafkaEnabled reports whether the enriched-observation sink is configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// New returns a Config populated with defaults: the five public feeds the
// service was built around and the conventional 1991-2020 climate normal.
func New() *Config {
	return &Config{
		HTTPAddr:        ":8080",
		LogLevel:        "info",
		LogFormat:       "json",
		ShutdownTimeout: 10 * time.Second,

		FetchTimeout:    30 * time.Second,
		RefreshInterval: time.Hour,
		CacheTTL:        time.Hour,
		CacheSize:       16,

		BaselineStartYear: 1991,
		BaselineEndYear:   2020,

		Sources: []Source{
			{
				ID:    "north-atlantic-sst",
				Kind:  SourceKindReanalyzer,
				URL:   "https://climatereanalyzer.org/clim/sst_daily/json/oisst2.1_natlan1_sst_day.json",
				Title: "North Atlantic Sea Surface Temperature (0-60N, 0-80W)",
				Unit:  "°C",
			},
			{
				ID:    "world-sst",
				Kind:  SourceKindReanalyzer,
				URL:   "https://climatereanalyzer.org/clim/sst_daily/json/oisst2.1_world2_sst_day.json",
				Title: "World Sea Surface Temperature (60S-60N)",
				Unit:  "°C",
			},
			{
				ID:    "antarctic-sie",
				Kind:  SourceKindNSIDC,
				URL:   "https://noaadata.apps.nsidc.org/NOAA/G02135/south/daily/data/S_seaice_extent_daily_v3.0.csv",
				Title: "Antarctic Sea Ice Extent",
				Unit:  "million km²",
			},
			{
				ID:    "arctic-sie",
				Kind:  SourceKindNSIDC,
				URL:   "https://noaadata.apps.nsidc.org/NOAA/G02135/north/daily/data/N_seaice_extent_daily_v3.0.csv",
				Title: "Arctic Sea Ice Extent",
				Unit:  "million km²",
			},
			{
				ID:    "world-t2m",
				Kind:  SourceKindReanalyzer,
				URL:   "https://climatereanalyzer.org/clim/t2_daily/json/cfsr_world_t2_day.json",
				Title: "World 2m Air Temperature",
				Unit:  "°C",
			},
		},
	}
}

// Validate checks invariants that loading cannot express.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("http_addr must not be empty")
	}
	if c.FetchTimeout <= 0 {
		return errors.New("fetch_timeout must be positive")
	}
	if c.RefreshInterval <= 0 {
		return errors.New("refresh_interval must be positive")
	}
	if c.CacheTTL <= 0 {
		return errors.New("cache_ttl must be positive")
	}
	if c.CacheSize <= 0 {
		return errors.New("cache_size must be positive")
	}
	if c.BaselineStartYear > c.BaselineEndYear {
		return fmt.Errorf("baseline range %d-%d: start exceeds end", c.BaselineStartYear, c.BaselineEndYear)
	}
	if len(c.Sources) == 0 {
		return errors.New("at least one source is required")
	}

	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if s.ID == "" {
			return fmt.Errorf("sources[%d]: id must not be empty", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("sources[%d]: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = true
		if s.URL == "" {
			return fmt.Errorf("source %q: url must not be empty", s.ID)
		}
		switch s.Kind {
		case SourceKindNSIDC, SourceKindReanalyzer:
		default:
			return fmt.Errorf("source %q: unknown kind %q", s.ID, s.Kind)
		}
	}

	if c.KafkaEnabled() && c.KafkaTopic == "" {
		return errors.New("kafka_brokers is set but kafka_topic is empty")
	}
	return nil
}
