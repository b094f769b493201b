package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, time.Hour, cfg.RefreshInterval)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, 1991, cfg.BaselineStartYear)
	assert.Equal(t, 2020, cfg.BaselineEndYear)
	assert.False(t, cfg.KafkaEnabled())

	require.Len(t, cfg.Sources, 5)
	ids := make([]string, len(cfg.Sources))
	for i, s := range cfg.Sources {
		ids[i] = s.ID
	}
	assert.Equal(t, []string{
		"north-atlantic-sst", "world-sst", "antarctic-sie", "arctic-sie", "world-t2m",
	}, ids)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CLIMATE_HTTP_ADDR", ":9090")
	t.Setenv("CLIMATE_LOG_LEVEL", "debug")
	t.Setenv("CLIMATE_LOG_FORMAT", "text")
	t.Setenv("CLIMATE_REFRESH_INTERVAL", "30m")
	t.Setenv("CLIMATE_BASELINE_START_YEAR", "1981")
	t.Setenv("CLIMATE_BASELINE_END_YEAR", "2010")
	t.Setenv("CLIMATE_KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("CLIMATE_KAFKA_TOPIC", "climate-observations")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, 1981, cfg.BaselineStartYear)
	assert.Equal(t, 2010, cfg.BaselineEndYear)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "climate-observations", cfg.KafkaTopic)
	assert.True(t, cfg.KafkaEnabled())
}

func TestLoad_YAMLFile(t *testing.T) {
	content := `
http_addr: ":7070"
baseline_start_year: 1979
baseline_end_year: 2000
sources:
  - id: test-feed
    kind: nsidc_csv
    url: https://example.com/daily.csv
    title: Test Feed
    unit: million km²
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CLIMATE_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.HTTPAddr)
	assert.Equal(t, 1979, cfg.BaselineStartYear)
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "test-feed", cfg.Sources[0].ID)
	assert.Equal(t, SourceKindNSIDC, cfg.Sources[0].Kind)
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	content := "http_addr: \":7070\"\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CLIMATE_CONFIG", path)
	t.Setenv("CLIMATE_HTTP_ADDR", ":6060")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":6060", cfg.HTTPAddr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"empty addr", func(c *Config) { c.HTTPAddr = "" }, "http_addr"},
		{"bad fetch timeout", func(c *Config) { c.FetchTimeout = 0 }, "fetch_timeout"},
		{"bad refresh interval", func(c *Config) { c.RefreshInterval = -time.Second }, "refresh_interval"},
		{"inverted baseline", func(c *Config) { c.BaselineStartYear = 2021 }, "start exceeds end"},
		{"no sources", func(c *Config) { c.Sources = nil }, "at least one source"},
		{"source without id", func(c *Config) { c.Sources[0].ID = "" }, "id must not be empty"},
		{"duplicate source id", func(c *Config) { c.Sources[1].ID = c.Sources[0].ID }, "duplicate id"},
		{"source without url", func(c *Config) { c.Sources[0].URL = "" }, "url must not be empty"},
		{"unknown kind", func(c *Config) { c.Sources[0].Kind = "ftp" }, "unknown kind"},
		{"kafka without topic", func(c *Config) { c.KafkaBrokers = []string{"b:9092"} }, "kafka_topic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
