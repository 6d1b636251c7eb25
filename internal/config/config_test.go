package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allVars = []string{
	"DATA_DIR", "TRIP_FILES", "ZONE_FILE", "TRIP_URL", "ZONE_URL", "FETCH_TIMEOUT_SEC",
	"TRIPS_DATABASE_URL", "DATABASE_URL", "TRIPS_TABLE", "TRIPS_REFRESH_INTERVAL_SEC", "QUERY_PATH", "SCAN_WORKERS",
	"CACHE_SIZE", "HTTP_ADDR", "NATS_URL", "NATS_SUBJECT", "NATS_QUEUE", "LOG_NATS_SUBJECTS",
	"METRICS_ADDR", "WATCH_FILES",
}

// clean runs the test from an empty directory so no .env is picked up.
func clean(t *testing.T) {
	t.Helper()
	for _, k := range allVars {
		t.Setenv(k, "")
	}
	t.Chdir(t.TempDir())
}

func TestDefaults(t *testing.T) {
	clean(t)
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("data", "yellow_tripdata_2024-01.parquet"), cfg.TripFile)
	assert.Equal(t, filepath.Join("data", "taxi_zone_lookup.csv"), cfg.ZoneFile)
	assert.Equal(t, DefaultTripURL, cfg.TripURL)
	assert.Equal(t, 5*time.Minute, cfg.FetchTimeout)
	assert.Equal(t, 30*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, "summary", cfg.QueryPath)
	assert.Equal(t, 1024, cfg.CacheSize)
	assert.Positive(t, cfg.ScanWorkers)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "taxi.dashboard", cfg.NATSSubject)
	assert.Empty(t, cfg.NATSURL)
	assert.True(t, cfg.WatchFiles)
	assert.False(t, cfg.UseDatabase())
	assert.False(t, cfg.IsCSV())
}

func TestOverrides(t *testing.T) {
	clean(t)
	t.Setenv("TRIP_FILES", "a/*.csv, b/x.csv")
	t.Setenv("QUERY_PATH", "SCAN")
	t.Setenv("SCAN_WORKERS", "3")
	t.Setenv("FETCH_TIMEOUT_SEC", "10")
	t.Setenv("DATABASE_URL", "sqlite:///tmp/x.db")
	t.Setenv("LOG_NATS_SUBJECTS", "yes")
	t.Setenv("WATCH_FILES", "off")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a/*.csv", "b/x.csv"}, cfg.TripPatterns())
	assert.True(t, cfg.IsCSV())
	assert.Equal(t, "scan", cfg.QueryPath)
	assert.Equal(t, 3, cfg.ScanWorkers)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.True(t, cfg.UseDatabase())
	assert.True(t, cfg.LogNATSSubjects)
	assert.False(t, cfg.WatchFiles)
}

func TestDotEnv(t *testing.T) {
	clean(t)
	// godotenv never overrides a variable that is set, even to ""
	os.Unsetenv("HTTP_ADDR")
	os.Unsetenv("CACHE_SIZE")
	require.NoError(t, os.WriteFile(".env", []byte("HTTP_ADDR=:9999\nCACHE_SIZE=5\n"), 0o644))
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, 5, cfg.CacheSize)
}

func TestInvalidValues(t *testing.T) {
	for k, v := range map[string]string{
		"QUERY_PATH":                 "fast",
		"SCAN_WORKERS":               "0",
		"CACHE_SIZE":                 "lots",
		"FETCH_TIMEOUT_SEC":          "-1",
		"TRIPS_REFRESH_INTERVAL_SEC": "x",
	} {
		t.Run(k, func(t *testing.T) {
			clean(t)
			t.Setenv(k, v)
			_, err := Load()
			assert.ErrorContains(t, err, "invalid "+k)
		})
	}
}
