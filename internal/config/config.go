package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default download locations of the raw files.
const (
	DefaultTripURL = "https://d37ci6vzurychx.cloudfront.net/trip-data/yellow_tripdata_2024-01.parquet"
	DefaultZoneURL = "https://d37ci6vzurychx.cloudfront.net/misc/taxi_zone_lookup.csv"
)

type Config struct {
	DataDir  string
	TripFile string // comma separated paths or globs
	ZoneFile string
	TripURL  string // fetched into TripFile when it is a single missing path
	ZoneURL  string

	FetchTimeout time.Duration

	// TripsDatabaseURL, when set, replaces the trip files with a SQL table.
	TripsDatabaseURL string
	TripsTable       string
	RefreshInterval  time.Duration // how often a SQL source is checked for changes

	QueryPath   string
	ScanWorkers int
	CacheSize   int

	HTTPAddr string

	NATSURL         string
	NATSSubject     string
	NATSQueue       string
	LogNATSSubjects bool

	MetricsAddr string
	WatchFiles  bool
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.DataDir = getenvDefault("DATA_DIR", "data")
	cfg.TripFile = getenvDefault("TRIP_FILES", filepath.Join(cfg.DataDir, "yellow_tripdata_2024-01.parquet"))
	cfg.ZoneFile = getenvDefault("ZONE_FILE", filepath.Join(cfg.DataDir, "taxi_zone_lookup.csv"))
	cfg.TripURL = getenvDefault("TRIP_URL", DefaultTripURL)
	cfg.ZoneURL = getenvDefault("ZONE_URL", DefaultZoneURL)

	if v := os.Getenv("FETCH_TIMEOUT_SEC"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec <= 0 {
			return nil, fmt.Errorf("invalid FETCH_TIMEOUT_SEC: %q", v)
		}
		cfg.FetchTimeout = time.Duration(sec) * time.Second
	} else {
		cfg.FetchTimeout = 5 * time.Minute
	}

	cfg.TripsDatabaseURL = firstNonEmpty(os.Getenv("TRIPS_DATABASE_URL"), os.Getenv("DATABASE_URL"))
	cfg.TripsTable = getenvDefault("TRIPS_TABLE", "yellow_tripdata")

	// Trips refresh interval (seconds)
	if v := os.Getenv("TRIPS_REFRESH_INTERVAL_SEC"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec <= 0 {
			return nil, fmt.Errorf("invalid TRIPS_REFRESH_INTERVAL_SEC: %q", v)
		}
		cfg.RefreshInterval = time.Duration(sec) * time.Second
	} else {
		cfg.RefreshInterval = 30 * time.Minute
	}

	cfg.QueryPath = strings.ToLower(getenvDefault("QUERY_PATH", "summary"))
	if cfg.QueryPath != "summary" && cfg.QueryPath != "scan" {
		return nil, fmt.Errorf("invalid QUERY_PATH: %q", cfg.QueryPath)
	}

	if v := os.Getenv("SCAN_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid SCAN_WORKERS: %q", v)
		}
		cfg.ScanWorkers = n
	} else {
		cfg.ScanWorkers = runtime.GOMAXPROCS(0)
	}

	if v := os.Getenv("CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid CACHE_SIZE: %q", v)
		}
		cfg.CacheSize = n
	} else {
		cfg.CacheSize = 1024
	}

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", ":8080")

	// Empty NATS_URL disables the NATS responder.
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.NATSSubject = getenvDefault("NATS_SUBJECT", "taxi.dashboard")
	cfg.NATSQueue = getenvDefault("NATS_QUEUE", "taxi-dashboard")
	cfg.LogNATSSubjects = parseBool(os.Getenv("LOG_NATS_SUBJECTS"))

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	cfg.WatchFiles = parseBool(getenvDefault("WATCH_FILES", "true"))

	return cfg, nil
}

// UseDatabase reports whether trips are read from SQL instead of files.
func (c *Config) UseDatabase() bool { return c.TripsDatabaseURL != "" }

// TripPatterns splits TripFile into its paths and globs.
func (c *Config) TripPatterns() []string {
	var out []string
	for _, p := range strings.Split(c.TripFile, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsCSV reports whether the trip files are CSV rather than parquet.
func (c *Config) IsCSV() bool {
	for _, p := range c.TripPatterns() {
		if !strings.EqualFold(filepath.Ext(p), ".csv") {
			return false
		}
	}
	return len(c.TripPatterns()) > 0
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
