package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	maxSimilarityThreshold = 1.0
	envLocal               = "local"
)

type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"local"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPPort int    `env:"HTTP_PORT" envDefault:"8080"`

	// Feed registry
	FeedsFile     string   `env:"FEEDS_FILE"`
	CriticalFeeds []string `env:"CRITICAL_FEEDS" envSeparator:","`

	// Scheduling
	RefreshIntervalMinutes int           `env:"REFRESH_INTERVAL_MINUTES" envDefault:"10"`
	RetryCheckInterval     time.Duration `env:"RETRY_CHECK_INTERVAL" envDefault:"30s"`
	StaleRetryGate         time.Duration `env:"STALE_RETRY_GATE" envDefault:"2m"`

	// Fetching
	FetchTimeout   time.Duration `env:"FETCH_TIMEOUT" envDefault:"12s"`
	FetchUserAgent string        `env:"FETCH_USER_AGENT" envDefault:"Mozilla/5.0 (compatible; signal-ingest/1.0)"`
	FetchMaxBodyMB int           `env:"FETCH_MAX_BODY_MB" envDefault:"8"`
	FetchHostRPS   float64       `env:"FETCH_HOST_RPS" envDefault:"4"`

	// Credentials, as id=key comma lists
	ClientKeys map[string]string `env:"CLIENT_KEYS" envSeparator:"," envKeyValSeparator:"="`
	GroupKeys  map[string]string `env:"GROUP_KEYS" envSeparator:"," envKeyValSeparator:"="`
	ServerKeys map[string]string `env:"SERVER_KEYS" envSeparator:"," envKeyValSeparator:"="`

	// Clustering
	ClusterSimilarityThreshold float64 `env:"CLUSTER_SIMILARITY_THRESHOLD" envDefault:"0.72"`
	GeoClusterRadiusPx         float64 `env:"GEO_CLUSTER_RADIUS_PX" envDefault:"24"`

	// Snapshot
	LiveMode     bool   `env:"LIVE_MODE" envDefault:"true"`
	SnapshotFile string `env:"SNAPSHOT_FILE"`

	// Geocoding
	GeocodeEnabled       bool          `env:"GEOCODE_ENABLED" envDefault:"false"`
	GeocodeBaseURL       string        `env:"GEOCODE_BASE_URL" envDefault:"https://nominatim.openstreetmap.org/search"`
	GeocodeInterval      time.Duration `env:"GEOCODE_INTERVAL" envDefault:"1100ms"`
	GeocodeMaxPerRefresh int           `env:"GEOCODE_MAX_PER_REFRESH" envDefault:"25"`

	// Credibility
	CredibilityTier1Domains string `env:"CREDIBILITY_TIER1_DOMAINS"`
	CredibilityTier2Domains string `env:"CREDIBILITY_TIER2_DOMAINS"`
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	applyAliases(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks value ranges that struct tags cannot express.
func (c *Config) Validate() error {
	switch {
	case c.RefreshIntervalMinutes <= 0:
		return fmt.Errorf("REFRESH_INTERVAL_MINUTES must be positive, got %d", c.RefreshIntervalMinutes)
	case c.ClusterSimilarityThreshold <= 0 || c.ClusterSimilarityThreshold > maxSimilarityThreshold:
		return fmt.Errorf("CLUSTER_SIMILARITY_THRESHOLD must be in (0, 1], got %v", c.ClusterSimilarityThreshold)
	case c.GeoClusterRadiusPx <= 0:
		return fmt.Errorf("GEO_CLUSTER_RADIUS_PX must be positive, got %v", c.GeoClusterRadiusPx)
	case c.HTTPPort <= 0:
		return fmt.Errorf("HTTP_PORT must be positive, got %d", c.HTTPPort)
	default:
		return nil
	}
}

// RefreshInterval returns the full refresh period.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMinutes) * time.Minute
}

// IsLocal reports whether the process runs in a developer environment.
func (c *Config) IsLocal() bool {
	return c.AppEnv == envLocal
}

// applyAliases honors older variable names when the new one is unset.
func applyAliases(cfg *Config) {
	if !hasEnv("HTTP_PORT") {
		setIntFromEnv("HEALTH_PORT", &cfg.HTTPPort)
	}

	if !hasEnv("REFRESH_INTERVAL_MINUTES") {
		setMinutesFromDuration("REFRESH_INTERVAL", &cfg.RefreshIntervalMinutes)
	}

	if !hasEnv("CLUSTER_SIMILARITY_THRESHOLD") {
		setFloatFromEnv("SIMILARITY_THRESHOLD", &cfg.ClusterSimilarityThreshold)
	}
}

func hasEnv(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

func setIntFromEnv(key string, target *int) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	parsed, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return
	}

	*target = parsed
}

func setFloatFromEnv(key string, target *float64) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return
	}

	*target = parsed
}

func setMinutesFromDuration(key string, target *int) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	parsed, err := time.ParseDuration(strings.TrimSpace(val))
	if err != nil || parsed < time.Minute {
		return
	}

	*target = int(parsed / time.Minute)
}
