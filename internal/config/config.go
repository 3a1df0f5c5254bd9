package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is loaded once at process start from the environment. The api and
// worker binaries share one shape; each reads the parts it needs.
type Config struct {
	ServiceName string
	LogLevel    string

	APIPort           string
	APIMaxConnections int
	APIRateLimitRPS   float64
	APIRateLimitBurst int
	MetricsPort       string

	PostgresDSN string

	NATSURL     string
	NATSSubject string

	RegistryPath string
	DefaultStudy string

	ScannerWorkers int

	MatchFileNameWeight  float64
	MatchColumnsWeight   float64
	MatchHighThreshold   float64
	MatchMediumThreshold float64
	MatchEpsilon         float64

	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	BreakerEnabled      bool
}

func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: envOr("SERVICE_NAME", "edc-ingest"),
		LogLevel:    envOr("LOG_LEVEL", "info"),

		APIPort:     envOr("API_PORT", "8080"),
		MetricsPort: envOr("METRICS_PORT", "9090"),

		NATSURL:     envOr("NATS_URL", "nats://localhost:4222"),
		NATSSubject: envOr("NATS_SUBJECT", "batches.import"),

		RegistryPath: envOr("REGISTRY_PATH", "configs/registry.yaml"),
		DefaultStudy: envOr("DEFAULT_STUDY", "Study 1"),
	}

	var err error
	if cfg.PostgresDSN, err = mustEnv("POSTGRES_DSN"); err != nil {
		return nil, err
	}

	if cfg.APIMaxConnections, err = intEnv("API_MAX_CONNECTIONS", 256); err != nil {
		return nil, err
	}
	if cfg.APIRateLimitRPS, err = floatEnv("API_RATE_LIMIT_RPS", 10); err != nil {
		return nil, err
	}
	if cfg.APIRateLimitBurst, err = intEnv("API_RATE_LIMIT_BURST", 20); err != nil {
		return nil, err
	}
	if cfg.ScannerWorkers, err = intEnv("SCANNER_WORKERS", 4); err != nil {
		return nil, err
	}

	if cfg.MatchFileNameWeight, err = floatEnv("MATCH_FILENAME_WEIGHT", 0.4); err != nil {
		return nil, err
	}
	if cfg.MatchColumnsWeight, err = floatEnv("MATCH_COLUMNS_WEIGHT", 0.6); err != nil {
		return nil, err
	}
	if cfg.MatchHighThreshold, err = floatEnv("MATCH_HIGH_THRESHOLD", 0.85); err != nil {
		return nil, err
	}
	if cfg.MatchMediumThreshold, err = floatEnv("MATCH_MEDIUM_THRESHOLD", 0.60); err != nil {
		return nil, err
	}
	if cfg.MatchEpsilon, err = floatEnv("MATCH_EPSILON", 0.01); err != nil {
		return nil, err
	}

	if cfg.RetryMaxAttempts, err = intEnv("RETRY_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.RetryInitialBackoff, err = durationEnv("RETRY_INITIAL_BACKOFF", 100*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.RetryMaxBackoff, err = durationEnv("RETRY_MAX_BACKOFF", 400*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.BreakerEnabled, err = boolEnv("BREAKER_ENABLED", false); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func mustEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("config: %s is required", key)
	}
	return v, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return f, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
