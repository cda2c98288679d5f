package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Ingestion mode selectors. Exactly one adapter runs per process.
const (
	ModeListener = "listener"
	ModePoll     = "poll"
)

// Config holds the full engine configuration surface.
type Config struct {
	// Ingestion
	IngestMode string
	SourceURL  string
	SourcePath string

	// Durable history
	DatabaseDSN      string
	FallbackLookback time.Duration
	RetentionHorizon time.Duration // 0 disables the retention sweeper

	// Status inference thresholds
	MovementTimeout          time.Duration
	FreshnessWindow          time.Duration
	AssumeOfflineNoTimestamp bool

	// Timers
	PollInterval       time.Duration
	WatchdogInterval   time.Duration
	MetricsLogInterval time.Duration // 0 disables the periodic metrics log

	// Persistence throttling; 0 disables
	PersistThrottleWindow time.Duration

	// Process surface
	Addr      string
	JWTSecret string
	LogFile   string
}

// Default returns the baseline configuration. Thresholds match the
// behavior the fleet has been operated with: 10s movement timeout,
// 10 minute freshness window, offline assumed when no timestamp resolves.
func Default() *Config {
	return &Config{
		IngestMode:               ModeListener,
		SourcePath:               "/",
		FallbackLookback:         24 * time.Hour,
		RetentionHorizon:         0,
		MovementTimeout:          10 * time.Second,
		FreshnessWindow:          10 * time.Minute,
		AssumeOfflineNoTimestamp: true,
		PollInterval:             5 * time.Second,
		WatchdogInterval:         5 * time.Second,
		MetricsLogInterval:       0,
		PersistThrottleWindow:    0,
		Addr:                     ":3000",
		JWTSecret:                "sobatnelayan_secret_key",
	}
}

// Load merges Default() + optional YAML file + SOBAT_* env overrides,
// then validates the result. The file is taken from SOBAT_CONFIG when
// set, otherwise ./sobat.yaml when present. Env always wins.
func Load() (*Config, error) {
	cfg := Default()

	path := os.Getenv("SOBAT_CONFIG")
	if path == "" {
		if _, err := os.Stat("sobat.yaml"); err == nil {
			path = "sobat.yaml"
		}
	}
	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// fileConfig mirrors Config for the YAML layer. Durations are plain
// integers in the unit the key names, matching the env variables.
type fileConfig struct {
	IngestMode            string `yaml:"ingestMode"`
	SourceURL             string `yaml:"sourceURL"`
	SourcePath            string `yaml:"sourcePath"`
	DatabaseDSN           string `yaml:"databaseDSN"`
	FallbackLookbackHours int    `yaml:"fallbackLookbackHours"`
	RetentionDays         int    `yaml:"retentionDays"`
	MovementTimeoutMs     int    `yaml:"movementTimeoutMs"`
	FreshnessTimeoutMin   int    `yaml:"freshnessTimeoutMin"`
	AssumeOfflineNoTs     *bool  `yaml:"assumeOfflineNoTimestamp"`
	PollIntervalMs        int    `yaml:"pollIntervalMs"`
	WatchdogIntervalMs    int    `yaml:"watchdogIntervalMs"`
	MetricsLogMs          int    `yaml:"metricsLogMs"`
	PersistThrottleMs     int    `yaml:"persistThrottleMs"`
	Addr                  string `yaml:"addr"`
	JWTSecret             string `yaml:"jwtSecret"`
	LogFile               string `yaml:"logFile"`
}

// applyFile merges non-zero file values over the current config.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}

	if fc.IngestMode != "" {
		cfg.IngestMode = fc.IngestMode
	}
	if fc.SourceURL != "" {
		cfg.SourceURL = fc.SourceURL
	}
	if fc.SourcePath != "" {
		cfg.SourcePath = fc.SourcePath
	}
	if fc.DatabaseDSN != "" {
		cfg.DatabaseDSN = fc.DatabaseDSN
	}
	if fc.FallbackLookbackHours != 0 {
		cfg.FallbackLookback = time.Duration(fc.FallbackLookbackHours) * time.Hour
	}
	if fc.RetentionDays != 0 {
		cfg.RetentionHorizon = time.Duration(fc.RetentionDays) * 24 * time.Hour
	}
	if fc.MovementTimeoutMs != 0 {
		cfg.MovementTimeout = time.Duration(fc.MovementTimeoutMs) * time.Millisecond
	}
	if fc.FreshnessTimeoutMin != 0 {
		cfg.FreshnessWindow = time.Duration(fc.FreshnessTimeoutMin) * time.Minute
	}
	if fc.AssumeOfflineNoTs != nil {
		cfg.AssumeOfflineNoTimestamp = *fc.AssumeOfflineNoTs
	}
	if fc.PollIntervalMs != 0 {
		cfg.PollInterval = time.Duration(fc.PollIntervalMs) * time.Millisecond
	}
	if fc.WatchdogIntervalMs != 0 {
		cfg.WatchdogInterval = time.Duration(fc.WatchdogIntervalMs) * time.Millisecond
	}
	if fc.MetricsLogMs != 0 {
		cfg.MetricsLogInterval = time.Duration(fc.MetricsLogMs) * time.Millisecond
	}
	if fc.PersistThrottleMs != 0 {
		cfg.PersistThrottleWindow = time.Duration(fc.PersistThrottleMs) * time.Millisecond
	}
	if fc.Addr != "" {
		cfg.Addr = fc.Addr
	}
	if fc.JWTSecret != "" {
		cfg.JWTSecret = fc.JWTSecret
	}
	if fc.LogFile != "" {
		cfg.LogFile = fc.LogFile
	}

	return nil
}

// applyEnvOverrides applies SOBAT_* environment variables to the config.
func applyEnvOverrides(cfg *Config) {
	cfg.IngestMode = GetEnvVar("SOBAT_INGEST_MODE", cfg.IngestMode)
	cfg.SourceURL = GetEnvVar("SOBAT_SOURCE_URL", cfg.SourceURL)
	cfg.SourcePath = GetEnvVar("SOBAT_SOURCE_PATH", cfg.SourcePath)
	cfg.DatabaseDSN = GetEnvVar("SOBAT_DB_DSN", cfg.DatabaseDSN)
	cfg.Addr = GetEnvVar("SOBAT_ADDR", cfg.Addr)
	cfg.JWTSecret = GetEnvVar("SOBAT_JWT_SECRET", cfg.JWTSecret)
	cfg.LogFile = GetEnvVar("SOBAT_LOG_FILE", cfg.LogFile)

	cfg.MovementTimeout = envMillis("SOBAT_MOVEMENT_TIMEOUT_MS", cfg.MovementTimeout)
	cfg.PollInterval = envMillis("SOBAT_POLL_INTERVAL_MS", cfg.PollInterval)
	cfg.WatchdogInterval = envMillis("SOBAT_WATCHDOG_INTERVAL_MS", cfg.WatchdogInterval)
	cfg.MetricsLogInterval = envMillis("SOBAT_METRICS_LOG_MS", cfg.MetricsLogInterval)
	cfg.PersistThrottleWindow = envMillis("SOBAT_PERSIST_THROTTLE_MS", cfg.PersistThrottleWindow)

	cfg.FreshnessWindow = time.Duration(GetEnvInt("SOBAT_FRESHNESS_TIMEOUT_MIN",
		int(cfg.FreshnessWindow/time.Minute))) * time.Minute
	cfg.FallbackLookback = time.Duration(GetEnvInt("SOBAT_FALLBACK_LOOKBACK_HOURS",
		int(cfg.FallbackLookback/time.Hour))) * time.Hour
	cfg.RetentionHorizon = time.Duration(GetEnvInt("SOBAT_RETENTION_DAYS",
		int(cfg.RetentionHorizon/(24*time.Hour)))) * 24 * time.Hour

	if val := os.Getenv("SOBAT_ASSUME_OFFLINE_NO_TS"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.AssumeOfflineNoTimestamp = b
		}
	}
}

// envMillis reads an integer-millisecond env variable, keeping the
// current value on absence or parse failure.
func envMillis(key string, current time.Duration) time.Duration {
	return time.Duration(GetEnvInt(key, int(current/time.Millisecond))) * time.Millisecond
}

// GetEnvVar returns the value of an environment variable with a default.
func GetEnvVar(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt returns the value of an environment variable as an int with a default.
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
