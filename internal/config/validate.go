package config

import (
	"fmt"
	"time"
)

// Validate enforces startup configuration rules. Only conditions that
// leave the engine with no usable ingestion mode are errors; everything
// else has a default or degrades at runtime.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	switch cfg.IngestMode {
	case ModeListener:
		// Without a source URL the listener declines to start at runtime;
		// that is fatal only when there is no database to serve either.
		if cfg.SourceURL == "" && cfg.DatabaseDSN == "" {
			return fmt.Errorf("ingest mode %q requires a source URL or a database DSN", ModeListener)
		}
	case ModePoll:
		// Poll mode can still serve db-fallback rows with no live source,
		// but with neither a source nor a database there is nothing to poll.
		if cfg.SourceURL == "" && cfg.DatabaseDSN == "" {
			return fmt.Errorf("ingest mode %q requires a source URL or a database DSN", ModePoll)
		}
	default:
		return fmt.Errorf("unknown ingest mode %q (want %q or %q)", cfg.IngestMode, ModeListener, ModePoll)
	}

	if err := validateTimers(cfg); err != nil {
		return err
	}

	return nil
}

func validateTimers(cfg *Config) error {
	if cfg.MovementTimeout <= 0 {
		return fmt.Errorf("movement timeout must be positive, got %v", cfg.MovementTimeout)
	}
	if cfg.FreshnessWindow <= 0 {
		return fmt.Errorf("freshness window must be positive, got %v", cfg.FreshnessWindow)
	}
	if cfg.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("poll interval must be at least 100ms, got %v", cfg.PollInterval)
	}
	if cfg.WatchdogInterval < 100*time.Millisecond {
		return fmt.Errorf("watchdog interval must be at least 100ms, got %v", cfg.WatchdogInterval)
	}
	if cfg.PersistThrottleWindow < 0 {
		return fmt.Errorf("persist throttle window cannot be negative, got %v", cfg.PersistThrottleWindow)
	}
	if cfg.RetentionHorizon < 0 {
		return fmt.Errorf("retention horizon cannot be negative, got %v", cfg.RetentionHorizon)
	}
	if cfg.FallbackLookback <= 0 {
		return fmt.Errorf("fallback lookback must be positive, got %v", cfg.FallbackLookback)
	}
	return nil
}
