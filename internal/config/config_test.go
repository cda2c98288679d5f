package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.IngestMode != ModeListener {
		t.Errorf("IngestMode = %q, want listener", cfg.IngestMode)
	}
	if cfg.MovementTimeout != 10*time.Second {
		t.Errorf("MovementTimeout = %v, want 10s", cfg.MovementTimeout)
	}
	if cfg.FreshnessWindow != 10*time.Minute {
		t.Errorf("FreshnessWindow = %v, want 10m", cfg.FreshnessWindow)
	}
	if !cfg.AssumeOfflineNoTimestamp {
		t.Error("AssumeOfflineNoTimestamp = false, want true")
	}
	if cfg.FallbackLookback != 24*time.Hour {
		t.Errorf("FallbackLookback = %v, want 24h", cfg.FallbackLookback)
	}
	if cfg.PersistThrottleWindow != 0 {
		t.Errorf("PersistThrottleWindow = %v, want 0 (disabled)", cfg.PersistThrottleWindow)
	}
	if cfg.RetentionHorizon != 0 {
		t.Errorf("RetentionHorizon = %v, want 0 (disabled)", cfg.RetentionHorizon)
	}
	if cfg.Addr != ":3000" {
		t.Errorf("Addr = %q, want :3000", cfg.Addr)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SOBAT_CONFIG", "")
	t.Setenv("SOBAT_INGEST_MODE", "poll")
	t.Setenv("SOBAT_SOURCE_URL", "https://store.example.com")
	t.Setenv("SOBAT_MOVEMENT_TIMEOUT_MS", "20000")
	t.Setenv("SOBAT_FRESHNESS_TIMEOUT_MIN", "5")
	t.Setenv("SOBAT_ASSUME_OFFLINE_NO_TS", "false")
	t.Setenv("SOBAT_PERSIST_THROTTLE_MS", "30000")
	t.Setenv("SOBAT_RETENTION_DAYS", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.IngestMode != ModePoll {
		t.Errorf("IngestMode = %q, want poll", cfg.IngestMode)
	}
	if cfg.MovementTimeout != 20*time.Second {
		t.Errorf("MovementTimeout = %v, want 20s", cfg.MovementTimeout)
	}
	if cfg.FreshnessWindow != 5*time.Minute {
		t.Errorf("FreshnessWindow = %v, want 5m", cfg.FreshnessWindow)
	}
	if cfg.AssumeOfflineNoTimestamp {
		t.Error("AssumeOfflineNoTimestamp = true, want false")
	}
	if cfg.PersistThrottleWindow != 30*time.Second {
		t.Errorf("PersistThrottleWindow = %v, want 30s", cfg.PersistThrottleWindow)
	}
	if cfg.RetentionHorizon != 30*24*time.Hour {
		t.Errorf("RetentionHorizon = %v, want 720h", cfg.RetentionHorizon)
	}
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sobat.yaml")
	data := []byte(`
ingestMode: poll
sourceURL: https://file.example.com
movementTimeoutMs: 15000
persistThrottleMs: 10000
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SOBAT_CONFIG", path)
	// Env wins over the file.
	t.Setenv("SOBAT_SOURCE_URL", "https://env.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.IngestMode != ModePoll {
		t.Errorf("IngestMode = %q, want poll (from file)", cfg.IngestMode)
	}
	if cfg.SourceURL != "https://env.example.com" {
		t.Errorf("SourceURL = %q, want env value", cfg.SourceURL)
	}
	if cfg.MovementTimeout != 15*time.Second {
		t.Errorf("MovementTimeout = %v, want 15s (from file)", cfg.MovementTimeout)
	}
	if cfg.PersistThrottleWindow != 10*time.Second {
		t.Errorf("PersistThrottleWindow = %v, want 10s (from file)", cfg.PersistThrottleWindow)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("SOBAT_TEST_STR", "set")
	if got := GetEnvVar("SOBAT_TEST_STR", "fallback"); got != "set" {
		t.Errorf("GetEnvVar = %q, want set", got)
	}
	if got := GetEnvVar("SOBAT_TEST_ABSENT", "fallback"); got != "fallback" {
		t.Errorf("GetEnvVar absent = %q, want fallback", got)
	}

	t.Setenv("SOBAT_TEST_INT", "42")
	if got := GetEnvInt("SOBAT_TEST_INT", 7); got != 42 {
		t.Errorf("GetEnvInt = %d, want 42", got)
	}
	t.Setenv("SOBAT_TEST_INT", "not-a-number")
	if got := GetEnvInt("SOBAT_TEST_INT", 7); got != 7 {
		t.Errorf("GetEnvInt unparseable = %d, want default 7", got)
	}
}

func TestEnvOverrideUnparseableKeepsDefault(t *testing.T) {
	t.Setenv("SOBAT_CONFIG", "")
	t.Setenv("SOBAT_SOURCE_URL", "https://store.example.com")
	t.Setenv("SOBAT_MOVEMENT_TIMEOUT_MS", "fast")
	t.Setenv("SOBAT_FRESHNESS_TIMEOUT_MIN", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.MovementTimeout != 10*time.Second {
		t.Errorf("MovementTimeout = %v, want default 10s", cfg.MovementTimeout)
	}
	if cfg.FreshnessWindow != 10*time.Minute {
		t.Errorf("FreshnessWindow = %v, want default 10m", cfg.FreshnessWindow)
	}
}

func TestLoadBadFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sobat.yaml")
	if err := os.WriteFile(path, []byte("ingestMode: [broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SOBAT_CONFIG", path)

	if _, err := Load(); err == nil {
		t.Error("Load() succeeded with an unparseable config file")
	}
}

func TestLoadMissingConfigFileFails(t *testing.T) {
	t.Setenv("SOBAT_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	if _, err := Load(); err == nil {
		t.Error("Load() succeeded with a missing config file path")
	}
}
