package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Env mutation rules out t.Parallel() in this file.

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SECRET", "test-key")
	for _, key := range []string{
		"SERVER_PORT", "DO_CACHING", "DATABASE_PATH", "STATIC_DIR",
		"USER_TIMEOUT_SECONDS", "SWEEP_INTERVAL_SECONDS", "TELEMETRY_ADDR",
		"OTEL_ENDPOINT", "OTEL_SAMPLE_RATE",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load("does-not-exist.env")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 3000 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if cfg.Addr() != ":3000" {
		t.Errorf("Addr = %q", cfg.Addr())
	}
	if !cfg.DoCaching {
		t.Error("DoCaching default should be true")
	}
	if cfg.DatabasePath != "db/budget.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.StaticDir != "web/static" {
		t.Errorf("StaticDir = %q", cfg.StaticDir)
	}
	if cfg.UserTimeout != 1800*time.Second {
		t.Errorf("UserTimeout = %v", cfg.UserTimeout)
	}
	if cfg.SweepInterval != 60*time.Second {
		t.Errorf("SweepInterval = %v", cfg.SweepInterval)
	}
	if cfg.TelemetryAddr != ":9090" {
		t.Errorf("TelemetryAddr = %q", cfg.TelemetryAddr)
	}
	if cfg.OTelSampleRate != 1.0 {
		t.Errorf("OTelSampleRate = %v", cfg.OTelSampleRate)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("SECRET", "")
	os.Unsetenv("SECRET")

	if _, err := Load("does-not-exist.env"); !errors.Is(err, ErrMissingSecret) {
		t.Errorf("err = %v, want ErrMissingSecret", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SECRET", "k")
	t.Setenv("SERVER_PORT", "8088")
	t.Setenv("DO_CACHING", "false")
	t.Setenv("USER_TIMEOUT_SECONDS", "30")
	t.Setenv("OTEL_SAMPLE_RATE", "0.25")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8088 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if cfg.DoCaching {
		t.Error("DoCaching should be false")
	}
	if cfg.UserTimeout != 30*time.Second {
		t.Errorf("UserTimeout = %v", cfg.UserTimeout)
	}
	if cfg.OTelSampleRate != 0.25 {
		t.Errorf("OTelSampleRate = %v", cfg.OTelSampleRate)
	}
}

func TestLoadEnvFile(t *testing.T) {
	t.Setenv("SECRET", "")
	os.Unsetenv("SECRET")

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SECRET=from-file\nSERVER_PORT=4000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Secret != "from-file" {
		t.Errorf("Secret = %q", cfg.Secret)
	}
	if cfg.Port != 4000 {
		t.Errorf("Port = %d", cfg.Port)
	}
}

func TestBadValuesFallBack(t *testing.T) {
	t.Setenv("SECRET", "k")
	t.Setenv("SERVER_PORT", "not-a-number")
	t.Setenv("DO_CACHING", "maybe")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 3000 {
		t.Errorf("Port = %d, want default on unparsable value", cfg.Port)
	}
	if !cfg.DoCaching {
		t.Error("DoCaching should fall back to true")
	}
}
