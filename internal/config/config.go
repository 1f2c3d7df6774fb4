// Package config loads server settings from environment variables,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingSecret reports an empty SECRET variable. The server refuses to
// start without a signing key; a default would make every deployment mint
// interchangeable tokens.
var ErrMissingSecret = errors.New("config: SECRET must be set and non-empty")

// Config is the full server configuration.
type Config struct {
	Port      int    // SERVER_PORT
	Secret    string // SECRET, HMAC key for session tokens
	DoCaching bool   // DO_CACHING, static file byte cache

	DatabasePath     string // DATABASE_PATH
	AuthDatabaseInit string // AUTH_DATABASE_INIT, extra DDL run at startup
	UserDatabaseInit string // USER_DATABASE_INIT, extra DDL run at startup

	StaticDir string // STATIC_DIR

	UserTimeout   time.Duration // USER_TIMEOUT_SECONDS
	SweepInterval time.Duration // SWEEP_INTERVAL_SECONDS

	TelemetryAddr  string  // TELEMETRY_ADDR, admin/metrics side server
	OTelEndpoint   string  // OTEL_ENDPOINT, empty disables tracing
	OTelSampleRate float64 // OTEL_SAMPLE_RATE
}

// Load reads the environment into a Config. When envFile is non-empty it is
// loaded first without overriding variables already present; a missing file
// is not an error so containerized deployments can rely on the environment
// alone.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{
		Port:             envInt("SERVER_PORT", 3000),
		Secret:           os.Getenv("SECRET"),
		DoCaching:        envBool("DO_CACHING", true),
		DatabasePath:     envStr("DATABASE_PATH", "db/budget.db"),
		AuthDatabaseInit: os.Getenv("AUTH_DATABASE_INIT"),
		UserDatabaseInit: os.Getenv("USER_DATABASE_INIT"),
		StaticDir:        envStr("STATIC_DIR", "web/static"),
		UserTimeout:      envSeconds("USER_TIMEOUT_SECONDS", 1800),
		SweepInterval:    envSeconds("SWEEP_INTERVAL_SECONDS", 60),
		TelemetryAddr:    envStr("TELEMETRY_ADDR", ":9090"),
		OTelEndpoint:     os.Getenv("OTEL_ENDPOINT"),
		OTelSampleRate:   envFloat("OTEL_SAMPLE_RATE", 1.0),
	}

	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	return cfg, nil
}

// Addr returns the main listener address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envSeconds(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Second
}
