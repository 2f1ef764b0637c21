// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the server configuration. Every field has a default, so an
// empty environment yields a runnable local setup.
type Config struct {
	Addr            string        `env:"STAMP_ADDR" envDefault:":8080"`
	DatabasePath    string        `env:"STAMP_DB_PATH" envDefault:"stamppassport.db"`
	LocationsPath   string        `env:"STAMP_LOCATIONS_PATH"`
	LogLevel        string        `env:"STAMP_LOG_LEVEL" envDefault:"info"`
	GeofenceEnabled bool          `env:"STAMP_GEOFENCE_ENABLED" envDefault:"true"`
	GeofenceRadius  float64       `env:"STAMP_GEOFENCE_RADIUS" envDefault:"150"`
	RateLimit       int           `env:"STAMP_RATE_LIMIT" envDefault:"120"`
	RateWindow      time.Duration `env:"STAMP_RATE_WINDOW" envDefault:"1m"`
	ShutdownTimeout time.Duration `env:"STAMP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// SlogLevel maps the configured level name onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
