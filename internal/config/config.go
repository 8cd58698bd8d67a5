// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

package config

import (
	"fmt"
	"time"

	"github.com/playtrack/playtrack/internal/validation"
)

// Config is the root configuration, assembled from defaults, an optional
// YAML file, and environment variables (highest priority).
type Config struct {
	Players  PlayersConfig  `koanf:"players"`
	Worlds   WorldsConfig   `koanf:"worlds"`
	Roster   RosterConfig   `koanf:"roster"`
	Database DatabaseConfig `koanf:"database"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// PlayersConfig configures the player presence stream, fed by the game
// server's UDP query protocol.
type PlayersConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=0,max=65535"`
	PollInterval    time.Duration `koanf:"poll_interval"`
	FetchTimeout    time.Duration `koanf:"fetch_timeout"`
	GraceMisses     int           `koanf:"grace_misses" validate:"min=1,max=100"`
	OutageFailures  int           `koanf:"outage_failures" validate:"min=1,max=1000"`
	OutageCeiling   time.Duration `koanf:"outage_ceiling"`
	BreakerFailures int           `koanf:"breaker_failures" validate:"min=1,max=100"`
	BreakerReset    time.Duration `koanf:"breaker_reset"`
}

// WorldsConfig configures the world presence stream, fed by the worlds
// HTTP API. The same fetch also feeds the world status table.
type WorldsConfig struct {
	Enabled           bool          `koanf:"enabled"`
	BaseURL           string        `koanf:"base_url" validate:"omitempty,url"`
	Login             string        `koanf:"login"`
	Token             string        `koanf:"token"`
	PollInterval      time.Duration `koanf:"poll_interval"`
	FetchTimeout      time.Duration `koanf:"fetch_timeout"`
	GraceMisses       int           `koanf:"grace_misses" validate:"min=1,max=100"`
	OutageFailures    int           `koanf:"outage_failures" validate:"min=1,max=1000"`
	OutageCeiling     time.Duration `koanf:"outage_ceiling"`
	BreakerFailures   int           `koanf:"breaker_failures" validate:"min=1,max=100"`
	BreakerReset      time.Duration `koanf:"breaker_reset"`
	RequestsPerMinute int           `koanf:"requests_per_minute" validate:"min=1,max=600"`
}

// RosterConfig configures the periodic full-roster account fetch.
type RosterConfig struct {
	Enabled           bool          `koanf:"enabled"`
	BaseURL           string        `koanf:"base_url" validate:"omitempty,url"`
	Interval          time.Duration `koanf:"interval"`
	PageSize          int           `koanf:"page_size" validate:"min=1,max=1000"`
	RequestsPerMinute int           `koanf:"requests_per_minute" validate:"min=1,max=600"`
}

// DatabaseConfig configures the embedded DuckDB sink.
type DatabaseConfig struct {
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads" validate:"min=0,max=256"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// defaultConfig returns a Config with every default applied. Defaults are
// loaded first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Players: PlayersConfig{
			Enabled:         true,
			Host:            "127.0.0.1",
			Port:            7777,
			PollInterval:    10 * time.Second,
			FetchTimeout:    5 * time.Second,
			GraceMisses:     2,
			OutageFailures:  3,
			OutageCeiling:   2 * time.Minute,
			BreakerFailures: 5,
			BreakerReset:    time.Minute,
		},
		Worlds: WorldsConfig{
			Enabled:           false,
			BaseURL:           "",
			Login:             "",
			Token:             "",
			PollInterval:      30 * time.Second,
			FetchTimeout:      10 * time.Second,
			GraceMisses:       2,
			OutageFailures:    3,
			OutageCeiling:     5 * time.Minute,
			BreakerFailures:   5,
			BreakerReset:      time.Minute,
			RequestsPerMinute: 30,
		},
		Roster: RosterConfig{
			Enabled:           false,
			BaseURL:           "",
			Interval:          7 * 24 * time.Hour,
			PageSize:          100,
			RequestsPerMinute: 20,
		},
		Database: DatabaseConfig{
			Path:      "/data/playtrack.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = runtime.NumCPU()
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for structural and cross-field
// consistency. Tag-level rules run first through the shared validator;
// cross-field rules that tags cannot express follow.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Players.Enabled {
		if c.Players.Host == "" {
			return fmt.Errorf("players.host is required when players stream is enabled")
		}
		if c.Players.Port < 1 {
			return fmt.Errorf("players.port is required when players stream is enabled")
		}
		if err := validateStreamTiming("players", c.Players.PollInterval, c.Players.FetchTimeout, c.Players.OutageCeiling); err != nil {
			return err
		}
	}

	if c.Worlds.Enabled {
		if c.Worlds.BaseURL == "" {
			return fmt.Errorf("worlds.base_url is required when worlds stream is enabled")
		}
		if c.Worlds.Login == "" || c.Worlds.Token == "" {
			return fmt.Errorf("worlds.login and worlds.token are required when worlds stream is enabled")
		}
		if err := validateStreamTiming("worlds", c.Worlds.PollInterval, c.Worlds.FetchTimeout, c.Worlds.OutageCeiling); err != nil {
			return err
		}
	}

	if c.Roster.Enabled {
		if c.Roster.BaseURL == "" {
			return fmt.Errorf("roster.base_url is required when roster collection is enabled")
		}
		if c.Roster.Interval < time.Hour {
			return fmt.Errorf("roster.interval must be at least 1h, got %s", c.Roster.Interval)
		}
	}

	if !c.Players.Enabled && !c.Worlds.Enabled && !c.Roster.Enabled {
		return fmt.Errorf("no data streams enabled; enable at least one of players, worlds, roster")
	}

	return nil
}

func validateStreamTiming(stream string, poll, timeout, ceiling time.Duration) error {
	if poll < time.Second {
		return fmt.Errorf("%s.poll_interval must be at least 1s, got %s", stream, poll)
	}
	if timeout <= 0 {
		return fmt.Errorf("%s.fetch_timeout must be positive, got %s", stream, timeout)
	}
	if timeout >= poll {
		return fmt.Errorf("%s.fetch_timeout (%s) must be shorter than poll_interval (%s)", stream, timeout, poll)
	}
	if ceiling < poll {
		return fmt.Errorf("%s.outage_ceiling (%s) must be at least one poll_interval (%s)", stream, ceiling, poll)
	}
	return nil
}
