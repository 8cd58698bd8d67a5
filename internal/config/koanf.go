// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in priority
// order. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/playtrack/config.yaml",
	"/etc/playtrack/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load assembles the configuration in three layers: struct defaults,
// then an optional YAML file, then environment variables on top.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the path of the first config file found, or ""
// when none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps environment variable names to koanf config paths.
// Only listed variables are consumed; everything else in the process
// environment is ignored.
var envMappings = map[string]string{
	"players_enabled":          "players.enabled",
	"players_host":             "players.host",
	"players_port":             "players.port",
	"players_poll_interval":    "players.poll_interval",
	"players_fetch_timeout":    "players.fetch_timeout",
	"players_grace_misses":     "players.grace_misses",
	"players_outage_failures":  "players.outage_failures",
	"players_outage_ceiling":   "players.outage_ceiling",
	"players_breaker_failures": "players.breaker_failures",
	"players_breaker_reset":    "players.breaker_reset",

	"worlds_enabled":             "worlds.enabled",
	"worlds_base_url":            "worlds.base_url",
	"worlds_login":               "worlds.login",
	"worlds_token":               "worlds.token",
	"worlds_poll_interval":       "worlds.poll_interval",
	"worlds_fetch_timeout":       "worlds.fetch_timeout",
	"worlds_grace_misses":        "worlds.grace_misses",
	"worlds_outage_failures":     "worlds.outage_failures",
	"worlds_outage_ceiling":      "worlds.outage_ceiling",
	"worlds_breaker_failures":    "worlds.breaker_failures",
	"worlds_breaker_reset":       "worlds.breaker_reset",
	"worlds_requests_per_minute": "worlds.requests_per_minute",

	"roster_enabled":             "roster.enabled",
	"roster_base_url":            "roster.base_url",
	"roster_interval":            "roster.interval",
	"roster_page_size":           "roster.page_size",
	"roster_requests_per_minute": "roster.requests_per_minute",

	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_request_timeout":  "server.request_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",

	"log_level":  "logging.level",
	"log_format": "logging.format",
}

// envTransformFunc maps environment variable names to config paths.
// Returning "" drops the variable.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
