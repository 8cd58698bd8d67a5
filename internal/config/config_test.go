// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearConfigEnv isolates tests from the host environment.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "absent.yaml"))
	for name := range envMappings {
		t.Setenv(strings.ToUpper(name), "")
		os.Unsetenv(strings.ToUpper(name)) //nolint:errcheck,usetesting // Setenv registered the restore
	}
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Players.PollInterval != 10*time.Second {
		t.Errorf("players.poll_interval = %s, want 10s", cfg.Players.PollInterval)
	}
	if cfg.Database.Path == "" {
		t.Error("database.path default is empty")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Players.Enabled {
		t.Error("players stream disabled by default")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging defaults = %s/%s", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("PLAYERS_HOST", "game.example.com")
	t.Setenv("PLAYERS_PORT", "7778")
	t.Setenv("PLAYERS_POLL_INTERVAL", "15s")
	t.Setenv("DUCKDB_PATH", filepath.Join(t.TempDir(), "test.duckdb"))
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Players.Host != "game.example.com" {
		t.Errorf("players.host = %s", cfg.Players.Host)
	}
	if cfg.Players.Port != 7778 {
		t.Errorf("players.port = %d", cfg.Players.Port)
	}
	if cfg.Players.PollInterval != 15*time.Second {
		t.Errorf("players.poll_interval = %s", cfg.Players.PollInterval)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging.level = %s", cfg.Logging.Level)
	}
}

func TestLoadYAMLFileThenEnvWins(t *testing.T) {
	clearConfigEnv(t)

	configYAML := `
players:
  host: from-file.example.com
  poll_interval: 20s
logging:
  level: warn
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Players.Host != "from-file.example.com" {
		t.Errorf("players.host = %s, want file value", cfg.Players.Host)
	}
	if cfg.Players.PollInterval != 20*time.Second {
		t.Errorf("players.poll_interval = %s, want file value", cfg.Players.PollInterval)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("logging.level = %s, want env to override file", cfg.Logging.Level)
	}
}

func TestUnknownEnvVarsIgnored(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("PLAYERS_NONSENSE", "boom")

	if _, err := Load(); err != nil {
		t.Fatalf("Load failed on unrelated env var: %v", err)
	}
}

func TestValidateRejectsBadTiming(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Players.FetchTimeout = cfg.Players.PollInterval + time.Second
	if err := cfg.Validate(); err == nil {
		t.Error("Validate accepted fetch_timeout longer than poll_interval")
	}

	cfg = defaultConfig()
	cfg.Players.OutageCeiling = time.Second
	if err := cfg.Validate(); err == nil {
		t.Error("Validate accepted outage_ceiling shorter than poll_interval")
	}
}

func TestValidateRejectsAllStreamsDisabled(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Players.Enabled = false
	cfg.Worlds.Enabled = false
	cfg.Roster.Enabled = false
	if err := cfg.Validate(); err == nil {
		t.Error("Validate accepted config with no streams enabled")
	}
}

func TestValidateRequiresWorldsCredentials(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Worlds.Enabled = true
	cfg.Worlds.BaseURL = "https://api.example.com"
	cfg.Worlds.Login = ""
	cfg.Worlds.Token = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Validate accepted worlds stream without credentials")
	}
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Logging.Level = "loud"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate accepted unknown log level")
	}
}
