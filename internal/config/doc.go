// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

// Package config loads and validates the application configuration
// using koanf with three layers, later layers overriding earlier ones:
//
//  1. Struct defaults (defaultConfig)
//  2. YAML config file (config.yaml, or CONFIG_PATH)
//  3. Environment variables (PLAYERS_HOST, DUCKDB_PATH, ...)
//
// Validation combines `validate` struct tags with cross-field rules
// such as "fetch_timeout must be shorter than poll_interval".
package config
