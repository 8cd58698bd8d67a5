// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/playtrack/playtrack/internal/config"
	"github.com/playtrack/playtrack/internal/logging"
	"github.com/playtrack/playtrack/internal/metrics"
)

// DB wraps the DuckDB connection and exposes the sink and query
// operations. Safe for concurrent use by multiple collectors; the
// underlying pool serializes writers.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New opens (or creates) the DuckDB database at cfg.Path, verifies the
// connection, and ensures the schema exists. The open is retried a few
// times with constant backoff since another process instance may still
// hold the file lock during a restart overlap.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "1GB"
	}
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, threads, maxMemory)

	var conn *sql.DB
	open := func() error {
		var err error
		conn, err = sql.Open("duckdb", connStr)
		if err != nil {
			return fmt.Errorf("failed to open: %w", err)
		}

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := conn.PingContext(pingCtx); err != nil {
			_ = conn.Close()
			return fmt.Errorf("failed to ping: %w", err)
		}
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(2*time.Second), 3)
	if err := backoff.Retry(open, policy); err != nil {
		return nil, fmt.Errorf("failed to connect to duckdb at %s: %w", cfg.Path, err)
	}

	conn.SetMaxOpenConns(threads)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)

	db := &DB{conn: conn, cfg: cfg}
	if err := db.createTables(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Int("threads", threads).Msg("database opened")
	return db, nil
}

// Conn exposes the underlying pool for tests.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection.
func (db *DB) Close() error {
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// createTables creates the schema if it does not exist yet.
func (db *DB) createTables() error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	queries := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			stream TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			session_start TIMESTAMP NOT NULL,
			session_end TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (stream, entity_id, session_start)
		)`,
		`CREATE TABLE IF NOT EXISTS open_sessions (
			stream TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			session_start TIMESTAMP NOT NULL,
			last_seen TIMESTAMP NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (stream, entity_id)
		)`,
		`CREATE TABLE IF NOT EXISTS online (
			online_count INTEGER NOT NULL,
			queried_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS worlds_online (
			name TEXT PRIMARY KEY,
			players INTEGER NOT NULL,
			static BOOLEAN NOT NULL,
			ssmp BOOLEAN NOT NULL,
			saved_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS players (
			name TEXT NOT NULL,
			score INTEGER,
			level INTEGER,
			regdate TIMESTAMP,
			lastlogin TIMESTAMP,
			snapshot_time TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_start ON sessions (session_start)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_entity ON sessions (stream, entity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_online_queried_at ON online (queried_at)`,
		`CREATE INDEX IF NOT EXISTS idx_players_snapshot ON players (snapshot_time)`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

// track instruments one query, recording its duration and error count.
//
//	defer db.track("upsert", "open_sessions")(err)
func (db *DB) track(operation, table string) func(error) {
	start := time.Now()
	return func(err error) {
		metrics.DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.DBQueryErrors.WithLabelValues(operation, table).Inc()
		}
	}
}
