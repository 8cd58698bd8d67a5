// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

// Package database is the durable sink for presence data, backed by an
// embedded DuckDB database (github.com/duckdb/duckdb-go/v2, CGO driver).
//
// Tables:
//
//   - sessions: closed presence intervals, keyed by (stream, entity_id,
//     session_start). Rows are never updated once written.
//   - open_sessions: the current open-interval state per stream, keyed
//     by (stream, entity_id). Upserted on every poll; loaded at startup
//     for reconciliation. The only cross-restart carrier of interval
//     identity.
//   - online: server-wide online count samples (players stream).
//   - worlds_online: latest observed status row per world.
//   - players: weekly full-roster snapshots from the account API.
//
// All sink operations are idempotent under retry: closed-interval
// inserts use ON CONFLICT DO NOTHING, open-interval and status writes
// use INSERT OR REPLACE. A retried write after a partial failure never
// duplicates an interval.
package database
