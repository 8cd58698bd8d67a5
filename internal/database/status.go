// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/playtrack/playtrack/internal/source"
)

// OnlineSample is one server-wide online count observation.
type OnlineSample struct {
	Count     int       `json:"online_count"`
	QueriedAt time.Time `json:"queried_at"`
}

// RosterPlayer is one account row from the weekly full-roster fetch.
type RosterPlayer struct {
	Name      string
	Score     int
	Level     int
	RegDate   *time.Time
	LastLogin *time.Time
}

// InsertOnlineCount appends one online count sample. Callers only write
// on change, so the table stays a compact change log.
func (db *DB) InsertOnlineCount(ctx context.Context, count int, queriedAt time.Time) (err error) {
	done := db.track("insert", "online")
	defer func() { done(err) }()

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO online (online_count, queried_at) VALUES (?, ?)`,
		count, queriedAt)
	if err != nil {
		return fmt.Errorf("failed to insert online count: %w", err)
	}
	return nil
}

// LatestOnlineCount returns the most recent online count sample, or
// sql.ErrNoRows wrapped if none exists yet.
func (db *DB) LatestOnlineCount(ctx context.Context) (_ *OnlineSample, err error) {
	done := db.track("select", "online")
	defer func() { done(err) }()

	var s OnlineSample
	err = db.conn.QueryRowContext(ctx,
		`SELECT online_count, queried_at FROM online ORDER BY queried_at DESC LIMIT 1`,
	).Scan(&s.Count, &s.QueriedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no online samples recorded yet: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest online count: %w", err)
	}
	return &s, nil
}

// UpsertWorldStatus stores the latest observed status row for a world.
func (db *DB) UpsertWorldStatus(ctx context.Context, w source.World, savedAt time.Time) (err error) {
	done := db.track("upsert", "worlds_online")
	defer func() { done(err) }()

	_, err = db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO worlds_online (name, players, static, ssmp, saved_at)
		 VALUES (?, ?, ?, ?, ?)`,
		w.Name, w.Players, w.Static, w.SSMP, savedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert world status %s: %w", w.Name, err)
	}
	return nil
}

// WorldStatus is one world's latest observed status row.
type WorldStatus struct {
	Name    string    `json:"name"`
	Players int       `json:"players"`
	Static  bool      `json:"static"`
	SSMP    bool      `json:"ssmp"`
	SavedAt time.Time `json:"saved_at"`
}

// ListWorldStatus returns the latest status row per world, busiest
// first.
func (db *DB) ListWorldStatus(ctx context.Context) (_ []WorldStatus, err error) {
	done := db.track("select", "worlds_online")
	defer func() { done(err) }()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT name, players, static, ssmp, saved_at
		 FROM worlds_online
		 ORDER BY players DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query world status: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var worlds []WorldStatus
	for rows.Next() {
		var w WorldStatus
		if err = rows.Scan(&w.Name, &w.Players, &w.Static, &w.SSMP, &w.SavedAt); err != nil {
			return nil, fmt.Errorf("failed to scan world status: %w", err)
		}
		worlds = append(worlds, w)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate world status: %w", err)
	}
	return worlds, nil
}

// InsertRosterPage appends one page of roster players under a common
// snapshot time.
func (db *DB) InsertRosterPage(ctx context.Context, players []RosterPlayer, snapshotTime time.Time) (err error) {
	done := db.track("insert", "players")
	defer func() { done(err) }()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin roster transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO players (name, score, level, regdate, lastlogin, snapshot_time)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare roster insert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck // statement closed with tx

	for _, p := range players {
		if _, err = stmt.ExecContext(ctx, p.Name, p.Score, p.Level, p.RegDate, p.LastLogin, snapshotTime); err != nil {
			return fmt.Errorf("failed to insert roster player %s: %w", p.Name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit roster page: %w", err)
	}
	return nil
}

// LastRosterSnapshot returns the time of the most recent completed
// roster collection, or the zero time when the table is empty.
func (db *DB) LastRosterSnapshot(ctx context.Context) (_ time.Time, err error) {
	done := db.track("select", "players")
	defer func() { done(err) }()

	var last sql.NullTime
	err = db.conn.QueryRowContext(ctx, `SELECT max(snapshot_time) FROM players`).Scan(&last)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query last roster snapshot: %w", err)
	}
	if !last.Valid {
		return time.Time{}, nil
	}
	return last.Time, nil
}
