// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/playtrack/playtrack/internal/tracker"
)

// Session is one closed presence interval as stored in the sessions
// table.
type Session struct {
	Stream   string    `json:"stream"`
	EntityID string    `json:"entity_id"`
	Start    time.Time `json:"session_start"`
	End      time.Time `json:"session_end"`
}

// UpsertOpenInterval records the current state of one open interval.
// Keyed by (stream, entity_id); replaying the same write is a no-op
// beyond refreshing last_seen to the same value.
func (db *DB) UpsertOpenInterval(ctx context.Context, stream string, iv tracker.OpenInterval) (err error) {
	done := db.track("upsert", "open_sessions")
	defer func() { done(err) }()

	_, err = db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO open_sessions (stream, entity_id, session_start, last_seen, updated_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		stream, iv.EntityID, iv.Start, iv.LastSeen)
	if err != nil {
		return fmt.Errorf("failed to upsert open interval %s/%s: %w", stream, iv.EntityID, err)
	}
	return nil
}

// CloseInterval persists a closed interval and removes the matching
// open-interval row in one transaction. Idempotent: the closed row
// insert ignores conflicts on (stream, entity_id, session_start), and
// the open row is deleted only if it still belongs to this interval,
// so a retry cannot clobber a newer interval for the same entity.
func (db *DB) CloseInterval(ctx context.Context, stream, entityID string, start, end time.Time) (err error) {
	done := db.track("close", "sessions")
	defer func() { done(err) }()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin close transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (stream, entity_id, session_start, session_end)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (stream, entity_id, session_start) DO NOTHING`,
		stream, entityID, start, end); err != nil {
		return fmt.Errorf("failed to insert closed interval %s/%s: %w", stream, entityID, err)
	}

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM open_sessions
		 WHERE stream = ? AND entity_id = ? AND session_start = ?`,
		stream, entityID, start); err != nil {
		return fmt.Errorf("failed to delete open interval %s/%s: %w", stream, entityID, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit close of %s/%s: %w", stream, entityID, err)
	}
	return nil
}

// LoadOpenIntervals returns the persisted open-interval state for one
// stream, as left by the previous process instance.
func (db *DB) LoadOpenIntervals(ctx context.Context, stream string) (_ []tracker.OpenInterval, err error) {
	done := db.track("select", "open_sessions")
	defer func() { done(err) }()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT entity_id, session_start, last_seen
		 FROM open_sessions
		 WHERE stream = ?
		 ORDER BY entity_id`,
		stream)
	if err != nil {
		return nil, fmt.Errorf("failed to load open intervals for %s: %w", stream, err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var intervals []tracker.OpenInterval
	for rows.Next() {
		var iv tracker.OpenInterval
		if err = rows.Scan(&iv.EntityID, &iv.Start, &iv.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan open interval: %w", err)
		}
		intervals = append(intervals, iv)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate open intervals: %w", err)
	}
	return intervals, nil
}

// SaveOpenState persists the full open-interval state verbatim. Called
// at shutdown so the next startup's reconciliation works from the real
// last-seen times rather than a fabricated shutdown time.
func (db *DB) SaveOpenState(ctx context.Context, stream string, state []tracker.OpenInterval) error {
	for _, iv := range state {
		if err := db.UpsertOpenInterval(ctx, stream, iv); err != nil {
			return err
		}
	}
	return nil
}

// RecentSessions returns the most recently closed intervals for a
// stream, newest first.
func (db *DB) RecentSessions(ctx context.Context, stream string, limit int) (_ []Session, err error) {
	done := db.track("select", "sessions")
	defer func() { done(err) }()

	if limit < 1 || limit > 1000 {
		limit = 100
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT stream, entity_id, session_start, session_end
		 FROM sessions
		 WHERE stream = ?
		 ORDER BY session_end DESC
		 LIMIT ?`,
		stream, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent sessions for %s: %w", stream, err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var sessions []Session
	for rows.Next() {
		var s Session
		if err = rows.Scan(&s.Stream, &s.EntityID, &s.Start, &s.End); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}
