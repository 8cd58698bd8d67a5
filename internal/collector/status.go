// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

package collector

import (
	"context"
	"time"

	"github.com/playtrack/playtrack/internal/logging"
	"github.com/playtrack/playtrack/internal/source"
)

// StatusSink stores per-world status rows. Satisfied by *database.DB.
type StatusSink interface {
	UpsertWorldStatus(ctx context.Context, w source.World, savedAt time.Time) error
}

// WorldStatusCollector consumes world fetches from a WorldsFanout and
// upserts the rows that changed since the previous fetch. Unchanged
// worlds produce no writes, so the table tracks state without being
// rewritten every poll.
type WorldStatusCollector struct {
	updates <-chan WorldsUpdate
	sink    StatusSink
	prev    map[string]source.World
}

// NewWorldStatusCollector creates a status collector reading from the
// given fanout channel.
func NewWorldStatusCollector(updates <-chan WorldsUpdate, sink StatusSink) *WorldStatusCollector {
	return &WorldStatusCollector{
		updates: updates,
		sink:    sink,
		prev:    make(map[string]source.World),
	}
}

// String implements fmt.Stringer for suture logging.
func (c *WorldStatusCollector) String() string {
	return "world-status"
}

// Serve implements suture.Service.
func (c *WorldStatusCollector) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update := <-c.updates:
			c.apply(ctx, update)
		}
	}
}

// apply upserts every changed world row from one update.
func (c *WorldStatusCollector) apply(ctx context.Context, update WorldsUpdate) {
	written := 0
	for _, w := range update.Worlds {
		if prev, ok := c.prev[w.Name]; ok && prev == w {
			continue
		}
		if err := c.sink.UpsertWorldStatus(ctx, w, update.Time); err != nil {
			logging.Warn().Err(err).Str("world", w.Name).Msg("world status upsert failed")
			continue
		}
		c.prev[w.Name] = w
		written++
	}
	if written > 0 {
		logging.Debug().
			Int("changed", written).
			Int("total", len(update.Worlds)).
			Msg("world status updated")
	}
}
