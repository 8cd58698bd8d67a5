// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

package collector

import (
	"context"
	"time"

	"github.com/playtrack/playtrack/internal/logging"
	"github.com/playtrack/playtrack/internal/metrics"
	"github.com/playtrack/playtrack/internal/source"
)

// InfoSource yields the server-wide online count. Satisfied by
// *source.SampClient via its info query, which reports the real count
// even when the client list is truncated by the server.
type InfoSource interface {
	Info(ctx context.Context) (*source.ServerInfo, error)
}

// OnlineSink stores online count samples. Satisfied by *database.DB.
type OnlineSink interface {
	InsertOnlineCount(ctx context.Context, count int, queriedAt time.Time) error
}

// OnlineCountCollector samples the server-wide online count and records
// it only when it changes, keeping the table a compact change log.
type OnlineCountCollector struct {
	src          InfoSource
	sink         OnlineSink
	pollInterval time.Duration
	fetchTimeout time.Duration

	last    int
	hasLast bool
}

// NewOnlineCountCollector creates an online count collector.
func NewOnlineCountCollector(src InfoSource, sink OnlineSink, pollInterval, fetchTimeout time.Duration) *OnlineCountCollector {
	return &OnlineCountCollector{
		src:          src,
		sink:         sink,
		pollInterval: pollInterval,
		fetchTimeout: fetchTimeout,
	}
}

// String implements fmt.Stringer for suture logging.
func (c *OnlineCountCollector) String() string {
	return "online-count"
}

// Serve implements suture.Service.
func (c *OnlineCountCollector) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		c.sample(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// sample performs one info query and records the count on change.
func (c *OnlineCountCollector) sample(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	info, err := c.src.Info(fetchCtx)
	if err != nil {
		if ctx.Err() == nil {
			logging.Debug().Err(err).Msg("online count query failed")
		}
		return
	}

	metrics.CurrentOnline.WithLabelValues("server").Set(float64(info.Players))
	if c.hasLast && info.Players == c.last {
		return
	}

	if err := c.sink.InsertOnlineCount(ctx, info.Players, time.Now().UTC()); err != nil {
		logging.Warn().Err(err).Int("count", info.Players).Msg("online count insert failed")
		return
	}
	c.last = info.Players
	c.hasLast = true
}
