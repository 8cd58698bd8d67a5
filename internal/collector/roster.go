// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

package collector

import (
	"context"
	"time"

	"github.com/playtrack/playtrack/internal/database"
	"github.com/playtrack/playtrack/internal/logging"
	"github.com/playtrack/playtrack/internal/metrics"
	"github.com/playtrack/playtrack/internal/source"
)

// RosterPager fetches one roster page. Satisfied by *source.RosterClient.
type RosterPager interface {
	Page(ctx context.Context, page, limit int) ([]source.Account, error)
}

// RosterSink stores roster snapshots. Satisfied by *database.DB.
type RosterSink interface {
	LastRosterSnapshot(ctx context.Context) (time.Time, error)
	InsertRosterPage(ctx context.Context, players []database.RosterPlayer, snapshotTime time.Time) error
}

// rosterCheckInterval is how often the collector re-checks whether a
// run is due. Due-ness itself comes from the persisted snapshot time,
// so restarts never reset the schedule.
const rosterCheckInterval = time.Hour

// RosterCollector fetches the full account roster page by page on a
// long interval. Each run is stamped with a single snapshot time so the
// pages of one run group together.
type RosterCollector struct {
	pager    RosterPager
	sink     RosterSink
	interval time.Duration
	pageSize int
}

// NewRosterCollector creates a roster collector.
func NewRosterCollector(pager RosterPager, sink RosterSink, interval time.Duration, pageSize int) *RosterCollector {
	if pageSize < 1 {
		pageSize = 100
	}
	return &RosterCollector{
		pager:    pager,
		sink:     sink,
		interval: interval,
		pageSize: pageSize,
	}
}

// String implements fmt.Stringer for suture logging.
func (c *RosterCollector) String() string {
	return "roster"
}

// Serve implements suture.Service.
func (c *RosterCollector) Serve(ctx context.Context) error {
	check := rosterCheckInterval
	if check > c.interval {
		check = c.interval
	}
	ticker := time.NewTicker(check)
	defer ticker.Stop()

	for {
		c.runIfDue(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runIfDue runs a collection when the last persisted snapshot is older
// than the configured interval.
func (c *RosterCollector) runIfDue(ctx context.Context) {
	last, err := c.sink.LastRosterSnapshot(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("roster schedule check failed")
		return
	}
	if !last.IsZero() && time.Since(last) < c.interval {
		return
	}

	if err := c.run(ctx); err != nil {
		metrics.RosterRuns.WithLabelValues("error").Inc()
		logging.Error().Err(err).Msg("roster collection failed")
		return
	}
	metrics.RosterRuns.WithLabelValues("ok").Inc()
}

// run fetches and stores every roster page under one snapshot time.
func (c *RosterCollector) run(ctx context.Context) error {
	snapshotTime := time.Now().UTC()
	total := 0

	for page := 0; ; page++ {
		accounts, err := c.pager.Page(ctx, page, c.pageSize)
		if err != nil {
			return err
		}
		if len(accounts) == 0 {
			break
		}

		players := make([]database.RosterPlayer, len(accounts))
		for i, a := range accounts {
			players[i] = database.RosterPlayer{
				Name:      a.Name,
				Score:     a.Score,
				Level:     a.Level,
				RegDate:   a.RegDate,
				LastLogin: a.LastLogin,
			}
		}
		if err := c.sink.InsertRosterPage(ctx, players, snapshotTime); err != nil {
			return err
		}

		total += len(accounts)
		metrics.RosterPlayersCollected.Add(float64(len(accounts)))
		if len(accounts) < c.pageSize {
			break
		}
	}

	logging.Info().
		Int("players", total).
		Time("snapshot", snapshotTime).
		Msg("roster collection complete")
	return nil
}
