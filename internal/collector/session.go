// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/playtrack/playtrack/internal/logging"
	"github.com/playtrack/playtrack/internal/metrics"
	"github.com/playtrack/playtrack/internal/source"
	"github.com/playtrack/playtrack/internal/tracker"
)

// SessionSink is the durable store for interval events. Satisfied by
// *database.DB; collectors only see this slice of it.
type SessionSink interface {
	LoadOpenIntervals(ctx context.Context, stream string) ([]tracker.OpenInterval, error)
	UpsertOpenInterval(ctx context.Context, stream string, iv tracker.OpenInterval) error
	CloseInterval(ctx context.Context, stream, entityID string, start, end time.Time) error
	SaveOpenState(ctx context.Context, stream string, state []tracker.OpenInterval) error
}

// SessionCollector polls one Source on a fixed interval and turns its
// snapshots into persisted presence intervals.
//
// Restart protocol: Serve loads the persisted open-interval state first,
// then waits for the first successful snapshot and reconciles against it
// before normal observation begins. Failed polls before that first
// snapshot do not close anything, since there is no evidence either way.
type SessionCollector struct {
	stream       string
	src          source.Source
	sink         SessionSink
	policy       tracker.Policy
	trk          *tracker.Tracker
	pollInterval time.Duration
	fetchTimeout time.Duration
}

// NewSessionCollector creates a collector for one stream.
func NewSessionCollector(stream string, src source.Source, sink SessionSink, policy tracker.Policy, pollInterval, fetchTimeout time.Duration) *SessionCollector {
	return &SessionCollector{
		stream:       stream,
		src:          src,
		sink:         sink,
		policy:       policy,
		trk:          tracker.New(stream, policy),
		pollInterval: pollInterval,
		fetchTimeout: fetchTimeout,
	}
}

// String implements fmt.Stringer for suture logging.
func (c *SessionCollector) String() string {
	return "sessions-" + c.stream
}

// Serve implements suture.Service. Poll failures are absorbed by the
// grace policy; a tracker invariant violation or a sink write that
// fails past its retries aborts the stream instead, so the supervisor
// restarts it and reconciliation rebuilds the state from the sink.
func (c *SessionCollector) Serve(ctx context.Context) error {
	// Fresh tracker on every (re)start. After an abort the previous
	// in-memory state is suspect; reconciliation below recovers the
	// authoritative state from the persisted open rows.
	c.trk = tracker.New(c.stream, c.policy)

	persisted, err := c.sink.LoadOpenIntervals(ctx, c.stream)
	if err != nil {
		return fmt.Errorf("load open intervals for %s: %w", c.stream, err)
	}
	logging.Info().
		Str("stream", c.stream).
		Int("persisted_open", len(persisted)).
		Dur("poll_interval", c.pollInterval).
		Msg("session collector starting")

	reconciled := false
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		if err := c.poll(ctx, persisted, &reconciled); err != nil {
			if ctx.Err() != nil {
				c.saveState()
				return ctx.Err()
			}
			return fmt.Errorf("stream %s: %w", c.stream, err)
		}

		select {
		case <-ctx.Done():
			c.saveState()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// poll performs one fetch-observe-persist cycle. Source failures return
// nil (the grace policy handles them); a non-nil error means the stream
// must stop.
func (c *SessionCollector) poll(ctx context.Context, persisted []tracker.OpenInterval, reconciled *bool) error {
	pollID := uuid.NewString()
	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	start := time.Now()
	snap, err := c.src.FetchSnapshot(fetchCtx)
	metrics.PollDuration.WithLabelValues(c.stream).Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		metrics.PollsTotal.WithLabelValues(c.stream, "failure").Inc()
		logging.Warn().
			Err(err).
			Str("stream", c.stream).
			Str("poll_id", pollID).
			Msg("poll failed")

		if !*reconciled {
			// No snapshot since startup: nothing to judge absences
			// against yet.
			return nil
		}
		events, obsErr := c.trk.ObserveFailure(time.Now().UTC())
		if obsErr != nil {
			return fmt.Errorf("observe failed poll: %w", obsErr)
		}
		if err := c.persistEvents(ctx, pollID, events); err != nil {
			return err
		}
		metrics.OpenIntervals.WithLabelValues(c.stream).Set(float64(c.trk.OpenCount()))
		return nil
	}

	metrics.PollsTotal.WithLabelValues(c.stream, "success").Inc()
	metrics.CurrentOnline.WithLabelValues(c.stream).Set(float64(len(snap.Entities)))

	if !*reconciled {
		events, recErr := c.trk.Reconcile(persisted, snap.Entities, snap.Time)
		if recErr != nil {
			return fmt.Errorf("reconcile persisted state: %w", recErr)
		}
		*reconciled = true
		if len(events) > 0 || len(persisted) > 0 {
			logging.Info().
				Str("stream", c.stream).
				Int("readopted", c.trk.OpenCount()).
				Int("closed", len(events)).
				Msg("reconciled persisted open intervals")
		}
		if err := c.persistEvents(ctx, pollID, events); err != nil {
			return err
		}
	}

	events, obsErr := c.trk.Observe(snap.Time, snap.Entities)
	if obsErr != nil {
		return fmt.Errorf("observe snapshot at %s: %w", snap.Time.Format(time.RFC3339), obsErr)
	}
	if err := c.persistEvents(ctx, pollID, events); err != nil {
		return err
	}
	metrics.OpenIntervals.WithLabelValues(c.stream).Set(float64(c.trk.OpenCount()))
	return nil
}

// persistEvents writes interval events to the sink, retrying each write
// with exponential backoff. Writes are idempotent, so a retry after a
// partial failure is safe. A write that still fails after the retries
// is returned, never dropped: the open_sessions row for an unclosed
// interval is only removed by a successful CloseInterval, so the
// restart reconciliation replays a lost close from that row.
func (c *SessionCollector) persistEvents(ctx context.Context, pollID string, events []tracker.Event) error {
	for _, ev := range events {
		metrics.IntervalEvents.WithLabelValues(c.stream, string(ev.Type)).Inc()

		write := c.writeEvent(ctx, ev)
		policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
		notify := func(err error, _ time.Duration) {
			metrics.SinkRetries.WithLabelValues(c.stream, string(ev.Type)).Inc()
			logging.Warn().
				Err(err).
				Str("stream", c.stream).
				Str("entity", ev.EntityID).
				Str("poll_id", pollID).
				Msg("sink write retry")
		}
		if err := backoff.RetryNotify(write, policy, notify); err != nil {
			logging.Error().
				Err(err).
				Str("stream", c.stream).
				Str("entity", ev.EntityID).
				Str("event", string(ev.Type)).
				Str("poll_id", pollID).
				Msg("sink write failed, aborting stream")
			return fmt.Errorf("persist %s event for %s: %w", ev.Type, ev.EntityID, err)
		}

		if ev.Type == tracker.EventClosed {
			logging.Info().
				Str("stream", c.stream).
				Str("entity", ev.EntityID).
				Time("start", ev.Start).
				Time("end", ev.End).
				Dur("duration", ev.End.Sub(ev.Start)).
				Msg("interval closed")
		}
	}
	return nil
}

// writeEvent maps one event to its sink operation.
func (c *SessionCollector) writeEvent(ctx context.Context, ev tracker.Event) backoff.Operation {
	return func() error {
		switch ev.Type {
		case tracker.EventOpened, tracker.EventExtended:
			return c.sink.UpsertOpenInterval(ctx, c.stream, tracker.OpenInterval{
				EntityID: ev.EntityID,
				Start:    ev.Start,
				LastSeen: ev.LastSeen,
			})
		case tracker.EventClosed:
			return c.sink.CloseInterval(ctx, c.stream, ev.EntityID, ev.Start, ev.End)
		default:
			return backoff.Permanent(errors.New("unknown event type " + string(ev.Type)))
		}
	}
}

// saveState persists the open-interval state verbatim at shutdown. Uses
// a fresh context since the serve context is already canceled.
func (c *SessionCollector) saveState() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	state := c.trk.OpenState()
	if err := c.sink.SaveOpenState(ctx, c.stream, state); err != nil {
		logging.Error().Err(err).Str("stream", c.stream).Msg("failed to save open state at shutdown")
		return
	}
	logging.Info().
		Str("stream", c.stream).
		Int("open", len(state)).
		Msg("open state saved")
}
