// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

package tracker

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Tracker errors. Both indicate a broken driver contract or an internal
// bug and must abort the stream's processing rather than self-repair.
var (
	// ErrOutOfOrder is returned when a snapshot's timestamp precedes an
	// already-processed one. The driver must serialize polls per stream.
	ErrOutOfOrder = errors.New("tracker: snapshot out of order")

	// ErrDuplicateOpen is returned when reconciliation would produce two
	// open intervals for the same entity.
	ErrDuplicateOpen = errors.New("tracker: duplicate open interval")
)

// Tracker holds the authoritative open-interval state for one entity
// stream and turns snapshots into interval lifecycle events.
type Tracker struct {
	stream string
	policy Policy

	open  map[string]*OpenInterval
	clock time.Time

	// failures counts consecutive failed polls; reset on any successful
	// snapshot.
	failures int

	// closedAtReconcile remembers entity->start closed during
	// reconciliation so a repeated Reconcile call with the same persisted
	// state does not emit duplicate closes.
	closedAtReconcile map[string]time.Time
}

// New creates a Tracker for the named stream with the given grace policy.
func New(stream string, policy Policy) *Tracker {
	return &Tracker{
		stream: stream,
		policy: policy,
		open:   make(map[string]*OpenInterval),
	}
}

// Stream returns the stream name the Tracker owns.
func (t *Tracker) Stream() string {
	return t.stream
}

// OpenCount returns the number of currently open intervals.
func (t *Tracker) OpenCount() int {
	return len(t.open)
}

// OpenState returns a copy of the open-interval state, sorted by entity,
// suitable for verbatim persistence at shutdown.
func (t *Tracker) OpenState() []OpenInterval {
	state := make([]OpenInterval, 0, len(t.open))
	for _, rec := range t.open {
		state = append(state, *rec)
	}
	sort.Slice(state, func(i, j int) bool { return state[i].EntityID < state[j].EntityID })
	return state
}

// Observe processes a successful snapshot taken at the given time whose
// active entity set is present. It returns the lifecycle events the
// snapshot implies: opens and extends in snapshot order, then closes in
// entity order.
//
// Duplicate and empty identifiers in present are ignored. An empty
// present set is a legal, fully-vacant observation and still sweeps all
// open intervals for absence.
func (t *Tracker) Observe(at time.Time, present []string) ([]Event, error) {
	if err := t.advance(at); err != nil {
		return nil, err
	}
	t.failures = 0

	seen := make(map[string]struct{}, len(present))
	events := make([]Event, 0, len(present))

	for _, id := range present {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		rec, ok := t.open[id]
		if !ok {
			rec = &OpenInterval{EntityID: id, Start: at, LastSeen: at}
			t.open[id] = rec
			events = append(events, Event{Type: EventOpened, EntityID: id, Start: at, LastSeen: at})
			continue
		}

		rec.LastSeen = at
		rec.Misses = 0
		events = append(events, Event{Type: EventExtended, EntityID: id, Start: rec.Start, LastSeen: at})
	}

	events = append(events, t.sweepAbsent(at, seen, false)...)
	return events, nil
}

// ObserveFailure processes a failed poll attempted at the given time.
// The absence of every open entity is noted without counting toward the
// miss threshold; only the outage ceiling can close intervals here.
func (t *Tracker) ObserveFailure(at time.Time) ([]Event, error) {
	if err := t.advance(at); err != nil {
		return nil, err
	}
	t.failures++

	return t.sweepAbsent(at, nil, true), nil
}

// sweepAbsent walks open intervals not contained in seen, updates miss
// counts, and closes those the grace policy gives up on. Closes are
// emitted in entity order so one poll's output is deterministic.
func (t *Tracker) sweepAbsent(at time.Time, seen map[string]struct{}, failure bool) []Event {
	absent := make([]string, 0, len(t.open))
	for id := range t.open {
		if _, ok := seen[id]; !ok {
			absent = append(absent, id)
		}
	}
	sort.Strings(absent)

	var closed []Event
	for _, id := range absent {
		rec := t.open[id]
		if !failure {
			rec.Misses++
		}

		obs := Observation{
			Misses:   rec.Misses,
			Failures: t.failures,
			Elapsed:  at.Sub(rec.LastSeen),
			Failure:  failure,
		}
		if !t.policy.ShouldClose(obs) {
			continue
		}

		delete(t.open, id)
		closed = append(closed, Event{
			Type:     EventClosed,
			EntityID: id,
			Start:    rec.Start,
			LastSeen: rec.LastSeen,
			End:      rec.LastSeen,
		})
	}
	return closed
}

// advance moves the stream clock to at, rejecting regressions.
func (t *Tracker) advance(at time.Time) error {
	if at.Before(t.clock) {
		return fmt.Errorf("%w: stream %s at %s, clock already at %s",
			ErrOutOfOrder, t.stream, at.Format(time.RFC3339), t.clock.Format(time.RFC3339))
	}
	t.clock = at
	return nil
}
