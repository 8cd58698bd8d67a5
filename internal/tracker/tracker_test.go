// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

package tracker

import (
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

// at returns t0 shifted by the given number of seconds.
func at(seconds int) time.Time {
	return t0.Add(time.Duration(seconds) * time.Second)
}

func mustObserve(t *testing.T, tr *Tracker, when time.Time, present ...string) []Event {
	t.Helper()
	events, err := tr.Observe(when, present)
	if err != nil {
		t.Fatalf("Observe(%v, %v) failed: %v", when, present, err)
	}
	return events
}

func mustObserveFailure(t *testing.T, tr *Tracker, when time.Time) []Event {
	t.Helper()
	events, err := tr.ObserveFailure(when)
	if err != nil {
		t.Fatalf("ObserveFailure(%v) failed: %v", when, err)
	}
	return events
}

func wantEvent(t *testing.T, got Event, typ EventType, entity string, start, end time.Time) {
	t.Helper()
	if got.Type != typ {
		t.Errorf("event type = %s, want %s", got.Type, typ)
	}
	if got.EntityID != entity {
		t.Errorf("entity = %s, want %s", got.EntityID, entity)
	}
	if !got.Start.Equal(start) {
		t.Errorf("start = %v, want %v", got.Start, start)
	}
	if typ == EventClosed && !got.End.Equal(end) {
		t.Errorf("end = %v, want %v", got.End, end)
	}
}

// Scenario A: P1 present at t=0,10,20, absent at t=30,40 with a one-miss
// grace threshold. The interval closes at the t=30 poll with end = last
// observed time, and the later poll is a no-op.
func TestObserveOpenExtendClose(t *testing.T) {
	t.Parallel()

	tr := New("players", Policy{MaxMisses: 1})

	events := mustObserve(t, tr, at(0), "P1")
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	wantEvent(t, events[0], EventOpened, "P1", at(0), time.Time{})

	for _, sec := range []int{10, 20} {
		events = mustObserve(t, tr, at(sec), "P1")
		if len(events) != 1 {
			t.Fatalf("poll at %ds: expected 1 event, got %d", sec, len(events))
		}
		wantEvent(t, events[0], EventExtended, "P1", at(0), time.Time{})
		if !events[0].LastSeen.Equal(at(sec)) {
			t.Errorf("last seen = %v, want %v", events[0].LastSeen, at(sec))
		}
	}

	events = mustObserve(t, tr, at(30))
	if len(events) != 1 {
		t.Fatalf("expected 1 close event, got %d", len(events))
	}
	wantEvent(t, events[0], EventClosed, "P1", at(0), at(20))

	if events = mustObserve(t, tr, at(40)); len(events) != 0 {
		t.Errorf("expected no events after close, got %v", events)
	}
	if tr.OpenCount() != 0 {
		t.Errorf("open count = %d, want 0", tr.OpenCount())
	}
}

func TestGraceWindowToleratesMisses(t *testing.T) {
	t.Parallel()

	tr := New("players", Policy{MaxMisses: 3})
	mustObserve(t, tr, at(0), "P1")

	// Two misses stay within the grace window.
	for _, sec := range []int{10, 20} {
		if events := mustObserve(t, tr, at(sec)); len(events) != 0 {
			t.Fatalf("poll at %ds: expected no events, got %v", sec, events)
		}
	}

	// Reappearance resets the miss count and extends the same interval.
	events := mustObserve(t, tr, at(30), "P1")
	if len(events) != 1 || events[0].Type != EventExtended {
		t.Fatalf("expected single extend, got %v", events)
	}
	if !events[0].Start.Equal(at(0)) {
		t.Errorf("interval start changed to %v after gap", events[0].Start)
	}

	// Third consecutive miss closes.
	for _, sec := range []int{40, 50} {
		if events := mustObserve(t, tr, at(sec)); len(events) != 0 {
			t.Fatalf("poll at %ds: expected no events, got %v", sec, events)
		}
	}
	events = mustObserve(t, tr, at(60))
	if len(events) != 1 {
		t.Fatalf("expected close on third miss, got %v", events)
	}
	wantEvent(t, events[0], EventClosed, "P1", at(0), at(30))
}

// Scenario B: the source fails repeatedly while P1 was last seen at t=20.
// With an outage ceiling of 3 consecutive failures the interval force-
// closes on the third failed poll, at the pre-outage last_seen.
func TestOutageCeilingForceCloses(t *testing.T) {
	t.Parallel()

	tr := New("players", Policy{MaxMisses: 1, OutageFailures: 3})
	mustObserve(t, tr, at(0), "P1")
	mustObserve(t, tr, at(10), "P1")
	mustObserve(t, tr, at(20), "P1")

	if events := mustObserveFailure(t, tr, at(50)); len(events) != 0 {
		t.Fatalf("first failure: expected no events, got %v", events)
	}
	if events := mustObserveFailure(t, tr, at(60)); len(events) != 0 {
		t.Fatalf("second failure: expected no events, got %v", events)
	}

	events := mustObserveFailure(t, tr, at(70))
	if len(events) != 1 {
		t.Fatalf("third failure: expected 1 close, got %d", len(events))
	}
	wantEvent(t, events[0], EventClosed, "P1", at(0), at(20))

	// The outage persisting closes nothing twice.
	if events := mustObserveFailure(t, tr, at(80)); len(events) != 0 {
		t.Errorf("expected no duplicate close, got %v", events)
	}
}

func TestOutageCeilingDuration(t *testing.T) {
	t.Parallel()

	tr := New("worlds", Policy{MaxMisses: 2, OutageCeiling: 45 * time.Second})
	mustObserve(t, tr, at(0), "W1")
	mustObserve(t, tr, at(20), "W1")

	// Elapsed since last_seen: 30s then 50s.
	if events := mustObserveFailure(t, tr, at(50)); len(events) != 0 {
		t.Fatalf("below ceiling: expected no events, got %v", events)
	}
	events := mustObserveFailure(t, tr, at(70))
	if len(events) != 1 {
		t.Fatalf("above ceiling: expected 1 close, got %d", len(events))
	}
	wantEvent(t, events[0], EventClosed, "W1", at(0), at(20))
}

func TestFailedPollsDoNotCountAsMisses(t *testing.T) {
	t.Parallel()

	tr := New("players", Policy{MaxMisses: 1, OutageFailures: 10})
	mustObserve(t, tr, at(0), "P1")

	// A run of failures keeps the interval open...
	for sec := 10; sec <= 40; sec += 10 {
		if events := mustObserveFailure(t, tr, at(sec)); len(events) != 0 {
			t.Fatalf("failure at %ds closed intervals: %v", sec, events)
		}
	}

	// ...and the entity surviving the outage extends the same interval.
	events := mustObserve(t, tr, at(50), "P1")
	if len(events) != 1 || events[0].Type != EventExtended {
		t.Fatalf("expected extend after outage, got %v", events)
	}
	if !events[0].Start.Equal(at(0)) {
		t.Errorf("start = %v, want %v", events[0].Start, at(0))
	}
}

func TestReappearanceStartsNewInterval(t *testing.T) {
	t.Parallel()

	tr := New("players", Policy{MaxMisses: 1})
	mustObserve(t, tr, at(0), "P1")
	mustObserve(t, tr, at(10))

	events := mustObserve(t, tr, at(20), "P1")
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	wantEvent(t, events[0], EventOpened, "P1", at(20), time.Time{})
}

func TestEmptySnapshotSweepsAllOpen(t *testing.T) {
	t.Parallel()

	tr := New("players", Policy{MaxMisses: 1})
	mustObserve(t, tr, at(0), "Alice", "Bob", "Carol")

	events := mustObserve(t, tr, at(10))
	if len(events) != 3 {
		t.Fatalf("expected 3 closes, got %d", len(events))
	}
	// Closes come out in entity order.
	for i, want := range []string{"Alice", "Bob", "Carol"} {
		wantEvent(t, events[i], EventClosed, want, at(0), at(0))
	}
}

func TestDuplicateAndEmptyIdentifiersIgnored(t *testing.T) {
	t.Parallel()

	tr := New("players", Policy{MaxMisses: 1})
	events := mustObserve(t, tr, at(0), "P1", "", "P1", "P2")
	if len(events) != 2 {
		t.Fatalf("expected 2 opens, got %d: %v", len(events), events)
	}
	if tr.OpenCount() != 2 {
		t.Errorf("open count = %d, want 2", tr.OpenCount())
	}
}

func TestOutOfOrderSnapshotRejected(t *testing.T) {
	t.Parallel()

	tr := New("players", Policy{MaxMisses: 1})
	mustObserve(t, tr, at(10), "P1")

	if _, err := tr.Observe(at(5), []string{"P1"}); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("Observe with regressed clock: err = %v, want ErrOutOfOrder", err)
	}
	if _, err := tr.ObserveFailure(at(5)); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("ObserveFailure with regressed clock: err = %v, want ErrOutOfOrder", err)
	}

	// Equal timestamps are tolerated (sub-second pollers may round).
	if _, err := tr.Observe(at(10), []string{"P1"}); err != nil {
		t.Errorf("Observe at current clock failed: %v", err)
	}
}

// Closed intervals never overlap and last_seen never decreases over a
// randomized-ish appearance pattern.
func TestIntervalInvariants(t *testing.T) {
	t.Parallel()

	tr := New("players", Policy{MaxMisses: 2})
	pattern := [][]string{
		{"P1"}, {"P1", "P2"}, {"P2"}, {"P2"}, {}, {},
		{"P1"}, {}, {}, {"P1", "P2"}, {"P1"}, {}, {}, {},
	}

	type span struct{ start, end time.Time }
	closedByEntity := make(map[string][]span)
	lastSeen := make(map[string]time.Time)

	for i, present := range pattern {
		now := at(i * 10)
		events := mustObserve(t, tr, now, present...)
		for _, ev := range events {
			switch ev.Type {
			case EventOpened, EventExtended:
				if prev, ok := lastSeen[ev.EntityID]; ok && ev.LastSeen.Before(prev) {
					t.Fatalf("last_seen regressed for %s: %v -> %v", ev.EntityID, prev, ev.LastSeen)
				}
				lastSeen[ev.EntityID] = ev.LastSeen
			case EventClosed:
				if ev.End.Before(ev.Start) {
					t.Fatalf("closed interval ends before it starts: %+v", ev)
				}
				if ev.End.After(now) {
					t.Fatalf("closed interval ends after the poll that closed it: %+v", ev)
				}
				closedByEntity[ev.EntityID] = append(closedByEntity[ev.EntityID], span{ev.Start, ev.End})
			}
		}
	}

	for entity, spans := range closedByEntity {
		for i := 1; i < len(spans); i++ {
			if spans[i].start.Before(spans[i-1].end) {
				t.Errorf("%s: interval %d overlaps previous (%v < %v)",
					entity, i, spans[i].start, spans[i-1].end)
			}
		}
	}
}

func TestOpenStateSnapshot(t *testing.T) {
	t.Parallel()

	tr := New("players", Policy{MaxMisses: 2})
	mustObserve(t, tr, at(0), "Bob", "Alice")
	mustObserve(t, tr, at(10), "Bob")

	state := tr.OpenState()
	if len(state) != 2 {
		t.Fatalf("expected 2 open intervals, got %d", len(state))
	}
	if state[0].EntityID != "Alice" || state[1].EntityID != "Bob" {
		t.Errorf("open state not sorted by entity: %v", state)
	}
	if state[0].Misses != 1 {
		t.Errorf("Alice misses = %d, want 1", state[0].Misses)
	}
	if !state[1].LastSeen.Equal(at(10)) {
		t.Errorf("Bob last_seen = %v, want %v", state[1].LastSeen, at(10))
	}

	// Mutating the copy must not touch tracker state.
	state[1].LastSeen = at(999)
	if got := tr.OpenState()[1].LastSeen; !got.Equal(at(10)) {
		t.Errorf("OpenState leaked internal pointers: last_seen = %v", got)
	}
}
