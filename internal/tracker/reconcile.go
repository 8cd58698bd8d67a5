// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

package tracker

import (
	"fmt"
	"time"
)

// Reconcile resolves intervals left open by a previous process instance
// against the first fresh snapshot, invoked once before the first live
// Observe call.
//
// Persisted intervals whose entity appears in present are re-adopted:
// the open state is seeded with the persisted start and last_seen set to
// now, so the interval continues uninterrupted across the restart. No
// event is emitted for a continuation.
//
// Persisted intervals whose entity is absent are closed retroactively at
// their persisted last_seen, not at now. The entity departed somewhere in
// the downtime window; using the persisted timestamp accepts a bounded
// under-report instead of inflating every interval open across a restart.
//
// Reconcile is idempotent within a Tracker instance: a second call with
// the same persisted state and snapshot leaves the open state unchanged
// and emits no events.
func (t *Tracker) Reconcile(persisted []OpenInterval, present []string, now time.Time) ([]Event, error) {
	if t.closedAtReconcile == nil {
		t.closedAtReconcile = make(map[string]time.Time)
	}

	fresh := make(map[string]struct{}, len(present))
	for _, id := range present {
		fresh[id] = struct{}{}
	}

	var events []Event
	for i := range persisted {
		p := &persisted[i]

		if _, alive := fresh[p.EntityID]; alive {
			if cur, ok := t.open[p.EntityID]; ok {
				if !cur.Start.Equal(p.Start) {
					return nil, fmt.Errorf("%w: stream %s entity %s open since %s, persisted start %s",
						ErrDuplicateOpen, t.stream, p.EntityID,
						cur.Start.Format(time.RFC3339), p.Start.Format(time.RFC3339))
				}
				continue // already re-adopted
			}
			t.open[p.EntityID] = &OpenInterval{
				EntityID: p.EntityID,
				Start:    p.Start,
				LastSeen: now,
			}
			continue
		}

		if start, done := t.closedAtReconcile[p.EntityID]; done && start.Equal(p.Start) {
			continue // already closed by an earlier reconcile pass
		}
		t.closedAtReconcile[p.EntityID] = p.Start
		events = append(events, Event{
			Type:     EventClosed,
			EntityID: p.EntityID,
			Start:    p.Start,
			LastSeen: p.LastSeen,
			End:      p.LastSeen,
		})
	}

	if now.After(t.clock) {
		t.clock = now
	}
	return events, nil
}
