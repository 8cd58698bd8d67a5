// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

// Package tracker reconstructs durable presence intervals from periodic
// point-in-time snapshots of an entity stream (connected players, live
// worlds).
//
// A Tracker owns the open-interval state for exactly one stream. Each
// snapshot handed to Observe produces interval lifecycle events:
//
//   - Opened: an entity appeared with no open interval
//   - Extended: an entity was seen again, advancing last_seen
//   - Closed: an entity's absence exceeded the grace window
//
// Failed polls go through ObserveFailure instead; they never count as
// true absences but feed the outage ceiling, which force-closes all open
// intervals when the source has been unreachable for too long.
//
// Close timestamps always use the entity's last observed time, not the
// poll time. The entity's real departure happened somewhere in the
// unobserved gap, and last_seen is the tightest known lower bound. The
// rule applies uniformly to grace-window closes, outage force-closes,
// and reconciliation closes, so reported durations are comparable.
//
// Reconcile resolves intervals left open by a previous process instance
// against the first fresh snapshot: entities still present are re-adopted
// with their original start time, entities gone are closed retroactively
// at their persisted last_seen.
//
// A Tracker is not safe for concurrent use. Each stream's collector owns
// its Tracker and serializes all calls.
package tracker
