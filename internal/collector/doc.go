// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

// Package collector runs the poll loops that tie sources, trackers and
// the database together. Each collector is a suture.Service: it owns one
// periodic loop, survives poll failures, and relies on supervisor
// restarts for everything unexpected.
//
// Collectors:
//
//   - SessionCollector: polls a Source on a fixed interval, feeds each
//     snapshot to a tracker.Tracker, and persists the resulting interval
//     events. The first successful snapshot after startup runs the
//     restart reconciliation against the persisted open-interval state.
//     Tracker invariant violations and exhausted sink writes abort the
//     stream so the supervisor restart can reconcile from the sink.
//   - WorldsFanout: wraps the worlds API client as a Source and tees each
//     successful fetch to the status stream, so both views come from the
//     same fetch.
//   - OnlineCountCollector: samples the server-wide online count and
//     records it on change.
//   - WorldStatusCollector: upserts per-world status rows on change.
//   - RosterCollector: fetches the full account roster page by page on a
//     long interval (weekly by default).
//
// A restart of a SessionCollector mid-poll is safe: all sink writes are
// idempotent, and reconciliation re-adopts whatever open state the
// previous incarnation persisted.
package collector
