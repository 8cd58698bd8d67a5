// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

package tracker

import "time"

// OpenInterval is the state of one currently-open presence interval.
// Persisted verbatim across restarts; it is the only cross-restart
// carrier of interval identity.
type OpenInterval struct {
	// EntityID is the stream-scoped identifier (player login, world name).
	EntityID string `json:"entity_id"`

	// Start is when the interval was opened. Together with EntityID it
	// keys the interval in the sink.
	Start time.Time `json:"session_start"`

	// LastSeen is the time of the most recent snapshot containing the
	// entity. Never decreases.
	LastSeen time.Time `json:"last_seen"`

	// Misses counts consecutive successful snapshots in which the entity
	// did not appear since LastSeen. Failed polls do not increment it.
	Misses int `json:"-"`
}

// EventType discriminates interval lifecycle events.
type EventType string

// Interval lifecycle event types.
const (
	EventOpened   EventType = "opened"
	EventExtended EventType = "extended"
	EventClosed   EventType = "closed"
)

// Event is one interval lifecycle transition emitted by a Tracker.
type Event struct {
	Type     EventType
	EntityID string

	// Start is the interval's opening time, present on every event type.
	Start time.Time

	// LastSeen is the most recent observation time for the entity.
	LastSeen time.Time

	// End is the interval's closing time. Zero unless Type is EventClosed.
	// Always equal to the interval's last_seen at close time.
	End time.Time
}
