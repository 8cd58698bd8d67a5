// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

package source

import (
	"context"
	"errors"
	"time"
)

// Failure taxonomy for snapshot fetches. Both classes are treated as a
// failed poll by the collector; protocol errors are additionally logged
// with the malformed payload context since they usually indicate an
// upstream change rather than an outage.
var (
	// ErrUnavailable marks transient reachability failures: timeouts,
	// refused connections, 5xx responses, open circuit breakers.
	ErrUnavailable = errors.New("source: unavailable")

	// ErrProtocol marks malformed or unexpected responses.
	ErrProtocol = errors.New("source: protocol error")
)

// Snapshot is one point-in-time observation of a stream: the set of
// currently active entity identifiers and when they were observed.
type Snapshot struct {
	Time     time.Time
	Entities []string
}

// Source yields the current set of active entities in one stream.
// Implementations must be safe to call repeatedly from a single
// goroutine; a returned error means the poll failed and carries
// ErrUnavailable or ErrProtocol in its chain.
type Source interface {
	FetchSnapshot(ctx context.Context) (*Snapshot, error)
}
