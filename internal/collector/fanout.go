// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

package collector

import (
	"context"
	"time"

	"github.com/playtrack/playtrack/internal/source"
)

// WorldLister is the slice of the worlds API client the fanout needs.
type WorldLister interface {
	Worlds(ctx context.Context) ([]source.World, error)
}

// WorldsUpdate is one fetched world list with its observation time.
type WorldsUpdate struct {
	Worlds []source.World
	Time   time.Time
}

// WorldsFanout adapts the worlds API client into a Source while teeing
// the full world rows to a status channel. The session collector drives
// the polling; status consumers see exactly the fetches that fed the
// session stream, so both views always agree.
type WorldsFanout struct {
	client WorldLister
	status chan WorldsUpdate
}

// NewWorldsFanout wraps a worlds client.
func NewWorldsFanout(client WorldLister) *WorldsFanout {
	return &WorldsFanout{
		client: client,
		status: make(chan WorldsUpdate, 1),
	}
}

// FetchSnapshot implements source.Source. A successful fetch is also
// published to the status channel, latest-wins: a slow consumer only
// ever misses intermediate states, never the newest one.
func (f *WorldsFanout) FetchSnapshot(ctx context.Context) (*source.Snapshot, error) {
	worlds, err := f.client.Worlds(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	update := WorldsUpdate{Worlds: worlds, Time: now}
	select {
	case f.status <- update:
	default:
		// Drop the stale update, then publish the fresh one.
		select {
		case <-f.status:
		default:
		}
		select {
		case f.status <- update:
		default:
		}
	}

	entities := make([]string, 0, len(worlds))
	for _, w := range worlds {
		entities = append(entities, w.Name)
	}
	return &source.Snapshot{Time: now, Entities: entities}, nil
}

// Status returns the channel of successful world fetches.
func (f *WorldsFanout) Status() <-chan WorldsUpdate {
	return f.status
}
