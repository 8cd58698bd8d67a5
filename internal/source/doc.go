// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

// Package source implements the snapshot source boundary: adapters that
// reduce external, unreliable presence feeds to one narrow contract,
// FetchSnapshot.
//
// Two concrete feeds exist: the SA-MP binary query protocol spoken over
// UDP with the game server (connected player list, online count), and a
// JSON HTTP API listing live worlds. The tracker core depends only on
// the Source interface and never sees either protocol.
//
// BreakerSource adds a circuit breaker in front of any Source so a dead
// upstream sheds load quickly instead of timing out on every poll.
package source
