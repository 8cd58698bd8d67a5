// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

package tracker

import "time"

// Policy is the grace-window policy deciding whether an entity's absence
// is a genuine departure or a transient sampling gap.
//
// True absences (the entity missing from a successful snapshot) close an
// interval once Misses reaches MaxMisses. Failed polls never count as
// absences; instead they feed the outage path, which force-closes all
// open intervals once the source has been unreachable for OutageFailures
// consecutive polls or OutageCeiling of elapsed time, whichever is
// configured. Without the outage path, a multi-hour source outage would
// accumulate unbounded phantom sessions.
type Policy struct {
	// MaxMisses is the number of consecutive true absences before an
	// interval closes. Values below 1 are treated as 1.
	MaxMisses int

	// OutageFailures force-closes open intervals once this many
	// consecutive polls have failed. 0 disables the count-based ceiling.
	OutageFailures int

	// OutageCeiling force-closes an open interval once the entity has
	// gone unobserved for this long during an outage. 0 disables the
	// duration-based ceiling.
	OutageCeiling time.Duration
}

// Observation is the input to one ShouldClose decision for one entity.
type Observation struct {
	// Misses is the entity's consecutive true-absence count.
	Misses int

	// Failures is the stream's consecutive failed-poll count.
	Failures int

	// Elapsed is the time since the entity was last observed.
	Elapsed time.Duration

	// Failure marks the current poll as failed rather than an empty or
	// partial successful snapshot.
	Failure bool
}

// ShouldClose reports whether the open interval behind obs should close.
// Pure function of the policy and the observation.
func (p Policy) ShouldClose(obs Observation) bool {
	if obs.Failure {
		if p.OutageFailures > 0 && obs.Failures >= p.OutageFailures {
			return true
		}
		if p.OutageCeiling > 0 && obs.Elapsed >= p.OutageCeiling {
			return true
		}
		return false
	}

	maxMisses := p.MaxMisses
	if maxMisses < 1 {
		maxMisses = 1
	}
	return obs.Misses >= maxMisses
}
