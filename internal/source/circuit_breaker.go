// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/playtrack/playtrack/internal/logging"
	"github.com/playtrack/playtrack/internal/metrics"
)

// BreakerSource wraps a Source with a circuit breaker. Pollers run at a
// low, fixed request rate, so the breaker trips on consecutive failures
// rather than a failure-rate window, and rejected polls surface as
// ErrUnavailable so they feed the tracker's outage path like any other
// failed fetch.
//
// The breaker uses real time for its recovery timeout. Tests exercise
// the wrapped source directly or drive the breaker through its failure
// count rather than waiting out timeouts.
type BreakerSource struct {
	name   string
	source Source
	cb     *gobreaker.CircuitBreaker[*Snapshot]
}

// NewBreakerSource wraps src in a circuit breaker named name. The
// circuit opens after consecutiveFailures failed fetches and probes
// again after recoveryTimeout.
func NewBreakerSource(name string, src Source, consecutiveFailures uint32, recoveryTimeout time.Duration) *BreakerSource {
	if consecutiveFailures == 0 {
		consecutiveFailures = 5
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 2 * time.Minute
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[*Snapshot](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     recoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().
				Str("breaker", name).
				Str("from", fromStr).
				Str("to", toStr).
				Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &BreakerSource{name: name, source: src, cb: cb}
}

// FetchSnapshot implements Source with circuit breaker protection.
func (b *BreakerSource) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	snap, err := b.cb.Execute(func() (*Snapshot, error) {
		return b.source.FetchSnapshot(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			return nil, fmt.Errorf("%w: circuit %s open: %v", ErrUnavailable, b.name, err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	return snap, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
