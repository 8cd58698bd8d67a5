// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

// Package metrics provides Prometheus instrumentation for Playtrack:
// poll outcomes and latencies per stream, interval lifecycle counters,
// sink write retries, DuckDB query performance, circuit breaker state,
// and API endpoint metrics. All collectors are registered on the default
// registry via promauto and exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Poll Metrics
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playtrack_polls_total",
			Help: "Total number of snapshot polls per stream and result",
		},
		[]string{"stream", "result"}, // result: "success", "failure"
	)

	PollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "playtrack_poll_duration_seconds",
			Help:    "Duration of snapshot polls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stream"},
	)

	// Interval Lifecycle Metrics
	OpenIntervals = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "playtrack_open_intervals",
			Help: "Number of currently open presence intervals per stream",
		},
		[]string{"stream"},
	)

	IntervalEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playtrack_interval_events_total",
			Help: "Total interval lifecycle events emitted per stream",
		},
		[]string{"stream", "event"}, // event: "opened", "extended", "closed"
	)

	CurrentOnline = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "playtrack_current_online",
			Help: "Most recently observed active entity count per stream",
		},
		[]string{"stream"},
	)

	// Sink Metrics
	SinkRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playtrack_sink_retries_total",
			Help: "Total sink write retries per stream and operation",
		},
		[]string{"stream", "operation"},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"breaker"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"breaker", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total requests through circuit breakers by outcome",
		},
		[]string{"breaker", "result"}, // result: "success", "failure", "rejected"
	)

	// Roster Metrics
	RosterRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playtrack_roster_runs_total",
			Help: "Total weekly roster collection runs by result",
		},
		[]string{"result"},
	)

	RosterPlayersCollected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playtrack_roster_players_collected_total",
			Help: "Total roster player records collected",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total API requests by endpoint, method, and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)
)
