// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

// Package api serves the read-only HTTP API over the collected presence
// data, routed with chi. Endpoints:
//
//	GET /api/v1/health/live      liveness probe
//	GET /api/v1/health/ready     readiness probe (database ping)
//	GET /api/v1/sessions/recent  recently closed intervals per stream
//	GET /api/v1/sessions/open    currently open intervals per stream
//	GET /api/v1/online/latest    latest server-wide online count
//	GET /api/v1/worlds           latest status row per world
//	GET /metrics                 Prometheus metrics
//
// The API only reads; all writes go through the collectors.
package api
