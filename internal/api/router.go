// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/playtrack/playtrack/internal/middleware"
)

// NewRouter assembles the HTTP routes around a handler set.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)

		r.Route("/health", func(r chi.Router) {
			r.Get("/live", handler.HealthLive)
			r.Get("/ready", handler.HealthReady)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/recent", handler.RecentSessions)
			r.Get("/open", handler.OpenSessions)
		})

		r.Get("/online/latest", handler.LatestOnline)
		r.Get("/worlds", handler.Worlds)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
