// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/playtrack/playtrack/internal/database"
	"github.com/playtrack/playtrack/internal/logging"
	"github.com/playtrack/playtrack/internal/tracker"
	"github.com/playtrack/playtrack/internal/validation"
)

// Store is the read slice of the database the API needs. Satisfied by
// *database.DB.
type Store interface {
	Ping(ctx context.Context) error
	RecentSessions(ctx context.Context, stream string, limit int) ([]database.Session, error)
	LoadOpenIntervals(ctx context.Context, stream string) ([]tracker.OpenInterval, error)
	LatestOnlineCount(ctx context.Context) (*database.OnlineSample, error)
	ListWorldStatus(ctx context.Context) ([]database.WorldStatus, error)
}

// Handler holds the API handlers.
type Handler struct {
	store Store
}

// NewHandler creates the API handler set.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// sessionsRequest is the validated query for session listing endpoints.
type sessionsRequest struct {
	Stream string `validate:"oneof=players worlds"`
	Limit  int    `validate:"min=1,max=1000"`
}

// parseSessionsRequest reads and validates the stream/limit query
// parameters, applying defaults for absent ones.
func parseSessionsRequest(r *http.Request) (*sessionsRequest, error) {
	req := &sessionsRequest{Stream: "players", Limit: 100}

	if s := r.URL.Query().Get("stream"); s != "" {
		req.Stream = s
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil {
			return nil, &validationError{message: "limit must be an integer"}
		}
		req.Limit = limit
	}

	if err := validation.ValidateStruct(req); err != nil {
		return nil, &validationError{message: err.Error()}
	}
	return req, nil
}

type validationError struct {
	message string
}

func (e *validationError) Error() string { return e.message }

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthReady reports readiness: the database must answer a ping.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		logging.Warn().Err(err).Msg("readiness check failed")
		respondError(w, http.StatusServiceUnavailable, "NOT_READY", "database unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// RecentSessions returns recently closed intervals for a stream.
func (h *Handler) RecentSessions(w http.ResponseWriter, r *http.Request) {
	req, err := parseSessionsRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	sessions, err := h.store.RecentSessions(r.Context(), req.Stream, req.Limit)
	if err != nil {
		logging.Error().Err(err).Str("stream", req.Stream).Msg("recent sessions query failed")
		respondError(w, http.StatusInternalServerError, "QUERY_FAILED", "failed to query sessions")
		return
	}
	if sessions == nil {
		sessions = []database.Session{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"stream":   req.Stream,
		"sessions": sessions,
	})
}

// OpenSessions returns the currently open intervals for a stream.
func (h *Handler) OpenSessions(w http.ResponseWriter, r *http.Request) {
	req, err := parseSessionsRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	open, err := h.store.LoadOpenIntervals(r.Context(), req.Stream)
	if err != nil {
		logging.Error().Err(err).Str("stream", req.Stream).Msg("open sessions query failed")
		respondError(w, http.StatusInternalServerError, "QUERY_FAILED", "failed to query open sessions")
		return
	}
	if open == nil {
		open = []tracker.OpenInterval{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"stream": req.Stream,
		"open":   open,
	})
}

// LatestOnline returns the most recent server-wide online count.
func (h *Handler) LatestOnline(w http.ResponseWriter, r *http.Request) {
	sample, err := h.store.LatestOnlineCount(r.Context())
	if err != nil {
		respondError(w, http.StatusNotFound, "NO_DATA", "no online samples recorded yet")
		return
	}
	respondJSON(w, http.StatusOK, sample)
}

// Worlds returns the latest status row per world.
func (h *Handler) Worlds(w http.ResponseWriter, r *http.Request) {
	worlds, err := h.store.ListWorldStatus(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("world status query failed")
		respondError(w, http.StatusInternalServerError, "QUERY_FAILED", "failed to query world status")
		return
	}
	if worlds == nil {
		worlds = []database.WorldStatus{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"worlds": worlds})
}
