// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/playtrack/playtrack/internal/logging"
)

// apiError is the wire shape of an error response.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

// respondJSON writes v as a JSON response.
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("failed to encode response")
	}
}

// respondError writes a structured error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: apiError{Code: code, Message: message}})
}
