// Package handlers exposes the HTTP API: login, logout, chat and health.
package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// WriteJSON writes a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// ErrorResponse writes {"error": message} with the given status.
func ErrorResponse(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, logger *zap.Logger, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.Debug("bad request body", zap.Error(err))
		ErrorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
