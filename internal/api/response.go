// Package api is the HTTP surface of the assistant.
package api

import (
	"encoding/json"
	"net/http"

	errx "github.com/hr-benefits-assistant/server/internal/core/error"
	logx "github.com/hr-benefits-assistant/server/pkg/logger"
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Error().Err(err).Msg("failed to encode response")
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// ErrorFrom writes err using the status and safe message it carries.
func ErrorFrom(w http.ResponseWriter, err error) {
	status, message := errx.StatusOf(err)
	if status >= http.StatusInternalServerError {
		logx.Error().Err(err).Int("status", status).Msg("request failed")
	}
	Error(w, status, message)
}
