package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/zolachat/zola-api/internal/apperror"
)

// envelope is the JSON shape every endpoint responds with.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondData(w http.ResponseWriter, status int, data any) {
	respondJSON(w, status, envelope{Success: true, Data: data})
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, envelope{Success: true, Message: message})
}

// respondError maps a domain error onto its HTTP status. Internal errors are
// logged and replaced with a generic message so database details never reach
// the client.
func respondError(w http.ResponseWriter, logger *zerolog.Logger, err error) {
	kind := apperror.KindOf(err)
	status := apperror.HTTPStatus(kind)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Msg("request failed")
		message = "Đã xảy ra lỗi. Vui lòng thử lại sau."
	}

	respondJSON(w, status, envelope{Success: false, Message: message})
}

func respondValidationError(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusBadRequest, envelope{Success: false, Message: message})
}

// decodeJSON reads the request body into dst, rejecting unknown top-level
// syntax errors with a uniform message.
func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
