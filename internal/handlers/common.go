package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"socialfeed/internal/services"

	"github.com/rs/zerolog/log"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// errorStatus maps a service error to a status code and a user-facing message
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrEmptyContent),
		errors.Is(err, services.ErrContentTooLong),
		errors.Is(err, services.ErrUnsupportedMedia),
		errors.Is(err, services.ErrInvalidPage),
		errors.Is(err, services.ErrSelfFollow),
		errors.Is(err, services.ErrInvalidEmail),
		errors.Is(err, services.ErrOAuthStateMatch):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrMediaTooLarge):
		return http.StatusRequestEntityTooLarge, services.ErrMediaTooLarge.Error()
	case errors.Is(err, services.ErrInvalidOTP):
		return http.StatusUnauthorized, services.ErrInvalidOTP.Error()
	case errors.Is(err, services.ErrOTPRateLimited):
		return http.StatusTooManyRequests, services.ErrOTPRateLimited.Error()
	case errors.Is(err, services.ErrFollowRecordNotFound):
		return http.StatusNotFound, services.ErrFollowRecordNotFound.Error()
	case errors.Is(err, services.ErrOAuthDisabled):
		return http.StatusNotFound, services.ErrOAuthDisabled.Error()
	case errors.Is(err, services.ErrFeedUnavailable):
		return http.StatusBadGateway, services.ErrFeedUnavailable.Error()
	case errors.Is(err, services.ErrSubmitFailed):
		return http.StatusBadGateway, services.ErrSubmitFailed.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// respondServiceError logs err and sends the mapped error response
func respondServiceError(w http.ResponseWriter, err error, userID, msg string) {
	status, message := errorStatus(err)
	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).Str("user_id", userID).Msg(msg)
	respondError(w, message, status)
}
