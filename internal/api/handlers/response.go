package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/ecogen/ecogen/backend/internal/infrastructure/observability"
	apperrors "github.com/ecogen/ecogen/backend/pkg/errors"
)

// errorBody is the JSON shape of every error response
type errorBody struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

// StatusFor maps an error's type to its HTTP status
func StatusFor(err error) int {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeAuth:
		return http.StatusUnauthorized
	case apperrors.ErrorTypePrecondition:
		return http.StatusPreconditionFailed
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeConflict:
		return http.StatusConflict
	case apperrors.ErrorTypeStore:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, errorBody{Error: message})
}

// respondWithAppError writes err with the status of its type. Internal
// errors never expose their message.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	errType := apperrors.TypeOf(err)
	message := apperrors.MessageOf(err)

	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		if errType == apperrors.ErrorTypeInternal {
			message = "internal server error"
		}
	}

	respondWithJSON(w, status, errorBody{Error: message, Type: string(errType)})
}
