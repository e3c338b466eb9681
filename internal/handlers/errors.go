package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"visitas/internal/apperr"
	"visitas/internal/service"
)

// errorBody is the JSON shape of every failed request
type errorBody struct {
	Code           apperr.Kind `json:"code"`
	Message        string      `json:"message"`
	ServerVersion  string      `json:"serverVersion,omitempty"`
	ServerSnapshot any         `json:"serverSnapshot,omitempty"`
}

func statusFor(err error) int {
	if errors.Is(err, service.ErrRateLimited) {
		return http.StatusTooManyRequests
	}
	switch apperr.KindOf(err) {
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindBadRequest:
		return http.StatusBadRequest
	case apperr.KindEditConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondWithError writes err as a JSON error body. Internal errors are
// logged with logMsg and never leak their cause to the client.
func respondWithError(w http.ResponseWriter, logger *zap.Logger, logMsg string, err error) {
	status := statusFor(err)
	body := errorBody{Code: apperr.KindOf(err), Message: apperr.Message(err)}

	var conflict *apperr.ConflictError
	if errors.As(err, &conflict) {
		body.ServerVersion = conflict.ServerVersion
		body.ServerSnapshot = conflict.ServerSnapshot
	}

	if status == http.StatusInternalServerError {
		if logMsg == "" {
			logMsg = body.Message
		}
		logger.Error(logMsg, zap.Error(err))
	}

	respondWithJSON(w, status, body)
}

func respondWithJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a request body into v, reporting malformed input as BAD_REQUEST
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return apperr.Wrap(apperr.KindBadRequest, ErrInvalidJSON, err)
	}
	return nil
}
