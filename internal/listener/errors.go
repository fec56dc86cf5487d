package listener

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ishandutta2007/taskt/internal/auth"
	"github.com/ishandutta2007/taskt/internal/automation"
	"github.com/ishandutta2007/taskt/internal/script"
)

// Domain errors for the listener package.
var (
	// ErrBadRequest is returned for malformed envelopes and payloads.
	ErrBadRequest = errors.New("listener: bad request")

	// ErrUnknownAction is returned for envelope actions outside
	// start, status, cancel, pause and resume.
	ErrUnknownAction = errors.New("listener: unknown action")

	// ErrHistoryDisabled is returned for history queries when no run
	// repository is configured.
	ErrHistoryDisabled = errors.New("listener: run history is disabled")
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeConflict     = "conflict"
	ErrCodeValidation   = "validation_error"
	ErrCodeInternal     = "internal_error"
)

// classify maps an error to its HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, ErrCodeForbidden
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, ErrCodeUnauthorized
	case errors.Is(err, automation.ErrRunNotFound),
		errors.Is(err, script.ErrScriptNotFound),
		errors.Is(err, ErrHistoryDisabled):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, automation.ErrValidation):
		return http.StatusUnprocessableEntity, ErrCodeValidation
	case errors.Is(err, automation.ErrInvalidState):
		return http.StatusConflict, ErrCodeConflict
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, ErrUnknownAction),
		errors.Is(err, script.ErrInvalidDocument),
		errors.Is(err, script.ErrInvalidPath),
		errors.Is(err, script.ErrUnknownCommand):
		return http.StatusBadRequest, ErrCodeBadRequest
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeErr classifies err and writes it. Internal errors are not echoed.
func writeErr(w http.ResponseWriter, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	writeError(w, status, code, msg)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}
