package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/assassingame/internal/model"
	"github.com/mcoot/assassingame/internal/services/auth"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Transport-level error codes. Domain codes come from model.ErrorCode.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeNotFound       = "NOT_FOUND"
	CodeUnavailable    = "EVENTS_UNAVAILABLE"
)

// statusByCode maps stable domain codes to HTTP status
var statusByCode = map[model.ErrorCode]int{
	model.CodeAlreadyInAnotherGame:   http.StatusConflict,
	model.CodeAlreadyInRequestedGame: http.StatusConflict,
	model.CodeNotInGame:              http.StatusForbidden,
	model.CodeGameNotStarted:         http.StatusConflict,
	model.CodeGameNotFound:           http.StatusNotFound,
	model.CodeNoCurrentTarget:        http.StatusConflict,
	model.CodeAlreadyRegistered:      http.StatusConflict,
	model.CodeNotRegistered:          http.StatusForbidden,
	model.CodeNotGameOwner:           http.StatusForbidden,
	model.CodeGameAlreadyStarted:     http.StatusConflict,
	model.CodeNotEnoughPlayers:       http.StatusConflict,
	model.CodeGameNotOver:            http.StatusConflict,
	model.CodeGameFinished:           http.StatusConflict,
	model.CodeDatabaseError:          http.StatusServiceUnavailable,
	model.CodeUnknown:                http.StatusInternalServerError,
}

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status WriteError would use for err
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}
	if errors.Is(err, auth.ErrInvalidToken) {
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Invalid or expired token"}}
	}

	code := model.Code(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	var de *model.DomainError
	switch {
	case errors.As(err, &de):
		return &httpError{status, APIError{string(code), de.Message}}
	case code == model.CodeDatabaseError:
		return &httpError{status, APIError{string(code), "Database temporarily unavailable, please retry"}}
	default:
		return &httpError{status, APIError{string(model.CodeUnknown), "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{string(model.CodeUnknown), "Internal server error"}}
}

// NewEventsUnavailableError is returned when the server runs without live events
func NewEventsUnavailableError() error {
	return &httpError{http.StatusNotImplemented, APIError{CodeUnavailable, "Live events are disabled"}}
}
