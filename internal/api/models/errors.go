package models

import (
	"errors"
	"net/http"

	"election-system/internal/services"
)

// Error codes
const (
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeForbidden      = "FORBIDDEN"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeInternalError  = "INTERNAL_ERROR"

	ErrCodeAlreadyVoted      = "ALREADY_VOTED"
	ErrCodeElectionNotActive = "ELECTION_NOT_ACTIVE"
	ErrCodeInvalidVote       = "INVALID_VOTE"

	ErrCodeLedgerError       = "LEDGER_ERROR"
	ErrCodeInsufficientFunds = "INSUFFICIENT_FUNDS"

	ErrCodeInvalidToken      = "INVALID_TOKEN"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
)

// APIError is a service failure translated to a transport shape.
type APIError struct {
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Violations []string `json:"violations,omitempty"`
	StatusCode int      `json:"-"`
}

func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates a new API error
func NewAPIError(code, message string, statusCode int) *APIError {
	return &APIError{Code: code, Message: message, StatusCode: statusCode}
}

// FromServiceError maps the service error taxonomy onto HTTP codes. Unknown
// errors become opaque 500s so internals never leak to clients.
func FromServiceError(err error) *APIError {
	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		return &APIError{
			Code:       ErrCodeInvalidRequest,
			Message:    validationErr.Message,
			Violations: validationErr.Violations,
			StatusCode: http.StatusBadRequest,
		}
	}

	var authErr *services.AuthorizationError
	if errors.As(err, &authErr) {
		return &APIError{Code: ErrCodeForbidden, Message: authErr.Message, StatusCode: http.StatusForbidden}
	}

	var notFoundErr *services.NotFoundError
	if errors.As(err, &notFoundErr) {
		return &APIError{Code: ErrCodeNotFound, Message: notFoundErr.Error(), StatusCode: http.StatusNotFound}
	}

	var conflictErr *services.ConflictError
	if errors.As(err, &conflictErr) {
		return &APIError{Code: ErrCodeConflict, Message: conflictErr.Message, StatusCode: http.StatusConflict}
	}

	var ledgerErr *services.ExternalLedgerError
	if errors.As(err, &ledgerErr) {
		return &APIError{Code: ErrCodeLedgerError, Message: ledgerErr.Error(), StatusCode: http.StatusBadGateway}
	}

	return &APIError{Code: ErrCodeInternalError, Message: "internal server error", StatusCode: http.StatusInternalServerError}
}
