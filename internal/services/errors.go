package services

import (
	"fmt"
	"strings"
)

// ValidationError reports malformed input or a ballot-schema mismatch. It is
// never retried automatically.
type ValidationError struct {
	Message    string
	Violations []string
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Violations, "; "))
}

// NewValidationError creates a validation error with optional violations.
func NewValidationError(message string, violations ...string) *ValidationError {
	return &ValidationError{Message: message, Violations: violations}
}

// AuthorizationError reports an ownership or role failure.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string { return e.Message }

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ConflictError reports an operation rejected by current state: already
// deployed, already voted, duplicate voter, or wrong election status.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ExternalLedgerError reports a failure talking to the external ledger:
// simulation revert, insufficient signer balance, transaction failure or
// timeout, RPC unavailability.
type ExternalLedgerError struct {
	Op  string
	Err error
}

func (e *ExternalLedgerError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *ExternalLedgerError) Unwrap() error { return e.Err }
