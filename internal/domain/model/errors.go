package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for the sync engine. The orchestrator and the HTTP
// layer match on these with errors.Is to pick status codes and progress
// transitions.
var (
	// ErrNotConfigured means the user has no usable credential entry for
	// the requested exchange (no set, no matching entry, or sync disabled).
	ErrNotConfigured = errors.New("exchange keys are not configured")

	// ErrIncompleteCredentials means a matching entry exists but the API
	// key or secret is empty.
	ErrIncompleteCredentials = errors.New("exchange credentials are incomplete")

	// ErrUnknownExchange means the requested exchange has no registered adapter.
	ErrUnknownExchange = errors.New("unknown exchange")

	// ErrExchangeUnavailable means an adapter exhausted its retry budget
	// against a transient upstream condition.
	ErrExchangeUnavailable = errors.New("exchange is unavailable")
)

// ValidationError rejects a malformed request before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a request validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
