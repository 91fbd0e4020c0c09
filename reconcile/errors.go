package reconcile

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("record not found")

// MissingRequiredFieldError is returned when a record cannot be normalized
// because a required field is absent.
type MissingRequiredFieldError struct {
	Field string
}

func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// DuplicateCodeError is returned when a patient code is already used by
// another record.
type DuplicateCodeError struct {
	Code       string
	ConflictID string
}

func (e *DuplicateCodeError) Error() string {
	if e.ConflictID == "" {
		return fmt.Sprintf("patient code %s already registered", e.Code)
	}
	return fmt.Sprintf("patient code %s already registered to %s", e.Code, e.ConflictID)
}

// StoreError wraps a failure of the persistence collaborator.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsUserError reports whether err is caused by caller input rather than
// infrastructure, so handlers can pick the response status.
func IsUserError(err error) bool {
	var missing *MissingRequiredFieldError
	var dup *DuplicateCodeError
	return errors.As(err, &missing) || errors.As(err, &dup) || errors.Is(err, ErrInvalidInput)
}

// ErrInvalidInput marks malformed update payloads (bad status, bad follow-up number).
var ErrInvalidInput = errors.New("invalid input")
