// Package shared contains common domain types, errors and events that are
// used across the student and exchange domains. It has no external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds for errors.Is() checking.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	ErrValidation   = errors.New("validation error")
	ErrInvalidInput = errors.New("invalid input")

	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")

	ErrConcurrentModification = errors.New("concurrent modification detected")

	ErrServiceUnavailable = errors.New("service unavailable")
	ErrInternal           = errors.New("internal error")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g. "student", "exchange"
	Op      string // operation that failed, e.g. "Commit"
	Kind    error  // base error for errors.Is() checking
	Message string
	Err     error // underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching against both Kind and Err.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// Student domain errors
var (
	ErrInvalidBookSlot       = NewDomainError("student", "Validate", ErrInvalidInput, "book slot must be 1 or 2")
	ErrInvalidRollNumber     = NewDomainError("student", "Validate", ErrInvalidInput, "roll number must be positive")
	ErrInvalidExchangeStatus = NewDomainError("student", "Validate", ErrInvalidInput, "invalid exchange status")
)

// Exchange domain errors
var (
	ErrRunInProgress     = NewDomainError("exchange", "AcquireRunLock", ErrConflict, "a matching run is already in progress")
	ErrTermUnavailable   = NewDomainError("exchange", "ResolveTerm", ErrServiceUnavailable, "current term could not be resolved")
	ErrNoSlotAvailable   = NewDomainError("exchange", "AllocateSlot", ErrNotFound, "no exchange slot with spare capacity")
	ErrCapacityExceeded  = NewDomainError("exchange", "Commit", ErrConcurrentModification, "exchange slot capacity exceeded")
	ErrStudentNotPending = NewDomainError("exchange", "Commit", ErrConcurrentModification, "student is no longer pending")
	ErrCommitFailed      = NewDomainError("exchange", "Commit", ErrInternal, "failed to commit matches")
	ErrInvalidPeriod     = NewDomainError("exchange", "Validate", ErrInvalidInput, "invalid exchange period")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if the error signals a conflicting concurrent operation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidInput)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrConcurrentModification)
}
