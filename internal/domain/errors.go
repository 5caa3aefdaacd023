// Package domain contains the task context model and its errors.
// Domain errors are infrastructure-agnostic and are mapped to HTTP by adapters.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates an input failed validation.
	ErrValidation = errors.New("validation failed")

	// ErrUnavailable indicates a required component is unavailable.
	ErrUnavailable = errors.New("unavailable")

	// ErrIllegalState indicates a caller broke a lifecycle contract.
	// It is a programming error and must not be retried.
	ErrIllegalState = errors.New("illegal state")
)

// NotFoundError provides context for not found errors.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s with id %q not found", e.Entity, e.ID)
	}

	return e.Entity + " not found"
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a not found error with context.
func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ValidationError provides context for validation errors.
type ValidationError struct {
	Field   string
	Message string
	Value   any
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}

	return "validation failed: " + e.Message
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a validation error with context.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NewValidationErrorWithValue creates a validation error including the invalid value.
func NewValidationErrorWithValue(field, message string, value any) error {
	return &ValidationError{Field: field, Message: message, Value: value}
}

// UnavailableError provides context for unavailable errors.
type UnavailableError struct {
	Service string
	Reason  string
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("service %q unavailable: %s", e.Service, e.Reason)
	}

	return fmt.Sprintf("service %q unavailable", e.Service)
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *UnavailableError) Unwrap() error {
	return ErrUnavailable
}

// NewUnavailableError creates an unavailable error with context.
func NewUnavailableError(service, reason string) error {
	return &UnavailableError{Service: service, Reason: reason}
}

// IllegalStateError reports an operation attempted in a state that forbids it.
type IllegalStateError struct {
	Operation string
	Reason    string
}

// Error implements the error interface.
func (e *IllegalStateError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("illegal state for %s: %s", e.Operation, e.Reason)
	}

	return "illegal state for " + e.Operation
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *IllegalStateError) Unwrap() error {
	return ErrIllegalState
}

// NewIllegalStateError creates an illegal state error with context.
func NewIllegalStateError(operation, reason string) error {
	return &IllegalStateError{Operation: operation, Reason: reason}
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsUnavailable checks if an error is an unavailable error.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsIllegalState checks if an error is an illegal state error.
func IsIllegalState(err error) bool {
	return errors.Is(err, ErrIllegalState)
}
