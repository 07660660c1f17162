package engine

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by every *NotFoundError via errors.Is.
var ErrNotFound = errors.New("not found")

// ValidationError rejects input before any write happens.
type ValidationError struct {
	// Field names the offending input.
	Field string

	// Code is a stable machine-readable category.
	Code string

	// Message is a human-readable description.
	Message string
}

const (
	CodeInvalidRule      = "INVALID_RRULE"
	CodeInvalidDate      = "INVALID_DATE"
	CodeInvalidDateRange = "INVALID_DATE_RANGE"
	CodeInvalidTime      = "INVALID_TIME_FORMAT"
	CodeInvalidValue     = "INVALID_VALUE"
	CodeUntilMismatch    = "UNTIL_END_DATE_MISMATCH"
	CodeRequired         = "REQUIRED"
	CodeSeedDateMismatch = "SEED_DATE_MISMATCH"
	CodeNotStopped       = "NOT_STOPPED"
)

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (%s)", e.Field, e.Message, e.Code)
}

func invalid(field, code, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing rule, template or instance.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// IsValidation reports whether err wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err wraps a *NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
