package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is matched by every NotFoundError
	ErrNotFound = errors.New("not found")

	// ErrConflict is matched by every ConflictError
	ErrConflict = errors.New("conflict")

	// ErrTooLateToCancel is matched by every TooLateToCancelError
	ErrTooLateToCancel = errors.New("too late to cancel")

	// ErrValidation is matched by every ValidationError
	ErrValidation = errors.New("validation failed")
)

// NotFoundError is returned when a referenced entity does not exist
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

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(entity string, id any) error {
	return &NotFoundError{Entity: entity, ID: fmt.Sprint(id)}
}

// ConflictError is returned when a translator is already booked at the job's time
type ConflictError struct {
	JobID        int64
	TranslatorID int64
	Due          time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("translator %d already has a booking overlapping %s (job %d)",
		e.TranslatorID, e.Due.Format(time.DateTime), e.JobID)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// TooLateToCancelError is returned when a translator cancels inside the support-only window
type TooLateToCancelError struct {
	JobID  int64
	Window time.Duration
}

func (e *TooLateToCancelError) Error() string {
	return fmt.Sprintf("job %d starts within %s and must be cancelled through support", e.JobID, e.Window)
}

func (e *TooLateToCancelError) Is(target error) bool {
	return target == ErrTooLateToCancel
}

// ValidationError wraps malformed input
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
