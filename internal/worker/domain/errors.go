package domain

import "errors"

var (
	// ErrTaskAlreadyDelivered is returned when a redelivered task was already sent
	ErrTaskAlreadyDelivered = errors.New("task already delivered")

	// ErrInvalidPayload is returned when task JSON is malformed
	ErrInvalidPayload = errors.New("invalid task payload")

	// ErrMaxRetriesExceeded is returned when a task has exceeded its retry limit
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// ErrNoProvider is returned when no provider is configured for a channel
	ErrNoProvider = errors.New("no provider for channel")
)

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
