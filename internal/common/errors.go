package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")

	// ErrCaptureUnavailable signals no camera or missing permission.
	ErrCaptureUnavailable = errors.New("capture unavailable")
	// ErrCaptureFailed signals a snapshot that could not be taken.
	ErrCaptureFailed = errors.New("capture failed")
	// ErrNoBackend is terminal: no extraction backend is usable.
	ErrNoBackend = errors.New("no extraction backend available")
	// ErrExtractionFailed is retryable when caused by network/5xx, terminal otherwise.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrStorageCorrupt marks malformed persisted state; callers reset to empty.
	ErrStorageCorrupt = errors.New("storage corrupt")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
