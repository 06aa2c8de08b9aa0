package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Wishaday error code.
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"      // 400
	ErrTooManyImages       ErrorCode = "TOO_MANY_IMAGES"      // 400
	ErrNotFound            ErrorCode = "NOT_FOUND"            // 404
	ErrConflict            ErrorCode = "CONFLICT"             // 409
	ErrGone                ErrorCode = "GONE"                 // 410
	ErrTooLarge            ErrorCode = "TOO_LARGE"            // 413
	ErrRejectedFormat      ErrorCode = "REJECTED_FORMAT"      // 415
	ErrRateLimited         ErrorCode = "RATE_LIMITED"         // 429
	ErrInsufficientStorage ErrorCode = "INSUFFICIENT_STORAGE" // 507
	ErrInternal            ErrorCode = "INTERNAL"             // 500
	ErrAllocationExhausted ErrorCode = "ALLOCATION_EXHAUSTED" // 503
	ErrTransient           ErrorCode = "TRANSIENT"            // 503
)

// WishError represents a structured error with code, status, and details.
type WishError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	// Err is the underlying cause, if any. Never exposed to callers.
	Err error
}

// Error implements the error interface.
func (e *WishError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *WishError) Unwrap() error {
	return e.Err
}

// NewInvalidRequest creates a 400 error for structurally invalid input.
func NewInvalidRequest(msg string) *WishError {
	return &WishError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewTooManyImages creates a 400 error when a wish already holds the maximum number of images.
func NewTooManyImages(max int) *WishError {
	return &WishError{
		Code:    ErrTooManyImages,
		Status:  400,
		Message: fmt.Sprintf("maximum %d images per wish", max),
		Details: map[string]any{"max_images": max},
	}
}

// NewNotFound creates a 404 error for a slug that never existed (or was reclaimed).
func NewNotFound(identifier string) *WishError {
	return &WishError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("wish not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *WishError {
	return &WishError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewGone creates a 410 error for a wish that existed but is no longer viewable.
// The expiry reason is deliberately not part of the error.
func NewGone(slug string) *WishError {
	return &WishError{
		Code:    ErrGone,
		Status:  410,
		Message: "wish has expired or already been viewed",
		Details: map[string]any{"slug": slug},
	}
}

// NewTooLarge creates a 413 error when an upload exceeds the size ceiling.
func NewTooLarge(max, actual int) *WishError {
	return &WishError{
		Code:    ErrTooLarge,
		Status:  413,
		Message: fmt.Sprintf("file too large: %d bytes (max %d)", actual, max),
		Details: map[string]any{"max_bytes": max, "actual_bytes": actual},
	}
}

// NewRejectedFormat creates a 415 error for an unsupported image format.
func NewRejectedFormat(contentType string) *WishError {
	return &WishError{
		Code:    ErrRejectedFormat,
		Status:  415,
		Message: fmt.Sprintf("unsupported image format: %s", contentType),
		Details: map[string]any{"content_type": contentType},
	}
}

// NewRateLimited creates a 429 error when an origin exceeds its creation quota.
func NewRateLimited(limit int, retryAfterSeconds int64) *WishError {
	return &WishError{
		Code:    ErrRateLimited,
		Status:  429,
		Message: fmt.Sprintf("creation limit reached: %d wishes per 24 hours", limit),
		Details: map[string]any{"limit": limit, "retry_after_seconds": retryAfterSeconds},
	}
}

// NewInsufficientStorage creates a 507 error when the upload volume lacks
// room for an image plus the configured free-space reserve.
func NewInsufficientStorage(freeBytes, neededBytes uint64) *WishError {
	return &WishError{
		Code:    ErrInsufficientStorage,
		Status:  507,
		Message: "insufficient storage space",
		Details: map[string]any{"free_bytes": freeBytes, "needed_bytes": neededBytes},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *WishError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &WishError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Err:     err,
	}
}

// NewAllocationExhausted creates a 503 error when no free slug was found
// within the retry budget. The whole request may be retried.
func NewAllocationExhausted(attempts int) *WishError {
	return &WishError{
		Code:    ErrAllocationExhausted,
		Status:  503,
		Message: fmt.Sprintf("unable to allocate a unique slug after %d attempts", attempts),
		Details: map[string]any{"attempts": attempts},
	}
}

// NewTransient creates a 503 error for a state transition that failed to commit.
// Nothing from the failed unit of work is visible; the caller may retry.
func NewTransient(err error) *WishError {
	return &WishError{
		Code:    ErrTransient,
		Status:  503,
		Message: "state change could not be committed; retry the request",
		Err:     err,
	}
}

// Is checks if an error is (or wraps) a WishError with the given code.
func Is(err error, code ErrorCode) bool {
	var wErr *WishError
	if stderrors.As(err, &wErr) {
		return wErr.Code == code
	}
	return false
}

// IsRetryable reports whether the caller may retry the whole request unchanged.
func IsRetryable(err error) bool {
	return Is(err, ErrTransient) || Is(err, ErrAllocationExhausted)
}

// As extracts a *WishError from err.
func As(err error) (*WishError, bool) {
	var wErr *WishError
	ok := stderrors.As(err, &wErr)
	return wErr, ok
}
