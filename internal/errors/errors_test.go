package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestWishError_Error(t *testing.T) {
	err := &WishError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "wish not found",
	}

	expected := "NOT_FOUND: wish not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *WishError
		code   ErrorCode
		status int
	}{
		{"invalid request", NewInvalidRequest("message is required"), ErrInvalidRequest, 400},
		{"too many images", NewTooManyImages(5), ErrTooManyImages, 400},
		{"not found", NewNotFound("abc"), ErrNotFound, 404},
		{"conflict", NewConflict("slug taken"), ErrConflict, 409},
		{"gone", NewGone("abc"), ErrGone, 410},
		{"too large", NewTooLarge(10, 20), ErrTooLarge, 413},
		{"rejected format", NewRejectedFormat("text/plain"), ErrRejectedFormat, 415},
		{"rate limited", NewRateLimited(10, 60), ErrRateLimited, 429},
		{"insufficient storage", NewInsufficientStorage(1, 2), ErrInsufficientStorage, 507},
		{"internal", NewInternal(fmt.Errorf("boom")), ErrInternal, 500},
		{"allocation exhausted", NewAllocationExhausted(3), ErrAllocationExhausted, 503},
		{"transient", NewTransient(fmt.Errorf("commit failed")), ErrTransient, 503},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.Status != tt.status {
				t.Errorf("Status = %d, want %d", tt.err.Status, tt.status)
			}
			if tt.err.Message == "" {
				t.Error("Message should not be empty")
			}
		})
	}
}

func TestNewRateLimited_Details(t *testing.T) {
	err := NewRateLimited(10, 3600)

	if err.Details["limit"] != 10 {
		t.Errorf("Details[limit] = %v, want 10", err.Details["limit"])
	}
	if err.Details["retry_after_seconds"] != int64(3600) {
		t.Errorf("Details[retry_after_seconds] = %v, want 3600", err.Details["retry_after_seconds"])
	}
}

func TestNewGone_HidesReason(t *testing.T) {
	err := NewGone("abcd2345")

	if _, ok := err.Details["reason"]; ok {
		t.Error("Gone must not expose the expiry reason")
	}
}

func TestNewInternal_NilError(t *testing.T) {
	err := NewInternal(nil)

	if err.Message != "internal error" {
		t.Errorf("Message = %q, want %q", err.Message, "internal error")
	}
}

func TestIs(t *testing.T) {
	err := NewNotFound("test")

	if !Is(err, ErrNotFound) {
		t.Error("Is(err, ErrNotFound) = false, want true")
	}
	if Is(err, ErrGone) {
		t.Error("Is(err, ErrGone) = true, want false")
	}
	if Is(fmt.Errorf("plain"), ErrNotFound) {
		t.Error("Is(plain error) = true, want false")
	}
	if Is(nil, ErrNotFound) {
		t.Error("Is(nil) = true, want false")
	}
}

func TestIs_Wrapped(t *testing.T) {
	err := fmt.Errorf("view: %w", NewGone("abc"))

	if !Is(err, ErrGone) {
		t.Error("Is should see through fmt.Errorf wrapping")
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("disk I/O error")
	err := NewTransient(cause)

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the cause through Unwrap")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(NewTransient(nil)) {
		t.Error("TRANSIENT should be retryable")
	}
	if !IsRetryable(NewAllocationExhausted(3)) {
		t.Error("ALLOCATION_EXHAUSTED should be retryable")
	}
	if IsRetryable(NewRateLimited(10, 1)) {
		t.Error("RATE_LIMITED should not be retryable unchanged")
	}
	if IsRetryable(NewGone("x")) {
		t.Error("GONE should not be retryable")
	}
}

func TestAs(t *testing.T) {
	wErr, ok := As(fmt.Errorf("wrap: %w", NewConflict("x")))
	if !ok {
		t.Fatal("As() ok = false, want true")
	}
	if wErr.Code != ErrConflict {
		t.Errorf("Code = %q, want %q", wErr.Code, ErrConflict)
	}

	if _, ok := As(fmt.Errorf("plain")); ok {
		t.Error("As(plain) ok = true, want false")
	}
}
