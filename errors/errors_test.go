package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_New_Success(t *testing.T) {
	err := New(ErrCodeNotFound, "not found", http.StatusNotFound)
	if err.Code != ErrCodeNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeNotFound, err.Code)
	}
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, err.HTTPStatus)
	}
	if err.Retryable {
		t.Error("NOT_FOUND should not be retryable")
	}
}

func TestAppError_New_Retryable(t *testing.T) {
	err := New(ErrCodeUpstreamFailure, "store down", http.StatusBadGateway)
	if !err.Retryable {
		t.Error("UPSTREAM_FAILURE should be retryable")
	}
}

func TestAppError_NotFound_Success(t *testing.T) {
	err := NotFound("user", "Carol")
	if err.Code != ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %s", err.Code)
	}
	if err.Details["resource"] != "user" || err.Details["id"] != "Carol" {
		t.Errorf("unexpected details %v", err.Details)
	}
}

func TestAppError_NotFound_EmptyID(t *testing.T) {
	err := NotFound("user", "")
	if _, ok := err.Details["id"]; ok {
		t.Error("expected no 'id' key in details when id is empty")
	}
}

func TestAppError_Constructors_Table(t *testing.T) {
	cause := fmt.Errorf("boom")
	tests := []struct {
		name      string
		err       *AppError
		code      ErrorCode
		status    int
		retryable bool
	}{
		{"UpstreamFailure", UpstreamFailure("users", cause), ErrCodeUpstreamFailure, http.StatusBadGateway, true},
		{"HandlerFailure", HandlerFailure("hello", cause), ErrCodeHandlerFailure, http.StatusInternalServerError, false},
		{"Cancelled", Cancelled(cause), ErrCodeCancelled, 499, false},
		{"Timeout", Timeout("op"), ErrCodeTimeout, http.StatusGatewayTimeout, true},
		{"ServiceUnavailable", ServiceUnavailable("bus"), ErrCodeServiceUnavailable, http.StatusServiceUnavailable, true},
		{"AlreadyExists", AlreadyExists("user"), ErrCodeAlreadyExists, http.StatusConflict, false},
		{"InvalidInput", InvalidInput("name", "empty"), ErrCodeInvalidInput, http.StatusBadRequest, false},
		{"Internal", Internal(cause), ErrCodeInternal, http.StatusInternalServerError, false},
		{"DatabaseError", DatabaseError(cause), ErrCodeDatabaseError, http.StatusInternalServerError, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("code = %s, want %s", tt.err.Code, tt.code)
			}
			if tt.err.HTTPStatus != tt.status {
				t.Errorf("status = %d, want %d", tt.err.HTTPStatus, tt.status)
			}
			if tt.err.Retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", tt.err.Retryable, tt.retryable)
			}
		})
	}
}

func TestAppError_UpstreamFailure_Unwraps(t *testing.T) {
	cause := fmt.Errorf("disk gone")
	err := UpstreamFailure("orders", cause)
	if !stderrors.Is(err, cause) {
		t.Error("expected cause in chain")
	}
	if !strings.Contains(err.Error(), "disk gone") {
		t.Errorf("Error() should mention the cause: %s", err.Error())
	}
	if err.Details["source"] != "orders" {
		t.Errorf("expected source=orders, got %v", err.Details["source"])
	}
}

func TestAppError_WithDetail_NilMap(t *testing.T) {
	err := &AppError{Code: ErrCodeInternal}
	err.WithDetail("key", "val")
	if err.Details["key"] != "val" {
		t.Errorf("expected key=val, got %v", err.Details["key"])
	}
}

func TestAppError_Error_Format(t *testing.T) {
	err := New(ErrCodeNotFound, "missing", http.StatusNotFound)
	if err.Error() != "NOT_FOUND: missing" {
		t.Errorf("unexpected format: %s", err.Error())
	}
}

func TestErrorCode_IsRetryableCode_Table(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want bool
	}{
		{ErrCodeUpstreamFailure, true},
		{ErrCodeDatabaseError, true},
		{ErrCodeHandlerFailure, false},
		{ErrCodeCancelled, false},
		{ErrCodeNotFound, false},
		{ErrorCode("UNKNOWN"), false},
	}
	for _, tt := range tests {
		if got := IsRetryableCode(tt.code); got != tt.want {
			t.Errorf("IsRetryableCode(%s) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestAppError_ToResponse_Success(t *testing.T) {
	resp := NotFound("user", "Carol").ToResponse()
	if resp.Error.Code != ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %s", resp.Error.Code)
	}
	if resp.Error.Details["id"] != "Carol" {
		t.Errorf("expected id in details, got %v", resp.Error.Details)
	}
}

func TestAsAppError_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Internal(nil))
	got, ok := AsAppError(wrapped)
	if !ok || got.Code != ErrCodeInternal {
		t.Fatalf("expected wrapped INTERNAL_ERROR, got %v %v", got, ok)
	}
	if _, ok := AsAppError(fmt.Errorf("plain")); ok {
		t.Error("expected AsAppError to return false for non-AppError")
	}
	if !IsAppError(wrapped) {
		t.Error("IsAppError should see through wrapping")
	}
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NotFound("user", "x"))
	if !IsCode(err, ErrCodeNotFound) {
		t.Error("expected NOT_FOUND")
	}
	if IsCode(err, ErrCodeInternal) {
		t.Error("unexpected INTERNAL_ERROR")
	}
}

func TestFromContext(t *testing.T) {
	if got := FromContext(context.Canceled); got == nil || got.Code != ErrCodeCancelled {
		t.Errorf("Canceled -> %v, want CANCELLED", got)
	}
	if got := FromContext(fmt.Errorf("wait: %w", context.DeadlineExceeded)); got == nil || got.Code != ErrCodeTimeout {
		t.Errorf("DeadlineExceeded -> %v, want TIMEOUT", got)
	}
	if got := FromContext(fmt.Errorf("other")); got != nil {
		t.Errorf("plain error -> %v, want nil", got)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil) != nil {
		t.Error("Wrap(nil) should return nil")
	}

	orig := NotFound("item", "1")
	if Wrap(orig) != orig {
		t.Error("Wrap should return the original AppError unchanged")
	}
	if got := Wrap(fmt.Errorf("outer: %w", orig)); got.Code != ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %s", got.Code)
	}
	if got := Wrap(context.Canceled); got.Code != ErrCodeCancelled {
		t.Errorf("expected CANCELLED, got %s", got.Code)
	}

	plain := fmt.Errorf("something broke")
	got := Wrap(plain)
	if got.Code != ErrCodeInternal || got.Cause != plain {
		t.Errorf("expected INTERNAL_ERROR wrapping the cause, got %v", got)
	}
}
