package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/grpc/codes"
)

func TestMakeCode(t *testing.T) {
	tests := []struct {
		service  int
		category int
		sequence int
		expected int
	}{
		{0, 0, 0, 0},
		{0, 1, 1, 1001},
		{0, 10, 1, 10001},
		{20, 1, 1, 2001001},
		{20, 10, 2, 2010002},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%d_%d", tt.service, tt.category, tt.sequence), func(t *testing.T) {
			got := MakeCode(tt.service, tt.category, tt.sequence)
			if got != tt.expected {
				t.Errorf("MakeCode(%d, %d, %d) = %d, want %d",
					tt.service, tt.category, tt.sequence, got, tt.expected)
			}
		})
	}
}

func TestParseCode(t *testing.T) {
	service, category, sequence := ParseCode(2010002)
	if service != 20 || category != 10 || sequence != 2 {
		t.Errorf("ParseCode(2010002) = (%d, %d, %d), want (20, 10, 2)", service, category, sequence)
	}
}

func TestClientServerErrorClassification(t *testing.T) {
	if !IsClientError(ErrInvalidQuery.Code) {
		t.Errorf("ErrInvalidQuery should be a client error")
	}
	if !IsServerError(ErrStoreUnavailable.Code) {
		t.Errorf("ErrStoreUnavailable should be a server error")
	}
	if IsClientError(ErrStoreUnavailable.Code) {
		t.Errorf("ErrStoreUnavailable should not be a client error")
	}
}

func TestErrnoError(t *testing.T) {
	e := ErrInvalidQuery
	want := fmt.Sprintf("errno %d: %s", e.Code, e.MessageEN)
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}

	cause := fmt.Errorf("connection reset")
	wrapped := ErrStoreUnavailable.WithCause(cause)
	if !errors.Is(wrapped, ErrStoreUnavailable) {
		t.Errorf("wrapped error should match ErrStoreUnavailable")
	}
	if errors.Unwrap(wrapped) != cause {
		t.Errorf("Unwrap should return the original cause")
	}
}

func TestWithMessage(t *testing.T) {
	e := ErrInvalidQuery.WithMessage("query text required")
	if e.MessageEN != "query text required" {
		t.Errorf("MessageEN = %q", e.MessageEN)
	}
	if e.Code != ErrInvalidQuery.Code {
		t.Errorf("WithMessage must not change the code")
	}
	// 原始错误不受影响
	if ErrInvalidQuery.MessageEN != "Query must not be empty" {
		t.Errorf("original errno mutated")
	}
}

func TestMessageLanguage(t *testing.T) {
	if got := ErrInvalidQuery.Message("zh"); got != "查询不能为空" {
		t.Errorf("Message(zh) = %q", got)
	}
	if got := ErrInvalidQuery.Message("en"); got != "Query must not be empty" {
		t.Errorf("Message(en) = %q", got)
	}
}

func TestHTTPAndGRPCStatus(t *testing.T) {
	if got := ErrStoreUnavailable.HTTPStatus(); got != http.StatusServiceUnavailable {
		t.Errorf("HTTPStatus = %d, want 503", got)
	}
	if got := ErrStoreUnavailable.GRPCStatus(); got != codes.Unavailable {
		t.Errorf("GRPCStatus = %v, want Unavailable", got)
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil) != nil {
		t.Errorf("FromError(nil) should be nil")
	}
	if e := FromError(ErrInvalidQuery); e != ErrInvalidQuery {
		t.Errorf("FromError should pass through Errno values")
	}
	plain := fmt.Errorf("boom")
	e := FromError(plain)
	if e.Code != ErrInternal.Code {
		t.Errorf("plain errors should map to ErrInternal, got %d", e.Code)
	}
}

func TestIsCodeAndGetCode(t *testing.T) {
	if !IsCode(ErrInvalidQuery, ErrInvalidQuery.Code) {
		t.Errorf("IsCode should match")
	}
	if GetCode(fmt.Errorf("plain")) != -1 {
		t.Errorf("GetCode of non-Errno should be -1")
	}
}

func TestLookup(t *testing.T) {
	e, ok := Lookup(ErrInvalidQuery.Code)
	if !ok || e != ErrInvalidQuery {
		t.Errorf("Lookup(%d) failed", ErrInvalidQuery.Code)
	}
	if _, ok := Lookup(9999999); ok {
		t.Errorf("Lookup of unregistered code should fail")
	}
}
