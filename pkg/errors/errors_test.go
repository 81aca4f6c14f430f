package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	cases := []struct {
		code   Code
		status int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeStateConflict, http.StatusUnprocessableEntity},
		{CodeDuplicateReference, http.StatusConflict},
		{CodeQuotaExceeded, http.StatusForbidden},
		{CodeRetriesExhausted, http.StatusServiceUnavailable},
		{CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := MetadataFor(tc.code).HTTPStatus; got != tc.status {
			t.Fatalf("code %s: expected status %d, got %d", tc.code, tc.status, got)
		}
	}
}

func TestMetadataForUnknownCodeFallsBackToInternal(t *testing.T) {
	meta := MetadataFor(Code("BOGUS"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("connection reset")
	err := Wrap(CodeDependency, cause, "load intent")

	if !stdErrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable via errors.Is")
	}
	if err.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", err.Code())
	}
}

func TestAsUnwrapsThroughFmtErrorf(t *testing.T) {
	inner := New(CodeQuotaExceeded, "quota exceeded").WithDetails(map[string]int64{"limit": 10})
	outer := fmt.Errorf("reserve: %w", inner)

	typed := As(outer)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	if typed.Code() != CodeQuotaExceeded {
		t.Fatalf("unexpected code %s", typed.Code())
	}
	if typed.Details() == nil {
		t.Fatal("expected details to survive unwrapping")
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(New(CodeDuplicateReference, "ref used")) {
		t.Fatal("duplicate reference must not be retryable")
	}
	if Retryable(New(CodeStateConflict, "already terminal")) {
		t.Fatal("state conflict must not be retryable")
	}
	if !Retryable(New(CodeDependency, "db down")) {
		t.Fatal("dependency errors are retryable")
	}
	if !Retryable(Wrap(CodeInternal, stdErrors.New("boom"), "oops")) {
		t.Fatal("internal errors are retryable")
	}
	if Retryable(stdErrors.New("untyped")) {
		t.Fatal("untyped errors are not retryable")
	}
}

func TestNilErrorAccessors(t *testing.T) {
	var e *Error
	if e.Code() != CodeInternal {
		t.Fatalf("nil error code should default to internal, got %s", e.Code())
	}
	if e.Error() != "" || e.Message() != "" {
		t.Fatal("nil error should render empty strings")
	}
}
