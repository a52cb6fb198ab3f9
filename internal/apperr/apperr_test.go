package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(KindNotFound, "asset missing"))

	if KindOf(err) != KindNotFound {
		t.Errorf("expected kind to survive wrapping, got %v", KindOf(err))
	}
}

func TestKindOf_PlainError(t *testing.T) {
	if KindOf(errors.New("plain")) != 0 {
		t.Error("expected zero kind for an unclassified error")
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"transient", New(KindTransient, "db timeout"), true},
		{"conflict", New(KindConflict, "duplicate"), true},
		{"unclassified", errors.New("boom"), true},
		{"validation", New(KindValidation, "bad payload"), false},
		{"invariant", New(KindInvariant, "width mismatch"), false},
		{"not found", New(KindNotFound, "gone"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Retryable(tc.err); got != tc.want {
				t.Errorf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindTransient, cause, "inference service unreachable")

	if !errors.Is(err, cause) {
		t.Error("expected wrapped cause to be reachable via errors.Is")
	}
	if !IsTransient(err) {
		t.Error("expected transient kind")
	}
}
