package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestErrorFormat(t *testing.T) {
	err := New(ErrCodeLockConflict, "version mismatch")

	msg := err.Error()
	if !strings.Contains(msg, "[LOCK-001]") {
		t.Errorf("expected error code in message, got %q", msg)
	}
	if !strings.Contains(msg, "version mismatch") {
		t.Errorf("expected message text, got %q", msg)
	}
}

func TestErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(ErrCodePartialWrite, "swap failed", cause)

	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("expected cause in message, got %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}

func TestErrorWithSuggestions(t *testing.T) {
	err := New(ErrCodePlanInvalid, "bad plan").
		WithSuggestion("first").
		WithSuggestions("second", "third")

	if len(err.Suggestions) != 3 {
		t.Fatalf("expected 3 suggestions, got %d", len(err.Suggestions))
	}
	if !strings.Contains(err.Error(), "Suggestions:") {
		t.Errorf("expected suggestions section, got %q", err.Error())
	}
}

func TestCodeOf(t *testing.T) {
	err := NewLockConflictError("plan.yaml", 3, 4)
	wrapped := fmt.Errorf("save plan: %w", err)

	if code := CodeOf(wrapped); code != ErrCodeLockConflict {
		t.Errorf("expected LOCK-001 through wrap, got %s", code)
	}
	if code := CodeOf(errors.New("plain")); code != "" {
		t.Errorf("expected empty code for plain error, got %s", code)
	}
}

func TestClassifiers(t *testing.T) {
	tests := []struct {
		name string
		err  error
		fn   func(error) bool
		want bool
	}{
		{"lock conflict", NewLockConflictError("p.yaml", 1, 2), IsLockConflict, true},
		{"stale digest is lock class", NewStaleDigestError("p.yaml"), IsLockConflict, true},
		{"timeout", NewExecTimeoutError("a", 5*time.Second), IsTimeout, true},
		{"cycle is validation", NewCyclicDependencyError([]string{"a", "b", "a"}), IsValidation, true},
		{"timeout is not validation", NewExecTimeoutError("a", time.Second), IsValidation, false},
		{"plain error", errors.New("nope"), IsLockConflict, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.err); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCyclicDependencyErrorReportsCycle(t *testing.T) {
	err := NewCyclicDependencyError([]string{"a", "b", "c", "a"})
	if !strings.Contains(err.Error(), "a -> b -> c -> a") {
		t.Errorf("expected ordered cycle in message, got %q", err.Error())
	}
}
