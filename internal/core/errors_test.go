package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"timeout", ErrTimeout("generator timed out"), true},
		{"connection", ErrConnection("refused"), true},
		{"empty response", ErrEmptyResponse("no content"), true},
		{"malformed", ErrMalformed("no parseable structure"), true},
		{"validation", ErrValidationFailed("missing field"), false},
		{"config", ErrConfig(CodeInvalidConfig, "bad concurrency"), false},
		{"input", ErrInput("dataset unreadable"), false},
		{"plain error", errors.New("boom"), false},
		{"wrapped transient", fmt.Errorf("call failed: %w", ErrTimeout("t")), true},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetCategory(t *testing.T) {
	if got := GetCategory(ErrMalformed("x")); got != ErrCatMalformed {
		t.Errorf("GetCategory() = %q, want %q", got, ErrCatMalformed)
	}
	if got := GetCategory(errors.New("plain")); got != ErrCatInternal {
		t.Errorf("GetCategory(plain) = %q, want %q", got, ErrCatInternal)
	}
}

func TestDomainError_Is(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", ErrState(CodeStateCorrupted, "checksum mismatch"))
	if !errors.Is(err, ErrState(CodeStateCorrupted, "")) {
		t.Error("errors.Is should match on category and code")
	}
	if errors.Is(err, ErrState(CodeSnapshotNotFound, "")) {
		t.Error("errors.Is should not match a different code")
	}
}
