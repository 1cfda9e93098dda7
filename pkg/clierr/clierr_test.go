package clierr

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_MessageAndUnwrap(t *testing.T) {
	root := errors.New("refresh token rejected")
	err := New(Auth, "please log in again", root)

	if err.Error() != "please log in again" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, root) {
		t.Error("errors.Is should find the underlying error")
	}
	if New(Validation, "x", nil).Unwrap() != nil {
		t.Error("Unwrap() with nil underlying should be nil")
	}
}

func TestError_ErrorsAs(t *testing.T) {
	wrapped := fmt.Errorf("command failed: %w", New(Retry, "try again", nil))

	var target *Error
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As should find the CLI error")
	}
	if target.Type != Retry {
		t.Errorf("Type = %v, want %v", target.Type, Retry)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain error", errors.New("boom"), 1},
		{"validation", New(Validation, "bad flag", nil), 2},
		{"auth", New(Auth, "log in", nil), 3},
		{"retry", fmt.Errorf("wrapped: %w", New(Retry, "later", nil)), 4},
		{"not found", New(NotFound, "missing", nil), 5},
		{"internal", New(Internal, "bug", nil), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
