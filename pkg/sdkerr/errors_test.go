package sdkerr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorIs(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "code matches sentinel",
			err:    Validation(CodeInvalidLength, "length", "length must be between 4 and 255"),
			target: ErrInvalidLength,
			want:   true,
		},
		{
			name:   "validation matches generic sentinel",
			err:    Validation(CodeNegativeMinimum, "minLowercase", "must not be negative"),
			target: ErrValidation,
			want:   true,
		},
		{
			name:   "different code",
			err:    Validation(CodeNegativeMinimum, "minLowercase", "must not be negative"),
			target: ErrInvalidLength,
			want:   false,
		},
		{
			name:   "remote",
			err:    Remote("Secret not found"),
			target: ErrRemoteOperationFailed,
			want:   true,
		},
		{
			name:   "remote is not transport",
			err:    Remote("Secret not found"),
			target: ErrTransport,
			want:   false,
		},
		{
			name:   "wrapped transport",
			err:    fmt.Errorf("listing: %w", Transport("engine call failed", context.DeadlineExceeded)),
			target: ErrTransport,
			want:   true,
		},
		{
			name:   "cause reachable",
			err:    Transport("engine call failed", context.DeadlineExceeded),
			target: context.DeadlineExceeded,
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRemoteMessageVerbatim(t *testing.T) {
	msg := "Access token is not in a valid format: Doesn't contain a decryption key"
	err := Remote(msg)
	if err.Error() != msg {
		t.Errorf("Error() = %q, want %q", err.Error(), msg)
	}
}

func TestKindHelpers(t *testing.T) {
	if !IsValidation(ErrMinimumsExceedLength) {
		t.Error("expected validation")
	}
	if !IsRemote(Remote("x")) {
		t.Error("expected remote")
	}
	if !IsTransport(Transport("x", nil)) {
		t.Error("expected transport")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("expected empty kind for plain error")
	}
}
