package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "forbidden", err: Forbidden("no"), want: KindForbidden},
		{name: "wrapped not found", err: fmt.Errorf("loading: %w", NotFound("family", 3)), want: KindNotFound},
		{name: "conflict", err: &ConflictError{ServerVersion: "2025-01-01T00:00:00.000Z"}, want: KindEditConflict},
		{name: "plain error", err: errors.New("boom"), want: KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessageHidesInternalCause(t *testing.T) {
	err := Internal("failed to update family", errors.New("database is locked"))
	if got := Message(err); got != "internal server error" {
		t.Errorf("Message() = %q", got)
	}
	if got := Message(NotFound("visit", 9)); got != "visit 9 not found" {
		t.Errorf("Message() = %q", got)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("cause")
	err := Wrap(KindBadRequest, "bad", cause)
	if !errors.Is(err, cause) {
		t.Error("expected wrapped cause to be reachable")
	}
}
