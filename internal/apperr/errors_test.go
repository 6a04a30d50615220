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
		{name: "validation", err: Validation("code", "missing"), want: KindValidation},
		{name: "authentication", err: Authentication("bad token"), want: KindAuthentication},
		{name: "authorization", err: Authorization("not yours"), want: KindAuthorization},
		{name: "not found", err: NotFound("nope"), want: KindNotFound},
		{name: "conflict", err: Conflict("duplicate"), want: KindConflict},
		{name: "state conflict", err: StateConflict("not open"), want: KindStateConflict},
		{name: "biometric", err: BiometricReject(2, "two faces"), want: KindBiometricReject},
		{name: "unexpected", err: Unexpected(errors.New("boom")), want: KindUnexpected},
		{name: "unclassified", err: errors.New("raw"), want: KindUnexpected},
		{name: "wrapped", err: fmt.Errorf("context: %w", StateConflict("not open")), want: KindStateConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBiometricRejectCarriesCount(t *testing.T) {
	err := BiometricReject(3, "sorry 3 faces were detected")
	var e *Error
	if !errors.As(err, &e) {
		t.Fatal("expected *Error")
	}
	if e.FaceCount != 3 {
		t.Errorf("FaceCount = %d, want 3", e.FaceCount)
	}
}

func TestUnexpectedWrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Unexpected(cause)
	if !errors.Is(err, cause) {
		t.Error("Unexpected() should wrap its cause")
	}
}
