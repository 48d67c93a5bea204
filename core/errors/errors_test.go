package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorMatchesOnlyItsKind(t *testing.T) {
	errMissing := New(ErrState, "thing: not found")
	wrapped := fmt.Errorf("load: %w", errMissing)

	if !stderrors.Is(wrapped, errMissing) {
		t.Fatalf("expected wrapped error to match sentinel")
	}
	if !stderrors.Is(wrapped, ErrState) {
		t.Fatalf("expected wrapped error to match its kind")
	}
	if stderrors.Is(wrapped, ErrValidation) {
		t.Fatalf("unexpected match against a foreign kind")
	}
	if got := KindOf(wrapped); got != ErrState {
		t.Fatalf("KindOf = %v, want %v", got, ErrState)
	}
}

func TestKindOfPrefersAtomicity(t *testing.T) {
	cause := New(ErrValidation, "thing: insufficient balance")
	joined := stderrors.Join(ErrAtomicity, cause)
	if got := KindOf(joined); got != ErrAtomicity {
		t.Fatalf("KindOf = %v, want atomicity", got)
	}
}

func TestKindName(t *testing.T) {
	cases := map[string]error{
		"ok":            nil,
		"internal":      stderrors.New("boom"),
		"validation":    New(ErrValidation, "v"),
		"authorization": New(ErrAuthorization, "a"),
		"state":         New(ErrState, "s"),
		"atomicity":     fmt.Errorf("wrap: %w", ErrAtomicity),
	}
	for want, err := range cases {
		if got := KindName(err); got != want {
			t.Fatalf("KindName(%v) = %q, want %q", err, got, want)
		}
	}
}
