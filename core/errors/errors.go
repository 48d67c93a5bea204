// Package errors defines the error kinds shared by the ledger modules. Every
// domain sentinel is bound to exactly one kind so callers can classify any
// returned error with the standard errors.Is.
package errors

import stderrors "errors"

// Error kinds.
var (
	// ErrValidation covers malformed or precondition-violating input.
	ErrValidation = stderrors.New("validation error")
	// ErrAuthorization covers callers that are not the recorded seller, holder
	// or admin, and release proofs that do not match a vault.
	ErrAuthorization = stderrors.New("authorization error")
	// ErrState covers lookups of missing records and illegal lifecycle
	// transitions.
	ErrState = stderrors.New("state error")
	// ErrAtomicity marks a multi-leg operation that failed while applying a
	// leg and was rolled back as a whole.
	ErrAtomicity = stderrors.New("atomicity failure")
)

// Error is a sentinel error bound to a kind.
type Error struct {
	kind error
	msg  string
}

// New returns a sentinel carrying msg and classified as kind.
func New(kind error, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

// Is reports whether target is the kind this error is bound to.
func (e *Error) Is(target error) bool {
	return target == e.kind
}

// Kind returns the kind the error is bound to.
func (e *Error) Kind() error { return e.kind }

// KindOf returns the kind of err, or nil when err carries none. Atomicity is
// checked first because an aborted swap also wraps the failing leg's cause.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{ErrAtomicity, ErrAuthorization, ErrState, ErrValidation} {
		if stderrors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// KindName returns a short label for the kind of err, suitable for metric
// labels and log attributes.
func KindName(err error) string {
	switch KindOf(err) {
	case nil:
		if err == nil {
			return "ok"
		}
		return "internal"
	case ErrValidation:
		return "validation"
	case ErrAuthorization:
		return "authorization"
	case ErrState:
		return "state"
	case ErrAtomicity:
		return "atomicity"
	default:
		return "internal"
	}
}
