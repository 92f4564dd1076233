// Package ublerrors defines the stable error taxonomy used across every
// UBL Gate package: a small Kind enum plus a wrapper that carries it
// alongside the usual wrapped-error chain, mirroring how the teacher
// repo's pkg/contracts types carry a stable Verdict/Reason pair.
package ublerrors

import (
	"errors"
	"fmt"
)

// Kind is one of the top-level error categories named in spec.md §6.8/§7.
// Kinds are deliberately coarse: callers branch on Kind, not on message
// text.
type Kind string

const (
	KindValidation  Kind = "VALIDATION"
	KindIntegrity   Kind = "INTEGRITY"
	KindPolicy      Kind = "POLICY"
	KindResource    Kind = "RESOURCE"
	KindIdempotency Kind = "IDEMPOTENCY"
	KindAuth        Kind = "AUTH"
	KindInternal    Kind = "INTERNAL"
)

// Error wraps an underlying error with a stable Kind and a dotted Code
// (e.g. "BIND.AMBIGUOUS", "POLICY.EVAL_ERROR") drawn from spec.md's
// per-module error tables.
type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s.%s", e.Kind, e.Code)
	}
	return fmt.Sprintf("%s.%s: %v", e.Kind, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a Kind/Code error, optionally wrapping a cause.
func New(kind Kind, code string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Err: cause}
}

// Wrap is shorthand for New with a formatted cause.
func Wrap(kind Kind, code string, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Err: fmt.Errorf(format, args...)}
}

// As reports whether err carries a *Error and, if so, returns it.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it (or something it wraps) is an
// *Error, and KindInternal otherwise — internal errors are the safe
// fail-closed default for anything the taxonomy doesn't explicitly name.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
