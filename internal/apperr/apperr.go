// Package apperr defines the error classes shared by the ingest gateway,
// the job pipeline and the search engine. Handlers and HTTP mappers branch
// on the class, never on error strings.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindConflict marks a duplicate write (same checksum for the same
	// owner/library). Not a failure: the caller gets the existing entity.
	KindConflict Kind = iota + 1
	// KindNotFound marks a missing asset/person/face.
	KindNotFound
	// KindValidation marks a malformed payload or a vector width mismatch.
	// Never retried, never persisted.
	KindValidation
	// KindTransient marks a failure expected to succeed on retry
	// (inference service unreachable, DB deadlock/timeout).
	KindTransient
	// KindInvariant marks a broken internal invariant, e.g. a dimension
	// mismatch outside the declared migration path. Aborts the operation.
	KindInvariant
)

func (k Kind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindTransient:
		return "transient"
	case KindInvariant:
		return "invariant"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of err, or 0 if err carries no kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func IsConflict(err error) bool   { return KindOf(err) == KindConflict }
func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }
func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsTransient(err error) bool  { return KindOf(err) == KindTransient }
func IsInvariant(err error) bool  { return KindOf(err) == KindInvariant }

// Retryable reports whether the orchestrator should redeliver a job that
// failed with err. Validation and invariant failures are terminal on the
// first attempt; everything else is assumed transient.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindInvariant, KindNotFound:
		return false
	default:
		return true
	}
}
