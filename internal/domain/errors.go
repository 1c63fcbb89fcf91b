package domain

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindInvalidArgument
	KindPermissionDenied
	KindFailedPrecondition
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindPermissionDenied:
		return "permission_denied"
	case KindFailedPrecondition:
		return "failed_precondition"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is the only error type the services hand back to callers. Reason is
// always specific enough to show to the user.
type Error struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

func InvalidArgument(format string, args ...interface{}) error {
	return newError(KindInvalidArgument, format, args...)
}

func PermissionDenied(format string, args ...interface{}) error {
	return newError(KindPermissionDenied, format, args...)
}

func FailedPrecondition(format string, args ...interface{}) error {
	return newError(KindFailedPrecondition, format, args...)
}

func NotFound(format string, args ...interface{}) error {
	return newError(KindNotFound, format, args...)
}

func Internal(reason string, err error) error {
	return &Error{Kind: KindInternal, Reason: reason, Err: err}
}

// ErrRecordNotFound is returned by repositories for a missing row.
var ErrRecordNotFound = errors.New("record not found")

// KindOf returns the kind of the first domain error in err's chain. Anything
// else is internal.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

func ReasonOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason
	}
	return "internal error"
}

// AsDomainError leaves domain errors alone and wraps everything else as an
// internal storage failure.
func AsDomainError(err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return Internal("storage failure", err)
}
