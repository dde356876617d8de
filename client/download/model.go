package download

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidMode           = errors.New("invalid open mode")
	ErrWrite                 = errors.New("writing body")
	ErrRead                  = errors.New("reading body")
	ErrContentLengthMismatch = errors.New("content length mismatch")
	ErrDownloadCancelled     = errors.New("download cancelled")
)

// Error pairs one of the package sentinels with detail and, when one
// exists, the underlying cause.
type Error struct {
	Detail string
	Err    error
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%v: %s: %v", e.Err, e.Detail, e.Cause)
	}

	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}

	return []error{e.Err, e.Cause}
}
