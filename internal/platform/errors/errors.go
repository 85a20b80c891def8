// Package errors is the coded error type shared by every layer; import it as perr
package errors

import (
	stderrs "errors"
	"fmt"
)

// ErrorCode classifies failures across the feed, mirror and renderer boundaries.
// Values show up in log fields, so append rather than reorder
type ErrorCode uint16

const (
	ErrorCodeUnknown ErrorCode = iota
	// backend down or timed out; the next cycle may succeed
	ErrorCodeUnavailable
	// feed rate limit hit
	ErrorCodeTooManyRequests
	// feed rejected the credentials
	ErrorCodeUnauthorized
	ErrorCodeInvalidArgument
	// options failed validation at startup
	ErrorCodeValidation
	// feed body did not decode
	ErrorCodeJSON
	ErrorCodeNotFound
	// clone or pull failed; the key cannot be shown
	ErrorCodeRepoGone
	// renderer process did not start
	ErrorCodeSpawn
	ErrorCodeDB
)

var codeLabels = [...]string{
	ErrorCodeUnknown:         "unknown",
	ErrorCodeUnavailable:     "unavailable",
	ErrorCodeTooManyRequests: "too_many_requests",
	ErrorCodeUnauthorized:    "unauthorized",
	ErrorCodeInvalidArgument: "invalid_argument",
	ErrorCodeValidation:      "validation",
	ErrorCodeJSON:            "json",
	ErrorCodeNotFound:        "not_found",
	ErrorCodeRepoGone:        "repo_gone",
	ErrorCodeSpawn:           "spawn",
	ErrorCodeDB:              "db",
}

// String returns the log label for c
func (c ErrorCode) String() string {
	if int(c) < len(codeLabels) {
		return codeLabels[c]
	}
	return "unknown"
}

// Transient reports whether a failure with code c is worth retrying on the next cycle
func Transient(c ErrorCode) bool {
	switch c {
	case ErrorCodeUnavailable, ErrorCodeTooManyRequests, ErrorCodeDB:
		return true
	default:
		return false
	}
}

// Error carries a code next to the message and the wrapped cause.
// field is set for configuration validation failures
type Error struct {
	orig  error
	msg   string
	code  ErrorCode
	field string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.orig)
	}
	return e.msg
}

// Unwrap returns the cause
func (e *Error) Unwrap() error { return e.orig }

// Code returns the error code
func (e *Error) Code() ErrorCode { return e.code }

// Field returns the offending option, if any
func (e *Error) Field() string { return e.field }

// As finds the first *Error in err's chain
func As(err error) (*Error, bool) {
	var e *Error
	if stderrs.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf is the code of the first *Error in err's chain, Unknown when there is none
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.code
	}
	return ErrorCodeUnknown
}

// IsCode reports whether err carries code
func IsCode(err error, code ErrorCode) bool { return CodeOf(err) == code }

// WithField returns a copy of err naming the offending option. Foreign errors pass through
func WithField(err error, field string) error {
	if e, ok := As(err); ok {
		c := *e
		c.field = field
		return &c
	}
	return err
}

// New returns an *Error with code and msg
func New(code ErrorCode, msg string) error { return &Error{code: code, msg: msg} }

// Newf is New with formatting
func Newf(code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...)}
}

// Wrap attaches code and msg to orig
func Wrap(orig error, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, orig: orig}
}

// Wrapf is Wrap with formatting
func Wrapf(orig error, code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...), orig: orig}
}

// Shorthands for the codes built most often

func NotFoundf(format string, a ...any) error { return Newf(ErrorCodeNotFound, format, a...) }

func InvalidArgf(format string, a ...any) error { return Newf(ErrorCodeInvalidArgument, format, a...) }

func Unauthorizedf(format string, a ...any) error { return Newf(ErrorCodeUnauthorized, format, a...) }

func Unavailablef(format string, a ...any) error { return Newf(ErrorCodeUnavailable, format, a...) }

func RepoGonef(format string, a ...any) error { return Newf(ErrorCodeRepoGone, format, a...) }
