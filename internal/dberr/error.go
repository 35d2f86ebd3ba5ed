// Package dberr defines the error taxonomy shared by every evlog component —
// logstore, logger, scanner, publisher, the wire protocol and the TCP server.
// Every fallible operation in this module returns (or wraps) an *Error so
// callers can switch on Kind without string-matching messages.
package dberr

import "fmt"

// Kind classifies an Error the way the original exar-core::DatabaseError did.
type Kind int

const (
	Internal Kind = iota
	Authentication
	Connection
	EventStreamEmpty
	EventStreamClosed
	IO
	Parse
	MissingField
	Subscription
	Validation
)

func (k Kind) String() string {
	switch k {
	case Authentication:
		return "authentication_error"
	case Connection:
		return "connection_error"
	case EventStreamEmpty:
		return "event_stream_error.empty"
	case EventStreamClosed:
		return "event_stream_error.closed"
	case IO:
		return "io_error"
	case Parse:
		return "parse_error"
	case MissingField:
		return "parse_error.missing_field"
	case Subscription:
		return "subscription_error"
	case Validation:
		return "validation_error"
	default:
		return "internal_error"
	}
}

// Error is the single error type returned by every package in this module.
type Error struct {
	Kind    Kind
	Message string
	Field   int // meaningful only when Kind == MissingField
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, dberr.New(Kind, "")) match on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// MissingFieldAt reports a tab-separated field missing at the given index,
// mirroring exar-core's ParseError::MissingField(usize).
func MissingFieldAt(idx int) *Error {
	return &Error{Kind: MissingField, Field: idx, Message: fmt.Sprintf("missing field at index %d", idx)}
}

// Of reports whether err is a *Error of the given Kind.
func Of(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
