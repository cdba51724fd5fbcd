package model

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a failure for the cycle summary.
type ErrorKind string

const (
	KindAuthentication    ErrorKind = "AuthenticationError"
	KindConnection        ErrorKind = "ConnectionError"
	KindMalformedRecord   ErrorKind = "MalformedRecordError"
	KindDuplicateCheck    ErrorKind = "DuplicateCheckError"
	KindSchema            ErrorKind = "SchemaError"
	KindWrite             ErrorKind = "WriteError"
	KindRateLimit         ErrorKind = "RateLimitError"
	KindRateLimitExceeded ErrorKind = "RateLimitExceeded"
	KindCanceled          ErrorKind = "Canceled"
)

// Sentinels for errors.Is. Any *Error with the same Kind matches.
var (
	ErrAuthentication    = &Error{Kind: KindAuthentication}
	ErrConnection        = &Error{Kind: KindConnection}
	ErrMalformedRecord   = &Error{Kind: KindMalformedRecord}
	ErrDuplicateCheck    = &Error{Kind: KindDuplicateCheck}
	ErrSchema            = &Error{Kind: KindSchema}
	ErrWrite             = &Error{Kind: KindWrite}
	ErrRateLimit         = &Error{Kind: KindRateLimit}
	ErrRateLimitExceeded = &Error{Kind: KindRateLimitExceeded}
)

// Error is a classified failure raised by one of the sync components.
type Error struct {
	Kind     ErrorKind
	Op       string // What was being done, e.g. "login" or "query duplicates"
	TicketID int64  // Zero unless the failure is tied to one trade
	Err      error
}

// NewError wraps err with a kind and operation.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error from a format string.
func Errorf(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.TicketID != 0 {
		msg = fmt.Sprintf("%s (ticket %d)", msg, e.TicketID)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches bare sentinels (no Op, no wrapped error) by Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Err != nil || t.TicketID != 0 {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain. Context
// cancellation maps to KindCanceled; anything else unclassified is "".
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return ""
}

// FailureFrom turns an error into a summary record.
func FailureFrom(ticket int64, err error) Failure {
	kind := KindOf(err)
	if kind == "" {
		kind = KindWrite
	}
	var e *Error
	if ticket == 0 && errors.As(err, &e) {
		ticket = e.TicketID
	}
	return Failure{TicketID: ticket, Kind: kind, Message: err.Error()}
}
