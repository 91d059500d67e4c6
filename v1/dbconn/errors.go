package dbconn

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies every error that crosses the Connection boundary.
type Kind int

const (
	KindConnection Kind = iota + 1
	KindQuery
	KindTimeout
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection error"
	case KindQuery:
		return "query error"
	case KindTimeout:
		return "timeout error"
	case KindValidation:
		return "validation error"
	}
	return "unknown error"
}

// Sentinel errors, one per kind. They match any *Error of the same kind:
//
//	if errors.Is(err, dbconn.ErrValidation) { ... }
var (
	ErrConnection = &Error{Kind: KindConnection}
	ErrQuery      = &Error{Kind: KindQuery}
	ErrTimeout    = &Error{Kind: KindTimeout}
	ErrValidation = &Error{Kind: KindValidation}
)

// ErrNotConnected is returned by operations issued before Connect.
var ErrNotConnected = &Error{Kind: KindConnection, Operation: "execute", Message: "client is not connected"}

// Error is the single error type surfaced by backend clients and the CRUD engine.
// The backend-native error, when any, is kept as Cause and stays reachable
// through errors.As for diagnostics.
type Error struct {
	Kind      Kind
	Backend   Type
	Operation string
	Message   string
	Cause     error

	// Retryable marks transient failures (lost connections, deadlocks).
	Retryable bool

	final bool
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	prefix := e.Kind.String()
	if e.Backend != "" {
		prefix = fmt.Sprintf("%s %s", e.Backend, prefix)
	}
	if e.Operation != "" {
		prefix = fmt.Sprintf("%s (%s)", prefix, e.Operation)
	}
	if msg == "" {
		return prefix
	}
	return prefix + ": " + msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches sentinel errors by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Cause == nil
}

// NewConnectionError wraps cause as a connection failure. Connection failures
// are retryable by default.
func NewConnectionError(backend Type, op, msg string, cause error) *Error {
	return &Error{Kind: KindConnection, Backend: backend, Operation: op, Message: msg, Cause: cause, Retryable: true}
}

// NewQueryError wraps cause as a statement failure, preserving its message.
func NewQueryError(backend Type, op, msg string, cause error) *Error {
	return &Error{Kind: KindQuery, Backend: backend, Operation: op, Message: msg, Cause: cause}
}

// NewTimeoutError wraps cause as an exceeded statement or tunnel bound.
func NewTimeoutError(backend Type, op, msg string, cause error) *Error {
	return &Error{Kind: KindTimeout, Backend: backend, Operation: op, Message: msg, Cause: cause}
}

// NewValidationError reports a rejected input. It is raised before any network call.
func NewValidationError(backend Type, op, msg string, cause error) *Error {
	return &Error{Kind: KindValidation, Backend: backend, Operation: op, Message: msg, Cause: cause}
}

// IsConnectionError reports whether err is a connection failure.
func IsConnectionError(err error) bool { return errors.Is(err, ErrConnection) }

// IsQueryError reports whether err is a statement failure.
func IsQueryError(err error) bool { return errors.Is(err, ErrQuery) }

// IsTimeoutError reports whether err is a timeout.
func IsTimeoutError(err error) bool { return errors.Is(err, ErrTimeout) }

// IsValidationError reports whether err is a rejected input.
func IsValidationError(err error) bool { return errors.Is(err, ErrValidation) }

// Final returns err with its *Error copied and marked so that no retry
// layer runs the operation again, whatever its kind. It is used where the
// outcome is unknown, such as a failed commit. Other errors are returned
// unchanged.
func Final(err error) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	out := *e
	out.Retryable = false
	out.final = true
	return &out
}

// IsTransient reports whether err is marked retryable. Timeouts are
// transient only when retryTimeouts is set.
func IsTransient(err error, retryTimeouts bool) bool {
	var e *Error
	if !errors.As(err, &e) || e.final {
		return false
	}
	if e.Kind == KindTimeout {
		return retryTimeouts
	}
	if e.Kind == KindValidation {
		return false
	}
	return e.Retryable
}

// ClassifyCommon handles the failures every driver shares: context expiry and
// network errors. It returns nil when err is none of those.
func ClassifyCommon(backend Type, op string, err error) *Error {
	var already *Error
	if errors.As(err, &already) {
		return already
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(backend, op, "statement exceeded its deadline", err)
	}
	if errors.Is(err, context.Canceled) {
		return NewQueryError(backend, op, "operation canceled", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewTimeoutError(backend, op, netErr.Error(), err)
		}
		return NewConnectionError(backend, op, netErr.Error(), err)
	}
	return nil
}
