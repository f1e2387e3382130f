package common

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Sentinel Errors
// --------------------------------------------------------------------------

var (
	// ErrMissingToken is returned when a client is constructed without an api token
	ErrMissingToken = errors.New("missing required api token")

	// ErrConnectionClosed is returned for requests that cannot complete because the
	// connection is closing or closed
	ErrConnectionClosed = errors.New("connection closed")

	// ErrConnectionFailed is wrapped by ConnectionError when the transport fails before it opened
	ErrConnectionFailed = errors.New("connection failed before it was opened")

	// ErrTooManyPending is returned when the pending request cap is reached
	ErrTooManyPending = errors.New("too many pending requests")

	// ErrRequestTimeout settles requests whose reply did not arrive in time
	ErrRequestTimeout = errors.New("request timed out")

	// ErrRequestCancelled settles requests whose context ended before the reply arrived
	ErrRequestCancelled = errors.New("request cancelled")

	// ErrNotSettled is returned by Outcome.Result while no reply has arrived yet
	ErrNotSettled = errors.New("outcome not settled yet")
)

// --------------------------------------------------------------------------
// Typed Errors
// --------------------------------------------------------------------------

// ProtocolKind classifies protocol errors
type ProtocolKind string

const (
	ProtocolMalformed        ProtocolKind = "malformed message"
	ProtocolUnknownRequestID ProtocolKind = "unknown request id"
	ProtocolUnexpectedKind   ProtocolKind = "unexpected message kind"
)

// ProtocolError signals a desynchronization between client and server.
// It is reported on the connection, never returned to a single caller.
type ProtocolError struct {
	Kind      ProtocolKind
	RequestID uint64 // set for ProtocolUnknownRequestID
	Envelope  *Envelope
	Err       error
}

func (e *ProtocolError) Error() string {
	switch {
	case e.Kind == ProtocolUnknownRequestID:
		return fmt.Sprintf("protocol error: %s %d", e.Kind, e.RequestID)
	case e.Kind == ProtocolUnexpectedKind && e.Envelope != nil:
		return fmt.Sprintf("protocol error: %s %q", e.Kind, e.Envelope.Kind)
	case e.Err != nil:
		return fmt.Sprintf("protocol error: %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("protocol error: %s", e.Kind)
	}
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// SerializationError is returned when an outgoing request cannot be encoded
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("failed to serialize request: %v", e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// StatusError settles a request whose reply carried a status in [400, 599]
type StatusError struct {
	Envelope Envelope
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request %d failed with status %d: %s", e.Envelope.RequestID, e.Envelope.Status, string(e.Envelope.Payload))
}

// TransportError wraps failures reported by the underlying transport
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error (%s): %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ConnectionError settles requests that were waiting for a connection that never opened
type ConnectionError struct {
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%v: %v", ErrConnectionFailed, e.Cause)
}

func (e *ConnectionError) Unwrap() []error { return []error{ErrConnectionFailed, e.Cause} }
