package respkv

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/pior/respkv/resp"
)

var (
	// ErrNil is returned by As when the reply is nil but a value was required.
	ErrNil = errors.New("respkv: nil reply")

	// ErrReleased is returned when a Reply is used after Release.
	ErrReleased = errors.New("respkv: reply released")

	ErrClientClosed  = errors.New("respkv: client closed")
	ErrSessionClosed = errors.New("respkv: session closed")
)

// ConnectionError is returned when resolving, connecting or reconnecting fails.
// It is fatal to the connection attempt; nothing is retried.
type ConnectionError struct {
	Op   string // resolve, connect, reconnect
	Addr string // empty when resolution failed
	Err  error
}

func (e *ConnectionError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("respkv: %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("respkv: %s %s failed: %v", e.Op, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// SendError is returned when a command could not be buffered for sending.
// The connection is not assumed to be desynchronized.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return "respkv: send failed: " + e.Err.Error()
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// ReceiveError is returned when no reply could be read. The wire may be left
// mid-reply, so the session health-checks the connection before its next use.
type ReceiveError struct {
	Err error
}

func (e *ReceiveError) Error() string {
	return "respkv: receive failed: " + e.Err.Error()
}

func (e *ReceiveError) Unwrap() error {
	return e.Err
}

// TypeMismatchError is returned when the reply's shape cannot fill the target,
// e.g. an array decoded into a scalar.
type TypeMismatchError struct {
	Kind   resp.Kind
	Target reflect.Type
	Reason string
}

func (e *TypeMismatchError) Error() string {
	target := "<nil>"
	if e.Target != nil {
		target = e.Target.String()
	}
	if e.Reason != "" {
		return fmt.Sprintf("respkv: cannot decode %s reply into %s: %s", e.Kind, target, e.Reason)
	}
	return fmt.Sprintf("respkv: cannot decode %s reply into %s", e.Kind, target)
}

// CastError is returned when a scalar is present but not representable in the
// target type, e.g. "abc" into an int.
type CastError struct {
	Value  string
	Target reflect.Type
	Err    error
}

func (e *CastError) Error() string {
	return fmt.Sprintf("respkv: cannot cast %q to %s: %v", e.Value, e.Target, e.Err)
}

func (e *CastError) Unwrap() error {
	return e.Err
}

// ConversionError is returned when a command argument cannot be rendered as text.
type ConversionError struct {
	Value any
	Err   error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("respkv: cannot convert argument %v (%T): %v", e.Value, e.Value, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// NeedsRecheck reports whether err scheduled a health check of the connection.
func NeedsRecheck(err error) bool {
	var e *ReceiveError
	return errors.As(err, &e)
}
