package resp

import (
	"errors"
	"fmt"
)

// Error types for RESP operations.
// They tell the client whether the byte stream is still usable after a failure.

// ServerError is an error reply ("-ERR ...") converted to a Go error.
// The stream is still in sync after a server error.
//
// Connection handling: Connection can be REUSED
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return e.Message
}

// ShouldCloseConnection returns false - server errors don't corrupt protocol state
func (e *ServerError) ShouldCloseConnection() bool {
	return false
}

// Prefix returns the error code, e.g. "ERR" or "WRONGTYPE".
func (e *ServerError) Prefix() string {
	for i := 0; i < len(e.Message); i++ {
		if e.Message[i] == ' ' {
			return e.Message[:i]
		}
	}
	return e.Message
}

// ParseError represents a client-side parsing error.
// Indicates the client failed to parse the server reply, which suggests
// either a protocol violation by the server or a desynchronized stream.
//
// Common causes:
//   - Unknown type byte
//   - Invalid length header
//   - Missing CRLF terminator
//
// Connection handling: Connection should be CLOSED as state is uncertain
type ParseError struct {
	Message string
	Err     error // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return "resp: parse error: " + e.Message + ": " + e.Err.Error()
	}
	return "resp: parse error: " + e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - parse errors indicate corrupted state
func (e *ParseError) ShouldCloseConnection() bool {
	return true
}

// ConnectionError wraps underlying I/O errors from connection operations.
//
// Common causes:
//   - Connection closed by peer
//   - Deadline exceeded
//   - Connection reset
//
// Connection handling: Connection is already broken, CLOSE and RECONNECT
type ConnectionError struct {
	Op  string // Operation that failed (read, write, flush)
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("resp: connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - connection errors mean connection is broken
func (e *ConnectionError) ShouldCloseConnection() bool {
	return true
}

// ErrorWithConnectionState is implemented by all errors of this package.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ErrEmptyCommand is returned by WriteCommand for an empty argument list.
var ErrEmptyCommand = errors.New("resp: empty command")

// ShouldCloseConnection reports whether err leaves the connection unusable.
//
// Returns false for nil and ServerError, true for ParseError, ConnectionError
// and any unknown error.
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}

	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}

	// Unknown error type - be conservative and close connection
	return true
}
