// Package client implements the SeedLink client connection facade:
// slink:// / slinkv3:// URL parsing, protocol version negotiation
// against the compile-time list of versions this library actually
// speaks, and a lazy, restartable packet stream with keepalive
// interleaving (spec.md §4.7).
package client

import "fmt"

// ErrorKind enumerates pkg/client's error taxonomy (spec.md §7's
// "ClientError(msg)" family, SPEC_FULL §7.1).
type ErrorKind string

const (
	UnsupportedCommand     ErrorKind = "UNSUPPORTED_COMMAND"
	UnexpectedCommand      ErrorKind = "UNEXPECTED_COMMAND"
	InvalidProtocolVersion ErrorKind = "INVALID_PROTOCOL_VERSION"
	InvalidCommandArgument ErrorKind = "INVALID_COMMAND_ARGUMENT"
	InvalidClientConfig    ErrorKind = "INVALID_CLIENT_CONFIG"
	StateDBError           ErrorKind = "STATE_DB_ERROR"
	InvalidStreamID        ErrorKind = "INVALID_STREAM_ID"
	InvalidData            ErrorKind = "INVALID_DATA"
)

// Error is pkg/client's typed error: a sentinel kind plus a message,
// grounded on pkg/v3.ClientError and pkg/v4.ProtocolError's
// code-plus-message shape.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
