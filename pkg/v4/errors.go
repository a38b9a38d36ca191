// Package v4 implements the binary SeedLink v4 wire grammar, framed
// line codec, packet pack/parse, and server-side station negotiator.
package v4

import "fmt"

// ErrorCode enumerates the v4 protocol-level error taxonomy
// (spec.md §7).
type ErrorCode string

const (
	CodeGeneric              ErrorCode = "GENERIC"
	CodeUnsupportedCommand   ErrorCode = "UNSUPPORTED"
	CodeUnexpectedCommand    ErrorCode = "UNEXPECTED"
	CodeUnauthorizedCommand  ErrorCode = "UNAUTHORIZED"
	CodeLimitExceeded        ErrorCode = "LIMIT"
	CodeIncorrectArguments   ErrorCode = "ARGUMENTS"
	CodeAuthenticationFailed ErrorCode = "AUTH"
	CodeInternal             ErrorCode = "INTERNAL"
)

// ProtocolError is a v4 protocol-level error: a short code, a
// human-readable message, and a flag routing it into a JSON INFO
// error packet instead of an inline "ERROR" line. Grounded on
// gocanopen's pkg/gateway/http.GatewayError (typed, renderable,
// sentinel-constructed error).
type ProtocolError struct {
	Code    ErrorCode
	Message string
	Info    bool
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newErr(code ErrorCode, info bool, format string, args ...any) *ProtocolError {
	return &ProtocolError{Code: code, Message: fmt.Sprintf(format, args...), Info: info}
}

// ErrGeneric, ErrUnsupportedCommand, etc. are convenience constructors
// for each taxonomy member; "info" routes the error into a JSON INFO
// error packet (format JE) rather than an inline ERROR line.
func ErrGeneric(format string, args ...any) *ProtocolError {
	return newErr(CodeGeneric, false, format, args...)
}

func ErrUnsupportedCommand(keyword string) *ProtocolError {
	return newErr(CodeUnsupportedCommand, false, "Command not recognized or not supported: '%s'", keyword)
}

func ErrUnexpectedCommand(format string, args ...any) *ProtocolError {
	return newErr(CodeUnexpectedCommand, false, format, args...)
}

func ErrUnauthorizedCommand(format string, args ...any) *ProtocolError {
	return newErr(CodeUnauthorizedCommand, false, format, args...)
}

func ErrLimitExceeded(format string, args ...any) *ProtocolError {
	return newErr(CodeLimitExceeded, false, format, args...)
}

func ErrIncorrectArguments(info bool, format string, args ...any) *ProtocolError {
	return newErr(CodeIncorrectArguments, info, format, args...)
}

func ErrAuthenticationFailed(format string, args ...any) *ProtocolError {
	return newErr(CodeAuthenticationFailed, false, format, args...)
}

func ErrInternal(format string, args ...any) *ProtocolError {
	return newErr(CodeInternal, false, format, args...)
}
