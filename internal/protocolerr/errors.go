// Package protocolerr defines the closed taxonomy of errors the dispatcher
// can surface as an Error{message} record on the wire (spec §7).
package protocolerr

import "fmt"

// Kind is one of the seven error categories the protocol exposes.
type Kind string

const (
	PathNotAbsolute     Kind = "PathNotAbsolute"
	IoError             Kind = "IoError"
	NoSessionOpen       Kind = "NoSessionOpen"
	InvalidRegex        Kind = "InvalidRegex"
	ColumnCountMismatch Kind = "ColumnCountMismatch"
	MalformedCommand    Kind = "MalformedCommand"
	Internal            Kind = "Internal"
)

// Error wraps an underlying cause with a protocol-visible kind.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates a protocol error with no underlying cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap creates a protocol error around an underlying cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// Message renders the error the way it appears in an Error{message} record:
// the kind is embedded in the message string, per spec §7.
func (e *Error) Message() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}
