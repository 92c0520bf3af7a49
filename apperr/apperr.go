// Package apperr defines the closed set of error kinds from the system's
// error-handling design. World mutations, wire decoding in sessions, the
// resource registry and the snapshot store report failures as one of these
// wrapped in an *Error; socket I/O errors, config validation and account
// registration return plain errors.
package apperr

import "fmt"

type Kind string

const (
	Malformed               Kind = "Malformed"
	ProtocolVersionMismatch Kind = "ProtocolVersionMismatch"
	AuthFailed              Kind = "AuthFailed"
	PermissionDenied        Kind = "PermissionDenied"
	NotFound                Kind = "NotFound"
	Overloaded              Kind = "Overloaded"
	IdleTimeout             Kind = "IdleTimeout"
	IOFailure               Kind = "IOFailure"
	PersistenceFailure      Kind = "PersistenceFailure"
	ShutdownRequested       Kind = "ShutdownRequested"
)

// Error pairs one of the closed Kinds with a human-readable reason.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// As extracts the Kind from err if it is (or wraps) an *Error.
func As(err error) (Kind, bool) {
	var e *Error
	if ok := errorsAs(err, &e); ok {
		return e.Kind, true
	}
	return "", false
}

func errorsAs(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
