package engine

import "fmt"

// ErrorKind classifies engine-level failures.
type ErrorKind string

const (
	WorkspaceUnavailable ErrorKind = "workspace_unavailable"
	GuardFailed          ErrorKind = "guard_failed"
)

// Error is returned by the engine only when a failure cannot be attributed
// to the command being run. Everything else is reported in a Result.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}
