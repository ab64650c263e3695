package session

import (
	"errors"
	"fmt"
)

// ErrSessionClosed is returned by any method called after Close.
var ErrSessionClosed = errors.New("session is closed")

// SessionBusyError reports a method call while an action was still
// running. The call has no effect; the caller may retry after the
// running action's terminal callback.
type SessionBusyError struct {
	// Op is the rejected operation, e.g. "enter environment".
	Op string
}

func (e *SessionBusyError) Error() string {
	return fmt.Sprintf("session busy: cannot %s while an action is running", e.Op)
}

// StackOrderError reports an exit attempt for an environment that is not
// the current top of the stack. The stack is unchanged.
type StackOrderError struct {
	ID EnvironmentID
}

func (e *StackOrderError) Error() string {
	return fmt.Sprintf("environment %s is not the top of the stack", e.ID)
}

// SessionNotEmptyError reports a Close call while environments were
// still entered. The session stays open.
type SessionNotEmptyError struct {
	Remaining int
}

func (e *SessionNotEmptyError) Error() string {
	return fmt.Sprintf("session has %d environment(s) still entered", e.Remaining)
}

// UnresolvedParameterError reports a placeholder with no value in the
// job or task parameter namespaces. It surfaces through the callback as
// a FAILED action, never as a synchronous error.
type UnresolvedParameterError struct {
	Placeholder string
}

func (e *UnresolvedParameterError) Error() string {
	return fmt.Sprintf("unresolved parameter placeholder %q", e.Placeholder)
}
