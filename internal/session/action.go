package session

import (
	"time"

	"github.com/amarsjac/openjd-sessions/internal/launcher"
)

// ActionState is the lifecycle state of one action.
// PENDING -> RUNNING -> {SUCCEEDED, FAILED, CANCELED, TIMEOUT};
// the four on the right are terminal.
type ActionState string

// Action states.
const (
	StatePending   ActionState = "PENDING"
	StateRunning   ActionState = "RUNNING"
	StateSucceeded ActionState = "SUCCEEDED"
	StateFailed    ActionState = "FAILED"
	StateCanceled  ActionState = "CANCELED"
	StateTimeout   ActionState = "TIMEOUT"
)

// Terminal reports whether no further transitions are possible.
func (s ActionState) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCanceled, StateTimeout:
		return true
	}
	return false
}

// ActionKind tags which script an action came from.
type ActionKind string

// Action kinds.
const (
	KindEnter ActionKind = "ON_ENTER"
	KindExit  ActionKind = "ON_EXIT"
	KindRun   ActionKind = "ON_RUN"
)

// ActionStatus is one status transition delivered to the session
// callback. Exactly one terminal status is delivered per action, always
// last.
type ActionStatus struct {
	Kind  ActionKind
	State ActionState

	// Progress is the reported completion percentage in [0,100], nil
	// when the transition carried no progress report.
	Progress *int

	// StatusMessage is free text reported through the status protocol.
	StatusMessage string

	// FailMessage describes why the action failed, timed out, or could
	// not launch.
	FailMessage string

	// ExitCode is set on terminal statuses when the process ran to an
	// observable exit; absent for launch failures.
	ExitCode *int
}

// action is one prepared, in-flight execution unit.
type action struct {
	kind    ActionKind
	cmd     launcher.Command
	timeout time.Duration

	// dir is the per-action working directory, removed when the
	// action's resources are released.
	dir string
}
