// Package launcher starts child processes for resolved commands and
// exposes handles for monitoring, waiting, and process-tree termination.
// Platform differences (process groups, privilege elevation) live in the
// per-OS files; callers are oblivious to which implementation is active.
package launcher

import (
	"fmt"
	"io"
	"os"
)

// Command is a fully-resolved command ready to launch. Program and Args
// are passed to the OS verbatim with no shell re-interpretation.
type Command struct {
	// Program is the executable to run.
	Program string

	// Args are the program arguments, not including the program itself.
	Args []string

	// Env is merged over the inherited process environment at launch.
	Env map[string]string

	// Dir is the working directory for the child. Empty means inherit.
	Dir string

	// RunAsUser names the OS user to run as. Empty means the hosting
	// process's user. A different user engages the platform elevation
	// helper (sudo on unix).
	RunAsUser string
}

// Handle monitors one launched process.
type Handle interface {
	// Output returns the combined stdout/stderr stream. It reaches EOF
	// once the process (and everything it handed the descriptor to) is
	// done. The caller closes it after draining.
	Output() io.ReadCloser

	// Wait blocks until the process exits and returns its exit code.
	// The code is -1 when the process was killed by a signal.
	// Wait must be called exactly once.
	Wait() (int, error)

	// Terminate forcibly kills the process tree rooted at the child,
	// not just the top process. Safe to call after exit.
	Terminate() error

	// PID returns the OS process id of the tree root.
	PID() int
}

// Launcher starts processes. The package-level New constructor returns
// the platform implementation.
type Launcher interface {
	Launch(cmd Command) (Handle, error)
}

// LaunchError reports that a process could not be started at all,
// including elevation-helper failures.
type LaunchError struct {
	Program string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Program, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// mergedEnv returns the inherited environment with overlay entries
// appended. os/exec gives later entries precedence on key collision.
func mergedEnv(overlay map[string]string) []string {
	env := os.Environ()
	for k, v := range overlay {
		env = append(env, k+"="+v)
	}
	return env
}
