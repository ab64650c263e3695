//go:build !windows

package launcher

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/user"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/amarsjac/openjd-sessions/internal/olog"
)

// osLauncher is the unix implementation of Launcher. Children are started
// in their own process group so Terminate can signal the whole tree,
// including any sudo intermediary.
type osLauncher struct{}

// New creates the platform Launcher.
func New() Launcher {
	return &osLauncher{}
}

// Launch starts the command. When RunAsUser names a different user than
// the hosting process's, the child is wrapped in "sudo -u <user> --",
// which requires passwordless sudo configuration for that target user.
func (l *osLauncher) Launch(cmd Command) (Handle, error) {
	program := cmd.Program
	args := cmd.Args

	if cmd.RunAsUser != "" {
		cur, err := user.Current()
		if err != nil {
			return nil, &LaunchError{Program: program, Err: fmt.Errorf("determine current user: %w", err)}
		}
		if cur.Username != cmd.RunAsUser {
			args = append([]string{"-u", cmd.RunAsUser, "--", program}, args...)
			program = "sudo"
		}
	}

	c := exec.Command(program, args...)
	c.Dir = cmd.Dir
	c.Env = mergedEnv(cmd.Env)
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// Single pipe for combined stdout/stderr, in output order.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, &LaunchError{Program: program, Err: fmt.Errorf("create output pipe: %w", err)}
	}
	c.Stdout = pw
	c.Stderr = pw

	if err := c.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, &LaunchError{Program: program, Err: err}
	}

	// Close the parent's write end so the read end sees EOF when the
	// child (and everything it handed the descriptor to) exits.
	pw.Close()

	olog.Debug("launcher: started %s pid=%d", program, c.Process.Pid)
	return &unixHandle{cmd: c, out: pr}, nil
}

type unixHandle struct {
	cmd *exec.Cmd
	out io.ReadCloser
}

func (h *unixHandle) Output() io.ReadCloser {
	return h.out
}

func (h *unixHandle) Wait() (int, error) {
	err := h.cmd.Wait()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Non-zero exit or killed by signal (-1); not a Wait failure.
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("wait for %s: %w", h.cmd.Path, err)
	}
	return h.cmd.ProcessState.ExitCode(), nil
}

// Terminate kills the process group rooted at the child. The group id
// equals the child pid because of Setpgid at launch.
func (h *unixHandle) Terminate() error {
	pid := h.cmd.Process.Pid
	err := unix.Kill(-pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		// Group already gone.
		return nil
	}
	if err != nil {
		return fmt.Errorf("kill process group %d: %w", pid, err)
	}
	return nil
}

func (h *unixHandle) PID() int {
	return h.cmd.Process.Pid
}
