//go:build windows

package launcher

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/windows"

	"github.com/amarsjac/openjd-sessions/internal/olog"
)

// osLauncher is the windows implementation of Launcher. Children get
// their own process group; tree termination shells out to taskkill,
// which walks the child-process tree for us.
type osLauncher struct{}

// New creates the platform Launcher.
func New() Launcher {
	return &osLauncher{}
}

// Launch starts the command. Running as another user requires a
// credential-based elevation helper that this build does not carry, so a
// different RunAsUser fails with a diagnostic LaunchError rather than
// silently running as the wrong identity.
func (l *osLauncher) Launch(cmd Command) (Handle, error) {
	if cmd.RunAsUser != "" {
		return nil, &LaunchError{
			Program: cmd.Program,
			Err:     fmt.Errorf("run as user %q: credential-based launch is not supported on windows", cmd.RunAsUser),
		}
	}

	c := exec.Command(cmd.Program, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = mergedEnv(cmd.Env)
	c.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP,
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, &LaunchError{Program: cmd.Program, Err: fmt.Errorf("create output pipe: %w", err)}
	}
	c.Stdout = pw
	c.Stderr = pw

	if err := c.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, &LaunchError{Program: cmd.Program, Err: err}
	}
	pw.Close()

	olog.Debug("launcher: started %s pid=%d", cmd.Program, c.Process.Pid)
	return &windowsHandle{cmd: c, out: pr}, nil
}

type windowsHandle struct {
	cmd *exec.Cmd
	out io.ReadCloser
}

func (h *windowsHandle) Output() io.ReadCloser {
	return h.out
}

func (h *windowsHandle) Wait() (int, error) {
	err := h.cmd.Wait()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("wait for %s: %w", h.cmd.Path, err)
	}
	return h.cmd.ProcessState.ExitCode(), nil
}

// Terminate kills the process tree via taskkill /T.
func (h *windowsHandle) Terminate() error {
	pid := h.cmd.Process.Pid
	kill := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid))
	if err := kill.Run(); err != nil {
		// The tree may already be gone; make sure the root is dead.
		if killErr := h.cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
			return fmt.Errorf("kill process tree %d: %w", pid, err)
		}
	}
	return nil
}

func (h *windowsHandle) PID() int {
	return h.cmd.Process.Pid
}
