//go:build !windows

package launcher

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestLaunchEcho verifies basic launch, output capture, and exit code.
func TestLaunchEcho(t *testing.T) {
	l := New()
	h, err := l.Launch(Command{Program: "echo", Args: []string{"hello"}})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	var lines []string
	scanner := bufio.NewScanner(h.Output())
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	code, err := h.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if code != 0 {
		t.Errorf("exit code: got %d, want 0", code)
	}
	if len(lines) != 1 || lines[0] != "hello" {
		t.Errorf("output: got %v, want [hello]", lines)
	}
}

// TestLaunchCombinesStdoutAndStderr verifies both streams share one pipe.
func TestLaunchCombinesStdoutAndStderr(t *testing.T) {
	l := New()
	h, err := l.Launch(Command{
		Program: "sh",
		Args:    []string{"-c", "echo out; echo err 1>&2"},
	})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	var got []string
	scanner := bufio.NewScanner(h.Output())
	for scanner.Scan() {
		got = append(got, scanner.Text())
	}
	if _, err := h.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	joined := strings.Join(got, "\n")
	if !strings.Contains(joined, "out") || !strings.Contains(joined, "err") {
		t.Errorf("combined output missing a stream: %q", joined)
	}
}

// TestLaunchNonzeroExit verifies non-zero exit codes are returned, not errors.
func TestLaunchNonzeroExit(t *testing.T) {
	l := New()
	h, err := l.Launch(Command{Program: "sh", Args: []string{"-c", "exit 3"}})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	code, err := h.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if code != 3 {
		t.Errorf("exit code: got %d, want 3", code)
	}
}

// TestLaunchMissingProgram verifies a LaunchError for unknown executables.
func TestLaunchMissingProgram(t *testing.T) {
	l := New()
	_, err := l.Launch(Command{Program: "this-program-does-not-exist-anywhere"})
	if err == nil {
		t.Fatal("expected error for missing program")
	}

	var launchErr *LaunchError
	if !errors.As(err, &launchErr) {
		t.Errorf("error should be a *LaunchError, got %T: %v", err, err)
	}
}

// TestLaunchEnvOverlay verifies overlay variables reach the child and
// shadow inherited values.
func TestLaunchEnvOverlay(t *testing.T) {
	t.Setenv("LAUNCHER_TEST_VAR", "inherited")

	l := New()
	h, err := l.Launch(Command{
		Program: "sh",
		Args:    []string{"-c", "echo $LAUNCHER_TEST_VAR"},
		Env:     map[string]string{"LAUNCHER_TEST_VAR": "overlay"},
	})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	scanner := bufio.NewScanner(h.Output())
	var line string
	if scanner.Scan() {
		line = scanner.Text()
	}
	if _, err := h.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if line != "overlay" {
		t.Errorf("child saw %q, want %q", line, "overlay")
	}
}

// TestLaunchWorkdir verifies the working directory is applied.
func TestLaunchWorkdir(t *testing.T) {
	dir := t.TempDir()
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}

	l := New()
	h, err := l.Launch(Command{Program: "pwd", Dir: dir})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	scanner := bufio.NewScanner(h.Output())
	var line string
	if scanner.Scan() {
		line = scanner.Text()
	}
	if _, err := h.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if line != dir && line != resolved {
		t.Errorf("pwd: got %q, want %q", line, dir)
	}
}

// TestTerminateKillsProcessTree verifies the whole group dies, including
// a grandchild spawned by an intermediate shell.
func TestTerminateKillsProcessTree(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "survived")

	l := New()
	h, err := l.Launch(Command{
		Program: "sh",
		Args:    []string{"-c", "sh -c 'sleep 3 && touch " + marker + "' & sleep 10"},
	})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	// Give the shell a moment to fork the grandchild.
	time.Sleep(200 * time.Millisecond)

	if err := h.Terminate(); err != nil {
		t.Fatalf("Terminate: %v", err)
	}

	code, err := h.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if code != -1 {
		t.Errorf("exit code after kill: got %d, want -1", code)
	}

	// If the grandchild survived the group kill, it will create the
	// marker file once its sleep finishes.
	time.Sleep(3500 * time.Millisecond)
	if _, err := os.Stat(marker); err == nil {
		t.Error("grandchild survived Terminate; marker file exists")
	}
}

// TestTerminateAfterExitIsSafe verifies Terminate on a finished process
// returns nil.
func TestTerminateAfterExitIsSafe(t *testing.T) {
	l := New()
	h, err := l.Launch(Command{Program: "true"})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if _, err := h.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if err := h.Terminate(); err != nil {
		t.Errorf("Terminate after exit: %v", err)
	}
}
