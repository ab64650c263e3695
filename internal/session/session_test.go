package session

import (
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amarsjac/openjd-sessions/internal/job"
	"github.com/amarsjac/openjd-sessions/internal/launcher"
)

// recorder collects callback deliveries and signals terminal statuses.
type recorder struct {
	mu       sync.Mutex
	statuses []ActionStatus
	terminal chan ActionStatus
}

func newRecorder() *recorder {
	return &recorder{terminal: make(chan ActionStatus, 16)}
}

func (r *recorder) callback(_ string, st ActionStatus) {
	r.mu.Lock()
	r.statuses = append(r.statuses, st)
	r.mu.Unlock()
	if st.State.Terminal() {
		r.terminal <- st
	}
}

// awaitTerminal blocks until the next terminal status or fails the test.
func (r *recorder) awaitTerminal(t *testing.T) ActionStatus {
	t.Helper()
	select {
	case st := <-r.terminal:
		return st
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for terminal status")
		return ActionStatus{}
	}
}

func (r *recorder) all() []ActionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ActionStatus(nil), r.statuses...)
}

// memSink captures forwarded child output lines.
type memSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *memSink) Write(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
}

func (s *memSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

// fakeLauncher records launch requests and completes immediately.
type fakeLauncher struct {
	mu       sync.Mutex
	launched []launcher.Command
	exitCode int
	output   string
}

func (f *fakeLauncher) Launch(cmd launcher.Command) (launcher.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.launched = append(f.launched, cmd)
	return &fakeHandle{out: io.NopCloser(strings.NewReader(f.output)), code: f.exitCode}, nil
}

func (f *fakeLauncher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.launched)
}

func (f *fakeLauncher) last() launcher.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.launched[len(f.launched)-1]
}

type fakeHandle struct {
	out  io.ReadCloser
	code int
}

func (h *fakeHandle) Output() io.ReadCloser { return h.out }
func (h *fakeHandle) Wait() (int, error)    { return h.code, nil }
func (h *fakeHandle) Terminate() error      { return nil }
func (h *fakeHandle) PID() int              { return 4242 }

// newFakeSession builds a session over a fake launcher and memory sink.
func newFakeSession(t *testing.T, launch launcher.Launcher, params map[string]string) (*Session, *recorder, *memSink) {
	t.Helper()
	rec := newRecorder()
	sink := &memSink{}
	s, err := New(Config{
		ID:          "test-session",
		Parameters:  params,
		Callback:    rec.callback,
		WorkingRoot: t.TempDir(),
		Launcher:    launch,
		LogSink:     sink,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, rec, sink
}

// TestNewValidatesConfig verifies required Config fields.
func TestNewValidatesConfig(t *testing.T) {
	cb := func(string, ActionStatus) {}
	root := t.TempDir()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing id", Config{Callback: cb, WorkingRoot: root}},
		{"id with separator", Config{ID: "a/b", Callback: cb, WorkingRoot: root}},
		{"missing callback", Config{ID: "s", WorkingRoot: root}},
		{"missing root", Config{ID: "s", Callback: cb}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// TestEnterWithoutScriptPushesImmediately verifies a script-less
// environment is entered synchronously with no callback traffic.
func TestEnterWithoutScriptPushesImmediately(t *testing.T) {
	s, rec, _ := newFakeSession(t, &fakeLauncher{}, nil)

	id, err := s.EnterEnvironment(job.Environment{
		Name:      "plain",
		Variables: map[string]string{"K": "v"},
	})
	if err != nil {
		t.Fatalf("EnterEnvironment: %v", err)
	}
	if id == "" {
		t.Error("expected a non-empty environment id")
	}
	if s.EnvironmentDepth() != 1 {
		t.Errorf("depth: got %d, want 1", s.EnvironmentDepth())
	}
	if got := s.CurrentOverlay()["K"]; got != "v" {
		t.Errorf("overlay K: got %q, want %q", got, "v")
	}
	if n := len(rec.all()); n != 0 {
		t.Errorf("no callbacks expected, got %d", n)
	}

	if err := s.ExitEnvironment(id); err != nil {
		t.Fatalf("ExitEnvironment: %v", err)
	}
	if s.EnvironmentDepth() != 0 {
		t.Errorf("depth after exit: got %d, want 0", s.EnvironmentDepth())
	}
}

// TestExitNonTopFailsSynchronously verifies the StackOrderError path:
// no callback, stack unchanged.
func TestExitNonTopFailsSynchronously(t *testing.T) {
	s, rec, _ := newFakeSession(t, &fakeLauncher{}, nil)

	first, err := s.EnterEnvironment(job.Environment{Name: "first"})
	if err != nil {
		t.Fatalf("enter first: %v", err)
	}
	if _, err := s.EnterEnvironment(job.Environment{Name: "second"}); err != nil {
		t.Fatalf("enter second: %v", err)
	}

	err = s.ExitEnvironment(first)
	var orderErr *StackOrderError
	if !errors.As(err, &orderErr) {
		t.Fatalf("expected *StackOrderError, got %v", err)
	}
	if s.EnvironmentDepth() != 2 {
		t.Errorf("stack should be unchanged, depth: got %d, want 2", s.EnvironmentDepth())
	}
	if n := len(rec.all()); n != 0 {
		t.Errorf("no callbacks expected, got %d", n)
	}
}

// TestRunTaskUnresolvedParameterFails verifies resolution failure is a
// FAILED action with no process launched and no exit code.
func TestRunTaskUnresolvedParameterFails(t *testing.T) {
	launch := &fakeLauncher{}
	s, rec, _ := newFakeSession(t, launch, map[string]string{"Foo": "12"})

	err := s.RunTask(job.ScriptAction{
		Command: "render",
		Args:    []string{"{{Task.Param.Baz}}"},
	}, map[string]string{"Other": "x"})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}

	st := rec.awaitTerminal(t)
	if st.State != StateFailed {
		t.Errorf("state: got %s, want %s", st.State, StateFailed)
	}
	if !strings.Contains(st.FailMessage, "Task.Param.Baz") {
		t.Errorf("fail message should name the placeholder, got: %q", st.FailMessage)
	}
	if st.ExitCode != nil {
		t.Errorf("exit code should be absent, got %d", *st.ExitCode)
	}
	if launch.count() != 0 {
		t.Errorf("no process should launch, got %d launches", launch.count())
	}
}

// TestRunTaskAppliesDefaultUser verifies the session default user reaches
// the launcher when the script declares none.
func TestRunTaskAppliesDefaultUser(t *testing.T) {
	launch := &fakeLauncher{}
	rec := newRecorder()
	s, err := New(Config{
		ID:          "user-test",
		Callback:    rec.callback,
		WorkingRoot: t.TempDir(),
		DefaultUser: "renderuser",
		Launcher:    launch,
		LogSink:     &memSink{},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := s.RunTask(job.ScriptAction{Command: "render"}, nil); err != nil {
		t.Fatalf("RunTask: %v", err)
	}
	rec.awaitTerminal(t)

	if got := launch.last().RunAsUser; got != "renderuser" {
		t.Errorf("RunAsUser: got %q, want %q", got, "renderuser")
	}
}

// TestLaunchFailureIsFailedAction verifies a launcher error surfaces as a
// FAILED action, not a crash or synchronous error.
func TestLaunchFailureIsFailedAction(t *testing.T) {
	s, rec, _ := newFakeSession(t, failingLauncher{}, nil)

	if err := s.RunTask(job.ScriptAction{Command: "render"}, nil); err != nil {
		t.Fatalf("RunTask: %v", err)
	}

	st := rec.awaitTerminal(t)
	if st.State != StateFailed {
		t.Errorf("state: got %s, want %s", st.State, StateFailed)
	}
	if !strings.Contains(st.FailMessage, "boom") {
		t.Errorf("fail message should carry the diagnostic, got: %q", st.FailMessage)
	}
	if st.ExitCode != nil {
		t.Errorf("exit code should be absent for launch failures")
	}

	// The session stays usable; the terminal callback precedes this call,
	// so the action slot is already free.
	if err := s.RunTask(job.ScriptAction{Command: "render"}, nil); err != nil {
		t.Errorf("session should accept the next call, got: %v", err)
	}
	rec.awaitTerminal(t)
}

type failingLauncher struct{}

func (failingLauncher) Launch(cmd launcher.Command) (launcher.Handle, error) {
	return nil, &launcher.LaunchError{Program: cmd.Program, Err: errors.New("boom")}
}

// TestCloseWithOpenEnvironmentsFails verifies the SessionNotEmptyError
// path and that close succeeds after the stack drains.
func TestCloseWithOpenEnvironmentsFails(t *testing.T) {
	s, _, _ := newFakeSession(t, &fakeLauncher{}, nil)

	id, err := s.EnterEnvironment(job.Environment{Name: "open"})
	if err != nil {
		t.Fatalf("EnterEnvironment: %v", err)
	}

	err = s.Close()
	var notEmpty *SessionNotEmptyError
	if !errors.As(err, &notEmpty) {
		t.Fatalf("expected *SessionNotEmptyError, got %v", err)
	}
	if notEmpty.Remaining != 1 {
		t.Errorf("remaining: got %d, want 1", notEmpty.Remaining)
	}

	if err := s.ExitEnvironment(id); err != nil {
		t.Fatalf("ExitEnvironment: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Closed sessions reject further calls; a second Close is a no-op.
	if _, err := s.EnterEnvironment(job.Environment{Name: "late"}); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

// TestCancelWithoutRunningActionIsNoop verifies Cancel is safe when idle.
func TestCancelWithoutRunningActionIsNoop(t *testing.T) {
	s, rec, _ := newFakeSession(t, &fakeLauncher{}, nil)

	s.Cancel()
	s.Cancel()

	if n := len(rec.all()); n != 0 {
		t.Errorf("no callbacks expected, got %d", n)
	}
}

// TestTaskOutputRoutedToSink verifies ordinary child output reaches the
// configured sink while control lines are withheld.
func TestTaskOutputRoutedToSink(t *testing.T) {
	launch := &fakeLauncher{output: "plain line\nopenjd_progress: 40\nanother line\n"}
	s, rec, sink := newFakeSession(t, launch, nil)

	if err := s.RunTask(job.ScriptAction{Command: "render"}, nil); err != nil {
		t.Fatalf("RunTask: %v", err)
	}
	st := rec.awaitTerminal(t)
	if st.State != StateSucceeded {
		t.Fatalf("state: got %s, want %s", st.State, StateSucceeded)
	}

	joined := strings.Join(sink.all(), "\n")
	if !strings.Contains(joined, "plain line") || !strings.Contains(joined, "another line") {
		t.Errorf("sink missing forwarded output: %q", joined)
	}
	if strings.Contains(joined, "openjd_progress") {
		t.Errorf("control line leaked to sink: %q", joined)
	}

	// The progress update arrived before the terminal status.
	var sawProgress bool
	for _, st := range rec.all() {
		if st.Progress != nil && *st.Progress == 40 {
			sawProgress = true
		}
	}
	if !sawProgress {
		t.Error("progress update not delivered")
	}
}
