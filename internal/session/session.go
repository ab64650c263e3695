// Package session implements the runtime that executes a render-job
// session: an environment stack, a single-action scheduling discipline,
// and callback-driven status reporting over child processes.
//
// A Session runs at most one action at a time. Each of EnterEnvironment,
// ExitEnvironment, and RunTask validates its preconditions synchronously
// and returns immediately; the action itself runs on a dedicated worker
// goroutine and reports every status transition through the session
// callback, terminal status last.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/amarsjac/openjd-sessions/internal/actionlog"
	"github.com/amarsjac/openjd-sessions/internal/job"
	"github.com/amarsjac/openjd-sessions/internal/launcher"
	"github.com/amarsjac/openjd-sessions/internal/olog"
)

// Config carries the immutable inputs for a new Session.
type Config struct {
	// ID is the caller-chosen session identifier. Required; must not
	// contain path separators since it names the session directory.
	ID string

	// Parameters are the already-resolved job parameter values bound to
	// the Param namespace.
	Parameters map[string]string

	// Callback receives every action status transition. Required.
	Callback Callback

	// WorkingRoot is the directory under which the session keeps its
	// log and per-action working directories. Required.
	WorkingRoot string

	// DefaultUser is the OS user actions run as when their script does
	// not declare one. Empty means the hosting process's user.
	DefaultUser string

	// Launcher overrides the platform process launcher. Nil selects the
	// real one; tests substitute fakes here.
	Launcher launcher.Launcher

	// LogSink overrides where forwarded child output and action events
	// go. Nil selects <WorkingRoot>/<ID>/session.log.
	LogSink actionlog.Sink
}

// Session executes enter/run/exit actions serially and owns the
// environment stack. Create with New; release with Close.
type Session struct {
	id          string
	params      map[string]string
	defaultUser string
	dir         string
	launch      launcher.Launcher
	sink        actionlog.Sink
	events      *actionlog.Logger
	notifier    *notifier
	logFile     *os.File

	// wg tracks the in-flight action worker so Close can wait for its
	// terminal dispatch to finish posting.
	wg sync.WaitGroup

	mu       sync.Mutex
	stack    envStack
	running  bool
	canceled bool
	cancelCh chan struct{}
	started  time.Time
	closed   bool
}

// New creates an open Session rooted at <WorkingRoot>/<ID>.
func New(cfg Config) (*Session, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("session id must not be empty")
	}
	if strings.ContainsAny(cfg.ID, `/\`) {
		return nil, fmt.Errorf("session id %q must not contain path separators", cfg.ID)
	}
	if cfg.Callback == nil {
		return nil, fmt.Errorf("session callback must not be nil")
	}
	if cfg.WorkingRoot == "" {
		return nil, fmt.Errorf("working directory root must not be empty")
	}

	dir := filepath.Join(cfg.WorkingRoot, cfg.ID)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}

	s := &Session{
		id:          cfg.ID,
		params:      cfg.Parameters,
		defaultUser: cfg.DefaultUser,
		dir:         dir,
		launch:      cfg.Launcher,
		sink:        cfg.LogSink,
	}
	if s.launch == nil {
		s.launch = launcher.New()
	}
	if s.sink == nil {
		f, err := olog.OpenLogFile(filepath.Join(dir, "session.log"))
		if err != nil {
			return nil, err
		}
		s.logFile = f
		s.sink = actionlog.NewWriterSink(f)
	}
	s.events = actionlog.NewLogger(sinkWriter{s.sink})
	s.notifier = newNotifier(cfg.ID, cfg.Callback)

	olog.Info("session %s: opened (dir %s)", s.id, dir)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Dir returns the session working directory.
func (s *Session) Dir() string {
	return s.dir
}

// EnvironmentDepth returns how many environments are currently entered.
func (s *Session) EnvironmentDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stack.depth()
}

// CurrentOverlay returns a copy of the merged environment-variable
// mapping the next action will see.
func (s *Session) CurrentOverlay() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stack.currentOverlay()
}

// EnterEnvironment begins entering env. When env has an OnEnter script
// the entry is pushed only after that action reaches SUCCEEDED; on any
// other terminal state the environment is considered not entered. The
// returned id identifies the entry for ExitEnvironment.
//
// Fails synchronously with a *SessionBusyError while an action is
// running; the stack is untouched in that case.
func (s *Session) EnterEnvironment(env job.Environment) (EnvironmentID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrSessionClosed
	}
	if s.running {
		return "", &SessionBusyError{Op: "enter environment"}
	}

	id := newEnvironmentID()
	if env.OnEnter == nil {
		s.stack.push(id, env)
		olog.Info("session %s: entered environment %s (%s), no enter action", s.id, env.Name, id)
		return id, nil
	}

	mutate := func(st ActionStatus) {
		if st.State == StateSucceeded {
			s.stack.push(id, env)
		}
	}
	act, err := s.prepareLocked(KindEnter, *env.OnEnter, nil)
	if err != nil {
		s.startFailedLocked(KindEnter, err, mutate)
		return id, nil
	}

	olog.Info("session %s: entering environment %s (%s)", s.id, env.Name, id)
	s.startLocked(act, mutate)
	return id, nil
}

// ExitEnvironment begins exiting the environment identified by id, which
// must be the current top of the stack. The entry is removed once the
// OnExit action (if any) reaches any terminal state; a failing exit
// script never leaves the stack stuck.
//
// Fails synchronously with a *StackOrderError for a non-top id (no
// callback is emitted, the stack is unchanged) or a *SessionBusyError
// while an action is running.
func (s *Session) ExitEnvironment(id EnvironmentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.running {
		return &SessionBusyError{Op: "exit environment"}
	}

	top, ok := s.stack.top()
	if !ok || top.id != id {
		return &StackOrderError{ID: id}
	}

	if top.env.OnExit == nil {
		_, _ = s.stack.pop(id)
		olog.Info("session %s: exited environment %s (%s), no exit action", s.id, top.env.Name, id)
		return nil
	}

	// Removed regardless of the exit action's outcome.
	mutate := func(ActionStatus) {
		_, _ = s.stack.pop(id)
	}
	act, err := s.prepareLocked(KindExit, *top.env.OnExit, nil)
	if err != nil {
		s.startFailedLocked(KindExit, err, mutate)
		return nil
	}

	olog.Info("session %s: exiting environment %s (%s)", s.id, top.env.Name, id)
	s.startLocked(act, mutate)
	return nil
}

// RunTask begins one run of the step script with taskParams bound to the
// Task.Param namespace. The stack is not touched.
//
// Fails synchronously with a *SessionBusyError while an action is
// running. Resolution failures surface as a FAILED action through the
// callback, never as a synchronous error.
func (s *Session) RunTask(script job.ScriptAction, taskParams map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.running {
		return &SessionBusyError{Op: "run task"}
	}

	act, err := s.prepareLocked(KindRun, script, taskParams)
	if err != nil {
		s.startFailedLocked(KindRun, err, nil)
		return nil
	}

	olog.Info("session %s: running task %s", s.id, act.cmd.Program)
	s.startLocked(act, nil)
	return nil
}

// Cancel requests termination of the currently running action's process
// tree. Idempotent; a no-op when nothing is running. Once Cancel
// returns, the action is guaranteed to reach a terminal state (CANCELED,
// or the real outcome if it had already raced to completion) without
// further caller involvement.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.canceled {
		return
	}
	s.canceled = true
	close(s.cancelCh)
	olog.Info("session %s: cancel requested", s.id)
}

// Close releases the session. It fails with a *SessionNotEmptyError when
// environments are still entered, since closing then would leave their
// OS-level side effects unreleased, and with a *SessionBusyError while
// an action is running. Closing twice is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.running {
		s.mu.Unlock()
		return &SessionBusyError{Op: "close"}
	}
	if d := s.stack.depth(); d > 0 {
		s.mu.Unlock()
		return &SessionNotEmptyError{Remaining: d}
	}
	s.closed = true
	s.mu.Unlock()

	// A just-finished action may still be posting its terminal status.
	s.wg.Wait()
	s.notifier.close()
	if s.logFile != nil {
		_ = s.logFile.Close()
	}
	olog.Info("session %s: closed", s.id)
	return nil
}

// prepareLocked resolves one script action into a launchable unit with
// its own working directory. Caller holds s.mu.
func (s *Session) prepareLocked(kind ActionKind, script job.ScriptAction, taskParams map[string]string) (*action, error) {
	timeout, err := script.TimeoutDuration()
	if err != nil {
		return nil, fmt.Errorf("invalid timeout %q: %w", script.Timeout, err)
	}

	dir, err := os.MkdirTemp(s.dir, "action-")
	if err != nil {
		return nil, fmt.Errorf("create action directory: %w", err)
	}

	cmd, err := resolveCommand(script, s.params, taskParams, s.stack.currentOverlay(), dir, s.defaultUser)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	return &action{kind: kind, cmd: cmd, timeout: timeout, dir: dir}, nil
}

// beginLocked marks an action in flight. Caller holds s.mu.
func (s *Session) beginLocked() {
	s.running = true
	s.canceled = false
	s.cancelCh = make(chan struct{})
	s.started = time.Now()
}

// startLocked hands the prepared action to its dedicated worker. Caller
// holds s.mu.
func (s *Session) startLocked(act *action, mutate func(ActionStatus)) {
	s.beginLocked()
	exec := &executor{launch: s.launch, sink: s.sink}
	cancel := s.cancelCh
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		exec.run(act, cancel, func(st ActionStatus) {
			s.dispatch(st, mutate)
		})
	}()
}

// startFailedLocked reports an action that failed before any process
// could launch (e.g. unresolved parameters), through the same callback
// path as every other terminal state. Caller holds s.mu.
func (s *Session) startFailedLocked(kind ActionKind, err error, mutate func(ActionStatus)) {
	s.beginLocked()
	olog.Info("session %s: %s action failed to resolve: %v", s.id, kind, err)
	st := ActionStatus{Kind: kind, State: StateFailed, FailMessage: err.Error()}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.dispatch(st, mutate)
	}()
}

// dispatch applies a status transition: terminal statuses first commit
// their stack mutation and free the session for the next call, then
// every status is recorded and forwarded to the callback in order.
func (s *Session) dispatch(st ActionStatus, mutate func(ActionStatus)) {
	if st.State.Terminal() {
		s.mu.Lock()
		if mutate != nil {
			mutate(st)
		}
		s.running = false
		s.mu.Unlock()
	}
	s.logEvent(st)
	s.notifier.post(st)
}

// logEvent mirrors a status transition into the action event log.
func (s *Session) logEvent(st ActionStatus) {
	e := actionlog.Event{
		Session: s.id,
		Kind:    string(st.Kind),
		State:   string(st.State),
	}
	switch {
	case st.State.Terminal():
		e.Type = actionlog.EventEnd
		e.ExitCode = st.ExitCode
		e.Message = st.FailMessage
		s.mu.Lock()
		e.Duration = time.Since(s.started)
		s.mu.Unlock()
	case st.Progress != nil:
		e.Type = actionlog.EventProgress
		e.Progress = *st.Progress
		e.Message = st.StatusMessage
	case st.StatusMessage != "" || st.FailMessage != "":
		e.Type = actionlog.EventStatus
		e.Message = st.StatusMessage
		if e.Message == "" {
			e.Message = st.FailMessage
		}
	default:
		e.Type = actionlog.EventStart
	}
	s.events.Log(e)
}

// sinkWriter adapts a Sink into the io.Writer the event logger expects.
type sinkWriter struct {
	s actionlog.Sink
}

func (w sinkWriter) Write(p []byte) (int, error) {
	w.s.Write(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
