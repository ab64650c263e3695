package session

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/amarsjac/openjd-sessions/internal/actionlog"
	"github.com/amarsjac/openjd-sessions/internal/launcher"
	"github.com/amarsjac/openjd-sessions/internal/olog"
)

// terminateGrace bounds how long the executor waits for a killed process
// tree to actually exit before reporting the terminal state anyway.
const terminateGrace = 10 * time.Second

// executor drives one action's full lifecycle: launch, monitor,
// terminate on cancel/timeout, finalize. It runs on a goroutine the
// Session dedicates to the action, so callers are never blocked.
type executor struct {
	launch launcher.Launcher
	sink   actionlog.Sink
}

// run executes act to a terminal state. emit is invoked for every status
// transition in event order; the terminal status is always emitted last
// and exactly once. cancel, when closed, requests termination of the
// process tree.
func (e *executor) run(act *action, cancel <-chan struct{}, emit func(ActionStatus)) {
	defer func() {
		if act.dir != "" {
			if err := os.RemoveAll(act.dir); err != nil {
				olog.Warn("session: remove action dir %s: %v", act.dir, err)
			}
		}
	}()

	h, err := e.launch.Launch(act.cmd)
	if err != nil {
		// Launch failures never crash the session; they are a FAILED
		// action with a diagnostic message and no exit code.
		emit(ActionStatus{Kind: act.kind, State: StateFailed, FailMessage: err.Error()})
		return
	}

	emit(ActionStatus{Kind: act.kind, State: StateRunning})

	out := h.Output()
	defer out.Close()

	// The scanner goroutine records any explicit failure declaration
	// for the terminal-state decision.
	var mu sync.Mutex
	var explicitFail string
	var failed bool

	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		scanOutput(out, e.sink, func(u statusUpdate) {
			st := ActionStatus{Kind: act.kind, State: StateRunning}
			if u.progress != nil {
				st.Progress = u.progress
			}
			if u.hasStatus {
				st.StatusMessage = u.status
			}
			if u.hasFail {
				mu.Lock()
				failed = true
				explicitFail = u.fail
				mu.Unlock()
				st.FailMessage = u.fail
			}
			emit(st)
		})
	}()

	done := make(chan int, 1)
	go func() {
		code, werr := h.Wait()
		if werr != nil {
			olog.Error("session: wait for pid %d: %v", h.PID(), werr)
		}
		done <- code
	}()

	// The timeout timer is owned here, independent of the monitored
	// process, so a hung child cannot block timeout delivery.
	var timeoutC <-chan time.Time
	if act.timeout > 0 {
		timer := time.NewTimer(act.timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case code := <-done:
		e.drain(scanDone)
		mu.Lock()
		f, fmsg := failed, explicitFail
		mu.Unlock()
		st := ActionStatus{Kind: act.kind, ExitCode: &code}
		if code == 0 && !f {
			st.State = StateSucceeded
		} else {
			st.State = StateFailed
			if f {
				st.FailMessage = fmsg
			} else {
				st.FailMessage = fmt.Sprintf("process exited with code %d", code)
			}
		}
		emit(st)

	case <-timeoutC:
		e.terminate(h)
		st := ActionStatus{Kind: act.kind, State: StateTimeout,
			FailMessage: fmt.Sprintf("action timed out after %s", act.timeout)}
		if code, ok := e.awaitExit(done); ok {
			st.ExitCode = &code
		}
		e.drain(scanDone)
		emit(st)

	case <-cancel:
		// The child may have raced to completion before the kill; in
		// that case report its real outcome instead of CANCELED.
		select {
		case code := <-done:
			e.drain(scanDone)
			mu.Lock()
			f, fmsg := failed, explicitFail
			mu.Unlock()
			st := ActionStatus{Kind: act.kind, ExitCode: &code}
			if code == 0 && !f {
				st.State = StateSucceeded
			} else {
				st.State = StateFailed
				if f {
					st.FailMessage = fmsg
				} else {
					st.FailMessage = fmt.Sprintf("process exited with code %d", code)
				}
			}
			emit(st)
			return
		default:
		}

		e.terminate(h)
		st := ActionStatus{Kind: act.kind, State: StateCanceled, FailMessage: "action canceled"}
		if code, ok := e.awaitExit(done); ok {
			st.ExitCode = &code
		}
		e.drain(scanDone)
		emit(st)
	}
}

// terminate kills the process tree rooted at the handle.
func (e *executor) terminate(h launcher.Handle) {
	if err := h.Terminate(); err != nil {
		olog.Warn("session: terminate pid %d: %v", h.PID(), err)
	}
}

// awaitExit waits up to terminateGrace for the exit code of a killed
// process. Reports ok=false if the process would not die in time.
func (e *executor) awaitExit(done <-chan int) (int, bool) {
	select {
	case code := <-done:
		return code, true
	case <-time.After(terminateGrace):
		olog.Warn("session: process did not exit within %s of termination", terminateGrace)
		return 0, false
	}
}

// drain waits briefly for the output scanner to finish so intermediate
// updates are emitted before the terminal status. After a tree kill the
// pipe reaches EOF promptly; the bound only guards a wedged descriptor.
func (e *executor) drain(scanDone <-chan struct{}) {
	select {
	case <-scanDone:
	case <-time.After(terminateGrace):
		olog.Warn("session: output stream still open after %s; continuing", terminateGrace)
	}
}
