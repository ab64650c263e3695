package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/amarsjac/openjd-sessions/internal/job"
)

// EnvironmentID is an opaque identifier minted when an environment entry
// begins. Callers pass it back to ExitEnvironment.
type EnvironmentID string

// newEnvironmentID generates a fresh random id.
func newEnvironmentID() EnvironmentID {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms
		panic(fmt.Sprintf("generate environment id: %v", err))
	}
	return EnvironmentID("env-" + hex.EncodeToString(b[:]))
}

// stackEntry records one entered environment and the variable overlay it
// contributes: its own variables merged over the overlay beneath it.
type stackEntry struct {
	id      EnvironmentID
	env     job.Environment
	overlay map[string]string
}

// envStack is the ordered record of entered environments. It is not
// safe for concurrent use; the Session serializes access under its own
// mutex.
type envStack struct {
	entries []stackEntry
}

// push appends an entry for env, computing its overlay from the current
// top. Later entries shadow earlier ones on key collision.
func (s *envStack) push(id EnvironmentID, env job.Environment) {
	overlay := make(map[string]string, len(env.Variables))
	if n := len(s.entries); n > 0 {
		for k, v := range s.entries[n-1].overlay {
			overlay[k] = v
		}
	}
	for k, v := range env.Variables {
		overlay[k] = v
	}
	s.entries = append(s.entries, stackEntry{id: id, env: env, overlay: overlay})
}

// top returns the topmost entry, if any.
func (s *envStack) top() (stackEntry, bool) {
	if len(s.entries) == 0 {
		return stackEntry{}, false
	}
	return s.entries[len(s.entries)-1], true
}

// pop removes and returns the top entry. It fails with a StackOrderError
// if id is not the top; out-of-order removal would leave the overlays
// below inconsistent with what running children already saw.
func (s *envStack) pop(id EnvironmentID) (stackEntry, error) {
	top, ok := s.top()
	if !ok || top.id != id {
		return stackEntry{}, &StackOrderError{ID: id}
	}
	s.entries = s.entries[:len(s.entries)-1]
	return top, nil
}

// currentOverlay returns a copy of the merged variable mapping visible
// to the next action. Empty map when no environments are entered.
func (s *envStack) currentOverlay() map[string]string {
	top, ok := s.top()
	if !ok {
		return map[string]string{}
	}
	overlay := make(map[string]string, len(top.overlay))
	for k, v := range top.overlay {
		overlay[k] = v
	}
	return overlay
}

// depth returns the number of entered environments.
func (s *envStack) depth() int {
	return len(s.entries)
}
