package session

// Callback receives every status transition for a session's actions. It
// runs on the session's notification goroutine, never on the goroutine
// that invoked the triggering method. Implementations should treat it as
// fire-and-forget or hand off to a queue; a blocking callback delays
// later notifications but never session method calls.
type Callback func(sessionID string, status ActionStatus)

// notifier delivers statuses to the callback in the order posted, from a
// single dedicated goroutine.
type notifier struct {
	sessionID string
	cb        Callback
	ch        chan ActionStatus
	done      chan struct{}
}

func newNotifier(sessionID string, cb Callback) *notifier {
	n := &notifier{
		sessionID: sessionID,
		cb:        cb,
		ch:        make(chan ActionStatus, 64),
		done:      make(chan struct{}),
	}
	go n.loop()
	return n
}

func (n *notifier) loop() {
	defer close(n.done)
	for st := range n.ch {
		n.cb(n.sessionID, st)
	}
}

// post enqueues one status for delivery.
func (n *notifier) post(st ActionStatus) {
	n.ch <- st
}

// close stops the notifier after draining queued statuses.
func (n *notifier) close() {
	close(n.ch)
	<-n.done
}
