// Package actionlog routes child-process output and records per-action
// lifecycle events. Event entries follow a key=value format suitable for
// parsing and analysis.
package actionlog

import (
	"io"
	"sync"
)

// Sink receives one line of child-process output at a time. Lines are
// delivered without a trailing newline. Implementations must be safe for
// use from a single goroutine; the session runtime never writes to one
// sink from two goroutines at once.
type Sink interface {
	Write(line string)
}

// WriterSink adapts an io.Writer into a Sink, appending a newline to each
// line. A mutex makes it safe to share between tests and the runtime.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a WriterSink over w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Write appends line and a newline to the underlying writer.
func (s *WriterSink) Write(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = io.WriteString(s.w, line+"\n")
}

// DiscardSink drops all lines. Used when a session has no log file.
type DiscardSink struct{}

// Write discards the line.
func (DiscardSink) Write(string) {}

// TeeSink forwards each line to every member sink in order.
type TeeSink []Sink

// Write forwards line to each member.
func (t TeeSink) Write(line string) {
	for _, s := range t {
		s.Write(line)
	}
}
