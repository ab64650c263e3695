package actionlog

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

// EventType represents the type of action lifecycle event.
type EventType string

// Event types for action lifecycle transitions.
const (
	EventStart    EventType = "START"
	EventProgress EventType = "PROGRESS"
	EventStatus   EventType = "STATUS"
	EventEnd      EventType = "END"
)

// Event represents one action lifecycle log entry.
type Event struct {
	// Timestamp is when the event occurred.
	Timestamp time.Time

	// Type is the event type (START, PROGRESS, STATUS, END).
	Type EventType

	// Session is the session id.
	Session string

	// Kind is the action kind (ON_ENTER, ON_EXIT, ON_RUN).
	Kind string

	// State is the action state at the time of the event.
	State string

	// Progress is the reported progress percentage (PROGRESS events).
	Progress int

	// Message is the status or failure message, if any.
	Message string

	// ExitCode is the process exit code (END events, when available).
	ExitCode *int

	// Duration is the action runtime (END events).
	Duration time.Duration
}

// Format returns the log entry as a formatted string.
// Format: 2026-01-15T14:32:05Z ACTION END session=demo kind=ON_RUN state=SUCCEEDED exit=0 duration=1.2s
func (e *Event) Format() string {
	var b strings.Builder

	b.WriteString(e.Timestamp.UTC().Format(time.RFC3339))
	b.WriteString(" ACTION ")
	b.WriteString(string(e.Type))

	b.WriteString(" session=")
	b.WriteString(e.Session)
	b.WriteString(" kind=")
	b.WriteString(e.Kind)

	if e.State != "" {
		b.WriteString(" state=")
		b.WriteString(e.State)
	}

	if e.Type == EventProgress {
		b.WriteString(" progress=")
		b.WriteString(strconv.Itoa(e.Progress))
	}

	if e.Message != "" {
		b.WriteString(" msg=")
		b.WriteString(quoteValue(e.Message))
	}

	if e.Type == EventEnd {
		if e.ExitCode != nil {
			b.WriteString(" exit=")
			b.WriteString(strconv.Itoa(*e.ExitCode))
		}
		if e.Duration > 0 {
			b.WriteString(" duration=")
			b.WriteString(e.Duration.Round(time.Millisecond).String())
		}
	}

	return b.String()
}

// quoteValue quotes a value if it contains spaces or special characters.
func quoteValue(v string) string {
	if strings.ContainsAny(v, " \t\"=") {
		return strconv.Quote(v)
	}
	return v
}

// Logger writes action lifecycle events to a writer.
type Logger struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLogger creates a Logger writing to w.
func NewLogger(w io.Writer) *Logger {
	return &Logger{w: w}
}

// Log writes a single event. Timestamp is filled in if zero.
func (l *Logger) Log(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintln(l.w, e.Format())
}
