package session

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/amarsjac/openjd-sessions/internal/actionlog"
	"github.com/amarsjac/openjd-sessions/internal/olog"
)

// Status protocol, v1. A disciplined child reports in-band through its
// output stream with lines of the form:
//
//	openjd_progress: <number 0-100>
//	openjd_status: <free text>
//	openjd_fail: <free text>
//
// A prefix is recognized at the start of the line after optional leading
// whitespace. Control lines are withheld from the log sink; every other
// line is forwarded verbatim and never treated as protocol data.
const (
	progressPrefix = "openjd_progress:"
	statusPrefix   = "openjd_status:"
	failPrefix     = "openjd_fail:"
)

// statusUpdate is one parsed control message.
type statusUpdate struct {
	progress  *int
	status    string
	hasStatus bool
	fail      string
	hasFail   bool
}

// parseControlLine inspects one output line. It returns ok=false for
// ordinary log lines. A recognized prefix with an unparsable payload
// returns an error; such lines are warned about and dropped, never
// forwarded and never fatal to the action.
func parseControlLine(line string) (statusUpdate, bool, error) {
	trimmed := strings.TrimLeft(line, " \t")

	if payload, found := strings.CutPrefix(trimmed, progressPrefix); found {
		payload = strings.TrimSpace(payload)
		v, err := strconv.ParseFloat(payload, 64)
		if err != nil || math.IsNaN(v) {
			return statusUpdate{}, true, fmt.Errorf("progress payload %q is not a number", payload)
		}
		// Clamp to [0,100]; values lower than previously reported are
		// still forwarded as received.
		p := int(math.Round(v))
		if p < 0 {
			p = 0
		} else if p > 100 {
			p = 100
		}
		return statusUpdate{progress: &p}, true, nil
	}

	if payload, found := strings.CutPrefix(trimmed, statusPrefix); found {
		return statusUpdate{status: strings.TrimSpace(payload), hasStatus: true}, true, nil
	}

	if payload, found := strings.CutPrefix(trimmed, failPrefix); found {
		msg := strings.TrimSpace(payload)
		if msg == "" {
			msg = "action reported failure"
		}
		return statusUpdate{fail: msg, hasFail: true}, true, nil
	}

	return statusUpdate{}, false, nil
}

// scanOutput consumes r line by line until EOF, routing control messages
// to update and all other lines to the log sink.
func scanOutput(r io.Reader, sink actionlog.Sink, update func(statusUpdate)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		upd, ctrl, err := parseControlLine(line)
		if err != nil {
			olog.Warn("session: malformed status line ignored: %v", err)
			continue
		}
		if ctrl {
			update(upd)
			continue
		}
		sink.Write(line)
	}
	if err := scanner.Err(); err != nil {
		olog.Warn("session: output stream read error: %v", err)
	}
}
