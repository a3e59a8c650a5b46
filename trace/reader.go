// Package trace reads branch traces and classifies ARM64 branch
// instructions.
//
// A trace is line oriented. Each line holds one resolved branch:
//
//	<tid> <pc> <outcome> [<inst>]
//
// tid is decimal, pc and inst are hexadecimal with an optional 0x prefix,
// and outcome is T or N (1/0 and taken/not-taken are accepted as well).
// Blank lines and everything after '#' are ignored.
package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Event is one branch in a trace.
type Event struct {
	Thread int
	PC     uint64
	Taken  bool

	// Inst is the instruction word, valid when HasInst is set.
	Inst    uint32
	HasInst bool
}

// Reader reads Events from a trace.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{scanner: bufio.NewScanner(r)}
}

// Next returns the next event, or io.EOF when the trace is exhausted.
func (r *Reader) Next() (Event, error) {
	for r.scanner.Scan() {
		r.line++

		text := r.scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		evt, err := parseFields(fields)
		if err != nil {
			return Event{}, fmt.Errorf("trace line %d: %w", r.line, err)
		}
		return evt, nil
	}

	if err := r.scanner.Err(); err != nil {
		return Event{}, fmt.Errorf("failed to read trace: %w", err)
	}
	return Event{}, io.EOF
}

// ReadAll reads every remaining event.
func (r *Reader) ReadAll() ([]Event, error) {
	var events []Event
	for {
		evt, err := r.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, evt)
	}
}

func parseFields(fields []string) (Event, error) {
	if len(fields) < 3 || len(fields) > 4 {
		return Event{}, fmt.Errorf("expected 3 or 4 fields, got %d", len(fields))
	}

	tid, err := strconv.Atoi(fields[0])
	if err != nil || tid < 0 {
		return Event{}, fmt.Errorf("invalid thread id %q", fields[0])
	}

	pc, err := parseHex(fields[1], 64)
	if err != nil {
		return Event{}, fmt.Errorf("invalid pc %q", fields[1])
	}

	taken, err := parseOutcome(fields[2])
	if err != nil {
		return Event{}, err
	}

	evt := Event{Thread: tid, PC: pc, Taken: taken}
	if len(fields) == 4 {
		inst, err := parseHex(fields[3], 32)
		if err != nil {
			return Event{}, fmt.Errorf("invalid instruction word %q", fields[3])
		}
		evt.Inst = uint32(inst)
		evt.HasInst = true
	}

	return evt, nil
}

func parseHex(s string, bits int) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return strconv.ParseUint(s, 16, bits)
}

func parseOutcome(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "t", "1", "taken":
		return true, nil
	case "n", "0", "not-taken":
		return false, nil
	}
	return false, fmt.Errorf("invalid outcome %q", s)
}

// Write formats an event as a trace line.
func Write(w io.Writer, evt Event) error {
	outcome := "N"
	if evt.Taken {
		outcome = "T"
	}

	var err error
	if evt.HasInst {
		_, err = fmt.Fprintf(w, "%d %#x %s 0x%08x\n", evt.Thread, evt.PC, outcome, evt.Inst)
	} else {
		_, err = fmt.Fprintf(w, "%d %#x %s\n", evt.Thread, evt.PC, outcome)
	}
	return err
}
