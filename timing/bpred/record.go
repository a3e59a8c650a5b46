package bpred

import "fmt"

// Record is the speculative state a predictor hands out with every
// prediction. It is an opaque handle into the predictor's record arena and
// must be passed back exactly once, to Update or Squash. The zero Record is
// never valid.
type Record struct {
	slot uint32
	gen  uint32
}

// IsZero reports whether r is the zero Record.
func (r Record) IsZero() bool {
	return r.gen == 0
}

// String formats the record handle for diagnostics.
func (r Record) String() string {
	return fmt.Sprintf("rec#%d.%d", r.slot, r.gen)
}

// speculativeState is what a prediction depended on.
type speculativeState struct {
	priorGHR  uint64
	predicted bool
	tid       ThreadID
}

type recordSlot struct {
	state speculativeState
	gen   uint32
	live  bool
}

// recordArena owns every outstanding speculative state. Consuming a record
// bumps the slot generation so that a stale handle can never resolve again.
type recordArena struct {
	slots []recordSlot
	free  []uint32
	live  int
}

func (a *recordArena) issue(s speculativeState) Record {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, recordSlot{})
	}

	slot := &a.slots[idx]
	slot.gen++
	if slot.gen == 0 {
		slot.gen = 1
	}
	slot.state = s
	slot.live = true
	a.live++

	return Record{slot: idx, gen: slot.gen}
}

func (a *recordArena) lookup(tid ThreadID, r Record, op string) *recordSlot {
	if r.IsZero() || int(r.slot) >= len(a.slots) {
		panic(fmt.Sprintf("bpred: %s with a record that was never issued (%v)", op, r))
	}

	slot := &a.slots[r.slot]
	if !slot.live || slot.gen != r.gen {
		panic(fmt.Sprintf("bpred: %s with a record that was already consumed (%v)", op, r))
	}
	if slot.state.tid != tid {
		panic(fmt.Sprintf("bpred: %s on thread %d with a record issued to thread %d",
			op, tid, slot.state.tid))
	}

	return slot
}

// peek returns the state behind r without consuming it.
func (a *recordArena) peek(tid ThreadID, r Record, op string) speculativeState {
	return a.lookup(tid, r, op).state
}

// take returns the state behind r and releases the record.
func (a *recordArena) take(tid ThreadID, r Record, op string) speculativeState {
	slot := a.lookup(tid, r, op)
	s := slot.state
	slot.live = false
	slot.state = speculativeState{}
	a.free = append(a.free, r.slot)
	a.live--
	return s
}

func (a *recordArena) outstanding() int {
	return a.live
}
