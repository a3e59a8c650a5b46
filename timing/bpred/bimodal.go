package bpred

// Bimodal implements a saturating counter predictor indexed by branch
// address only. History is tracked per thread so that records behave exactly
// as in GAs, but it never selects a counter.
type Bimodal struct {
	hookSite

	config Config

	// Branch History Table - one counter per address index.
	// With 2-bit counters: 0=Strongly Not Taken, 1=Weakly Not Taken,
	//                      2=Weakly Taken, 3=Strongly Taken
	bht     []SatCounter
	bhtMask uint64
	initial uint8
	history historyBank
	records recordArena
}

// NewBimodal creates a bimodal predictor with 2^TableBits counters, each
// starting weakly taken.
func NewBimodal(config Config) (*Bimodal, error) {
	config.Type = TypeBimodal
	if err := config.Validate(); err != nil {
		return nil, err
	}

	bp := &Bimodal{
		hookSite: newHookSite(),
		config:   config,
		bht:      make([]SatCounter, 1<<config.TableBits),
		bhtMask:  lowMask(config.TableBits),
		initial:  uint8(1) << (config.CounterBits - 1),
		history:  newHistoryBank(config.NumThreads, config.HistoryBits),
	}
	bp.Reset()

	return bp, nil
}

// Reset returns every counter to weakly taken. Outstanding records stay
// valid.
func (bp *Bimodal) Reset() {
	for i := range bp.bht {
		bp.bht[i].SetBits(bp.config.CounterBits)
		bp.bht[i].Reset(bp.initial)
	}
}

// bhtIndex computes the BHT index for a given PC.
func (bp *Bimodal) bhtIndex(pc uint64) uint64 {
	// Use lower bits of PC (excluding alignment bits)
	return (pc >> bp.config.InstShiftAmt) & bp.bhtMask
}

// Counter returns the counter value for pc.
func (bp *Bimodal) Counter(pc uint64) uint8 {
	return bp.bht[bp.bhtIndex(pc)].Read()
}

// History returns the current global history of tid.
func (bp *Bimodal) History(tid ThreadID) uint64 {
	return bp.history.value(tid)
}

// Lookup predicts the branch at pc from its address counter.
func (bp *Bimodal) Lookup(tid ThreadID, pc uint64) (bool, Record) {
	idx := bp.bhtIndex(pc)
	taken := bp.bht[idx].Predict()

	prior := bp.history.value(tid)
	rec := bp.records.issue(speculativeState{priorGHR: prior, predicted: taken, tid: tid})
	bp.history.shift(tid, taken)

	bp.emit(bp, HookPosLookup, Event{
		Thread:      tid,
		PC:          pc,
		Predicted:   taken,
		GHR:         bp.history.value(tid),
		PriorGHR:    prior,
		SetIdx:      idx,
		TableAccess: true,
		Record:      rec,
	})

	return taken, rec
}

// UncondBranch shifts a taken outcome into the history.
func (bp *Bimodal) UncondBranch(tid ThreadID, pc uint64) Record {
	prior := bp.history.value(tid)
	rec := bp.records.issue(speculativeState{priorGHR: prior, predicted: true, tid: tid})
	bp.history.shift(tid, true)

	bp.emit(bp, HookPosUncondBranch, Event{
		Thread:    tid,
		PC:        pc,
		Predicted: true,
		GHR:       bp.history.value(tid),
		PriorGHR:  prior,
		Record:    rec,
	})

	return rec
}

// BTBUpdate clears the newest history bit of tid.
func (bp *Bimodal) BTBUpdate(tid ThreadID, pc uint64, rec Record) {
	bp.history.clearNewest(tid)

	bp.emit(bp, HookPosBTBUpdate, Event{
		Thread: tid,
		PC:     pc,
		GHR:    bp.history.value(tid),
		Record: rec,
	})
}

// Update consumes rec and either recovers history or trains the counter
// for pc.
func (bp *Bimodal) Update(tid ThreadID, pc uint64, taken bool, rec Record, squashed bool) {
	state := bp.records.take(tid, rec, "update")

	if squashed {
		bp.history.restore(tid, (state.priorGHR<<1)|boolBit(taken))

		bp.emit(bp, HookPosRecover, Event{
			Thread:    tid,
			PC:        pc,
			Predicted: state.predicted,
			Actual:    taken,
			GHR:       bp.history.value(tid),
			PriorGHR:  state.priorGHR,
			Record:    rec,
		})
		return
	}

	idx := bp.bhtIndex(pc)
	if taken {
		bp.bht[idx].Increment()
	} else {
		bp.bht[idx].Decrement()
	}

	bp.emit(bp, HookPosUpdate, Event{
		Thread:      tid,
		PC:          pc,
		Predicted:   state.predicted,
		Actual:      taken,
		GHR:         bp.history.value(tid),
		PriorGHR:    state.priorGHR,
		SetIdx:      idx,
		TableAccess: true,
		Record:      rec,
	})
}

// Squash consumes rec and restores the history it captured.
func (bp *Bimodal) Squash(tid ThreadID, rec Record) {
	state := bp.records.take(tid, rec, "squash")
	bp.history.restore(tid, state.priorGHR)

	bp.emit(bp, HookPosSquash, Event{
		Thread:    tid,
		Predicted: state.predicted,
		GHR:       bp.history.value(tid),
		PriorGHR:  state.priorGHR,
		Record:    rec,
	})
}

// GetGHR returns the history rec captured.
func (bp *Bimodal) GetGHR(tid ThreadID, rec Record) uint64 {
	return bp.records.peek(tid, rec, "getGHR").priorGHR
}

// Outstanding returns the number of unconsumed records.
func (bp *Bimodal) Outstanding() int {
	return bp.records.outstanding()
}
