package bpred

// GAs is a global-history, per-address-set two-level predictor. Branch
// address bits pick one of 2^TableBits pattern history tables and the
// thread's global history picks the counter inside that table. The tables
// are shared by all threads; each thread owns its history register.
type GAs struct {
	hookSite

	config  Config
	history historyBank
	phts    phtSet
	records recordArena
}

// NewGAs creates a GAs predictor with every counter at zero.
func NewGAs(config Config) (*GAs, error) {
	config.Type = TypeGAs
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &GAs{
		hookSite: newHookSite(),
		config:   config,
		history:  newHistoryBank(config.NumThreads, config.HistoryBits),
		phts: newPHTSet(config.TableBits, config.HistoryBits,
			config.CounterBits, config.InstShiftAmt),
	}, nil
}

// Config returns the construction parameters.
func (p *GAs) Config() Config {
	return p.config
}

// History returns the current global history of tid.
func (p *GAs) History(tid ThreadID) uint64 {
	return p.history.value(tid)
}

// Counter returns the counter value the next lookup of pc on tid would read.
func (p *GAs) Counter(tid ThreadID, pc uint64) uint8 {
	return p.phts.entryFor(pc, p.history.value(tid)).Read()
}

// CounterAt returns the counter at table setIdx, entry phtIdx.
func (p *GAs) CounterAt(setIdx, phtIdx uint64) uint8 {
	return p.phts.tables[setIdx][phtIdx].Read()
}

// Counters returns a copy of every counter value, by table then entry.
func (p *GAs) Counters() [][]uint8 {
	out := make([][]uint8, len(p.phts.tables))
	for i, table := range p.phts.tables {
		out[i] = make([]uint8, len(table))
		for j := range table {
			out[i][j] = table[j].Read()
		}
	}
	return out
}

// Lookup predicts the branch at pc from the counter selected by pc and the
// thread's current history, then shifts the prediction into the history.
func (p *GAs) Lookup(tid ThreadID, pc uint64) (bool, Record) {
	prior := p.history.value(tid)
	counter := p.phts.entryFor(pc, prior)
	taken := counter.Predict()

	rec := p.records.issue(speculativeState{
		priorGHR:  prior,
		predicted: taken,
		tid:       tid,
	})
	p.history.shift(tid, taken)

	p.emit(p, HookPosLookup, Event{
		Thread:      tid,
		PC:          pc,
		Predicted:   taken,
		GHR:         p.history.value(tid),
		PriorGHR:    prior,
		SetIdx:      p.phts.setIndex(pc),
		PHTIdx:      p.phts.phtIndex(prior),
		TableAccess: true,
		Record:      rec,
	})

	return taken, rec
}

// UncondBranch shifts a taken outcome into the history.
func (p *GAs) UncondBranch(tid ThreadID, pc uint64) Record {
	prior := p.history.value(tid)
	rec := p.records.issue(speculativeState{
		priorGHR:  prior,
		predicted: true,
		tid:       tid,
	})
	p.history.shift(tid, true)

	p.emit(p, HookPosUncondBranch, Event{
		Thread:    tid,
		PC:        pc,
		Predicted: true,
		GHR:       p.history.value(tid),
		PriorGHR:  prior,
		Record:    rec,
	})

	return rec
}

// BTBUpdate clears the newest history bit of tid.
func (p *GAs) BTBUpdate(tid ThreadID, pc uint64, rec Record) {
	p.history.clearNewest(tid)

	p.emit(p, HookPosBTBUpdate, Event{
		Thread: tid,
		PC:     pc,
		GHR:    p.history.value(tid),
		Record: rec,
	})
}

// Update consumes rec. A squashed update rebuilds the history as the
// record's history followed by the actual outcome and leaves the tables
// alone. A normal update trains the counter selected by pc and the thread's
// current history.
func (p *GAs) Update(tid ThreadID, pc uint64, taken bool, rec Record, squashed bool) {
	state := p.records.take(tid, rec, "update")

	if squashed {
		p.history.restore(tid, (state.priorGHR<<1)|boolBit(taken))

		p.emit(p, HookPosRecover, Event{
			Thread:    tid,
			PC:        pc,
			Predicted: state.predicted,
			Actual:    taken,
			GHR:       p.history.value(tid),
			PriorGHR:  state.priorGHR,
			Record:    rec,
		})
		return
	}

	history := p.history.value(tid)
	counter := p.phts.entryFor(pc, history)
	if taken {
		counter.Increment()
	} else {
		counter.Decrement()
	}

	p.emit(p, HookPosUpdate, Event{
		Thread:      tid,
		PC:          pc,
		Predicted:   state.predicted,
		Actual:      taken,
		GHR:         history,
		PriorGHR:    state.priorGHR,
		SetIdx:      p.phts.setIndex(pc),
		PHTIdx:      p.phts.phtIndex(history),
		TableAccess: true,
		Record:      rec,
	})
}

// Squash consumes rec and restores the history it captured.
func (p *GAs) Squash(tid ThreadID, rec Record) {
	state := p.records.take(tid, rec, "squash")
	p.history.restore(tid, state.priorGHR)

	p.emit(p, HookPosSquash, Event{
		Thread:    tid,
		Predicted: state.predicted,
		GHR:       p.history.value(tid),
		PriorGHR:  state.priorGHR,
		Record:    rec,
	})
}

// GetGHR returns the history rec captured.
func (p *GAs) GetGHR(tid ThreadID, rec Record) uint64 {
	return p.records.peek(tid, rec, "getGHR").priorGHR
}

// Outstanding returns the number of unconsumed records.
func (p *GAs) Outstanding() int {
	return p.records.outstanding()
}
