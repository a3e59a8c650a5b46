// Package frontend drives a branch predictor with a resolved branch trace,
// modelling a fetch stage that runs ahead of branch resolution.
package frontend

import (
	"errors"
	"fmt"
	"io"

	"github.com/sarchlab/bpsim/loader"
	"github.com/sarchlab/bpsim/timing/bpred"
	"github.com/sarchlab/bpsim/trace"
)

// EventSource yields trace events until io.EOF.
type EventSource interface {
	Next() (trace.Event, error)
}

// Stats holds front end statistics.
type Stats struct {
	// Instructions is the number of trace events consumed.
	Instructions uint64
	// Branches is the number of events classified as branches.
	Branches uint64
	// Conditional is the number of conditional branches.
	Conditional uint64
	// Unconditional is the number of unconditional branches.
	Unconditional uint64
	// Mispredictions is the number of conditional branches that resolved
	// against their prediction.
	Mispredictions uint64
	// Flushes is the number of mispredictions that annulled younger branches.
	Flushes uint64
	// Refetches is the number of annulled branches fetched again.
	Refetches uint64
	// Cycles is the modelled fetch time.
	Cycles uint64
}

// Accuracy returns the conditional prediction accuracy as a percentage.
func (s Stats) Accuracy() float64 {
	if s.Conditional == 0 {
		return 0
	}
	return float64(s.Conditional-s.Mispredictions) / float64(s.Conditional) * 100
}

// MPKI returns mispredictions per thousand instructions.
func (s Stats) MPKI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Mispredictions) / float64(s.Instructions) * 1000
}

// inflight is a fetched branch waiting to resolve.
type inflight struct {
	evt  trace.Event
	kind trace.Kind
	rec  bpred.Record

	// predicted is the direction fetch followed.
	predicted bool
}

// FetchUnit feeds trace events through a Predictor.
type FetchUnit struct {
	config  Config
	pred    bpred.Predictor
	program *loader.Program
	threads int

	windows [][]inflight
	replay  []trace.Event
	btb     presenceTable

	stats Stats
}

// Option configures a FetchUnit.
type Option func(*FetchUnit)

// WithProgram supplies an ELF image used to classify events that carry no
// instruction word.
func WithProgram(prog *loader.Program) Option {
	return func(fu *FetchUnit) {
		fu.program = prog
	}
}

// WithThreads sets the number of hardware threads events may name. It must
// not exceed the predictor's thread count. Default: 1.
func WithThreads(n int) Option {
	return func(fu *FetchUnit) {
		fu.threads = n
	}
}

// NewFetchUnit creates a FetchUnit driving pred.
func NewFetchUnit(pred bpred.Predictor, config Config, opts ...Option) (*FetchUnit, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	fu := &FetchUnit{
		config:  config,
		pred:    pred,
		threads: 1,
		btb:     newPresenceTable(config.BTBSize),
	}

	for _, opt := range opts {
		opt(fu)
	}

	if fu.threads < 1 {
		return nil, fmt.Errorf("%w: thread count must be > 0", ErrInvalidConfig)
	}
	fu.windows = make([][]inflight, fu.threads)

	return fu, nil
}

// Stats returns the statistics so far.
func (fu *FetchUnit) Stats() Stats {
	s := fu.stats
	s.Cycles = s.Instructions + s.Refetches + s.Mispredictions*fu.config.MispredictPenalty
	return s
}

// InFlight returns the number of unresolved branches of tid.
func (fu *FetchUnit) InFlight(tid int) int {
	return len(fu.windows[tid])
}

// Run consumes every event from src and drains the windows.
func (fu *FetchUnit) Run(src EventSource) error {
	for {
		evt, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		if err := fu.Step(evt); err != nil {
			return err
		}
	}

	fu.Drain()
	return nil
}

// Step fetches one event. Branches it annuls are fetched again before Step
// returns.
func (fu *FetchUnit) Step(evt trace.Event) error {
	if evt.Thread < 0 || evt.Thread >= fu.threads {
		return fmt.Errorf("event at pc %#x: thread %d out of range [0, %d)",
			evt.PC, evt.Thread, fu.threads)
	}

	fu.stats.Instructions++

	kind := fu.classify(evt)
	if kind == trace.KindNone {
		return nil
	}

	fu.stats.Branches++
	if kind == trace.KindConditional {
		fu.stats.Conditional++
	} else {
		fu.stats.Unconditional++
	}

	fu.fetch(evt, kind)
	fu.runReplay()
	return nil
}

// Drain resolves every in-flight branch. Afterwards no predictor record
// issued by this unit is outstanding.
func (fu *FetchUnit) Drain() {
	for {
		drained := true
		for tid := range fu.windows {
			for len(fu.windows[tid]) > 0 {
				drained = false
				fu.resolveOldest(tid)
				fu.runReplay()
			}
		}
		if drained {
			return
		}
	}
}

func (fu *FetchUnit) classify(evt trace.Event) trace.Kind {
	if evt.HasInst {
		return trace.Classify(evt.Inst)
	}
	if fu.program != nil {
		if word, ok := fu.program.ReadWord(evt.PC); ok {
			return trace.Classify(word)
		}
	}
	return trace.KindConditional
}

func (fu *FetchUnit) fetch(evt trace.Event, kind trace.Kind) {
	tid := bpred.ThreadID(evt.Thread)
	entry := inflight{evt: evt, kind: kind}

	if kind == trace.KindConditional {
		entry.predicted, entry.rec = fu.pred.Lookup(tid, evt.PC)
		if entry.predicted && !fu.btb.hit(evt.PC) {
			fu.pred.BTBUpdate(tid, evt.PC, entry.rec)
			entry.predicted = false
		}
	} else {
		entry.predicted = true
		entry.rec = fu.pred.UncondBranch(tid, evt.PC)
	}

	fu.windows[evt.Thread] = append(fu.windows[evt.Thread], entry)
	if len(fu.windows[evt.Thread]) > fu.config.Depth {
		fu.resolveOldest(evt.Thread)
	}
}

func (fu *FetchUnit) runReplay() {
	for len(fu.replay) > 0 {
		evt := fu.replay[0]
		fu.replay = fu.replay[1:]

		fu.stats.Refetches++
		fu.fetch(evt, fu.classify(evt))
	}
}

func (fu *FetchUnit) resolveOldest(thread int) {
	window := fu.windows[thread]
	oldest := window[0]
	younger := window[1:]
	tid := bpred.ThreadID(thread)

	actual := oldest.evt.Taken || oldest.kind == trace.KindUnconditional

	if actual != oldest.predicted {
		fu.stats.Mispredictions++
		if len(younger) > 0 {
			fu.stats.Flushes++
		}

		squashed := make([]trace.Event, len(younger))
		for i := len(younger) - 1; i >= 0; i-- {
			fu.pred.Squash(tid, younger[i].rec)
			squashed[i] = younger[i].evt
		}
		fu.replay = append(squashed, fu.replay...)
		younger = nil

		// The squashed update consumes the branch's record, so training
		// goes through a fresh record issued beforehand. Recovery then
		// overwrites whatever history that issue shifted in.
		train := fu.pred.UncondBranch(tid, oldest.evt.PC)
		fu.pred.Update(tid, oldest.evt.PC, actual, oldest.rec, true)
		fu.pred.Update(tid, oldest.evt.PC, actual, train, false)
	} else {
		fu.pred.Update(tid, oldest.evt.PC, actual, oldest.rec, false)
	}

	if actual {
		fu.btb.insert(oldest.evt.PC)
	}

	fu.windows[thread] = append(window[:0], younger...)
}
