// Package bpred provides branch direction predictors driven through a
// speculative lookup/resolve protocol.
//
// Every prediction hands the caller a Record. The caller gives the Record
// back exactly once: to Update when the branch resolves (or when history must
// be recovered after an older misprediction), or to Squash when the
// prediction is annulled. Reusing a consumed Record is a caller bug and
// panics.
package bpred

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"
)

// Predictor is the contract the fetch front end drives. Implementations are
// not safe for concurrent use; the caller sequences all calls.
type Predictor interface {
	sim.Hookable

	// Lookup predicts the direction of the conditional branch at pc and
	// speculatively shifts the prediction into the thread's history.
	Lookup(tid ThreadID, pc uint64) (bool, Record)

	// UncondBranch records an unconditional branch as taken in the thread's
	// history without touching any table.
	UncondBranch(tid ThreadID, pc uint64) Record

	// BTBUpdate clears the newest history bit of the thread, used when the
	// fetch side forces a not-taken prediction. The record is neither
	// consumed nor checked.
	BTBUpdate(tid ThreadID, pc uint64, rec Record)

	// Update consumes rec. With squashed set it rebuilds the thread's history
	// as the record's history followed by the actual outcome. Otherwise it
	// trains the tables with the actual outcome.
	Update(tid ThreadID, pc uint64, taken bool, rec Record, squashed bool)

	// Squash consumes rec and restores the history the record captured.
	Squash(tid ThreadID, rec Record)

	// GetGHR returns the history captured by rec without consuming it.
	GetGHR(tid ThreadID, rec Record) uint64

	// Outstanding returns the number of records not yet consumed.
	Outstanding() int
}

// New builds the predictor selected by config.Type.
func New(config Config) (Predictor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case TypeGAs:
		return NewGAs(config)
	case TypeBimodal:
		return NewBimodal(config)
	}

	return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidConfig, config.Type)
}
