package bpred

import (
	"fmt"
	"io"

	"github.com/sarchlab/akita/v4/sim"
)

// Stats holds counts of predictor operations.
type Stats struct {
	// Lookups is the number of conditional branch predictions made.
	Lookups uint64
	// Unconditional is the number of unconditional branches recorded.
	Unconditional uint64
	// BTBUpdates is the number of forced not-taken history fix-ups.
	BTBUpdates uint64
	// Updates is the number of resolved branches that trained the tables.
	Updates uint64
	// Correct is the number of updates whose prediction matched the outcome.
	Correct uint64
	// Mispredictions is the number of updates whose prediction was wrong.
	Mispredictions uint64
	// Recoveries is the number of squashed updates.
	Recoveries uint64
	// Squashes is the number of annulled predictions.
	Squashes uint64
}

// Accuracy returns the prediction accuracy as a percentage.
func (s Stats) Accuracy() float64 {
	if s.Updates == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Updates) * 100
}

// MispredictionRate returns the misprediction rate as a percentage.
func (s Stats) MispredictionRate() float64 {
	if s.Updates == 0 {
		return 0
	}
	return float64(s.Mispredictions) / float64(s.Updates) * 100
}

// StatsHook counts predictor events. Attach it with AcceptHook.
//
// A squashed update marks its branch as mispredicted; the next training
// update on the same thread is that branch being trained and counts as a
// misprediction whatever direction its record carried.
type StatsHook struct {
	stats     Stats
	recovered map[ThreadID]bool
}

// NewStatsHook creates an empty StatsHook.
func NewStatsHook() *StatsHook {
	return &StatsHook{recovered: make(map[ThreadID]bool)}
}

// Func implements sim.Hook.
func (h *StatsHook) Func(ctx sim.HookCtx) {
	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	switch ctx.Pos {
	case HookPosLookup:
		h.stats.Lookups++
	case HookPosUncondBranch:
		h.stats.Unconditional++
	case HookPosBTBUpdate:
		h.stats.BTBUpdates++
	case HookPosUpdate:
		h.stats.Updates++
		switch {
		case h.recovered[evt.Thread]:
			delete(h.recovered, evt.Thread)
			h.stats.Mispredictions++
		case evt.Predicted == evt.Actual:
			h.stats.Correct++
		default:
			h.stats.Mispredictions++
		}
	case HookPosRecover:
		h.stats.Recoveries++
		h.recovered[evt.Thread] = true
	case HookPosSquash:
		h.stats.Squashes++
	}
}

// Stats returns the counts so far.
func (h *StatsHook) Stats() Stats {
	return h.stats
}

// Reset clears the counts.
func (h *StatsHook) Reset() {
	h.stats = Stats{}
	h.recovered = make(map[ThreadID]bool)
}

// TraceHook prints one line per predictor event.
type TraceHook struct {
	w io.Writer
}

// NewTraceHook creates a TraceHook writing to w.
func NewTraceHook(w io.Writer) *TraceHook {
	return &TraceHook{w: w}
}

// Func implements sim.Hook.
func (h *TraceHook) Func(ctx sim.HookCtx) {
	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	switch ctx.Pos {
	case HookPosLookup:
		fmt.Fprintf(h.w, "[tid %d] lookup pc=%#x setIdx=%#x phtIdx=%#x taken=%t ghr=%#x\n",
			evt.Thread, evt.PC, evt.SetIdx, evt.PHTIdx, evt.Predicted, evt.GHR)
	case HookPosUncondBranch:
		fmt.Fprintf(h.w, "[tid %d] uncond pc=%#x ghr=%#x\n", evt.Thread, evt.PC, evt.GHR)
	case HookPosBTBUpdate:
		fmt.Fprintf(h.w, "[tid %d] btb-update pc=%#x ghr=%#x\n", evt.Thread, evt.PC, evt.GHR)
	case HookPosUpdate:
		fmt.Fprintf(h.w, "[tid %d] update pc=%#x setIdx=%#x phtIdx=%#x taken=%t predicted=%t\n",
			evt.Thread, evt.PC, evt.SetIdx, evt.PHTIdx, evt.Actual, evt.Predicted)
	case HookPosRecover:
		fmt.Fprintf(h.w, "[tid %d] recover pc=%#x taken=%t ghr=%#x\n",
			evt.Thread, evt.PC, evt.Actual, evt.GHR)
	case HookPosSquash:
		fmt.Fprintf(h.w, "[tid %d] squash ghr=%#x\n", evt.Thread, evt.GHR)
	}
}
