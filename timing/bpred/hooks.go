package bpred

import "github.com/sarchlab/akita/v4/sim"

// Hook positions invoked by every predictor. The hook item is an Event.
var (
	// HookPosLookup marks a conditional branch prediction.
	HookPosLookup = &sim.HookPos{Name: "BPred Lookup"}
	// HookPosUncondBranch marks an unconditional branch entering history.
	HookPosUncondBranch = &sim.HookPos{Name: "BPred UncondBranch"}
	// HookPosBTBUpdate marks a forced not-taken fix-up of the newest history bit.
	HookPosBTBUpdate = &sim.HookPos{Name: "BPred BTBUpdate"}
	// HookPosUpdate marks a resolved branch training the tables.
	HookPosUpdate = &sim.HookPos{Name: "BPred Update"}
	// HookPosRecover marks a history recovery through Update with squashed set.
	HookPosRecover = &sim.HookPos{Name: "BPred Recover"}
	// HookPosSquash marks a prediction annulled without resolution.
	HookPosSquash = &sim.HookPos{Name: "BPred Squash"}
)

// Event describes one predictor operation.
type Event struct {
	Thread ThreadID
	PC     uint64

	// Predicted is the direction the predictor gave for the branch.
	Predicted bool
	// Actual is the resolved direction. Only meaningful for updates.
	Actual bool

	// GHR is the thread's history after the operation.
	GHR uint64
	// PriorGHR is the history the record captured, when a record is involved.
	PriorGHR uint64

	// SetIdx and PHTIdx locate the counter the operation read or trained.
	// TableAccess is false when no counter was touched.
	SetIdx      uint64
	PHTIdx      uint64
	TableAccess bool

	Record Record
}

// hookSite is embedded by every predictor strategy.
type hookSite struct {
	*sim.HookableBase
}

func newHookSite() hookSite {
	return hookSite{HookableBase: sim.NewHookableBase()}
}

func (h hookSite) emit(domain sim.Hookable, pos *sim.HookPos, evt Event) {
	if h.NumHooks() == 0 {
		return
	}

	h.InvokeHook(sim.HookCtx{
		Domain: domain,
		Pos:    pos,
		Item:   evt,
	})
}
