package bpred

import "fmt"

// ThreadID identifies a hardware thread context.
type ThreadID int

// historyBank holds one global history register per thread. The newest
// outcome lives in bit 0 and no bit at or above the configured width is
// ever kept.
type historyBank struct {
	regs []uint64
	mask uint64
}

func newHistoryBank(numThreads int, bits uint) historyBank {
	return historyBank{
		regs: make([]uint64, numThreads),
		mask: lowMask(bits),
	}
}

func lowMask(bits uint) uint64 {
	if bits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << bits) - 1
}

func (b *historyBank) check(tid ThreadID) {
	if tid < 0 || int(tid) >= len(b.regs) {
		panic(fmt.Sprintf("bpred: thread %d out of range [0, %d)", tid, len(b.regs)))
	}
}

// value returns the current history of tid.
func (b *historyBank) value(tid ThreadID) uint64 {
	b.check(tid)
	return b.regs[tid]
}

// shift appends an outcome as the new low-order bit.
func (b *historyBank) shift(tid ThreadID, taken bool) {
	b.check(tid)
	b.regs[tid] = ((b.regs[tid] << 1) | boolBit(taken)) & b.mask
}

// restore overwrites the history of tid.
func (b *historyBank) restore(tid ThreadID, bits uint64) {
	b.check(tid)
	b.regs[tid] = bits & b.mask
}

// clearNewest clears the most recently shifted bit.
func (b *historyBank) clearNewest(tid ThreadID) {
	b.check(tid)
	b.regs[tid] &= b.mask &^ 1
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
