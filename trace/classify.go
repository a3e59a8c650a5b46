package trace

import (
	"encoding/binary"

	"golang.org/x/arch/arm64/arm64asm"
)

// Kind is the branch class of an instruction.
type Kind int

// Branch classes.
const (
	KindNone Kind = iota
	KindConditional
	KindUnconditional
)

func (k Kind) String() string {
	switch k {
	case KindConditional:
		return "conditional"
	case KindUnconditional:
		return "unconditional"
	default:
		return "none"
	}
}

// Classify decodes an ARM64 instruction word and reports whether it is a
// conditional branch, an unconditional branch, or neither. Words that do not
// decode are not branches.
func Classify(word uint32) Kind {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], word)

	inst, err := arm64asm.Decode(buf[:])
	if err != nil {
		return KindNone
	}

	switch inst.Op {
	case arm64asm.CBZ, arm64asm.CBNZ, arm64asm.TBZ, arm64asm.TBNZ:
		return KindConditional
	case arm64asm.B:
		// B.cond decodes as B with the condition as its first operand.
		if _, ok := inst.Args[0].(arm64asm.Cond); ok {
			return KindConditional
		}
		return KindUnconditional
	case arm64asm.BL, arm64asm.BR, arm64asm.BLR, arm64asm.RET:
		return KindUnconditional
	}

	return KindNone
}
