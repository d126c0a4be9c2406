package emu

import "github.com/sarchlab/m65sim/insts"

// BranchUnit implements conditional branch evaluation and PC-relative
// target arithmetic. Displacements are always applied from the address
// just past the full instruction encoding, never from its start.
type BranchUnit struct {
	regFile *RegFile
}

// NewBranchUnit creates a branch unit bound to the register file.
func NewBranchUnit(regFile *RegFile) *BranchUnit {
	return &BranchUnit{regFile: regFile}
}

// Taken reports whether a conditional branch operation fires under the
// current flags.
func (b *BranchUnit) Taken(op insts.Op) bool {
	r := b.regFile
	switch op {
	case insts.OpBPL:
		return !r.Flag(FlagN)
	case insts.OpBMI:
		return r.Flag(FlagN)
	case insts.OpBVC:
		return !r.Flag(FlagV)
	case insts.OpBVS:
		return r.Flag(FlagV)
	case insts.OpBCC:
		return !r.Flag(FlagC)
	case insts.OpBCS:
		return r.Flag(FlagC)
	case insts.OpBNE:
		return !r.Flag(FlagZ)
	case insts.OpBEQ:
		return r.Flag(FlagZ)
	case insts.OpBRA, insts.OpBRL:
		return true
	}
	return false
}

// Target computes the destination of a relative branch: the end of the
// instruction encoding plus the signed displacement.
func (b *BranchUnit) Target(inst insts.Inst) uint32 {
	switch inst.Mode {
	case insts.ModeRel16:
		return inst.End() + uint32(int32(int16(inst.Arg)))
	default:
		return inst.End() + uint32(int32(int8(inst.Arg)))
	}
}
