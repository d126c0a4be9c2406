// Package latency provides per-instruction timing estimates for the
// M65832 engine, configurable via TimingConfig.
package latency

import (
	"github.com/sarchlab/m65sim/insts"
)

// Table provides instruction latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a latency table with the default timing values.
func NewTable() *Table {
	return &Table{config: DefaultTimingConfig()}
}

// NewTableWithConfig creates a latency table with a custom timing
// configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{config: config}
}

// GetLatency returns the execution latency in cycles for the given
// instruction. Memory operands add the load or store cost on top of
// the operation class.
func (t *Table) GetLatency(inst insts.Inst) uint64 {
	switch inst.Op {
	case insts.OpMUL, insts.OpMULU:
		return t.config.MultiplyLatency + t.memoryCost(inst)
	case insts.OpDIV, insts.OpDIVU:
		return t.config.DivideLatency + t.memoryCost(inst)
	case insts.OpTRAP, insts.OpBRK:
		return t.config.TrapLatency
	}

	if t.IsBranchOp(inst.Op) {
		cost := t.config.BranchLatency
		if t.alwaysRedirects(inst.Op) {
			cost += t.config.BranchTakenPenalty
		}
		return cost
	}
	if t.IsLoadOp(inst.Op) {
		return t.config.LoadLatency
	}
	if t.IsStoreOp(inst.Op) {
		return t.config.StoreLatency
	}
	if t.isRMWOp(inst) {
		return t.config.LoadLatency + t.config.StoreLatency
	}
	return t.config.ALULatency + t.memoryCost(inst)
}

// memoryCost is the extra load latency when an ALU-class instruction
// has a memory operand.
func (t *Table) memoryCost(inst insts.Inst) uint64 {
	switch inst.Mode {
	case insts.ModeImplied, insts.ModeAccumulator,
		insts.ModeImmM, insts.ModeImmX,
		insts.ModeImm8, insts.ModeImm16, insts.ModeImm32:
		return 0
	}
	return t.config.LoadLatency
}

// IsLoadOp reports whether the operation reads memory into a register.
func (t *Table) IsLoadOp(op insts.Op) bool {
	switch op {
	case insts.OpLDA, insts.OpLDX, insts.OpLDY, insts.OpLDQ, insts.OpLLI,
		insts.OpWideLDA, insts.OpWideLDX, insts.OpWideLDY,
		insts.OpPLA, insts.OpPLX, insts.OpPLY, insts.OpPLP, insts.OpPLD:
		return true
	}
	return false
}

// IsStoreOp reports whether the operation writes a register to memory.
func (t *Table) IsStoreOp(op insts.Op) bool {
	switch op {
	case insts.OpSTA, insts.OpSTX, insts.OpSTY, insts.OpSTZ, insts.OpSTQ,
		insts.OpSCI, insts.OpWideSTA,
		insts.OpPHA, insts.OpPHX, insts.OpPHY, insts.OpPHP, insts.OpPHD,
		insts.OpPHB, insts.OpPHK, insts.OpPEA, insts.OpPEI, insts.OpPER:
		return true
	}
	return false
}

// IsBranchOp reports whether the operation can redirect control flow.
func (t *Table) IsBranchOp(op insts.Op) bool {
	switch op {
	case insts.OpBPL, insts.OpBMI, insts.OpBVC, insts.OpBVS,
		insts.OpBCC, insts.OpBCS, insts.OpBNE, insts.OpBEQ,
		insts.OpBRA, insts.OpBRL,
		insts.OpJMP, insts.OpJML, insts.OpJSR, insts.OpJSL,
		insts.OpRTS, insts.OpRTL, insts.OpRTI,
		insts.OpWideJMP, insts.OpWideJSR:
		return true
	}
	return false
}

// alwaysRedirects distinguishes unconditional control transfers,
// which always pay the fetch-redirect penalty.
func (t *Table) alwaysRedirects(op insts.Op) bool {
	switch op {
	case insts.OpBRA, insts.OpBRL,
		insts.OpJMP, insts.OpJML, insts.OpJSR, insts.OpJSL,
		insts.OpRTS, insts.OpRTL, insts.OpRTI,
		insts.OpWideJMP, insts.OpWideJSR:
		return true
	}
	return false
}

// isRMWOp reports a read-modify-write memory operand.
func (t *Table) isRMWOp(inst insts.Inst) bool {
	switch inst.Op {
	case insts.OpASL, insts.OpLSR, insts.OpROL, insts.OpROR,
		insts.OpINC, insts.OpDEC, insts.OpTRB, insts.OpTSB, insts.OpCAS:
		return inst.Mode != insts.ModeAccumulator
	}
	return false
}

// CycleFunc adapts the table to the engine's per-instruction cycle
// hook.
func (t *Table) CycleFunc() func(insts.Inst) uint64 {
	return t.GetLatency
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
