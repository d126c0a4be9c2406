// Package timing estimates cycle costs for the M65832 engine. It
// combines the per-class latency table with a modeled data cache and
// feeds the result into the engine's cycle hook. The model never
// changes architectural state; the functional engine stays the sole
// authority on results.
package timing

import (
	"github.com/sarchlab/m65sim/emu"
	"github.com/sarchlab/m65sim/insts"
	"github.com/sarchlab/m65sim/timing/cache"
	"github.com/sarchlab/m65sim/timing/latency"
)

// Model prices each instruction from the latency table, replacing the
// flat memory cost with a cache simulation when a data cache is
// configured.
type Model struct {
	table    *latency.Table
	cacheCfg *cache.Config
	dcache   *cache.Cache
	em       *emu.Emulator
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithLatencyTable overrides the default latency table.
func WithLatencyTable(table *latency.Table) ModelOption {
	return func(m *Model) { m.table = table }
}

// WithDataCache enables the data-cache model with the given geometry.
func WithDataCache(cfg cache.Config) ModelOption {
	return func(m *Model) { m.cacheCfg = &cfg }
}

// NewModel creates a timing model. Attach binds it to an engine.
func NewModel(opts ...ModelOption) *Model {
	m := &Model{table: latency.NewTable()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Attach binds the model to an engine instance and installs it as the
// engine's cycle hook.
func (m *Model) Attach(em *emu.Emulator) {
	m.em = em
	if m.cacheCfg != nil {
		m.dcache = cache.New(*m.cacheCfg, cache.NewBusBacking(em.Memory()))
	}
	em.SetCycleFunc(m.Cycles)
}

// Table returns the model's latency table.
func (m *Model) Table() *latency.Table {
	return m.table
}

// CacheStats returns the data-cache counters, or zeroes when no cache
// is modeled.
func (m *Model) CacheStats() cache.Statistics {
	if m.dcache == nil {
		return cache.Statistics{}
	}
	return m.dcache.Stats()
}

// Cycles prices one instruction. The hook runs before the engine
// executes it, so effective addresses resolve against pre-execution
// register state.
func (m *Model) Cycles(inst insts.Inst) uint64 {
	if m.dcache == nil {
		return m.table.GetLatency(inst)
	}

	isLoad := m.table.IsLoadOp(inst.Op)
	isStore := m.table.IsStoreOp(inst.Op)
	if !isLoad && !isStore {
		return m.table.GetLatency(inst)
	}

	addr, ok := m.dataAddr(inst)
	if !ok {
		return m.table.GetLatency(inst)
	}

	width := m.em.RegFile().WidthM()
	cfg := m.table.Config()
	if isStore {
		res := m.dcache.Write(addr, width, 0)
		return cfg.ALULatency + res.Latency
	}
	res := m.dcache.Read(addr, width)
	return cfg.ALULatency + res.Latency
}

// dataAddr resolves the memory operand address when the instruction
// has one that is safe to model: immediate and implied modes have no
// address, and device or register-window targets bypass the cache.
func (m *Model) dataAddr(inst insts.Inst) (uint32, bool) {
	switch inst.Mode {
	case insts.ModeImplied, insts.ModeAccumulator,
		insts.ModeImmM, insts.ModeImmX,
		insts.ModeImm8, insts.ModeImm16, insts.ModeImm32:
		return 0, false
	}
	addr, err := m.em.LSU().EffectiveAddr(inst)
	if err != nil {
		return 0, false
	}
	if addr >= emu.RegWindowBase || m.em.Memory().IsDevice(addr) {
		return 0, false
	}
	return addr, true
}
