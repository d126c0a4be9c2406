package emu

import (
	"github.com/sarchlab/m65sim/insts"
)

// RegWindowBase marks effective addresses that resolve into the
// general-purpose register file instead of the bus. Direct-page
// operands produce marker addresses when the R status bit is set; the
// load/store unit intercepts them on every access path.
const RegWindowBase = 0xFFFFFF00

// LoadStoreUnit resolves addressing modes to effective addresses and
// performs width-parameterized loads and stores, including the
// register-window redirection, variable-width stack operations, and
// the LL/SC reservation.
type LoadStoreUnit struct {
	regFile *RegFile
	memory  *Memory

	llAddr  uint32
	llValid bool
}

// NewLoadStoreUnit creates a load/store unit bound to the register
// file and bus.
func NewLoadStoreUnit(regFile *RegFile, memory *Memory) *LoadStoreUnit {
	return &LoadStoreUnit{regFile: regFile, memory: memory}
}

// Load reads a value at the effective address, honoring the register
// window marker range.
func (lsu *LoadStoreUnit) Load(addr uint32, width int) (uint32, error) {
	if addr >= RegWindowBase {
		return lsu.readWindow(addr, width), nil
	}
	return lsu.memory.Load(addr, width)
}

// Store writes a value at the effective address. Every store
// invalidates the LL/SC reservation.
func (lsu *LoadStoreUnit) Store(addr uint32, width int, val uint32) error {
	lsu.llValid = false
	if addr >= RegWindowBase {
		lsu.writeWindow(addr, width, val)
		return nil
	}
	return lsu.memory.Store(addr, width, val)
}

// readWindow assembles a value from the register file, byte-granular
// so sub-word window accesses behave like memory.
func (lsu *LoadStoreUnit) readWindow(addr uint32, width int) uint32 {
	var v uint32
	for i := 0; i < width; i++ {
		off := (addr + uint32(i)) & 0xFF
		reg := lsu.regFile.Reg(int(off >> 2))
		v |= ((reg >> ((off & 3) * 8)) & 0xFF) << (8 * i)
	}
	return v
}

func (lsu *LoadStoreUnit) writeWindow(addr uint32, width int, val uint32) {
	for i := 0; i < width; i++ {
		off := (addr + uint32(i)) & 0xFF
		n := int(off >> 2)
		shift := (off & 3) * 8
		reg := lsu.regFile.Reg(n)
		reg = (reg &^ (0xFF << shift)) | ((val >> (8 * i) & 0xFF) << shift)
		lsu.regFile.SetReg(n, reg)
	}
}

// LoadLinked performs a load and records a reservation for a later
// store-conditional.
func (lsu *LoadStoreUnit) LoadLinked(addr uint32, width int) (uint32, error) {
	v, err := lsu.Load(addr, width)
	if err != nil {
		return 0, err
	}
	lsu.llAddr = addr
	lsu.llValid = true
	return v, nil
}

// StoreConditional writes only if the reservation from the last
// LoadLinked is still intact for addr. The reservation is consumed
// either way.
func (lsu *LoadStoreUnit) StoreConditional(addr uint32, width int, val uint32) (bool, error) {
	ok := lsu.llValid && lsu.llAddr == addr
	lsu.llValid = false
	if !ok {
		return false, nil
	}
	if addr >= RegWindowBase {
		lsu.writeWindow(addr, width, val)
		return true, nil
	}
	return true, lsu.memory.Store(addr, width, val)
}

// Push writes a value of the given width onto the stack, high byte
// first, decrementing S per byte. Emulation mode wraps within page 1.
func (lsu *LoadStoreUnit) Push(val uint32, width int) error {
	for i := width - 1; i >= 0; i-- {
		if err := lsu.pushByte(byte(val >> (8 * i))); err != nil {
			return err
		}
	}
	return nil
}

func (lsu *LoadStoreUnit) pushByte(b byte) error {
	r := lsu.regFile
	if r.Flag(FlagE) {
		err := lsu.memory.WriteByte(0x100|(r.S&0xFF), b)
		r.S = 0x100 | ((r.S - 1) & 0xFF)
		return err
	}
	err := lsu.memory.WriteByte(r.S, b)
	r.S--
	return err
}

// Pull reads a value of the given width off the stack, low byte first.
func (lsu *LoadStoreUnit) Pull(width int) (uint32, error) {
	var v uint32
	for i := 0; i < width; i++ {
		b, err := lsu.pullByte()
		if err != nil {
			return 0, err
		}
		v |= uint32(b) << (8 * i)
	}
	return v, nil
}

func (lsu *LoadStoreUnit) pullByte() (byte, error) {
	r := lsu.regFile
	if r.Flag(FlagE) {
		r.S = 0x100 | ((r.S + 1) & 0xFF)
		return lsu.memory.ReadByte(0x100 | (r.S & 0xFF))
	}
	r.S++
	return lsu.memory.ReadByte(r.S)
}

// dpAddr resolves a direct-page offset, redirecting into the register
// window when the R bit is set.
func (lsu *LoadStoreUnit) dpAddr(offset uint32) uint32 {
	r := lsu.regFile
	if r.Flag(FlagR) {
		return RegWindowBase | (offset & 0xFF)
	}
	return r.D + (offset & 0xFF)
}

func (lsu *LoadStoreUnit) dpAddrX(offset uint32) uint32 {
	r := lsu.regFile
	if r.Flag(FlagR) {
		return RegWindowBase | ((offset + r.X&0xFF) & 0xFF)
	}
	return r.D + (offset & 0xFF) + r.X
}

// pointerWidth is the size of an indirect pointer: 16 bits for the
// legacy modes, 32 in full native width.
func (lsu *LoadStoreUnit) pointerWidth() int {
	r := lsu.regFile
	if r.Flag(FlagE) || r.WidthM() <= 2 {
		return 2
	}
	return 4
}

// EffectiveAddr resolves an instruction's addressing mode to the
// effective address of its memory operand. Immediate and implied
// modes have no effective address and are handled by the caller.
func (lsu *LoadStoreUnit) EffectiveAddr(inst insts.Inst) (uint32, error) {
	r := lsu.regFile
	arg := inst.Arg
	switch inst.Mode {
	case insts.ModeDP:
		return lsu.dpAddr(arg), nil
	case insts.ModeDPX:
		return lsu.dpAddrX(arg), nil
	case insts.ModeDPY:
		return r.D + (arg & 0xFF) + r.Y, nil
	case insts.ModeAbs:
		return r.B + (arg & 0xFFFF), nil
	case insts.ModeAbsX:
		return r.B + (arg & 0xFFFF) + r.X, nil
	case insts.ModeAbsY:
		return r.B + (arg & 0xFFFF) + r.Y, nil
	case insts.ModeAbs32:
		return arg, nil
	case insts.ModeAbs32X:
		return arg + r.X, nil
	case insts.ModeAbs32Y:
		return arg + r.Y, nil
	case insts.ModeLong:
		return arg & 0xFFFFFF, nil
	case insts.ModeLongX:
		return (arg & 0xFFFFFF) + r.X, nil
	case insts.ModeDPInd:
		return lsu.Load(lsu.dpAddr(arg), lsu.pointerWidth())
	case insts.ModeDPIndX:
		return lsu.Load(lsu.dpAddrX(arg), lsu.pointerWidth())
	case insts.ModeDPIndY:
		base, err := lsu.Load(r.D+(arg&0xFF), lsu.pointerWidth())
		if err != nil {
			return 0, err
		}
		return base + r.Y, nil
	case insts.ModeDPIndL:
		return lsu.Load(r.D+(arg&0xFF), 4)
	case insts.ModeDPIndLY:
		base, err := lsu.Load(r.D+(arg&0xFF), 4)
		if err != nil {
			return 0, err
		}
		return base + r.Y, nil
	case insts.ModeSR:
		return r.S + (arg & 0xFF), nil
	case insts.ModeSRIndY:
		base, err := lsu.Load(r.S+(arg&0xFF), lsu.pointerWidth())
		if err != nil {
			return 0, err
		}
		return base + r.Y, nil
	case insts.ModeAbsInd:
		return lsu.Load(arg&0xFFFF, 2)
	case insts.ModeAbsIndX:
		return lsu.Load((arg&0xFFFF)+r.X, 2)
	case insts.ModeAbsIndL:
		return lsu.Load(arg&0xFFFF, 4)
	}
	return 0, nil
}

// RegALUSrcAddr resolves the source operand of a register-targeted
// ALU instruction for the given mode nibble. The immediate and
// accumulator modes have no address and are resolved by the caller.
func (lsu *LoadStoreUnit) RegALUSrcAddr(mode byte, arg uint32) (uint32, error) {
	r := lsu.regFile
	switch mode {
	case insts.RegSrcDP:
		return lsu.dpAddr(arg), nil
	case insts.RegSrcDPX:
		return lsu.dpAddrX(arg), nil
	case insts.RegSrcAbs:
		return r.B + (arg & 0xFFFF), nil
	case insts.RegSrcAbsX:
		return r.B + (arg & 0xFFFF) + r.X, nil
	case insts.RegSrcAbsY:
		return r.B + (arg & 0xFFFF) + r.Y, nil
	case insts.RegSrcDPInd:
		return lsu.Load(lsu.dpAddr(arg), lsu.pointerWidth())
	case insts.RegSrcDPIndX:
		return lsu.Load(lsu.dpAddrX(arg), lsu.pointerWidth())
	case insts.RegSrcDPIndY:
		base, err := lsu.Load(r.D+(arg&0xFF), lsu.pointerWidth())
		if err != nil {
			return 0, err
		}
		return base + r.Y, nil
	case insts.RegSrcDPIndL:
		return lsu.Load(r.D+(arg&0xFF), 4)
	case insts.RegSrcDPILY:
		base, err := lsu.Load(r.D+(arg&0xFF), 4)
		if err != nil {
			return 0, err
		}
		return base + r.Y, nil
	case insts.RegSrcSR:
		return r.S + (arg & 0xFF), nil
	case insts.RegSrcSRIndY:
		base, err := lsu.Load(r.S+(arg&0xFF), lsu.pointerWidth())
		if err != nil {
			return 0, err
		}
		return base + r.Y, nil
	}
	return 0, nil
}
