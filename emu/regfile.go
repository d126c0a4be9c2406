// Package emu provides functional M65832 emulation.
package emu

// Status register flag bits.
const (
	FlagC  uint16 = 0x0001 // carry
	FlagZ  uint16 = 0x0002 // zero
	FlagI  uint16 = 0x0004 // IRQ disable
	FlagD  uint16 = 0x0008 // decimal
	FlagX0 uint16 = 0x0010 // index width low bit
	FlagX1 uint16 = 0x0020 // index width high bit
	FlagM0 uint16 = 0x0040 // accumulator width low bit
	FlagM1 uint16 = 0x0080 // accumulator width high bit
	FlagV  uint16 = 0x0100 // overflow
	FlagN  uint16 = 0x0200 // negative
	FlagE  uint16 = 0x0400 // emulation mode
	FlagS  uint16 = 0x0800 // supervisor
	FlagR  uint16 = 0x1000 // register window active
	FlagK  uint16 = 0x2000 // compatibility (unknown opcodes execute as NOP)
)

// NumRegs is the size of the general-purpose register window (R0-R63).
const NumRegs = 64

// RegFile holds the complete visible processor state: the classic
// accumulator/index set, the upper accumulator T (multiply high /
// divide remainder), the direct-page, stack, and data-bank bases, the
// 16-bit status register, and the 64-entry register window.
type RegFile struct {
	A  uint32 // accumulator
	X  uint32 // index X
	Y  uint32 // index Y
	T  uint32 // upper accumulator
	D  uint32 // direct-page base
	S  uint32 // stack pointer
	B  uint32 // data-bank base
	PC uint32
	P  uint16

	// R is the general-purpose register window, addressable through
	// direct-page operands when FlagR is set.
	R [NumRegs]uint32
}

// Reset places the processor in its power-on state: emulation mode,
// supervisor, interrupts disabled, page-one stack. The caller loads PC
// from the reset vector afterwards.
func (r *RegFile) Reset() {
	*r = RegFile{
		P: FlagE | FlagS | FlagI | FlagD,
		S: 0x1FF,
	}
}

// Flag reports whether the given status bit is set.
func (r *RegFile) Flag(bit uint16) bool {
	return r.P&bit != 0
}

// SetFlag sets or clears one status bit.
func (r *RegFile) SetFlag(bit uint16, on bool) {
	if on {
		r.P |= bit
	} else {
		r.P &^= bit
	}
}

// WidthM returns the active accumulator width in bytes (1, 2, or 4)
// from the M1:M0 selector. The selector applies in both emulation and
// native mode.
func (r *RegFile) WidthM() int {
	return widthFromBits(r.Flag(FlagM1), r.Flag(FlagM0))
}

// WidthX returns the active index width in bytes from X1:X0.
func (r *RegFile) WidthX() int {
	return widthFromBits(r.Flag(FlagX1), r.Flag(FlagX0))
}

func widthFromBits(hi, lo bool) int {
	switch {
	case hi:
		return 4
	case lo:
		return 2
	default:
		return 1
	}
}

// MaskM is the value mask for the active accumulator width.
func (r *RegFile) MaskM() uint32 {
	return WidthMask(r.WidthM())
}

// MaskX is the value mask for the active index width.
func (r *RegFile) MaskX() uint32 {
	return WidthMask(r.WidthX())
}

// WidthMask returns the all-ones mask for a width in bytes.
func WidthMask(width int) uint32 {
	switch width {
	case 1:
		return 0xFF
	case 2:
		return 0xFFFF
	default:
		return 0xFFFFFFFF
	}
}

// SetNZ updates the negative and zero flags from a result at the given
// width. N reflects the top bit of the active width, not a fixed size.
func (r *RegFile) SetNZ(val uint32, width int) {
	mask := WidthMask(width)
	r.SetFlag(FlagZ, val&mask == 0)
	r.SetFlag(FlagN, val&signBit(width) != 0)
}

func signBit(width int) uint32 {
	return 1 << (width*8 - 1)
}

// SetA writes the accumulator at the given width, preserving the high
// bytes outside the active width.
func (r *RegFile) SetA(val uint32, width int) {
	mask := WidthMask(width)
	r.A = (r.A &^ mask) | (val & mask)
}

// SetX writes the X index at the given width. Narrow index writes
// clear the high bytes, matching index-register semantics.
func (r *RegFile) SetX(val uint32, width int) {
	r.X = val & WidthMask(width)
}

// SetY writes the Y index at the given width.
func (r *RegFile) SetY(val uint32, width int) {
	r.Y = val & WidthMask(width)
}

// Reg reads general-purpose register n. Indices are masked into range;
// the decoder guarantees 0-63 for architected encodings.
func (r *RegFile) Reg(n int) uint32 {
	return r.R[n&(NumRegs-1)]
}

// SetReg writes general-purpose register n.
func (r *RegFile) SetReg(n int, val uint32) {
	r.R[n&(NumRegs-1)] = val
}

// EnterNative32 switches the processor to full 32-bit native mode:
// native, 32-bit accumulator and index widths, binary arithmetic, and
// a top-of-low-memory stack. Mirrors the firmware bring-up sequence.
func (r *RegFile) EnterNative32() {
	r.SetFlag(FlagE, false)
	r.SetFlag(FlagM1, true)
	r.SetFlag(FlagM0, false)
	r.SetFlag(FlagX1, true)
	r.SetFlag(FlagX0, false)
	r.SetFlag(FlagD, false)
	r.S = 0xFFFF
}
