// Package emu provides functional M65832 emulation.
package emu

import "math/bits"

// ALU implements the width-parameterized arithmetic, logic, shift,
// multiply/divide, and bit-manipulation operations. Every operation
// takes the active width in bytes; results are masked to it and the
// flags reflect it.
type ALU struct {
	regFile *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

// Adc adds val and the carry into acc, returning the masked result.
// Decimal mode applies BCD correction for 8- and 16-bit widths.
func (a *ALU) Adc(acc, val uint32, width int) uint32 {
	r := a.regFile
	carry := uint32(0)
	if r.Flag(FlagC) {
		carry = 1
	}
	mask := WidthMask(width)
	sign := signBit(width)

	if r.Flag(FlagD) && width <= 2 {
		result := a.adcBCD(acc&mask, val&mask, carry, width)
		r.SetNZ(result, width)
		return result
	}

	wide := uint64(acc&mask) + uint64(val&mask) + uint64(carry)
	result := uint32(wide) & mask
	r.SetFlag(FlagC, wide > uint64(mask))
	r.SetFlag(FlagV, ^(acc^val)&(acc^result)&sign != 0)
	r.SetNZ(result, width)
	return result
}

func (a *ALU) adcBCD(acc, val, carry uint32, width int) uint32 {
	r := a.regFile
	var result, c uint32
	c = carry
	for digit := 0; digit < width*2; digit++ {
		shift := uint32(digit * 4)
		d := (acc>>shift)&0xF + (val>>shift)&0xF + c
		c = 0
		if d > 9 {
			d += 6
			c = 1
		}
		result |= (d & 0xF) << shift
	}
	r.SetFlag(FlagC, c != 0)
	return result & WidthMask(width)
}

// Sbc subtracts val and the inverted carry from acc.
func (a *ALU) Sbc(acc, val uint32, width int) uint32 {
	r := a.regFile
	borrow := uint32(1)
	if r.Flag(FlagC) {
		borrow = 0
	}
	mask := WidthMask(width)
	sign := signBit(width)
	acc &= mask
	val &= mask

	if r.Flag(FlagD) && width <= 2 {
		result := a.sbcBCD(acc, val, borrow, width)
		r.SetNZ(result, width)
		return result
	}

	result := (acc - val - borrow) & mask
	r.SetFlag(FlagC, acc >= val+borrow)
	r.SetFlag(FlagV, (acc^val)&(acc^result)&sign != 0)
	r.SetNZ(result, width)
	return result
}

func (a *ALU) sbcBCD(acc, val, borrow uint32, width int) uint32 {
	r := a.regFile
	var result uint32
	b := int32(borrow)
	for digit := 0; digit < width*2; digit++ {
		shift := uint32(digit * 4)
		d := int32((acc>>shift)&0xF) - int32((val>>shift)&0xF) - b
		b = 0
		if d < 0 {
			d -= 6
			b = 1
		}
		result |= uint32(d&0xF) << shift
	}
	r.SetFlag(FlagC, b == 0)
	return result & WidthMask(width)
}

// Cmp sets C, Z, N from acc-val without storing a result.
func (a *ALU) Cmp(acc, val uint32, width int) {
	r := a.regFile
	mask := WidthMask(width)
	acc &= mask
	val &= mask
	result := (acc - val) & mask
	r.SetFlag(FlagC, acc >= val)
	r.SetNZ(result, width)
}

// Asl shifts left one bit, moving the top bit into carry.
func (a *ALU) Asl(val uint32, width int) uint32 {
	r := a.regFile
	mask := WidthMask(width)
	r.SetFlag(FlagC, val&signBit(width) != 0)
	result := (val << 1) & mask
	r.SetNZ(result, width)
	return result
}

// Lsr shifts right one bit, moving bit 0 into carry.
func (a *ALU) Lsr(val uint32, width int) uint32 {
	r := a.regFile
	val &= WidthMask(width)
	r.SetFlag(FlagC, val&1 != 0)
	result := val >> 1
	r.SetNZ(result, width)
	return result
}

// Rol rotates left one bit through carry.
func (a *ALU) Rol(val uint32, width int) uint32 {
	r := a.regFile
	mask := WidthMask(width)
	carryIn := uint32(0)
	if r.Flag(FlagC) {
		carryIn = 1
	}
	r.SetFlag(FlagC, val&signBit(width) != 0)
	result := ((val << 1) | carryIn) & mask
	r.SetNZ(result, width)
	return result
}

// Ror rotates right one bit through carry.
func (a *ALU) Ror(val uint32, width int) uint32 {
	r := a.regFile
	mask := WidthMask(width)
	carryIn := uint32(0)
	if r.Flag(FlagC) {
		carryIn = signBit(width)
	}
	val &= mask
	r.SetFlag(FlagC, val&1 != 0)
	result := (val >> 1) | carryIn
	r.SetNZ(result, width)
	return result
}

// Inc adds one at the active width.
func (a *ALU) Inc(val uint32, width int) uint32 {
	result := (val + 1) & WidthMask(width)
	a.regFile.SetNZ(result, width)
	return result
}

// Dec subtracts one at the active width.
func (a *ALU) Dec(val uint32, width int) uint32 {
	result := (val - 1) & WidthMask(width)
	a.regFile.SetNZ(result, width)
	return result
}

// Bit sets Z from acc&val and copies the top two bits of val into
// N and V, the classic BIT semantics generalized to the active width.
func (a *ALU) Bit(acc, val uint32, width int) {
	r := a.regFile
	mask := WidthMask(width)
	r.SetFlag(FlagZ, acc&val&mask == 0)
	r.SetFlag(FlagN, val&signBit(width) != 0)
	r.SetFlag(FlagV, val&(signBit(width)>>1) != 0)
}

// Mul multiplies acc by val. At 32-bit width the full 64-bit product
// is returned as (low, high); at narrower widths the double-width
// product fits in low and high is zero.
func (a *ALU) Mul(acc, val uint32, width int, signed bool) (lo, hi uint32) {
	switch width {
	case 4:
		if signed {
			p := int64(int32(acc)) * int64(int32(val))
			lo, hi = uint32(p), uint32(uint64(p)>>32)
		} else {
			p := uint64(acc) * uint64(val)
			lo, hi = uint32(p), uint32(p>>32)
		}
	case 2:
		if signed {
			lo = uint32(int32(int16(acc)) * int32(int16(val)))
		} else {
			lo = (acc & 0xFFFF) * (val & 0xFFFF)
		}
	default:
		if signed {
			lo = uint32(uint16(int16(int8(acc)) * int16(int8(val))))
		} else {
			lo = (acc & 0xFF) * (val & 0xFF)
		}
	}
	a.regFile.SetNZ(lo, width)
	return lo, hi
}

// Div divides acc by val, returning quotient and remainder. Division
// by zero leaves the inputs unchanged and is reported by ok=false.
func (a *ALU) Div(acc, val uint32, width int, signed bool) (quo, rem uint32, ok bool) {
	if val&WidthMask(width) == 0 {
		return acc, 0, false
	}
	if signed {
		q := int32(acc) / int32(val)
		r := int32(acc) % int32(val)
		quo, rem = uint32(q), uint32(r)
	} else {
		quo, rem = acc/val, acc%val
	}
	a.regFile.SetNZ(quo, width)
	return quo, rem, true
}

// BarrelShift performs a multi-bit shift or rotate in one operation.
func (a *ALU) BarrelShift(op int, val uint32, count uint32, width int) uint32 {
	r := a.regFile
	mask := WidthMask(width)
	topBit := uint32(width*8 - 1)
	val &= mask
	count &= 0x1F

	var result uint32
	switch op {
	case 0: // SHL
		result = (val << count) & mask
		r.SetFlag(FlagC, count > 0 && (val>>(topBit+1-count))&1 != 0)
	case 1: // SHR
		result = val >> count
		r.SetFlag(FlagC, count > 0 && (val>>(count-1))&1 != 0)
	case 2: // SAR
		var sv int32
		switch width {
		case 1:
			sv = int32(int8(val))
		case 2:
			sv = int32(int16(val))
		default:
			sv = int32(val)
		}
		result = uint32(sv>>count) & mask
		r.SetFlag(FlagC, count > 0 && (val>>(count-1))&1 != 0)
	case 3: // ROL through carry
		c := uint32(0)
		if r.Flag(FlagC) {
			c = 1
		}
		for i := uint32(0); i < count; i++ {
			newC := (val >> topBit) & 1
			val = ((val << 1) | c) & mask
			c = newC
		}
		result = val
		r.SetFlag(FlagC, c != 0)
	case 4: // ROR through carry
		c := uint32(0)
		if r.Flag(FlagC) {
			c = 1
		}
		for i := uint32(0); i < count; i++ {
			newC := val & 1
			val = (val >> 1) | (c << topBit)
			c = newC
		}
		result = val
		r.SetFlag(FlagC, c != 0)
	default:
		result = val
	}
	r.SetNZ(result, width)
	return result
}

// Extend performs the sign/zero extension and bit-count operations of
// the extend unit.
func (a *ALU) Extend(subop int, val uint32, width int) uint32 {
	mask := WidthMask(width)
	var result uint32
	switch subop {
	case 0: // SEXT8
		result = uint32(int32(int8(val)))
	case 1: // SEXT16
		result = uint32(int32(int16(val)))
	case 2: // ZEXT8
		result = val & 0xFF
	case 3: // ZEXT16
		result = val & 0xFFFF
	case 4: // CLZ
		result = uint32(bits.LeadingZeros32(val&mask)) - uint32(32-width*8)
	case 5: // CTZ
		if val&mask == 0 {
			result = uint32(width * 8)
		} else {
			result = uint32(bits.TrailingZeros32(val & mask))
		}
	case 6: // POPCNT
		result = uint32(bits.OnesCount32(val & mask))
	default:
		result = val
	}
	a.regFile.SetNZ(result, width)
	return result
}
