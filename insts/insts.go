// Package insts provides M65832 instruction definitions and decoding.
//
// The M65832 extends the 65816 instruction set to 32-bit operation:
// operand widths follow the M/X mode bits (8, 16, or 32 bits), two
// prefix bytes open extension spaces ($42 for wide/32-bit forms, $02
// for the extended ALU, atomics, and register-file operations), and
// direct-page operands can be redirected into the 64-entry register
// file when the R status bit is set.
//
// The instruction set is represented as dense lookup tables keyed by
// opcode byte, so the full map is auditable as data:
//
//	desc := insts.Primary[0xA9] // LDA #imm
//	length := insts.OperandLen(desc.Mode, widthM, widthX)
package insts

// Op identifies an operation class independent of addressing mode.
type Op uint8

// Primary-map operations.
const (
	OpIllegal Op = iota
	OpLDA
	OpLDX
	OpLDY
	OpSTA
	OpSTX
	OpSTY
	OpSTZ
	OpADC
	OpSBC
	OpCMP
	OpCPX
	OpCPY
	OpAND
	OpORA
	OpEOR
	OpBIT
	OpASL
	OpLSR
	OpROL
	OpROR
	OpINC
	OpDEC
	OpINX
	OpINY
	OpDEX
	OpDEY
	OpTRB
	OpTSB
	OpTAX
	OpTAY
	OpTXA
	OpTYA
	OpTSX
	OpTXS
	OpTXY
	OpTYX
	OpTCD
	OpTDC
	OpTCS
	OpTSC
	OpXBA
	OpPHA
	OpPLA
	OpPHX
	OpPLX
	OpPHY
	OpPLY
	OpPHP
	OpPLP
	OpPHD
	OpPLD
	OpPHB
	OpPHK
	OpPEA
	OpPEI
	OpPER
	OpBPL
	OpBMI
	OpBVC
	OpBVS
	OpBCC
	OpBCS
	OpBNE
	OpBEQ
	OpBRA
	OpBRL
	OpJMP
	OpJML
	OpJSR
	OpJSL
	OpRTS
	OpRTL
	OpRTI
	OpBRK
	OpCLC
	OpSEC
	OpCLI
	OpSEI
	OpCLD
	OpSED
	OpCLV
	OpREP
	OpSEP
	OpXCE
	OpNOP
	OpWAI
	OpSTP
	OpMVN
	OpMVP
	OpWIDPrefix
	OpExtPrefix
)

// Extended-map ($02 prefix) operations.
const (
	OpMUL Op = iota + 128
	OpMULU
	OpDIV
	OpDIVU
	OpCAS
	OpLLI
	OpSCI
	OpENR
	OpDSR
	OpTRAP
	OpFENCE
	OpTTA
	OpTAT
	OpLDQ
	OpSTQ
	OpLEA
	OpSD
	OpSB
	OpRegALU
	OpRegShift
	OpRegExt
)

// Wide-map ($42 prefix) operations.
const (
	OpWideLDA Op = iota + 192
	OpWideLDX
	OpWideLDY
	OpWideSTA
	OpWideJMP
	OpWideJSR
	OpDebugSignal
)

// AddrMode identifies how an instruction's operand bytes resolve to a
// value or effective address.
type AddrMode uint8

const (
	ModeImplied AddrMode = iota
	ModeAccumulator
	ModeImmM  // immediate sized by the accumulator width
	ModeImmX  // immediate sized by the index width
	ModeImm8  // fixed one-byte immediate (REP, SEP, TRAP)
	ModeImm16 // fixed two-byte immediate (PEA)
	ModeImm32 // fixed four-byte immediate (wide loads)
	ModeDP
	ModeDPX
	ModeDPY
	ModeAbs
	ModeAbsX
	ModeAbsY
	ModeAbs32  // four-byte absolute (wide forms)
	ModeAbs32X // four-byte absolute, X-indexed
	ModeAbs32Y // four-byte absolute, Y-indexed
	ModeDPInd
	ModeDPIndX
	ModeDPIndY
	ModeDPIndL
	ModeDPIndLY
	ModeSR
	ModeSRIndY
	ModeLong
	ModeLongX
	ModeAbsInd
	ModeAbsIndX
	ModeAbsIndL
	ModeRel8
	ModeRel16
	ModeBlockMove // two bank bytes (MVN/MVP)
	ModeRegOp2    // two operand bytes (register-file ops: dest, src)
)

// Desc describes one opcode table entry.
type Desc struct {
	Op   Op
	Mode AddrMode
	// Cycles is the base cycle cost before addressing-mode and width
	// penalties applied by the timing table.
	Cycles uint8
}

// OperandLen returns the number of operand bytes following the opcode
// (and any prefix byte), given the active accumulator and index widths
// in bytes.
func OperandLen(mode AddrMode, widthM, widthX int) int {
	switch mode {
	case ModeImplied, ModeAccumulator:
		return 0
	case ModeImmM:
		return widthM
	case ModeImmX:
		return widthX
	case ModeImm8, ModeDP, ModeDPX, ModeDPY, ModeDPInd, ModeDPIndX,
		ModeDPIndY, ModeDPIndL, ModeDPIndLY, ModeSR, ModeSRIndY, ModeRel8:
		return 1
	case ModeImm16, ModeAbs, ModeAbsX, ModeAbsY, ModeAbsInd, ModeAbsIndX,
		ModeAbsIndL, ModeRel16, ModeBlockMove, ModeRegOp2:
		return 2
	case ModeLong, ModeLongX:
		return 3
	case ModeImm32, ModeAbs32, ModeAbs32X, ModeAbs32Y:
		return 4
	}
	return 0
}

// Primary is the base opcode map. Entries left zero decode as OpIllegal.
var Primary = [256]Desc{
	// LDA
	0xA9: {OpLDA, ModeImmM, 2},
	0xA5: {OpLDA, ModeDP, 3},
	0xB5: {OpLDA, ModeDPX, 4},
	0xAD: {OpLDA, ModeAbs, 4},
	0xBD: {OpLDA, ModeAbsX, 4},
	0xB9: {OpLDA, ModeAbsY, 4},
	0xA1: {OpLDA, ModeDPIndX, 6},
	0xB1: {OpLDA, ModeDPIndY, 5},
	0xB2: {OpLDA, ModeDPInd, 5},
	0xA7: {OpLDA, ModeDPIndL, 6},
	0xB7: {OpLDA, ModeDPIndLY, 6},
	0xA3: {OpLDA, ModeSR, 4},
	0xB3: {OpLDA, ModeSRIndY, 7},
	0xAB: {OpLDA, ModeLong, 5},
	0xAF: {OpLDA, ModeLongX, 5},
	// LDX
	0xA2: {OpLDX, ModeImmX, 2},
	0xA6: {OpLDX, ModeDP, 3},
	0xB6: {OpLDX, ModeDPY, 4},
	0xAE: {OpLDX, ModeAbs, 4},
	0xBE: {OpLDX, ModeAbsY, 4},
	// LDY
	0xA0: {OpLDY, ModeImmX, 2},
	0xA4: {OpLDY, ModeDP, 3},
	0xB4: {OpLDY, ModeDPX, 4},
	0xAC: {OpLDY, ModeAbs, 4},
	0xBC: {OpLDY, ModeAbsX, 4},
	// STA
	0x85: {OpSTA, ModeDP, 3},
	0x95: {OpSTA, ModeDPX, 4},
	0x8D: {OpSTA, ModeAbs, 4},
	0x9D: {OpSTA, ModeAbsX, 5},
	0x99: {OpSTA, ModeAbsY, 5},
	0x81: {OpSTA, ModeDPIndX, 6},
	0x91: {OpSTA, ModeDPIndY, 6},
	0x92: {OpSTA, ModeDPInd, 5},
	0x87: {OpSTA, ModeDPIndL, 6},
	0x97: {OpSTA, ModeDPIndLY, 6},
	0x83: {OpSTA, ModeSR, 4},
	0x93: {OpSTA, ModeSRIndY, 7},
	0x8F: {OpSTA, ModeLong, 5},
	0x9F: {OpSTA, ModeLongX, 5},
	// STX / STY / STZ
	0x86: {OpSTX, ModeDP, 3},
	0x96: {OpSTX, ModeDPY, 4},
	0x8E: {OpSTX, ModeAbs, 4},
	0x84: {OpSTY, ModeDP, 3},
	0x94: {OpSTY, ModeDPX, 4},
	0x8C: {OpSTY, ModeAbs, 4},
	0x64: {OpSTZ, ModeDP, 3},
	0x74: {OpSTZ, ModeDPX, 4},
	0x9C: {OpSTZ, ModeAbs, 4},
	0x9E: {OpSTZ, ModeAbsX, 5},
	// ADC
	0x69: {OpADC, ModeImmM, 2},
	0x65: {OpADC, ModeDP, 3},
	0x75: {OpADC, ModeDPX, 4},
	0x6D: {OpADC, ModeAbs, 4},
	0x7D: {OpADC, ModeAbsX, 4},
	0x79: {OpADC, ModeAbsY, 4},
	0x61: {OpADC, ModeDPIndX, 6},
	0x71: {OpADC, ModeDPIndY, 5},
	0x72: {OpADC, ModeDPInd, 5},
	0x67: {OpADC, ModeDPIndL, 6},
	0x77: {OpADC, ModeDPIndLY, 6},
	0x63: {OpADC, ModeSR, 4},
	0x73: {OpADC, ModeSRIndY, 7},
	// SBC
	0xE9: {OpSBC, ModeImmM, 2},
	0xE5: {OpSBC, ModeDP, 3},
	0xF5: {OpSBC, ModeDPX, 4},
	0xED: {OpSBC, ModeAbs, 4},
	0xFD: {OpSBC, ModeAbsX, 4},
	0xF9: {OpSBC, ModeAbsY, 4},
	0xE1: {OpSBC, ModeDPIndX, 6},
	0xF1: {OpSBC, ModeDPIndY, 5},
	0xF2: {OpSBC, ModeDPInd, 5},
	0xE7: {OpSBC, ModeDPIndL, 6},
	0xF7: {OpSBC, ModeDPIndLY, 6},
	0xE3: {OpSBC, ModeSR, 4},
	0xF3: {OpSBC, ModeSRIndY, 7},
	// CMP
	0xC9: {OpCMP, ModeImmM, 2},
	0xC5: {OpCMP, ModeDP, 3},
	0xD5: {OpCMP, ModeDPX, 4},
	0xCD: {OpCMP, ModeAbs, 4},
	0xDD: {OpCMP, ModeAbsX, 4},
	0xD9: {OpCMP, ModeAbsY, 4},
	0xC1: {OpCMP, ModeDPIndX, 6},
	0xD1: {OpCMP, ModeDPIndY, 5},
	0xD2: {OpCMP, ModeDPInd, 5},
	0xC7: {OpCMP, ModeDPIndL, 6},
	0xD7: {OpCMP, ModeDPIndLY, 6},
	0xC3: {OpCMP, ModeSR, 4},
	0xD3: {OpCMP, ModeSRIndY, 7},
	// CPX / CPY
	0xE0: {OpCPX, ModeImmX, 2},
	0xE4: {OpCPX, ModeDP, 3},
	0xEC: {OpCPX, ModeAbs, 4},
	0xC0: {OpCPY, ModeImmX, 2},
	0xC4: {OpCPY, ModeDP, 3},
	0xCC: {OpCPY, ModeAbs, 4},
	// AND
	0x29: {OpAND, ModeImmM, 2},
	0x25: {OpAND, ModeDP, 3},
	0x35: {OpAND, ModeDPX, 4},
	0x2D: {OpAND, ModeAbs, 4},
	0x3D: {OpAND, ModeAbsX, 4},
	0x39: {OpAND, ModeAbsY, 4},
	0x21: {OpAND, ModeDPIndX, 6},
	0x31: {OpAND, ModeDPIndY, 5},
	0x32: {OpAND, ModeDPInd, 5},
	0x27: {OpAND, ModeDPIndL, 6},
	0x37: {OpAND, ModeDPIndLY, 6},
	0x23: {OpAND, ModeSR, 4},
	0x33: {OpAND, ModeSRIndY, 7},
	// ORA
	0x09: {OpORA, ModeImmM, 2},
	0x05: {OpORA, ModeDP, 3},
	0x15: {OpORA, ModeDPX, 4},
	0x0D: {OpORA, ModeAbs, 4},
	0x1D: {OpORA, ModeAbsX, 4},
	0x19: {OpORA, ModeAbsY, 4},
	0x01: {OpORA, ModeDPIndX, 6},
	0x11: {OpORA, ModeDPIndY, 5},
	0x12: {OpORA, ModeDPInd, 5},
	0x07: {OpORA, ModeDPIndL, 6},
	0x17: {OpORA, ModeDPIndLY, 6},
	0x03: {OpORA, ModeSR, 4},
	0x13: {OpORA, ModeSRIndY, 7},
	// EOR
	0x49: {OpEOR, ModeImmM, 2},
	0x45: {OpEOR, ModeDP, 3},
	0x55: {OpEOR, ModeDPX, 4},
	0x4D: {OpEOR, ModeAbs, 4},
	0x5D: {OpEOR, ModeAbsX, 4},
	0x59: {OpEOR, ModeAbsY, 4},
	0x41: {OpEOR, ModeDPIndX, 6},
	0x51: {OpEOR, ModeDPIndY, 5},
	0x52: {OpEOR, ModeDPInd, 5},
	0x47: {OpEOR, ModeDPIndL, 6},
	0x57: {OpEOR, ModeDPIndLY, 6},
	0x43: {OpEOR, ModeSR, 4},
	0x53: {OpEOR, ModeSRIndY, 7},
	// BIT
	0x89: {OpBIT, ModeImmM, 2},
	0x24: {OpBIT, ModeDP, 3},
	0x34: {OpBIT, ModeDPX, 4},
	0x2C: {OpBIT, ModeAbs, 4},
	0x3C: {OpBIT, ModeAbsX, 4},
	// Shifts and rotates
	0x0A: {OpASL, ModeAccumulator, 2},
	0x06: {OpASL, ModeDP, 5},
	0x16: {OpASL, ModeDPX, 6},
	0x0E: {OpASL, ModeAbs, 6},
	0x1E: {OpASL, ModeAbsX, 7},
	0x4A: {OpLSR, ModeAccumulator, 2},
	0x46: {OpLSR, ModeDP, 5},
	0x56: {OpLSR, ModeDPX, 6},
	0x4E: {OpLSR, ModeAbs, 6},
	0x5E: {OpLSR, ModeAbsX, 7},
	0x2A: {OpROL, ModeAccumulator, 2},
	0x26: {OpROL, ModeDP, 5},
	0x36: {OpROL, ModeDPX, 6},
	0x2E: {OpROL, ModeAbs, 6},
	0x3E: {OpROL, ModeAbsX, 7},
	0x6A: {OpROR, ModeAccumulator, 2},
	0x66: {OpROR, ModeDP, 5},
	0x76: {OpROR, ModeDPX, 6},
	0x6E: {OpROR, ModeAbs, 6},
	0x7E: {OpROR, ModeAbsX, 7},
	// INC / DEC
	0x1A: {OpINC, ModeAccumulator, 2},
	0xE6: {OpINC, ModeDP, 5},
	0xF6: {OpINC, ModeDPX, 6},
	0xEE: {OpINC, ModeAbs, 6},
	0xFE: {OpINC, ModeAbsX, 7},
	0x3A: {OpDEC, ModeAccumulator, 2},
	0xC6: {OpDEC, ModeDP, 5},
	0xD6: {OpDEC, ModeDPX, 6},
	0xCE: {OpDEC, ModeAbs, 6},
	0xDE: {OpDEC, ModeAbsX, 7},
	0xE8: {OpINX, ModeImplied, 2},
	0xC8: {OpINY, ModeImplied, 2},
	0xCA: {OpDEX, ModeImplied, 2},
	0x88: {OpDEY, ModeImplied, 2},
	// TRB / TSB
	0x14: {OpTRB, ModeDP, 5},
	0x1C: {OpTRB, ModeAbs, 6},
	0x04: {OpTSB, ModeDP, 5},
	0x0C: {OpTSB, ModeAbs, 6},
	// Transfers
	0xAA: {OpTAX, ModeImplied, 2},
	0xA8: {OpTAY, ModeImplied, 2},
	0x8A: {OpTXA, ModeImplied, 2},
	0x98: {OpTYA, ModeImplied, 2},
	0xBA: {OpTSX, ModeImplied, 2},
	0x9A: {OpTXS, ModeImplied, 2},
	0x9B: {OpTXY, ModeImplied, 2},
	0xBB: {OpTYX, ModeImplied, 2},
	0x5B: {OpTCD, ModeImplied, 2},
	0x7B: {OpTDC, ModeImplied, 2},
	0x1B: {OpTCS, ModeImplied, 2},
	0x3B: {OpTSC, ModeImplied, 2},
	0xEB: {OpXBA, ModeImplied, 3},
	// Stack
	0x48: {OpPHA, ModeImplied, 3},
	0x68: {OpPLA, ModeImplied, 4},
	0xDA: {OpPHX, ModeImplied, 3},
	0xFA: {OpPLX, ModeImplied, 4},
	0x5A: {OpPHY, ModeImplied, 3},
	0x7A: {OpPLY, ModeImplied, 4},
	0x08: {OpPHP, ModeImplied, 3},
	0x28: {OpPLP, ModeImplied, 4},
	0x0B: {OpPHD, ModeImplied, 4},
	0x2B: {OpPLD, ModeImplied, 5},
	0x8B: {OpPHB, ModeImplied, 3},
	0x4B: {OpPHK, ModeImplied, 3},
	0xF4: {OpPEA, ModeImm16, 5},
	0xD4: {OpPEI, ModeDP, 6},
	0x62: {OpPER, ModeRel16, 6},
	// Branches
	0x10: {OpBPL, ModeRel8, 2},
	0x30: {OpBMI, ModeRel8, 2},
	0x50: {OpBVC, ModeRel8, 2},
	0x70: {OpBVS, ModeRel8, 2},
	0x90: {OpBCC, ModeRel8, 2},
	0xB0: {OpBCS, ModeRel8, 2},
	0xD0: {OpBNE, ModeRel8, 2},
	0xF0: {OpBEQ, ModeRel8, 2},
	0x80: {OpBRA, ModeRel8, 3},
	0x82: {OpBRL, ModeRel16, 4},
	// Jumps and calls
	0x4C: {OpJMP, ModeAbs, 3},
	0x5C: {OpJMP, ModeLong, 4},
	0x6C: {OpJMP, ModeAbsInd, 5},
	0x7C: {OpJMP, ModeAbsIndX, 6},
	0xDC: {OpJML, ModeAbsIndL, 6},
	0x20: {OpJSR, ModeAbs, 6},
	0x22: {OpJSL, ModeLong, 8},
	0xFC: {OpJSR, ModeAbsIndX, 8},
	0x60: {OpRTS, ModeImplied, 6},
	0x6B: {OpRTL, ModeImplied, 6},
	0x40: {OpRTI, ModeImplied, 6},
	0x00: {OpBRK, ModeImplied, 7},
	// Flag operations
	0x18: {OpCLC, ModeImplied, 2},
	0x38: {OpSEC, ModeImplied, 2},
	0x58: {OpCLI, ModeImplied, 2},
	0x78: {OpSEI, ModeImplied, 2},
	0xD8: {OpCLD, ModeImplied, 2},
	0xF8: {OpSED, ModeImplied, 2},
	0xB8: {OpCLV, ModeImplied, 2},
	0xC2: {OpREP, ModeImm8, 3},
	0xE2: {OpSEP, ModeImm8, 3},
	0xFB: {OpXCE, ModeImplied, 2},
	// System
	0xEA: {OpNOP, ModeImplied, 2},
	0xCB: {OpWAI, ModeImplied, 3},
	0xDB: {OpSTP, ModeImplied, 3},
	0x44: {OpMVN, ModeBlockMove, 7},
	0x54: {OpMVP, ModeBlockMove, 7},
	// Prefixes
	0x42: {OpWIDPrefix, ModeImplied, 0},
	0x02: {OpExtPrefix, ModeImplied, 0},
}

// Extended is the $02-prefix opcode map, keyed by the sub-opcode byte.
var Extended = [256]Desc{
	0x00: {OpMUL, ModeDP, 10},
	0x01: {OpMULU, ModeDP, 10},
	0x02: {OpMUL, ModeAbs, 11},
	0x03: {OpMULU, ModeAbs, 11},
	0x04: {OpDIV, ModeDP, 20},
	0x05: {OpDIVU, ModeDP, 20},
	0x06: {OpDIV, ModeAbs, 21},
	0x07: {OpDIVU, ModeAbs, 21},
	0x10: {OpCAS, ModeDP, 8},
	0x11: {OpCAS, ModeAbs, 9},
	0x12: {OpLLI, ModeDP, 5},
	0x13: {OpLLI, ModeAbs, 6},
	0x14: {OpSCI, ModeDP, 6},
	0x15: {OpSCI, ModeAbs, 7},
	0x20: {OpSD, ModeImm32, 4},
	0x21: {OpSD, ModeDP, 5},
	0x22: {OpSB, ModeImm32, 4},
	0x23: {OpSB, ModeDP, 5},
	0x24: {OpSD, ModeImm32, 4},
	0x25: {OpSD, ModeDP, 5},
	0x30: {OpENR, ModeImplied, 2},
	0x31: {OpDSR, ModeImplied, 2},
	0x40: {OpTRAP, ModeImm8, 8},
	0x50: {OpFENCE, ModeImplied, 2},
	0x51: {OpFENCE, ModeImplied, 2},
	0x52: {OpFENCE, ModeImplied, 2},
	0x86: {OpTTA, ModeImplied, 2},
	0x87: {OpTAT, ModeImplied, 2},
	0x88: {OpLDQ, ModeDP, 7},
	0x89: {OpLDQ, ModeAbs, 8},
	0x8A: {OpSTQ, ModeDP, 7},
	0x8B: {OpSTQ, ModeAbs, 8},
	0xA0: {OpLEA, ModeDP, 3},
	0xA1: {OpLEA, ModeDPX, 3},
	0xA2: {OpLEA, ModeAbs, 4},
	0xA3: {OpLEA, ModeAbsX, 4},
	0xE8: {OpRegALU, ModeRegOp2, 4},
	0xE9: {OpRegShift, ModeRegOp2, 4},
	0xEA: {OpRegExt, ModeRegOp2, 4},
}

// Wide is the $42-prefix opcode map: 32-bit immediate and 32-bit
// absolute forms, plus the debug signal at sub-op $01.
var Wide = [256]Desc{
	0x01: {OpDebugSignal, ModeImplied, 2},
	0xA9: {OpWideLDA, ModeImm32, 3},
	0xA2: {OpWideLDX, ModeImm32, 3},
	0xA0: {OpWideLDY, ModeImm32, 3},
	0xAD: {OpWideLDA, ModeAbs32, 5},
	0xBD: {OpWideLDA, ModeAbs32X, 5},
	0xB9: {OpWideLDA, ModeAbs32Y, 5},
	0x8D: {OpWideSTA, ModeAbs32, 5},
	0x9D: {OpWideSTA, ModeAbs32X, 5},
	0x99: {OpWideSTA, ModeAbs32Y, 5},
	0x4C: {OpWideJMP, ModeAbs32, 4},
	0x20: {OpWideJSR, ModeAbs32, 7},
}

// RegALU source-mode field values for the $02 $E8 register-targeted
// ALU encoding: high nibble selects the operation, low nibble the
// source addressing mode.
const (
	RegALULd  = 0
	RegALUAdc = 1
	RegALUSbc = 2
	RegALUAnd = 3
	RegALUOra = 4
	RegALUEor = 5
	RegALUCmp = 6

	RegSrcDPIndX = 0x0
	RegSrcDP     = 0x1
	RegSrcImm    = 0x2
	RegSrcA      = 0x3
	RegSrcDPIndY = 0x4
	RegSrcDPX    = 0x5
	RegSrcAbs    = 0x6
	RegSrcAbsX   = 0x7
	RegSrcAbsY   = 0x8
	RegSrcDPInd  = 0x9
	RegSrcDPIndL = 0xA
	RegSrcDPILY  = 0xB
	RegSrcSR     = 0xC
	RegSrcSRIndY = 0xD
)

// RegShift operation field values for the $02 $E9 barrel shifter.
const (
	ShiftSHL = 0
	ShiftSHR = 1
	ShiftSAR = 2
	ShiftROL = 3
	ShiftROR = 4

	// ShiftCountFromA in the count field selects a dynamic count taken
	// from the low five bits of the accumulator.
	ShiftCountFromA = 0x1F
)

// RegExt sub-operation values for the $02 $EA extend unit.
const (
	ExtSEXT8  = 0
	ExtSEXT16 = 1
	ExtZEXT8  = 2
	ExtZEXT16 = 3
	ExtCLZ    = 4
	ExtCTZ    = 5
	ExtPOPCNT = 6
)

var opNames = map[Op]string{
	OpIllegal: "???", OpLDA: "LDA", OpLDX: "LDX", OpLDY: "LDY",
	OpSTA: "STA", OpSTX: "STX", OpSTY: "STY", OpSTZ: "STZ",
	OpADC: "ADC", OpSBC: "SBC", OpCMP: "CMP", OpCPX: "CPX", OpCPY: "CPY",
	OpAND: "AND", OpORA: "ORA", OpEOR: "EOR", OpBIT: "BIT",
	OpASL: "ASL", OpLSR: "LSR", OpROL: "ROL", OpROR: "ROR",
	OpINC: "INC", OpDEC: "DEC", OpINX: "INX", OpINY: "INY",
	OpDEX: "DEX", OpDEY: "DEY", OpTRB: "TRB", OpTSB: "TSB",
	OpTAX: "TAX", OpTAY: "TAY", OpTXA: "TXA", OpTYA: "TYA",
	OpTSX: "TSX", OpTXS: "TXS", OpTXY: "TXY", OpTYX: "TYX",
	OpTCD: "TCD", OpTDC: "TDC", OpTCS: "TCS", OpTSC: "TSC", OpXBA: "XBA",
	OpPHA: "PHA", OpPLA: "PLA", OpPHX: "PHX", OpPLX: "PLX",
	OpPHY: "PHY", OpPLY: "PLY", OpPHP: "PHP", OpPLP: "PLP",
	OpPHD: "PHD", OpPLD: "PLD", OpPHB: "PHB", OpPHK: "PHK",
	OpPEA: "PEA", OpPEI: "PEI", OpPER: "PER",
	OpBPL: "BPL", OpBMI: "BMI", OpBVC: "BVC", OpBVS: "BVS",
	OpBCC: "BCC", OpBCS: "BCS", OpBNE: "BNE", OpBEQ: "BEQ",
	OpBRA: "BRA", OpBRL: "BRL",
	OpJMP: "JMP", OpJML: "JML", OpJSR: "JSR", OpJSL: "JSL",
	OpRTS: "RTS", OpRTL: "RTL", OpRTI: "RTI", OpBRK: "BRK",
	OpCLC: "CLC", OpSEC: "SEC", OpCLI: "CLI", OpSEI: "SEI",
	OpCLD: "CLD", OpSED: "SED", OpCLV: "CLV",
	OpREP: "REP", OpSEP: "SEP", OpXCE: "XCE",
	OpNOP: "NOP", OpWAI: "WAI", OpSTP: "STP",
	OpMVN: "MVN", OpMVP: "MVP",
	OpWIDPrefix: "WID", OpExtPrefix: "EXT",
	OpMUL: "MUL", OpMULU: "MULU", OpDIV: "DIV", OpDIVU: "DIVU",
	OpCAS: "CAS", OpLLI: "LLI", OpSCI: "SCI",
	OpENR: "ENR", OpDSR: "DSR", OpTRAP: "TRAP", OpFENCE: "FENCE",
	OpTTA: "TTA", OpTAT: "TAT", OpLDQ: "LDQ", OpSTQ: "STQ", OpLEA: "LEA",
	OpSD: "SD", OpSB: "SB",
	OpRegALU: "RALU", OpRegShift: "RSH", OpRegExt: "REXT",
	OpWideLDA: "LDA.W", OpWideLDX: "LDX.W", OpWideLDY: "LDY.W",
	OpWideSTA: "STA.W", OpWideJMP: "JMP.W", OpWideJSR: "JSR.W",
	OpDebugSignal: "DBG",
}

// String returns the mnemonic for an operation.
func (op Op) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return "???"
}
