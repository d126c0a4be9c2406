package insts

import "fmt"

// ByteReader supplies instruction bytes to the decoder. Fetches are
// side-effect free; the decoder never advances machine state.
type ByteReader interface {
	ReadByte(addr uint32) (byte, error)
}

// Inst is a fully decoded instruction: operation, addressing mode,
// assembled operand bytes, and the total encoded length. The execution
// engine advances PC by Length unless the operation redirects control.
type Inst struct {
	Addr   uint32 // address of the first encoded byte
	Opcode byte   // primary opcode ($02/$42 for prefixed forms)
	Sub    byte   // sub-opcode byte when Opcode is a prefix
	Op     Op
	Mode   AddrMode
	Arg    uint32  // operand bytes assembled little-endian
	RegOp  [2]byte // leading operand bytes of register-file encodings
	Length int     // full encoded length, prefix and operands included
	Cycles uint8
}

// End returns the address just past the instruction encoding. Relative
// branch displacements are applied from here, never from Addr.
func (i Inst) End() uint32 {
	return i.Addr + uint32(i.Length)
}

// Decoder turns a byte stream into Inst values. It is stateless; the
// active widths are inputs because operand sizes depend on them.
type Decoder struct{}

// NewDecoder creates an instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode reads one instruction starting at pc. widthM and widthX are
// the active accumulator and index widths in bytes (1, 2, or 4).
// Unknown opcodes decode successfully with Op == OpIllegal; the engine
// decides between faulting and compat-NOP behavior.
func (d *Decoder) Decode(r ByteReader, pc uint32, widthM, widthX int) (Inst, error) {
	opcode, err := r.ReadByte(pc)
	if err != nil {
		return Inst{}, fmt.Errorf("fetch opcode at %08X: %w", pc, err)
	}

	inst := Inst{Addr: pc, Opcode: opcode}

	switch opcode {
	case 0x02:
		return d.decodeExtended(r, inst, widthM)
	case 0x42:
		return d.decodeWide(r, inst)
	}

	desc := Primary[opcode]
	inst.Op = desc.Op
	inst.Mode = desc.Mode
	inst.Cycles = desc.Cycles

	opLen := OperandLen(desc.Mode, widthM, widthX)
	arg, err := d.readOperand(r, pc+1, opLen)
	if err != nil {
		return Inst{}, err
	}
	inst.Arg = arg
	inst.Length = 1 + opLen
	return inst, nil
}

func (d *Decoder) decodeExtended(r ByteReader, inst Inst, widthM int) (Inst, error) {
	sub, err := r.ReadByte(inst.Addr + 1)
	if err != nil {
		return Inst{}, fmt.Errorf("fetch extended sub-opcode at %08X: %w", inst.Addr+1, err)
	}
	desc := Extended[sub]
	inst.Sub = sub
	inst.Op = desc.Op
	inst.Mode = desc.Mode
	inst.Cycles = desc.Cycles

	switch desc.Op {
	case OpRegALU:
		// $02 $E8 [op|mode] [dest] [source...]; the source length
		// depends on the mode nibble.
		if err := d.readRegOp(r, &inst); err != nil {
			return Inst{}, err
		}
		srcLen := RegALUSrcLen(inst.RegOp[0]&0x0F, widthM)
		arg, err := d.readOperand(r, inst.Addr+4, srcLen)
		if err != nil {
			return Inst{}, err
		}
		inst.Arg = arg
		inst.Length = 4 + srcLen
	case OpRegShift, OpRegExt:
		// $02 $E9/$EA [op] [dest] [src]
		if err := d.readRegOp(r, &inst); err != nil {
			return Inst{}, err
		}
		src, err := r.ReadByte(inst.Addr + 4)
		if err != nil {
			return Inst{}, err
		}
		inst.Arg = uint32(src)
		inst.Length = 5
	default:
		opLen := OperandLen(desc.Mode, widthM, widthM)
		arg, err := d.readOperand(r, inst.Addr+2, opLen)
		if err != nil {
			return Inst{}, err
		}
		inst.Arg = arg
		inst.Length = 2 + opLen
	}
	return inst, nil
}

func (d *Decoder) decodeWide(r ByteReader, inst Inst) (Inst, error) {
	sub, err := r.ReadByte(inst.Addr + 1)
	if err != nil {
		return Inst{}, fmt.Errorf("fetch wide sub-opcode at %08X: %w", inst.Addr+1, err)
	}
	desc := Wide[sub]
	inst.Sub = sub
	inst.Op = desc.Op
	inst.Mode = desc.Mode
	inst.Cycles = desc.Cycles

	opLen := OperandLen(desc.Mode, 4, 4)
	arg, err := d.readOperand(r, inst.Addr+2, opLen)
	if err != nil {
		return Inst{}, err
	}
	inst.Arg = arg
	inst.Length = 2 + opLen
	return inst, nil
}

func (d *Decoder) readRegOp(r ByteReader, inst *Inst) error {
	for i := 0; i < 2; i++ {
		b, err := r.ReadByte(inst.Addr + 2 + uint32(i))
		if err != nil {
			return fmt.Errorf("fetch operand at %08X: %w", inst.Addr+2+uint32(i), err)
		}
		inst.RegOp[i] = b
	}
	return nil
}

func (d *Decoder) readOperand(r ByteReader, addr uint32, n int) (uint32, error) {
	var v uint32
	for i := 0; i < n; i++ {
		b, err := r.ReadByte(addr + uint32(i))
		if err != nil {
			return 0, fmt.Errorf("fetch operand at %08X: %w", addr+uint32(i), err)
		}
		v |= uint32(b) << (8 * i)
	}
	return v, nil
}

// RegALUSrcLen returns the encoded length of the register-ALU source
// operand for the given mode nibble. Immediate sources are sized by
// the active accumulator width.
func RegALUSrcLen(mode byte, widthM int) int {
	switch mode {
	case RegSrcImm:
		return widthM
	case RegSrcA:
		return 0
	case RegSrcAbs, RegSrcAbsX, RegSrcAbsY:
		return 2
	default:
		return 1
	}
}
