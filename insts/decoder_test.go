package insts_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/m65sim/insts"
)

// byteSlice serves decoder fetches from an in-memory program image.
type byteSlice []byte

func (s byteSlice) ReadByte(addr uint32) (byte, error) {
	if int(addr) >= len(s) {
		return 0, errors.New("fetch past end of image")
	}
	return s[addr], nil
}

var _ = Describe("Decoder", func() {
	var d *insts.Decoder

	decode := func(widthM, widthX int, bytes ...byte) insts.Inst {
		inst, err := d.Decode(byteSlice(bytes), 0, widthM, widthX)
		Expect(err).NotTo(HaveOccurred())
		return inst
	}

	BeforeEach(func() {
		d = insts.NewDecoder()
	})

	Describe("width-dependent immediates", func() {
		It("sizes LDA immediate by the accumulator width", func() {
			inst := decode(1, 1, 0xA9, 0x7F)
			Expect(inst.Op).To(Equal(insts.OpLDA))
			Expect(inst.Length).To(Equal(2))
			Expect(inst.Arg).To(Equal(uint32(0x7F)))

			inst = decode(2, 1, 0xA9, 0x34, 0x12)
			Expect(inst.Length).To(Equal(3))
			Expect(inst.Arg).To(Equal(uint32(0x1234)))

			inst = decode(4, 1, 0xA9, 0x44, 0x33, 0x22, 0x11)
			Expect(inst.Length).To(Equal(5))
			Expect(inst.Arg).To(Equal(uint32(0x11223344)))
		})

		It("sizes LDX immediate by the index width", func() {
			inst := decode(4, 2, 0xA2, 0xCD, 0xAB)
			Expect(inst.Op).To(Equal(insts.OpLDX))
			Expect(inst.Length).To(Equal(3))
			Expect(inst.Arg).To(Equal(uint32(0xABCD)))
		})

		It("keeps REP at a fixed one-byte immediate", func() {
			inst := decode(4, 4, 0xC2, 0xC0)
			Expect(inst.Op).To(Equal(insts.OpREP))
			Expect(inst.Length).To(Equal(2))
			Expect(inst.Arg).To(Equal(uint32(0xC0)))
		})
	})

	Describe("operand assembly", func() {
		It("assembles absolute operands little-endian", func() {
			inst := decode(4, 4, 0xAD, 0x34, 0x12)
			Expect(inst.Mode).To(Equal(insts.ModeAbs))
			Expect(inst.Arg).To(Equal(uint32(0x1234)))
			Expect(inst.Length).To(Equal(3))
		})

		It("assembles three-byte long operands", func() {
			inst := decode(4, 4, 0xAB, 0x56, 0x34, 0x12)
			Expect(inst.Op).To(Equal(insts.OpLDA))
			Expect(inst.Mode).To(Equal(insts.ModeLong))
			Expect(inst.Arg).To(Equal(uint32(0x123456)))
			Expect(inst.Length).To(Equal(4))
		})

		It("carries both bank bytes of a block move", func() {
			inst := decode(4, 4, 0x44, 0x01, 0x02)
			Expect(inst.Op).To(Equal(insts.OpMVN))
			Expect(inst.Mode).To(Equal(insts.ModeBlockMove))
			Expect(inst.Arg).To(Equal(uint32(0x0201)))
		})
	})

	Describe("the $02 extended page", func() {
		It("decodes simple extended forms", func() {
			inst := decode(4, 4, 0x02, 0x02, 0x00, 0x30)
			Expect(inst.Op).To(Equal(insts.OpMUL))
			Expect(inst.Mode).To(Equal(insts.ModeAbs))
			Expect(inst.Sub).To(Equal(byte(0x02)))
			Expect(inst.Arg).To(Equal(uint32(0x3000)))
			Expect(inst.Length).To(Equal(4))
		})

		It("decodes implied extended forms at length two", func() {
			inst := decode(4, 4, 0x02, 0x30)
			Expect(inst.Op).To(Equal(insts.OpENR))
			Expect(inst.Length).To(Equal(2))
		})

		It("sizes register-ALU immediates by the accumulator width", func() {
			inst := decode(4, 4, 0x02, 0xE8, 0x02, 0x08, 0x44, 0x33, 0x22, 0x11)
			Expect(inst.Op).To(Equal(insts.OpRegALU))
			Expect(inst.RegOp[0]).To(Equal(byte(0x02)))
			Expect(inst.RegOp[1]).To(Equal(byte(0x08)))
			Expect(inst.Arg).To(Equal(uint32(0x11223344)))
			Expect(inst.Length).To(Equal(8))

			inst = decode(1, 1, 0x02, 0xE8, 0x02, 0x08, 0x44)
			Expect(inst.Length).To(Equal(5))
			Expect(inst.Arg).To(Equal(uint32(0x44)))
		})

		It("gives the accumulator source no operand bytes", func() {
			inst := decode(4, 4, 0x02, 0xE8, 0x13, 0x08)
			Expect(inst.Op).To(Equal(insts.OpRegALU))
			Expect(inst.Length).To(Equal(4))
		})

		It("decodes shifter operands at a fixed length", func() {
			inst := decode(4, 4, 0x02, 0xE9, 0x44, 0x08, 0x04)
			Expect(inst.Op).To(Equal(insts.OpRegShift))
			Expect(inst.RegOp[0]).To(Equal(byte(0x44)))
			Expect(inst.Arg).To(Equal(uint32(0x04)))
			Expect(inst.Length).To(Equal(5))
		})
	})

	Describe("the $42 wide page", func() {
		It("decodes 32-bit immediates regardless of width flags", func() {
			inst := decode(1, 1, 0x42, 0xA9, 0x44, 0x33, 0x22, 0x11)
			Expect(inst.Op).To(Equal(insts.OpWideLDA))
			Expect(inst.Arg).To(Equal(uint32(0x11223344)))
			Expect(inst.Length).To(Equal(6))
		})

		It("decodes the debug signal sub-opcode", func() {
			inst := decode(4, 4, 0x42, 0x01)
			Expect(inst.Op).To(Equal(insts.OpDebugSignal))
			Expect(inst.Length).To(Equal(2))
		})
	})

	It("decodes unknown opcodes as illegal rather than failing", func() {
		inst := decode(4, 4, 0xFF, 0x00)
		Expect(inst.Op).To(Equal(insts.OpIllegal))
	})

	It("reports End past the full encoding", func() {
		inst, err := insts.NewDecoder().Decode(
			byteSlice{0x00, 0xA9, 0x44, 0x33, 0x22, 0x11}, 1, 4, 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(inst.End()).To(Equal(uint32(6)))
	})

	It("propagates fetch errors", func() {
		_, err := insts.NewDecoder().Decode(byteSlice{0xA9}, 0, 4, 4)
		Expect(err).To(HaveOccurred())
	})
})
