package emu_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/m65sim/emu"
)

const entry = uint32(0x2000)

// install places a program at the entry address and points the engine
// at it in full 32-bit native mode.
func install(e *emu.Emulator, program ...byte) {
	Expect(e.Memory().StoreBytes(entry, program)).To(Succeed())
	e.SetEntry(entry)
}

// stepN executes n instructions, failing on any fault.
func stepN(e *emu.Emulator, n int) {
	for i := 0; i < n; i++ {
		res := e.Step()
		Expect(res.Err).NotTo(HaveOccurred())
	}
}

var _ = Describe("Emulator", func() {
	var (
		e         *emu.Emulator
		stdoutBuf *bytes.Buffer
	)

	BeforeEach(func() {
		stdoutBuf = &bytes.Buffer{}
		e = emu.NewEmulator(
			emu.WithStdout(stdoutBuf),
		)
	})

	Describe("NewEmulator", func() {
		It("creates an emulator with initialized components", func() {
			Expect(e.RegFile()).NotTo(BeNil())
			Expect(e.Memory()).NotTo(BeNil())
			Expect(e.UART()).NotTo(BeNil())
		})

		It("starts in emulation mode with a page-one stack", func() {
			r := e.RegFile()
			Expect(r.Flag(emu.FlagE)).To(BeTrue())
			Expect(r.Flag(emu.FlagS)).To(BeTrue())
			Expect(r.S).To(Equal(uint32(0x1FF)))
			Expect(r.WidthM()).To(Equal(1))
		})
	})

	Describe("SetEntry", func() {
		It("enters 32-bit native mode at the entry point", func() {
			e.SetEntry(0x4000)
			r := e.RegFile()
			Expect(r.PC).To(Equal(uint32(0x4000)))
			Expect(r.Flag(emu.FlagE)).To(BeFalse())
			Expect(r.WidthM()).To(Equal(4))
			Expect(r.WidthX()).To(Equal(4))
		})
	})

	Describe("Reset", func() {
		It("loads PC from the reset vector", func() {
			Expect(e.Memory().Store(emu.VecResetEmu, 2, 0x8123)).To(Succeed())
			Expect(e.Reset()).To(Succeed())
			Expect(e.RegFile().PC).To(Equal(uint32(0x8123)))
		})
	})

	Describe("loads and stores", func() {
		It("loads a 32-bit immediate", func() {
			install(e, 0xA9, 0x78, 0x56, 0x34, 0x12)
			stepN(e, 1)
			Expect(e.RegFile().A).To(Equal(uint32(0x12345678)))
			Expect(e.RegFile().PC).To(Equal(entry + 5))
		})

		It("sizes the immediate by the accumulator width", func() {
			// REP #$C0 narrows the accumulator to 8 bits.
			install(e, 0xC2, 0xC0, 0xA9, 0x42)
			stepN(e, 2)
			Expect(e.RegFile().WidthM()).To(Equal(1))
			Expect(e.RegFile().A & 0xFF).To(Equal(uint32(0x42)))
		})

		It("preserves accumulator bytes above the active width", func() {
			install(e, 0xC2, 0xC0, 0xA9, 0x11)
			e.RegFile().A = 0xAABBCCDD
			stepN(e, 2)
			Expect(e.RegFile().A).To(Equal(uint32(0xAABBCC11)))
		})

		It("stores exactly the active width, leaving neighbors alone", func() {
			Expect(e.Memory().Store(0x3000, 4, 0xFFFFFFFF)).To(Succeed())
			// 16-bit accumulator: REP #$C0, SEP #$10... use M0 only.
			install(e,
				0xC2, 0xC0, // width 8
				0xE2, 0x40, // SEP M0 -> width 16
				0xA9, 0x34, 0x12, // LDA #$1234
				0x8D, 0x00, 0x30, // STA $3000
			)
			stepN(e, 4)
			v, err := e.Memory().Load(0x3000, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint32(0xFFFF1234)))
		})

		It("zero-extends narrow index loads", func() {
			install(e,
				0xC2, 0x30, // width X = 8
				0xA2, 0x7F, // LDX #$7F
			)
			e.RegFile().X = 0xFFFFFFFF
			stepN(e, 2)
			Expect(e.RegFile().X).To(Equal(uint32(0x7F)))
		})
	})

	Describe("arithmetic", func() {
		It("adds with carry out", func() {
			install(e,
				0xC2, 0xC0, // width 8
				0x38,       // SEC
				0xA9, 0xFF, // LDA #$FF
				0x69, 0x00, // ADC #$00
			)
			stepN(e, 4)
			r := e.RegFile()
			Expect(r.A & 0xFF).To(Equal(uint32(0x00)))
			Expect(r.Flag(emu.FlagC)).To(BeTrue())
			Expect(r.Flag(emu.FlagZ)).To(BeTrue())
		})

		It("applies BCD correction in decimal mode", func() {
			install(e,
				0xC2, 0xC0, // width 8
				0xF8,       // SED
				0x18,       // CLC
				0xA9, 0x15, // LDA #$15
				0x69, 0x27, // ADC #$27
			)
			stepN(e, 5)
			Expect(e.RegFile().A & 0xFF).To(Equal(uint32(0x42)))
		})

		It("sets overflow on signed wraparound", func() {
			install(e,
				0xC2, 0xC0, // width 8
				0x18,       // CLC
				0xA9, 0x7F, // LDA #$7F
				0x69, 0x01, // ADC #$01
			)
			stepN(e, 4)
			r := e.RegFile()
			Expect(r.A & 0xFF).To(Equal(uint32(0x80)))
			Expect(r.Flag(emu.FlagV)).To(BeTrue())
			Expect(r.Flag(emu.FlagN)).To(BeTrue())
		})
	})

	Describe("stack operations", func() {
		It("pushes and pulls the accumulator at full width", func() {
			install(e,
				0xA9, 0xDD, 0xCC, 0xBB, 0xAA, // LDA #$AABBCCDD
				0x48,                         // PHA
				0xA9, 0x00, 0x00, 0x00, 0x00, // LDA #0
				0x68, // PLA
			)
			s0 := e.RegFile().S
			stepN(e, 2)
			Expect(e.RegFile().S).To(Equal(s0 - 4))
			stepN(e, 2)
			Expect(e.RegFile().A).To(Equal(uint32(0xAABBCCDD)))
			Expect(e.RegFile().S).To(Equal(s0))
		})

		It("pushes the status byte with the break bits set", func() {
			install(e, 0x08) // PHP
			s0 := e.RegFile().S
			p0 := e.RegFile().P
			stepN(e, 1)
			Expect(e.RegFile().S).To(Equal(s0 - 1))
			b, err := e.Memory().ReadByte(s0)
			Expect(err).NotTo(HaveOccurred())
			Expect(b).To(Equal(byte(p0) | 0x30))
		})

		It("pulls only the low status byte with PLP", func() {
			install(e,
				0xA9, 0xC3, 0x00, 0x00, 0x00, // LDA #$C3
				0x48, // PHA (pushes 4 bytes, low byte last)
			)
			stepN(e, 2)
			// Pull one byte into P.
			e.Memory().StoreBytes(entry+6, []byte{0x28}) // PLP
			pHigh := e.RegFile().P & 0xFF00
			stepN(e, 1)
			Expect(e.RegFile().P & 0xFF00).To(Equal(pHigh))
			Expect(e.RegFile().P & 0x00FF).To(Equal(uint16(0xC3)))
		})

		It("wraps the stack within page one in emulation mode", func() {
			r := e.RegFile()
			Expect(e.Memory().Store(emu.VecResetEmu, 2, 0x2000)).To(Succeed())
			Expect(e.Reset()).To(Succeed())
			r.S = 0x100
			Expect(e.Memory().StoreBytes(0x2000, []byte{0x48})).To(Succeed()) // PHA
			stepN(e, 1)
			Expect(r.S).To(Equal(uint32(0x1FF)))
		})
	})

	Describe("transfers", func() {
		It("masks TAX to the index width", func() {
			e.RegFile().A = 0x11223344
			install(e,
				0xC2, 0x30, // width X = 8
				0xAA, // TAX
			)
			e.RegFile().A = 0x11223344
			stepN(e, 2)
			Expect(e.RegFile().X).To(Equal(uint32(0x44)))
		})

		It("swaps the low accumulator bytes with XBA", func() {
			install(e, 0xEB)
			e.RegFile().A = 0xAABB1122
			stepN(e, 1)
			Expect(e.RegFile().A).To(Equal(uint32(0xAABB2211)))
		})

		It("moves A to the direct-page base with TCD", func() {
			install(e, 0x5B)
			e.RegFile().A = 0x00004321
			stepN(e, 1)
			Expect(e.RegFile().D).To(Equal(uint32(0x00004321)))
		})
	})

	Describe("branches", func() {
		It("applies the displacement from the end of the encoding", func() {
			install(e,
				0xA9, 0x00, 0x00, 0x00, 0x00, // LDA #0 (sets Z)
				0xF0, 0x10, // BEQ +16
			)
			stepN(e, 2)
			Expect(e.RegFile().PC).To(Equal(entry + 7 + 16))
		})

		It("branches backward with a negative displacement", func() {
			install(e,
				0xA9, 0x01, 0x00, 0x00, 0x00, // LDA #1 (clears Z)
				0xD0, 0xF9, // BNE -7 (back to entry)
			)
			stepN(e, 2)
			Expect(e.RegFile().PC).To(Equal(entry))
		})

		It("falls through when the condition does not hold", func() {
			install(e,
				0xA9, 0x01, 0x00, 0x00, 0x00, // LDA #1
				0xF0, 0x10, // BEQ +16, not taken
			)
			stepN(e, 2)
			Expect(e.RegFile().PC).To(Equal(entry + 7))
		})
	})

	Describe("subroutines", func() {
		It("round-trips JSR and RTS", func() {
			install(e,
				0x20, 0x00, 0x30, // JSR $3000
			)
			Expect(e.Memory().StoreBytes(0x3000, []byte{0x60})).To(Succeed()) // RTS
			stepN(e, 1)
			Expect(e.RegFile().PC).To(Equal(uint32(0x3000)))
			stepN(e, 1)
			Expect(e.RegFile().PC).To(Equal(entry + 3))
		})

		It("round-trips JSL and RTL", func() {
			install(e,
				0x22, 0x00, 0x30, 0x00, // JSL $003000
			)
			Expect(e.Memory().StoreBytes(0x3000, []byte{0x6B})).To(Succeed()) // RTL
			stepN(e, 1)
			Expect(e.RegFile().PC).To(Equal(uint32(0x3000)))
			stepN(e, 1)
			Expect(e.RegFile().PC).To(Equal(entry + 4))
		})

		It("calls through a 32-bit target with the wide form", func() {
			install(e,
				0x42, 0x20, 0x00, 0x00, 0x10, 0x00, // JSR $00100000
			)
			Expect(e.Memory().StoreBytes(0x100000, []byte{0xEA})).To(Succeed())
			stepN(e, 1)
			Expect(e.RegFile().PC).To(Equal(uint32(0x100000)))
			// The 32-bit return address is on the stack.
			ret, err := e.LSU().Pull(4)
			Expect(err).NotTo(HaveOccurred())
			Expect(ret).To(Equal(entry + 6))
		})
	})

	Describe("exceptions", func() {
		It("vectors BRK through the native table and returns with RTI", func() {
			Expect(e.Memory().Store(emu.VecBRK, 4, 0x8000)).To(Succeed())
			install(e, 0x00) // BRK
			Expect(e.Memory().StoreBytes(0x8000, []byte{0x40})).To(Succeed()) // RTI
			stepN(e, 1)
			r := e.RegFile()
			Expect(r.PC).To(Equal(uint32(0x8000)))
			Expect(r.Flag(emu.FlagI)).To(BeTrue())
			Expect(r.Flag(emu.FlagS)).To(BeTrue())
			stepN(e, 1)
			Expect(r.PC).To(Equal(entry + 1))
		})

		It("faults on an unknown opcode outside compat mode", func() {
			install(e,
				0xC2, 0xC0, // width 8: compat NOP rule no longer applies
				0xFF,
			)
			stepN(e, 1)
			res := e.Step()
			Expect(res.Err).To(HaveOccurred())
			var fault *emu.DecodeFault
			Expect(res.Err).To(BeAssignableToTypeOf(fault))
		})

		It("executes unknown opcodes as NOP at 32-bit width", func() {
			install(e, 0xFF, 0xEA)
			res := e.Step()
			Expect(res.Err).NotTo(HaveOccurred())
			Expect(e.RegFile().PC).To(Equal(entry + 1))
		})

		It("traps STP in user mode", func() {
			install(e, 0xDB)
			e.RegFile().SetFlag(emu.FlagS, false)
			res := e.Step()
			Expect(res.Err).To(HaveOccurred())
			var fault *emu.PrivilegeFault
			Expect(res.Err).To(BeAssignableToTypeOf(fault))
		})

		It("halts on STP in supervisor mode", func() {
			install(e, 0xDB)
			res := e.Step()
			Expect(res.Err).NotTo(HaveOccurred())
			Expect(e.State()).To(Equal(emu.StateHalted))
		})
	})

	Describe("interrupts", func() {
		It("ignores IRQ while the I flag is set", func() {
			install(e, 0xEA, 0xEA)
			e.IRQ(true)
			stepN(e, 1)
			Expect(e.RegFile().PC).To(Equal(entry + 1))
		})

		It("takes IRQ once the I flag clears", func() {
			Expect(e.Memory().Store(emu.VecIRQ, 4, 0x9000)).To(Succeed())
			install(e, 0x58, 0xEA) // CLI, NOP
			stepN(e, 1)
			e.IRQ(true)
			stepN(e, 1)
			Expect(e.RegFile().PC).To(Equal(uint32(0x9000)))
		})

		It("wakes from WAI on NMI", func() {
			Expect(e.Memory().Store(emu.VecNMI, 4, 0x9100)).To(Succeed())
			install(e, 0xCB) // WAI
			stepN(e, 1)
			Expect(e.State()).To(Equal(emu.StateWaiting))
			stepN(e, 1) // idle cycle
			e.NMI()
			stepN(e, 1)
			Expect(e.RegFile().PC).To(Equal(uint32(0x9100)))
			Expect(e.State()).To(Equal(emu.StateRunning))
		})
	})

	Describe("block moves", func() {
		It("copies ascending with MVN, one byte per step", func() {
			Expect(e.Memory().StoreBytes(0x3000, []byte{1, 2, 3})).To(Succeed())
			install(e, 0x44, 0x00, 0x00, 0xEA) // MVN, NOP
			r := e.RegFile()
			r.X = 0x3000
			r.Y = 0x4000
			r.A = 2 // three bytes
			stepN(e, 3)
			out, err := e.Memory().LoadBytes(0x4000, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal([]byte{1, 2, 3}))
			Expect(r.PC).To(Equal(entry + 3))
		})
	})

	Describe("run loop", func() {
		It("stops when the cycle budget runs out", func() {
			budget := emu.NewEmulator(
				emu.WithStdout(stdoutBuf),
				emu.WithCycleBudget(20),
			)
			Expect(budget.Memory().StoreBytes(entry, []byte{0x80, 0xFE})).To(Succeed()) // BRA -2
			budget.SetEntry(entry)
			result := budget.Run()
			Expect(result.Reason).To(Equal(emu.StopBudget))
		})

		It("stops at a breakpoint before executing it", func() {
			install(e, 0xEA, 0xEA, 0xEA)
			e.AddBreakpoint(entry + 1)
			result := e.Run()
			Expect(result.Reason).To(Equal(emu.StopBreakpoint))
			Expect(e.RegFile().PC).To(Equal(entry + 1))
		})

		It("stops when a watchpoint fires", func() {
			install(e,
				0xA9, 0x01, 0x00, 0x00, 0x00, // LDA #1
				0x8D, 0x00, 0x50, // STA $5000
				0xDB, // STP
			)
			e.AddWatchpoint(0x5000, 4, false, true)
			result := e.Run()
			Expect(result.Reason).To(Equal(emu.StopWatchpoint))
		})

		It("counts instructions and cycles", func() {
			install(e, 0xEA, 0xEA, 0xDB)
			result := e.Run()
			Expect(result.Reason).To(Equal(emu.StopHalt))
			Expect(result.Insts).To(Equal(uint64(3)))
			Expect(result.Cycles).To(BeNumerically(">", 0))
		})
	})

	Describe("tracing", func() {
		It("reports a snapshot before each instruction", func() {
			var pcs []uint32
			traced := emu.NewEmulator(
				emu.WithStdout(stdoutBuf),
				emu.WithTraceFunc(func(s emu.Snapshot) {
					pcs = append(pcs, s.PC)
				}),
			)
			Expect(traced.Memory().StoreBytes(entry, []byte{0xEA, 0xEA, 0xDB})).To(Succeed())
			traced.SetEntry(entry)
			traced.Run()
			Expect(pcs).To(Equal([]uint32{entry, entry + 1, entry + 2}))
		})
	})
})
