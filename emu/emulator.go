package emu

import (
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/m65sim/insts"
)

// Exception vector addresses. Emulation mode uses the 16-bit legacy
// vectors; native mode the 32-bit ones.
const (
	VecResetEmu = 0xFFFC
	VecIRQEmu   = 0xFFFE
	VecNMIEmu   = 0xFFFA
	VecAbortEmu = 0xFFF8

	VecBRK     = 0xFFE6
	VecAbort   = 0xFFE8
	VecNMI     = 0xFFEA
	VecIRQ     = 0xFFEE
	VecIllegal = 0xFFF8
	VecSyscall = 0xFFD4
)

// State is the execution engine's coarse machine state.
type State int

const (
	// StateRunning is the normal stepping state.
	StateRunning State = iota
	// StateWaiting means a WAI is pending an interrupt line; steps
	// burn idle cycles until one asserts.
	StateWaiting
	// StateHalted is terminal: explicit halt, guest exit, or fault.
	StateHalted
)

// StopReason distinguishes why a run loop ended. Budget exhaustion is
// deliberately distinct from guest-initiated termination so harnesses
// can tell a timeout from a clean run.
type StopReason int

const (
	StopNone StopReason = iota
	// StopExit: the guest invoked the exit or exit_group syscall.
	StopExit
	// StopHalt: the guest executed the halt opcode.
	StopHalt
	// StopFault: a fatal fault (decode, memory, privilege).
	StopFault
	// StopBudget: the configured cycle budget ran out.
	StopBudget
	// StopBreakpoint: execution reached a registered breakpoint.
	StopBreakpoint
	// StopWatchpoint: a data watchpoint fired.
	StopWatchpoint
)

func (r StopReason) String() string {
	switch r {
	case StopExit:
		return "exit"
	case StopHalt:
		return "halt"
	case StopFault:
		return "fault"
	case StopBudget:
		return "cycle budget exceeded"
	case StopBreakpoint:
		return "breakpoint"
	case StopWatchpoint:
		return "watchpoint"
	}
	return "none"
}

// DecodeFault reports an unknown opcode outside compat mode.
type DecodeFault struct {
	Addr   uint32
	Opcode byte
	Sub    byte
}

func (f *DecodeFault) Error() string {
	if f.Opcode == 0x02 || f.Opcode == 0x42 {
		return fmt.Sprintf("illegal instruction %02X %02X at %08X", f.Opcode, f.Sub, f.Addr)
	}
	return fmt.Sprintf("illegal instruction %02X at %08X", f.Opcode, f.Addr)
}

// PrivilegeFault reports a privileged operation attempted in user mode.
type PrivilegeFault struct {
	Addr uint32
}

func (f *PrivilegeFault) Error() string {
	return fmt.Sprintf("privilege violation at %08X", f.Addr)
}

// Snapshot is a register-state view handed to the trace hook after
// each step.
type Snapshot struct {
	PC     uint32
	A      uint32
	X      uint32
	Y      uint32
	S      uint32
	D      uint32
	P      uint16
	Cycles uint64
}

// StepResult reports one instruction step.
type StepResult struct {
	Cycles   uint64
	Exited   bool
	ExitCode int32
	// Debug is non-zero when the instruction was a debug signal.
	Debug byte
	Err   error
}

// RunResult reports a completed run loop.
type RunResult struct {
	Reason   StopReason
	ExitCode int32
	Cycles   uint64
	Insts    uint64
	Err      error
}

// TraceFunc observes a register snapshot before each executed
// instruction.
type TraceFunc func(Snapshot)

// DebugSignalFunc observes debug signals ($42 $01 kernel-ready) so
// external tooling can resynchronize breakpoints.
type DebugSignalFunc func(code byte)

// Emulator executes M65832 instructions against an owned processor
// state, bus, and peripheral set. Instances share no mutable state and
// may run in parallel.
type Emulator struct {
	regFile *RegFile
	memory  *Memory
	decoder *insts.Decoder

	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit

	uart *UART
	disk *BlockDevice

	syscallHandler SyscallHandler

	stdout io.Writer
	stderr io.Writer

	memSize     uint32
	diskImage   []byte
	diskWrite   bool
	sandboxRoot string
	uartInput   []byte

	cycleBudget uint64
	cycleFunc   func(insts.Inst) uint64

	traceFunc   TraceFunc
	debugFunc   DebugSignalFunc
	breakpoints map[uint32]bool
	watchpoints []watchpoint
	watchHit    *uint32

	state      State
	cycles     uint64
	instCount  uint64
	irqLine    bool
	nmiPending bool
	abortLine  bool
	exited     bool
	exitCode   int32
}

type watchpoint struct {
	start, end      uint32
	onRead, onWrite bool
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithStdout sets the UART output sink.
func WithStdout(w io.Writer) EmulatorOption {
	return func(e *Emulator) { e.stdout = w }
}

// WithStderr sets the diagnostic writer.
func WithStderr(w io.Writer) EmulatorOption {
	return func(e *Emulator) { e.stderr = w }
}

// WithMemorySize sets the RAM arena size in bytes.
func WithMemorySize(size uint32) EmulatorOption {
	return func(e *Emulator) { e.memSize = size }
}

// WithCycleBudget caps the run loop at the given cycle count. Zero
// means unlimited.
func WithCycleBudget(budget uint64) EmulatorOption {
	return func(e *Emulator) { e.cycleBudget = budget }
}

// WithDiskImage attaches a block-device backing image.
func WithDiskImage(image []byte, writable bool) EmulatorOption {
	return func(e *Emulator) {
		e.diskImage = image
		e.diskWrite = writable
	}
}

// WithSandboxRoot confines guest file syscalls under the given host
// directory. Without it only exit, exit_group, and getpid work.
func WithSandboxRoot(root string) EmulatorOption {
	return func(e *Emulator) { e.sandboxRoot = root }
}

// WithUARTInput queues receive data on the UART.
func WithUARTInput(data []byte) EmulatorOption {
	return func(e *Emulator) { e.uartInput = data }
}

// WithSyscallHandler sets a custom syscall handler.
func WithSyscallHandler(handler SyscallHandler) EmulatorOption {
	return func(e *Emulator) { e.syscallHandler = handler }
}

// WithTraceFunc installs a per-step register trace hook.
func WithTraceFunc(f TraceFunc) EmulatorOption {
	return func(e *Emulator) { e.traceFunc = f }
}

// WithDebugSignalFunc installs the debug-signal observer.
func WithDebugSignalFunc(f DebugSignalFunc) EmulatorOption {
	return func(e *Emulator) { e.debugFunc = f }
}

// WithCycleFunc overrides per-instruction cycle accounting, letting a
// timing model supply latencies.
func WithCycleFunc(f func(insts.Inst) uint64) EmulatorOption {
	return func(e *Emulator) { e.cycleFunc = f }
}

// NewEmulator creates an emulator with its own memory, peripherals,
// and execution units.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		decoder:     insts.NewDecoder(),
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		memSize:     DefaultMemorySize,
		breakpoints: make(map[uint32]bool),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.regFile = &RegFile{}
	e.regFile.Reset()
	e.memory = NewMemoryWithSize(e.memSize)

	e.uart = NewUART(e.stdout)
	e.uart.PushInput(e.uartInput)
	e.memory.MapDevice(UARTBase, UARTWindowSize, e.uart)

	if e.diskImage != nil {
		e.disk = NewBlockDevice(e.diskImage, e.diskWrite)
		e.disk.AttachBus(e.memory)
		e.memory.MapDevice(BlockBase, BlockWindowSize, e.disk)
	}

	e.alu = NewALU(e.regFile)
	e.lsu = NewLoadStoreUnit(e.regFile, e.memory)
	e.branchUnit = NewBranchUnit(e.regFile)

	if e.syscallHandler == nil {
		e.syscallHandler = NewSandboxSyscallHandler(e.regFile, e.lsu, e.sandboxRoot, e.stdout, e.stderr)
	}

	e.memory.SetWatchFunc(e.checkWatchpoints)
	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's bus.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// LSU returns the load/store unit, exposed so timing models can
// resolve effective addresses.
func (e *Emulator) LSU() *LoadStoreUnit {
	return e.lsu
}

// SetCycleFunc installs or replaces the per-instruction cycle hook
// after construction.
func (e *Emulator) SetCycleFunc(f func(insts.Inst) uint64) {
	e.cycleFunc = f
}

// UART returns the character device.
func (e *Emulator) UART() *UART {
	return e.uart
}

// Disk returns the block device, or nil when no image is attached.
func (e *Emulator) Disk() *BlockDevice {
	return e.disk
}

// Cycles returns the accumulated cycle count.
func (e *Emulator) Cycles() uint64 {
	return e.cycles
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instCount
}

// State returns the current machine state.
func (e *Emulator) State() State {
	return e.state
}

// AddBreakpoint registers a PC breakpoint.
func (e *Emulator) AddBreakpoint(addr uint32) {
	e.breakpoints[addr] = true
}

// RemoveBreakpoint clears a PC breakpoint.
func (e *Emulator) RemoveBreakpoint(addr uint32) {
	delete(e.breakpoints, addr)
}

// AddWatchpoint registers a data watchpoint over [start, start+size).
func (e *Emulator) AddWatchpoint(start, size uint32, onRead, onWrite bool) {
	e.watchpoints = append(e.watchpoints, watchpoint{
		start: start, end: start + size, onRead: onRead, onWrite: onWrite,
	})
}

func (e *Emulator) checkWatchpoints(addr uint32, isWrite bool) {
	for _, w := range e.watchpoints {
		if addr >= w.start && addr < w.end {
			if (isWrite && w.onWrite) || (!isWrite && w.onRead) {
				a := addr
				e.watchHit = &a
				return
			}
		}
	}
}

// IRQ asserts or releases the interrupt request line.
func (e *Emulator) IRQ(active bool) {
	e.irqLine = active
}

// NMI latches a non-maskable interrupt.
func (e *Emulator) NMI() {
	e.nmiPending = true
}

// Abort latches the abort line.
func (e *Emulator) Abort() {
	e.abortLine = true
}

// Reset places the machine in its power-on state and loads PC from
// the reset vector.
func (e *Emulator) Reset() error {
	e.regFile.Reset()
	e.state = StateRunning
	e.exited = false
	vec, err := e.memory.Load(VecResetEmu, 2)
	if err != nil {
		return fmt.Errorf("read reset vector: %w", err)
	}
	e.regFile.PC = vec
	return nil
}

// SetEntry starts execution at entry in full 32-bit native mode,
// bypassing the firmware reset path. Used by flat-binary loads.
func (e *Emulator) SetEntry(entry uint32) {
	e.regFile.Reset()
	e.regFile.EnterNative32()
	e.regFile.PC = entry
	e.state = StateRunning
	e.exited = false
}

// exceptionEnter pushes the 32-bit return PC and 16-bit P, enters
// supervisor with interrupts disabled, and loads PC from the vector.
// Entry frames are fixed-width regardless of the E bit; RTI mirrors
// this exactly.
func (e *Emulator) exceptionEnter(vector, returnPC uint32) error {
	r := e.regFile
	if err := e.lsu.Push(returnPC, 4); err != nil {
		return err
	}
	if err := e.lsu.Push(uint32(r.P), 2); err != nil {
		return err
	}
	r.SetFlag(FlagI, true)
	r.SetFlag(FlagS, true)
	width := 4
	if r.Flag(FlagE) {
		vector &= 0xFFFF
		width = 2
	}
	pc, err := e.memory.Load(vector, width)
	if err != nil {
		return err
	}
	r.PC = pc
	return nil
}

// Step executes one instruction (or one idle/interrupt cycle).
func (e *Emulator) Step() StepResult {
	if e.state == StateHalted {
		return StepResult{Exited: e.exited, ExitCode: e.exitCode}
	}

	r := e.regFile

	// Interrupt lines, highest priority first.
	if e.abortLine {
		e.abortLine = false
		e.state = StateRunning
		vec := uint32(VecAbort)
		if r.Flag(FlagE) {
			vec = VecAbortEmu
		}
		if err := e.exceptionEnter(vec, r.PC); err != nil {
			return e.fault(err)
		}
		e.cycles += 7
		return StepResult{Cycles: 7}
	}
	if e.nmiPending {
		e.nmiPending = false
		e.state = StateRunning
		vec := uint32(VecNMI)
		if r.Flag(FlagE) {
			vec = VecNMIEmu
		}
		if err := e.exceptionEnter(vec, r.PC); err != nil {
			return e.fault(err)
		}
		e.cycles += 7
		return StepResult{Cycles: 7}
	}
	if e.irqLine && !r.Flag(FlagI) {
		e.irqLine = false
		e.state = StateRunning
		vec := uint32(VecIRQ)
		if r.Flag(FlagE) {
			vec = VecIRQEmu
		}
		if err := e.exceptionEnter(vec, r.PC); err != nil {
			return e.fault(err)
		}
		e.cycles += 7
		return StepResult{Cycles: 7}
	}

	if e.state == StateWaiting {
		e.cycles++
		return StepResult{Cycles: 1}
	}

	if e.traceFunc != nil {
		e.traceFunc(Snapshot{
			PC: r.PC, A: r.A, X: r.X, Y: r.Y, S: r.S, D: r.D, P: r.P,
			Cycles: e.cycles,
		})
	}

	inst, err := e.decoder.Decode(e.memory, r.PC, r.WidthM(), r.WidthX())
	if err != nil {
		return e.fault(err)
	}

	cost := uint64(inst.Cycles)
	if e.cycleFunc != nil {
		cost = e.cycleFunc(inst)
	}

	res := e.execute(inst)
	if res.Err != nil {
		return e.fault(res.Err)
	}
	res.Cycles = cost
	e.cycles += cost
	e.instCount++

	if res.Exited {
		e.exited = true
		e.exitCode = res.ExitCode
		e.state = StateHalted
	}
	if res.Debug != 0 && e.debugFunc != nil {
		e.debugFunc(res.Debug)
	}
	return res
}

func (e *Emulator) fault(err error) StepResult {
	e.state = StateHalted
	return StepResult{Err: err}
}

// Run steps until the guest exits or halts, a fatal fault occurs, a
// breakpoint or watchpoint fires, or the cycle budget is exhausted.
// UART output is flushed before returning.
func (e *Emulator) Run() RunResult {
	defer e.uart.Flush()
	for {
		if e.cycleBudget != 0 && e.cycles >= e.cycleBudget {
			return e.result(StopBudget, nil)
		}
		if e.state == StateRunning && e.breakpoints[e.regFile.PC] {
			return e.result(StopBreakpoint, nil)
		}

		res := e.Step()
		if res.Err != nil {
			fmt.Fprintf(e.stderr, "Emulation error: %v\n", res.Err)
			return e.result(StopFault, res.Err)
		}
		if res.Exited {
			return e.result(StopExit, nil)
		}
		if e.state == StateHalted {
			return e.result(StopHalt, nil)
		}
		if e.watchHit != nil {
			e.watchHit = nil
			return e.result(StopWatchpoint, nil)
		}
	}
}

func (e *Emulator) result(reason StopReason, err error) RunResult {
	return RunResult{
		Reason:   reason,
		ExitCode: e.exitCode,
		Cycles:   e.cycles,
		Insts:    e.instCount,
		Err:      err,
	}
}

// compatNOP reports whether unknown encodings execute as NOP instead
// of faulting: 32-bit accumulator width or the K bit.
func (e *Emulator) compatNOP() bool {
	return e.regFile.WidthM() == 4 || e.regFile.Flag(FlagK)
}

//nolint:gocyclo // the opcode dispatch is a single flat table walk
func (e *Emulator) execute(inst insts.Inst) StepResult {
	r := e.regFile
	widthM := r.WidthM()
	widthX := r.WidthX()

	// PC points past the instruction during execution; control-flow
	// operations overwrite it.
	r.PC = inst.End()

	switch inst.Op {
	case insts.OpIllegal:
		if e.compatNOP() {
			return StepResult{}
		}
		return StepResult{Err: &DecodeFault{Addr: inst.Addr, Opcode: inst.Opcode, Sub: inst.Sub}}

	// Loads and stores.
	case insts.OpLDA:
		val, err := e.readOperand(inst, widthM)
		if err != nil {
			return StepResult{Err: err}
		}
		r.SetA(val, widthM)
		r.SetNZ(val, widthM)
	case insts.OpLDX:
		val, err := e.readOperand(inst, widthX)
		if err != nil {
			return StepResult{Err: err}
		}
		r.X = val
		r.SetNZ(val, widthX)
	case insts.OpLDY:
		val, err := e.readOperand(inst, widthX)
		if err != nil {
			return StepResult{Err: err}
		}
		r.Y = val
		r.SetNZ(val, widthX)
	case insts.OpSTA:
		return e.writeOperand(inst, widthM, r.A)
	case insts.OpSTX:
		return e.writeOperand(inst, widthX, r.X)
	case insts.OpSTY:
		return e.writeOperand(inst, widthX, r.Y)
	case insts.OpSTZ:
		return e.writeOperand(inst, widthM, 0)

	// Arithmetic and logic on the accumulator.
	case insts.OpADC:
		val, err := e.readOperand(inst, widthM)
		if err != nil {
			return StepResult{Err: err}
		}
		r.SetA(e.alu.Adc(r.A, val, widthM), widthM)
	case insts.OpSBC:
		val, err := e.readOperand(inst, widthM)
		if err != nil {
			return StepResult{Err: err}
		}
		r.SetA(e.alu.Sbc(r.A, val, widthM), widthM)
	case insts.OpCMP:
		val, err := e.readOperand(inst, widthM)
		if err != nil {
			return StepResult{Err: err}
		}
		e.alu.Cmp(r.A, val, widthM)
	case insts.OpCPX:
		val, err := e.readOperand(inst, widthX)
		if err != nil {
			return StepResult{Err: err}
		}
		e.alu.Cmp(r.X, val, widthX)
	case insts.OpCPY:
		val, err := e.readOperand(inst, widthX)
		if err != nil {
			return StepResult{Err: err}
		}
		e.alu.Cmp(r.Y, val, widthX)
	case insts.OpAND:
		return e.logic(inst, widthM, func(a, b uint32) uint32 { return a & b })
	case insts.OpORA:
		return e.logic(inst, widthM, func(a, b uint32) uint32 { return a | b })
	case insts.OpEOR:
		return e.logic(inst, widthM, func(a, b uint32) uint32 { return a ^ b })
	case insts.OpBIT:
		val, err := e.readOperand(inst, widthM)
		if err != nil {
			return StepResult{Err: err}
		}
		if inst.Mode == insts.ModeImmM {
			// Immediate BIT only sets Z.
			r.SetFlag(FlagZ, r.A&val&WidthMask(widthM) == 0)
		} else {
			e.alu.Bit(r.A, val, widthM)
		}

	// Read-modify-write.
	case insts.OpASL:
		return e.modify(inst, widthM, e.alu.Asl)
	case insts.OpLSR:
		return e.modify(inst, widthM, e.alu.Lsr)
	case insts.OpROL:
		return e.modify(inst, widthM, e.alu.Rol)
	case insts.OpROR:
		return e.modify(inst, widthM, e.alu.Ror)
	case insts.OpINC:
		return e.modify(inst, widthM, e.alu.Inc)
	case insts.OpDEC:
		return e.modify(inst, widthM, e.alu.Dec)
	case insts.OpINX:
		r.X = (r.X + 1) & r.MaskX()
		r.SetNZ(r.X, widthX)
	case insts.OpINY:
		r.Y = (r.Y + 1) & r.MaskX()
		r.SetNZ(r.Y, widthX)
	case insts.OpDEX:
		r.X = (r.X - 1) & r.MaskX()
		r.SetNZ(r.X, widthX)
	case insts.OpDEY:
		r.Y = (r.Y - 1) & r.MaskX()
		r.SetNZ(r.Y, widthX)
	case insts.OpTRB:
		return e.bitOp(inst, widthM, func(a, v uint32) uint32 { return v &^ a })
	case insts.OpTSB:
		return e.bitOp(inst, widthM, func(a, v uint32) uint32 { return v | a })

	// Transfers.
	case insts.OpTAX:
		r.X = r.A & r.MaskX()
		r.SetNZ(r.X, widthX)
	case insts.OpTAY:
		r.Y = r.A & r.MaskX()
		r.SetNZ(r.Y, widthX)
	case insts.OpTXA:
		r.A = r.X & r.MaskM()
		r.SetNZ(r.A, widthM)
	case insts.OpTYA:
		r.A = r.Y & r.MaskM()
		r.SetNZ(r.A, widthM)
	case insts.OpTSX:
		r.X = r.S & r.MaskX()
		r.SetNZ(r.X, widthX)
	case insts.OpTXS:
		r.S = r.X
		if r.Flag(FlagE) {
			r.S = 0x100 | (r.S & 0xFF)
		}
	case insts.OpTXY:
		r.Y = r.X
		r.SetNZ(r.Y, widthX)
	case insts.OpTYX:
		r.X = r.Y
		r.SetNZ(r.X, widthX)
	case insts.OpTCD:
		r.D = r.A
		r.SetNZ(r.D, 2)
	case insts.OpTDC:
		r.A = r.D & r.MaskM()
		r.SetNZ(r.A, widthM)
	case insts.OpTCS:
		r.S = r.A
		if r.Flag(FlagE) {
			r.S = 0x100 | (r.S & 0xFF)
		}
	case insts.OpTSC:
		r.A = r.S
		r.SetNZ(r.A, widthM)
	case insts.OpXBA:
		lo := r.A & 0xFF
		mid := (r.A >> 8) & 0xFF
		r.A = (r.A &^ uint32(0xFFFF)) | (lo << 8) | mid
		r.SetNZ(r.A&0xFF, 1)

	// Stack.
	case insts.OpPHA:
		return e.push(r.A, widthM)
	case insts.OpPLA:
		val, err := e.lsu.Pull(widthM)
		if err != nil {
			return StepResult{Err: err}
		}
		r.SetA(val, widthM)
		r.SetNZ(val, widthM)
	case insts.OpPHX:
		return e.push(r.X, widthX)
	case insts.OpPLX:
		return e.pullInto(&r.X, widthX)
	case insts.OpPHY:
		return e.push(r.Y, widthX)
	case insts.OpPLY:
		return e.pullInto(&r.Y, widthX)
	case insts.OpPHP:
		// B and the unused bit read as set in the pushed byte.
		return e.push(uint32(r.P)|0x30, 1)
	case insts.OpPLP:
		val, err := e.lsu.Pull(1)
		if err != nil {
			return StepResult{Err: err}
		}
		r.P = (r.P & 0xFF00) | uint16(val)
	case insts.OpPHD:
		return e.push(r.D, 2)
	case insts.OpPLD:
		val, err := e.lsu.Pull(2)
		if err != nil {
			return StepResult{Err: err}
		}
		r.D = val
		r.SetNZ(r.D, 2)
	case insts.OpPHB:
		return e.push(r.B>>16, 1)
	case insts.OpPHK:
		return e.push(r.PC>>16, 1)
	case insts.OpPEA:
		return e.push(inst.Arg, 2)
	case insts.OpPEI:
		addr, err := e.lsu.EffectiveAddr(inst)
		if err != nil {
			return StepResult{Err: err}
		}
		val, err := e.lsu.Load(addr, 2)
		if err != nil {
			return StepResult{Err: err}
		}
		return e.push(val, 2)
	case insts.OpPER:
		return e.push(inst.End()+uint32(int32(int16(inst.Arg))), 2)

	// Branches and jumps.
	case insts.OpBPL, insts.OpBMI, insts.OpBVC, insts.OpBVS,
		insts.OpBCC, insts.OpBCS, insts.OpBNE, insts.OpBEQ,
		insts.OpBRA, insts.OpBRL:
		if e.branchUnit.Taken(inst.Op) {
			r.PC = e.branchUnit.Target(inst)
		}
	case insts.OpJMP:
		switch inst.Mode {
		case insts.ModeAbs:
			r.PC = (r.PC & 0xFFFF0000) | (inst.Arg & 0xFFFF)
		case insts.ModeLong:
			r.PC = inst.Arg & 0xFFFFFF
		default: // (abs), (abs,X)
			target, err := e.lsu.EffectiveAddr(inst)
			if err != nil {
				return StepResult{Err: err}
			}
			r.PC = target
		}
	case insts.OpJML:
		target, err := e.lsu.EffectiveAddr(inst)
		if err != nil {
			return StepResult{Err: err}
		}
		r.PC = target
	case insts.OpJSR:
		var target uint32
		if inst.Mode == insts.ModeAbs {
			target = (r.PC & 0xFFFF0000) | (inst.Arg & 0xFFFF)
		} else {
			t, err := e.lsu.EffectiveAddr(inst)
			if err != nil {
				return StepResult{Err: err}
			}
			target = t
		}
		if err := e.lsu.Push(r.PC-1, 2); err != nil {
			return StepResult{Err: err}
		}
		r.PC = target
	case insts.OpJSL:
		if err := e.lsu.Push(r.PC>>16, 1); err != nil {
			return StepResult{Err: err}
		}
		if err := e.lsu.Push(r.PC-1, 2); err != nil {
			return StepResult{Err: err}
		}
		r.PC = inst.Arg & 0xFFFFFF
	case insts.OpRTS:
		addr, err := e.lsu.Pull(2)
		if err != nil {
			return StepResult{Err: err}
		}
		r.PC = (addr + 1) & 0xFFFF
	case insts.OpRTL:
		addr, err := e.lsu.Pull(2)
		if err != nil {
			return StepResult{Err: err}
		}
		bank, err := e.lsu.Pull(1)
		if err != nil {
			return StepResult{Err: err}
		}
		r.PC = ((addr + 1) & 0xFFFF) | (bank << 16)
	case insts.OpRTI:
		p, err := e.lsu.Pull(2)
		if err != nil {
			return StepResult{Err: err}
		}
		pc, err := e.lsu.Pull(4)
		if err != nil {
			return StepResult{Err: err}
		}
		r.P = uint16(p)
		r.PC = pc
	case insts.OpBRK:
		vec := uint32(VecBRK)
		if r.Flag(FlagE) {
			vec = VecIRQEmu
		}
		if err := e.exceptionEnter(vec, r.PC); err != nil {
			return StepResult{Err: err}
		}
		r.SetFlag(FlagD, false)

	// Flags.
	case insts.OpCLC:
		r.SetFlag(FlagC, false)
	case insts.OpSEC:
		r.SetFlag(FlagC, true)
	case insts.OpCLI:
		r.SetFlag(FlagI, false)
	case insts.OpSEI:
		r.SetFlag(FlagI, true)
	case insts.OpCLD:
		r.SetFlag(FlagD, false)
	case insts.OpSED:
		r.SetFlag(FlagD, true)
	case insts.OpCLV:
		r.SetFlag(FlagV, false)
	case insts.OpREP:
		mask := uint16(inst.Arg)
		if !r.Flag(FlagS) {
			mask &^= FlagS
		}
		r.P &^= mask
	case insts.OpSEP:
		mask := uint16(inst.Arg)
		if !r.Flag(FlagS) && mask&FlagS != 0 {
			return StepResult{Err: &PrivilegeFault{Addr: inst.Addr}}
		}
		r.P |= mask
	case insts.OpXCE:
		c := r.Flag(FlagC)
		eBit := r.Flag(FlagE)
		r.SetFlag(FlagC, eBit)
		r.SetFlag(FlagE, c)
		if r.Flag(FlagE) {
			r.S = 0x100 | (r.S & 0xFF)
		}

	// System.
	case insts.OpNOP, insts.OpFENCE:
	case insts.OpWAI:
		e.state = StateWaiting
	case insts.OpSTP:
		if !r.Flag(FlagS) {
			return StepResult{Err: &PrivilegeFault{Addr: inst.Addr}}
		}
		e.state = StateHalted
	case insts.OpMVN, insts.OpMVP:
		if err := e.blockMove(inst); err != nil {
			return StepResult{Err: err}
		}

	// Extended operations.
	case insts.OpMUL, insts.OpMULU:
		val, err := e.readOperand(inst, widthM)
		if err != nil {
			return StepResult{Err: err}
		}
		lo, hi := e.alu.Mul(r.A, val, widthM, inst.Op == insts.OpMUL)
		r.A = lo
		if widthM == 4 {
			r.T = hi
		}
	case insts.OpDIV, insts.OpDIVU:
		val, err := e.readOperand(inst, widthM)
		if err != nil {
			return StepResult{Err: err}
		}
		quo, rem, ok := e.alu.Div(r.A, val, widthM, inst.Op == insts.OpDIV)
		if ok {
			r.A = quo
			r.T = rem
		}
	case insts.OpCAS:
		addr, err := e.lsu.EffectiveAddr(inst)
		if err != nil {
			return StepResult{Err: err}
		}
		val, err := e.lsu.Load(addr, widthM)
		if err != nil {
			return StepResult{Err: err}
		}
		if val == r.X&WidthMask(widthM) {
			if err := e.lsu.Store(addr, widthM, r.A); err != nil {
				return StepResult{Err: err}
			}
			r.SetFlag(FlagZ, true)
		} else {
			r.X = val
			r.SetFlag(FlagZ, false)
		}
	case insts.OpLLI:
		addr, err := e.lsu.EffectiveAddr(inst)
		if err != nil {
			return StepResult{Err: err}
		}
		val, err := e.lsu.LoadLinked(addr, widthM)
		if err != nil {
			return StepResult{Err: err}
		}
		r.A = val
		r.SetNZ(val, widthM)
	case insts.OpSCI:
		addr, err := e.lsu.EffectiveAddr(inst)
		if err != nil {
			return StepResult{Err: err}
		}
		ok, err := e.lsu.StoreConditional(addr, widthM, r.A)
		if err != nil {
			return StepResult{Err: err}
		}
		r.SetFlag(FlagZ, ok)
	case insts.OpSD:
		val, err := e.readOperand(inst, 4)
		if err != nil {
			return StepResult{Err: err}
		}
		r.D = val
	case insts.OpSB:
		val, err := e.readOperand(inst, 4)
		if err != nil {
			return StepResult{Err: err}
		}
		r.B = val
	case insts.OpENR:
		r.SetFlag(FlagR, true)
	case insts.OpDSR:
		r.SetFlag(FlagR, false)
	case insts.OpTRAP:
		return e.trap(byte(inst.Arg))
	case insts.OpTTA:
		r.A = r.T
		r.SetNZ(r.A, widthM)
	case insts.OpTAT:
		r.T = r.A
	case insts.OpLDQ:
		addr, err := e.lsu.EffectiveAddr(inst)
		if err != nil {
			return StepResult{Err: err}
		}
		lo, err := e.lsu.Load(addr, 4)
		if err != nil {
			return StepResult{Err: err}
		}
		hi, err := e.lsu.Load(addr+4, 4)
		if err != nil {
			return StepResult{Err: err}
		}
		r.A, r.T = lo, hi
		r.SetNZ(r.A, 4)
	case insts.OpSTQ:
		addr, err := e.lsu.EffectiveAddr(inst)
		if err != nil {
			return StepResult{Err: err}
		}
		if err := e.lsu.Store(addr, 4, r.A); err != nil {
			return StepResult{Err: err}
		}
		if err := e.lsu.Store(addr+4, 4, r.T); err != nil {
			return StepResult{Err: err}
		}
	case insts.OpLEA:
		// LEA yields the raw direct-page or absolute address; the
		// register window never applies to address formation.
		switch inst.Mode {
		case insts.ModeDP:
			r.A = r.D + (inst.Arg & 0xFF)
		case insts.ModeDPX:
			r.A = r.D + (inst.Arg & 0xFF) + r.X
		case insts.ModeAbs:
			r.A = inst.Arg & 0xFFFF
		case insts.ModeAbsX:
			r.A = (inst.Arg & 0xFFFF) + r.X
		}
		r.SetNZ(r.A, 4)
	case insts.OpRegALU:
		return e.regALU(inst, widthM)
	case insts.OpRegShift:
		return e.regShift(inst, widthM)
	case insts.OpRegExt:
		return e.regExtend(inst, widthM)

	// Wide forms.
	case insts.OpWideLDA:
		if inst.Mode == insts.ModeImm32 {
			r.A = inst.Arg
			r.SetNZ(r.A, 4)
			break
		}
		addr, err := e.lsu.EffectiveAddr(inst)
		if err != nil {
			return StepResult{Err: err}
		}
		val, err := e.lsu.Load(addr, widthM)
		if err != nil {
			return StepResult{Err: err}
		}
		r.SetA(val, widthM)
		r.SetNZ(val, widthM)
	case insts.OpWideLDX:
		r.X = inst.Arg
		r.SetNZ(r.X, 4)
	case insts.OpWideLDY:
		r.Y = inst.Arg
		r.SetNZ(r.Y, 4)
	case insts.OpWideSTA:
		addr, err := e.lsu.EffectiveAddr(inst)
		if err != nil {
			return StepResult{Err: err}
		}
		if err := e.lsu.Store(addr, widthM, r.A); err != nil {
			return StepResult{Err: err}
		}
	case insts.OpWideJMP:
		r.PC = inst.Arg
	case insts.OpWideJSR:
		if err := e.lsu.Push(r.PC, 4); err != nil {
			return StepResult{Err: err}
		}
		r.PC = inst.Arg
	case insts.OpDebugSignal:
		return StepResult{Debug: 0x01}

	default:
		if e.compatNOP() {
			return StepResult{}
		}
		return StepResult{Err: &DecodeFault{Addr: inst.Addr, Opcode: inst.Opcode, Sub: inst.Sub}}
	}
	return StepResult{}
}

// readOperand resolves an instruction's value operand: the immediate
// for immediate modes, a memory or register-window load otherwise.
func (e *Emulator) readOperand(inst insts.Inst, width int) (uint32, error) {
	switch inst.Mode {
	case insts.ModeImmM, insts.ModeImmX, insts.ModeImm8, insts.ModeImm16, insts.ModeImm32:
		return inst.Arg & WidthMask(width), nil
	}
	addr, err := e.lsu.EffectiveAddr(inst)
	if err != nil {
		return 0, err
	}
	return e.lsu.Load(addr, width)
}

func (e *Emulator) writeOperand(inst insts.Inst, width int, val uint32) StepResult {
	addr, err := e.lsu.EffectiveAddr(inst)
	if err != nil {
		return StepResult{Err: err}
	}
	if err := e.lsu.Store(addr, width, val); err != nil {
		return StepResult{Err: err}
	}
	return StepResult{}
}

func (e *Emulator) logic(inst insts.Inst, width int, f func(a, b uint32) uint32) StepResult {
	r := e.regFile
	val, err := e.readOperand(inst, width)
	if err != nil {
		return StepResult{Err: err}
	}
	r.A = f(r.A, val) & WidthMask(width)
	r.SetNZ(r.A, width)
	return StepResult{}
}

// modify implements read-modify-write operations, including the
// accumulator form.
func (e *Emulator) modify(inst insts.Inst, width int, f func(v uint32, w int) uint32) StepResult {
	r := e.regFile
	if inst.Mode == insts.ModeAccumulator {
		r.SetA(f(r.A&WidthMask(width), width), width)
		return StepResult{}
	}
	addr, err := e.lsu.EffectiveAddr(inst)
	if err != nil {
		return StepResult{Err: err}
	}
	val, err := e.lsu.Load(addr, width)
	if err != nil {
		return StepResult{Err: err}
	}
	if err := e.lsu.Store(addr, width, f(val, width)); err != nil {
		return StepResult{Err: err}
	}
	return StepResult{}
}

func (e *Emulator) bitOp(inst insts.Inst, width int, f func(a, v uint32) uint32) StepResult {
	r := e.regFile
	addr, err := e.lsu.EffectiveAddr(inst)
	if err != nil {
		return StepResult{Err: err}
	}
	val, err := e.lsu.Load(addr, width)
	if err != nil {
		return StepResult{Err: err}
	}
	r.SetFlag(FlagZ, r.A&val&WidthMask(width) == 0)
	if err := e.lsu.Store(addr, width, f(r.A, val)&WidthMask(width)); err != nil {
		return StepResult{Err: err}
	}
	return StepResult{}
}

func (e *Emulator) push(val uint32, width int) StepResult {
	if err := e.lsu.Push(val, width); err != nil {
		return StepResult{Err: err}
	}
	return StepResult{}
}

func (e *Emulator) pullInto(dst *uint32, width int) StepResult {
	val, err := e.lsu.Pull(width)
	if err != nil {
		return StepResult{Err: err}
	}
	*dst = val
	e.regFile.SetNZ(val, width)
	return StepResult{}
}

// blockMove copies one byte per step iteration, rewinding PC until the
// accumulator underflows at the active width.
func (e *Emulator) blockMove(inst insts.Inst) error {
	r := e.regFile
	b, err := e.memory.ReadByte(r.X)
	if err != nil {
		return err
	}
	if err := e.memory.WriteByte(r.Y, b); err != nil {
		return err
	}
	if inst.Op == insts.OpMVN {
		r.X++
		r.Y++
	} else {
		r.X--
		r.Y--
	}
	r.A--
	mask := r.MaskM()
	if r.A&mask != mask {
		r.PC = inst.Addr
	}
	return nil
}

// trap dispatches the syscall bridge when one is installed; otherwise
// it vectors through the syscall exception table like any other trap.
func (e *Emulator) trap(code byte) StepResult {
	if e.syscallHandler != nil {
		res := e.syscallHandler.Handle(code)
		return StepResult{Exited: res.Exited, ExitCode: res.ExitCode}
	}
	vec := VecSyscall + uint32(code)*4
	if err := e.exceptionEnter(vec, e.regFile.PC); err != nil {
		return StepResult{Err: err}
	}
	return StepResult{}
}

func (e *Emulator) regALU(inst insts.Inst, width int) StepResult {
	r := e.regFile
	op := (inst.RegOp[0] >> 4) & 0x0F
	mode := inst.RegOp[0] & 0x0F
	destAddr := e.lsu.dpAddr(uint32(inst.RegOp[1]))

	var src uint32
	switch mode {
	case insts.RegSrcImm:
		src = inst.Arg & WidthMask(width)
	case insts.RegSrcA:
		src = r.A & WidthMask(width)
	default:
		addr, err := e.lsu.RegALUSrcAddr(mode, inst.Arg)
		if err != nil {
			return StepResult{Err: err}
		}
		v, err := e.lsu.Load(addr, width)
		if err != nil {
			return StepResult{Err: err}
		}
		src = v
	}

	dest, err := e.lsu.Load(destAddr, width)
	if err != nil {
		return StepResult{Err: err}
	}

	var result uint32
	store := true
	switch op {
	case insts.RegALULd:
		result = src
		r.SetNZ(result, width)
	case insts.RegALUAdc:
		result = e.alu.Adc(dest, src, width)
	case insts.RegALUSbc:
		result = e.alu.Sbc(dest, src, width)
	case insts.RegALUAnd:
		result = (dest & src) & WidthMask(width)
		r.SetNZ(result, width)
	case insts.RegALUOra:
		result = (dest | src) & WidthMask(width)
		r.SetNZ(result, width)
	case insts.RegALUEor:
		result = (dest ^ src) & WidthMask(width)
		r.SetNZ(result, width)
	case insts.RegALUCmp:
		e.alu.Cmp(dest, src, width)
		store = false
	default:
		store = false
	}
	if store {
		if err := e.lsu.Store(destAddr, width, result); err != nil {
			return StepResult{Err: err}
		}
	}
	return StepResult{}
}

func (e *Emulator) regShift(inst insts.Inst, width int) StepResult {
	op := int((inst.RegOp[0] >> 5) & 0x07)
	count := uint32(inst.RegOp[0] & 0x1F)
	if count == insts.ShiftCountFromA {
		count = e.regFile.A & 0x1F
	}
	destAddr := e.lsu.dpAddr(uint32(inst.RegOp[1]))
	srcAddr := e.lsu.dpAddr(inst.Arg)

	src, err := e.lsu.Load(srcAddr, width)
	if err != nil {
		return StepResult{Err: err}
	}
	result := e.alu.BarrelShift(op, src, count, width)
	if err := e.lsu.Store(destAddr, width, result); err != nil {
		return StepResult{Err: err}
	}
	return StepResult{}
}

func (e *Emulator) regExtend(inst insts.Inst, width int) StepResult {
	destAddr := e.lsu.dpAddr(uint32(inst.RegOp[1]))
	srcAddr := e.lsu.dpAddr(inst.Arg)

	src, err := e.lsu.Load(srcAddr, width)
	if err != nil {
		return StepResult{Err: err}
	}
	result := e.alu.Extend(int(inst.RegOp[0]), src, width)
	if err := e.lsu.Store(destAddr, width, result); err != nil {
		return StepResult{Err: err}
	}
	return StepResult{}
}
