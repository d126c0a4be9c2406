package benchmarks

// Benchmark kernels, hand-assembled for the 32-bit native mode the
// harness enters through. Each counts X down from n and halts.

func imm32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

// ALULoop exercises register arithmetic and a conditional branch:
//
//	LDX #n
//	loop: INC A
//	      DEX
//	      BNE loop
//	      STP
func ALULoop(n uint32) []byte {
	prog := append([]byte{0xA2}, imm32(n)...)
	return append(prog,
		0x1A,       // INC A
		0xCA,       // DEX
		0xD0, 0xFC, // BNE loop
		0xDB, // STP
	)
}

// MemoryLoop adds an absolute load to every iteration:
//
//	LDX #n
//	loop: LDA $5000
//	      DEX
//	      BNE loop
//	      STP
func MemoryLoop(n uint32) []byte {
	prog := append([]byte{0xA2}, imm32(n)...)
	return append(prog,
		0xAD, 0x00, 0x50, // LDA $5000
		0xCA,       // DEX
		0xD0, 0xFA, // BNE loop
		0xDB, // STP
	)
}

// StrideLoop indexes each load by X so the walk crosses cache lines
// as X counts down:
//
//	LDX #n
//	loop: LDA $5000,X
//	      DEX
//	      BNE loop
//	      STP
func StrideLoop(n uint32) []byte {
	prog := append([]byte{0xA2}, imm32(n)...)
	return append(prog,
		0xBD, 0x00, 0x50, // LDA $5000,X
		0xCA,       // DEX
		0xD0, 0xFA, // BNE loop
		0xDB, // STP
	)
}

// CallLoop measures subroutine linkage:
//
//	LDX #n
//	loop: JSR sub
//	      DEX
//	      BNE loop
//	      STP
//	sub:  RTS
func CallLoop(n uint32) []byte {
	prog := append([]byte{0xA2}, imm32(n)...)
	sub := loadAddr + 12
	return append(prog,
		0x20, byte(sub), byte(sub>>8), // JSR sub
		0xCA,       // DEX
		0xD0, 0xFA, // BNE loop
		0xDB, // STP
		0x60, // RTS
	)
}
