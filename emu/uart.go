package emu

import "io"

// UART register window layout.
const (
	UARTBase       = 0x10006000
	UARTWindowSize = 0x1000

	uartRegData   = 0x00
	uartRegStatus = 0x04

	// UARTStatusRXAvail and UARTStatusTXReady are the STATUS bits
	// firmware polls before touching DATA.
	UARTStatusRXAvail = 1 << 0
	UARTStatusTXReady = 1 << 1
)

// UART is a polled character device. Transmit is always ready: bytes
// written to DATA go straight to the output sink. Receive data is
// injected by the host through PushInput and drained one byte per
// DATA read.
type UART struct {
	out io.Writer
	rx  []byte
}

// NewUART creates a UART writing transmitted bytes to out.
func NewUART(out io.Writer) *UART {
	return &UART{out: out}
}

// PushInput queues bytes for the guest to read from DATA.
func (u *UART) PushInput(data []byte) {
	u.rx = append(u.rx, data...)
}

// ReadReg implements Device. STATUS reads are idempotent.
func (u *UART) ReadReg(offset uint32, size int) uint32 {
	switch offset &^ 3 {
	case uartRegData:
		if len(u.rx) == 0 {
			return 0
		}
		b := u.rx[0]
		u.rx = u.rx[1:]
		return uint32(b)
	case uartRegStatus:
		status := uint32(UARTStatusTXReady)
		if len(u.rx) > 0 {
			status |= UARTStatusRXAvail
		}
		return status
	}
	return 0
}

// WriteReg implements Device. Writes outside DATA are ignored.
func (u *UART) WriteReg(offset uint32, size int, value uint32) {
	if offset&^3 == uartRegData && u.out != nil {
		u.out.Write([]byte{byte(value)})
	}
}

// Flush pushes buffered output to the underlying sink when the sink
// supports it. Called before the run loop terminates.
func (u *UART) Flush() {
	if f, ok := u.out.(interface{ Flush() error }); ok {
		f.Flush()
	}
}
