package emu

import "fmt"

// DefaultMemorySize is the RAM arena size used when no explicit size
// is configured: 16 MiB, enough for the firmware vectors, the kernel
// load window, and test programs.
const DefaultMemorySize = 16 * 1024 * 1024

// MemoryFault reports an access outside the mapped address space or a
// write into read-only storage. The execution engine treats it as
// fatal in the default configuration.
type MemoryFault struct {
	Addr  uint32
	Write bool
}

func (f *MemoryFault) Error() string {
	kind := "read"
	if f.Write {
		kind = "write"
	}
	return fmt.Sprintf("memory fault: %s at %08X", kind, f.Addr)
}

// Device is a peripheral register window mapped onto the bus. Offsets
// are relative to the window base; size is 1, 2, or 4 bytes. Values
// travel little-endian, matching the bus byte order.
type Device interface {
	ReadReg(offset uint32, size int) uint32
	WriteReg(offset uint32, size int, value uint32)
}

type region struct {
	base uint32
	size uint32
	dev  Device
	data []byte // read-only backing when dev is nil
}

func (r *region) contains(addr uint32) bool {
	return addr >= r.base && addr-r.base < r.size
}

// Memory is the unified bus: a flat RAM arena plus an ordered list of
// device and ROM windows. Windows are resolved first-match before RAM.
// All multi-byte accesses are little-endian; unaligned accesses are
// performed byte-by-byte and never touch adjacent memory.
type Memory struct {
	ram     []byte
	regions []*region

	// watch observes every byte access when set (watchpoint support).
	watch func(addr uint32, isWrite bool)
}

// NewMemory creates a bus with the default RAM size.
func NewMemory() *Memory {
	return NewMemoryWithSize(DefaultMemorySize)
}

// NewMemoryWithSize creates a bus backed by size bytes of RAM at
// address zero.
func NewMemoryWithSize(size uint32) *Memory {
	return &Memory{ram: make([]byte, size)}
}

// MapDevice maps a peripheral register window. Earlier mappings win on
// overlap.
func (m *Memory) MapDevice(base, size uint32, dev Device) {
	m.regions = append(m.regions, &region{base: base, size: size, dev: dev})
}

// MapROM maps read-only storage over the address space. Reads come
// from data; writes fault.
func (m *Memory) MapROM(base uint32, data []byte) {
	m.regions = append(m.regions, &region{base: base, size: uint32(len(data)), data: data})
}

// SetWatchFunc installs an observer invoked for every byte access.
func (m *Memory) SetWatchFunc(f func(addr uint32, isWrite bool)) {
	m.watch = f
}

// IsDevice reports whether addr falls inside a peripheral window.
// Timing models use it to keep device registers out of cache models.
func (m *Memory) IsDevice(addr uint32) bool {
	r := m.findRegion(addr)
	return r != nil && r.dev != nil
}

// Size returns the RAM arena size.
func (m *Memory) Size() uint32 {
	return uint32(len(m.ram))
}

func (m *Memory) findRegion(addr uint32) *region {
	for _, r := range m.regions {
		if r.contains(addr) {
			return r
		}
	}
	return nil
}

// ReadByte reads one byte, routing through device windows. Implements
// insts.ByteReader so the decoder fetches through the same path as
// data accesses.
func (m *Memory) ReadByte(addr uint32) (byte, error) {
	if m.watch != nil {
		m.watch(addr, false)
	}
	if r := m.findRegion(addr); r != nil {
		if r.dev != nil {
			return byte(r.dev.ReadReg(addr-r.base, 1)), nil
		}
		return r.data[addr-r.base], nil
	}
	if addr < uint32(len(m.ram)) {
		return m.ram[addr], nil
	}
	return 0, &MemoryFault{Addr: addr}
}

// WriteByte writes one byte. Writes to ROM or unmapped space fault.
func (m *Memory) WriteByte(addr uint32, val byte) error {
	if m.watch != nil {
		m.watch(addr, true)
	}
	if r := m.findRegion(addr); r != nil {
		if r.dev != nil {
			r.dev.WriteReg(addr-r.base, 1, uint32(val))
			return nil
		}
		return &MemoryFault{Addr: addr, Write: true}
	}
	if addr < uint32(len(m.ram)) {
		m.ram[addr] = val
		return nil
	}
	return &MemoryFault{Addr: addr, Write: true}
}

// Load reads a little-endian value of width 1, 2, or 4 bytes. An
// access falling entirely inside one device window is delivered to the
// device at full width; everything else is assembled byte-by-byte.
func (m *Memory) Load(addr uint32, width int) (uint32, error) {
	if width > 1 {
		if r := m.findRegion(addr); r != nil && r.dev != nil && r.contains(addr+uint32(width)-1) {
			if m.watch != nil {
				m.watch(addr, false)
			}
			return r.dev.ReadReg(addr-r.base, width), nil
		}
	}
	var v uint32
	for i := 0; i < width; i++ {
		b, err := m.ReadByte(addr + uint32(i))
		if err != nil {
			return 0, err
		}
		v |= uint32(b) << (8 * i)
	}
	return v, nil
}

// Store writes a little-endian value of width 1, 2, or 4 bytes with
// the same routing rules as Load.
func (m *Memory) Store(addr uint32, width int, val uint32) error {
	if width > 1 {
		if r := m.findRegion(addr); r != nil && r.dev != nil && r.contains(addr+uint32(width)-1) {
			if m.watch != nil {
				m.watch(addr, true)
			}
			r.dev.WriteReg(addr-r.base, width, val)
			return nil
		}
	}
	for i := 0; i < width; i++ {
		if err := m.WriteByte(addr+uint32(i), byte(val>>(8*i))); err != nil {
			return err
		}
	}
	return nil
}

// LoadBytes copies n bytes out of the bus into a fresh slice.
func (m *Memory) LoadBytes(addr uint32, n int) ([]byte, error) {
	out := make([]byte, n)
	for i := range out {
		b, err := m.ReadByte(addr + uint32(i))
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// StoreBytes copies a slice onto the bus byte-by-byte.
func (m *Memory) StoreBytes(addr uint32, data []byte) error {
	for i, b := range data {
		if err := m.WriteByte(addr+uint32(i), b); err != nil {
			return err
		}
	}
	return nil
}
