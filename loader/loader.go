// Package loader turns program images into memory contents for the
// M65832 engine: raw flat binaries, Intel HEX records, and bootable
// disk images.
package loader

import (
	"fmt"
	"os"
	"strings"
)

// DefaultLoadAddr is where a flat binary lands when no explicit load
// address is given.
const DefaultLoadAddr = 0x00002000

// Segment is a contiguous span of program bytes at a fixed address.
type Segment struct {
	Addr uint32
	Data []byte
}

// Program is a loaded image ready to be copied into engine memory.
type Program struct {
	// Entry is the address where execution begins.
	Entry uint32
	// Segments holds the image contents, ascending by address.
	Segments []Segment
}

// Load reads a program image from path, choosing the format by file
// extension: .hex and .ihx parse as Intel HEX, everything else is a
// flat binary placed at loadAddr.
func Load(path string, loadAddr uint32) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read program image: %w", err)
	}

	ext := strings.ToLower(strings.TrimPrefix(getExt(path), "."))
	if ext == "hex" || ext == "ihx" {
		return LoadHex(data)
	}
	return LoadFlat(data, loadAddr), nil
}

func getExt(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i:]
	}
	return ""
}

// LoadFlat wraps a raw binary as a single segment at addr, entered at
// its first byte.
func LoadFlat(data []byte, addr uint32) *Program {
	seg := Segment{Addr: addr, Data: append([]byte(nil), data...)}
	return &Program{Entry: addr, Segments: []Segment{seg}}
}

// Size returns the total number of program bytes across segments.
func (p *Program) Size() int {
	n := 0
	for _, seg := range p.Segments {
		n += len(seg.Data)
	}
	return n
}

// MemoryWriter is the sink a program is installed into. The engine's
// bus satisfies it.
type MemoryWriter interface {
	StoreBytes(addr uint32, data []byte) error
}

// Install copies every segment into memory.
func (p *Program) Install(mem MemoryWriter) error {
	for _, seg := range p.Segments {
		if err := mem.StoreBytes(seg.Addr, seg.Data); err != nil {
			return fmt.Errorf("install segment at %08X: %w", seg.Addr, err)
		}
	}
	return nil
}
