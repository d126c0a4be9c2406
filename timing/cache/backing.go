package cache

import (
	"github.com/sarchlab/m65sim/emu"
)

// BusBacking adapts the engine's bus as a BackingStore. Faulting
// accesses read as zero and drop writes; the functional engine is the
// authority on fault semantics, the cache only models time.
type BusBacking struct {
	memory *emu.Memory
}

// NewBusBacking wraps the given bus.
func NewBusBacking(memory *emu.Memory) *BusBacking {
	return &BusBacking{memory: memory}
}

// Read fetches size bytes from the bus.
func (b *BusBacking) Read(addr uint32, size int) []byte {
	data, err := b.memory.LoadBytes(addr, size)
	if err != nil {
		return make([]byte, size)
	}
	return data
}

// Write stores data to the bus.
func (b *BusBacking) Write(addr uint32, data []byte) {
	_ = b.memory.StoreBytes(addr, data)
}
