package emu

// Block device register window layout.
const (
	BlockBase       = 0x1000A000
	BlockWindowSize = 0x1000

	blockRegCtrl   = 0x00
	blockRegStatus = 0x04
	blockRegSector = 0x0C
	blockRegCount  = 0x28
	blockRegDMA    = 0x38

	// BlockStatusReady is set once an issued command has completed.
	// It starts clear and clears again when a command is accepted.
	BlockStatusReady = 1 << 1

	// SectorSize is the fixed transfer granularity.
	SectorSize = 512

	// BlockCmdRead copies COUNT sectors starting at SECTOR into
	// memory at the DMA address. BlockCmdWrite is the reverse;
	// BlockCmdFlush is a no-op that completes immediately.
	BlockCmdRead  = 1
	BlockCmdWrite = 2
	BlockCmdFlush = 3

	maxSectorCount = 256
)

// BlockDevice is a sector-addressed storage model with synchronous
// DMA: a command written to CTRL completes entirely within that bus
// access. Invalid sector/count programming leaves the device
// perpetually not-ready; firmware is expected to poll under a cycle
// budget.
type BlockDevice struct {
	image    []byte
	bus      *Memory
	writable bool

	sector uint32
	count  uint32
	dma    uint32
	ready  bool
}

// NewBlockDevice creates a block device over a backing image. The bus
// is attached separately because the device DMAs through it.
func NewBlockDevice(image []byte, writable bool) *BlockDevice {
	return &BlockDevice{image: image, writable: writable}
}

// AttachBus gives the device its DMA path.
func (b *BlockDevice) AttachBus(bus *Memory) {
	b.bus = bus
}

// Image returns the backing image, letting tests inspect write-backs.
func (b *BlockDevice) Image() []byte {
	return b.image
}

// ReadReg implements Device. STATUS reads never change device state.
func (b *BlockDevice) ReadReg(offset uint32, size int) uint32 {
	switch offset &^ 3 {
	case blockRegStatus:
		if b.ready {
			return BlockStatusReady
		}
		return 0
	case blockRegSector:
		return b.sector
	case blockRegCount:
		return b.count
	case blockRegDMA:
		return b.dma
	}
	return 0
}

// WriteReg implements Device.
func (b *BlockDevice) WriteReg(offset uint32, size int, value uint32) {
	switch offset &^ 3 {
	case blockRegCtrl:
		b.execute(value)
	case blockRegSector:
		b.sector = value
	case blockRegCount:
		b.count = value
	case blockRegDMA:
		b.dma = value
	}
}

func (b *BlockDevice) execute(cmd uint32) {
	b.ready = false
	switch cmd {
	case BlockCmdRead:
		if !b.validRange() || b.bus == nil {
			return
		}
		start := b.sector * SectorSize
		n := b.count * SectorSize
		if b.bus.StoreBytes(b.dma, b.image[start:start+n]) != nil {
			return
		}
		b.ready = true
	case BlockCmdWrite:
		if !b.validRange() || b.bus == nil || !b.writable {
			return
		}
		start := b.sector * SectorSize
		n := b.count * SectorSize
		data, err := b.bus.LoadBytes(b.dma, int(n))
		if err != nil {
			return
		}
		copy(b.image[start:], data)
		b.ready = true
	case BlockCmdFlush:
		b.ready = true
	}
}

func (b *BlockDevice) validRange() bool {
	if b.count == 0 || b.count > maxSectorCount {
		return false
	}
	end := uint64(b.sector) + uint64(b.count)
	return end*SectorSize <= uint64(len(b.image))
}
