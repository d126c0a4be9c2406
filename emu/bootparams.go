package emu

import (
	"encoding/binary"
	"fmt"
)

// Boot contract constants shared by firmware, kernels, and tests.
const (
	// BootParamsAddr is the well-known address of the boot-parameter
	// record written by firmware and read by loaded kernels.
	BootParamsAddr = 0x00001000

	// BootParamsMagic identifies a valid boot-parameter record.
	BootParamsMagic = 0x4D363542 // "B65M"

	// BootHeaderMagic identifies a bootable disk image ("M65B").
	BootHeaderMagic = 0x4236354D

	// BootHeaderVersion is the current disk header layout version.
	BootHeaderVersion = 1
)

// BootParams is the fixed-layout record at BootParamsAddr: eight
// little-endian 32-bit fields conveying load-time configuration from
// firmware to a kernel. The engine has no special knowledge of it; it
// travels over the bus like any other data.
type BootParams struct {
	Magic       uint32
	Version     uint32
	MemBase     uint32
	MemSize     uint32
	KernelStart uint32
	KernelSize  uint32
	Reserved    uint32
	UARTBase    uint32
}

// WriteTo stores the record at BootParamsAddr.
func (p *BootParams) WriteTo(m *Memory) error {
	fields := [8]uint32{
		p.Magic, p.Version, p.MemBase, p.MemSize,
		p.KernelStart, p.KernelSize, p.Reserved, p.UARTBase,
	}
	for i, f := range fields {
		if err := m.Store(BootParamsAddr+uint32(i*4), 4, f); err != nil {
			return err
		}
	}
	return nil
}

// ReadBootParams loads the record back from BootParamsAddr.
func ReadBootParams(m *Memory) (BootParams, error) {
	var fields [8]uint32
	for i := range fields {
		v, err := m.Load(BootParamsAddr+uint32(i*4), 4)
		if err != nil {
			return BootParams{}, err
		}
		fields[i] = v
	}
	return BootParams{
		Magic: fields[0], Version: fields[1],
		MemBase: fields[2], MemSize: fields[3],
		KernelStart: fields[4], KernelSize: fields[5],
		Reserved: fields[6], UARTBase: fields[7],
	}, nil
}

// BootHeader is the 32-byte record at sector 0 of a bootable disk
// image, describing where the kernel lives and where it loads.
type BootHeader struct {
	Magic             uint32
	Version           uint32
	KernelSector      uint32
	KernelSize        uint32
	KernelLoadAddr    uint32
	KernelEntryOffset uint32
	Flags             uint32
	Reserved          uint32
}

// MarshalBinary encodes the header in its on-disk form.
func (h *BootHeader) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 32)
	fields := [8]uint32{
		h.Magic, h.Version, h.KernelSector, h.KernelSize,
		h.KernelLoadAddr, h.KernelEntryOffset, h.Flags, h.Reserved,
	}
	for i, f := range fields {
		binary.LittleEndian.PutUint32(buf[i*4:], f)
	}
	return buf, nil
}

// UnmarshalBinary decodes and validates a sector-0 header.
func (h *BootHeader) UnmarshalBinary(data []byte) error {
	if len(data) < 32 {
		return fmt.Errorf("boot header: need 32 bytes, have %d", len(data))
	}
	h.Magic = binary.LittleEndian.Uint32(data[0:])
	h.Version = binary.LittleEndian.Uint32(data[4:])
	h.KernelSector = binary.LittleEndian.Uint32(data[8:])
	h.KernelSize = binary.LittleEndian.Uint32(data[12:])
	h.KernelLoadAddr = binary.LittleEndian.Uint32(data[16:])
	h.KernelEntryOffset = binary.LittleEndian.Uint32(data[20:])
	h.Flags = binary.LittleEndian.Uint32(data[24:])
	h.Reserved = binary.LittleEndian.Uint32(data[28:])
	if h.Magic != BootHeaderMagic {
		return fmt.Errorf("boot header: bad magic %08X", h.Magic)
	}
	return nil
}
