package loader

import (
	"fmt"

	"github.com/sarchlab/m65sim/emu"
)

// BuildBootDisk assembles a bootable disk image: a sector-0 header
// describing the kernel, followed by the kernel itself starting at
// sector 1. The image is padded to a whole number of sectors.
func BuildBootDisk(kernel []byte, loadAddr, entryOffset uint32) ([]byte, error) {
	if len(kernel) == 0 {
		return nil, fmt.Errorf("build boot disk: empty kernel")
	}

	header := emu.BootHeader{
		Magic:             emu.BootHeaderMagic,
		Version:           emu.BootHeaderVersion,
		KernelSector:      1,
		KernelSize:        uint32(len(kernel)),
		KernelLoadAddr:    loadAddr,
		KernelEntryOffset: entryOffset,
	}
	hdrBytes, err := header.MarshalBinary()
	if err != nil {
		return nil, err
	}

	kernelSectors := (len(kernel) + emu.SectorSize - 1) / emu.SectorSize
	image := make([]byte, (1+kernelSectors)*emu.SectorSize)
	copy(image, hdrBytes)
	copy(image[emu.SectorSize:], kernel)
	return image, nil
}

// Boot performs the firmware boot sequence on an emulator: read the
// sector-0 header, install the kernel at its load address, write the
// boot-parameter record, and enter the kernel with R0 pointing at the
// record.
func Boot(e *emu.Emulator, image []byte) (emu.BootHeader, error) {
	header, kernel, err := ReadBootDisk(image)
	if err != nil {
		return header, err
	}
	mem := e.Memory()
	if err := mem.StoreBytes(header.KernelLoadAddr, kernel); err != nil {
		return header, fmt.Errorf("install kernel: %w", err)
	}

	params := emu.BootParams{
		Magic:       emu.BootParamsMagic,
		Version:     emu.BootHeaderVersion,
		MemBase:     0,
		MemSize:     mem.Size(),
		KernelStart: header.KernelLoadAddr,
		KernelSize:  header.KernelSize,
		UARTBase:    emu.UARTBase,
	}
	if err := params.WriteTo(mem); err != nil {
		return header, fmt.Errorf("write boot params: %w", err)
	}

	e.SetEntry(header.KernelLoadAddr + header.KernelEntryOffset)
	e.RegFile().R[0] = emu.BootParamsAddr
	return header, nil
}

// ReadBootDisk validates a disk image's sector-0 header and returns
// it along with the kernel bytes it describes.
func ReadBootDisk(image []byte) (emu.BootHeader, []byte, error) {
	var header emu.BootHeader
	if len(image) < emu.SectorSize {
		return header, nil, fmt.Errorf("read boot disk: image smaller than one sector")
	}
	if err := header.UnmarshalBinary(image); err != nil {
		return header, nil, err
	}
	start := int(header.KernelSector) * emu.SectorSize
	end := start + int(header.KernelSize)
	if start < 0 || end > len(image) || end < start {
		return header, nil, fmt.Errorf("read boot disk: kernel extent outside image")
	}
	return header, image[start:end], nil
}
