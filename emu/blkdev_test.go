package emu_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/m65sim/emu"
)

// testDiskImage builds a 4-sector image where every byte of sector n
// holds the value n+1.
func testDiskImage() []byte {
	img := make([]byte, 4*emu.SectorSize)
	for s := 0; s < 4; s++ {
		for i := 0; i < emu.SectorSize; i++ {
			img[s*emu.SectorSize+i] = byte(s + 1)
		}
	}
	return img
}

var _ = Describe("BlockDevice", func() {
	var (
		e   *emu.Emulator
		dev *emu.BlockDevice
	)

	program := func(sector, count, dma uint32) {
		dev.WriteReg(0x0C, 4, sector)
		dev.WriteReg(0x28, 4, count)
		dev.WriteReg(0x38, 4, dma)
	}

	BeforeEach(func() {
		e = emu.NewEmulator(
			emu.WithStdout(&bytes.Buffer{}),
			emu.WithDiskImage(testDiskImage(), true),
		)
		dev = e.Disk()
	})

	It("starts not ready", func() {
		Expect(dev.ReadReg(0x04, 4) & emu.BlockStatusReady).To(BeZero())
	})

	It("reads back programmed registers", func() {
		program(2, 1, 0x4000)
		Expect(dev.ReadReg(0x0C, 4)).To(Equal(uint32(2)))
		Expect(dev.ReadReg(0x28, 4)).To(Equal(uint32(1)))
		Expect(dev.ReadReg(0x38, 4)).To(Equal(uint32(0x4000)))
	})

	It("DMAs a sector into memory on a read command", func() {
		program(2, 1, 0x4000)
		dev.WriteReg(0x00, 4, emu.BlockCmdRead)

		Expect(dev.ReadReg(0x04, 4) & emu.BlockStatusReady).NotTo(BeZero())
		data, err := e.Memory().LoadBytes(0x4000, emu.SectorSize)
		Expect(err).NotTo(HaveOccurred())
		Expect(data[0]).To(Equal(byte(3)))
		Expect(data[emu.SectorSize-1]).To(Equal(byte(3)))
	})

	It("DMAs multiple sectors in one command", func() {
		program(0, 2, 0x4000)
		dev.WriteReg(0x00, 4, emu.BlockCmdRead)

		data, err := e.Memory().LoadBytes(0x4000, 2*emu.SectorSize)
		Expect(err).NotTo(HaveOccurred())
		Expect(data[0]).To(Equal(byte(1)))
		Expect(data[emu.SectorSize]).To(Equal(byte(2)))
	})

	It("writes memory back to the image on a write command", func() {
		payload := bytes.Repeat([]byte{0xEE}, emu.SectorSize)
		Expect(e.Memory().StoreBytes(0x5000, payload)).To(Succeed())

		program(1, 1, 0x5000)
		dev.WriteReg(0x00, 4, emu.BlockCmdWrite)

		Expect(dev.ReadReg(0x04, 4) & emu.BlockStatusReady).NotTo(BeZero())
		img := dev.Image()
		Expect(img[emu.SectorSize]).To(Equal(byte(0xEE)))
		Expect(img[2*emu.SectorSize-1]).To(Equal(byte(0xEE)))
		Expect(img[0]).To(Equal(byte(1)))
	})

	It("completes a flush immediately", func() {
		dev.WriteReg(0x00, 4, emu.BlockCmdFlush)
		Expect(dev.ReadReg(0x04, 4) & emu.BlockStatusReady).NotTo(BeZero())
	})

	It("stays not ready on an out-of-range transfer", func() {
		program(3, 2, 0x4000) // extends past the 4-sector image
		dev.WriteReg(0x00, 4, emu.BlockCmdRead)
		Expect(dev.ReadReg(0x04, 4) & emu.BlockStatusReady).To(BeZero())
	})

	It("stays not ready on a zero-count transfer", func() {
		program(0, 0, 0x4000)
		dev.WriteReg(0x00, 4, emu.BlockCmdRead)
		Expect(dev.ReadReg(0x04, 4) & emu.BlockStatusReady).To(BeZero())
	})

	It("clears ready when a new command is accepted", func() {
		program(0, 1, 0x4000)
		dev.WriteReg(0x00, 4, emu.BlockCmdRead)
		Expect(dev.ReadReg(0x04, 4) & emu.BlockStatusReady).NotTo(BeZero())

		program(3, 2, 0x4000)
		dev.WriteReg(0x00, 4, emu.BlockCmdRead)
		Expect(dev.ReadReg(0x04, 4) & emu.BlockStatusReady).To(BeZero())
	})

	It("rejects writes when the image is read-only", func() {
		ro := emu.NewEmulator(
			emu.WithStdout(&bytes.Buffer{}),
			emu.WithDiskImage(testDiskImage(), false),
		)
		rdev := ro.Disk()
		rdev.WriteReg(0x0C, 4, 0)
		rdev.WriteReg(0x28, 4, 1)
		rdev.WriteReg(0x38, 4, 0x5000)
		rdev.WriteReg(0x00, 4, emu.BlockCmdWrite)

		Expect(rdev.ReadReg(0x04, 4) & emu.BlockStatusReady).To(BeZero())
		Expect(rdev.Image()[0]).To(Equal(byte(1)))
	})

	It("is reachable through the bus window", func() {
		Expect(e.Memory().Store(emu.BlockBase+0x0C, 4, 1)).To(Succeed())
		Expect(e.Memory().Store(emu.BlockBase+0x28, 4, 1)).To(Succeed())
		Expect(e.Memory().Store(emu.BlockBase+0x38, 4, 0x6000)).To(Succeed())
		Expect(e.Memory().Store(emu.BlockBase, 4, emu.BlockCmdRead)).To(Succeed())

		status, err := e.Memory().Load(emu.BlockBase+0x04, 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(status & emu.BlockStatusReady).NotTo(BeZero())

		b, err := e.Memory().ReadByte(0x6000)
		Expect(err).NotTo(HaveOccurred())
		Expect(b).To(Equal(byte(2)))
	})
})
