package emu_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/m65sim/emu"
)

var _ = Describe("SandboxSyscallHandler", func() {
	var (
		regFile *emu.RegFile
		memory  *emu.Memory
		lsu     *emu.LoadStoreUnit
		stdout  *bytes.Buffer
		stderr  *bytes.Buffer
	)

	newHandler := func(root string) *emu.SandboxSyscallHandler {
		return emu.NewSandboxSyscallHandler(regFile, lsu, root, stdout, stderr)
	}

	// call loads the syscall registers, dispatches the trap, and
	// returns the signed result from R0.
	call := func(h *emu.SandboxSyscallHandler, args ...uint32) (int32, emu.SyscallResult) {
		for i, a := range args {
			regFile.R[i] = a
		}
		res := h.Handle(0)
		return int32(regFile.R[0]), res
	}

	putString := func(addr uint32, s string) {
		Expect(memory.StoreBytes(addr, append([]byte(s), 0))).To(Succeed())
	}

	BeforeEach(func() {
		regFile = &emu.RegFile{}
		regFile.Reset()
		regFile.EnterNative32()
		regFile.SetFlag(emu.FlagR, true)
		memory = emu.NewMemory()
		lsu = emu.NewLoadStoreUnit(regFile, memory)
		stdout = &bytes.Buffer{}
		stderr = &bytes.Buffer{}
	})

	Describe("without a sandbox root", func() {
		It("services getpid", func() {
			v, res := call(newHandler(""), emu.SyscallGetpid)
			Expect(res.Exited).To(BeFalse())
			Expect(v).To(Equal(int32(1000)))
		})

		It("terminates on exit with the guest status", func() {
			_, res := call(newHandler(""), emu.SyscallExit, 42)
			Expect(res.Exited).To(BeTrue())
			Expect(res.ExitCode).To(Equal(int32(42)))
		})

		It("terminates on exit_group", func() {
			_, res := call(newHandler(""), emu.SyscallExitGroup, 3)
			Expect(res.Exited).To(BeTrue())
			Expect(res.ExitCode).To(Equal(int32(3)))
		})

		It("rejects file syscalls with ENOSYS", func() {
			putString(0x3000, "f.txt")
			v, _ := call(newHandler(""), emu.SyscallOpen, 0x3000, 0, 0)
			Expect(v).To(Equal(int32(-emu.ENOSYS)))
		})

		It("rejects unknown syscall numbers with ENOSYS", func() {
			v, _ := call(newHandler(""), 9999)
			Expect(v).To(Equal(int32(-emu.ENOSYS)))
		})
	})

	Describe("with a sandbox root", func() {
		var root string

		BeforeEach(func() {
			root = GinkgoT().TempDir()
		})

		It("creates, writes, and reads back a file", func() {
			h := newHandler(root)
			putString(0x3000, "out.txt")
			Expect(memory.StoreBytes(0x3100, []byte("hello"))).To(Succeed())

			fd, _ := call(h, emu.SyscallOpen, 0x3000, 0x41, 0644) // O_WRONLY|O_CREAT
			Expect(fd).To(BeNumerically(">=", 3))

			n, _ := call(h, emu.SyscallWrite, uint32(fd), 0x3100, 5)
			Expect(n).To(Equal(int32(5)))

			v, _ := call(h, emu.SyscallClose, uint32(fd))
			Expect(v).To(Equal(int32(0)))

			fd, _ = call(h, emu.SyscallOpen, 0x3000, 0, 0)
			n, _ = call(h, emu.SyscallRead, uint32(fd), 0x4000, 16)
			Expect(n).To(Equal(int32(5)))
			data, err := memory.LoadBytes(0x4000, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("hello"))
		})

		It("reports the file size through fstat", func() {
			Expect(os.WriteFile(filepath.Join(root, "data.bin"),
				bytes.Repeat([]byte{0xAA}, 100), 0644)).To(Succeed())

			h := newHandler(root)
			putString(0x3000, "data.bin")
			fd, _ := call(h, emu.SyscallOpen, 0x3000, 0, 0)

			v, _ := call(h, emu.SyscallFstat, uint32(fd), 0x4000)
			Expect(v).To(Equal(int32(0)))

			size, err := memory.Load(0x4010, 4) // size field at offset 16
			Expect(err).NotTo(HaveOccurred())
			Expect(size).To(Equal(uint32(100)))
		})

		It("seeks within an open file", func() {
			Expect(os.WriteFile(filepath.Join(root, "seek.bin"),
				[]byte("0123456789"), 0644)).To(Succeed())

			h := newHandler(root)
			putString(0x3000, "seek.bin")
			fd, _ := call(h, emu.SyscallOpen, 0x3000, 0, 0)

			pos, _ := call(h, emu.SyscallLseek, uint32(fd), 4, 0)
			Expect(pos).To(Equal(int32(4)))

			n, _ := call(h, emu.SyscallRead, uint32(fd), 0x4000, 2)
			Expect(n).To(Equal(int32(2)))
			data, err := memory.LoadBytes(0x4000, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("45"))
		})

		It("rejects invalid lseek whence", func() {
			h := newHandler(root)
			v, _ := call(h, emu.SyscallLseek, 3, 0, 7)
			Expect(v).To(Equal(int32(-emu.EINVAL)))
		})

		It("rejects parent traversal with EACCES", func() {
			h := newHandler(root)
			putString(0x3000, "../escape.txt")
			v, _ := call(h, emu.SyscallOpen, 0x3000, 0x41, 0644)
			Expect(v).To(Equal(int32(-emu.EACCES)))
		})

		It("rejects traversal buried in a path", func() {
			h := newHandler(root)
			putString(0x3000, "sub/../../escape.txt")
			v, _ := call(h, emu.SyscallOpen, 0x3000, 0x41, 0644)
			Expect(v).To(Equal(int32(-emu.EACCES)))
		})

		It("allows filenames that merely contain dots", func() {
			h := newHandler(root)
			putString(0x3000, "a..b.txt")
			fd, _ := call(h, emu.SyscallOpen, 0x3000, 0x41, 0644)
			Expect(fd).To(BeNumerically(">=", 3))
		})

		It("returns ENOENT for a missing file", func() {
			h := newHandler(root)
			putString(0x3000, "no-such-file")
			v, _ := call(h, emu.SyscallOpen, 0x3000, 0, 0)
			Expect(v).To(Equal(int32(-emu.ENOENT)))
		})

		It("writes descriptor 1 to the console sink", func() {
			h := newHandler(root)
			Expect(memory.StoreBytes(0x3100, []byte("console\n"))).To(Succeed())
			n, _ := call(h, emu.SyscallWrite, 1, 0x3100, 8)
			Expect(n).To(Equal(int32(8)))
			Expect(stdout.String()).To(Equal("console\n"))
		})

		It("writes descriptor 2 to the error sink", func() {
			h := newHandler(root)
			Expect(memory.StoreBytes(0x3100, []byte("oops"))).To(Succeed())
			call(h, emu.SyscallWrite, 2, 0x3100, 4)
			Expect(stderr.String()).To(Equal("oops"))
		})

		It("serves descriptor 0 reads from the attached stdin", func() {
			h := newHandler(root)
			h.SetStdin(strings.NewReader("input"))
			n, _ := call(h, emu.SyscallRead, 0, 0x4000, 16)
			Expect(n).To(Equal(int32(5)))
			data, err := memory.LoadBytes(0x4000, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("input"))
		})

		It("returns zero for descriptor 0 reads with no stdin", func() {
			h := newHandler(root)
			n, _ := call(h, emu.SyscallRead, 0, 0x4000, 16)
			Expect(n).To(Equal(int32(0)))
		})

		It("lets close on the standard descriptors succeed", func() {
			h := newHandler(root)
			for fd := uint32(0); fd <= 2; fd++ {
				v, _ := call(h, emu.SyscallClose, fd)
				Expect(v).To(Equal(int32(0)))
			}
		})

		It("rejects reads on a closed descriptor", func() {
			h := newHandler(root)
			putString(0x3000, "gone.txt")
			fd, _ := call(h, emu.SyscallOpen, 0x3000, 0x41, 0644)
			call(h, emu.SyscallClose, uint32(fd))
			v, _ := call(h, emu.SyscallRead, uint32(fd), 0x4000, 4)
			Expect(v).To(BeNumerically("<", 0))
		})

		It("caps the number of open descriptors", func() {
			h := newHandler(root)
			putString(0x3000, "many.txt")
			var last int32
			for i := 0; i < emu.MaxGuestFDs; i++ {
				last, _ = call(h, emu.SyscallOpen, 0x3000, 0x41, 0644)
			}
			Expect(last).To(Equal(int32(-emu.EMFILE)))
		})

		It("keeps syscall slots in memory when the window is off", func() {
			regFile.SetFlag(emu.FlagR, false)
			regFile.D = 0x0100
			Expect(memory.Store(0x0100, 4, emu.SyscallGetpid)).To(Succeed())

			h := newHandler(root)
			res := h.Handle(0)
			Expect(res.Exited).To(BeFalse())
			v, err := memory.Load(0x0100, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint32(1000)))
		})
	})

	Describe("through the trap instruction", func() {
		It("terminates a run with the guest exit status", func() {
			e := emu.NewEmulator(emu.WithStdout(&bytes.Buffer{}))
			install(e,
				0x02, 0x30, // ENR
				0x02, 0xE8, 0x02, 0x00, 0x01, 0x00, 0x00, 0x00, // LD R0, #exit
				0x02, 0xE8, 0x02, 0x04, 0x07, 0x00, 0x00, 0x00, // LD R1, #7
				0x02, 0x40, 0x00, // TRAP #0
			)
			res := e.Run()
			Expect(res.Reason).To(Equal(emu.StopExit))
			Expect(res.ExitCode).To(Equal(int32(7)))
		})

		It("routes guest console writes to the configured stdout", func() {
			out := &bytes.Buffer{}
			e := emu.NewEmulator(
				emu.WithStdout(out),
				emu.WithSandboxRoot(GinkgoT().TempDir()),
			)
			Expect(e.Memory().StoreBytes(0x3100, []byte("hi\n"))).To(Succeed())
			install(e,
				0x02, 0x30, // ENR
				0x02, 0xE8, 0x02, 0x00, 0x04, 0x00, 0x00, 0x00, // LD R0, #write
				0x02, 0xE8, 0x02, 0x04, 0x01, 0x00, 0x00, 0x00, // LD R1, #1
				0x02, 0xE8, 0x02, 0x08, 0x00, 0x31, 0x00, 0x00, // LD R2, #$3100
				0x02, 0xE8, 0x02, 0x0C, 0x03, 0x00, 0x00, 0x00, // LD R3, #3
				0x02, 0x40, 0x00, // TRAP #0
				0x02, 0xE8, 0x02, 0x00, 0x01, 0x00, 0x00, 0x00, // LD R0, #exit
				0x02, 0xE8, 0x02, 0x04, 0x00, 0x00, 0x00, 0x00, // LD R1, #0
				0x02, 0x40, 0x00, // TRAP #0
			)
			res := e.Run()
			Expect(res.Reason).To(Equal(emu.StopExit))
			Expect(out.String()).To(Equal("hi\n"))
		})
	})
})
