package emu

import (
	"encoding/binary"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"
)

// Guest syscall numbers.
const (
	SyscallExit      = 1
	SyscallRead      = 3
	SyscallWrite     = 4
	SyscallOpen      = 5
	SyscallClose     = 6
	SyscallLseek     = 19
	SyscallGetpid    = 20
	SyscallFstat     = 108
	SyscallExitGroup = 248
)

// Guest error codes, written back as negative values.
const (
	EPERM  = 1
	ENOENT = 2
	EIO    = 5
	EBADF  = 9
	EACCES = 13
	EINVAL = 22
	EMFILE = 24
	ENOSYS = 38
)

// Guest open(2) flag bits.
const (
	guestOWronly = 0x0001
	guestORdwr   = 0x0002
	guestOCreat  = 0x0040
	guestOTrunc  = 0x0200
	guestOAppend = 0x0400
)

// guestStatSize is the fixed on-wire size of the guest stat record.
const guestStatSize = 60

// SyscallResult reports the outcome of one trap dispatch.
type SyscallResult struct {
	// Exited is true when the trap terminated the program.
	Exited bool

	// ExitCode is the exit status when Exited is true.
	ExitCode int32
}

// SyscallHandler dispatches a software trap. The guest convention
// places the syscall number in R0 and up to three arguments in R1-R3;
// the result, or a negative errno, is written back to R0.
type SyscallHandler interface {
	Handle(trap byte) SyscallResult
}

// syscallArity fixes the argument count per syscall number so the
// bridge never reads registers a call does not own.
var syscallArity = map[uint32]int{
	SyscallExit:      1,
	SyscallRead:      3,
	SyscallWrite:     3,
	SyscallOpen:      3,
	SyscallClose:     1,
	SyscallLseek:     3,
	SyscallGetpid:    0,
	SyscallFstat:     2,
	SyscallExitGroup: 1,
}

// guestPID is the fixed process ID reported to guests.
const guestPID = 1000

// SandboxSyscallHandler implements the trap bridge against a host
// directory. File paths resolve under the sandbox root and parent
// traversal is rejected. Without a root only exit, exit_group, and
// getpid are serviced.
type SandboxSyscallHandler struct {
	regFile *RegFile
	lsu     *LoadStoreUnit
	fdTable *FDTable
	root    string
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
}

// NewSandboxSyscallHandler creates the default trap bridge. An empty
// root disables filesystem access.
func NewSandboxSyscallHandler(regFile *RegFile, lsu *LoadStoreUnit, root string, stdout, stderr io.Writer) *SandboxSyscallHandler {
	return &SandboxSyscallHandler{
		regFile: regFile,
		lsu:     lsu,
		fdTable: NewFDTable(),
		root:    root,
		stdout:  stdout,
		stderr:  stderr,
	}
}

// SetStdin attaches a reader serving guest reads on descriptor 0.
func (h *SandboxSyscallHandler) SetStdin(stdin io.Reader) {
	h.stdin = stdin
}

// arg reads syscall register slot n (R0 carries the number, R1-R3 the
// arguments). Slots resolve through the direct-page path so the
// register window governs whether they live in R or in memory.
func (h *SandboxSyscallHandler) arg(n int) uint32 {
	v, err := h.lsu.Load(h.lsu.dpAddr(uint32(n*4)), 4)
	if err != nil {
		return 0
	}
	return v
}

// setResult writes the return value into R0.
func (h *SandboxSyscallHandler) setResult(v uint32) {
	_ = h.lsu.Store(h.lsu.dpAddr(0), 4, v)
}

func (h *SandboxSyscallHandler) setError(errno int) {
	h.setResult(uint32(-int32(errno)))
}

// Handle dispatches the trap currently described by R0-R3.
func (h *SandboxSyscallHandler) Handle(trap byte) SyscallResult {
	num := h.arg(0)

	if _, known := syscallArity[num]; !known {
		h.setError(ENOSYS)
		return SyscallResult{}
	}

	switch num {
	case SyscallExit, SyscallExitGroup:
		return SyscallResult{Exited: true, ExitCode: int32(h.arg(1))}
	case SyscallGetpid:
		h.setResult(guestPID)
		return SyscallResult{}
	}

	if h.root == "" {
		h.setError(ENOSYS)
		return SyscallResult{}
	}

	switch num {
	case SyscallRead:
		h.handleRead(h.arg(1), h.arg(2), h.arg(3))
	case SyscallWrite:
		h.handleWrite(h.arg(1), h.arg(2), h.arg(3))
	case SyscallOpen:
		h.handleOpen(h.arg(1), h.arg(2), h.arg(3))
	case SyscallClose:
		h.handleClose(h.arg(1))
	case SyscallLseek:
		h.handleLseek(h.arg(1), h.arg(2), h.arg(3))
	case SyscallFstat:
		h.handleFstat(h.arg(1), h.arg(2))
	}
	return SyscallResult{}
}

// resolvePath confines a guest path under the sandbox root. Parent
// traversal is rejected rather than clamped so guests see a hard
// denial instead of silent remapping.
func (h *SandboxSyscallHandler) resolvePath(guestPath string) (string, int) {
	for _, part := range strings.Split(guestPath, "/") {
		if part == ".." {
			return "", EACCES
		}
	}
	cleaned := path.Clean("/" + guestPath)
	return filepath.Join(h.root, filepath.FromSlash(cleaned)), 0
}

// readCString reads a NUL-terminated guest string, capped at one
// page to bound damage from an unterminated buffer.
func (h *SandboxSyscallHandler) readCString(addr uint32) (string, int) {
	var sb strings.Builder
	for i := uint32(0); i < 4096; i++ {
		v, err := h.lsu.Load(addr+i, 1)
		if err != nil {
			return "", EINVAL
		}
		if v == 0 {
			return sb.String(), 0
		}
		sb.WriteByte(byte(v))
	}
	return "", EINVAL
}

func (h *SandboxSyscallHandler) handleOpen(pathPtr, flags, mode uint32) {
	guestPath, errno := h.readCString(pathPtr)
	if errno != 0 {
		h.setError(errno)
		return
	}
	hostPath, errno := h.resolvePath(guestPath)
	if errno != 0 {
		h.setError(errno)
		return
	}

	hostFlags := os.O_RDONLY
	if flags&guestORdwr != 0 {
		hostFlags = os.O_RDWR
	} else if flags&guestOWronly != 0 {
		hostFlags = os.O_WRONLY
	}
	if flags&guestOCreat != 0 {
		hostFlags |= os.O_CREATE
	}
	if flags&guestOTrunc != 0 {
		hostFlags |= os.O_TRUNC
	}
	if flags&guestOAppend != 0 {
		hostFlags |= os.O_APPEND
	}

	fd, err := h.fdTable.Open(hostPath, hostFlags, os.FileMode(mode&0777))
	if err != nil {
		h.setError(mapHostError(err))
		return
	}
	h.setResult(fd)
}

func (h *SandboxSyscallHandler) handleClose(fd uint32) {
	if err := h.fdTable.Close(fd); err != nil {
		h.setError(EBADF)
		return
	}
	h.setResult(0)
}

func (h *SandboxSyscallHandler) handleRead(fd, bufPtr, count uint32) {
	if fd == 0 {
		if h.stdin == nil {
			h.setResult(0)
			return
		}
		buf := make([]byte, count)
		n, err := h.stdin.Read(buf)
		if err != nil && n == 0 {
			h.setResult(0)
			return
		}
		if errno := h.copyOut(bufPtr, buf[:n]); errno != 0 {
			h.setError(errno)
			return
		}
		h.setResult(uint32(n))
		return
	}
	if fd <= 2 {
		h.setError(EBADF)
		return
	}

	buf := make([]byte, count)
	n, err := h.fdTable.Read(fd, buf)
	if err != nil && n == 0 {
		if err == io.EOF {
			h.setResult(0)
			return
		}
		h.setError(mapHostError(err))
		return
	}
	if errno := h.copyOut(bufPtr, buf[:n]); errno != 0 {
		h.setError(errno)
		return
	}
	h.setResult(uint32(n))
}

func (h *SandboxSyscallHandler) handleWrite(fd, bufPtr, count uint32) {
	buf := make([]byte, count)
	for i := uint32(0); i < count; i++ {
		v, err := h.lsu.Load(bufPtr+i, 1)
		if err != nil {
			h.setError(EINVAL)
			return
		}
		buf[i] = byte(v)
	}

	var n int
	var err error
	switch fd {
	case 1:
		n, err = h.stdout.Write(buf)
	case 2:
		n, err = h.stderr.Write(buf)
	case 0:
		h.setError(EBADF)
		return
	default:
		n, err = h.fdTable.Write(fd, buf)
	}
	if err != nil {
		h.setError(mapHostError(err))
		return
	}
	h.setResult(uint32(n))
}

func (h *SandboxSyscallHandler) handleLseek(fd, offset, whence uint32) {
	if whence > 2 {
		h.setError(EINVAL)
		return
	}
	pos, err := h.fdTable.Seek(fd, int64(int32(offset)), int(whence))
	if err != nil {
		h.setError(EBADF)
		return
	}
	h.setResult(uint32(pos))
}

func (h *SandboxSyscallHandler) handleFstat(fd, statPtr uint32) {
	info, err := h.fdTable.Stat(fd)
	if err != nil {
		h.setError(EBADF)
		return
	}
	if errno := h.copyOut(statPtr, marshalGuestStat(fd, info)); errno != 0 {
		h.setError(errno)
		return
	}
	h.setResult(0)
}

func (h *SandboxSyscallHandler) copyOut(addr uint32, data []byte) int {
	for i, b := range data {
		if err := h.lsu.Store(addr+uint32(i), 1, uint32(b)); err != nil {
			return EINVAL
		}
	}
	return 0
}

// marshalGuestStat lays out the guest's fixed 60-byte stat record:
// u16 dev, u16 ino, u32 mode, u16 nlink, u16 uid, u16 gid, u16 rdev,
// i32 size, three {sec, nsec} pairs, i32 blksize, i32 blocks, and two
// spare words.
func marshalGuestStat(fd uint32, info fs.FileInfo) []byte {
	buf := make([]byte, guestStatSize)

	mode := uint32(info.Mode().Perm())
	switch {
	case info.IsDir():
		mode |= 0x4000
	case info.Mode()&fs.ModeCharDevice != 0:
		mode |= 0x2000
	default:
		mode |= 0x8000
	}

	binary.LittleEndian.PutUint16(buf[0:], 1)           // dev
	binary.LittleEndian.PutUint16(buf[2:], uint16(fd))  // ino
	binary.LittleEndian.PutUint32(buf[4:], mode)        // mode
	binary.LittleEndian.PutUint16(buf[8:], 1)           // nlink
	binary.LittleEndian.PutUint16(buf[10:], 0)          // uid
	binary.LittleEndian.PutUint16(buf[12:], 0)          // gid
	binary.LittleEndian.PutUint16(buf[14:], 0)          // rdev
	binary.LittleEndian.PutUint32(buf[16:], uint32(info.Size()))

	sec := uint32(info.ModTime().Unix())
	for i := 0; i < 3; i++ {
		binary.LittleEndian.PutUint32(buf[20+i*8:], sec)
		binary.LittleEndian.PutUint32(buf[24+i*8:], 0)
	}

	binary.LittleEndian.PutUint32(buf[44:], 512) // blksize
	binary.LittleEndian.PutUint32(buf[48:], uint32((info.Size()+511)/512))
	return buf
}

// mapHostError converts a host filesystem error into a guest errno.
func mapHostError(err error) int {
	switch {
	case os.IsNotExist(err):
		return ENOENT
	case os.IsPermission(err):
		return EACCES
	case err == os.ErrInvalid:
		return EMFILE
	}
	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		return int(sysErr)
	}
	return EIO
}
