package emu

import (
	"os"
	"sync"
	"time"
)

// MaxGuestFDs caps the descriptor table, standard streams included.
const MaxGuestFDs = 32

// FileDescriptor represents an open guest file descriptor.
type FileDescriptor struct {
	HostFile *os.File // nil for the standard streams
	Path     string
	Flags    int
	IsOpen   bool
}

// FDTable maps guest file descriptors to host files. Descriptors 0-2
// are the standard streams and never carry a host file; they exist so
// guests can fstat and close them like any other descriptor.
type FDTable struct {
	fds    map[uint32]*FileDescriptor
	nextFD uint32
	mu     sync.Mutex
}

// NewFDTable creates a descriptor table with the standard streams
// pre-opened.
func NewFDTable() *FDTable {
	t := &FDTable{
		fds:    make(map[uint32]*FileDescriptor),
		nextFD: 3,
	}
	t.fds[0] = &FileDescriptor{Path: "stdin", IsOpen: true}
	t.fds[1] = &FileDescriptor{Path: "stdout", IsOpen: true}
	t.fds[2] = &FileDescriptor{Path: "stderr", IsOpen: true}
	return t
}

// openCount counts live descriptors, used to enforce MaxGuestFDs.
func (t *FDTable) openCount() int {
	n := 0
	for _, e := range t.fds {
		if e.IsOpen {
			n++
		}
	}
	return n
}

// Open opens a host file and allocates a guest descriptor for it.
// os.ErrInvalid signals table exhaustion.
func (t *FDTable) Open(path string, flags int, mode os.FileMode) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.openCount() >= MaxGuestFDs {
		return 0, os.ErrInvalid
	}

	hostFile, err := os.OpenFile(path, flags, mode)
	if err != nil {
		return 0, err
	}

	fd := t.nextFD
	t.nextFD++
	t.fds[fd] = &FileDescriptor{
		HostFile: hostFile,
		Path:     path,
		Flags:    flags,
		IsOpen:   true,
	}
	return fd, nil
}

// Close closes a guest descriptor. Closing a standard stream succeeds
// without touching the host stream.
func (t *FDTable) Close(fd uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, exists := t.fds[fd]
	if !exists || !entry.IsOpen {
		return os.ErrInvalid
	}

	if fd <= 2 {
		return nil
	}

	if entry.HostFile != nil {
		if err := entry.HostFile.Close(); err != nil {
			return err
		}
	}
	entry.HostFile = nil
	entry.IsOpen = false
	return nil
}

// Get returns the descriptor entry if it exists and is open.
func (t *FDTable) Get(fd uint32) (*FileDescriptor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, exists := t.fds[fd]
	if !exists || !entry.IsOpen {
		return nil, false
	}
	return entry, true
}

// Read reads from a file-backed descriptor. The standard streams are
// handled by the syscall bridge, not here.
func (t *FDTable) Read(fd uint32, buf []byte) (int, error) {
	hostFile, err := t.hostFile(fd)
	if err != nil {
		return 0, err
	}
	return hostFile.Read(buf)
}

// Write writes to a file-backed descriptor.
func (t *FDTable) Write(fd uint32, buf []byte) (int, error) {
	hostFile, err := t.hostFile(fd)
	if err != nil {
		return 0, err
	}
	return hostFile.Write(buf)
}

// Stat returns file information for a descriptor. The standard
// streams report as character devices.
func (t *FDTable) Stat(fd uint32) (os.FileInfo, error) {
	t.mu.Lock()
	entry, exists := t.fds[fd]
	if !exists || !entry.IsOpen {
		t.mu.Unlock()
		return nil, os.ErrInvalid
	}
	hostFile := entry.HostFile
	name := entry.Path
	t.mu.Unlock()

	if fd <= 2 {
		return &stdioFileInfo{name: name}, nil
	}
	if hostFile == nil {
		return nil, os.ErrInvalid
	}
	return hostFile.Stat()
}

// Seek repositions a file-backed descriptor.
func (t *FDTable) Seek(fd uint32, offset int64, whence int) (int64, error) {
	hostFile, err := t.hostFile(fd)
	if err != nil {
		return 0, err
	}
	return hostFile.Seek(offset, whence)
}

func (t *FDTable) hostFile(fd uint32) (*os.File, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, exists := t.fds[fd]
	if !exists || !entry.IsOpen || fd <= 2 || entry.HostFile == nil {
		return nil, os.ErrInvalid
	}
	return entry.HostFile, nil
}

// stdioFileInfo is the stub FileInfo for the standard streams.
type stdioFileInfo struct {
	name string
}

func (f *stdioFileInfo) Name() string       { return f.name }
func (f *stdioFileInfo) Size() int64        { return 0 }
func (f *stdioFileInfo) Mode() os.FileMode  { return os.ModeCharDevice | 0666 }
func (f *stdioFileInfo) ModTime() time.Time { return time.Time{} }
func (f *stdioFileInfo) IsDir() bool        { return false }
func (f *stdioFileInfo) Sys() interface{}   { return nil }
