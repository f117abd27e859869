package arena

import (
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// MMapArea owns the single anonymous memory region an Arena's chunks
// are carved out of. It is unmapped exactly once.
type MMapArea struct {
	base   uintptr
	mem    []byte
	closed bool
}

func newMMapArea(size int) (*MMapArea, error) {
	if size == 0 {
		return nil, &InvalidArgumentError{Msg: "mmap size must not be zero"}
	}
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, &SystemError{Op: "mmap", Err: err}
	}
	return &MMapArea{
		base: uintptr(unsafe.Pointer(&mem[0])),
		mem:  mem,
	}, nil
}

// BaseAddress is the live virtual address of the region's first byte.
func (m *MMapArea) BaseAddress() uintptr { return m.base }

// Bytes exposes the region for ring setup; callers must not retain
// slices derived from it past Close.
func (m *MMapArea) Bytes() []byte { return m.mem }

func (m *MMapArea) Length() int { return len(m.mem) }

// Close releases the region. Safe to call more than once; only the
// first call unmaps. Teardown failures are logged, not returned,
// matching the rest of the library's drop-path convention.
func (m *MMapArea) Close() {
	if m.closed {
		return
	}
	m.closed = true
	if err := unix.Munmap(m.mem); err != nil {
		logrus.WithError(err).WithField("length", len(m.mem)).Warn("failed to munmap packet arena region")
	}
}
