package arena

import (
	"unsafe"

	"github.com/penguintech/xdpcore/ring"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// These option names and mmap page offsets are not exposed by
// golang.org/x/sys/unix, so they are redeclared locally rather than
// depending on a cgo libxdp binding.
const (
	xdpMmapOffsets        = 1
	xdpRxRing             = 2
	xdpTxRing             = 3
	xdpUmemReg            = 4
	xdpUmemFillRing       = 5
	xdpUmemCompletionRing = 6

	xdpPgoffRxRing             = 0
	xdpPgoffTxRing             = 0x80000000
	xdpUmemPgoffFillRing       = 0x100000000
	xdpUmemPgoffCompletionRing = 0x180000000
)

type umemRegRequest struct {
	Addr      uint64
	Len       uint64
	ChunkSize uint32
	Headroom  uint32
	Flags     uint32
}

func setsockopt(fd, optname int, value unsafe.Pointer, size uintptr) error {
	_, _, errno := unix.Syscall6(unix.SYS_SETSOCKOPT, uintptr(fd), uintptr(unix.SOL_XDP),
		uintptr(optname), uintptr(value), size, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func getsockopt(fd, optname int, value unsafe.Pointer, size *uint32) error {
	_, _, errno := unix.Syscall6(unix.SYS_GETSOCKOPT, uintptr(fd), uintptr(unix.SOL_XDP),
		uintptr(optname), uintptr(value), uintptr(unsafe.Pointer(size)), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// registerUMEM creates the arena's control-plane socket, registers its
// memory region as a UMEM, asks the kernel to size its fill and
// completion rings, and mmaps both: the Go equivalent of libxdp's
// xsk_umem__create.
func (a *Arena) registerUMEM(fillSize, compSize uint32) error {
	fd, err := unix.Socket(unix.AF_XDP, unix.SOCK_RAW, 0)
	if err != nil {
		return &SystemError{Op: "socket(AF_XDP)", Err: err}
	}

	reg := umemRegRequest{
		Addr:      uint64(a.area.BaseAddress()),
		Len:       uint64(a.area.Length()),
		ChunkSize: a.chunkSize,
		Headroom:  a.headroom,
	}
	if err := setsockopt(fd, xdpUmemReg, unsafe.Pointer(&reg), unsafe.Sizeof(reg)); err != nil {
		unix.Close(fd)
		return &SystemError{Op: "setsockopt(XDP_UMEM_REG)", Err: err}
	}
	if err := setsockopt(fd, xdpUmemFillRing, unsafe.Pointer(&fillSize), unsafe.Sizeof(fillSize)); err != nil {
		unix.Close(fd)
		return &SystemError{Op: "setsockopt(XDP_UMEM_FILL_RING)", Err: err}
	}
	if err := setsockopt(fd, xdpUmemCompletionRing, unsafe.Pointer(&compSize), unsafe.Sizeof(compSize)); err != nil {
		unix.Close(fd)
		return &SystemError{Op: "setsockopt(XDP_UMEM_COMPLETION_RING)", Err: err}
	}

	var off ring.MmapOffsets
	offSize := uint32(unsafe.Sizeof(off))
	if err := getsockopt(fd, xdpMmapOffsets, unsafe.Pointer(&off), &offSize); err != nil {
		unix.Close(fd)
		return &SystemError{Op: "getsockopt(XDP_MMAP_OFFSETS)", Err: err}
	}

	fillLen := int(off.Fr.Desc) + int(fillSize)*int(ring.AddrSize)
	fillMem, err := unix.Mmap(fd, xdpUmemPgoffFillRing, fillLen, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		unix.Close(fd)
		return &SystemError{Op: "mmap(fill ring)", Err: err}
	}

	compLen := int(off.Cr.Desc) + int(compSize)*int(ring.AddrSize)
	compMem, err := unix.Mmap(fd, xdpUmemPgoffCompletionRing, compLen, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		unix.Munmap(fillMem)
		unix.Close(fd)
		return &SystemError{Op: "mmap(completion ring)", Err: err}
	}

	a.umemFD = fd
	a.identity = uintptr(fd)
	a.fillMem = fillMem
	a.compMem = compMem
	a.fill = ring.NewProdRing(fillMem, off.Fr, fillSize, ring.AddrSize)
	a.completion = ring.NewConsRing(compMem, off.Cr, compSize, ring.AddrSize)
	return nil
}

// unmapRings tears down the arena's UMEM control fd and ring mappings.
// Teardown failures are logged, not returned, matching MMapArea.Close
// and the rest of the library's drop-path convention.
func (a *Arena) unmapRings() {
	if a.fillMem != nil {
		if err := unix.Munmap(a.fillMem); err != nil {
			logrus.WithError(err).Warn("failed to munmap arena fill ring")
		}
	}
	if a.compMem != nil {
		if err := unix.Munmap(a.compMem); err != nil {
			logrus.WithError(err).Warn("failed to munmap arena completion ring")
		}
	}
	if a.umemFD != 0 {
		if err := unix.Close(a.umemFD); err != nil {
			logrus.WithError(err).WithField("fd", a.umemFD).Warn("failed to close arena UMEM fd")
		}
	}
}
