package xsocket

import (
	"net"
	"unsafe"

	"github.com/penguintech/xdpcore/arena"
	"github.com/penguintech/xdpcore/ring"
	"golang.org/x/sys/unix"
)

// Socket-option names and ring mmap page offsets absent from
// golang.org/x/sys/unix, redeclared locally the same way
// arena/kernel_linux.go does.
const (
	xdpMmapOffsets = 1
	xdpRxRing      = 2
	xdpTxRing      = 3

	xdpUmemFillRing       = 5
	xdpUmemCompletionRing = 6

	xdpPgoffRxRing             = 0
	xdpPgoffTxRing             = 0x80000000
	xdpUmemPgoffFillRing       = 0x100000000
	xdpUmemPgoffCompletionRing = 0x180000000

	xdpShareUmemFlag     = 1 << 0
	xdpCopyFlag          = 1 << 1
	xdpZerocopyFlag      = 1 << 2
	xdpUseNeedWakeupFlag = 1 << 3

	// Not yet exposed by golang.org/x/sys/unix at the time of writing
	// (the busy-poll budget knob is a recent addition to SOL_SOCKET).
	soPreferBusyPoll = 69
	soBusyPollBudget = 70
)

type sockaddrXDP struct {
	Family       uint16
	Flags        uint16
	Ifindex      uint32
	QueueID      uint32
	SharedUmemFD uint32
}

func setsockopt(fd, level, optname int, value unsafe.Pointer, size uintptr) error {
	_, _, errno := unix.Syscall6(unix.SYS_SETSOCKOPT, uintptr(fd), uintptr(level), uintptr(optname), uintptr(value), size, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func getsockopt(fd, level, optname int, value unsafe.Pointer, size *uint32) error {
	_, _, errno := unix.Syscall6(unix.SYS_GETSOCKOPT, uintptr(fd), uintptr(level), uintptr(optname), uintptr(value), uintptr(unsafe.Pointer(size)), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func bindXDP(fd int, req *sockaddrXDP) error {
	_, _, errno := unix.Syscall(unix.SYS_BIND, uintptr(fd), uintptr(unsafe.Pointer(req)), uintptr(unsafe.Sizeof(*req)))
	if errno != 0 {
		return errno
	}
	return nil
}

func bindFlags(b *Builder) uint16 {
	var flags uint16
	if b.zeroCopy && b.mode != ModeGeneric {
		flags |= xdpZerocopyFlag
	} else {
		flags |= xdpCopyFlag
	}
	if b.cooperate {
		flags |= xdpUseNeedWakeupFlag
	}
	return flags
}

func setBusyPolling(fd int) error {
	one := uint32(1)
	if err := setsockopt(fd, unix.SOL_SOCKET, soPreferBusyPoll, unsafe.Pointer(&one), unsafe.Sizeof(one)); err != nil {
		return err
	}
	pollUS := uint32(busyPollTimeUS)
	if err := setsockopt(fd, unix.SOL_SOCKET, unix.SO_BUSY_POLL, unsafe.Pointer(&pollUS), unsafe.Sizeof(pollUS)); err != nil {
		return err
	}
	budget := uint32(busyPollBudget)
	return setsockopt(fd, unix.SOL_SOCKET, soBusyPollBudget, unsafe.Pointer(&budget), unsafe.Sizeof(budget))
}

// createFd opens the socket's own fd, registers its rx/tx ring sizes,
// and, when fillSize/compSize are non-zero (the shared-umem case),
// its own private fill/completion ring sizes too. It then reads back
// XDP_MMAP_OFFSETS once (reflecting every ring just requested) and
// mmaps all of them.
func (b *Builder) createFd(fillSize, compSize uint32) (fd int, rx *ring.ConsRing, tx *ring.ProdRing, fill *ring.ProdRing, completion *ring.ConsRing, rings ringMem, err error) {
	fd, err = unix.Socket(unix.AF_XDP, unix.SOCK_RAW, 0)
	if err != nil {
		return 0, nil, nil, nil, nil, ringMem{}, &arena.SystemError{Op: "socket(AF_XDP)", Err: err}
	}

	if err = setsockopt(fd, unix.SOL_XDP, xdpRxRing, unsafe.Pointer(&b.rxSize), unsafe.Sizeof(b.rxSize)); err != nil {
		unix.Close(fd)
		return 0, nil, nil, nil, nil, ringMem{}, &arena.SystemError{Op: "setsockopt(XDP_RX_RING)", Err: err}
	}
	if err = setsockopt(fd, unix.SOL_XDP, xdpTxRing, unsafe.Pointer(&b.txSize), unsafe.Sizeof(b.txSize)); err != nil {
		unix.Close(fd)
		return 0, nil, nil, nil, nil, ringMem{}, &arena.SystemError{Op: "setsockopt(XDP_TX_RING)", Err: err}
	}
	if fillSize > 0 {
		if err = setsockopt(fd, unix.SOL_XDP, xdpUmemFillRing, unsafe.Pointer(&fillSize), unsafe.Sizeof(fillSize)); err != nil {
			unix.Close(fd)
			return 0, nil, nil, nil, nil, ringMem{}, &arena.SystemError{Op: "setsockopt(XDP_UMEM_FILL_RING)", Err: err}
		}
		if err = setsockopt(fd, unix.SOL_XDP, xdpUmemCompletionRing, unsafe.Pointer(&compSize), unsafe.Sizeof(compSize)); err != nil {
			unix.Close(fd)
			return 0, nil, nil, nil, nil, ringMem{}, &arena.SystemError{Op: "setsockopt(XDP_UMEM_COMPLETION_RING)", Err: err}
		}
	}

	var off ring.MmapOffsets
	offSize := uint32(unsafe.Sizeof(off))
	if err = getsockopt(fd, unix.SOL_XDP, xdpMmapOffsets, unsafe.Pointer(&off), &offSize); err != nil {
		unix.Close(fd)
		return 0, nil, nil, nil, nil, ringMem{}, &arena.SystemError{Op: "getsockopt(XDP_MMAP_OFFSETS)", Err: err}
	}

	rxLen := int(off.Rx.Desc) + int(b.rxSize)*int(ring.DescSize)
	rxMem, err := unix.Mmap(fd, xdpPgoffRxRing, rxLen, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		unix.Close(fd)
		return 0, nil, nil, nil, nil, ringMem{}, &arena.SystemError{Op: "mmap(rx ring)", Err: err}
	}
	txLen := int(off.Tx.Desc) + int(b.txSize)*int(ring.DescSize)
	txMem, err := unix.Mmap(fd, xdpPgoffTxRing, txLen, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		unix.Munmap(rxMem)
		unix.Close(fd)
		return 0, nil, nil, nil, nil, ringMem{}, &arena.SystemError{Op: "mmap(tx ring)", Err: err}
	}
	rx = ring.NewConsRing(rxMem, off.Rx, b.rxSize, ring.DescSize)
	tx = ring.NewProdRing(txMem, off.Tx, b.txSize, ring.DescSize)
	rings = ringMem{rx: rxMem, tx: txMem}

	if fillSize > 0 {
		fillLen := int(off.Fr.Desc) + int(fillSize)*int(ring.AddrSize)
		fillMem, ferr := unix.Mmap(fd, xdpUmemPgoffFillRing, fillLen, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
		if ferr != nil {
			unix.Munmap(rxMem)
			unix.Munmap(txMem)
			unix.Close(fd)
			return 0, nil, nil, nil, nil, ringMem{}, &arena.SystemError{Op: "mmap(fill ring)", Err: ferr}
		}
		compLen := int(off.Cr.Desc) + int(compSize)*int(ring.AddrSize)
		compMem, cerr := unix.Mmap(fd, xdpUmemPgoffCompletionRing, compLen, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
		if cerr != nil {
			unix.Munmap(rxMem)
			unix.Munmap(txMem)
			unix.Munmap(fillMem)
			unix.Close(fd)
			return 0, nil, nil, nil, nil, ringMem{}, &arena.SystemError{Op: "mmap(completion ring)", Err: cerr}
		}
		fill = ring.NewProdRing(fillMem, off.Fr, fillSize, ring.AddrSize)
		completion = ring.NewConsRing(compMem, off.Cr, compSize, ring.AddrSize)
		rings.fill = fillMem
		rings.completion = compMem
	}

	return fd, rx, tx, fill, completion, rings, nil
}

func (b *Builder) bind(fd int, a *arena.Arena) error {
	iface, err := net.InterfaceByName(b.ifname)
	if err != nil {
		return &arena.SystemError{Op: "net.InterfaceByName", Err: err}
	}
	if b.scheduleMode() == ScheduleBusyPolling {
		if err := setBusyPolling(fd); err != nil {
			return &arena.SystemError{Op: "setsockopt(busy poll)", Err: err}
		}
	}
	req := sockaddrXDP{
		Family:       unix.AF_XDP,
		Flags:        bindFlags(b) | xdpShareUmemFlag,
		Ifindex:      uint32(iface.Index),
		QueueID:      b.queueIndex,
		SharedUmemFD: uint32(a.FD()),
	}
	if err := bindXDP(fd, &req); err != nil {
		return &arena.SystemError{Op: "bind(AF_XDP)", Err: err}
	}
	return nil
}

// BuildDedicated creates a socket with exclusive ownership of a,
// reusing the arena's own fill/completion rings via a
// DedicatedAccessor, and pre-fills the rx ring.
func (b *Builder) BuildDedicated(a *arena.Arena) (*Socket, error) {
	if _, err := b.construct(); err != nil {
		return nil, err
	}
	fd, rx, tx, _, _, rings, err := b.createFd(0, 0)
	if err != nil {
		return nil, err
	}
	if err := b.bind(fd, a); err != nil {
		unix.Close(fd)
		return nil, err
	}

	accessor := arena.NewDedicatedAccessor(a)
	s := newSocket(fd, b.ifname, b.queueIndex, accessor, rx, tx, b.scheduleMode())
	s.rings = rings
	if _, err := accessor.Fill(int(b.rxSize)); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// BuildShared creates a socket sharing a's UMEM with other sockets,
// giving it its own private fill/completion ring pair via a
// SharedAccessor, and pre-fills the rx ring.
func (b *Builder) BuildShared(a *arena.Arena) (*Socket, error) {
	if _, err := b.construct(); err != nil {
		return nil, err
	}
	fillSize, compSize := b.rxSize, b.txSize
	fd, rx, tx, fill, completion, rings, err := b.createFd(fillSize, compSize)
	if err != nil {
		return nil, err
	}
	if err := b.bind(fd, a); err != nil {
		unix.Close(fd)
		return nil, err
	}

	accessor := arena.NewSharedAccessor(a, fill, completion)
	s := newSocket(fd, b.ifname, b.queueIndex, accessor, rx, tx, b.scheduleMode())
	s.rings = rings
	if _, err := accessor.Fill(int(b.rxSize)); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// ringMem holds the raw mmap'd bytes backing a socket's own rx/tx
// rings and, for a shared-umem socket, its private fill/completion
// rings, kept around solely so closeKernel can unmap exactly what
// createFd mapped.
type ringMem struct {
	rx, tx, fill, completion []byte
}

func (s *Socket) unmapRing(name string, mem []byte) {
	if mem == nil {
		return
	}
	if err := unix.Munmap(mem); err != nil {
		s.log.WithField("ring", name).WithField("error", err).Warn("munmap failed during socket teardown")
	}
}

func (s *Socket) closeKernel() {
	s.unmapRing("rx", s.rings.rx)
	s.unmapRing("tx", s.rings.tx)
	s.unmapRing("fill", s.rings.fill)
	s.unmapRing("completion", s.rings.completion)
	if err := unix.Close(s.fd); err != nil {
		s.log.WithField("error", err).Warn("close(fd) failed during socket teardown")
	}
}
