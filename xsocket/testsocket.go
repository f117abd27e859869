package xsocket

import (
	"github.com/penguintech/xdpcore/arena"
	"github.com/penguintech/xdpcore/ring"
)

// NewTestSocket builds a Socket over a fake loopback Arena (see
// arena.NewTestArena) with no real fd behind it, for tests in this
// package and downstream packages (xstats, statshttp) that only need
// to exercise bookkeeping, not real packet I/O. fd is set to -1, so
// every rx/tx wakeup kick on it fails with EBADF, and Close only logs
// its failed close.
func NewTestSocket(ifname string, queue uint32, numChunks int, chunkSize, ringSize uint32, mode ScheduleMode) (*Socket, error) {
	s, _, _, _, err := NewTestSocketWithMem(ifname, queue, numChunks, chunkSize, ringSize, mode)
	return s, err
}

// NewTestSocketWithMem is NewTestSocket plus the raw byte slices behind
// the rx/tx rings and the underlying Arena, so a test can poke
// descriptors and ring indices directly to simulate the kernel side
// of rx/tx without a real AF_XDP fd.
func NewTestSocketWithMem(ifname string, queue uint32, numChunks int, chunkSize, ringSize uint32, mode ScheduleMode) (s *Socket, rxMem, txMem []byte, a *arena.Arena, err error) {
	a, err = arena.NewTestArena(numChunks, chunkSize, ringSize)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	accessor := arena.NewDedicatedAccessor(a)

	off := ring.Offsets{Producer: 0, Consumer: 8, Flags: 16, Desc: 32}
	rxMem = make([]byte, 32+uint64(ringSize)*ring.DescSize)
	txMem = make([]byte, 32+uint64(ringSize)*ring.DescSize)
	rx := ring.NewConsRing(rxMem, off, ringSize, ring.DescSize)
	tx := ring.NewProdRing(txMem, off, ringSize, ring.DescSize)

	s = newSocket(-1, ifname, queue, accessor, rx, tx, mode)
	return s, rxMem, txMem, a, nil
}
