package arena

import (
	"sync/atomic"

	"github.com/penguintech/xdpcore/ring"
)

// testArenaID hands out distinct fake identities to test arenas, which
// have no UMEM fd to be identified by. Real arenas use their fd.
var testArenaID uintptr

// NewTestArena builds an Arena whose region is a real anonymous mmap
// but whose fill and completion rings sit over plain byte slices
// rather than a genuine AF_XDP kernel mmap. Registering a real UMEM
// needs a NIC queue or a privileged network namespace; this lets the
// free-list and accessor logic, which behaves identically either way,
// be exercised without one. Exported for use by loopback-style tests
// in downstream packages (xsocket, statshttp); not meant for
// production use.
func NewTestArena(numChunks int, chunkSize uint32, ringSize uint32) (*Arena, error) {
	area, err := newMMapArea(int(chunkSize) * numChunks)
	if err != nil {
		return nil, err
	}

	off := ring.Offsets{Producer: 0, Consumer: 8, Flags: 16, Desc: 32}
	fillMem := make([]byte, 32+uint64(ringSize)*ring.AddrSize)
	compMem := make([]byte, 32+uint64(ringSize)*ring.AddrSize)

	a := &Arena{
		area:       area,
		chunkSize:  chunkSize,
		numChunks:  uint32(numChunks),
		identity:   atomic.AddUintptr(&testArenaID, 1),
		fillMem:    fillMem,
		compMem:    compMem,
		fill:       ring.NewProdRing(fillMem, off, ringSize, ring.AddrSize),
		completion: ring.NewConsRing(compMem, off, ringSize, ring.AddrSize),
	}
	a.freeList = make([]uint64, numChunks)
	for i := range a.freeList {
		a.freeList[i] = uint64(i) * uint64(chunkSize)
	}
	return a, nil
}

// FillRingMem exposes the backing bytes behind a test arena's fill
// ring, so a downstream test can flip its needs-wakeup flag byte
// directly to simulate the kernel asking for a cooperative-schedule
// kick. Only meaningful on an Arena built by NewTestArena.
func (a *Arena) FillRingMem() []byte { return a.fillMem }

// CompletionRingMem exposes the backing bytes behind a test arena's
// completion ring, so a downstream test can publish completed tx
// addresses the way the kernel would. Only meaningful on an Arena
// built by NewTestArena.
func (a *Arena) CompletionRingMem() []byte { return a.compMem }

// NewTestSharedRings builds a private fill/completion ring pair over
// plain byte slices, for NewSharedAccessor in the same test contexts
// NewTestArena serves.
func NewTestSharedRings(ringSize uint32) (*ring.ProdRing, *ring.ConsRing) {
	off := ring.Offsets{Producer: 0, Consumer: 8, Flags: 16, Desc: 32}
	fillMem := make([]byte, 32+uint64(ringSize)*ring.AddrSize)
	compMem := make([]byte, 32+uint64(ringSize)*ring.AddrSize)
	return ring.NewProdRing(fillMem, off, ringSize, ring.AddrSize), ring.NewConsRing(compMem, off, ringSize, ring.AddrSize)
}
