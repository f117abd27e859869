// Package ring implements the producer/consumer ring primitive shared
// by an AF_XDP socket's four rings (fill, completion, rx, tx). The
// memory backing a ring is whatever the caller hands in, a real
// kernel mmap for production use or a plain byte slice in tests;
// the ring math itself never issues a syscall.
package ring

import (
	"sync/atomic"
	"unsafe"
)

// Desc mirrors the kernel's struct xdp_desc: one rx/tx ring entry.
type Desc struct {
	Addr    uint64
	Len     uint32
	Options uint32
}

// DescSize and AddrSize are the two entry sizes used across the four
// rings: rx/tx rings hold Desc entries, fill/completion rings hold a
// bare chunk address.
const (
	DescSize = uint64(unsafe.Sizeof(Desc{}))
	AddrSize = uint64(8)
)

// Offsets mirrors struct xdp_ring_offset: the byte offsets, inside the
// mmap region returned for one ring, of its producer index, consumer
// index, descriptor array, and needs-wakeup flag word.
type Offsets struct {
	Producer uint64
	Consumer uint64
	Desc     uint64
	Flags    uint64
}

// MmapOffsets mirrors struct xdp_mmap_offsets, as returned by
// getsockopt(XDP_MMAP_OFFSETS): one Offsets block per ring.
type MmapOffsets struct {
	Rx Offsets
	Tx Offsets
	Fr Offsets
	Cr Offsets
}

const needWakeupFlag uint32 = 1 << 0

// ProdRing is an application-produced, kernel-consumed ring: the fill
// ring (free chunk offsets handed to the kernel for rx) and the tx
// ring (descriptors ready to send) are both ProdRings.
type ProdRing struct {
	producer *uint32
	consumer *uint32
	flags    *uint32
	base     unsafe.Pointer

	mask      uint32
	size      uint32
	entrySize uint64

	cachedProd uint32
	cachedCons uint32
}

// NewProdRing builds a producer ring header over mem, a region laid
// out per off. mem must outlive the ring and never be moved or
// resized; both the kernel and this ring keep raw pointers into it.
// size must be a power of two.
func NewProdRing(mem []byte, off Offsets, size uint32, entrySize uint64) *ProdRing {
	return &ProdRing{
		producer:  (*uint32)(unsafe.Pointer(&mem[off.Producer])),
		consumer:  (*uint32)(unsafe.Pointer(&mem[off.Consumer])),
		flags:     (*uint32)(unsafe.Pointer(&mem[off.Flags])),
		base:      unsafe.Pointer(&mem[off.Desc]),
		mask:      size - 1,
		size:      size,
		entrySize: entrySize,
	}
}

// Reserve reserves up to n production slots starting at the returned
// index; reserved may be less than n, including 0, if the ring is
// short on free slots.
func (r *ProdRing) Reserve(n uint32) (start uint32, reserved uint32) {
	free := r.size - (r.cachedProd - r.cachedCons)
	if free < n {
		r.cachedCons = atomic.LoadUint32(r.consumer)
		free = r.size - (r.cachedProd - r.cachedCons)
	}
	if free < n {
		n = free
	}
	start = r.cachedProd
	r.cachedProd += n
	return start, n
}

// Cancel returns the last n reserved-but-unsubmitted slots to the
// ring. A caller that reserved more slots than it could fill must
// cancel the remainder before Submit, or a later Submit would publish
// the unwritten slots to the kernel.
func (r *ProdRing) Cancel(n uint32) {
	r.cachedProd -= n
}

// Submit publishes nb filled slots to the kernel.
func (r *ProdRing) Submit(nb uint32) {
	atomic.AddUint32(r.producer, nb)
}

// NeedsWakeup reports whether the kernel has set this ring's
// need-wakeup flag, requesting a kick before it will make further
// progress.
func (r *ProdRing) NeedsWakeup() bool {
	return atomic.LoadUint32(r.flags)&needWakeupFlag != 0
}

// AddrAt returns a pointer to the bare chunk address at ring index idx
// (fill ring entries).
func (r *ProdRing) AddrAt(idx uint32) *uint64 {
	return (*uint64)(unsafe.Pointer(uintptr(r.base) + uintptr(uint64(idx&r.mask)*r.entrySize)))
}

// DescAt returns a pointer to the descriptor at ring index idx (tx
// ring entries).
func (r *ProdRing) DescAt(idx uint32) *Desc {
	return (*Desc)(unsafe.Pointer(uintptr(r.base) + uintptr(uint64(idx&r.mask)*r.entrySize)))
}

// ConsRing is a kernel-produced, application-consumed ring: the
// completion ring (finished tx chunk offsets) and the rx ring
// (received descriptors) are both ConsRings.
type ConsRing struct {
	producer *uint32
	consumer *uint32
	base     unsafe.Pointer

	mask      uint32
	size      uint32
	entrySize uint64

	cachedProd uint32
	cachedCons uint32
}

// NewConsRing builds a consumer ring header over mem, laid out per
// off. size must be a power of two.
func NewConsRing(mem []byte, off Offsets, size uint32, entrySize uint64) *ConsRing {
	return &ConsRing{
		producer:  (*uint32)(unsafe.Pointer(&mem[off.Producer])),
		consumer:  (*uint32)(unsafe.Pointer(&mem[off.Consumer])),
		base:      unsafe.Pointer(&mem[off.Desc]),
		mask:      size - 1,
		size:      size,
		entrySize: entrySize,
	}
}

// Peek returns up to n available entries, starting at the returned
// index; count may be less than n, including 0.
func (r *ConsRing) Peek(n uint32) (start uint32, count uint32) {
	available := r.cachedProd - r.cachedCons
	if available == 0 {
		r.cachedProd = atomic.LoadUint32(r.producer)
		available = r.cachedProd - r.cachedCons
	}
	count = n
	if available < n {
		count = available
	}
	start = r.cachedCons
	r.cachedCons += count
	return start, count
}

// Release publishes nb consumed entries back to the kernel.
func (r *ConsRing) Release(nb uint32) {
	atomic.AddUint32(r.consumer, nb)
}

// AddrAt returns a pointer to the bare chunk address at ring index idx
// (completion ring entries).
func (r *ConsRing) AddrAt(idx uint32) *uint64 {
	return (*uint64)(unsafe.Pointer(uintptr(r.base) + uintptr(uint64(idx&r.mask)*r.entrySize)))
}

// DescAt returns a pointer to the descriptor at ring index idx (rx
// ring entries).
func (r *ConsRing) DescAt(idx uint32) *Desc {
	return (*Desc)(unsafe.Pointer(uintptr(r.base) + uintptr(uint64(idx&r.mask)*r.entrySize)))
}
