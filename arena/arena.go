package arena

import (
	"sync"

	"github.com/penguintech/xdpcore/internal/memlock"
	"github.com/penguintech/xdpcore/ring"
)

const (
	defaultChunkSize           = 4096
	defaultFrameHeadroom       = 256
	defaultFillQueueSize       = 2048
	defaultCompletionQueueSize = 2048
)

// Arena is a UMEM: one mmap'd region of chunk_size*num_chunks bytes,
// registered with the kernel, plus the fill and completion rings that
// move chunk ownership between kernel and application.
type Arena struct {
	mu sync.Mutex

	area      *MMapArea
	chunkSize uint32
	numChunks uint32
	headroom  uint32
	freeList  []uint64

	fill       *ring.ProdRing
	completion *ring.ConsRing
	fillMem    []byte
	compMem    []byte

	umemFD   int
	identity uintptr
	closed   bool
}

// Builder configures and constructs an Arena.
type Builder struct {
	chunkSize           uint32
	numChunks           uint32
	frameHeadroom       uint32
	fillQueueSize       uint32
	completionQueueSize uint32
}

// NewBuilder returns a Builder seeded with the same defaults as
// libxdp's XSK_UMEM__DEFAULT_* constants.
func NewBuilder() *Builder {
	return &Builder{
		chunkSize:           defaultChunkSize,
		frameHeadroom:       defaultFrameHeadroom,
		fillQueueSize:       defaultFillQueueSize,
		completionQueueSize: defaultCompletionQueueSize,
	}
}

func (b *Builder) ChunkSize(n uint32) *Builder { b.chunkSize = n; return b }
func (b *Builder) NumChunks(n uint32) *Builder { b.numChunks = n; return b }
func (b *Builder) FrameHeadroom(n uint32) *Builder { b.frameHeadroom = n; return b }
func (b *Builder) FillQueueSize(n uint32) *Builder { b.fillQueueSize = n; return b }
func (b *Builder) CompletionQueueSize(n uint32) *Builder { b.completionQueueSize = n; return b }

// Build validates the configuration, mmaps the arena, registers it
// with the kernel as a UMEM, and mmaps its fill/completion rings.
func (b *Builder) Build() (*Arena, error) {
	if b.numChunks == 0 {
		return nil, &InvalidArgumentError{Msg: "number of chunks must be specified and non-zero"}
	}
	if b.chunkSize == 0 || b.chunkSize&(b.chunkSize-1) != 0 {
		return nil, &InvalidArgumentError{Msg: "chunk size must be a non-zero power of two"}
	}
	if !isPowerOfTwo(b.fillQueueSize) || !isPowerOfTwo(b.completionQueueSize) {
		return nil, &InvalidArgumentError{Msg: "fill and completion queue sizes must be powers of two"}
	}
	if b.frameHeadroom >= b.chunkSize {
		return nil, &InvalidArgumentError{Msg: "frame headroom must be smaller than the chunk size"}
	}

	size := uint64(b.chunkSize) * uint64(b.numChunks)
	if err := memlock.Reserve(size); err != nil {
		return nil, &SystemError{Op: "reserve locked memory", Err: err}
	}

	area, err := newMMapArea(int(size))
	if err != nil {
		memlock.Release(size)
		return nil, err
	}

	a := &Arena{
		area:      area,
		chunkSize: b.chunkSize,
		numChunks: b.numChunks,
		headroom:  b.frameHeadroom,
	}

	if err := a.registerUMEM(b.fillQueueSize, b.completionQueueSize); err != nil {
		area.Close()
		memlock.Release(size)
		return nil, err
	}

	a.freeList = make([]uint64, b.numChunks)
	for i := range a.freeList {
		a.freeList[i] = uint64(i) * uint64(b.chunkSize)
	}

	return a, nil
}

func isPowerOfTwo(n uint32) bool { return n != 0 && n&(n-1) == 0 }

// ChunkSize, NumChunks and Headroom report the arena's fixed layout.
func (a *Arena) ChunkSize() uint32 { return a.chunkSize }
func (a *Arena) NumChunks() uint32 { return a.numChunks }
func (a *Arena) Headroom() uint32  { return a.headroom }

// FD is the control-plane socket the UMEM was registered on, the
// value a Socket binds against as its shared_umem_fd.
func (a *Arena) FD() int { return a.umemFD }

// FreeListLen reports the current number of free chunks, for
// diagnostics and for tests asserting free-list conservation across
// operations.
func (a *Arena) FreeListLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.freeList)
}

// Identity is a stable per-arena identifier for Accessor.Equal: the
// UMEM control fd for a real arena.
func (a *Arena) Identity() uintptr { return a.identity }

// Allocate draws n chunks from the free list, wrapping each in a
// Chunk. Intended for DedicatedAccessor, which owns the arena
// exclusively and does not need pre_alloc batching.
func (a *Arena) Allocate(n int) ([]Chunk, error) {
	offsets, err := a.AllocateRaw(n)
	if err != nil {
		return nil, err
	}
	out := make([]Chunk, n)
	for i, off := range offsets {
		out[i] = newChunk(off, a.chunkSize, a.area)
	}
	return out, nil
}

// Free returns a single chunk to the free list.
func (a *Arena) Free(c Chunk) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.freeList = append(a.freeList, c.xdpAddress)
}

// AllocateRaw draws exactly n bare chunk offsets from the free list,
// failing with ResourceExhaustedError if fewer are free. Allocate
// delegates to it; SharedAccessor refills its cache through the
// best-effort AllocateRawUpTo instead.
func (a *Arena) AllocateRaw(n int) ([]uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.freeList) < n {
		return nil, &ResourceExhaustedError{Requested: n, Available: len(a.freeList)}
	}
	out := make([]uint64, n)
	copy(out, a.freeList[:n])
	a.freeList = a.freeList[n:]
	return out, nil
}

// AllocateRawUpTo draws up to n bare chunk offsets, returning however
// many the free list could provide, possibly none.
func (a *Arena) AllocateRawUpTo(n int) []uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n > len(a.freeList) {
		n = len(a.freeList)
	}
	out := make([]uint64, n)
	copy(out, a.freeList[:n])
	a.freeList = a.freeList[n:]
	return out
}

// FreeRaw returns bare chunk offsets to the free list.
func (a *Arena) FreeRaw(offsets []uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.freeList = append(a.freeList, offsets...)
}

// populateFill and reapCompletion run the ring helpers against the
// arena's own rings and free list under its lock, for
// DedicatedAccessor.
func (a *Arena) populateFill(n int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return ring.PopulateFillRing(a.fill, n, &a.freeList)
}

func (a *Arena) reapCompletion(nMax int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return ring.ReapCompletionRing(a.completion, nMax, a.chunkSize, &a.freeList)
}

// NewChunk wraps a bare offset drawn from this arena's free list back
// into a Chunk, for SharedAccessor and rx-resolution paths.
func (a *Arena) NewChunk(offset uint64) Chunk {
	return newChunk(offset, a.chunkSize, a.area)
}

// Fill and Completion expose the arena's own rings for
// DedicatedAccessor, which has no rings of its own.
func (a *Arena) Fill() *ring.ProdRing       { return a.fill }
func (a *Arena) Completion() *ring.ConsRing { return a.completion }

// Close releases the arena's kernel registration and memory. Safe to
// call more than once.
func (a *Arena) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	a.unmapRings()
	a.area.Close()
	memlock.Release(uint64(a.chunkSize) * uint64(a.numChunks))
}
