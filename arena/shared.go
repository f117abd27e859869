package arena

import (
	"sync"

	"github.com/penguintech/xdpcore/ring"
)

// CacheHWM is the high-water mark on how many spare chunks a
// SharedAccessor holds locally before returning the excess to the
// shared arena.
const CacheHWM = 128

// SharedAccessor mediates one socket's share of an arena used by
// several sockets at once. Its own cache and rings are private to the
// socket it belongs to; only crossing into the arena's free list
// (pre_alloc/after_free) takes the arena's lock.
type SharedAccessor struct {
	mu sync.Mutex

	arena      *Arena
	cache      []uint64
	fill       *ring.ProdRing
	completion *ring.ConsRing
	txIssued   uint32
}

// NewSharedAccessor builds an accessor over arena using a private
// fill/completion ring pair the caller has already registered on its
// own socket fd (a second socket bound with XDP_SHARED_UMEM against
// the arena's control fd).
func NewSharedAccessor(a *Arena, fill *ring.ProdRing, completion *ring.ConsRing) *SharedAccessor {
	return &SharedAccessor{arena: a, fill: fill, completion: completion}
}

// preAlloc tops the cache up to at least n chunks, drawing
// CacheHWM/2 + n - len(cache) from the shared arena in one locked
// step. Best effort: the cache may still hold fewer than n afterwards
// if the arena itself is short.
func (s *SharedAccessor) preAlloc(n int) {
	if len(s.cache) < n {
		s.cache = append(s.cache, s.arena.AllocateRawUpTo(CacheHWM/2+n-len(s.cache))...)
	}
}

func (s *SharedAccessor) afterFree() {
	if len(s.cache) > CacheHWM {
		half := CacheHWM / 2
		s.arena.FreeRaw(s.cache[:half])
		s.cache = append([]uint64(nil), s.cache[half:]...)
	}
}

func (s *SharedAccessor) Allocate(n int) ([]AppFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preAlloc(n)
	if len(s.cache) < n {
		return nil, &ResourceExhaustedError{Requested: n, Available: len(s.cache)}
	}
	frames := make([]AppFrame, n)
	for i := 0; i < n; i++ {
		frames[i] = newAppFrame(s.arena.NewChunk(s.cache[i]), s)
	}
	s.cache = append([]uint64(nil), s.cache[n:]...)
	return frames, nil
}

func (s *SharedAccessor) Free(chunk Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = append(s.cache, chunk.xdpAddress)
	s.afterFree()
}

func (s *SharedAccessor) Fill(n int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preAlloc(n)
	populated := ring.PopulateFillRing(s.fill, n, &s.cache)
	// chunks may not all have been consumed if the ring had no room;
	// check whether the cache needs draining back to the shared pool.
	s.afterFree()
	return populated, nil
}

func (s *SharedAccessor) Recycle() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reaped := ring.ReapCompletionRing(s.completion, int(s.txIssued), s.arena.chunkSize, &s.cache)
	s.txIssued -= uint32(reaped)
	s.afterFree()
	return reaped, nil
}

func (s *SharedAccessor) ExtractRecv(xdpAddr uint64) Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	base := xdpAddr - xdpAddr%uint64(s.arena.chunkSize)
	return s.arena.NewChunk(base)
}

func (s *SharedAccessor) RegisterSend(_ Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txIssued++
}

func (s *SharedAccessor) NeedWakeup() bool {
	return s.fill.NeedsWakeup()
}

func (s *SharedAccessor) Equal(other Accessor) bool { return s.Identity() == other.Identity() }

func (s *SharedAccessor) Identity() uintptr { return s.arena.Identity() }
