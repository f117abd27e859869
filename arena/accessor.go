package arena

// Accessor mediates every chunk-state change for one socket:
// allocation, freeing, fill-ring replenishment, completion-ring
// recycling, rx-address-to-chunk resolution, and tx bookkeeping. A
// Socket never touches an arena's free list directly; it always goes
// through its Accessor, which is what lets DedicatedAccessor go
// straight to the arena (under the arena's own lock) while
// SharedAccessor safely multiplexes several sockets over one arena.
type Accessor interface {
	// Allocate draws n fresh, empty app frames.
	Allocate(n int) ([]AppFrame, error)
	// Free returns a chunk to the accessor once its owning frame is
	// released. Called at most once per chunk.
	Free(chunk Chunk)
	// Fill replenishes the fill ring with up to n chunks, returning
	// the number actually placed.
	Fill(n int) (int, error)
	// Recycle reaps the completion ring, returning freed chunks to the
	// accessor's own bookkeeping, and reports how many were reaped.
	Recycle() (int, error)
	// ExtractRecv resolves a kernel-reported rx address to the chunk
	// that contains it.
	ExtractRecv(xdpAddr uint64) Chunk
	// RegisterSend records that chunk has been handed to the tx ring
	// and is now in flight.
	RegisterSend(chunk Chunk)
	// NeedWakeup reports the fill ring's needs-wakeup flag.
	NeedWakeup() bool
	// Equal reports whether two accessors mediate the same underlying
	// arena. Compared by a stable identifier, never by accessor
	// pointer identity, since SharedAccessor values are created afresh per
	// socket even when they share one arena.
	Equal(other Accessor) bool
	// Identity returns that stable identifier.
	Identity() uintptr
}
