package arena

// DedicatedAccessor mediates a single socket's exclusive use of its
// arena: no other accessor ever touches the same free list, so no
// caching or contention bookkeeping is needed; every operation goes
// straight to the arena.
type DedicatedAccessor struct {
	arena    *Arena
	txIssued uint32
}

// NewDedicatedAccessor builds an accessor that owns arena exclusively.
func NewDedicatedAccessor(a *Arena) *DedicatedAccessor {
	return &DedicatedAccessor{arena: a}
}

func (d *DedicatedAccessor) Allocate(n int) ([]AppFrame, error) {
	chunks, err := d.arena.Allocate(n)
	if err != nil {
		return nil, err
	}
	frames := make([]AppFrame, len(chunks))
	for i, c := range chunks {
		frames[i] = newAppFrame(c, d)
	}
	return frames, nil
}

func (d *DedicatedAccessor) Free(chunk Chunk) { d.arena.Free(chunk) }

func (d *DedicatedAccessor) Fill(n int) (int, error) {
	return d.arena.populateFill(n), nil
}

func (d *DedicatedAccessor) Recycle() (int, error) {
	reaped := d.arena.reapCompletion(int(d.txIssued))
	d.txIssued -= uint32(reaped)
	return reaped, nil
}

func (d *DedicatedAccessor) ExtractRecv(xdpAddr uint64) Chunk {
	base := xdpAddr - xdpAddr%uint64(d.arena.chunkSize)
	return d.arena.NewChunk(base)
}

func (d *DedicatedAccessor) RegisterSend(_ Chunk) { d.txIssued++ }

func (d *DedicatedAccessor) NeedWakeup() bool { return d.arena.fill.NeedsWakeup() }

func (d *DedicatedAccessor) Equal(other Accessor) bool { return d.Identity() == other.Identity() }

func (d *DedicatedAccessor) Identity() uintptr { return d.arena.Identity() }
