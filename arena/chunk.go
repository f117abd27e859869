package arena

// Chunk identifies one fixed-size slot within an arena: its offset
// from the arena base (its "xdp address"), its size, and the region
// that backs it.
type Chunk struct {
	xdpAddress uint64
	size       uint32
	area       *MMapArea
}

func newChunk(xdpAddress uint64, size uint32, area *MMapArea) Chunk {
	return Chunk{xdpAddress: xdpAddress, size: size, area: area}
}

// XDPAddress is the chunk's offset from the arena base: the value
// the kernel itself speaks in fill/completion/rx/tx descriptors, not
// a valid pointer on its own.
func (c Chunk) XDPAddress() uint64 { return c.xdpAddress }

func (c Chunk) Size() uint32 { return c.size }

// Address is the chunk's live virtual address.
func (c Chunk) Address() uintptr { return c.area.BaseAddress() + uintptr(c.xdpAddress) }

// isXDPAddrValid reports whether xdpAddr falls within this chunk.
func (c Chunk) isXDPAddrValid(xdpAddr uint64) bool {
	return xdpAddr >= c.xdpAddress && xdpAddr < c.xdpAddress+uint64(c.size)
}

// isXDPArrayValid reports whether the byte range [xdpAddr, xdpAddr+length)
// the kernel described in an rx descriptor fits entirely inside this chunk.
func (c Chunk) isXDPArrayValid(xdpAddr uint64, length uint32) bool {
	if !c.isXDPAddrValid(xdpAddr) {
		return false
	}
	return xdpAddr+uint64(length) <= c.xdpAddress+uint64(c.size)
}
