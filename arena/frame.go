package arena

import (
	"fmt"
	"unsafe"
)

// frame is the shared representation behind AppFrame, RxFrame and
// TxFrame. Exactly one of those wrapper values is considered "live"
// for a given frame at a time; conversions between them hand off the
// same *frame rather than copying it, so the original wrapper must not
// be used again after converting it.
type frame struct {
	chunk    *Chunk
	accessor Accessor
	offset   int
	length   int
	released bool
}

// release returns the frame's chunk to its accessor's free list. Safe
// to call more than once; only the first call has effect, so a chunk
// is never freed twice.
func (f *frame) release() {
	if f.released {
		return
	}
	f.released = true
	if f.chunk != nil {
		f.accessor.Free(*f.chunk)
		f.chunk = nil
	}
}

func (f *frame) rawBuffer() []byte {
	base := f.chunk.Address() + uintptr(f.offset)
	if f.length == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(base)), f.length)
}

func (f *frame) resize(n int) ([]byte, error) {
	if n > int(f.chunk.Size()) {
		return nil, &InvalidArgumentError{Msg: fmt.Sprintf("resize to %d exceeds chunk size %d", n, f.chunk.Size())}
	}
	f.offset = 0
	f.length = n
	return f.rawBuffer(), nil
}

func (f *frame) append(n int) ([]byte, error) {
	if f.offset+f.length+n > int(f.chunk.Size()) {
		return nil, &InvalidArgumentError{Msg: fmt.Sprintf(
			"append of %d bytes exceeds chunk size %d (already used %d)", n, f.chunk.Size(), f.offset+f.length)}
	}
	base := f.chunk.Address() + uintptr(f.offset+f.length)
	appended := unsafe.Slice((*byte)(unsafe.Pointer(base)), n)
	f.length += n
	return appended, nil
}

// AppFrame is an application-owned scratch buffer: freshly allocated,
// empty, ready to be written into before being converted into a
// TxFrame for sending.
type AppFrame struct{ f *frame }

func newAppFrame(chunk Chunk, accessor Accessor) AppFrame {
	return AppFrame{f: &frame{chunk: &chunk, accessor: accessor, offset: 0, length: 0}}
}

// RawBuffer returns the frame's current (possibly empty) payload.
func (a AppFrame) RawBuffer() []byte { return a.f.rawBuffer() }

// Resize sets the frame's payload length, starting at offset 0, and
// returns the resulting mutable buffer. Errors if n exceeds the
// chunk's size.
func (a AppFrame) Resize(n int) ([]byte, error) { return a.f.resize(n) }

// Append grows the frame's payload by n bytes and returns just the
// newly appended region. Errors if the frame has no room left.
// Headroom reserved at the front of the chunk is not accounted for at
// this layer; a collaborator that wants to prepend headers allocates
// an offset of its own choosing before calling Append.
func (a AppFrame) Append(n int) ([]byte, error) { return a.f.append(n) }

// Chunk exposes the frame's backing chunk, mainly for diagnostics.
func (a AppFrame) Chunk() Chunk { return *a.f.chunk }

// IntoTx converts the frame into a TxFrame ready to send. The receiver
// must not be used again afterward.
func (a AppFrame) IntoTx() TxFrame { return TxFrame{f: a.f} }

// Close releases the frame's chunk without sending it.
func (a AppFrame) Close() { a.f.release() }

// RxFrame is a read-only frame populated by the kernel and reported
// through a socket's rx ring.
type RxFrame struct{ f *frame }

// NewRxFrame builds an RxFrame over chunk for the kernel-reported
// xdpAddr/length. Panics if the reported range does not fit inside
// chunk: a malformed descriptor is an invariant violation, not a
// recoverable error.
func NewRxFrame(chunk Chunk, accessor Accessor, xdpAddr uint64, length uint32) RxFrame {
	if !chunk.isXDPArrayValid(xdpAddr, length) {
		panic(fmt.Sprintf("xdpcore: rx descriptor (addr=%d len=%d) does not fit chunk (addr=%d size=%d)",
			xdpAddr, length, chunk.xdpAddress, chunk.size))
	}
	return RxFrame{f: &frame{
		chunk:    &chunk,
		accessor: accessor,
		offset:   int(xdpAddr - chunk.xdpAddress),
		length:   int(length),
	}}
}

// RawBuffer returns the received payload.
func (r RxFrame) RawBuffer() []byte { return r.f.rawBuffer() }

// XDPAddress is the address the rx descriptor carried.
func (r RxFrame) XDPAddress() uint64 { return r.f.chunk.xdpAddress + uint64(r.f.offset) }

// Len is the length the rx descriptor carried.
func (r RxFrame) Len() uint32 { return uint32(r.f.length) }

func (r RxFrame) Chunk() Chunk { return *r.f.chunk }

// IntoTx converts a received frame straight back out (loopback/echo
// use). The receiver must not be used again afterward.
func (r RxFrame) IntoTx() TxFrame { return TxFrame{f: r.f} }

// IntoApp converts a received frame into an application-owned one for
// further mutation. The payload stays at its kernel-chosen offset
// within the chunk until a Resize rebases it to the chunk start. The
// receiver must not be used again afterward.
func (r RxFrame) IntoApp() AppFrame { return AppFrame{f: r.f} }

// Close releases the frame's chunk.
func (r RxFrame) Close() { r.f.release() }

// TxFrame is a fully populated frame ready to hand to a socket's tx
// ring.
type TxFrame struct{ f *frame }

// XDPAddress is the address the tx descriptor should carry.
func (t TxFrame) XDPAddress() uint64 { return t.f.chunk.xdpAddress + uint64(t.f.offset) }

// Len is the descriptor length the tx descriptor should carry.
func (t TxFrame) Len() uint32 { return uint32(t.f.length) }

func (t TxFrame) RawBuffer() []byte { return t.f.rawBuffer() }

// AccessorEqual reports whether t belongs to the given accessor.
// Socket.SendBulk uses this to reject frames allocated against a
// different arena/accessor before touching the tx ring.
func (t TxFrame) AccessorEqual(a Accessor) bool { return t.f.accessor.Equal(a) }

// Take detaches the frame's chunk for hand-off to RegisterSend,
// marking the frame released without actually freeing the chunk; the
// tx/completion path, not Free, now owns its lifecycle.
func (t TxFrame) Take() Chunk {
	c := *t.f.chunk
	t.f.chunk = nil
	t.f.released = true
	return c
}

// Close releases the frame's chunk without sending it.
func (t TxFrame) Close() { t.f.release() }
