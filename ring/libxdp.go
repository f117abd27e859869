package ring

import "golang.org/x/sys/unix"

// PopulateFillRing reserves up to n slots in the fill ring and moves
// that many offsets off the front of free into it. It returns the
// number actually filled, which can be less than n if either the ring
// had no room or free held fewer than n offsets. Never blocks.
func PopulateFillRing(fill *ProdRing, n int, free *[]uint64) int {
	if n <= 0 {
		return 0
	}
	start, reserved := fill.Reserve(uint32(n))
	actual := reserved
	if uint32(len(*free)) < actual {
		actual = uint32(len(*free))
	}
	for i := uint32(0); i < actual; i++ {
		*fill.AddrAt(start + i) = (*free)[i]
	}
	*free = (*free)[actual:]
	if actual < reserved {
		fill.Cancel(reserved - actual)
	}
	fill.Submit(actual)
	return int(actual)
}

// ReapCompletionRing peeks up to nMax completion entries, rounds each
// returned address down to the start of its chunk, and appends the
// resulting offsets to free. Returns the number reaped.
func ReapCompletionRing(comp *ConsRing, nMax int, chunkSize uint32, free *[]uint64) int {
	if nMax <= 0 {
		return 0
	}
	start, count := comp.Peek(uint32(nMax))
	for i := uint32(0); i < count; i++ {
		addr := *comp.AddrAt(start + i)
		base := addr - addr%uint64(chunkSize)
		*free = append(*free, base)
	}
	comp.Release(count)
	return int(count)
}

// WakeupRx notifies the kernel that new fill-ring entries are
// available by issuing a non-blocking, zero-length recvfrom on the
// socket. Unlike WakeupTx, no errno is treated as expected here; a
// failure is surfaced to the caller as-is.
func WakeupRx(fd int) error {
	_, _, err := unix.Recvfrom(fd, nil, unix.MSG_DONTWAIT)
	return err
}

// WakeupTx notifies the kernel that new tx-ring entries are available
// by issuing a non-blocking, zero-length sendto on the socket.
// EAGAIN/EBUSY/ENETDOWN/ENOBUFS are routine under load (the kernel
// simply wasn't ready to take the kick) and are not reported as
// errors.
func WakeupTx(fd int) error {
	err := unix.Sendto(fd, nil, unix.MSG_DONTWAIT, nil)
	switch err {
	case nil, unix.EAGAIN, unix.EBUSY, unix.ENETDOWN, unix.ENOBUFS:
		return nil
	default:
		return err
	}
}
