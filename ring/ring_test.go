package ring

import "testing"

// newTestProdRing builds a ProdRing over a plain byte slice standing
// in for kernel-mmap'd memory; the ring math itself never knows the
// difference.
func newTestProdRing(size uint32, entrySize uint64) (*ProdRing, []byte) {
	descBytes := uint64(size) * entrySize
	mem := make([]byte, 32+descBytes)
	off := Offsets{Producer: 0, Consumer: 8, Flags: 16, Desc: 32}
	return NewProdRing(mem, off, size, entrySize), mem
}

func newTestConsRing(size uint32, entrySize uint64) (*ConsRing, []byte) {
	descBytes := uint64(size) * entrySize
	mem := make([]byte, 32+descBytes)
	off := Offsets{Producer: 0, Consumer: 8, Flags: 16, Desc: 32}
	return NewConsRing(mem, off, size, entrySize), mem
}

func TestProdRingReservePartial(t *testing.T) {
	tests := []struct {
		name        string
		size        uint32
		reserve     uint32
		wantReserve uint32
	}{
		{"fits exactly", 8, 8, 8},
		{"fits with room", 8, 3, 3},
		{"exceeds capacity", 8, 9, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestProdRing(tt.size, AddrSize)
			_, reserved := r.Reserve(tt.reserve)
			if reserved != tt.wantReserve {
				t.Fatalf("Reserve(%d) on ring of size %d = %d, want %d", tt.reserve, tt.size, reserved, tt.wantReserve)
			}
		})
	}
}

func TestProdRingReserveReturnsZeroUntilConsumerAdvances(t *testing.T) {
	r, _ := newTestProdRing(4, AddrSize)

	start, reserved := r.Reserve(4)
	if reserved != 4 {
		t.Fatalf("initial Reserve(4) = %d, want 4", reserved)
	}
	r.Submit(4)

	if _, reserved := r.Reserve(1); reserved != 0 {
		t.Fatalf("Reserve(1) on a full ring = %d, want 0", reserved)
	}

	// Kernel consumes all 4 entries.
	atomicStoreConsumerForTest(r, 4)

	_, reserved = r.Reserve(1)
	if reserved != 1 {
		t.Fatalf("Reserve(1) after consumer advanced = %d, want 1", reserved)
	}
	_ = start
}

func TestProdRingCancelReturnsUnfilledSlots(t *testing.T) {
	r, _ := newTestProdRing(8, AddrSize)

	start, reserved := r.Reserve(5)
	if reserved != 5 {
		t.Fatalf("Reserve(5) = %d, want 5", reserved)
	}
	// Only 2 chunks were available to fill with; cancel the rest and
	// submit what was written.
	*r.AddrAt(start) = 100
	*r.AddrAt(start + 1) = 200
	r.Cancel(3)
	r.Submit(2)

	if got := *r.producer; got != 2 {
		t.Fatalf("producer index = %d, want 2", got)
	}
	if r.cachedProd != 2 {
		t.Fatalf("cachedProd = %d, want 2", r.cachedProd)
	}
	// The canceled slots are free again without waiting on the
	// consumer: 6 of 8 remain.
	if _, reserved := r.Reserve(6); reserved != 6 {
		t.Fatalf("Reserve(6) after Cancel = %d, want 6", reserved)
	}
}

func TestProdRingNeedsWakeup(t *testing.T) {
	r, mem := newTestProdRing(8, AddrSize)
	if r.NeedsWakeup() {
		t.Fatal("NeedsWakeup() = true before flag set")
	}
	mem[16] = 1
	if !r.NeedsWakeup() {
		t.Fatal("NeedsWakeup() = false after flag set")
	}
}

func TestConsRingPeekIsPartial(t *testing.T) {
	r, _ := newTestConsRing(8, DescSize)
	atomicStoreProducerForTest(r, 3)

	start, count := r.Peek(8)
	if count != 3 {
		t.Fatalf("Peek(8) with 3 available = %d, want 3", count)
	}
	if start != 0 {
		t.Fatalf("Peek start = %d, want 0", start)
	}
	r.Release(count)
	if got := *r.consumer; got != 3 {
		t.Fatalf("consumer index = %d, want 3", got)
	}
}

func TestConsRingPeekRefreshesProducer(t *testing.T) {
	r, _ := newTestConsRing(8, DescSize)

	if _, count := r.Peek(4); count != 0 {
		t.Fatalf("Peek(4) with nothing produced = %d, want 0", count)
	}

	atomicStoreProducerForTest(r, 2)
	_, count := r.Peek(4)
	if count != 2 {
		t.Fatalf("Peek(4) after producer advanced = %d, want 2", count)
	}
}

func TestPopulateFillRing(t *testing.T) {
	r, _ := newTestProdRing(8, AddrSize)
	free := []uint64{0, 4096, 8192, 12288, 16384}

	filled := PopulateFillRing(r, 3, &free)
	if filled != 3 {
		t.Fatalf("PopulateFillRing filled = %d, want 3", filled)
	}
	if len(free) != 2 {
		t.Fatalf("free list len = %d, want 2", len(free))
	}
	if got := *r.AddrAt(0); got != 0 {
		t.Fatalf("ring slot 0 = %d, want 0", got)
	}
	if got := *r.AddrAt(2); got != 8192 {
		t.Fatalf("ring slot 2 = %d, want 8192", got)
	}
}

func TestPopulateFillRingShortFreeList(t *testing.T) {
	r, _ := newTestProdRing(8, AddrSize)
	free := []uint64{0, 4096}

	filled := PopulateFillRing(r, 5, &free)
	if filled != 2 {
		t.Fatalf("PopulateFillRing filled = %d, want 2 (free list exhausted)", filled)
	}
	if len(free) != 0 {
		t.Fatalf("free list len = %d, want 0", len(free))
	}
}

func TestPopulateFillRingShortRing(t *testing.T) {
	r, _ := newTestProdRing(4, AddrSize)
	free := []uint64{0, 4096, 8192, 12288, 16384, 20480}

	filled := PopulateFillRing(r, 6, &free)
	if filled != 4 {
		t.Fatalf("PopulateFillRing filled = %d, want 4 (ring capacity)", filled)
	}
	if len(free) != 2 {
		t.Fatalf("free list len = %d, want 2", len(free))
	}
}

func TestReapCompletionRing(t *testing.T) {
	const chunkSize = 4096
	r, _ := newTestConsRing(8, AddrSize)
	*r.AddrAt(0) = 0*chunkSize + 128 // mid-chunk address, should round down
	*r.AddrAt(1) = 1 * chunkSize
	atomicStoreProducerForTest(r, 2)

	var free []uint64
	reaped := ReapCompletionRing(r, 8, chunkSize, &free)
	if reaped != 2 {
		t.Fatalf("reaped = %d, want 2", reaped)
	}
	want := []uint64{0, chunkSize}
	for i, w := range want {
		if free[i] != w {
			t.Fatalf("free[%d] = %d, want %d", i, free[i], w)
		}
	}
}

func atomicStoreConsumerForTest(r *ProdRing, v uint32) { *r.consumer = v }
func atomicStoreProducerForTest(r *ConsRing, v uint32) { *r.producer = v }
