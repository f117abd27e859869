package arena

import "testing"

func TestAppFrameResizeAndAppend(t *testing.T) {
	a := newTestArena(t, 2, 4096, 8)
	d := NewDedicatedAccessor(a)

	frames, err := d.Allocate(1)
	if err != nil {
		t.Fatalf("Allocate(1): %v", err)
	}
	f := frames[0]

	buf, err := f.Resize(64)
	if err != nil {
		t.Fatalf("Resize(64): %v", err)
	}
	if len(buf) != 64 {
		t.Fatalf("len(buf) = %d, want 64", len(buf))
	}
	buf[0] = 0xAB

	more, err := f.Append(32)
	if err != nil {
		t.Fatalf("Append(32): %v", err)
	}
	if len(more) != 32 {
		t.Fatalf("len(more) = %d, want 32", len(more))
	}
	if len(f.RawBuffer()) != 96 {
		t.Fatalf("RawBuffer len = %d, want 96", len(f.RawBuffer()))
	}
	if f.RawBuffer()[0] != 0xAB {
		t.Fatal("earlier write not visible through RawBuffer after Append")
	}
}

func TestAppFrameResizeRejectsOversize(t *testing.T) {
	a := newTestArena(t, 1, 256, 8)
	d := NewDedicatedAccessor(a)
	frames, _ := d.Allocate(1)

	if _, err := frames[0].Resize(512); err == nil {
		t.Fatal("Resize beyond chunk size should fail")
	} else if _, ok := err.(*InvalidArgumentError); !ok {
		t.Fatalf("error type = %T, want *InvalidArgumentError", err)
	}
}

func TestAppFrameAppendRejectsOverflow(t *testing.T) {
	a := newTestArena(t, 1, 256, 8)
	d := NewDedicatedAccessor(a)
	frames, _ := d.Allocate(1)

	if _, err := frames[0].Resize(200); err != nil {
		t.Fatalf("Resize(200): %v", err)
	}
	if _, err := frames[0].Append(100); err == nil {
		t.Fatal("Append beyond chunk size should fail")
	}
}

func TestRxFrameValidatesRange(t *testing.T) {
	a := newTestArena(t, 2, 4096, 8)
	d := NewDedicatedAccessor(a)
	chunks, _ := a.Allocate(1)

	rx := NewRxFrame(chunks[0], d, chunks[0].XDPAddress()+10, 40)
	if len(rx.RawBuffer()) != 40 {
		t.Fatalf("RawBuffer len = %d, want 40", len(rx.RawBuffer()))
	}
}

func TestRxFramePanicsOnOutOfRangeDescriptor(t *testing.T) {
	a := newTestArena(t, 2, 4096, 8)
	d := NewDedicatedAccessor(a)
	chunks, _ := a.Allocate(1)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on out-of-range rx descriptor")
		}
	}()
	NewRxFrame(chunks[0], d, chunks[0].XDPAddress(), 8192)
}

func TestFrameStateTransitionsDoNotDoubleFree(t *testing.T) {
	a := newTestArena(t, 2, 4096, 8)
	d := NewDedicatedAccessor(a)
	chunks, _ := a.Allocate(1)

	rx := NewRxFrame(chunks[0], d, chunks[0].XDPAddress(), 64)
	tx := rx.IntoTx()
	if tx.XDPAddress() != chunks[0].XDPAddress() {
		t.Fatalf("XDPAddress after IntoTx = %d, want %d", tx.XDPAddress(), chunks[0].XDPAddress())
	}

	taken := tx.Take()
	if taken.XDPAddress() != chunks[0].XDPAddress() {
		t.Fatalf("Take() address = %d, want %d", taken.XDPAddress(), chunks[0].XDPAddress())
	}

	// Take already marked the frame released; Close must be a no-op,
	// not a second free of the same chunk.
	tx.Close()
	if len(a.freeList) != 1 {
		t.Fatalf("free list len = %d, want 1 (chunk must not be freed twice)", len(a.freeList))
	}

	d.Free(taken)
	if len(a.freeList) != 2 {
		t.Fatalf("free list len after explicit Free(taken) = %d, want 2", len(a.freeList))
	}
}

func TestAppFrameIntoTxSharesUnderlyingFrame(t *testing.T) {
	a := newTestArena(t, 1, 4096, 8)
	d := NewDedicatedAccessor(a)
	frames, _ := d.Allocate(1)

	if _, err := frames[0].Resize(10); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	tx := frames[0].IntoTx()
	if tx.Len() != 10 {
		t.Fatalf("tx.Len() = %d, want 10", tx.Len())
	}
}
