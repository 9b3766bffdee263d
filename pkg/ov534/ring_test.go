package ov534

import "testing"

func TestRingCommitBoundsAvailable(t *testing.T) {
	r := newFrameRing(4)

	slot := r.HeadStart()
	for i := 0; i < 10; i++ {
		slot[0] = byte(i)
		slot = r.Commit()

		r.mu.Lock()
		available := r.available
		r.mu.Unlock()

		if available < 0 || available > BufFrameCount {
			t.Fatalf("available out of bounds: %d", available)
		}
		if available > BufFrameCount-1 {
			t.Fatalf("available exceeded K-1 overwrite threshold: %d", available)
		}
	}
}

func TestRingCommitOverwritesHeadInPlaceWhenFull(t *testing.T) {
	r := newFrameRing(4)

	slot := r.HeadStart()
	for i := 0; i < BufFrameCount-1; i++ {
		slot = r.Commit()
	}

	r.mu.Lock()
	headBefore, availBefore := r.head, r.available
	r.mu.Unlock()
	if availBefore != BufFrameCount-1 {
		t.Fatalf("available = %d, want %d once the ring is full", availBefore, BufFrameCount-1)
	}

	// The ring is now full. Further commits must return the same head slot
	// and leave head/available untouched — overwrite in place, not
	// drop-oldest — since only Dequeue may advance tail.
	for i := 0; i < 5; i++ {
		next := r.Commit()
		if &next[0] != &slot[0] {
			t.Fatalf("Commit() returned a different slot while full, want the same head slot repeated")
		}

		r.mu.Lock()
		head, available := r.head, r.available
		r.mu.Unlock()
		if head != headBefore {
			t.Fatalf("head advanced while full: got %d, want %d", head, headBefore)
		}
		if available != availBefore {
			t.Fatalf("available changed while full: got %d, want %d", available, availBefore)
		}
	}
}

func TestRingHeadTailWithinRange(t *testing.T) {
	r := newFrameRing(4)
	slot := r.HeadStart()
	for i := 0; i < 20; i++ {
		slot = r.Commit()
		_ = slot

		r.mu.Lock()
		head, tail := r.head, r.tail
		r.mu.Unlock()

		if head < 0 || head >= BufFrameCount || tail < 0 || tail >= BufFrameCount {
			t.Fatalf("head/tail out of range: head=%d tail=%d", head, tail)
		}
	}
}

func TestRingDequeueBayerCopiesSlot(t *testing.T) {
	width, height := 4, 4
	frameSize := width * height
	r := newFrameRing(frameSize)

	slot := r.HeadStart()
	for i := range slot {
		slot[i] = byte(0x42)
	}
	r.Commit()

	dest := make([]byte, frameSize)
	if !r.Dequeue(dest, width, height, FormatBayer) {
		t.Fatal("expected a committed frame to be available")
	}
	for i, b := range dest {
		if b != 0x42 {
			t.Fatalf("dest[%d] = %#x, want 0x42", i, b)
		}
	}
}

func TestRingDequeueTimesOutWhenEmpty(t *testing.T) {
	r := newFrameRing(16)
	dest := make([]byte, 16)
	if r.Dequeue(dest, 4, 4, FormatBayer) {
		t.Fatal("expected Dequeue to time out on an empty ring")
	}
}
