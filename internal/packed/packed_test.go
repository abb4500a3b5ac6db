package packed

import (
	"sync"
	"testing"
)

func TestArray_GetSwap(t *testing.T) {
	for _, width := range Widths {
		a, err := New(100, width)
		if err != nil {
			t.Fatalf("New(100, %d) failed: %v", width, err)
		}
		if a.Len() != 100 {
			t.Errorf("width %d: expected len 100, got %d", width, a.Len())
		}
		if a.Width() != width {
			t.Errorf("expected width %d, got %d", width, a.Width())
		}

		max := uint32(1)<<width - 1
		if width == 32 {
			max = ^uint32(0)
		}

		for i := 0; i < 100; i++ {
			if got := a.Get(i); got != 0 {
				t.Fatalf("width %d: expected zero at %d, got %d", width, i, got)
			}
		}

		if prev := a.Swap(3, max); prev != 0 {
			t.Errorf("width %d: expected previous 0, got %d", width, prev)
		}
		if got := a.Get(3); got != max {
			t.Errorf("width %d: expected %d at 3, got %d", width, max, got)
		}

		// Neighbors must be untouched.
		if a.Get(2) != 0 || a.Get(4) != 0 {
			t.Errorf("width %d: swap disturbed neighboring entries", width)
		}

		if prev := a.Swap(3, 1); prev != max {
			t.Errorf("width %d: expected previous %d, got %d", width, max, prev)
		}
	}
}

func TestArray_Truncation(t *testing.T) {
	a, err := New(10, 4)
	if err != nil {
		t.Fatal(err)
	}
	a.Swap(0, 0x1F) // 5 bits, keeps low 4
	if got := a.Get(0); got != 0xF {
		t.Errorf("expected truncated value 0xF, got %#x", got)
	}
	if a.Get(1) != 0 {
		t.Errorf("truncation leaked into neighbor")
	}
}

func TestArray_CompareAndSwap(t *testing.T) {
	for _, width := range Widths {
		a, err := New(64, width)
		if err != nil {
			t.Fatal(err)
		}

		if a.CompareAndSwap(5, 1, 1) {
			t.Errorf("width %d: CAS with wrong expect succeeded", width)
		}
		if !a.CompareAndSwap(5, 0, 1) {
			t.Errorf("width %d: CAS with correct expect failed", width)
		}
		if got := a.Get(5); got != 1 {
			t.Errorf("width %d: expected 1 after CAS, got %d", width, got)
		}
		if a.CompareAndSwap(5, 0, 1) {
			t.Errorf("width %d: stale CAS succeeded", width)
		}
	}
}

func TestArray_WordsRoundTrip(t *testing.T) {
	a, err := New(33, 2) // 33 entries, 16 per word, 3 words with a partial tail
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 33; i++ {
		a.Swap(i, uint32(i%4))
	}

	b, err := FromWords(33, 2, a.Words())
	if err != nil {
		t.Fatalf("FromWords failed: %v", err)
	}
	for i := 0; i < 33; i++ {
		if b.Get(i) != uint32(i%4) {
			t.Fatalf("expected %d at %d, got %d", i%4, i, b.Get(i))
		}
	}
}

func TestArray_Validation(t *testing.T) {
	if _, err := New(0, 4); err == nil {
		t.Errorf("expected error for zero length")
	}
	if _, err := New(-1, 4); err == nil {
		t.Errorf("expected error for negative length")
	}
	for _, width := range []uint{0, 3, 5, 7, 31, 33, 64} {
		if _, err := New(16, width); err == nil {
			t.Errorf("expected error for width %d", width)
		}
	}
	if _, err := FromWords(16, 4, make([]uint32, 3)); err == nil {
		t.Errorf("expected error for word count mismatch")
	}
}

func TestWordsFor(t *testing.T) {
	tests := []struct {
		length int
		width  uint
		words  int
	}{
		{1, 1, 1},
		{32, 1, 1},
		{33, 1, 2},
		{16, 2, 1},
		{17, 2, 2},
		{8, 4, 1},
		{4096, 4, 512},
		{4, 8, 1},
		{2, 16, 1},
		{3, 16, 2},
		{1, 32, 1},
		{7, 32, 7},
	}
	for _, tt := range tests {
		if got := WordsFor(tt.length, tt.width); got != tt.words {
			t.Errorf("WordsFor(%d, %d) = %d, expected %d", tt.length, tt.width, got, tt.words)
		}
	}
}

// Entries sharing a word must not corrupt each other under concurrent CAS
// increments.
func TestArray_ConcurrentSharedWord(t *testing.T) {
	const (
		width   = 4
		entries = 8 // all in one 32-bit word
		incs    = 500
	)
	a, err := New(entries, width)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < entries; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for n := 0; n < incs; n++ {
				for {
					old := a.Get(idx)
					if a.CompareAndSwap(idx, old, old+1) {
						break
					}
				}
			}
		}(i)
	}
	wg.Wait()

	want := uint32(incs % 16) // width 4 wraps at 16
	for i := 0; i < entries; i++ {
		if got := a.Get(i); got != want {
			t.Errorf("entry %d: expected %d, got %d", i, want, got)
		}
	}
}

func TestArray_ConcurrentSwap(t *testing.T) {
	const writers = 8
	a, err := New(writers, 16)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for n := 0; n < 1000; n++ {
				a.Swap(idx, uint32(n))
			}
		}(w)
	}
	wg.Wait()

	for i := 0; i < writers; i++ {
		if got := a.Get(i); got != 999 {
			t.Errorf("entry %d: expected 999, got %d", i, got)
		}
	}
}
