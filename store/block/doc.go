// Package block implements palette-compressed backing arrays for fixed-length
// volumes of 32-bit values, such as the block ids of a world chunk.
//
// A backing array stores each cell as a small id into a palette of distinct
// values instead of storing the value itself. Dense volumes usually contain
// few distinct values, so cells pack into 1-16 bits each while reads and
// writes stay O(1) and lock-free.
//
// # Architecture
//
//   - BackingArray: the common interface over all representations.
//   - UniformArray: every cell holds the same value; no storage per cell.
//   - PaletteArray: cells hold packed ids, a palette maps id to value, and a
//     write-once lookup maps value to id.
//   - DirectArray: one full word per cell, no palette indirection.
//
// # Growth
//
// A PaletteArray never resizes in place. When id allocation fails, Set and
// CompareAndSet return ErrPaletteFull and the owner builds a replacement with
// the next wider representation:
//
//	a, _ := block.NewPaletteArray(4096)
//	for {
//		if _, err := a.Set(i, v); err == nil {
//			break
//		}
//		if a.IsPaletteMaxSize() {
//			// No wider palette exists for this length; go direct.
//			d, _ := block.NewDirectArrayFrom(a)
//			...
//		}
//		a, _ = block.ExpandPaletteArray(a)
//	}
//
// Writers that raced the replacement simply retry against the new array.
//
// # Concurrency
//
// All operations on a single array are safe for concurrent use and none of
// them blocks: cell updates are CAS retries on the packed word, id
// allocation is a monotonic counter claim, and value-to-id bindings are
// published with a single atomic transition. An allocation race can claim an
// id that is then discarded; the palette slot stays unused for the array's
// lifetime. Capacity is sized so the waste is harmless, and arrays are
// replaced on growth anyway.
package block
