package block

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// BackingArray is a fixed-length array of 32-bit values with lock-free
// access. Implementations differ in how cells are represented; the owner
// migrates between them as the number of distinct values changes.
type BackingArray interface {
	// Length returns the number of cells. It never changes.
	Length() int

	// Width returns the bits per cell: 0 for uniform, 1-16 for packed
	// palette ids, 32 for direct storage.
	Width() uint

	// PaletteSize returns the id capacity of this representation.
	PaletteSize() int

	// PaletteUsage returns the number of distinct values bound to ids.
	PaletteUsage() int

	// IsPaletteMaxSize reports whether the palette is as large as this
	// length permits; expanding the width further gains nothing.
	IsPaletteMaxSize() bool

	// Get returns the value at cell i.
	Get(i int) uint32

	// Set stores value at cell i and returns the previous value. It fails
	// with ErrPaletteFull when the value needs an id and none is left; the
	// cell is unchanged.
	Set(i int, value uint32) (uint32, error)

	// CompareAndSet stores update at cell i if the cell holds expect.
	// A false return with nil error means the comparison failed. It fails
	// with ErrPaletteFull when update needs an id and none is left.
	CompareAndSet(i int, expect, update uint32) (bool, error)

	// Unique counts the distinct values currently present.
	Unique() int

	// Palette returns a copy of the id-to-value table. Ids claimed by lost
	// allocation races appear as zero-valued holes so that every id held by
	// a cell indexes into the returned slice.
	Palette() []uint32

	// PackedWords returns a copy of the raw cell storage, nil for the
	// uniform representation.
	PackedWords() []uint32
}

// Compile-time checks to ensure all representations satisfy BackingArray.
var _ BackingArray = (*UniformArray)(nil)
var _ BackingArray = (*PaletteArray)(nil)
var _ BackingArray = (*DirectArray)(nil)

// countUnique walks all cells and counts distinct values.
func countUnique(a BackingArray) int {
	bm := roaring.New()
	for i := 0; i < a.Length(); i++ {
		bm.Add(a.Get(i))
	}
	return int(bm.GetCardinality())
}
