package block

import (
	"fmt"

	"github.com/flow/commons/internal/packed"
)

// DirectArray is an uncompressed backing array: one full word per cell and
// no palette indirection. It is the terminal representation; writes never
// fail.
type DirectArray struct {
	store *packed.Array
}

// NewDirectArray creates a zero-filled DirectArray.
func NewDirectArray(length int) (*DirectArray, error) {
	if length <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}
	store, err := packed.New(length, DirectWidth)
	if err != nil {
		return nil, err
	}
	return &DirectArray{store: store}, nil
}

// NewDirectArrayFrom creates a DirectArray holding a copy of prev's cells.
// The copy is taken cell by cell; values written to prev concurrently may or
// may not be carried over.
func NewDirectArrayFrom(prev BackingArray) (*DirectArray, error) {
	a, err := NewDirectArray(prev.Length())
	if err != nil {
		return nil, err
	}
	for i := 0; i < prev.Length(); i++ {
		a.store.Swap(i, prev.Get(i))
	}
	return a, nil
}

// NewDirectArrayFromWords creates a DirectArray over a copy of raw cell
// words, one word per cell.
func NewDirectArrayFromWords(length int, words []uint32) (*DirectArray, error) {
	if length <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}
	store, err := packed.FromWords(length, DirectWidth, words)
	if err != nil {
		return nil, err
	}
	return &DirectArray{store: store}, nil
}

// Length returns the number of cells.
func (a *DirectArray) Length() int { return a.store.Len() }

// Width returns 32.
func (a *DirectArray) Width() uint { return DirectWidth }

// PaletteSize returns the cell count: every cell can hold a distinct value.
func (a *DirectArray) PaletteSize() int { return a.store.Len() }

// PaletteUsage returns the cell count.
func (a *DirectArray) PaletteUsage() int { return a.store.Len() }

// IsPaletteMaxSize returns true: no wider representation exists.
func (a *DirectArray) IsPaletteMaxSize() bool { return true }

// Get returns the value at cell i.
func (a *DirectArray) Get(i int) uint32 { return a.store.Get(i) }

// Set stores value at cell i and returns the previous value. It never
// fails.
func (a *DirectArray) Set(i int, value uint32) (uint32, error) {
	return a.store.Swap(i, value), nil
}

// CompareAndSet stores update at cell i if it holds expect.
func (a *DirectArray) CompareAndSet(i int, expect, update uint32) (bool, error) {
	return a.store.CompareAndSwap(i, expect, update), nil
}

// Unique counts the distinct values currently present.
func (a *DirectArray) Unique() int { return countUnique(a) }

// Palette returns a copy of the cells: the direct form is its own palette.
func (a *DirectArray) Palette() []uint32 { return a.store.Words() }

// PackedWords returns a copy of the raw cell words.
func (a *DirectArray) PackedWords() []uint32 { return a.store.Words() }
