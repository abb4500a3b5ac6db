package block

import (
	"fmt"
	"sync/atomic"

	"github.com/flow/commons/internal/idmap"
	"github.com/flow/commons/internal/packed"
)

// PaletteArray is the compressed backing array: cells hold packed ids into a
// palette of distinct values. Ids are allocated on first write of a value
// and never recycled; when allocation fails the owner replaces the array via
// ExpandPaletteArray or NewDirectArrayFrom.
type PaletteArray struct {
	length      int
	width       uint
	paletteSize int
	maxPalette  bool
	counter     atomic.Int32    // ids claimed, including discarded racer claims
	store       *packed.Array   // cell -> id
	palette     []atomic.Uint32 // id -> value
	lookup      *idmap.Map      // value -> id, write-once
}

func newPaletteArray(length int, width uint) (*PaletteArray, error) {
	if length < minPaletteLength {
		return nil, fmt.Errorf("%w: %d (palette arrays need at least %d cells)", ErrInvalidLength, length, minPaletteLength)
	}
	if width == 0 || width > MaxPaletteWidth || !packed.ValidWidth(width) {
		return nil, fmt.Errorf("block: invalid palette width %d", width)
	}

	store, err := packed.New(length, width)
	if err != nil {
		return nil, err
	}
	size, max := paletteSizeFor(length, width)
	return &PaletteArray{
		length:      length,
		width:       width,
		paletteSize: size,
		maxPalette:  max,
		store:       store,
		palette:     make([]atomic.Uint32, size),
		lookup:      idmap.New(size + size/4),
	}, nil
}

// NewPaletteArray creates a zero-filled PaletteArray at the narrowest width.
// Id 0 is pre-bound to value 0 so unwritten cells read as zero.
func NewPaletteArray(length int) (*PaletteArray, error) {
	a, err := newPaletteArray(length, 1)
	if err != nil {
		return nil, err
	}
	a.counter.Store(1)
	a.lookup.PutIfAbsent(0, 0)
	return a, nil
}

// ExpandPaletteArray creates a PaletteArray one width step above prev and
// copies prev's cells into it. The owner calls it after ErrPaletteFull;
// writes to prev that land during the copy may be lost, which the caller
// handles by retrying them against the new array.
func ExpandPaletteArray(prev BackingArray) (*PaletteArray, error) {
	if prev.Width() == DirectWidth {
		return nil, fmt.Errorf("block: cannot expand a direct array")
	}
	a, err := newPaletteArray(prev.Length(), nextWidth(prev.Width()))
	if err != nil {
		return nil, err
	}
	if err := a.copyFrom(prev, prev.PaletteUsage()); err != nil {
		return nil, err
	}
	return a, nil
}

// CompressPaletteArray creates a PaletteArray just wide enough for the given
// number of distinct values and copies prev's cells into it. With reserve
// set, the width leaves room for one additional distinct value. A
// non-positive unique recounts the distinct values in prev.
//
// If unique understates the distinct values actually present, the copy fails
// with ErrCopyOverflow.
func CompressPaletteArray(prev BackingArray, unique int, reserve bool) (*PaletteArray, error) {
	if unique <= 0 {
		unique = prev.Unique()
	}
	maxID := unique - 1
	if reserve {
		maxID = unique
	}
	a, err := newPaletteArray(prev.Length(), RoundUpWidth(uint32(maxID)))
	if err != nil {
		return nil, err
	}
	if err := a.copyFrom(prev, unique); err != nil {
		return nil, err
	}
	return a, nil
}

// NewPaletteArrayFromValues creates a PaletteArray holding the given values,
// sized for the declared number of distinct values. If unique understates
// the distinct values in the slice, construction fails with ErrCopyOverflow.
func NewPaletteArrayFromValues(length, unique int, values []uint32) (*PaletteArray, error) {
	if len(values) != length {
		return nil, fmt.Errorf("%w: %d values for length %d", ErrValueCount, len(values), length)
	}
	if unique < 1 {
		return nil, fmt.Errorf("block: unique count %d must be positive", unique)
	}
	a, err := newPaletteArray(length, RoundUpWidth(uint32(unique-1)))
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		if _, err := a.Set(i, v); err != nil {
			return nil, &ErrCopyOverflow{Length: length, PaletteSize: a.paletteSize, Unique: unique}
		}
	}
	return a, nil
}

// NewPaletteArrayFromSnapshot reassembles a PaletteArray from its serialized
// parts: the palette table and the raw packed cell words. Every palette
// entry is re-registered at its positional id; duplicate entries keep the
// first binding, so zero-filled holes from discarded allocations are
// harmless. The restored array has no free ids until the owner expands it.
func NewPaletteArrayFromSnapshot(length int, palette []uint32, width uint, words []uint32) (*PaletteArray, error) {
	if length < minPaletteLength {
		return nil, fmt.Errorf("%w: %d (palette arrays need at least %d cells)", ErrInvalidLength, length, minPaletteLength)
	}
	if width == 0 || width > MaxPaletteWidth || !packed.ValidWidth(width) {
		return nil, fmt.Errorf("block: invalid palette width %d", width)
	}
	if len(palette) < 1 || len(palette) > 1<<width {
		return nil, fmt.Errorf("block: palette size %d out of range for width %d", len(palette), width)
	}

	store, err := packed.FromWords(length, width, words)
	if err != nil {
		return nil, err
	}
	a := &PaletteArray{
		length:      length,
		width:       width,
		paletteSize: len(palette),
		maxPalette:  len(palette) >= allowedPalette(length),
		store:       store,
		palette:     make([]atomic.Uint32, len(palette)),
		lookup:      idmap.New(len(palette) + len(palette)/4),
	}
	a.counter.Store(int32(len(palette)))
	for id, value := range palette {
		a.palette[id].Store(value)
		a.lookup.PutIfAbsent(value, uint32(id))
	}
	return a, nil
}

// copyFrom replays prev's cells into a. Construction is single-threaded, so
// the replay binds ids deterministically in cell order.
func (a *PaletteArray) copyFrom(prev BackingArray, unique int) error {
	for i := 0; i < prev.Length(); i++ {
		if _, err := a.Set(i, prev.Get(i)); err != nil {
			return &ErrCopyOverflow{Length: a.length, PaletteSize: a.paletteSize, Unique: unique}
		}
	}
	return nil
}

// Length returns the number of cells.
func (a *PaletteArray) Length() int { return a.length }

// Width returns the bits per cell.
func (a *PaletteArray) Width() uint { return a.width }

// PaletteSize returns the id capacity.
func (a *PaletteArray) PaletteSize() int { return a.paletteSize }

// PaletteUsage returns the number of distinct values bound to ids. The
// claim counter can run ahead of it when allocation races discard ids.
func (a *PaletteArray) PaletteUsage() int { return a.lookup.Len() }

// IsPaletteMaxSize reports whether the palette has reached the per-length
// cap, in which case expanding the width gains no capacity and the owner
// should switch to a DirectArray.
func (a *PaletteArray) IsPaletteMaxSize() bool { return a.maxPalette }

// Get returns the value at cell i.
func (a *PaletteArray) Get(i int) uint32 {
	return a.palette[a.store.Get(i)].Load()
}

// Set stores value at cell i and returns the previous value. It fails with
// ErrPaletteFull when value is unbound and no id is left; the cell is
// unchanged and the owner expands the array.
func (a *PaletteArray) Set(i int, value uint32) (uint32, error) {
	id, err := a.getID(value)
	if err != nil {
		return 0, err
	}
	oldID := a.store.Swap(i, id)
	return a.palette[oldID].Load(), nil
}

// CompareAndSet stores update at cell i if the cell holds expect. An expect
// value bound to no id cannot be held by any cell, so the comparison fails
// without allocating anything.
func (a *PaletteArray) CompareAndSet(i int, expect, update uint32) (bool, error) {
	expectID := a.lookup.Get(expect)
	if idmap.IsEmpty(expectID) {
		return false, nil
	}
	updateID, err := a.getID(update)
	if err != nil {
		return false, err
	}
	return a.store.CompareAndSwap(i, expectID, updateID), nil
}

// getID returns the id bound to value, allocating one if needed.
//
// Allocation claims the next id from the counter before publishing the
// binding. When two callers race on the same value, both claim; the
// putIfAbsent loser discards its claimed id and uses the winner's. The
// discarded id is never reused, trading a sliver of palette capacity for a
// blocking-free protocol.
func (a *PaletteArray) getID(value uint32) (uint32, error) {
	if id := a.lookup.Get(value); !idmap.IsEmpty(id) {
		return id, nil
	}

	claimed := uint32(a.counter.Add(1) - 1)
	if claimed >= uint32(a.paletteSize) {
		return 0, ErrPaletteFull
	}

	id := claimed
	if prev := a.lookup.PutIfAbsent(value, claimed); !idmap.IsEmpty(prev) {
		id = prev
	}
	// Both winner and loser publish the same value; the duplicate store is
	// idempotent and guarantees palette[id] is set before either returns.
	a.palette[id].Store(value)
	return id, nil
}

// Unique counts the distinct values currently present in cells. Bound
// values that have since been overwritten everywhere do not count.
func (a *PaletteArray) Unique() int { return countUnique(a) }

// Palette returns a copy of the claimed id-to-value prefix. Ids discarded
// by allocation races appear as zero-valued holes.
func (a *PaletteArray) Palette() []uint32 {
	n := int(a.counter.Load())
	if n > a.paletteSize {
		n = a.paletteSize
	}
	out := make([]uint32, n)
	for id := range out {
		out[id] = a.palette[id].Load()
	}
	return out
}

// PackedWords returns a copy of the raw cell words.
func (a *PaletteArray) PackedWords() []uint32 { return a.store.Words() }
