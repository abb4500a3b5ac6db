package block

import "fmt"

// UniformArray is a backing array whose cells all hold the same value. It
// stores nothing per cell and is immutable: the first write of any other
// value fails with ErrPaletteFull, prompting the owner to expand.
type UniformArray struct {
	length int
	value  uint32
}

// NewUniformArray creates a UniformArray of the given length where every
// cell holds value.
func NewUniformArray(length int, value uint32) (*UniformArray, error) {
	if length <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}
	return &UniformArray{length: length, value: value}, nil
}

// Length returns the number of cells.
func (a *UniformArray) Length() int { return a.length }

// Width returns 0: cells occupy no storage.
func (a *UniformArray) Width() uint { return UniformWidth }

// PaletteSize returns 1.
func (a *UniformArray) PaletteSize() int { return 1 }

// PaletteUsage returns 1.
func (a *UniformArray) PaletteUsage() int { return 1 }

// IsPaletteMaxSize returns false: the packed forms are always wider.
func (a *UniformArray) IsPaletteMaxSize() bool { return false }

// Get returns the uniform value for any cell.
func (a *UniformArray) Get(i int) uint32 {
	if uint(i) >= uint(a.length) {
		panic(fmt.Sprintf("block: index %d out of range [0,%d)", i, a.length))
	}
	return a.value
}

// Set succeeds only when value is the uniform value; any other value needs
// a second palette entry this representation cannot hold.
func (a *UniformArray) Set(i int, value uint32) (uint32, error) {
	if uint(i) >= uint(a.length) {
		panic(fmt.Sprintf("block: index %d out of range [0,%d)", i, a.length))
	}
	if value != a.value {
		return 0, ErrPaletteFull
	}
	return a.value, nil
}

// CompareAndSet fails the comparison for any expect other than the uniform
// value, and fails with ErrPaletteFull for any update other than it.
func (a *UniformArray) CompareAndSet(i int, expect, update uint32) (bool, error) {
	if uint(i) >= uint(a.length) {
		panic(fmt.Sprintf("block: index %d out of range [0,%d)", i, a.length))
	}
	if expect != a.value {
		return false, nil
	}
	if update != a.value {
		return false, ErrPaletteFull
	}
	return true, nil
}

// Unique returns 1.
func (a *UniformArray) Unique() int { return 1 }

// Palette returns the single-entry palette.
func (a *UniformArray) Palette() []uint32 { return []uint32{a.value} }

// PackedWords returns nil: there is no cell storage.
func (a *UniformArray) PackedWords() []uint32 { return nil }

// Value returns the uniform value.
func (a *UniformArray) Value() uint32 { return a.value }
