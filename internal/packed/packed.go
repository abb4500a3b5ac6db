// Package packed implements a fixed-length array of small unsigned integers
// packed into atomic 32-bit words. All operations are lock-free: sub-word
// updates go through CAS retry loops on the containing word.
package packed

import (
	"fmt"
	"math/bits"
	"sync/atomic"
)

// Widths gives the supported entry widths in bits. Width 32 stores one entry
// per word and degenerates to a plain atomic uint32 array.
var Widths = []uint{1, 2, 4, 8, 16, 32}

// ValidWidth reports whether width is one of Widths.
func ValidWidth(width uint) bool {
	return width != 0 && width <= 32 && bits.OnesCount(width) == 1
}

// WordsFor returns the number of backing words needed to hold length entries
// of the given width. It panics if width is invalid.
func WordsFor(length int, width uint) int {
	shift := indexShift(width)
	perWord := 1 << shift
	return (length + perWord - 1) >> shift
}

// indexShift returns log2(entries per word) for a valid width.
func indexShift(width uint) uint {
	if !ValidWidth(width) {
		panic(fmt.Sprintf("packed: invalid width %d", width))
	}
	return 5 - uint(bits.TrailingZeros(width))
}

// Array is a fixed-length array of width-bit entries packed into
// atomic uint32 words. The zero value is not usable; use New or FromWords.
type Array struct {
	length     int
	width      uint
	indexShift uint   // log2(entries per word)
	indexMask  uint32 // entry position within its word
	valueMask  uint32 // low width bits
	words      []atomic.Uint32
}

// New creates an Array of length entries, width bits each, all zero.
func New(length int, width uint) (*Array, error) {
	if length <= 0 {
		return nil, fmt.Errorf("packed: non-positive length %d", length)
	}
	if !ValidWidth(width) {
		return nil, fmt.Errorf("packed: invalid width %d", width)
	}
	a := newArray(length, width)
	a.words = make([]atomic.Uint32, WordsFor(length, width))
	return a, nil
}

// FromWords creates an Array over a copy of the given raw words. The word
// count must match the geometry implied by length and width exactly.
func FromWords(length int, width uint, words []uint32) (*Array, error) {
	if length <= 0 {
		return nil, fmt.Errorf("packed: non-positive length %d", length)
	}
	if !ValidWidth(width) {
		return nil, fmt.Errorf("packed: invalid width %d", width)
	}
	if want := WordsFor(length, width); len(words) != want {
		return nil, fmt.Errorf("packed: got %d words, need %d for length %d width %d", len(words), want, length, width)
	}
	a := newArray(length, width)
	a.words = make([]atomic.Uint32, len(words))
	for i, w := range words {
		a.words[i].Store(w)
	}
	return a, nil
}

func newArray(length int, width uint) *Array {
	shift := indexShift(width)
	valueMask := ^uint32(0)
	if width < 32 {
		valueMask = 1<<width - 1
	}
	return &Array{
		length:     length,
		width:      width,
		indexShift: shift,
		indexMask:  1<<shift - 1,
		valueMask:  valueMask,
	}
}

// Len returns the number of entries.
func (a *Array) Len() int { return a.length }

// Width returns the entry width in bits.
func (a *Array) Width() uint { return a.width }

func (a *Array) check(i int) {
	if uint(i) >= uint(a.length) {
		panic(fmt.Sprintf("packed: index %d out of range [0,%d)", i, a.length))
	}
}

// Get returns the entry at index i.
func (a *Array) Get(i int) uint32 {
	a.check(i)
	word := a.words[uint(i)>>a.indexShift].Load()
	shift := (uint32(i) & a.indexMask) * uint32(a.width)
	return (word >> shift) & a.valueMask
}

// Swap stores value at index i and returns the previous entry. Values wider
// than the entry width are truncated.
func (a *Array) Swap(i int, value uint32) uint32 {
	a.check(i)
	if a.width == 32 {
		return a.words[i].Swap(value)
	}

	word := &a.words[uint(i)>>a.indexShift]
	for {
		// Recompute the slot geometry each attempt; the word contents may
		// have changed under us between load and CAS.
		shift := (uint32(i) & a.indexMask) * uint32(a.width)
		mask := a.valueMask << shift

		oldWord := word.Load()
		newWord := (oldWord &^ mask) | (value&a.valueMask)<<shift
		if word.CompareAndSwap(oldWord, newWord) {
			return (oldWord >> shift) & a.valueMask
		}
	}
}

// CompareAndSwap replaces the entry at index i with update if it currently
// equals expect, and reports whether the replacement happened. A concurrent
// change to a neighboring entry in the same word only retries; it never
// fails the comparison.
func (a *Array) CompareAndSwap(i int, expect, update uint32) bool {
	a.check(i)
	if a.width == 32 {
		return a.words[i].CompareAndSwap(expect, update)
	}

	word := &a.words[uint(i)>>a.indexShift]
	for {
		shift := (uint32(i) & a.indexMask) * uint32(a.width)
		mask := a.valueMask << shift

		oldWord := word.Load()
		if (oldWord>>shift)&a.valueMask != expect&a.valueMask {
			return false
		}
		newWord := (oldWord &^ mask) | (update&a.valueMask)<<shift
		if word.CompareAndSwap(oldWord, newWord) {
			return true
		}
	}
}

// Words returns a point-in-time copy of the raw backing words. Entries
// written concurrently with the copy may or may not be included.
func (a *Array) Words() []uint32 {
	out := make([]uint32, len(a.words))
	for i := range a.words {
		out[i] = a.words[i].Load()
	}
	return out
}
