// Package hashing packs small signed coordinate triples into single integer
// keys, the form chunk and region coordinates take in lookup tables.
package hashing

// TripleKey holds three signed 10-bit coordinates packed into one 32-bit
// word: x in bits 22-31, z in bits 11-20 and y in bits 0-9. Bits 10 and 21
// stay clear so that component-wise addition can mask away carry spill
// between fields.
type TripleKey uint32

const (
	tripleMask = 0x3FF
	// carryMask clears the guard bits that additions may carry into.
	carryMask TripleKey = 0xFFDFFBFF
)

// Key packs x, y and z into a TripleKey. Each coordinate is truncated to
// its signed 10-bit range [-512, 511].
func Key(x, y, z int32) TripleKey {
	return TripleKey(uint32(x&tripleMask)<<22 | uint32(z&tripleMask)<<11 | uint32(y&tripleMask))
}

// X returns the sign-extended x coordinate.
func (k TripleKey) X() int32 {
	return int32(k) >> 22
}

// Y returns the sign-extended y coordinate.
func (k TripleKey) Y() int32 {
	return int32(k<<22) >> 22
}

// Z returns the sign-extended z coordinate.
func (k TripleKey) Z() int32 {
	return int32(k<<11) >> 22
}

// Add offsets the packed coordinates component-wise. Each component wraps
// within its own 10-bit field; carries never leak into a neighbor.
func (k TripleKey) Add(dx, dy, dz int32) TripleKey {
	return (k + Key(dx, dy, dz)) & carryMask
}

// ShiftRight divides all three coordinates by 1<<shift. Valid only while
// every component is non-negative; sign bits would smear across fields.
func (k TripleKey) ShiftRight(shift uint) TripleKey {
	single := TripleKey(tripleMask >> shift)
	mask := single<<22 | single<<11 | single
	return mask & (k >> shift)
}
