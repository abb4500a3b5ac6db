// Package idmap implements a fixed-capacity, write-once concurrent map from
// 32-bit values to small ids. Mappings can be added but never changed or
// removed; both lookup and insert are lock-free.
//
// Each slot is a single atomic 64-bit word holding an occupied bit, the
// 32-bit value and the 16-bit id, so a mapping becomes visible with one CAS
// and readers can never observe a half-written entry.
package idmap

import (
	"fmt"
	"math/bits"
	"sync/atomic"
)

// EmptyID is returned by lookups for unmapped values. Valid ids are below
// 1<<16, so the all-ones pattern can never collide with one.
const EmptyID = ^uint32(0)

const (
	maxID       = 1<<16 - 1
	occupiedBit = uint64(1) << 63
)

// IsEmpty reports whether id is the not-found sentinel.
func IsEmpty(id uint32) bool { return id == EmptyID }

// Map is a write-once value-to-id hash map with open addressing. The zero
// value is not usable; use New.
type Map struct {
	slots []atomic.Uint64
	mask  uint32
	count atomic.Int32
}

// New creates a Map able to hold at least capacity mappings. The slot table
// is rounded up to a power of two; capacity values below one are treated
// as one.
func New(capacity int) *Map {
	if capacity < 1 {
		capacity = 1
	}
	size := 1 << bits.Len(uint(capacity-1))
	return &Map{
		slots: make([]atomic.Uint64, size),
		mask:  uint32(size - 1),
	}
}

// pack encodes an occupied slot. Bits 0-15 hold the id, bits 16-47 the
// value, bit 63 the occupied flag. An empty slot is all zero.
func pack(value, id uint32) uint64 {
	return occupiedBit | uint64(value)<<16 | uint64(id)
}

func unpack(s uint64) (value, id uint32) {
	return uint32(s >> 16), uint32(s & maxID)
}

// mix is the 32-bit murmur3 finalizer. Palette values are often small and
// sequential; without scrambling they would pile into neighboring slots.
func mix(v uint32) uint32 {
	v ^= v >> 16
	v *= 0x85ebca6b
	v ^= v >> 13
	v *= 0xc2b2ae35
	v ^= v >> 16
	return v
}

// Get returns the id mapped to value, or EmptyID if value is unmapped.
func (m *Map) Get(value uint32) uint32 {
	h := mix(value)
	for n := uint32(0); n < uint32(len(m.slots)); n++ {
		s := m.slots[(h+n)&m.mask].Load()
		if s == 0 {
			return EmptyID
		}
		if v, id := unpack(s); v == value {
			return id
		}
	}
	return EmptyID
}

// PutIfAbsent maps value to id unless value is already mapped. It returns
// EmptyID if this call published the mapping, or the previously mapped id if
// another caller got there first. The caller that receives an existing id
// must discard its own.
//
// It panics if the table is full; callers size the map so that the number of
// distinct values can never exceed its capacity.
func (m *Map) PutIfAbsent(value, id uint32) uint32 {
	if id > maxID {
		panic(fmt.Sprintf("idmap: id %d exceeds %d", id, maxID))
	}

	h := mix(value)
	for n := uint32(0); n < uint32(len(m.slots)); n++ {
		slot := &m.slots[(h+n)&m.mask]
		s := slot.Load()
		if s == 0 {
			if slot.CompareAndSwap(0, pack(value, id)) {
				m.count.Add(1)
				return EmptyID
			}
			// Lost the slot to a concurrent publish; it is occupied now.
			s = slot.Load()
		}
		if v, existing := unpack(s); v == value {
			return existing
		}
	}
	panic(fmt.Sprintf("idmap: table full (%d slots)", len(m.slots)))
}

// Len returns the number of published mappings.
func (m *Map) Len() int {
	return int(m.count.Load())
}

// Cap returns the slot table size.
func (m *Map) Cap() int {
	return len(m.slots)
}
