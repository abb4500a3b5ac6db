// Package intmap provides a sharded map from int32 keys to values of a
// comparable type.
//
// The map is split into a power-of-two number of shards, each guarded by its
// own read-write lock, so operations on distinct shards proceed without
// contention. It is intended for high-churn registries keyed by packed
// coordinates or other dense integer handles.
//
// There is deliberately no iterator: Keys and Values take a consistent
// snapshot under all shard locks, and everything else operates on a single
// key. Callers that need to walk the map range over a snapshot instead.
package intmap

import (
	"math/bits"
	"sync"
	"sync/atomic"
)

const (
	// DefaultShards is the shard count used by New.
	DefaultShards = 16

	maxShards = 1 << 20
)

// Sharded is a concurrency-safe map from int32 keys to values of type V.
// The zero value is not usable; construct with New or NewWithShards.
type Sharded[V comparable] struct {
	shards []shard[V]
	mask   uint32
	total  atomic.Int32
}

type shard[V comparable] struct {
	mu sync.RWMutex
	m  map[int32]V
}

// New returns an empty map with DefaultShards shards.
func New[V comparable]() *Sharded[V] {
	return NewWithShards[V](DefaultShards)
}

// NewWithShards returns an empty map with the given shard count rounded up
// to the next power of two. Counts outside [1, 1<<20] are clamped.
func NewWithShards[V comparable](shards int) *Sharded[V] {
	if shards < 1 {
		shards = 1
	}
	if shards > maxShards {
		shards = maxShards
	}
	shards = 1 << bits.Len(uint(shards-1))

	m := &Sharded[V]{
		shards: make([]shard[V], shards),
		mask:   uint32(shards - 1),
	}
	for i := range m.shards {
		m.shards[i].m = make(map[int32]V)
	}
	return m
}

// Shards returns the shard count.
func (m *Sharded[V]) Shards() int {
	return len(m.shards)
}

// Get returns the value bound to key.
func (m *Sharded[V]) Get(key int32) (V, bool) {
	sh := m.shardFor(key)
	sh.mu.RLock()
	v, ok := sh.m[key]
	sh.mu.RUnlock()
	return v, ok
}

// ContainsKey reports whether key has a binding.
func (m *Sharded[V]) ContainsKey(key int32) bool {
	_, ok := m.Get(key)
	return ok
}

// ContainsValue reports whether any key is bound to value. Shards are
// inspected one at a time, so under concurrent writes the result reflects
// no single instant.
func (m *Sharded[V]) ContainsValue(value V) bool {
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.RLock()
		for _, v := range sh.m {
			if v == value {
				sh.mu.RUnlock()
				return true
			}
		}
		sh.mu.RUnlock()
	}
	return false
}

// Put binds key to value and returns the previous value, if any.
func (m *Sharded[V]) Put(key int32, value V) (prev V, replaced bool) {
	sh := m.shardFor(key)
	sh.mu.Lock()
	prev, replaced = sh.m[key]
	sh.m[key] = value
	if !replaced {
		m.total.Add(1)
	}
	sh.mu.Unlock()
	return prev, replaced
}

// PutIfAbsent binds key to value unless a binding already exists. It
// returns the value bound after the call and whether that binding predates
// the call, following the sync.Map LoadOrStore contract.
func (m *Sharded[V]) PutIfAbsent(key int32, value V) (actual V, loaded bool) {
	sh := m.shardFor(key)
	sh.mu.Lock()
	if existing, ok := sh.m[key]; ok {
		sh.mu.Unlock()
		return existing, true
	}
	sh.m[key] = value
	m.total.Add(1)
	sh.mu.Unlock()
	return value, false
}

// Remove deletes the binding for key and returns the removed value, if any.
func (m *Sharded[V]) Remove(key int32) (V, bool) {
	sh := m.shardFor(key)
	sh.mu.Lock()
	prev, ok := sh.m[key]
	if ok {
		delete(sh.m, key)
		m.total.Add(-1)
	}
	sh.mu.Unlock()
	return prev, ok
}

// RemoveValue deletes the binding for key only if it currently equals
// value, and reports whether a binding was removed.
func (m *Sharded[V]) RemoveValue(key int32, value V) bool {
	sh := m.shardFor(key)
	sh.mu.Lock()
	current, ok := sh.m[key]
	if !ok || current != value {
		sh.mu.Unlock()
		return false
	}
	delete(sh.m, key)
	m.total.Add(-1)
	sh.mu.Unlock()
	return true
}

// Len returns the number of bindings.
func (m *Sharded[V]) Len() int {
	return int(m.total.Load())
}

// IsEmpty reports whether the map holds no bindings.
func (m *Sharded[V]) IsEmpty() bool {
	return m.total.Load() == 0
}

// Keys returns a snapshot of all keys, taken with every shard read-locked.
func (m *Sharded[V]) Keys() []int32 {
	m.rlockAll()
	defer m.runlockAll()

	keys := make([]int32, 0, m.total.Load())
	for i := range m.shards {
		for k := range m.shards[i].m {
			keys = append(keys, k)
		}
	}
	return keys
}

// Values returns a snapshot of all values, taken with every shard
// read-locked. Duplicate values are preserved.
func (m *Sharded[V]) Values() []V {
	m.rlockAll()
	defer m.runlockAll()

	values := make([]V, 0, m.total.Load())
	for i := range m.shards {
		for _, v := range m.shards[i].m {
			values = append(values, v)
		}
	}
	return values
}

// Clear removes all bindings. Shards are cleared one at a time, so a
// concurrent reader may observe a partially cleared map.
func (m *Sharded[V]) Clear() {
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.Lock()
		m.total.Add(-int32(len(sh.m)))
		clear(sh.m)
		sh.mu.Unlock()
	}
}

func (m *Sharded[V]) shardFor(key int32) *shard[V] {
	return &m.shards[mix(uint32(key))&m.mask]
}

func (m *Sharded[V]) rlockAll() {
	for i := range m.shards {
		m.shards[i].mu.RLock()
	}
}

func (m *Sharded[V]) runlockAll() {
	for i := range m.shards {
		m.shards[i].mu.RUnlock()
	}
}

// mix is the 32-bit murmur3 finalizer. Keys are often densely packed
// coordinates, so the low bits alone would land whole regions in one shard.
func mix(k uint32) uint32 {
	k ^= k >> 16
	k *= 0x85ebca6b
	k ^= k >> 13
	k *= 0xc2b2ae35
	k ^= k >> 16
	return k
}
