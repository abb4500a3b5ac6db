package store

import "sync"

// MemoryStore is a volatile SimpleStore backed by a pair of maps, one per
// lookup direction.
type MemoryStore[T comparable] struct {
	mu      sync.RWMutex
	forward map[string]T
	reverse map[T]string
}

var _ SimpleStore[int] = (*MemoryStore[int])(nil)

// NewMemoryStore returns an empty volatile store.
func NewMemoryStore[T comparable]() *MemoryStore[T] {
	return &MemoryStore[T]{
		forward: make(map[string]T),
		reverse: make(map[T]string),
	}
}

// Save is a no-op for the volatile store.
func (s *MemoryStore[T]) Save() error { return nil }

// Load is a no-op for the volatile store.
func (s *MemoryStore[T]) Load() error { return nil }

// Keys returns all keys in no particular order.
func (s *MemoryStore[T]) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.forward))
	for k := range s.forward {
		keys = append(keys, k)
	}
	return keys
}

// Entries returns all bindings in no particular order.
func (s *MemoryStore[T]) Entries() []Entry[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]Entry[T], 0, len(s.forward))
	for k, v := range s.forward {
		entries = append(entries, Entry[T]{Key: k, Value: v})
	}
	return entries
}

// Len returns the number of bindings.
func (s *MemoryStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.forward)
}

// Clear removes all bindings.
func (s *MemoryStore[T]) Clear() {
	s.mu.Lock()
	clear(s.forward)
	clear(s.reverse)
	s.mu.Unlock()
}

// Get returns the value bound to key.
func (s *MemoryStore[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	v, ok := s.forward[key]
	s.mu.RUnlock()
	return v, ok
}

// GetOrDefault returns the value bound to key, or def when key is unbound.
func (s *MemoryStore[T]) GetOrDefault(key string, def T) T {
	if v, ok := s.Get(key); ok {
		return v
	}
	return def
}

// ReverseGet returns the key owning value.
func (s *MemoryStore[T]) ReverseGet(value T) (string, bool) {
	s.mu.RLock()
	k, ok := s.reverse[value]
	s.mu.RUnlock()
	return k, ok
}

// Remove deletes the binding for key and returns the removed value, if any.
func (s *MemoryStore[T]) Remove(key string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.forward[key]
	if !ok {
		return v, false
	}
	delete(s.forward, key)
	delete(s.reverse, v)
	return v, true
}

// Set binds key to value. A previous value under key and a previous owner
// of value are both unbound, keeping the mapping bijective.
func (s *MemoryStore[T]) Set(key string, value T) (prev T, replaced bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, replaced = s.forward[key]
	if replaced {
		delete(s.reverse, prev)
	}
	if owner, ok := s.reverse[value]; ok {
		delete(s.forward, owner)
	}
	s.forward[key] = value
	s.reverse[value] = key
	return prev, replaced
}

// SetIfAbsent binds key to value only when neither the key nor the value
// is in use, and reports whether the binding was made.
func (s *MemoryStore[T]) SetIfAbsent(key string, value T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.forward[key]; ok {
		return false
	}
	if _, ok := s.reverse[value]; ok {
		return false
	}
	s.forward[key] = value
	s.reverse[value] = key
	return true
}
