// Package store provides small two-way keyed stores: every key maps to a
// value and every value maps back to the key that owns it.
//
// The stores keep the mapping bijective, which suits registries that hand
// out stable handles, such as name to id tables whose ids end up inside
// packed cell data. MemoryStore is volatile; FlatFileStore persists the
// same contract as a key=value line file.
package store

import "strconv"

// Entry is one key/value binding.
type Entry[T comparable] struct {
	Key   string
	Value T
}

// SimpleStore is a two-way map from string keys to comparable values.
type SimpleStore[T comparable] interface {
	// Save persists the store. Volatile stores return nil without effect.
	Save() error
	// Load replaces the contents from the persistence backend. Volatile
	// stores return nil without effect.
	Load() error
	Keys() []string
	Entries() []Entry[T]
	Len() int
	Clear()
	Get(key string) (T, bool)
	GetOrDefault(key string, def T) T
	// ReverseGet returns the key owning value.
	ReverseGet(value T) (string, bool)
	Remove(key string) (T, bool)
	// Set binds key to value, unbinding any previous owner of value.
	Set(key string, value T) (prev T, replaced bool)
	// SetIfAbsent binds key to value only when neither is in use.
	SetIfAbsent(key string, value T) bool
}

// IntEncoder and IntDecoder form the FlatFileStore codec for int values.
func IntEncoder(v int) (string, error) { return strconv.Itoa(v), nil }

func IntDecoder(s string) (int, error) { return strconv.Atoi(s) }

// Uint32Encoder and Uint32Decoder form the codec for uint32 values.
func Uint32Encoder(v uint32) (string, error) {
	return strconv.FormatUint(uint64(v), 10), nil
}

func Uint32Decoder(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}

// StringEncoder and StringDecoder form the identity codec.
func StringEncoder(v string) (string, error) { return v, nil }

func StringDecoder(s string) (string, error) { return s, nil }
