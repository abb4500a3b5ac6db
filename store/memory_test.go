package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetGet(t *testing.T) {
	s := NewMemoryStore[int]()

	_, ok := s.Get("stone")
	require.False(t, ok)
	assert.Equal(t, 99, s.GetOrDefault("stone", 99))

	prev, replaced := s.Set("stone", 1)
	require.False(t, replaced)
	require.Zero(t, prev)

	v, ok := s.Get("stone")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, s.GetOrDefault("stone", 99))

	key, ok := s.ReverseGet(1)
	require.True(t, ok)
	assert.Equal(t, "stone", key)

	prev, replaced = s.Set("stone", 2)
	require.True(t, replaced)
	assert.Equal(t, 1, prev)

	// The old value no longer reverse-resolves.
	_, ok = s.ReverseGet(1)
	assert.False(t, ok)
}

func TestMemoryStore_Bijection(t *testing.T) {
	s := NewMemoryStore[int]()
	s.Set("stone", 1)
	s.Set("dirt", 2)

	// Rebinding value 1 to a new key evicts the old owner.
	s.Set("granite", 1)

	_, ok := s.Get("stone")
	assert.False(t, ok)
	key, ok := s.ReverseGet(1)
	require.True(t, ok)
	assert.Equal(t, "granite", key)
	assert.Equal(t, 2, s.Len())
}

func TestMemoryStore_SetIfAbsent(t *testing.T) {
	s := NewMemoryStore[int]()

	require.True(t, s.SetIfAbsent("stone", 1))
	assert.False(t, s.SetIfAbsent("stone", 2), "key in use")
	assert.False(t, s.SetIfAbsent("granite", 1), "value in use")
	require.True(t, s.SetIfAbsent("granite", 2))
	assert.Equal(t, 2, s.Len())
}

func TestMemoryStore_Remove(t *testing.T) {
	s := NewMemoryStore[int]()
	s.Set("stone", 1)

	_, ok := s.Remove("missing")
	require.False(t, ok)

	v, ok := s.Remove("stone")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 0, s.Len())
	_, ok = s.ReverseGet(1)
	assert.False(t, ok)
}

func TestMemoryStore_KeysEntriesClear(t *testing.T) {
	s := NewMemoryStore[int]()
	s.Set("a", 1)
	s.Set("b", 2)
	s.Set("c", 3)

	assert.ElementsMatch(t, []string{"a", "b", "c"}, s.Keys())
	assert.ElementsMatch(t, []Entry[int]{
		{Key: "a", Value: 1},
		{Key: "b", Value: 2},
		{Key: "c", Value: 3},
	}, s.Entries())

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Keys())
}

func TestMemoryStore_SaveLoadNoop(t *testing.T) {
	s := NewMemoryStore[string]()
	s.Set("k", "v")

	require.NoError(t, s.Save())
	require.NoError(t, s.Load())

	v, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestMemoryStore_ConcurrentSetIfAbsent(t *testing.T) {
	const racers = 8
	s := NewMemoryStore[int]()

	var (
		wg   sync.WaitGroup
		wins [racers]bool
	)
	for r := 0; r < racers; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			wins[r] = s.SetIfAbsent("contested", r)
		}(r)
	}
	wg.Wait()

	winners := 0
	for _, won := range wins {
		if won {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, s.Len())
}
