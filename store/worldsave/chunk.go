package worldsave

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/flow/commons/hashing"
	"github.com/flow/commons/store/block"
)

// ChunkName returns the canonical entry name for the chunk at
// coordinates (x, y, z).
func ChunkName(x, y, z int32) string {
	return fmt.Sprintf("c.%d.%d.%d", x, y, z)
}

// ParseChunkName inverts ChunkName. ok is false for entry names that
// are not chunks.
func ParseChunkName(name string) (x, y, z int32, ok bool) {
	rest, found := strings.CutPrefix(name, "c.")
	if !found {
		return 0, 0, 0, false
	}
	parts := strings.Split(rest, ".")
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	var c [3]int32
	for i, p := range parts {
		v, err := strconv.ParseInt(p, 10, 32)
		if err != nil {
			return 0, 0, 0, false
		}
		c[i] = int32(v)
	}
	return c[0], c[1], c[2], true
}

// SaveChunk saves arr under the canonical name for (x, y, z).
func (s *Store) SaveChunk(ctx context.Context, x, y, z int32, arr block.BackingArray) error {
	return s.Save(ctx, ChunkName(x, y, z), arr)
}

// LoadChunk loads the chunk at (x, y, z) from the latest committed
// generation.
func (s *Store) LoadChunk(ctx context.Context, x, y, z int32) (block.BackingArray, error) {
	return s.Load(ctx, ChunkName(x, y, z))
}

// HasChunk reports whether the chunk at (x, y, z) was saved or
// committed through this store, without formatting an entry name.
// Coordinates are truncated to hashing.Key's signed 10-bit range, so
// chunks a multiple of 1024 apart on an axis share a slot.
func (s *Store) HasChunk(x, y, z int32) bool {
	return s.chunks.ContainsKey(int32(hashing.Key(x, y, z)))
}

// ChunkCount returns the number of distinct chunk coordinates indexed.
func (s *Store) ChunkCount() int {
	return s.chunks.Len()
}

// indexChunk registers name's coordinates when it is a chunk entry.
func (s *Store) indexChunk(name string) {
	if x, y, z, ok := ParseChunkName(name); ok {
		s.chunks.Put(int32(hashing.Key(x, y, z)), name)
	}
}
