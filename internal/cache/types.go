// Package cache provides a byte-budgeted block cache for immutable blobs.
//
// Snapshot blobs never change after they are written, so cached blocks
// are valid until the blob is deleted. Callers invalidate by path on
// delete and overwrite.
package cache

import "context"

// Key identifies one cached block of an immutable blob. Path names the
// blob within its store and Block is the block index within the blob.
type Key struct {
	Path  string
	Block uint64
}

// BlockCache is a byte-oriented cache for immutable blob blocks.
// Returned slices must be treated as read-only.
type BlockCache interface {
	// Get returns a cached block. ok=false if missing.
	Get(ctx context.Context, key Key) (b []byte, ok bool)
	// Set caches a block. Implementations may retain b; callers must not
	// modify it afterwards.
	Set(ctx context.Context, key Key, b []byte)
	// Invalidate removes entries matching the predicate.
	Invalidate(predicate func(key Key) bool)
	// Close releases any resources held by the cache.
	Close() error
	// Stats returns hit and miss counters.
	Stats() (hits, misses int64)
}
