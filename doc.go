// Package commons provides shared infrastructure for voxel-world servers:
// palette-compressed block storage, concurrent primitive-keyed maps, chunk
// coordinate hashing, string-keyed persistent stores and tick-loop
// utilities.
//
// # Layout
//
//   - store/block: lock-free palette-compressed backing arrays and their
//     snapshot codec.
//   - store/worldsave: batch snapshot persistence over pluggable blob
//     storage.
//   - store: simple string-keyed key/value stores with file persistence.
//   - blobstore: local, in-memory, S3 and MinIO blob backends.
//   - intmap: sharded concurrent map keyed by int32.
//   - hashing: packed chunk-coordinate keys.
//   - strutil: name matching and command-argument parsing helpers.
//
// The root package carries the pieces a server loop touches directly:
// structured logging (Logger), log plumbing for line-oriented output
// (LineWriter) and tick-rate measurement (TPSMonitor).
//
// # Block Storage
//
// A backing array compresses a fixed-length volume of block ids through a
// palette. Writes that outgrow the palette fail with ErrPaletteFull and the
// owner swaps in a wider replacement:
//
//	a, _ := block.NewPaletteArray(4096)
//	if _, err := a.Set(idx, blockID); errors.Is(err, block.ErrPaletteFull) {
//		grown, _ := block.ExpandPaletteArray(a)
//		grown.Set(idx, blockID)
//	}
//
// # Persistence
//
// Snapshots travel through any blob store backend:
//
//	bs := blobstore.NewLocalStore("./world")
//	ws, _ := worldsave.Open(ctx, bs, worldsave.WithCompression(block.CompressionZstd))
//	_ = ws.Save(ctx, "region_0_0", a)
package commons
