// Package worldsave persists palette-compressed block arrays through a
// blob store in committed generations.
//
// Every Save encodes a snapshot and writes it under a generation-scoped
// blob name, so published data is immutable: re-saving an entry lands on
// a fresh name instead of rewriting the old blob. Commit then writes a
// JSON manifest listing all live entries and swaps the CURRENT pointer
// blob to it. A reader opening the store resolves CURRENT and sees the
// last fully published generation; a crash between the two writes leaves
// at worst an unreferenced manifest behind.
//
// Batch operations fan out through an errgroup bounded by
// WithConcurrency, and WithRateLimit meters encoded bytes through a
// rate.Limiter so saves share bandwidth with the serving path.
//
// The store works against any blobstore.BlobStore. On plain object
// storage the CURRENT swap is last-writer-wins; wrap the store in a
// commit-aware implementation (blobstore/s3.CommitStore) when multiple
// writers may race.
package worldsave
