// Package blobstore abstracts durable storage for array snapshots and
// world-save manifests.
//
// A BlobStore holds immutable blobs addressed by slash-separated names.
// Blobs are written either whole with Put or streamed through Create;
// in both cases the blob becomes visible only once the write completes,
// so readers never observe partial content.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, zero-copy reads through mmap
//   - MemoryStore: in-memory, for tests and ephemeral worlds
//   - CachingStore: block-level read cache over any other store
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible systems
//
// # Custom Implementations
//
// Implement BlobStore to support other backends. Cloud implementations
// should serve ReadRange with a ranged request rather than a full
// download; snapshot readers use it to fetch palettes without the cell
// payload.
package blobstore
