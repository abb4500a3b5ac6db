// Package s3 provides Amazon S3 implementations of blobstore.BlobStore
// for snapshot and world-save blobs.
//
//	store, err := s3.NewFromConfig(ctx, "my-bucket", "worlds/alpha")
//
// Three stores are available:
//
//   - Store: plain S3. Range reads for partial snapshot fetches,
//     multipart streaming uploads, CRC32C integrity checksums.
//   - ExpressStore: S3 Express One Zone directory buckets. Adds
//     PutIfNotExists through conditional writes.
//   - CommitStore: S3 for content plus DynamoDB conditional writes for
//     the CURRENT generation pointer, so concurrent savers cannot
//     silently overwrite each other's commits.
package s3
