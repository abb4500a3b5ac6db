// Package hash provides the checksum primitives shared by the snapshot
// codec and the object-store uploaders.
//
// Everything checksums with CRC32-Castagnoli: it is hardware accelerated
// on x86 and ARM, and it is the polynomial S3 speaks natively, so a
// snapshot trailer can double as the upload integrity checksum without
// rehashing.
package hash

import (
	"hash"
	"hash/crc32"
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// NewCRC32C returns a streaming CRC32-Castagnoli hash.Hash32 for
// callers that checksum in chunks.
func NewCRC32C() hash.Hash32 {
	return crc32.New(crc32cTable)
}
