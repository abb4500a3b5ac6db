package worldsave

import (
	"encoding/json"
	"fmt"
	"time"
)

// currentName is the pointer blob naming the live manifest. Blob stores
// that special-case this name (blobstore/s3.CommitStore) turn the final
// Put of a commit into a compare-and-swap.
const currentName = "CURRENT"

// Manifest records one committed generation: the blob holding each
// entry plus enough geometry to audit a world without opening them.
type Manifest struct {
	Generation uint64    `json:"generation"`
	CreatedAt  time.Time `json:"created_at"`
	Entries    []Entry   `json:"entries"`
}

// Entry locates one named array inside a generation.
type Entry struct {
	Name         string `json:"name"`
	Blob         string `json:"blob"`
	Length       int    `json:"length"`
	Width        uint   `json:"width"`
	PaletteUsage int    `json:"palette_usage"`
	Bytes        int64  `json:"bytes"`
}

// manifestName returns the blob name of generation gen's manifest.
// Zero-padding keeps a List of the manifests/ prefix in commit order.
func manifestName(gen uint64) string {
	return fmt.Sprintf("manifests/GEN-%08d.json", gen)
}

// entryBlobName returns the generation-scoped blob name for an entry.
// The generation in the name keeps published blobs immutable: a
// re-save of the same entry lands on a fresh name.
func entryBlobName(name string, gen uint64) string {
	return fmt.Sprintf("chunks/%s.g%d.fba", name, gen)
}

// encodeManifest renders m as indented JSON so manifests stay readable
// straight out of the bucket.
func encodeManifest(m *Manifest) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func decodeManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("worldsave: decode manifest: %w", err)
	}
	return &m, nil
}
