package block

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/flow/commons/internal/hash"
	"github.com/flow/commons/internal/packed"
)

// Compression selects how snapshot payloads are encoded on the wire.
type Compression uint8

const (
	// CompressionNone stores the payload as-is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast, good for hot data).
	CompressionLZ4 Compression = 1
	// CompressionZstd uses zstd block compression (better ratio, good for
	// cold data).
	CompressionZstd Compression = 2
)

// snapshotMagic identifies encoded snapshots; the byte after it is the
// format version.
var snapshotMagic = [4]byte{'F', 'B', 'A', 'S'}

const snapshotVersion = 1

// maxSnapshotLength bounds the decoded cell count so a corrupt header cannot
// drive allocations.
const maxSnapshotLength = 1 << 30

// Snapshot is a point-in-time copy of a backing array's serializable state.
// Taking one does not pause writers: each palette slot and cell word is read
// atomically, but the copy as a whole is not isolated from concurrent
// writes. Snapshot quiesced arrays when exact contents matter.
type Snapshot struct {
	Length  int
	Width   uint     // 0 uniform, 1-16 packed, 32 direct
	Palette []uint32 // id -> value table; nil for the direct form
	Words   []uint32 // raw cell words; nil for the uniform form
}

// TakeSnapshot copies a's serializable state.
func TakeSnapshot(a BackingArray) *Snapshot {
	s := &Snapshot{
		Length: a.Length(),
		Width:  a.Width(),
		Words:  a.PackedWords(),
	}
	if a.Width() != DirectWidth {
		s.Palette = a.Palette()
	}
	return s
}

// Restore builds a backing array from the snapshot contents.
func (s *Snapshot) Restore() (BackingArray, error) {
	switch s.Width {
	case UniformWidth:
		if len(s.Palette) != 1 {
			return nil, fmt.Errorf("block: uniform snapshot needs exactly one palette entry, got %d", len(s.Palette))
		}
		return NewUniformArray(s.Length, s.Palette[0])
	case DirectWidth:
		return NewDirectArrayFromWords(s.Length, s.Words)
	default:
		return NewPaletteArrayFromSnapshot(s.Length, s.Palette, s.Width, s.Words)
	}
}

// DistinctValues collects every value present in the snapshot into a
// bitmap, for callers that audit content without restoring the array.
func (s *Snapshot) DistinctValues() (*roaring.Bitmap, error) {
	if err := validateGeometry(s.Length, s.Width, len(s.Palette), len(s.Words)); err != nil {
		return nil, err
	}

	bm := roaring.New()
	switch s.Width {
	case UniformWidth:
		bm.Add(s.Palette[0])
	case DirectWidth:
		bm.AddMany(s.Words)
	default:
		store, err := packed.FromWords(s.Length, s.Width, s.Words)
		if err != nil {
			return nil, err
		}
		for i := 0; i < s.Length; i++ {
			id := store.Get(i)
			if int(id) >= len(s.Palette) {
				return nil, fmt.Errorf("block: cell %d references palette entry %d of %d", i, id, len(s.Palette))
			}
			bm.Add(s.Palette[id])
		}
	}
	return bm, nil
}

// zstd encoder/decoder pools shared by all snapshot encodes.
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// MarshalBinary encodes the snapshot without compression.
func (s *Snapshot) MarshalBinary() ([]byte, error) {
	return MarshalSnapshot(s, CompressionNone)
}

// UnmarshalBinary decodes an encoded snapshot.
func (s *Snapshot) UnmarshalBinary(data []byte) error {
	dec, err := UnmarshalSnapshot(data)
	if err != nil {
		return err
	}
	*s = *dec
	return nil
}

// MarshalSnapshot encodes s using the given payload compression.
//
// Layout: magic, version byte, compression byte, then uvarint cell count,
// width, palette length, word count and payload byte count, then the payload
// (palette values followed by cell words, little-endian), then the CRC32C of
// the uncompressed payload. If compression does not shrink the payload the
// block is stored uncompressed and the compression byte says so.
func MarshalSnapshot(s *Snapshot, comp Compression) ([]byte, error) {
	if err := validateGeometry(s.Length, s.Width, len(s.Palette), len(s.Words)); err != nil {
		return nil, err
	}

	raw := make([]byte, 0, 4*(len(s.Palette)+len(s.Words)))
	for _, v := range s.Palette {
		raw = binary.LittleEndian.AppendUint32(raw, v)
	}
	for _, w := range s.Words {
		raw = binary.LittleEndian.AppendUint32(raw, w)
	}
	crc := hash.CRC32C(raw)

	payload, comp, err := compressPayload(raw, comp)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, len(payload)+32)
	buf = append(buf, snapshotMagic[:]...)
	buf = append(buf, snapshotVersion, byte(comp))
	buf = binary.AppendUvarint(buf, uint64(s.Length))
	buf = binary.AppendUvarint(buf, uint64(s.Width))
	buf = binary.AppendUvarint(buf, uint64(len(s.Palette)))
	buf = binary.AppendUvarint(buf, uint64(len(s.Words)))
	buf = binary.AppendUvarint(buf, uint64(len(payload)))
	buf = append(buf, payload...)
	buf = binary.LittleEndian.AppendUint32(buf, crc)
	return buf, nil
}

// UnmarshalSnapshot decodes snapshot bytes produced by MarshalSnapshot.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	if len(data) < len(snapshotMagic)+2 {
		return nil, &ErrSnapshotCorrupt{Reason: "short header"}
	}
	if [4]byte(data[:4]) != snapshotMagic {
		return nil, &ErrSnapshotCorrupt{Reason: "bad magic"}
	}
	if data[4] != snapshotVersion {
		return nil, &ErrSnapshotCorrupt{Reason: fmt.Sprintf("unsupported version %d", data[4])}
	}
	comp := Compression(data[5])
	data = data[6:]

	var hdr [5]uint64
	for i := range hdr {
		v, n := binary.Uvarint(data)
		if n <= 0 {
			return nil, &ErrSnapshotCorrupt{Reason: "truncated header"}
		}
		hdr[i] = v
		data = data[n:]
	}
	length, width := int(hdr[0]), uint(hdr[1])
	paletteLen, wordsLen, payloadLen := int(hdr[2]), int(hdr[3]), int(hdr[4])

	if err := validateGeometry(length, width, paletteLen, wordsLen); err != nil {
		return nil, &ErrSnapshotCorrupt{Reason: "bad geometry", cause: err}
	}
	rawLen := 4 * (paletteLen + wordsLen)
	if payloadLen > rawLen || (comp == CompressionNone && payloadLen != rawLen) {
		return nil, &ErrSnapshotCorrupt{Reason: "payload length out of range"}
	}
	if len(data) < payloadLen+4 {
		return nil, &ErrSnapshotCorrupt{Reason: "truncated payload"}
	}

	raw, err := decompressPayload(data[:payloadLen], comp, rawLen)
	if err != nil {
		return nil, &ErrSnapshotCorrupt{Reason: "payload decode failed", cause: err}
	}
	if crc := binary.LittleEndian.Uint32(data[payloadLen:]); crc != hash.CRC32C(raw) {
		return nil, &ErrSnapshotCorrupt{Reason: "checksum mismatch"}
	}

	s := &Snapshot{Length: length, Width: width}
	if paletteLen > 0 {
		s.Palette = make([]uint32, paletteLen)
		for i := range s.Palette {
			s.Palette[i] = binary.LittleEndian.Uint32(raw[4*i:])
		}
	}
	if wordsLen > 0 {
		s.Words = make([]uint32, wordsLen)
		off := 4 * paletteLen
		for i := range s.Words {
			s.Words[i] = binary.LittleEndian.Uint32(raw[off+4*i:])
		}
	}
	return s, nil
}

// WriteTo encodes the snapshot without compression, implementing
// io.WriterTo.
func (s *Snapshot) WriteTo(w io.Writer) (int64, error) {
	return s.WriteToCompressed(w, CompressionNone)
}

// WriteToCompressed encodes the snapshot with the given compression.
func (s *Snapshot) WriteToCompressed(w io.Writer, comp Compression) (int64, error) {
	buf, err := MarshalSnapshot(s, comp)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(buf)
	return int64(n), err
}

// ReadSnapshotFrom decodes one snapshot from r, consuming it fully.
func ReadSnapshotFrom(r io.Reader) (*Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return UnmarshalSnapshot(data)
}

// validateGeometry checks that the snapshot dimensions describe one of the
// three representations.
func validateGeometry(length int, width uint, paletteLen, wordsLen int) error {
	if length <= 0 || length > maxSnapshotLength {
		return fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}
	switch {
	case width == UniformWidth:
		if paletteLen != 1 || wordsLen != 0 {
			return fmt.Errorf("block: uniform snapshot has %d palette entries and %d words", paletteLen, wordsLen)
		}
	case width == DirectWidth:
		if paletteLen != 0 {
			return fmt.Errorf("block: direct snapshot carries a palette")
		}
		if wordsLen != length {
			return fmt.Errorf("block: direct snapshot has %d words for %d cells", wordsLen, length)
		}
	case packed.ValidWidth(width) && width <= MaxPaletteWidth:
		if paletteLen < 1 || paletteLen > 1<<width {
			return fmt.Errorf("block: palette size %d out of range for width %d", paletteLen, width)
		}
		if want := packed.WordsFor(length, width); wordsLen != want {
			return fmt.Errorf("block: got %d words, need %d for length %d width %d", wordsLen, want, length, width)
		}
	default:
		return fmt.Errorf("block: invalid snapshot width %d", width)
	}
	return nil
}

// compressPayload encodes raw with the requested compression, falling back
// to none when the result would not be smaller.
func compressPayload(raw []byte, comp Compression) ([]byte, Compression, error) {
	if comp == CompressionNone || len(raw) == 0 {
		return raw, CompressionNone, nil
	}

	var compressed []byte
	switch comp {
	case CompressionLZ4:
		bound := lz4.CompressBlockBound(len(raw))
		dst := make([]byte, bound)
		n, err := lz4.CompressBlock(raw, dst, nil)
		if err != nil {
			return nil, 0, err
		}
		if n == 0 {
			// Incompressible.
			return raw, CompressionNone, nil
		}
		compressed = dst[:n]
	case CompressionZstd:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(raw, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, 0, fmt.Errorf("block: unknown compression %d", comp)
	}

	if len(compressed) >= len(raw) {
		return raw, CompressionNone, nil
	}
	return compressed, comp, nil
}

// decompressPayload decodes payload into rawLen bytes.
func decompressPayload(payload []byte, comp Compression, rawLen int) ([]byte, error) {
	switch comp {
	case CompressionNone:
		return payload, nil
	case CompressionLZ4:
		raw := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(payload, raw)
		if err != nil {
			return nil, err
		}
		if n != rawLen {
			return nil, fmt.Errorf("block: decompressed %d bytes, want %d", n, rawLen)
		}
		return raw, nil
	case CompressionZstd:
		dec := getZstdDecoder()
		raw, err := dec.DecodeAll(payload, make([]byte, 0, rawLen))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, err
		}
		if len(raw) != rawLen {
			return nil, fmt.Errorf("block: decompressed %d bytes, want %d", len(raw), rawLen)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("block: unknown compression %d", comp)
	}
}
