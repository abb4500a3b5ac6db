package block

import "math/bits"

const (
	// UniformWidth marks the uniform (zero bits per cell) representation.
	UniformWidth uint = 0
	// MaxPaletteWidth is the widest packed representation. Beyond it only
	// the direct form remains.
	MaxPaletteWidth uint = 16
	// DirectWidth marks the uncompressed one-word-per-cell representation.
	DirectWidth uint = 32
)

// minPaletteLength is the smallest length a palette array supports. Below it
// allowedPalette(length) would leave no room for even the reserved zero
// entry.
const minPaletteLength = 4

// roundWidth maps required id bits to the nearest supported packed width.
// Entry b answers: how wide must cells be to hold ids needing b bits?
var roundWidth = [MaxPaletteWidth + 1]uint{
	0: 1, 1: 1,
	2: 2,
	3: 4, 4: 4,
	5: 8, 6: 8, 7: 8, 8: 8,
	9: 16, 10: 16, 11: 16, 12: 16, 13: 16, 14: 16, 15: 16, 16: 16,
}

// RoundUpWidth returns the smallest supported packed width able to represent
// ids 0 through maxID. Ids never exceed 16 bits, so inputs above that clamp
// to MaxPaletteWidth.
func RoundUpWidth(maxID uint32) uint {
	b := bits.Len32(maxID)
	if b > int(MaxPaletteWidth) {
		return MaxPaletteWidth
	}
	return roundWidth[b]
}

// nextWidth returns the width step after width: uniform grows to one bit,
// packed widths double up to 16, and 16 stays 16 (the owner switches to the
// direct form instead).
func nextWidth(width uint) uint {
	switch {
	case width == UniformWidth:
		return 1
	case width <= 8:
		return width << 1
	default:
		return MaxPaletteWidth
	}
}

// allowedPalette caps the palette at a quarter of the cell count. A palette
// any larger means the array compresses poorly and the owner should use the
// direct form.
func allowedPalette(length int) int {
	return length >> 2
}

// paletteSizeFor returns the palette capacity for a packed array: the
// representable id space clipped by the per-length cap.
func paletteSizeFor(length int, width uint) (size int, max bool) {
	size = 1 << width
	if allowed := allowedPalette(length); size >= allowed {
		return allowed, true
	}
	return size, false
}
