package block

import (
	"errors"
	"fmt"
)

var (
	// ErrPaletteFull is returned when a write needs a new palette id and the
	// palette has no capacity left. The array is unchanged; the owner
	// expands to a wider representation and retries.
	ErrPaletteFull = errors.New("palette full")

	// ErrInvalidLength is returned by constructors for lengths the requested
	// representation cannot hold.
	ErrInvalidLength = errors.New("invalid length")

	// ErrValueCount is returned by bulk constructors when the supplied
	// values do not match the declared length.
	ErrValueCount = errors.New("value count does not match length")
)

// ErrCopyOverflow indicates that copying values into a freshly sized palette
// array ran out of palette capacity. Unlike a plain ErrPaletteFull this is
// not recoverable by retrying: the declared unique-value count was too low
// for the source data.
//
// It unwraps to ErrPaletteFull.
type ErrCopyOverflow struct {
	Length      int
	PaletteSize int
	Unique      int
}

func (e *ErrCopyOverflow) Error() string {
	return fmt.Sprintf("palette overflow while copying: %d declared unique values, palette size %d, length %d",
		e.Unique, e.PaletteSize, e.Length)
}

func (e *ErrCopyOverflow) Unwrap() error { return ErrPaletteFull }

// ErrSnapshotCorrupt indicates that encoded snapshot bytes failed structural
// or checksum validation.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrSnapshotCorrupt struct {
	Reason string
	cause  error
}

func (e *ErrSnapshotCorrupt) Error() string {
	return fmt.Sprintf("corrupt snapshot: %s", e.Reason)
}

func (e *ErrSnapshotCorrupt) Unwrap() error { return e.cause }
