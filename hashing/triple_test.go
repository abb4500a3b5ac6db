package hashing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTripleKey_RoundTrip(t *testing.T) {
	tests := []struct {
		x, y, z int32
	}{
		{0, 0, 0},
		{1, 2, 3},
		{511, 511, 511},
		{-512, -512, -512},
		{-1, 0, 1},
		{100, -200, 300},
	}
	for _, tt := range tests {
		k := Key(tt.x, tt.y, tt.z)
		assert.Equal(t, tt.x, k.X(), "x of (%d,%d,%d)", tt.x, tt.y, tt.z)
		assert.Equal(t, tt.y, k.Y(), "y of (%d,%d,%d)", tt.x, tt.y, tt.z)
		assert.Equal(t, tt.z, k.Z(), "z of (%d,%d,%d)", tt.x, tt.y, tt.z)
	}
}

func TestTripleKey_Truncation(t *testing.T) {
	// Coordinates beyond 10 signed bits wrap into range.
	k := Key(512, 1024, -513)
	assert.Equal(t, int32(-512), k.X())
	assert.Equal(t, int32(0), k.Y())
	assert.Equal(t, int32(511), k.Z())
}

func TestTripleKey_Add(t *testing.T) {
	k := Key(10, 20, 30).Add(1, -2, 3)
	assert.Equal(t, int32(11), k.X())
	assert.Equal(t, int32(18), k.Y())
	assert.Equal(t, int32(33), k.Z())

	// Carries stay inside their own field.
	edge := Key(0, 511, 0).Add(0, 1, 0)
	assert.Equal(t, int32(0), edge.X())
	assert.Equal(t, int32(-512), edge.Y())
	assert.Equal(t, int32(0), edge.Z())
}

func TestTripleKey_ShiftRight(t *testing.T) {
	k := Key(256, 64, 16).ShiftRight(4)
	assert.Equal(t, int32(16), k.X())
	assert.Equal(t, int32(4), k.Y())
	assert.Equal(t, int32(1), k.Z())
}
