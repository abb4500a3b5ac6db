package worldsave

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flow/commons/blobstore"
	"github.com/flow/commons/internal/fs"
	"github.com/flow/commons/store/block"
)

// testArray builds a palette array of the given length cycling through
// the given distinct values.
func testArray(t *testing.T, length int, values ...uint32) block.BackingArray {
	t.Helper()
	cells := make([]uint32, length)
	for i := range cells {
		cells[i] = values[i%len(values)]
	}
	arr, err := block.NewPaletteArrayFromValues(length, len(values), cells)
	require.NoError(t, err)
	return arr
}

func requireSameCells(t *testing.T, want, got block.BackingArray) {
	t.Helper()
	require.Equal(t, want.Length(), got.Length())
	for i := 0; i < want.Length(); i++ {
		require.Equal(t, want.Get(i), got.Get(i), "cell %d", i)
	}
}

func TestStore_SaveCommitLoad(t *testing.T) {
	ctx := context.Background()
	underlying := blobstore.NewMemoryStore()

	s, err := Open(ctx, underlying)
	require.NoError(t, err)
	require.Zero(t, s.Generation())
	require.Empty(t, s.Names())

	arr := testArray(t, 64, 1, 2, 3)
	require.NoError(t, s.Save(ctx, "region.0", arr))

	// Saved entries stay invisible until the commit publishes them.
	_, err = s.Load(ctx, "region.0")
	assert.ErrorIs(t, err, ErrNoEntry)
	assert.Equal(t, 1, s.Pending())

	gen, err := s.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gen)
	assert.Equal(t, uint64(1), s.Generation())
	assert.Zero(t, s.Pending())

	got, err := s.Load(ctx, "region.0")
	require.NoError(t, err)
	requireSameCells(t, arr, got)

	e, ok := s.Entry("region.0")
	require.True(t, ok)
	assert.Equal(t, "chunks/region.0.g1.fba", e.Blob)
	assert.Equal(t, 64, e.Length)
	assert.Equal(t, arr.Width(), e.Width)
	assert.Equal(t, arr.PaletteUsage(), e.PaletteUsage)
	assert.Positive(t, e.Bytes)

	ptr, err := blobstore.ReadAll(ctx, underlying, currentName)
	require.NoError(t, err)
	assert.Equal(t, "manifests/GEN-00000001.json", string(ptr))

	raw, err := blobstore.ReadAll(ctx, underlying, string(ptr))
	require.NoError(t, err)
	m, err := decodeManifest(raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), m.Generation)
	require.Len(t, m.Entries, 1)
	assert.Equal(t, "region.0", m.Entries[0].Name)
}

func TestStore_CommitNothingPending(t *testing.T) {
	ctx := context.Background()
	underlying := blobstore.NewMemoryStore()

	s, err := Open(ctx, underlying)
	require.NoError(t, err)

	gen, err := s.Commit(ctx)
	require.NoError(t, err)
	assert.Zero(t, gen)

	// No pointer blob appears for an empty commit.
	_, err = blobstore.ReadAll(ctx, underlying, currentName)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestStore_ReopenSeesCommitted(t *testing.T) {
	ctx := context.Background()
	underlying := blobstore.NewMemoryStore()

	s, err := Open(ctx, underlying)
	require.NoError(t, err)
	a := testArray(t, 64, 1, 2, 3)
	b := testArray(t, 128, 9, 10)
	require.NoError(t, s.Save(ctx, "region.a", a))
	require.NoError(t, s.Save(ctx, "region.b", b))
	_, err = s.Commit(ctx)
	require.NoError(t, err)

	s2, err := Open(ctx, underlying)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), s2.Generation())
	assert.Equal(t, []string{"region.a", "region.b"}, s2.Names())

	got, err := s2.Load(ctx, "region.b")
	require.NoError(t, err)
	requireSameCells(t, b, got)
}

func TestStore_SecondGenerationCarriesEntries(t *testing.T) {
	ctx := context.Background()
	underlying := blobstore.NewMemoryStore()

	s, err := Open(ctx, underlying)
	require.NoError(t, err)

	a := testArray(t, 64, 1, 2, 3)
	b1 := testArray(t, 64, 4, 5)
	require.NoError(t, s.Save(ctx, "region.a", a))
	require.NoError(t, s.Save(ctx, "region.b", b1))
	gen, err := s.Commit(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), gen)

	// Only region.b changes in the second generation.
	b2 := testArray(t, 64, 6, 7, 8, 9)
	require.NoError(t, s.Save(ctx, "region.b", b2))
	gen, err = s.Commit(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), gen)

	got, err := s.Load(ctx, "region.a")
	require.NoError(t, err)
	requireSameCells(t, a, got)
	got, err = s.Load(ctx, "region.b")
	require.NoError(t, err)
	requireSameCells(t, b2, got)

	ea, _ := s.Entry("region.a")
	eb, _ := s.Entry("region.b")
	assert.Equal(t, "chunks/region.a.g1.fba", ea.Blob)
	assert.Equal(t, "chunks/region.b.g2.fba", eb.Blob)

	// A fresh open resolves the same state.
	s2, err := Open(ctx, underlying)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), s2.Generation())
	got, err = s2.Load(ctx, "region.b")
	require.NoError(t, err)
	requireSameCells(t, b2, got)
}

func TestStore_Compression(t *testing.T) {
	ctx := context.Background()
	codecs := map[string]block.Compression{
		"none": block.CompressionNone,
		"lz4":  block.CompressionLZ4,
		"zstd": block.CompressionZstd,
	}
	for name, comp := range codecs {
		t.Run(name, func(t *testing.T) {
			s, err := Open(ctx, blobstore.NewMemoryStore(), WithCompression(comp))
			require.NoError(t, err)

			paletted := testArray(t, 256, 1, 2, 3, 4, 5)
			flat, err := block.NewUniformArray(256, 42)
			require.NoError(t, err)
			require.NoError(t, s.Save(ctx, "paletted", paletted))
			require.NoError(t, s.Save(ctx, "flat", flat))
			_, err = s.Commit(ctx)
			require.NoError(t, err)

			got, err := s.Load(ctx, "paletted")
			require.NoError(t, err)
			requireSameCells(t, paletted, got)
			got, err = s.Load(ctx, "flat")
			require.NoError(t, err)
			requireSameCells(t, flat, got)
		})
	}
}

func TestStore_SaveBatchLoadBatch(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, blobstore.NewMemoryStore(), WithConcurrency(3))
	require.NoError(t, err)

	arrays := make(map[string]block.BackingArray)
	names := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("r.%02d", i)
		arrays[name] = testArray(t, 64, uint32(i+1), uint32(i+100))
		names = append(names, name)
	}
	require.NoError(t, s.SaveBatch(ctx, arrays))
	assert.Equal(t, 10, s.Pending())

	_, err = s.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, names, s.Names())

	loaded, err := s.LoadBatch(ctx, names)
	require.NoError(t, err)
	require.Len(t, loaded, 10)
	for name, want := range arrays {
		requireSameCells(t, want, loaded[name])
	}
}

func TestStore_LoadBatchUnknownName(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, blobstore.NewMemoryStore())
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "known", testArray(t, 64, 1, 2)))
	_, err = s.Commit(ctx)
	require.NoError(t, err)

	_, err = s.LoadBatch(ctx, []string{"known", "missing"})
	assert.ErrorIs(t, err, ErrNoEntry)
}

func TestStore_Collector(t *testing.T) {
	ctx := context.Background()
	underlying := blobstore.NewMemoryStore()
	col := &BasicCollector{}

	s, err := Open(ctx, underlying, WithCollector(col))
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, "region.a", testArray(t, 64, 1, 2)))
	require.NoError(t, s.Save(ctx, "region.b", testArray(t, 64, 3, 4)))
	_, err = s.Commit(ctx)
	require.NoError(t, err)

	_, err = s.Load(ctx, "region.a")
	require.NoError(t, err)

	// Corrupt region.b in place; its load must be counted as an error.
	eb, ok := s.Entry("region.b")
	require.True(t, ok)
	require.NoError(t, underlying.Put(ctx, eb.Blob, []byte("not a snapshot")))
	_, err = s.Load(ctx, "region.b")
	require.Error(t, err)

	stats := col.GetStats()
	assert.Equal(t, int64(2), stats.SaveCount)
	assert.Zero(t, stats.SaveErrors)
	assert.Positive(t, stats.SaveBytes)
	assert.Equal(t, int64(1), stats.CommitCount)
	assert.Zero(t, stats.CommitErrors)
	assert.Equal(t, uint64(1), stats.LastGeneration)
	assert.Equal(t, int64(2), stats.LoadCount)
	assert.Equal(t, int64(1), stats.LoadErrors)
}

func TestStore_RateLimit(t *testing.T) {
	ctx := context.Background()

	// Burst far below the blob size exercises the sliced admission path.
	s, err := Open(ctx, blobstore.NewMemoryStore(), WithRateLimit(1<<20, 64))
	require.NoError(t, err)
	arr := testArray(t, 256, 1, 2, 3)
	require.NoError(t, s.Save(ctx, "region.0", arr))
	_, err = s.Commit(ctx)
	require.NoError(t, err)
	got, err := s.Load(ctx, "region.0")
	require.NoError(t, err)
	requireSameCells(t, arr, got)

	// A canceled context surfaces through the limiter wait.
	s2, err := Open(ctx, blobstore.NewMemoryStore(), WithRateLimit(1, 1))
	require.NoError(t, err)
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	err = s2.Save(canceled, "region.0", arr)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorContains(t, err, "rate limit")
}

func TestStore_FaultyCommitKeepsPending(t *testing.T) {
	ctx := context.Background()
	faulty := fs.NewFaultyFS(nil)
	underlying := blobstore.NewLocalStoreFS(t.TempDir(), faulty)

	s, err := Open(ctx, underlying)
	require.NoError(t, err)
	arr := testArray(t, 64, 1, 2, 3)
	require.NoError(t, s.Save(ctx, "region.0", arr))

	faulty.FailPath(currentName, fs.Fault{FailSync: true})
	_, err = s.Commit(ctx)
	require.ErrorIs(t, err, fs.ErrInjected)

	// The pointer swap failed, so nothing was published and the staged
	// save survives for a retry.
	assert.Zero(t, s.Generation())
	assert.Equal(t, 1, s.Pending())
	_, err = blobstore.ReadAll(ctx, underlying, currentName)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	faulty.ClearFaults()
	gen, err := s.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gen)

	got, err := s.Load(ctx, "region.0")
	require.NoError(t, err)
	requireSameCells(t, arr, got)
}

func TestStore_OptionClamps(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, blobstore.NewMemoryStore(),
		WithConcurrency(0),
		WithLogger(nil),
		WithCollector(nil),
		WithRateLimit(0, 5),
		WithCompression(block.CompressionNone),
	)
	require.NoError(t, err)

	arrays := map[string]block.BackingArray{
		"a": testArray(t, 64, 1, 2),
		"b": testArray(t, 64, 3, 4),
		"c": testArray(t, 64, 5, 6),
	}
	require.NoError(t, s.SaveBatch(ctx, arrays))
	_, err = s.Commit(ctx)
	require.NoError(t, err)

	loaded, err := s.LoadBatch(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	for name, want := range arrays {
		requireSameCells(t, want, loaded[name])
	}
}
