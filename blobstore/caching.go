package blobstore

import (
	"context"
	"errors"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/flow/commons/internal/cache"
)

// Backend reads that fill the cache run concurrently per missing run,
// bounded to keep descriptor and request fan-out in check.
const maxFillConcurrency = 16

// CachingStore wraps a BlobStore and serves reads from a block cache.
// Snapshot access is dominated by repeated palette and header reads, so
// even a small cache absorbs most backend round trips.
type CachingStore struct {
	inner     BlobStore
	cache     cache.BlockCache
	blockSize int64
}

var _ BlobStore = (*CachingStore)(nil)

// NewCachingStore creates a caching wrapper around inner. blockSize
// defaults to 4KB if <= 0.
func NewCachingStore(inner BlobStore, c cache.BlockCache, blockSize int64) *CachingStore {
	if blockSize <= 0 {
		blockSize = 4096
	}
	return &CachingStore{
		inner:     inner,
		cache:     c,
		blockSize: blockSize,
	}
}

func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &CachingBlob{
		inner:     b,
		cache:     s.cache,
		name:      name,
		blockSize: s.blockSize,
	}, nil
}

func (s *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	w, err := s.inner.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	return &invalidateOnClose{WritableBlob: w, store: s, name: name}, nil
}

func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	err := s.inner.Put(ctx, name, data)
	// Invalidate after the write lands so blocks cached mid-flight from
	// the previous content are dropped too.
	s.invalidate(name)
	return err
}

func (s *CachingStore) Delete(ctx context.Context, name string) error {
	err := s.inner.Delete(ctx, name)
	s.invalidate(name)
	return err
}

func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

func (s *CachingStore) invalidate(name string) {
	s.cache.Invalidate(func(key cache.Key) bool { return key.Path == name })
}

// invalidateOnClose drops stale cache entries once a Create publishes
// new content under an existing name.
type invalidateOnClose struct {
	WritableBlob
	store *CachingStore
	name  string
}

func (w *invalidateOnClose) Close() error {
	err := w.WritableBlob.Close()
	w.store.invalidate(w.name)
	return err
}

// CachingBlob reads through the block cache.
type CachingBlob struct {
	inner     Blob
	cache     cache.BlockCache
	name      string
	blockSize int64
}

var _ Blob = (*CachingBlob)(nil)

func (b *CachingBlob) Close() error {
	return b.inner.Close()
}

func (b *CachingBlob) Size() int64 {
	return b.inner.Size()
}

func (b *CachingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if off < 0 || off >= b.inner.Size() {
		return 0, io.EOF
	}

	startBlock := off / b.blockSize
	endBlock := (off + int64(len(p)) - 1) / b.blockSize

	if err := b.fillCache(ctx, startBlock, endBlock); err != nil {
		return 0, err
	}

	total := 0
	for blk := startBlock; blk <= endBlock; blk++ {
		blkStart := blk * b.blockSize

		// Intersection of this block with the requested range.
		lo := max(blkStart, off)
		hi := min(blkStart+b.blockSize, off+int64(len(p)))
		if hi <= lo {
			continue
		}

		block, err := b.fetchBlock(ctx, blk)
		if err != nil {
			return total, err
		}

		src := lo - blkStart
		if src >= int64(len(block)) {
			// Short final block; the request runs past EOF.
			break
		}
		want := hi - lo
		if src+want > int64(len(block)) {
			want = int64(len(block)) - src
		}
		total += copy(p[lo-off:], block[src:src+want])
	}

	if total < len(p) {
		return total, io.EOF
	}
	return total, nil
}

func (b *CachingBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	return io.NopCloser(&sectionReader{blob: b, ctx: ctx, off: off, limit: off + length}), nil
}

type blockRun struct {
	start, count int64
}

// fillCache loads every missing block in [startBlock, endBlock],
// coalescing contiguous misses into single backend reads so a cold
// sequential scan costs one ranged request instead of one per block.
func (b *CachingBlob) fillCache(ctx context.Context, startBlock, endBlock int64) error {
	var runs []blockRun
	run := blockRun{start: -1}
	for blk := startBlock; blk <= endBlock; blk++ {
		if _, ok := b.cache.Get(ctx, cache.Key{Path: b.name, Block: uint64(blk)}); ok {
			if run.start != -1 {
				runs = append(runs, run)
				run = blockRun{start: -1}
			}
			continue
		}
		if run.start == -1 {
			run = blockRun{start: blk, count: 1}
		} else {
			run.count++
		}
	}
	if run.start != -1 {
		runs = append(runs, run)
	}
	if len(runs) == 0 {
		return nil
	}

	size := b.inner.Size()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxFillConcurrency)
	for _, run := range runs {
		g.Go(func() error {
			byteStart := run.start * b.blockSize
			if byteStart >= size {
				return nil
			}
			byteLen := run.count * b.blockSize
			if byteStart+byteLen > size {
				byteLen = size - byteStart
			}

			buf := make([]byte, byteLen)
			n, err := b.inner.ReadAt(gctx, buf, byteStart)
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}

			for i := int64(0); i < run.count; i++ {
				lo := i * b.blockSize
				if lo >= int64(n) {
					break
				}
				hi := min(lo+b.blockSize, int64(n))
				// Copy per block so the cache does not pin the run buffer.
				block := make([]byte, hi-lo)
				copy(block, buf[lo:hi])
				b.cache.Set(gctx, cache.Key{Path: b.name, Block: uint64(run.start + i)}, block)
			}
			return nil
		})
	}
	return g.Wait()
}

func (b *CachingBlob) fetchBlock(ctx context.Context, blk int64) ([]byte, error) {
	key := cache.Key{Path: b.name, Block: uint64(blk)}
	if data, ok := b.cache.Get(ctx, key); ok {
		return data, nil
	}

	buf := make([]byte, b.blockSize)
	n, err := b.inner.ReadAt(ctx, buf, blk*b.blockSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	block := buf[:n]
	if n > 0 {
		b.cache.Set(ctx, key, block)
	}
	return block, nil
}

// sectionReader adapts context-aware ReadAt to io.Reader for ReadRange.
type sectionReader struct {
	blob  *CachingBlob
	ctx   context.Context
	off   int64
	limit int64
}

func (r *sectionReader) Read(p []byte) (int, error) {
	if r.off >= r.limit {
		return 0, io.EOF
	}
	if remaining := r.limit - r.off; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := r.blob.ReadAt(r.ctx, p, r.off)
	r.off += int64(n)
	return n, err
}
