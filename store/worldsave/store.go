package worldsave

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flow/commons/blobstore"
	"github.com/flow/commons/intmap"
	"github.com/flow/commons/store/block"
)

// ErrNoEntry is returned by Load when the latest committed generation
// has no entry under the requested name.
var ErrNoEntry = errors.New("worldsave: no such entry")

// Store persists backing arrays through a blob store in committed
// generations.
//
// Saves stage entries for the next generation; Commit publishes them.
// Concurrent Saves and Loads are safe. Commit must not run concurrently
// with Save: callers finish a save pass (or a SaveBatch) before
// committing it.
type Store struct {
	blobs blobstore.BlobStore
	opts  options

	mu      sync.Mutex
	gen     uint64           // latest committed generation, 0 when none
	entries map[string]Entry // committed state, by entry name
	pending map[string]Entry // saved since the last commit

	chunks *intmap.Sharded[string] // packed chunk coords -> entry name
}

// Open binds a store to blobs and resolves the CURRENT pointer to the
// latest manifest. A missing pointer means a fresh world at generation
// zero.
func Open(ctx context.Context, blobs blobstore.BlobStore, opts ...Option) (*Store, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	s := &Store{
		blobs:   blobs,
		opts:    o,
		entries: make(map[string]Entry),
		pending: make(map[string]Entry),
		chunks:  intmap.New[string](),
	}
	if err := s.loadCurrent(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadCurrent(ctx context.Context) error {
	ptr, err := blobstore.ReadAll(ctx, s.blobs, currentName)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("worldsave: read %s: %w", currentName, err)
	}
	name := strings.TrimSpace(string(ptr))
	if name == "" {
		return nil
	}
	raw, err := blobstore.ReadAll(ctx, s.blobs, name)
	if err != nil {
		return fmt.Errorf("worldsave: read manifest %s: %w", name, err)
	}
	m, err := decodeManifest(raw)
	if err != nil {
		return err
	}
	s.gen = m.Generation
	for _, e := range m.Entries {
		s.entries[e.Name] = e
		s.indexChunk(e.Name)
	}
	return nil
}

// Generation returns the latest committed generation, zero when none.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Names returns the committed entry names in sorted order.
func (s *Store) Names() []string {
	s.mu.Lock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	s.mu.Unlock()
	sort.Strings(names)
	return names
}

// Entry returns the committed manifest entry for name.
func (s *Store) Entry(name string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	return e, ok
}

// Pending returns the number of saves awaiting commit.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Save encodes arr and writes it as name's blob for the next
// generation. The entry becomes visible to Load only after Commit.
func (s *Store) Save(ctx context.Context, name string, arr block.BackingArray) error {
	start := time.Now()
	snap := block.TakeSnapshot(arr)
	data, err := block.MarshalSnapshot(snap, s.opts.compression)
	if err != nil {
		s.opts.collector.RecordSave(0, time.Since(start), err)
		return fmt.Errorf("worldsave: encode %s: %w", name, err)
	}
	if err := s.throttle(ctx, len(data)); err != nil {
		s.opts.collector.RecordSave(0, time.Since(start), err)
		return err
	}

	s.mu.Lock()
	next := s.gen + 1
	s.mu.Unlock()
	blob := entryBlobName(name, next)

	err = s.blobs.Put(ctx, blob, data)
	s.opts.collector.RecordSave(len(data), time.Since(start), err)
	s.opts.logger.LogSave(ctx, name, int64(len(data)), err)
	if err != nil {
		return fmt.Errorf("worldsave: write %s: %w", blob, err)
	}

	s.mu.Lock()
	s.pending[name] = Entry{
		Name:         name,
		Blob:         blob,
		Length:       snap.Length,
		Width:        snap.Width,
		PaletteUsage: len(snap.Palette),
		Bytes:        int64(len(data)),
	}
	s.mu.Unlock()
	s.indexChunk(name)
	return nil
}

// Load decodes name's array from the latest committed generation.
func (s *Store) Load(ctx context.Context, name string) (block.BackingArray, error) {
	start := time.Now()
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoEntry, name)
	}

	data, err := blobstore.ReadAll(ctx, s.blobs, e.Blob)
	if err != nil {
		s.opts.collector.RecordLoad(0, time.Since(start), err)
		s.opts.logger.LogLoad(ctx, name, err)
		return nil, fmt.Errorf("worldsave: read %s: %w", e.Blob, err)
	}
	if err := s.throttle(ctx, len(data)); err != nil {
		s.opts.collector.RecordLoad(len(data), time.Since(start), err)
		return nil, err
	}

	snap, err := block.UnmarshalSnapshot(data)
	if err != nil {
		s.opts.collector.RecordLoad(len(data), time.Since(start), err)
		s.opts.logger.LogLoad(ctx, name, err)
		return nil, fmt.Errorf("worldsave: decode %s: %w", e.Blob, err)
	}
	arr, err := snap.Restore()
	s.opts.collector.RecordLoad(len(data), time.Since(start), err)
	s.opts.logger.LogLoad(ctx, name, err)
	if err != nil {
		return nil, fmt.Errorf("worldsave: restore %s: %w", e.Blob, err)
	}
	return arr, nil
}

// SaveBatch saves every array in arrays concurrently, bounded by
// WithConcurrency. On error some entries may have been staged anyway;
// none become visible before Commit either way.
func (s *Store) SaveBatch(ctx context.Context, arrays map[string]block.BackingArray) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.concurrency)
	for name, arr := range arrays {
		g.Go(func() error {
			return s.Save(gctx, name, arr)
		})
	}
	return g.Wait()
}

// LoadBatch loads the named arrays concurrently, bounded by
// WithConcurrency. It fails on the first error, including ErrNoEntry
// for unknown names.
func (s *Store) LoadBatch(ctx context.Context, names []string) (map[string]block.BackingArray, error) {
	out := make(map[string]block.BackingArray, len(names))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.concurrency)
	for _, name := range names {
		g.Go(func() error {
			arr, err := s.Load(gctx, name)
			if err != nil {
				return err
			}
			mu.Lock()
			out[name] = arr
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Commit publishes everything saved since the last commit as the next
// generation: it writes the manifest blob first, then swaps the
// CURRENT pointer to it. Entries from earlier generations that were
// not re-saved carry over unchanged. With nothing pending it returns
// the current generation untouched.
//
// When the blob store detects a racing committer (ErrConcurrentModification
// from blobstore/s3.CommitStore), the staged saves are kept so the
// caller can re-open, re-save and retry.
func (s *Store) Commit(ctx context.Context) (uint64, error) {
	start := time.Now()
	s.mu.Lock()
	if len(s.pending) == 0 {
		gen := s.gen
		s.mu.Unlock()
		return gen, nil
	}
	next := s.gen + 1
	merged := make(map[string]Entry, len(s.entries)+len(s.pending))
	for k, v := range s.entries {
		merged[k] = v
	}
	for k, v := range s.pending {
		merged[k] = v
	}
	s.mu.Unlock()

	entries := make([]Entry, 0, len(merged))
	for _, e := range merged {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	m := &Manifest{Generation: next, CreatedAt: time.Now().UTC(), Entries: entries}
	raw, err := encodeManifest(m)
	if err != nil {
		s.opts.collector.RecordCommit(next, len(entries), time.Since(start), err)
		return 0, fmt.Errorf("worldsave: encode manifest: %w", err)
	}

	name := manifestName(next)
	if err := s.blobs.Put(ctx, name, raw); err != nil {
		s.opts.collector.RecordCommit(next, len(entries), time.Since(start), err)
		s.opts.logger.LogCommit(ctx, next, len(entries), err)
		return 0, fmt.Errorf("worldsave: write manifest %s: %w", name, err)
	}
	if err := s.blobs.Put(ctx, currentName, []byte(name)); err != nil {
		// The pointer still names the previous generation; the new
		// manifest stays behind unreferenced.
		s.opts.collector.RecordCommit(next, len(entries), time.Since(start), err)
		s.opts.logger.LogCommit(ctx, next, len(entries), err)
		return 0, fmt.Errorf("worldsave: publish %s: %w", currentName, err)
	}

	s.mu.Lock()
	s.gen = next
	s.entries = merged
	s.pending = make(map[string]Entry)
	s.mu.Unlock()

	s.opts.collector.RecordCommit(next, len(entries), time.Since(start), nil)
	s.opts.logger.LogCommit(ctx, next, len(entries), nil)
	return next, nil
}

// throttle admits n encoded bytes through the configured limiter.
// Requests beyond the burst are sliced so blobs of any size pass.
func (s *Store) throttle(ctx context.Context, n int) error {
	lim := s.opts.limiter
	if lim == nil || n <= 0 {
		return nil
	}
	burst := lim.Burst()
	for n > 0 {
		take := n
		if take > burst {
			take = burst
		}
		if err := lim.WaitN(ctx, take); err != nil {
			return fmt.Errorf("worldsave: rate limit: %w", err)
		}
		n -= take
	}
	return nil
}
