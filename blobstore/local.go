package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/flow/commons/internal/fs"
	"github.com/flow/commons/internal/mmap"
)

// LocalStore implements BlobStore on the local filesystem. Reads go
// through mmap, so snapshot decoding works directly on page cache
// without copying the payload into the heap.
type LocalStore struct {
	root string
	fsys fs.FileSystem
}

var _ BlobStore = (*LocalStore)(nil)

// NewLocalStore creates a store rooted at the given directory. The
// directory is created on the first write, not here.
func NewLocalStore(root string) *LocalStore {
	return NewLocalStoreFS(root, fs.Default)
}

// NewLocalStoreFS is like NewLocalStore but writes through the given
// filesystem. Tests use it to inject write faults.
func NewLocalStoreFS(root string, fsys fs.FileSystem) *LocalStore {
	return &LocalStore{root: root, fsys: fsys}
}

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Open opens a blob for reading via mmap.
func (s *LocalStore) Open(ctx context.Context, name string) (Blob, error) {
	m, err := mmap.Open(s.path(name))
	if err != nil {
		return nil, err
	}
	return &localBlob{m: m}, nil
}

// Create opens a blob for streaming writes. Data lands in a sibling
// .tmp file and is renamed into place on Close, so readers never see a
// half-written blob.
func (s *LocalStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	final := s.path(name)
	if dir := filepath.Dir(final); dir != "." {
		if err := s.fsys.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	tmp := final + ".tmp"
	f, err := s.fsys.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return &localWritableBlob{f: f, fsys: s.fsys, tmp: tmp, final: final}, nil
}

// Put writes a whole blob atomically.
func (s *LocalStore) Put(ctx context.Context, name string, data []byte) error {
	final := s.path(name)
	if dir := filepath.Dir(final); dir != "." {
		if err := s.fsys.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return fs.WriteAtomic(s.fsys, final, data, 0o644)
}

// Delete removes a blob. Missing blobs are ignored.
func (s *LocalStore) Delete(ctx context.Context, name string) error {
	if err := s.fsys.Remove(s.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// List walks the root and returns blob names under prefix, sorted.
// In-flight .tmp files are not listed.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string

	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := s.fsys.ReadDir(filepath.Join(s.root, filepath.FromSlash(dir)))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		for _, ent := range entries {
			rel := path.Join(dir, ent.Name())
			if ent.IsDir() {
				if err := walk(rel); err != nil {
					return err
				}
				continue
			}
			if strings.HasSuffix(ent.Name(), ".tmp") {
				continue
			}
			if strings.HasPrefix(rel, prefix) {
				names = append(names, rel)
			}
		}
		return nil
	}

	if err := walk(""); err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// localBlob serves reads from a memory mapping.
type localBlob struct {
	m *mmap.Mapping
}

var (
	_ Blob     = (*localBlob)(nil)
	_ Mappable = (*localBlob)(nil)
)

func (b *localBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return b.m.ReadAt(p, off)
}

func (b *localBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data := b.m.Bytes()
	if off < 0 || off > int64(len(data)) {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	end := off + length
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	// Zero-copy; the reader borrows the mapping and must be drained
	// before the blob is closed.
	return io.NopCloser(bytes.NewReader(data[off:end])), nil
}

func (b *localBlob) Size() int64 {
	return int64(b.m.Size())
}

func (b *localBlob) Bytes() ([]byte, error) {
	return b.m.Bytes(), nil
}

func (b *localBlob) Close() error {
	return b.m.Close()
}

type localWritableBlob struct {
	f      fs.File
	fsys   fs.FileSystem
	tmp    string
	final  string
	closed bool
}

func (w *localWritableBlob) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

func (w *localWritableBlob) Sync() error {
	return w.f.Sync()
}

func (w *localWritableBlob) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.f.Sync(); err != nil {
		w.f.Close()
		w.fsys.Remove(w.tmp)
		return err
	}
	if err := w.f.Close(); err != nil {
		w.fsys.Remove(w.tmp)
		return err
	}
	if err := w.fsys.Rename(w.tmp, w.final); err != nil {
		w.fsys.Remove(w.tmp)
		return err
	}
	return nil
}
