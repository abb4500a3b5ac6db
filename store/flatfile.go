package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/flow/commons/internal/fs"
)

// FlatFileStore is a SimpleStore persisted as a key=value line file. Saves
// go through a temp file and rename, so readers of the path never observe
// a partially written store.
//
// Keys must not contain '=' or line breaks; encoded values must fit on one
// line.
type FlatFileStore[T comparable] struct {
	*MemoryStore[T]

	path   string
	fsys   fs.FileSystem
	encode func(T) (string, error)
	decode func(string) (T, error)

	saveMu sync.Mutex
}

var _ SimpleStore[int] = (*FlatFileStore[int])(nil)

// NewFlatFileStore returns a store persisted at path using the given value
// codec. The store starts empty; call Load to read an existing file.
func NewFlatFileStore[T comparable](path string, encode func(T) (string, error), decode func(string) (T, error)) *FlatFileStore[T] {
	return NewFlatFileStoreFS(path, fs.Default, encode, decode)
}

// NewFlatFileStoreFS is NewFlatFileStore with an explicit file system, for
// fault injection in tests.
func NewFlatFileStoreFS[T comparable](path string, fsys fs.FileSystem, encode func(T) (string, error), decode func(string) (T, error)) *FlatFileStore[T] {
	return &FlatFileStore[T]{
		MemoryStore: NewMemoryStore[T](),
		path:        path,
		fsys:        fsys,
		encode:      encode,
		decode:      decode,
	}
}

// Path returns the backing file path.
func (s *FlatFileStore[T]) Path() string { return s.path }

// Save writes all entries to the backing file, sorted by key so repeated
// saves of the same contents produce identical bytes.
func (s *FlatFileStore[T]) Save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	entries := s.Entries()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	var b strings.Builder
	for _, e := range entries {
		if strings.ContainsAny(e.Key, "=\n\r") {
			return fmt.Errorf("store: key %q contains a reserved character", e.Key)
		}
		encoded, err := s.encode(e.Value)
		if err != nil {
			return fmt.Errorf("store: encode value for key %q: %w", e.Key, err)
		}
		if strings.ContainsAny(encoded, "\n\r") {
			return fmt.Errorf("store: encoded value for key %q spans lines", e.Key)
		}
		b.WriteString(e.Key)
		b.WriteByte('=')
		b.WriteString(encoded)
		b.WriteByte('\n')
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("store: create directory %q: %w", dir, err)
		}
	}
	if err := fs.WriteAtomic(s.fsys, s.path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("store: save %q: %w", s.path, err)
	}
	return nil
}

// Load replaces the contents with the backing file's entries. A missing
// file loads an empty store.
func (s *FlatFileStore[T]) Load() error {
	data, err := fs.ReadFile(s.fsys, s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.Clear()
			return nil
		}
		return fmt.Errorf("store: load %q: %w", s.path, err)
	}

	forward := make(map[string]T)
	reverse := make(map[T]string)
	for n, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		key, encoded, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("store: %s:%d: missing separator", s.path, n+1)
		}
		value, err := s.decode(encoded)
		if err != nil {
			return fmt.Errorf("store: %s:%d: %w", s.path, n+1, err)
		}
		forward[key] = value
		reverse[value] = key
	}

	s.mu.Lock()
	s.forward = forward
	s.reverse = reverse
	s.mu.Unlock()
	return nil
}
