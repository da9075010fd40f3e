// Package localfs is the plain-disk Backend, the only one that needs an
// open-descriptor cache since every other backend's client already pools
// connections internally.
package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nabbar-internal/asyncframe/internal/filemgr/backend"
)

// Backend roots every key under Root and keeps an LRU of recently opened
// descriptors (read-only, or read-write when opened with create) so a hot file re-requested shortly after doesn't
// pay a fresh open() — the teacher corpus's one genuinely idiomatic LRU
// dependency, per SPEC_FULL.md §4.9.
type Backend struct {
	Root string
	fds  *lru.Cache[string, *os.File]
}

func New(root string, cacheSize int) (*Backend, error) {
	c, err := lru.NewWithEvict[string, *os.File](cacheSize, func(_ string, f *os.File) { _ = f.Close() })
	if err != nil {
		return nil, err
	}
	return &Backend{Root: root, fds: c}, nil
}

func (b *Backend) path(key string) string { return filepath.Join(b.Root, filepath.Clean("/"+key)) }

// Open honors create by mapping it onto os.O_RDWR|os.O_CREATE ("create
// if absent"); without create the file is opened read-only. Open never
// truncates: it has no flag for it, so an existing file keeps its
// contents.
func (b *Backend) Open(_ context.Context, key string, create bool) (io.ReadCloser, error) {
	p := b.path(key)
	if f, ok := b.fds.Get(p); ok {
		if _, err := f.Seek(0, io.SeekStart); err == nil {
			return nopCloser{f}, nil
		}
		b.fds.Remove(p)
	}
	flags := os.O_RDONLY
	if create {
		flags = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(p, flags, 0o644)
	if err != nil {
		return nil, err
	}
	b.fds.Add(p, f)
	return nopCloser{f}, nil
}

func (b *Backend) Stat(_ context.Context, key string) (backend.Info, error) {
	fi, err := os.Stat(b.path(key))
	if err != nil {
		return backend.Info{}, err
	}
	return backend.Info{Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

func (b *Backend) Remove(_ context.Context, key string) error {
	p := b.path(key)
	b.fds.Remove(p)
	return os.Remove(p)
}

// nopCloser hands callers a Close that evicts nothing — the file stays
// resident in the LRU until it is evicted by a later insert or by
// Remove, not by the reader finishing.
type nopCloser struct{ *os.File }

func (nopCloser) Close() error { return nil }
