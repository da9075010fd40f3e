package filemgr

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/nabbar-internal/asyncframe/internal/filemgr/backend"
)

type memBackend struct {
	files map[string][]byte
}

func newMemBackend(files map[string][]byte) *memBackend { return &memBackend{files: files} }

func (b *memBackend) Open(_ context.Context, key string, create bool) (io.ReadCloser, error) {
	data, ok := b.files[key]
	if !ok {
		if create {
			return io.NopCloser(bytes.NewReader(nil)), nil
		}
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *memBackend) Stat(_ context.Context, key string) (backend.Info, error) {
	data, ok := b.files[key]
	if !ok {
		return backend.Info{}, errors.New("not found")
	}
	return backend.Info{Size: int64(len(data))}, nil
}

func (b *memBackend) Remove(_ context.Context, key string) error {
	delete(b.files, key)
	return nil
}

type recorder struct {
	mu   sync.Mutex
	done chan struct{}
	uid  uint64
	h    FileUID
	err  error
}

func newRecorder() *recorder { return &recorder{done: make(chan struct{}, 1)} }

func (r *recorder) NotifyStreamDone(requestUID uint64, handle FileUID, err error) {
	r.mu.Lock()
	r.uid, r.h, r.err = requestUID, handle, err
	r.mu.Unlock()
	r.done <- struct{}{}
}

func TestStreamNoWaitReturnsOkInline(t *testing.T) {
	b := newMemBackend(map[string][]byte{"a.txt": []byte("hello")})
	m := New(b, newRecorder())

	var out bytes.Buffer
	res, err := m.Stream(&out, "a.txt", 1, NoWait)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if res != Ok {
		t.Fatalf("expected Ok, got %v", res)
	}
	if out.String() != "hello" {
		t.Fatalf("got %q", out.String())
	}
}

func TestStreamAsyncDeliversWouldBlockThenSignal(t *testing.T) {
	b := newMemBackend(map[string][]byte{"a.txt": []byte("hello async")})
	rec := newRecorder()
	m := New(b, rec)

	var out bytes.Buffer
	res, err := m.Stream(&out, "a.txt", 42, 0)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if res != WouldBlock {
		t.Fatalf("expected WouldBlock, got %v", res)
	}

	select {
	case <-rec.done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for async completion signal")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.uid != 42 || rec.err != nil {
		t.Fatalf("got uid=%d err=%v", rec.uid, rec.err)
	}
	if out.String() != "hello async" {
		t.Fatalf("got %q", out.String())
	}
}

func TestStreamSchemeRouting(t *testing.T) {
	local := newMemBackend(map[string][]byte{"x": []byte("local")})
	remote := newMemBackend(map[string][]byte{"y": []byte("remote")})
	m := New(local, newRecorder())
	m.RegisterScheme("s3", remote)

	var out bytes.Buffer
	if _, err := m.Stream(&out, "s3://y", 1, NoWait); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if out.String() != "remote" {
		t.Fatalf("expected remote backend to serve s3:// keys, got %q", out.String())
	}
}

func TestStreamUnknownKeyFails(t *testing.T) {
	b := newMemBackend(nil)
	m := New(b, newRecorder())
	var out bytes.Buffer
	res, err := m.Stream(&out, "missing.txt", 1, NoWait)
	if res != Fail || err == nil {
		t.Fatalf("expected Fail with error, got res=%v err=%v", res, err)
	}
}
