// Package bufpool pools the fixed-size byte buffers IPC datagrams and
// codec windows are built in, so the hot send/receive path doesn't churn
// the allocator on every buffer.
package bufpool

import "sync"

// Pool is a generic wrapper around sync.Pool, the shape used throughout
// the retrieved corpus for exactly this kind of reusable-buffer pool.
type Pool[T any] struct {
	internal sync.Pool
}

func New[T any](newFn func() T) *Pool[T] {
	return &Pool[T]{internal: sync.Pool{New: func() any { return newFn() }}}
}

func (p *Pool[T]) Get() T { return p.internal.Get().(T) }

func (p *Pool[T]) Put(item T) { p.internal.Put(item) }

// Bytes is the pool flavor the IPC talker and codec engine actually use:
// fixed-capacity byte slices reset to zero length on Get.
type Bytes struct {
	p *Pool[[]byte]
}

// NewBytes returns a Bytes pool whose buffers are capped at size bytes —
// large enough for one IPC datagram (spec.md §4.7.2's ~1.4KB ceiling)
// plus header and ack-list overhead.
func NewBytes(size int) *Bytes {
	return &Bytes{p: New(func() []byte { return make([]byte, 0, size) })}
}

func (b *Bytes) Get() []byte { return b.p.Get()[:0] }

func (b *Bytes) Put(buf []byte) { b.p.Put(buf) }
