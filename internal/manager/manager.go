// Package manager implements the root directory of services and pools
// described in SPEC_FULL.md §4.5. Go has no thread-locals, so the
// "thread-local singleton" of spec.md Design Notes §9 maps to a
// context.Context-carried *Manager plus a package-level fallback pointer
// installed by PrepareGoroutine, mirroring the source's
// prepare_thread/unprepare_thread split.
package manager

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/nabbar-internal/asyncframe/internal/handle"
	"github.com/nabbar-internal/asyncframe/internal/object"
	"github.com/nabbar-internal/asyncframe/internal/selector"
	"github.com/nabbar-internal/asyncframe/internal/service"
)

type ctxKey struct{}

// Manager is the process-wide directory of services and selector pools.
// Services are addressable by the small high bits of a FullID (§3), so
// adding one is a cheap append or reserved-slot fill — but it must be
// published before the service accepts signals, to avoid a concurrent
// handle referring to an index whose pointer is not yet visible
// (SPEC_FULL.md §4.5).
type Manager struct {
	Layout handle.Layout

	mu       sync.RWMutex
	services []*service.Service // index == service index in FullID
	pools    map[int32]*selector.Pool
}

func New(layout handle.Layout) *Manager {
	return &Manager{Layout: layout, pools: make(map[int32]*selector.Pool)}
}

// AddService publishes svc at its own Idx, growing the services vector if
// needed. The publish happens under the write lock so a concurrent Signal
// never observes a nil entry at an index that is about to be filled.
func (m *Manager) AddService(svc *service.Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for int(svc.Idx) >= len(m.services) {
		m.services = append(m.services, nil)
	}
	m.services[svc.Idx] = svc
}

func (m *Manager) Service(idx uint32) *service.Service {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if int(idx) >= len(m.services) {
		return nil
	}
	return m.services[idx]
}

// AddPool registers a selector pool under poolID, the id objects' Residency
// carries back so Raise can route to it.
func (m *Manager) AddPool(poolID int32, pool *selector.Pool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools[poolID] = pool
}

// Signal decodes h, forwards to the owning Service, and — if the inner
// call reports needsWake — calls Raise to deliver the kernel-level (here:
// channel-level) wakeup, per SPEC_FULL.md §4.5.
func (m *Manager) Signal(h handle.Handle, mask object.SignalMask) {
	svc := m.Service(m.Layout.DecodeService(h.Full))
	if svc == nil {
		return // Gone: no such service, propagate as a silent no-op
	}
	obj, ok := svc.Lookup(h)
	if !ok {
		return
	}
	if obj.Signal(mask) {
		m.Raise(obj)
	}
}

func (m *Manager) SignalMsg(h handle.Handle, msg object.Message) {
	svc := m.Service(m.Layout.DecodeService(h.Full))
	if svc == nil {
		return
	}
	obj, ok := svc.Lookup(h)
	if !ok {
		return
	}
	if obj.SignalMessage(msg) {
		m.Raise(obj)
	}
}

// Raise reads obj's residency and routes to the matching pool's Raise.
func (m *Manager) Raise(obj *object.Object) {
	r := obj.Residency()
	m.mu.RLock()
	pool, ok := m.pools[r.PoolID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	pool.Raise(r.PoolID, r.Slot)
}

func (m *Manager) Mutex(obj *object.Object) *sync.Mutex { return obj.Mutex() }

func (m *Manager) UID(obj *object.Object) handle.UID {
	svc := m.Service(m.Layout.DecodeService(obj.H.Full))
	if svc == nil {
		return 0
	}
	return svc.UID(obj)
}

// --- goroutine-local-ish installation, per SPEC_FULL.md §9 ---

var current atomic.Pointer[Manager]

// PrepareGoroutine installs m as the fallback Manager for call sites that
// cannot thread a context.Context. The fallback is one package-level
// pointer shared by every goroutine: a later call replaces it for all of
// them, and UnprepareGoroutine clears it for all of them.
func PrepareGoroutine(m *Manager) { current.Store(m) }

func UnprepareGoroutine() { current.Store(nil) }

// Current returns the fallback Manager installed by PrepareGoroutine. It
// is nil if none was installed, exactly mirroring the source's
// thread-local pointer being unset outside prepare_thread/unprepare_thread.
func Current() *Manager { return current.Load() }

// WithContext returns a context carrying m, the preferred way to pass a
// Manager across goroutine boundaries that do thread a context.
func WithContext(ctx context.Context, m *Manager) context.Context {
	return context.WithValue(ctx, ctxKey{}, m)
}

// FromContext returns the Manager carried by ctx, falling back to the
// package-level pointer installed by PrepareGoroutine.
func FromContext(ctx context.Context) *Manager {
	if m, ok := ctx.Value(ctxKey{}).(*Manager); ok && m != nil {
		return m
	}
	return Current()
}
