// Package selector implements the per-goroutine event loops described in
// SPEC_FULL.md §4.4: a shared pool/worker-growth abstraction specialized by
// four flavors (object/timer, TCP connection, TCP listener, UDP talker),
// all built on goroutines and channels rather than raw epoll — the
// idiomatic Go substitute for the kernel primitive named in spec.md Design
// Notes §9.
package selector

import (
	"sync"
	"sync/atomic"

	"github.com/nabbar-internal/asyncframe/internal/object"
)

// TimeReadPeriod is how many non-blocking loop iterations a worker amortizes
// a clock read over (SPEC_FULL.md §4.4 loop discipline, N≈128).
const TimeReadPeriod = 128

// Worker is satisfied by every selector flavor's per-goroutine loop.
type Worker interface {
	// Push assigns obj a slot in this worker if capacity remains; ok=false
	// means the worker is full and the Pool should try another or spawn
	// one.
	Push(obj *object.Object) (slot int32, ok bool)
	// Raise wakes the given slot (or, with slot<0, forces a full rescan).
	Raise(slot int32)
	// Run is the worker's goroutine body; it returns when stop is closed.
	Run(stop <-chan struct{})
	// Len reports the number of objects currently resident.
	Len() int
}

// WorkerFactory constructs a new, empty Worker with the given pool-local id
// and per-worker capacity.
type WorkerFactory func(poolID int32, capacity int) Worker

// Pool grows workers on demand up to Cap, pushing newly added objects into
// the first worker with room and spawning another when all are full, per
// SPEC_FULL.md §4.4.
type Pool struct {
	Cap      int // max workers; 0 means unbounded
	Capacity int // per-worker object capacity

	newWorker WorkerFactory

	mu      sync.Mutex
	workers []Worker
	stop    chan struct{}
	wg      sync.WaitGroup

	nextID atomic.Int32
}

func NewPool(cap, perWorkerCapacity int, f WorkerFactory) *Pool {
	return &Pool{
		Cap:       cap,
		Capacity:  perWorkerCapacity,
		newWorker: f,
		stop:      make(chan struct{}),
	}
}

// Push assigns obj to a worker, spawning a new one if every existing
// worker is at capacity and the pool has not hit its cap. It stores the
// resulting (poolID, slot) back onto obj as its residency, so
// Manager.Raise can target it directly.
func (p *Pool) Push(obj *object.Object) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, w := range p.workers {
		if slot, ok := w.Push(obj); ok {
			obj.SetResidency(object.Residency{PoolID: int32(i), Slot: slot})
			return true
		}
	}
	if p.Cap > 0 && len(p.workers) >= p.Cap {
		return false
	}
	w := p.newWorker(p.nextID.Add(1)-1, p.Capacity)
	slot, ok := w.Push(obj)
	p.workers = append(p.workers, w)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		w.Run(p.stop)
	}()
	if !ok {
		return false
	}
	obj.SetResidency(object.Residency{PoolID: int32(len(p.workers) - 1), Slot: slot})
	return true
}

// Raise routes to the worker named by poolID and wakes slot.
func (p *Pool) Raise(poolID, slot int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if int(poolID) < 0 || int(poolID) >= len(p.workers) {
		return
	}
	p.workers[poolID].Raise(slot)
}

func (p *Pool) NumWorkers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

func (p *Pool) Stop() {
	close(p.stop)
	p.wg.Wait()
}
