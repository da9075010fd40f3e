// Package service implements the object container described in
// SPEC_FULL.md §4.3: a dense vector of objects keyed by index, a free-slot
// stack, a sharded mutex pool so concurrent signal deliveries to different
// objects rarely contend, and the broadcast/stop protocol.
package service

import (
	"errors"
	"sync"

	"github.com/nabbar-internal/asyncframe/internal/handle"
	"github.com/nabbar-internal/asyncframe/internal/object"
)

type State int32

const (
	Running State = iota
	Stopping
	Stopped
)

type slot struct {
	obj *object.Object
	uid handle.UID
}

// Service is a container keyed by object index, per SPEC_FULL.md §3/§4.3.
type Service struct {
	Idx    uint32
	Layout handle.Layout

	mu    sync.Mutex
	cond  *sync.Cond
	state State

	slots []slot
	free  []uint32

	shards []sync.Mutex
}

// New creates a Service with a shard mutex pool sized to at least
// minShards (rounded up to the next power of two is not required; any
// positive size works, the pool just indexes into it modulo its length).
func New(idx uint32, layout handle.Layout, minShards int) *Service {
	if minShards < 1 {
		minShards = 1
	}
	s := &Service{
		Idx:    idx,
		Layout: layout,
		shards: make([]sync.Mutex, minShards),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *Service) shardFor(idx uint32) *sync.Mutex {
	return &s.shards[int(idx)%len(s.shards)]
}

// Insert registers obj, allocates it an index and a handle, and binds its
// shard mutex. Returns an error if the service is not Running.
func (s *Service) Insert(obj *object.Object) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running {
		return 0, errNotRunning
	}

	var idx uint32
	if n := len(s.free); n > 0 {
		idx = s.free[n-1]
		s.free = s.free[:n-1]
		s.slots[idx].uid++ // bump generation: invariant (b) in SPEC_FULL.md §3
	} else {
		idx = uint32(len(s.slots))
		s.slots = append(s.slots, slot{uid: 1})
	}

	s.slots[idx].obj = obj
	uid := s.slots[idx].uid
	obj.H = handle.Handle{Full: s.Layout.Encode(s.Idx, idx), UID: uid}
	obj.BindMutex(s.shardFor(idx))
	return idx, nil
}

// Remove unregisters obj, frees its slot, and wakes any stop() waiter.
func (s *Service) Remove(obj *object.Object) {
	idx := s.Layout.DecodeIndex(obj.H.Full)

	s.mu.Lock()
	if int(idx) < len(s.slots) && s.slots[idx].obj == obj {
		s.slots[idx].obj = nil
		s.free = append(s.free, idx)
	}
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Lookup verifies the handle's uid against the slot's current occupant;
// mismatch or empty slot returns (nil, false), never an error, per
// SPEC_FULL.md §4.1.
func (s *Service) Lookup(h handle.Handle) (*object.Object, bool) {
	idx := s.Layout.DecodeIndex(h.Full)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Running {
		return nil, false
	}
	if int(idx) >= len(s.slots) {
		return nil, false
	}
	sl := s.slots[idx]
	if sl.obj == nil || sl.uid != h.UID {
		return nil, false
	}
	return sl.obj, true
}

func (s *Service) Mutex(obj *object.Object) *sync.Mutex { return obj.Mutex() }

func (s *Service) UID(obj *object.Object) handle.UID {
	idx := s.Layout.DecodeIndex(obj.H.Full)
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(idx) >= len(s.slots) {
		return 0
	}
	return s.slots[idx].uid
}

// Signal resolves h and forwards to the target object, returning whether a
// wakeup is owed. A Gone handle is a silent no-op (needsWake=false, no
// error) per SPEC_FULL.md §4.1/§7.
func (s *Service) Signal(h handle.Handle, mask object.SignalMask) (needsWake bool) {
	obj, ok := s.Lookup(h)
	if !ok {
		return false
	}
	return obj.Signal(mask)
}

func (s *Service) SignalMsg(h handle.Handle, msg object.Message) (needsWake bool) {
	obj, ok := s.Lookup(h)
	if !ok {
		return false
	}
	return obj.SignalMessage(msg)
}

// SignalAll broadcasts mask to every live object in index order, under the
// service lock, exactly as SPEC_FULL.md §4.3 specifies. It returns the
// handles that reported needsWake so the caller (Manager) can raise them.
func (s *Service) SignalAll(mask object.SignalMask) []handle.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	var woken []handle.Handle
	for i := range s.slots {
		sl := s.slots[i]
		if sl.obj == nil {
			continue
		}
		if sl.obj.Signal(mask) {
			woken = append(woken, sl.obj.H)
		}
	}
	return woken
}

// SignalAllMsg delivers the *same* message instance to every live object.
// Messages used this way MUST be internally thread-safe: SPEC_FULL.md §4.3
// resolves Open Question (a) of spec.md §9 as "shared, immutable" — no
// per-target cloning is performed.
func (s *Service) SignalAllMsg(msg object.Message) []handle.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	var woken []handle.Handle
	for i := range s.slots {
		sl := s.slots[i]
		if sl.obj == nil {
			continue
		}
		if sl.obj.SignalMessage(msg) {
			woken = append(woken, sl.obj.H)
		}
	}
	return woken
}

func (s *Service) Visit(v object.Visitor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.slots {
		if s.slots[i].obj != nil {
			s.slots[i].obj.Accept(v)
		}
	}
}

func (s *Service) ObjectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveCount()
}

func (s *Service) liveCount() int {
	n := 0
	for i := range s.slots {
		if s.slots[i].obj != nil {
			n++
		}
	}
	return n
}

func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stop transitions Running -> Stopping, broadcasts S_KILL to every
// contained object, and, if wait is true, blocks until every object has
// unregistered, then transitions to Stopped. Post-stop, Lookup always
// returns Gone, per SPEC_FULL.md §4.3 and the P1/S6 testable properties.
func (s *Service) Stop(wait bool) []handle.Handle {
	s.mu.Lock()
	if s.state == Stopped {
		s.mu.Unlock()
		return nil
	}
	s.state = Stopping
	s.mu.Unlock()

	woken := s.SignalAll(object.SKill)

	if wait {
		s.mu.Lock()
		for s.liveCount() > 0 {
			s.cond.Wait()
		}
		s.state = Stopped
		s.mu.Unlock()
	}
	return woken
}

var errNotRunning = errors.New("service: not running")
