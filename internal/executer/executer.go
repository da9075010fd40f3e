// Package executer implements the command executer of SPEC_FULL.md §4.8:
// a generic object that hosts request-uid-keyed in-flight message state
// and times it out on a deadline schedule, grounded on the same
// (index, generation) slot-reuse discipline internal/service uses for
// objects.
package executer

import (
	"container/heap"
	"errors"
	"sync"
	"time"
)

var (
	ErrUnknownRequest = errors.New("executer: unknown request uid")
	ErrTimedOut       = errors.New("executer: request timed out")
)

// RequestUID addresses one in-flight slot; Gen guards against a recycled
// index being mistaken for the request that originally owned it.
type RequestUID struct {
	Index uint32
	Gen   uint32
}

// Encode packs uid into the plain uint64 collaborators outside this
// package (internal/filemgr's requestUID parameter, a wire payload) carry
// it as, Index in the high 32 bits and Gen in the low 32.
func (uid RequestUID) Encode() uint64 {
	return uint64(uid.Index)<<32 | uint64(uid.Gen)
}

// DecodeRequestUID reverses Encode.
func DecodeRequestUID(v uint64) RequestUID {
	return RequestUID{Index: uint32(v >> 32), Gen: uint32(v)}
}

// Receiver is implemented by callers that want in-flight request
// results delivered as they complete (the normal case: an Object that
// forwards to itself via a signal).
type Receiver interface {
	ReceiveStream(uid RequestUID, r StreamResult)
	ReceiveString(uid RequestUID, s string, err error)
	ReceiveNumber(uid RequestUID, n int64, err error)
	ReceiveError(uid RequestUID, err error)
	ReceiveCommand(uid RequestUID, cmd any, err error)
}

// StreamResult is the payload ReceiveStream delivers: a handle to an
// embedded stream already pumped into the caller's sink, or an error.
type StreamResult struct {
	Handle uint64
	Err    error
}

type slot struct {
	gen      uint32
	msg      any
	deadline time.Time
	heapIdx  int
	active   bool
}

// Executer hosts the request-uid-keyed state of SPEC_FULL.md §4.8.
type Executer struct {
	mu       sync.Mutex
	slots    []*slot
	free     []uint32
	deadline deadlineHeap
	recv     Receiver
}

func New(recv Receiver) *Executer {
	return &Executer{recv: recv}
}

// Signal registers msg under a fresh RequestUID with the given timeout
// and returns it to the caller to correlate a later reply.
func (e *Executer) Signal(msg any, timeout time.Duration) RequestUID {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.allocLocked()
	s := e.slots[idx]
	s.gen++
	s.msg = msg
	s.active = true
	s.deadline = time.Now().Add(timeout)
	heap.Push(&e.deadline, s)

	return RequestUID{Index: idx, Gen: s.gen}
}

func (e *Executer) allocLocked() uint32 {
	if n := len(e.free); n > 0 {
		idx := e.free[n-1]
		e.free = e.free[:n-1]
		return idx
	}
	e.slots = append(e.slots, &slot{heapIdx: -1})
	return uint32(len(e.slots) - 1)
}

// lookupLocked validates uid against the slot's current generation,
// returning (nil, false) for a Gone request — stale or already
// completed/timed-out uids are silent no-ops, mirroring object.Signal's
// at-most-once semantics.
func (e *Executer) lookupLocked(uid RequestUID) (*slot, bool) {
	if int(uid.Index) >= len(e.slots) {
		return nil, false
	}
	s := e.slots[uid.Index]
	if !s.active || s.gen != uid.Gen {
		return nil, false
	}
	return s, true
}

func (e *Executer) retireLocked(uid RequestUID, s *slot) {
	s.active = false
	s.msg = nil
	if s.heapIdx >= 0 {
		heap.Remove(&e.deadline, s.heapIdx)
	}
	e.free = append(e.free, uid.Index)
}

func (e *Executer) ReceiveStream(uid RequestUID, handle uint64, err error) {
	e.mu.Lock()
	s, ok := e.lookupLocked(uid)
	if !ok {
		e.mu.Unlock()
		return
	}
	e.retireLocked(uid, s)
	e.mu.Unlock()
	e.recv.ReceiveStream(uid, StreamResult{Handle: handle, Err: err})
}

func (e *Executer) ReceiveString(uid RequestUID, v string, err error) {
	if !e.completeLocked(uid) {
		return
	}
	e.recv.ReceiveString(uid, v, err)
}

func (e *Executer) ReceiveNumber(uid RequestUID, v int64, err error) {
	if !e.completeLocked(uid) {
		return
	}
	e.recv.ReceiveNumber(uid, v, err)
}

func (e *Executer) ReceiveError(uid RequestUID, err error) {
	if !e.completeLocked(uid) {
		return
	}
	e.recv.ReceiveError(uid, err)
}

func (e *Executer) ReceiveCommand(uid RequestUID, cmd any, err error) {
	if !e.completeLocked(uid) {
		return
	}
	e.recv.ReceiveCommand(uid, cmd, err)
}

func (e *Executer) completeLocked(uid RequestUID) bool {
	e.mu.Lock()
	s, ok := e.lookupLocked(uid)
	if !ok {
		e.mu.Unlock()
		return false
	}
	e.retireLocked(uid, s)
	e.mu.Unlock()
	return true
}

// Pending returns the message stashed for uid, or nil if the uid is Gone.
func (e *Executer) Pending(uid RequestUID) any {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.lookupLocked(uid)
	if !ok {
		return nil
	}
	return s.msg
}

// CheckTimeouts pops every slot whose deadline has passed and reports it
// to the Receiver as a timed-out error, per SPEC_FULL.md §4.8's deadline
// bookkeeping. Intended to be called periodically by the owning object's
// Execute tick.
func (e *Executer) CheckTimeouts(now time.Time) {
	for {
		e.mu.Lock()
		if e.deadline.Len() == 0 || e.deadline[0].deadline.After(now) {
			e.mu.Unlock()
			return
		}
		s := heap.Pop(&e.deadline).(*slot)
		var uid RequestUID
		for i, sl := range e.slots {
			if sl == s {
				uid = RequestUID{Index: uint32(i), Gen: s.gen}
				break
			}
		}
		active := s.active
		if active {
			e.retireLocked(uid, s)
		}
		e.mu.Unlock()
		if active {
			e.recv.ReceiveError(uid, ErrTimedOut)
		}
	}
}

// --- deadline-sorted heap of slots ---

type deadlineHeap []*slot

func (h deadlineHeap) Len() int           { return len(h) }
func (h deadlineHeap) Less(i, j int) bool { return h[i].deadline.Before(h[j].deadline) }
func (h deadlineHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIdx = i
	h[j].heapIdx = j
}
func (h *deadlineHeap) Push(x any) {
	s := x.(*slot)
	s.heapIdx = len(*h)
	*h = append(*h, s)
}
func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	s := old[n-1]
	s.heapIdx = -1
	*h = old[:n-1]
	return s
}
