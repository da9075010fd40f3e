// Package objsel implements the "object selector" flavor of SPEC_FULL.md
// §4.4: a timer/queue-only loop used for services, command executers, the
// file manager, and any other non-I/O object. Wakeups are delivered over a
// buffered channel carrying the slot index — the Go-idiomatic analogue of
// the source's self-pipe-of-bytes.
package objsel

import (
	"time"

	"github.com/nabbar-internal/asyncframe/internal/adebug"
	"github.com/nabbar-internal/asyncframe/internal/alog"
	"github.com/nabbar-internal/asyncframe/internal/object"
	"github.com/nabbar-internal/asyncframe/internal/selector"
)

// rescanAll is the sentinel slot index meaning "a signal's target slot is
// unknown (or the wake channel would overflow): do a full scan" per
// SPEC_FULL.md §4.4.
const rescanAll = -1

type hostedSlot struct {
	obj      *object.Object
	deadline time.Time
	queued   bool
	free     bool
}

// Worker is the per-goroutine loop for the object selector flavor.
type Worker struct {
	poolID int32
	cap    int

	slots []hostedSlot
	free  []int32

	wake chan int32 // buffered; carries a slot index or rescanAll

	ready []int32 // FIFO ready queue, drained in one bounded pass per tick
}

func New(poolID int32, capacity int) selector.Worker {
	return &Worker{
		poolID: poolID,
		cap:    capacity,
		wake:   make(chan int32, capacity+1),
	}
}

func (w *Worker) Len() int {
	n := 0
	for i := range w.slots {
		if !w.slots[i].free {
			n++
		}
	}
	return n
}

func (w *Worker) Push(obj *object.Object) (int32, bool) {
	if len(w.free) > 0 {
		idx := w.free[len(w.free)-1]
		w.free = w.free[:len(w.free)-1]
		w.slots[idx] = hostedSlot{obj: obj}
		w.enqueueReady(idx)
		return idx, true
	}
	if w.cap > 0 && len(w.slots) >= w.cap {
		return 0, false
	}
	idx := int32(len(w.slots))
	w.slots = append(w.slots, hostedSlot{obj: obj})
	w.enqueueReady(idx)
	return idx, true
}

func (w *Worker) enqueueReady(idx int32) {
	if w.slots[idx].queued {
		return
	}
	w.slots[idx].queued = true
	w.ready = append(w.ready, idx)
}

func (w *Worker) Raise(slot int32) {
	select {
	case w.wake <- slot:
	default:
		// wake channel saturated: fall back to a full rescan rather than
		// blocking the caller, per SPEC_FULL.md §4.4 cross-pool wakeups.
		select {
		case w.wake <- rescanAll:
		default:
		}
	}
}

// Run is the worker's goroutine body. It implements the loop discipline of
// SPEC_FULL.md §4.4: amortized clock reads, deadline-gated full scans, and
// bounded-work FIFO ready-queue drains.
func (w *Worker) Run(stop <-chan struct{}) {
	var (
		iter         int
		now          time.Time
		nextDeadline time.Time
	)
	now = time.Now()

	for {
		iter++
		if iter%selector.TimeReadPeriod == 0 {
			now = time.Now()
		}

		if !nextDeadline.IsZero() && !now.Before(nextDeadline) {
			w.scanDeadlines(now)
		}

		w.drainReadyOnce(&now)

		nextDeadline = w.earliestDeadline()

		timeout := computeTimeout(now, nextDeadline)
		if len(w.ready) > 0 {
			timeout = 0 // an ExecOK slot was requeued: run it next pass
		}
		select {
		case <-stop:
			return
		case slot := <-w.wake:
			if slot < 0 {
				w.rescanAll()
			} else if int(slot) < len(w.slots) && !w.slots[slot].free {
				w.enqueueReady(slot)
			}
			now = time.Now()
		case <-time.After(timeout):
			now = time.Now()
		}
	}
}

func computeTimeout(now, deadline time.Time) time.Duration {
	if deadline.IsZero() {
		return time.Hour // stand-in for "block indefinitely"
	}
	d := deadline.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

func (w *Worker) earliestDeadline() time.Time {
	var earliest time.Time
	for i := range w.slots {
		if w.slots[i].free || w.slots[i].deadline.IsZero() {
			continue
		}
		if earliest.IsZero() || w.slots[i].deadline.Before(earliest) {
			earliest = w.slots[i].deadline
		}
	}
	return earliest
}

func (w *Worker) scanDeadlines(now time.Time) {
	for i := range w.slots {
		if w.slots[i].free || w.slots[i].deadline.IsZero() {
			continue
		}
		if !now.Before(w.slots[i].deadline) {
			w.enqueueReady(int32(i))
		}
	}
}

func (w *Worker) rescanAll() {
	for i := range w.slots {
		if !w.slots[i].free {
			w.enqueueReady(int32(i))
		}
	}
}

// drainReadyOnce runs exactly the slots queued at entry; anything enqueued
// during the pass (e.g. a message delivered synchronously while executing
// another object) waits for the next tick, per the bounded-work fairness
// rule of SPEC_FULL.md §4.4.
func (w *Worker) drainReadyOnce(now *time.Time) {
	batch := w.ready
	w.ready = nil

	for _, idx := range batch {
		if int(idx) >= len(w.slots) || w.slots[idx].free {
			continue
		}
		w.slots[idx].queued = false
		w.runOne(idx, now)
	}
}

func (w *Worker) runOne(idx int32, now *time.Time) {
	sl := &w.slots[idx]
	deadline := sl.deadline
	res := sl.obj.Execute(object.EventTimeout, &deadline)
	sl.deadline = deadline

	switch res {
	case object.ExecOK:
		w.enqueueReady(idx)
	case object.ExecNOK:
		// sleeps until its deadline or the next wake; nothing to do.
	case object.ExecBad, object.ExecLeave:
		w.free = append(w.free, idx)
		*sl = hostedSlot{free: true}
	case object.ExecRegister, object.ExecUnregister:
		adebug.Assert(false, "objsel: object requested fd interest change; not I/O-capable")
		alog.Warningf("objsel: object requested fd interest change on a non-I/O selector")
		w.enqueueReady(idx)
	}
}
