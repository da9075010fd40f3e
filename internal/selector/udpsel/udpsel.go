// Package udpsel implements the UDP talker selector flavor of
// SPEC_FULL.md §4.4/§4.7.6: it drives one or more IPC Talkers, each owning
// one UDP socket. Grounded on jroosing-HydraDNS's udp_server.go pattern
// (one receiver goroutine, SO_REUSEPORT-friendly multi-socket fan-out,
// pooled receive buffers) adapted to this framework's Object/Execute
// contract instead of a bespoke DNS request loop.
package udpsel

import (
	"time"

	"github.com/nabbar-internal/asyncframe/internal/object"
	"github.com/nabbar-internal/asyncframe/internal/selector"
)

type hostedTalker struct {
	obj      *object.Object
	deadline time.Time
	free     bool
}

// Worker drives a handful of Talker objects (one per bound UDP socket) on
// a tight tick: each iteration gives every resident talker a chance to
// drain its socket and send whatever is eligible, per SPEC_FULL.md §4.7.6
// ("each execute tick: drain received datagrams ... then while there is
// credit and sendable data, compose one buffer per eligible connector").
type Worker struct {
	poolID int32
	cap    int

	slots []hostedTalker
	free  []int32
	wake  chan int32
}

func New(poolID int32, capacity int) selector.Worker {
	return &Worker{poolID: poolID, cap: capacity, wake: make(chan int32, capacity+1)}
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
		w.slots[idx] = hostedTalker{obj: obj}
		return idx, true
	}
	if w.cap > 0 && len(w.slots) >= w.cap {
		return 0, false
	}
	idx := int32(len(w.slots))
	w.slots = append(w.slots, hostedTalker{obj: obj})
	return idx, true
}

func (w *Worker) Raise(slot int32) {
	select {
	case w.wake <- slot:
	default:
	}
}

// Run polls every resident talker at a tight, fixed interval: UDP talkers
// self-regulate blocking inside Execute via a short read deadline on their
// own socket, so the selector's job here is simply "call Execute often
// enough that retransmit timers and send-credit checks stay responsive".
func (w *Worker) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-w.wake:
		case <-ticker.C:
		}
		w.tick()
	}
}

func (w *Worker) tick() {
	for i := range w.slots {
		sl := &w.slots[i]
		if sl.free {
			continue
		}
		deadline := sl.deadline
		res := sl.obj.Execute(object.EventIn, &deadline)
		sl.deadline = deadline
		if res == object.ExecBad || res == object.ExecLeave {
			w.free = append(w.free, int32(i))
			*sl = hostedTalker{free: true}
		}
	}
}
