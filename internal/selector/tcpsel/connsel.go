package tcpsel

import (
	"time"

	"github.com/nabbar-internal/asyncframe/internal/object"
	"github.com/nabbar-internal/asyncframe/internal/selector"
)

// ConnHost is implemented by the application-level Connection object the
// selector drives: it bridges the Object's Execute tick to its Channel.
type ConnHost interface {
	object.Executor
	Chan() *Conn
}

type hostedConn struct {
	obj      *object.Object
	host     ConnHost
	deadline time.Time
	queued   bool
	free     bool
}

// Worker is the per-goroutine epoll-flavored loop, reimplemented in Go
// terms: each tick polls every resident connection's coalesced send queue
// and its non-blocking Recv, translates the result into the
// IN_DONE|OUT_DONE|ERR_DONE bitmask, and feeds it to Connection.Execute,
// exactly as SPEC_FULL.md §4.4 describes for the TCP connection selector.
type Worker struct {
	poolID int32
	cap    int

	slots []hostedConn
	free  []int32
	wake  chan int32
}

func NewWorker(poolID int32, capacity int) selector.Worker {
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

// PushHost is the typed variant of Push used by callers that need to also
// register the ConnHost bridge (selector.Worker.Push only knows about
// *object.Object).
func (w *Worker) PushHost(obj *object.Object, host ConnHost) (int32, bool) {
	slot := hostedConn{obj: obj, host: host}
	if len(w.free) > 0 {
		idx := w.free[len(w.free)-1]
		w.free = w.free[:len(w.free)-1]
		w.slots[idx] = slot
		return idx, true
	}
	if w.cap > 0 && len(w.slots) >= w.cap {
		return 0, false
	}
	idx := int32(len(w.slots))
	w.slots = append(w.slots, slot)
	return idx, true
}

// Push hosts obj when its Impl is a ConnHost, which supplies the Channel
// the tick drives; any other object is refused.
func (w *Worker) Push(obj *object.Object) (int32, bool) {
	if host, ok := obj.Impl.(ConnHost); ok {
		return w.PushHost(obj, host)
	}
	return 0, false
}

func (w *Worker) Raise(slot int32) {
	select {
	case w.wake <- slot:
	default:
	}
}

func (w *Worker) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Millisecond)
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
	now := time.Now()
	for i := range w.slots {
		sl := &w.slots[i]
		if sl.free {
			continue
		}
		var events object.EventMask
		conn := sl.host.Chan()
		events |= conn.DoSend()
		if conn.IORequest()&object.EventIn != 0 {
			res, err := conn.Recv(make([]byte, 0, 4096))
			switch res {
			case ChanOK:
				events |= object.EventIn
			case ChanErr:
				_ = err
				events |= object.EventErr
			}
		}
		if !sl.deadline.IsZero() && !now.Before(sl.deadline) {
			events |= object.EventTimeout
		}
		if events == 0 {
			continue
		}
		deadline := sl.deadline
		result := sl.obj.Execute(events, &deadline)
		sl.deadline = deadline
		switch result {
		case object.ExecBad, object.ExecLeave:
			w.free = append(w.free, int32(i))
			*sl = hostedConn{free: true}
		}
	}
}
