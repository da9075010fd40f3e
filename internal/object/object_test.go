package object

import (
	"sync"
	"testing"
	"time"
)

type noopExec struct{ calls int }

func (n *noopExec) Execute(_ *Object, _ EventMask, _ *time.Time) ExecResult {
	n.calls++
	return ExecOK
}

func newTestObject() *Object {
	o := New(&noopExec{})
	o.BindMutex(&sync.Mutex{})
	return o
}

func TestSignalRaiseEdge(t *testing.T) {
	o := newTestObject()

	if woke := o.Signal(SSig | SRaise); !woke {
		t.Fatal("first signal should report needsWake")
	}
	if woke := o.Signal(SSig | SRaise); woke {
		t.Fatal("S_RAISE already set: should not report needsWake again")
	}
}

func TestSignalMessageRefusedWhenDying(t *testing.T) {
	o := newTestObject()
	o.MarkDying()

	woke := o.SignalMessage(fakeMsg{})
	if woke {
		t.Fatal("dying object must refuse new messages")
	}
	o.mu.Lock()
	n := len(o.queue)
	o.mu.Unlock()
	if n != 0 {
		t.Fatal("message must be dropped, not queued")
	}
}

func TestGrabSignalMaskResetsKeepingMask(t *testing.T) {
	o := newTestObject()
	o.Signal(SSig | SRaise | SKill)

	o.mu.Lock()
	got := o.GrabSignalMask(SKill)
	o.mu.Unlock()

	if got&SKill == 0 || got&SSig == 0 {
		t.Fatalf("grabbed mask missing bits: %v", got)
	}
	o.mu.Lock()
	remaining := o.mask
	o.mu.Unlock()
	if remaining != SKill {
		t.Fatalf("after grab, mask should only retain SKill, got %v", remaining)
	}
}

func TestDrainMessagesFIFO(t *testing.T) {
	o := newTestObject()
	o.SignalMessage(fakeMsg{id: 1})
	o.SignalMessage(fakeMsg{id: 2})

	o.mu.Lock()
	msgs := o.DrainMessages()
	o.mu.Unlock()

	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].(fakeMsg).id != 1 || msgs[1].(fakeMsg).id != 2 {
		t.Fatal("messages must be drained in FIFO order")
	}
}

type fakeMsg struct{ id int }

func (fakeMsg) ExecuteOn(*Object) Ownership  { return Drop }
func (fakeMsg) Received(uint64) Ownership { return Drop }
