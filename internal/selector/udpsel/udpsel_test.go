package udpsel

import (
	"testing"
	"time"

	"github.com/nabbar-internal/asyncframe/internal/object"
)

type countingTalker struct {
	runs   int
	doneAt int
}

func (c *countingTalker) Execute(_ *object.Object, _ object.EventMask, _ *time.Time) object.ExecResult {
	c.runs++
	if c.runs >= c.doneAt {
		return object.ExecBad
	}
	return object.ExecOK
}

func TestPushAssignsSlotAndRunsTalker(t *testing.T) {
	w := New(0, 2).(*Worker)
	exec := &countingTalker{doneAt: 2}
	o := object.New(exec)

	slot, ok := w.Push(o)
	if !ok {
		t.Fatal("push should succeed under capacity")
	}
	if slot != 0 {
		t.Fatalf("expected first slot 0, got %d", slot)
	}
	if w.Len() != 1 {
		t.Fatalf("expected Len()==1, got %d", w.Len())
	}

	stop := make(chan struct{})
	go w.Run(stop)
	defer close(stop)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		w.Raise(slot)
		if exec.runs >= 2 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if exec.runs < 2 {
		t.Fatalf("expected at least 2 runs, got %d", exec.runs)
	}
}

func TestPushRespectsCapacity(t *testing.T) {
	w := New(0, 1).(*Worker)
	if _, ok := w.Push(object.New(&countingTalker{doneAt: 100})); !ok {
		t.Fatal("first push should succeed")
	}
	if _, ok := w.Push(object.New(&countingTalker{doneAt: 100})); ok {
		t.Fatal("second push should fail: worker at capacity")
	}
}

func TestFreedSlotIsReused(t *testing.T) {
	w := New(0, 1).(*Worker)
	exec := &countingTalker{doneAt: 1}
	o := object.New(exec)
	slot, ok := w.Push(o)
	if !ok {
		t.Fatal("push should succeed")
	}
	w.tick() // exec returns ExecBad immediately, freeing the slot

	other := object.New(&countingTalker{doneAt: 100})
	newSlot, ok := w.Push(other)
	if !ok {
		t.Fatal("push into freed slot should succeed")
	}
	if newSlot != slot {
		t.Fatalf("expected freed slot %d to be reused, got %d", slot, newSlot)
	}
}
