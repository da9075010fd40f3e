package service

import (
	"testing"
	"time"

	"github.com/nabbar-internal/asyncframe/internal/handle"
	"github.com/nabbar-internal/asyncframe/internal/object"
)

type killableExec struct{ killed bool }

func (k *killableExec) Execute(o *object.Object, _ object.EventMask, _ *time.Time) object.ExecResult {
	o.Mutex().Lock()
	mask := o.GrabSignalMask(0)
	o.Mutex().Unlock()
	if mask&object.SKill != 0 {
		k.killed = true
		return object.ExecBad
	}
	return object.ExecOK
}

func TestInsertAssignsHandleAndLookup(t *testing.T) {
	s := New(3, handle.Default, 4)
	o := object.New(&killableExec{})

	idx, err := s.Insert(o)
	if err != nil {
		t.Fatal(err)
	}
	if handle.Default.DecodeService(o.H.Full) != 3 {
		t.Fatal("handle must encode the service index")
	}
	if handle.Default.DecodeIndex(o.H.Full) != idx {
		t.Fatal("handle must encode the allocated index")
	}

	got, ok := s.Lookup(o.H)
	if !ok || got != o {
		t.Fatal("lookup of a fresh handle must succeed")
	}
}

func TestLookupGoneAfterRemove(t *testing.T) {
	s := New(0, handle.Default, 4)
	o := object.New(&killableExec{})
	s.Insert(o)
	h := o.H

	s.Remove(o)

	if _, ok := s.Lookup(h); ok {
		t.Fatal("lookup after remove must report Gone (P1)")
	}
}

func TestLookupGoneAfterSlotRecycled(t *testing.T) {
	s := New(0, handle.Default, 4)
	o1 := object.New(&killableExec{})
	idx1, _ := s.Insert(o1)
	h1 := o1.H
	s.Remove(o1)

	o2 := object.New(&killableExec{})
	idx2, _ := s.Insert(o2)
	if idx1 != idx2 {
		t.Fatal("expected slot reuse")
	}

	if _, ok := s.Lookup(h1); ok {
		t.Fatal("stale handle into a recycled slot must report Gone")
	}
	if _, ok := s.Lookup(o2.H); !ok {
		t.Fatal("fresh handle into the recycled slot must resolve")
	}
}

func TestSignalAllBroadcastsKillAndStopWaits(t *testing.T) {
	s := New(0, handle.Default, 4)
	const n = 50
	objs := make([]*object.Object, n)
	execs := make([]*killableExec, n)
	for i := 0; i < n; i++ {
		execs[i] = &killableExec{}
		objs[i] = object.New(execs[i])
		s.Insert(objs[i])
	}

	done := make(chan struct{})
	go func() {
		for {
			s.mu.Lock()
			if s.state != Stopping {
				s.mu.Unlock()
				time.Sleep(time.Millisecond)
				continue
			}
			s.mu.Unlock()
			break
		}
		// simulate each object's selector observing S_KILL and removing itself
		for _, o := range objs {
			o.Mutex().Lock()
			mask := o.GrabSignalMask(0)
			o.Mutex().Unlock()
			if mask&object.SKill != 0 {
				s.Remove(o)
			}
		}
		close(done)
	}()

	stopDone := make(chan struct{})
	go func() {
		s.Stop(true)
		close(stopDone)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("objects were never observed to drain")
	}
	select {
	case <-stopDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop(true) did not return within budget (S6)")
	}

	if s.State() != Stopped {
		t.Fatal("service must transition to Stopped")
	}
	if _, ok := s.Lookup(objs[0].H); ok {
		t.Fatal("post-stop lookups must report Gone")
	}
}
