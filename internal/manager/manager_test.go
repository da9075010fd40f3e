package manager

import (
	"context"
	"testing"
	"time"

	"github.com/nabbar-internal/asyncframe/internal/handle"
	"github.com/nabbar-internal/asyncframe/internal/object"
	"github.com/nabbar-internal/asyncframe/internal/selector"
	"github.com/nabbar-internal/asyncframe/internal/selector/objsel"
	"github.com/nabbar-internal/asyncframe/internal/service"
)

type nopExec struct{ runs int }

func (e *nopExec) Execute(_ *object.Object, _ object.EventMask, _ *time.Time) object.ExecResult {
	e.runs++
	return object.ExecBad
}

func TestAddServiceSignalRoutesToObject(t *testing.T) {
	layout := handle.Default
	m := New(layout)
	svc := service.New(0, layout, 4)
	m.AddService(svc)

	exec := &nopExec{}
	o := object.New(exec)
	if _, err := svc.Insert(o); err != nil {
		t.Fatalf("insert: %v", err)
	}
	h := o.H

	pool := selector.NewPool(0, 8, objsel.New)
	m.AddPool(0, pool)
	if !pool.Push(o) {
		t.Fatal("pool.Push should succeed")
	}
	defer pool.Stop()

	m.Signal(h, 1)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && exec.runs == 0 {
		time.Sleep(time.Millisecond)
	}
	if exec.runs == 0 {
		t.Fatal("expected Signal to eventually reach the object's Executor")
	}
	if m.Service(0) != svc {
		t.Fatalf("Service(0) did not return the registered service")
	}
}

func TestPrepareGoroutineInstallsFallback(t *testing.T) {
	m := New(handle.Default)
	PrepareGoroutine(m)
	defer UnprepareGoroutine()

	if Current() != m {
		t.Fatal("Current() did not return the prepared Manager")
	}
	if got := FromContext(context.Background()); got != m {
		t.Fatal("FromContext should fall back to the goroutine-local Manager")
	}
}

func TestWithContextOverridesFallback(t *testing.T) {
	fallback := New(handle.Default)
	PrepareGoroutine(fallback)
	defer UnprepareGoroutine()

	other := New(handle.Default)
	ctx := WithContext(context.Background(), other)
	if got := FromContext(ctx); got != other {
		t.Fatal("FromContext should prefer the context-carried Manager over the fallback")
	}
}

func TestSignalUnknownServiceIsNoop(t *testing.T) {
	m := New(handle.Default)
	h := handle.Handle{Full: handle.Default.Encode(7, 0)}
	m.Signal(h, 1) // must not panic
}
