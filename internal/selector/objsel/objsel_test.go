package objsel

import (
	"sync"
	"testing"
	"time"

	"github.com/nabbar-internal/asyncframe/internal/object"
	"github.com/nabbar-internal/asyncframe/internal/selector"
)

type countingExec struct {
	runs   int
	doneAt int
}

func (c *countingExec) Execute(_ *object.Object, _ object.EventMask, _ *time.Time) object.ExecResult {
	c.runs++
	if c.runs >= c.doneAt {
		return object.ExecBad
	}
	return object.ExecOK
}

func TestPushRunsObjectToCompletion(t *testing.T) {
	pool := selector.NewPool(0, 8, New)
	exec := &countingExec{doneAt: 3}
	o := object.New(exec)
	o.BindMutex(&sync.Mutex{})

	if !pool.Push(o) {
		t.Fatal("push should succeed")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if exec.runs >= 3 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	pool.Stop()

	if exec.runs < 3 {
		t.Fatalf("expected at least 3 runs, got %d", exec.runs)
	}
}
