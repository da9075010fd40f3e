package executer

import (
	"testing"
	"time"
)

type recording struct {
	numbers []int64
	errs    []error
	strs    []string
}

func (r *recording) ReceiveStream(RequestUID, StreamResult)         {}
func (r *recording) ReceiveString(uid RequestUID, s string, err error) {
	r.strs = append(r.strs, s)
	r.errs = append(r.errs, err)
}
func (r *recording) ReceiveNumber(uid RequestUID, n int64, err error) {
	r.numbers = append(r.numbers, n)
	r.errs = append(r.errs, err)
}
func (r *recording) ReceiveError(uid RequestUID, err error) { r.errs = append(r.errs, err) }
func (r *recording) ReceiveCommand(RequestUID, any, error)  {}

func TestSignalAndReceiveNumber(t *testing.T) {
	rec := &recording{}
	e := New(rec)
	uid := e.Signal("request-payload", time.Minute)

	if got := e.Pending(uid); got != "request-payload" {
		t.Fatalf("got %v", got)
	}

	e.ReceiveNumber(uid, 42, nil)
	if len(rec.numbers) != 1 || rec.numbers[0] != 42 {
		t.Fatalf("got %v", rec.numbers)
	}

	// A second reply to the same (now-retired) uid is Gone: silent no-op.
	e.ReceiveNumber(uid, 99, nil)
	if len(rec.numbers) != 1 {
		t.Fatalf("expected no second delivery, got %v", rec.numbers)
	}
}

func TestStaleGenerationIsGone(t *testing.T) {
	rec := &recording{}
	e := New(rec)
	uid := e.Signal("a", time.Minute)
	e.ReceiveNumber(uid, 1, nil) // retires slot 0, frees it

	uid2 := e.Signal("b", time.Minute) // reuses slot 0 with a bumped gen
	if uid2.Index != uid.Index {
		t.Fatalf("expected slot reuse, got different index")
	}

	// A reply using the stale uid must not affect the new occupant.
	e.ReceiveNumber(uid, 999, nil)
	if len(rec.numbers) != 1 {
		t.Fatalf("stale uid should be Gone, got %v", rec.numbers)
	}
	if got := e.Pending(uid2); got != "b" {
		t.Fatalf("new occupant corrupted: %v", got)
	}
}

func TestCheckTimeoutsFiresOnce(t *testing.T) {
	rec := &recording{}
	e := New(rec)
	uid := e.Signal("x", time.Millisecond)

	e.CheckTimeouts(time.Now().Add(time.Second))
	if len(rec.errs) != 1 || rec.errs[0] != ErrTimedOut {
		t.Fatalf("expected one timeout error, got %v", rec.errs)
	}

	// A real reply after timeout is Gone, not a second delivery.
	e.ReceiveNumber(uid, 1, nil)
	if len(rec.numbers) != 0 {
		t.Fatalf("expected no delivery after timeout, got %v", rec.numbers)
	}
}

func TestCheckTimeoutsOrdersByDeadline(t *testing.T) {
	rec := &recording{}
	e := New(rec)
	e.Signal("soon", 10*time.Millisecond)
	e.Signal("later", time.Hour)

	e.CheckTimeouts(time.Now().Add(20 * time.Millisecond))
	if len(rec.errs) != 1 {
		t.Fatalf("expected only the soon-to-expire slot, got %d errors", len(rec.errs))
	}
}
