package bufpool

import "testing"

func TestPoolGetPut(t *testing.T) {
	calls := 0
	p := New(func() *int {
		calls++
		v := 7
		return &v
	})
	item := p.Get()
	if *item != 7 {
		t.Fatalf("got %d", *item)
	}
	p.Put(item)
	_ = p.Get()
	if calls == 0 {
		t.Fatal("constructor never called")
	}
}

func TestBytesGetResetsLength(t *testing.T) {
	b := NewBytes(64)
	buf := b.Get()
	if len(buf) != 0 {
		t.Fatalf("expected zero length, got %d", len(buf))
	}
	buf = append(buf, 1, 2, 3)
	b.Put(buf)

	again := b.Get()
	if len(again) != 0 {
		t.Fatalf("expected reset length after Put/Get, got %d", len(again))
	}
}
