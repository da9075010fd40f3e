package executer

import (
	"testing"
	"time"

	"github.com/nabbar-internal/asyncframe/internal/filemgr"
)

func TestRequestUIDEncodeRoundTrips(t *testing.T) {
	uid := RequestUID{Index: 0xAABBCCDD, Gen: 0x11223344}
	got := DecodeRequestUID(uid.Encode())
	if got != uid {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, uid)
	}
}

func TestFileNotifierDeliversThroughExecuter(t *testing.T) {
	rec := &recording{}
	e := New(rec)
	uid := e.Signal("streamed-file", time.Minute)

	n := FileNotifier{Executer: e}
	n.NotifyStreamDone(uid.Encode(), filemgr.FileUID(9), nil)

	if e.Pending(uid) != nil {
		t.Fatal("expected the slot to be retired once the stream notification arrives")
	}
}
