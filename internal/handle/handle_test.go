package handle

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct{ svc, idx uint32 }{
		{0, 0},
		{1, 1},
		{255, 1<<24 - 1},
		{17, 12345},
	}
	for _, c := range cases {
		full := Default.Encode(c.svc, c.idx)
		if got := Default.DecodeService(full); got != c.svc {
			t.Fatalf("DecodeService(%d) = %d, want %d", full, got, c.svc)
		}
		if got := Default.DecodeIndex(full); got != c.idx {
			t.Fatalf("DecodeIndex(%d) = %d, want %d", full, got, c.idx)
		}
	}
}

func TestIndexMaskTruncatesOverflow(t *testing.T) {
	full := Default.Encode(1, 1<<24+5) // overflow into the service bits' territory
	if got := Default.DecodeIndex(full); got != 5 {
		t.Fatalf("DecodeIndex overflow = %d, want 5", got)
	}
}

func TestHandleStringAndZero(t *testing.T) {
	var h Handle
	if !h.IsZero() {
		t.Fatal("zero-value Handle should report IsZero")
	}
	h = Handle{Full: Default.Encode(2, 3), UID: 9}
	if h.IsZero() {
		t.Fatal("populated Handle should not report IsZero")
	}
	if s := h.String(); s == "" {
		t.Fatal("String() should not be empty")
	}
}
