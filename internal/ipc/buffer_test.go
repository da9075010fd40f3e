package ipc

import (
	"bytes"
	"testing"
)

func TestBufferMarshalParseRoundTrip(t *testing.T) {
	b := &Buffer{
		Header: Header{
			Version:   wireVersion,
			Type:      TypeData,
			Flags:     FlagRequestReceipt,
			ID:        42,
			RetransID: 3,
		},
		AckIDs:  []uint32{1, 2, 3},
		Payload: []byte("hello world"),
	}
	raw := Marshal(b, nil)

	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Header != b.Header {
		t.Fatalf("header mismatch: got %+v want %+v", got.Header, b.Header)
	}
	if len(got.AckIDs) != 3 || got.AckIDs[0] != 1 || got.AckIDs[2] != 3 {
		t.Fatalf("ack ids mismatch: %v", got.AckIDs)
	}
	if !bytes.Equal(got.Payload, b.Payload) {
		t.Fatalf("payload mismatch: %q", got.Payload)
	}
}

func TestParseShortHeader(t *testing.T) {
	if _, err := Parse([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error on short header")
	}
}

func TestParseTruncatedAcks(t *testing.T) {
	raw := Marshal(&Buffer{Header: Header{}}, nil) // headerSize bytes, AckCount 0
	raw[10] = 2                                    // claim 2 acks with no bytes backing them
	if _, err := Parse(raw); err == nil {
		t.Fatal("expected truncated-acks error")
	}
}

func TestBasePortRoundTrip(t *testing.T) {
	enc := EncodeBasePort(9000)
	got, err := DecodeBasePort(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != 9000 {
		t.Fatalf("got %d want 9000", got)
	}
}

func TestIDWraparound(t *testing.T) {
	if nextID(LastBufferID) != 0 {
		t.Fatalf("expected wrap to 0, got %d", nextID(LastBufferID))
	}
	if nextID(5) != 6 {
		t.Fatalf("expected 6, got %d", nextID(5))
	}
}

func TestIDLessHandlesWraparound(t *testing.T) {
	if !idLess(LastBufferID, 1) {
		t.Fatal("expected LastBufferID to be considered before 1 across the wrap")
	}
	if !idLess(5, 10) {
		t.Fatal("expected 5 < 10")
	}
	if idLess(10, 5) {
		t.Fatal("expected 10 not < 5")
	}
}
