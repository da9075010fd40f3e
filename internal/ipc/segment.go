package ipc

import (
	"encoding/binary"
	"errors"

	"github.com/nabbar-internal/asyncframe/internal/codec"
)

// segMarker is the one-byte command marker spec.md §4.7.2 requires at the
// front of every command segment a Data buffer carries: NewCommand for a
// message's first segment, ContinuedCommand while the composer keeps
// giving consecutive buffers to the same message, OldCommand on the first
// segment after a forced rotation (§4.7.4) hands the connector back to a
// message it had suspended. Reconstruction itself keys on the message id
// below, not the marker, so a receiver that logs the marker gets a trace
// of the send-side scheduling without depending on it for correctness.
type segMarker byte

const (
	segNew segMarker = iota + 1
	segContinued
	segOld
)

// segHeaderSize is marker(1) + final(1) + msgID(8).
const segHeaderSize = 1 + 1 + 8

var errShortSegment = errors.New("ipc: buffer payload shorter than segment header")

// encodeSegment prefixes chunk, one codec.Engine.Run output, with the
// segment header identifying which in-flight message it belongs to and
// whether this is its last chunk.
func encodeSegment(marker segMarker, final bool, msgID uint64, chunk []byte) []byte {
	out := make([]byte, segHeaderSize+len(chunk))
	out[0] = byte(marker)
	if final {
		out[1] = 1
	}
	binary.LittleEndian.PutUint64(out[2:10], msgID)
	copy(out[10:], chunk)
	return out
}

func decodeSegment(payload []byte) (marker segMarker, final bool, msgID uint64, chunk []byte, err error) {
	if len(payload) < segHeaderSize {
		return 0, false, 0, nil, errShortSegment
	}
	marker = segMarker(payload[0])
	final = payload[1] != 0
	msgID = binary.LittleEndian.Uint64(payload[2:10])
	chunk = payload[segHeaderSize:]
	return marker, final, msgID, chunk, nil
}

// maxSegmentPayload bounds how many codec-encoded bytes one buffer's
// segment carries, leaving headroom under maxDatagramSize for the IPC
// header, piggybacked acks, and the segment header itself.
const maxSegmentPayload = 1024

// sendMsg is one message in a connector's outgoing interleave set,
// driving its own codec.Engine across successive buffers per spec.md
// §4.7.2/§4.6 rather than handing the send path one pre-marshaled blob.
type sendMsg struct {
	id         uint64
	resendable bool
	engine     *codec.Engine
	buffers    int  // consecutive buffers sent since this message last got the floor
	started    bool // at least one segment already produced
	suspended  bool // was rotated away before completing; next segment is OldCommand
}

func newSendMsg(id uint64, payload []byte, resendable bool) *sendMsg {
	eng := codec.NewEngine()
	eng.Push(codec.EncodeBytes(payload))
	return &sendMsg{id: id, resendable: resendable, engine: eng}
}

// recvMsg is the receive-side counterpart: a decode engine accumulating
// one message's bytes across however many segments it takes.
type recvMsg struct {
	engine *codec.Engine
	out    []byte
}

func newRecvMsg() *recvMsg {
	rm := &recvMsg{engine: codec.NewEngine()}
	rm.engine.Push(codec.DecodeBytes(&rm.out))
	return rm
}
