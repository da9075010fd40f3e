// Package dispatch is the thin layer that closes the loop IPC arrival →
// codec decode → Message.Received → Object signal, sitting above
// internal/ipc (which only pumps reassembled byte payloads, blind to what
// they mean) and internal/codec's type Registry (which knows how to turn
// those bytes back into a concrete value, but not who it is for).
//
// internal/ipc.Connector already drives its own codec.Engine per
// in-flight message to move bytes across buffer boundaries reliably
// (spec.md §4.7.2/§4.7.4); by the time Dispatcher.Sink sees a payload it
// is one complete, in-order message body. Decoding the polymorphic
// envelope inside it is this package's job, one layer up.
package dispatch

import (
	"encoding/binary"
	"errors"

	"github.com/nabbar-internal/asyncframe/internal/codec"
	"github.com/nabbar-internal/asyncframe/internal/handle"
	"github.com/nabbar-internal/asyncframe/internal/ipc"
	"github.com/nabbar-internal/asyncframe/internal/manager"
	"github.com/nabbar-internal/asyncframe/internal/object"
)

// envelopeHeaderSize is the target handle (FullID + UID, 4 bytes each)
// every dispatched message is addressed with, ahead of its registry
// encoding.
const envelopeHeaderSize = 8

var errShortEnvelope = errors.New("dispatch: payload shorter than envelope header")

// EncodeEnvelope serializes msg under name through r and prefixes it with
// target, producing the exact bytes a peer's Dispatcher.Sink expects.
func EncodeEnvelope(r *codec.Registry, target handle.Handle, name string, msg any) ([]byte, error) {
	eng := codec.NewEngine()
	eng.Push(r.EncodePolymorphic(name, msg))

	out := make([]byte, envelopeHeaderSize)
	binary.LittleEndian.PutUint32(out[0:4], uint32(target.Full))
	binary.LittleEndian.PutUint32(out[4:8], uint32(target.UID))

	chunk := make([]byte, 4096)
	for {
		n, err := eng.Run(chunk)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk[:n]...)
		if eng.Done() {
			return out, nil
		}
	}
}

// Dispatcher routes payloads handed back by an ipc.Connector's Sink into
// the object graph owned by Manager, per spec.md §4.7/§9's "message
// delivered locally or via IPC" split.
type Dispatcher struct {
	Registry    *codec.Registry
	Manager     *manager.Manager
	ConnectorID uint64
}

// Sink is installed as an ipc.Connector's Sink field. A payload that is
// too short, names an unregistered type, or decodes to a value that does
// not implement object.Message is dropped silently — wire corruption and
// protocol mismatch are both subsumed by the reliability layer beneath
// this one, per spec.md §7.
func (d *Dispatcher) Sink(payload []byte) {
	target, body, err := splitEnvelope(payload)
	if err != nil {
		return
	}

	var decoded any
	eng := codec.NewEngine()
	eng.Push(d.Registry.DecodePolymorphic(&decoded))
	if _, err := eng.Run(body); err != nil || !eng.Done() {
		return
	}

	msg, ok := decoded.(object.Message)
	if !ok {
		return
	}
	if msg.Received(d.ConnectorID) == object.Drop {
		return
	}
	d.Manager.SignalMsg(target, msg)
}

func splitEnvelope(payload []byte) (handle.Handle, []byte, error) {
	if len(payload) < envelopeHeaderSize {
		return handle.Handle{}, nil, errShortEnvelope
	}
	h := handle.Handle{
		Full: handle.FullID(binary.LittleEndian.Uint32(payload[0:4])),
		UID:  handle.UID(binary.LittleEndian.Uint32(payload[4:8])),
	}
	return h, payload[envelopeHeaderSize:], nil
}

// Send envelopes msg for target under name and enqueues it on c, the
// send-side counterpart to Sink.
func (d *Dispatcher) Send(c *ipc.Connector, msgID uint64, target handle.Handle, name string, msg any, resendable bool) error {
	envelope, err := EncodeEnvelope(d.Registry, target, name, msg)
	if err != nil {
		return err
	}
	c.Enqueue(msgID, envelope, resendable)
	return nil
}
