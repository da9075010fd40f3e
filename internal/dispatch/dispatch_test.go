package dispatch

import (
	"testing"
	"time"

	"github.com/nabbar-internal/asyncframe/internal/codec"
	"github.com/nabbar-internal/asyncframe/internal/handle"
	"github.com/nabbar-internal/asyncframe/internal/manager"
	"github.com/nabbar-internal/asyncframe/internal/object"
	"github.com/nabbar-internal/asyncframe/internal/service"
)

type recordingMsg struct {
	Text       string
	receivedOn uint64
	executedOn *object.Object
}

func (m *recordingMsg) Received(connectorID uint64) object.Ownership {
	m.receivedOn = connectorID
	return object.Keep
}

func (m *recordingMsg) ExecuteOn(target *object.Object) object.Ownership {
	m.executedOn = target
	return object.Drop
}

type noopExec struct{}

func (noopExec) Execute(*object.Object, object.EventMask, *time.Time) object.ExecResult {
	return object.ExecOK
}

func newTestRegistry() *codec.Registry {
	r := codec.NewRegistry()
	r.Register("recordingMsg",
		func(v any) codec.Frame { return codec.EncodeString(v.(*recordingMsg).Text) },
		func() (any, codec.Frame) {
			m := &recordingMsg{}
			return m, codec.DecodeString(&m.Text)
		},
	)
	return r
}

func TestDispatcherSinkDeliversToTarget(t *testing.T) {
	r := newTestRegistry()

	m := manager.New(handle.Default)
	svc := service.New(0, handle.Default, 1)
	m.AddService(svc)
	obj := object.New(noopExec{})
	if _, err := svc.Insert(obj); err != nil {
		t.Fatal(err)
	}

	d := &Dispatcher{Registry: r, Manager: m, ConnectorID: 7}

	msg := &recordingMsg{Text: "hello"}
	envelope, err := EncodeEnvelope(r, obj.H, "recordingMsg", msg)
	if err != nil {
		t.Fatalf("EncodeEnvelope: %v", err)
	}

	d.Sink(envelope)

	obj.Mutex().Lock()
	queued := obj.DrainMessages()
	obj.Mutex().Unlock()
	if len(queued) != 1 {
		t.Fatalf("expected 1 message delivered to the target object, got %d", len(queued))
	}
	got, ok := queued[0].(*recordingMsg)
	if !ok {
		t.Fatalf("delivered message has wrong type: %T", queued[0])
	}
	if got.Text != "hello" {
		t.Fatalf("unexpected payload: %q", got.Text)
	}
	if got.receivedOn != 7 {
		t.Fatalf("expected Received to run with connector id 7, got %d", got.receivedOn)
	}
}

func TestDispatcherSinkDropsShortPayload(t *testing.T) {
	r := newTestRegistry()
	m := manager.New(handle.Default)
	d := &Dispatcher{Registry: r, Manager: m, ConnectorID: 1}

	// shorter than envelopeHeaderSize: must not panic, just drop.
	d.Sink([]byte{1, 2, 3})
}

func TestDispatcherSinkDropsUnregisteredType(t *testing.T) {
	r := codec.NewRegistry() // nothing registered
	m := manager.New(handle.Default)
	svc := service.New(0, handle.Default, 1)
	m.AddService(svc)
	obj := object.New(noopExec{})
	svc.Insert(obj)

	d := &Dispatcher{Registry: r, Manager: m, ConnectorID: 1}

	otherRegistry := newTestRegistry()
	envelope, err := EncodeEnvelope(otherRegistry, obj.H, "recordingMsg", &recordingMsg{Text: "x"})
	if err != nil {
		t.Fatalf("EncodeEnvelope: %v", err)
	}

	d.Sink(envelope) // d's registry has no "recordingMsg": must drop, not panic

	obj.Mutex().Lock()
	queued := obj.DrainMessages()
	obj.Mutex().Unlock()
	if len(queued) != 0 {
		t.Fatalf("expected nothing delivered for an unregistered type, got %d", len(queued))
	}
}
