package main

import (
	"time"

	"github.com/nabbar-internal/asyncframe/internal/alog"
	"github.com/nabbar-internal/asyncframe/internal/codec"
	"github.com/nabbar-internal/asyncframe/internal/executer"
	"github.com/nabbar-internal/asyncframe/internal/object"
)

// pingMessage is the minimal registered message type this process can
// receive over IPC, enough to exercise the full arrival path end to end:
// ipc.Connector reassembles it, dispatch.Dispatcher decodes it off the
// wire by registered name, Received hands it to the Manager, and the
// target object's Execute tick eventually runs ExecuteOn on it.
type pingMessage struct {
	Text string
}

const pingMessageName = "ping"

func init() {
	codec.DefaultRegistry.Register(pingMessageName,
		func(v any) codec.Frame {
			return codec.EncodeString(v.(*pingMessage).Text)
		},
		func() (any, codec.Frame) {
			m := &pingMessage{}
			return m, codec.DecodeString(&m.Text)
		},
	)
}

// Received always keeps a ping for delivery to its target object; nothing
// about arriving over IPC versus being signaled locally changes its
// handling, so Received is the identity hook here.
func (m *pingMessage) Received(connectorID uint64) object.Ownership { return object.Keep }

// ExecuteOn logs the ping against the single root object this process
// hosts and then drops it; rootLog stays nil until main sets it, and a
// ping executed before that logs nothing.
func (m *pingMessage) ExecuteOn(target *object.Object) object.Ownership {
	if rootLog != nil {
		rootLog.Infof("root object %s received ping: %q", target.H, m.Text)
	}
	return object.Drop
}

var rootLog *alog.Logger

// rootWorker is the single demo Object.Impl this process hosts: it drains
// queued messages on every Execute tick and lets the command executer
// retire any requestUID slot a finished file stream reports against it.
type rootWorker struct {
	ex *executer.Executer
}

func (w *rootWorker) Execute(o *object.Object, events object.EventMask, deadline *time.Time) object.ExecResult {
	o.Mutex().Lock()
	o.GrabSignalMask(object.SRaise)
	msgs := o.DrainMessages()
	o.Mutex().Unlock()

	for _, msg := range msgs {
		msg.ExecuteOn(o)
	}
	if w.ex != nil {
		w.ex.CheckTimeouts(time.Now())
	}
	return object.ExecOK
}

// ReceiveStream and friends satisfy executer.Receiver so rootWorker can be
// handed straight to executer.New as the terminus of a FileManager
// WouldBlock transfer (internal/filemgr's Notifier path).
func (w *rootWorker) ReceiveStream(uid executer.RequestUID, r executer.StreamResult) {
	if rootLog != nil {
		rootLog.Infof("request %+v: stream done, handle=%d err=%v", uid, r.Handle, r.Err)
	}
}

func (w *rootWorker) ReceiveString(uid executer.RequestUID, s string, err error) {}
func (w *rootWorker) ReceiveNumber(uid executer.RequestUID, n int64, err error)  {}
func (w *rootWorker) ReceiveError(uid executer.RequestUID, err error)           {}
func (w *rootWorker) ReceiveCommand(uid executer.RequestUID, cmd any, err error) {}
