package executer

import "github.com/nabbar-internal/asyncframe/internal/filemgr"

// FileNotifier adapts an Executer into filemgr.Notifier, the wiring
// SPEC_FULL.md §4.9 describes as "a normal signal to requestUID.Object":
// a FileManager transfer started under a RequestUID.Encode() value
// reports back here, and ReceiveStream retires the slot and forwards the
// result to whatever Receiver the Executer was built with.
type FileNotifier struct {
	Executer *Executer
}

func (n FileNotifier) NotifyStreamDone(requestUID uint64, handle filemgr.FileUID, err error) {
	n.Executer.ReceiveStream(DecodeRequestUID(requestUID), uint64(handle), err)
}
