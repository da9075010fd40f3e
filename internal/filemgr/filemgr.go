// Package filemgr implements the FileManager handoff contract of
// SPEC_FULL.md §4.9: Stream hands a caller-supplied Sink either a
// completed transfer (Ok) or a promise resolved later via a normal
// signal to the requesting object (WouldBlock). With NoWait the copy
// runs inline on the caller's goroutine; otherwise it runs on a
// background goroutine.
package filemgr

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/nabbar-internal/asyncframe/internal/ametrics"
	"github.com/nabbar-internal/asyncframe/internal/filemgr/backend"
)

// StreamFlags mirror spec.md §4.9's Create/Forced/NoWait.
type StreamFlags uint32

const (
	Create StreamFlags = 1 << iota
	Forced
	NoWait
)

// StreamResult is Stream's immediate outcome.
type StreamResult int

const (
	Ok StreamResult = iota
	WouldBlock
	Fail
)

// Sink receives the bytes of a streamed file.
type Sink interface {
	io.Writer
}

// FileUID identifies an open transfer for later reference (cancel,
// progress query); assigned by FileManager, opaque to callers.
type FileUID uint64

// Notifier delivers the WouldBlock-path completion as the "normal
// signal to requestUID.Object" of spec.md §4.9; internal/executer's
// FileNotifier adapts an Executer to it, and tests use a plain recorder.
type Notifier interface {
	NotifyStreamDone(requestUID uint64, handle FileUID, err error)
}

var ErrNoBackendForKey = errors.New("filemgr: no backend registered for key scheme")

// FileManager selects a Backend per file-key scheme prefix
// ("s3://", "az://", "gs://", "hdfs://", else the default/local
// backend) and pumps the selected object's bytes into the caller's Sink,
// either inline (NoWait) or on a background goroutine whose completion
// is reported through Notifier.
type FileManager struct {
	mu       sync.Mutex
	schemes  map[string]backend.Backend
	fallback backend.Backend
	notify   Notifier

	nextUID  uint64
	inFlight map[FileUID]context.CancelFunc
	metrics  *ametrics.Metrics
}

func New(fallback backend.Backend, notify Notifier) *FileManager {
	return &FileManager{
		schemes:  make(map[string]backend.Backend),
		fallback: fallback,
		notify:   notify,
		inFlight: make(map[FileUID]context.CancelFunc),
	}
}

// WithMetrics attaches a Metrics bundle so Stream reports its outcome
// counts; nil (the default) disables reporting entirely.
func (m *FileManager) WithMetrics(metrics *ametrics.Metrics) *FileManager {
	m.metrics = metrics
	return m
}

func (m *FileManager) reportResult(r StreamResult) {
	if m.metrics == nil {
		return
	}
	label := "ok"
	switch r {
	case WouldBlock:
		label = "would_block"
	case Fail:
		label = "fail"
	}
	m.metrics.FileStreamResult.WithLabelValues(label).Inc()
}

// RegisterScheme routes every key prefixed scheme+"://" to b.
func (m *FileManager) RegisterScheme(scheme string, b backend.Backend) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemes[scheme] = b
}

func (m *FileManager) resolve(fileKey string) (backend.Backend, string) {
	if i := strings.Index(fileKey, "://"); i > 0 {
		scheme, key := fileKey[:i], fileKey[i+3:]
		m.mu.Lock()
		b, ok := m.schemes[scheme]
		m.mu.Unlock()
		if ok {
			return b, key
		}
	}
	return m.fallback, fileKey
}

func (m *FileManager) allocUID() FileUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextUID++
	return FileUID(m.nextUID)
}

// Stream implements spec.md §4.9's one collaborator contract. With
// NoWait set the transfer runs inline and Stream returns only once it
// is done (Ok) or has failed (Fail) — the caller asked not to be made
// to wait asynchronously, which here means "don't hand back a promise",
// not "never block"; without NoWait, Stream always returns WouldBlock
// immediately and the result arrives via Notifier.
func (m *FileManager) Stream(sink Sink, fileKeyOrUID string, requestUID uint64, flags StreamFlags) (StreamResult, error) {
	b, key := m.resolve(fileKeyOrUID)
	if b == nil {
		m.reportResult(Fail)
		return Fail, ErrNoBackendForKey
	}
	create := flags&(Create|Forced) != 0

	if flags&NoWait != 0 {
		rc, err := b.Open(context.Background(), key, create)
		if err != nil {
			m.reportResult(Fail)
			return Fail, err
		}
		defer rc.Close()
		if _, err := io.Copy(sink, rc); err != nil {
			m.reportResult(Fail)
			return Fail, err
		}
		m.reportResult(Ok)
		return Ok, nil
	}

	uid := m.allocUID()
	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.inFlight[uid] = cancel
	m.mu.Unlock()

	go m.run(ctx, b, key, sink, requestUID, uid, create)

	m.reportResult(WouldBlock)
	return WouldBlock, nil
}

func (m *FileManager) run(ctx context.Context, b backend.Backend, key string, sink Sink, requestUID uint64, uid FileUID, create bool) {
	defer func() {
		m.mu.Lock()
		delete(m.inFlight, uid)
		m.mu.Unlock()
	}()

	rc, err := b.Open(ctx, key, create)
	if err != nil {
		m.notify.NotifyStreamDone(requestUID, uid, err)
		return
	}
	defer rc.Close()

	_, err = io.Copy(sink, rc)
	m.notify.NotifyStreamDone(requestUID, uid, err)
}

// Cancel aborts an in-flight WouldBlock transfer; a no-op if uid already
// completed (Gone, per the framework-wide at-most-once delivery rule).
func (m *FileManager) Cancel(uid FileUID) {
	m.mu.Lock()
	cancel, ok := m.inFlight[uid]
	m.mu.Unlock()
	if ok {
		cancel()
	}
}

// Stat and Remove pass straight through to the resolved backend; neither
// is part of spec.md's Stream contract but both are needed by any real
// caller deciding whether to stream at all.
func (m *FileManager) Stat(ctx context.Context, fileKey string) (backend.Info, error) {
	b, key := m.resolve(fileKey)
	if b == nil {
		return backend.Info{}, ErrNoBackendForKey
	}
	return b.Stat(ctx, key)
}

func (m *FileManager) Remove(ctx context.Context, fileKey string) error {
	b, key := m.resolve(fileKey)
	if b == nil {
		return ErrNoBackendForKey
	}
	return b.Remove(ctx, key)
}

