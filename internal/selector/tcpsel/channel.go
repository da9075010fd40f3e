// Package tcpsel implements the TCP connection selector flavor of
// SPEC_FULL.md §4.4/§6: the framework owns listener/connection sockets,
// applications plug in a Channel. The provided Channel coalesces queued
// sends over a non-blocking net.Conn, the Go-idiomatic replacement for
// edge-triggered epoll (Go's netpoller already multiplexes the underlying
// descriptor; this package rides on net.Conn deadlines instead of
// hand-rolling epoll_wait, per spec.md Design Notes §9).
package tcpsel

import (
	"bytes"
	"crypto/tls"
	"io"
	"net"
	"sync"
	"time"

	"github.com/nabbar-internal/asyncframe/internal/object"
)

// ChanResult mirrors the source's Ok|Nok|Err result for Channel.Send/Recv.
type ChanResult int

const (
	ChanOK ChanResult = iota
	ChanNOK
	ChanErr
)

// Channel is the capability interface applications implement to plug a
// protocol into the TCP connection selector, per SPEC_FULL.md §6.
type Channel interface {
	Send(buf []byte) (ChanResult, error)
	Recv(buf []byte) (ChanResult, error)
	SendStream(r io.Reader, size int64) error
	RecvStream(w io.Writer, size int64) error
	IORequest() object.EventMask
	Descriptor() uintptr
}

// Conn is the provided Channel implementation: a non-blocking net.Conn
// with a coalescing send queue, optional TLS.
type Conn struct {
	nc  net.Conn
	tls *tls.Config

	mu       sync.Mutex
	sendQ    net.Buffers
	wantSend bool
	wantRecv bool
}

func New(nc net.Conn, tlsCfg *tls.Config) *Conn {
	if tlsCfg != nil {
		nc = tls.Server(nc, tlsCfg)
	}
	return &Conn{nc: nc, tls: tlsCfg, wantRecv: true}
}

func Dial(network, addr string, tlsCfg *tls.Config) (*Conn, error) {
	var (
		nc  net.Conn
		err error
	)
	if tlsCfg != nil {
		nc, err = tls.Dial(network, addr, tlsCfg)
	} else {
		nc, err = net.Dial(network, addr)
	}
	if err != nil {
		return nil, err
	}
	return &Conn{nc: nc, tls: tlsCfg, wantRecv: true}, nil
}

// Send enqueues buf; the selector calls DoSend to actually write whatever
// has been coalesced so far, matching the source's "coalesces multiple
// queued sends" requirement (SPEC_FULL.md §6).
func (c *Conn) Send(buf []byte) (ChanResult, error) {
	if len(buf) == 0 {
		return ChanOK, nil
	}
	c.mu.Lock()
	cp := make([]byte, len(buf))
	copy(cp, buf)
	c.sendQ = append(c.sendQ, cp)
	c.wantSend = true
	c.mu.Unlock()
	return ChanOK, nil
}

func (c *Conn) Recv(buf []byte) (ChanResult, error) {
	_ = c.nc.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	n, err := c.nc.Read(buf[:cap(buf)])
	if n > 0 {
		return ChanOK, nil
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return ChanNOK, nil
	}
	if err == io.EOF {
		return ChanErr, err
	}
	if err != nil {
		return ChanErr, err
	}
	return ChanNOK, nil
}

func (c *Conn) SendStream(r io.Reader, size int64) error {
	_, err := io.CopyN(c.nc, r, size)
	return err
}

func (c *Conn) RecvStream(w io.Writer, size int64) error {
	_, err := io.CopyN(w, c.nc, size)
	return err
}

func (c *Conn) IORequest() object.EventMask {
	c.mu.Lock()
	defer c.mu.Unlock()
	var m object.EventMask
	if c.wantRecv {
		m |= object.EventIn
	}
	if c.wantSend || len(c.sendQ) > 0 {
		m |= object.EventOut
	}
	return m
}

func (c *Conn) Descriptor() uintptr {
	// net.Conn does not expose a raw fd portably without syscall.Conn type
	// assertion; callers needing the fd go through SyscallConn directly.
	return 0
}

// DoSend flushes whatever Send has coalesced so far. Returns the
// IN_DONE|OUT_DONE|ERR_DONE-shaped bitmask described in SPEC_FULL.md §4.4.
func (c *Conn) DoSend() object.EventMask {
	c.mu.Lock()
	bufs := c.sendQ
	c.sendQ = nil
	c.mu.Unlock()

	if len(bufs) == 0 {
		return 0
	}
	var buf bytes.Buffer
	for _, b := range bufs {
		buf.Write(b)
	}
	_ = c.nc.SetWriteDeadline(time.Now().Add(50 * time.Millisecond))
	n, err := c.nc.Write(buf.Bytes())
	if err != nil && n < buf.Len() {
		// re-queue the unsent remainder so the next tick retries it.
		c.mu.Lock()
		rest := make([]byte, buf.Len()-n)
		copy(rest, buf.Bytes()[n:])
		c.sendQ = append(net.Buffers{rest}, c.sendQ...)
		c.mu.Unlock()
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0
		}
		return object.EventErr
	}
	c.mu.Lock()
	c.wantSend = false
	c.mu.Unlock()
	return object.EventOut
}

func (c *Conn) Close() error { return c.nc.Close() }
