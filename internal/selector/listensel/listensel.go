// Package listensel implements the TCP listener selector flavor of
// SPEC_FULL.md §4.4: a small accept loop that hands newly accepted
// connections off to a connection pool.
package listensel

import (
	"crypto/tls"
	"net"
	"time"

	"github.com/nabbar-internal/asyncframe/internal/alog"
	"github.com/nabbar-internal/asyncframe/internal/selector/tcpsel"
)

// Acceptor receives every newly accepted connection; the caller (typically
// a Manager-level wiring function) is responsible for wrapping it into an
// application Connection object and pushing it into a tcpsel.Pool.
type Acceptor func(c *tcpsel.Conn)

type Listener struct {
	ln      net.Listener
	tlsCfg  *tls.Config
	accept  Acceptor
	stop    chan struct{}
	done    chan struct{}
}

func New(ln net.Listener, tlsCfg *tls.Config, accept Acceptor) *Listener {
	return &Listener{ln: ln, tlsCfg: tlsCfg, accept: accept, stop: make(chan struct{}), done: make(chan struct{})}
}

// Run is the listener selector's loop: a poll()-shaped accept cycle, per
// SPEC_FULL.md §4.4. net.Listener.Accept blocks the goroutine it runs on,
// which is the Go-idiomatic equivalent of a single-fd poll() wait; a
// SetDeadline-bearing listener (as returned by net.ListenTCP) lets Run
// notice stop without an extra wakeup primitive.
func (l *Listener) Run() {
	defer close(l.done)
	type deadliner interface{ SetDeadline(time.Time) error }

	for {
		select {
		case <-l.stop:
			return
		default:
		}
		if d, ok := l.ln.(deadliner); ok {
			_ = d.SetDeadline(time.Now().Add(200 * time.Millisecond))
		}
		nc, err := l.ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-l.stop:
				return
			default:
				alog.Warningf("listensel: accept error: %v", err)
				continue
			}
		}
		l.accept(tcpsel.New(nc, l.tlsCfg))
	}
}

func (l *Listener) Stop() {
	close(l.stop)
	_ = l.ln.Close()
	<-l.done
}
