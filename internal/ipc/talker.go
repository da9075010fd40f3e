package ipc

import (
	"container/heap"
	"net"
	"sync"
	"time"

	"github.com/nabbar-internal/asyncframe/internal/ametrics"
	"github.com/nabbar-internal/asyncframe/internal/bufpool"
)

// maxDatagramSize bounds one UDP read; spec.md §4.7.2 keeps buffers near
// 1.4KB but this leaves headroom for a full Ethernet-MTU datagram.
const maxDatagramSize = 1500

var recvPool = bufpool.NewBytes(maxDatagramSize)

// Talker owns one UDP socket and the connectors addressed through it
// (spec.md §4.7.6). It is driven by internal/selector/udpsel the way a
// ConnHost drives internal/selector/tcpsel — the Worker calls Tick on
// readiness or deadline, never touching the socket itself.
type Talker struct {
	conn *net.UDPConn

	mu     sync.Mutex
	byAddr map[string]*Connector
	free   []int // free connector slot indices, reused to bound the peer table
	bySlot []*Connector
	policy  ConnectPolicy
	myBase  uint32
	metrics *ametrics.Metrics
	sink    func(payload []byte)
}

func NewTalker(conn *net.UDPConn, myBasePort uint32, policy ConnectPolicy) *Talker {
	return &Talker{
		conn:   conn,
		byAddr: make(map[string]*Connector),
		policy: policy,
		myBase: myBasePort,
	}
}

// WithMetrics attaches a Metrics bundle so Tick reports send/resend/
// reconnect counts; nil (the default) disables reporting entirely.
func (t *Talker) WithMetrics(m *ametrics.Metrics) *Talker {
	t.metrics = m
	return t
}

// WithSink installs sink as every Connector's delivery callback, present
// and future — the wiring point a dispatch.Dispatcher attaches itself to
// so an arriving, fully reassembled message reaches the object graph
// without every caller of Connect having to remember to set Connector.Sink
// by hand.
func (t *Talker) WithSink(sink func(payload []byte)) *Talker {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sink = sink
	for _, c := range t.byAddr {
		c.Sink = sink
	}
	return t
}

func (t *Talker) addrKey(a *net.UDPAddr) string { return a.String() }

// Connect starts (or returns the existing) Connector for addr.
func (t *Talker) Connect(addr *net.UDPAddr) *Connector {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := t.addrKey(addr)
	if c, ok := t.byAddr[key]; ok {
		return c
	}
	c := NewConnector(addr, t.policy)
	c.Sink = t.sink
	t.byAddr[key] = c
	t.assignSlotLocked(c)
	buf := c.BeginConnect(t.myBase)
	t.sendNow(addr, buf)
	return c
}

func (t *Talker) assignSlotLocked(c *Connector) {
	if n := len(t.free); n > 0 {
		slot := t.free[n-1]
		t.free = t.free[:n-1]
		t.bySlot[slot] = c
		return
	}
	t.bySlot = append(t.bySlot, c)
}

// Disconnect tears down the connector for addr and frees its slot for
// reuse by a future peer.
func (t *Talker) Disconnect(addr *net.UDPAddr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := t.addrKey(addr)
	c, ok := t.byAddr[key]
	if !ok {
		return
	}
	delete(t.byAddr, key)
	for i, slotConn := range t.bySlot {
		if slotConn == c {
			t.bySlot[i] = nil
			t.free = append(t.free, i)
			break
		}
	}
}

func (t *Talker) sendNow(addr *net.UDPAddr, buf *Buffer) {
	raw := Marshal(buf, nil)
	_, _ = t.conn.WriteToUDP(raw, addr)
}

// Tick drains pending datagrams, advances every connector's send/ACK
// machinery, and re-arms the caller's deadline to the earliest queued
// nextSendTime, per spec.md §4.7.6.
func (t *Talker) Tick(now time.Time) (nextDeadline time.Time) {
	t.drainIncoming()

	t.mu.Lock()
	conns := make([]*Connector, 0, len(t.byAddr))
	for _, c := range t.byAddr {
		conns = append(conns, c)
	}
	t.mu.Unlock()

	pq := make(sendQueue, 0, len(conns))
	for _, c := range conns {
		sent := c.ReadyToSend(MaxCommandBufferCount)
		for _, raw := range sent {
			_, _ = t.conn.WriteToUDP(raw, c.Addr)
		}
		resend, exhausted := c.Retransmit(now)
		for _, raw := range resend {
			_, _ = t.conn.WriteToUDP(raw, c.Addr)
		}
		if t.metrics != nil {
			t.metrics.IPCBuffersSent.Add(float64(len(sent)))
			t.metrics.IPCBuffersResent.Add(float64(len(resend)))
		}
		if exhausted {
			c.Reconnect()
			buf := c.BeginConnect(t.myBase)
			t.sendNow(c.Addr, buf)
			if t.metrics != nil {
				t.metrics.IPCReconnects.Inc()
			}
		}
		if at, ok := c.NextDeadline(); ok {
			heap.Push(&pq, &sendQueueItem{conn: c, at: at})
		}
	}
	if pq.Len() == 0 {
		return now.Add(retransmitTimeout)
	}
	return heap.Pop(&pq).(*sendQueueItem).at
}

// drainIncoming reads every datagram currently available without
// blocking and routes it to its connector, creating one via Accept if
// the datagram is a fresh Connecting handshake.
func (t *Talker) drainIncoming() {
	buf := recvPool.Get()[:maxDatagramSize]
	defer recvPool.Put(buf)
	_ = t.conn.SetReadDeadline(time.Now())
	for {
		n, addr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		parsed, err := Parse(buf[:n])
		if err != nil {
			continue
		}
		t.route(addr, parsed)
	}
}

func (t *Talker) route(addr *net.UDPAddr, buf *Buffer) {
	t.mu.Lock()
	key := t.addrKey(addr)
	c, ok := t.byAddr[key]
	if !ok {
		switch buf.Header.Type {
		case TypeConnecting:
			c = NewConnector(addr, t.policy)
			c.Sink = t.sink
			t.byAddr[key] = c
			t.assignSlotLocked(c)
		default:
			t.mu.Unlock()
			return
		}
	}
	t.mu.Unlock()

	switch buf.Header.Type {
	case TypeConnecting:
		reply, err := c.Accept(buf, t.myBase)
		if err == nil {
			t.sendNow(addr, reply)
		}
	case TypeAccepting:
		_ = c.CompleteConnect(buf)
	case TypeData:
		c.HandleData(buf)
	}
}

// --- send priority queue: (connector, nextSendTime) ---

type sendQueueItem struct {
	conn *Connector
	at   time.Time
	idx  int
}

type sendQueue []*sendQueueItem

func (q sendQueue) Len() int            { return len(q) }
func (q sendQueue) Less(i, j int) bool  { return q[i].at.Before(q[j].at) }
func (q sendQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i]; q[i].idx = i; q[j].idx = j }
func (q *sendQueue) Push(x any)         { it := x.(*sendQueueItem); it.idx = len(*q); *q = append(*q, it) }
func (q *sendQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}
