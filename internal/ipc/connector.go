package ipc

import (
	"net"
	"sort"
	"sync"
	"time"
)

// ConnState is the per-peer connection state (spec.md §4.7.3).
type ConnState int

const (
	StateConnecting ConnState = iota
	StateAccepting
	StateWaitAccept
	StateConnected
	StateDisconnecting
)

const (
	initialJetonsConnect = 1
	initialJetonsAccept  = 3

	maxDataRetries    = 8
	maxConnectRetries = 16

	// MaxSendCommandQueueSize bounds how many distinct messages may be
	// interleaved in flight at once (spec.md §4.7.4).
	MaxSendCommandQueueSize = 16
	// MaxCommandBufferCount bounds consecutive buffers of one message
	// before a forced rotation to let other queued messages send
	// (spec.md §4.7.4).
	MaxCommandBufferCount = 32

	retransmitTimeout = 300 * time.Millisecond
)

// outBuffer is one in-flight or queued datagram awaiting ACK.
type outBuffer struct {
	id         uint32
	raw        []byte // full marshaled wire bytes, ready to resend
	resendable bool   // survives a reconnect vs. tied to this connector generation only
	retries    int
	retransID  uint16
	sentAt     time.Time
	msgID      uint64 // originating message, for reconnect ordering
}

// Connector is the per-peer state machine of spec.md §4.7.3/§4.7.4.
type Connector struct {
	mu sync.Mutex

	Addr     *net.UDPAddr
	BasePort uint32

	state   ConnState
	jetons  int
	sendID  uint32
	recvID  uint32 // next expected id
	genID   uint64 // bumped on every reconnect; tags "same-connector only" sends

	inflight map[uint32]*outBuffer // sent, awaiting ack
	pending  []*outBuffer          // already-composed buffers awaiting resend after a reconnect
	acks     []uint32              // ack ids owed to the peer, piggybacked on the next send

	sendQueue []*sendMsg          // messages still producing segments, per spec.md §4.7.4
	recvMsgs  map[uint64]*recvMsg // in-progress receive-side reassembly, keyed by message id

	reorder reorderQueue
	dedup   *dupCache

	policy   ConnectPolicy
	peerTok  string
	connRetr int

	// Sink receives fully reassembled, in-order payloads.
	Sink func(payload []byte)
}

func NewConnector(addr *net.UDPAddr, policy ConnectPolicy) *Connector {
	return &Connector{
		Addr:     addr,
		state:    StateConnecting,
		sendID:   1,
		recvID:   1,
		genID:    1,
		inflight: make(map[uint32]*outBuffer),
		recvMsgs: make(map[uint64]*recvMsg),
		dedup:    newDupCache(),
		policy:   policy,
	}
}

// BeginConnect transitions to Connecting and returns the handshake
// datagram to send.
func (c *Connector) BeginConnect(myBasePort uint32) *Buffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateConnecting
	c.jetons = initialJetonsConnect
	tok := ""
	if c.policy != nil {
		tok, _ = c.policy.Sign()
	}
	payload := append(EncodeBasePort(myBasePort), []byte(tok)...)
	return &Buffer{Header: Header{Version: wireVersion, Type: TypeConnecting}, Payload: payload}
}

// Accept handles an inbound Connecting buffer on the listening side.
func (c *Connector) Accept(buf *Buffer, myBasePort uint32) (*Buffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	port, err := DecodeBasePort(buf.Payload)
	if err != nil {
		return nil, err
	}
	tok := ""
	if len(buf.Payload) > 4 {
		tok = string(buf.Payload[4:])
	}
	if c.policy != nil {
		if err := c.policy.Verify(tok); err != nil {
			return nil, err
		}
	}
	c.BasePort = port
	c.state = StateAccepting
	c.jetons = initialJetonsAccept
	return &Buffer{Header: Header{Version: wireVersion, Type: TypeAccepting}, Payload: EncodeBasePort(myBasePort)}, nil
}

// CompleteConnect finalizes the connect side once Accepting is received.
func (c *Connector) CompleteConnect(buf *Buffer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	port, err := DecodeBasePort(buf.Payload)
	if err != nil {
		return err
	}
	c.BasePort = port
	c.state = StateConnected
	return nil
}

// Enqueue admits payload as a new outgoing message: a codec.Engine takes
// ownership of producing its wire bytes, segmented across however many
// buffers ReadyToSend ends up composing for it (spec.md §4.7.2/§4.7.4),
// interleaved with up to MaxSendCommandQueueSize other in-flight messages
// on this connector.
func (c *Connector) Enqueue(msgID uint64, payload []byte, resendable bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendQueue = append(c.sendQueue, newSendMsg(msgID, payload, resendable))
}

// removeSendMsgLocked drops msg from the send queue once its engine has
// produced every byte of its encoding; caller holds mu.
func (c *Connector) removeSendMsgLocked(msg *sendMsg) {
	for i, m := range c.sendQueue {
		if m == msg {
			c.sendQueue = append(c.sendQueue[:i], c.sendQueue[i+1:]...)
			return
		}
	}
}

// composeNextLocked produces the next outgoing datagram from the head of
// the active interleave window: up to MaxSendCommandQueueSize messages
// rotate for fairness, and the message currently holding the floor keeps
// it for up to MaxCommandBufferCount consecutive buffers before being
// rotated to the back of the window (spec.md §4.7.4). Returns nil if
// nothing is queued to send. Caller holds mu.
func (c *Connector) composeNextLocked() *outBuffer {
	if len(c.sendQueue) == 0 {
		return nil
	}
	windowLen := len(c.sendQueue)
	if windowLen > MaxSendCommandQueueSize {
		windowLen = MaxSendCommandQueueSize
	}
	window := c.sendQueue[:windowLen]
	msg := window[0]

	if msg.buffers >= MaxCommandBufferCount && windowLen > 1 {
		rotated := append(append([]*sendMsg{}, window[1:]...), msg)
		copy(c.sendQueue[:windowLen], rotated)
		msg.suspended = true
		msg.buffers = 0
		msg = c.sendQueue[0]
	}

	chunk := make([]byte, maxSegmentPayload)
	n, err := msg.engine.Run(chunk)
	if err != nil {
		// the message's own encoding failed; nothing downstream can
		// recover it, so drop it rather than wedge the connector.
		c.removeSendMsgLocked(msg)
		return c.composeNextLocked()
	}
	chunk = chunk[:n]

	marker := segContinued
	switch {
	case !msg.started:
		marker = segNew
	case msg.suspended:
		marker = segOld
	}
	msg.started = true
	msg.suspended = false
	msg.buffers++

	done := msg.engine.Done()
	payload := encodeSegment(marker, done, msg.id, chunk)
	if done {
		c.removeSendMsgLocked(msg)
	}

	id := c.sendID
	c.sendID = nextID(c.sendID)
	return &outBuffer{
		id:         id,
		resendable: msg.resendable,
		msgID:      msg.id,
		raw: Marshal(&Buffer{
			Header:  Header{Version: wireVersion, Type: TypeData, ID: id},
			AckIDs:  c.drainAcksLocked(),
			Payload: payload,
		}, nil),
	}
}

// drainAcksLocked returns and clears the owed-ack list; caller holds mu.
func (c *Connector) drainAcksLocked() []uint32 {
	if len(c.acks) == 0 {
		return nil
	}
	a := c.acks
	c.acks = nil
	return a
}

// ReadyToSend returns up to n datagrams that should go out now, preferring
// buffers requeued by a prior Reconnect before composing fresh segments
// from the send queue, moving each into inflight and consuming jeton
// credit one per datagram.
func (c *Connector) ReadyToSend(n int) [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out [][]byte
	for len(out) < n && c.jetons > 0 {
		var ob *outBuffer
		if len(c.pending) > 0 {
			ob = c.pending[0]
			c.pending = c.pending[1:]
		} else {
			ob = c.composeNextLocked()
		}
		if ob == nil {
			break
		}
		ob.sentAt = time.Now()
		c.inflight[ob.id] = ob
		c.jetons--
		out = append(out, ob.raw)
	}
	return out
}

// HandleData processes an inbound Data buffer against the three branches
// of spec.md §4.7.4: less-than (already delivered, re-ack), equal
// (deliver, advance, flush reorder), greater-than (hold in reorder heap).
func (c *Connector) HandleData(buf *Buffer) {
	c.mu.Lock()
	id := buf.Header.ID
	switch {
	case id == UpdateBuffer:
		// ACK-only datagram, no payload to deliver; fall through to ack
		// processing below.
	case idLess(id, c.recvID):
		if !c.dedup.seen(c.genID, id) {
			c.acks = append(c.acks, id)
		}
	case id == c.recvID:
		c.acks = append(c.acks, id)
		c.recvID = nextID(c.recvID)
		payload := append([]byte(nil), buf.Payload...)
		c.deliverAndFlushLocked(payload)
	default: // greater than expected: hold for reorder
		c.reorder.add(id, &Buffer{Header: buf.Header, Payload: append([]byte(nil), buf.Payload...)})
	}
	c.processAcksLocked(buf.AckIDs)
	c.mu.Unlock()
}

// deliverAndFlushLocked feeds payload's segment into its message's decode
// engine, then drains any reorder entries that are now in order; caller
// holds mu.
func (c *Connector) deliverAndFlushLocked(payload []byte) {
	c.decodeSegmentLocked(payload)
	for {
		id, buf, ok := c.reorder.peek()
		if !ok || id != c.recvID {
			return
		}
		c.reorder.pop()
		c.acks = append(c.acks, id)
		c.recvID = nextID(c.recvID)
		c.decodeSegmentLocked(buf.Payload)
	}
}

// decodeSegmentLocked parses payload's segment header, runs the chunk
// through the owning message's decode engine (creating one on the first,
// NewCommand segment), and delivers the reassembled message to Sink once
// the engine reports Done — reconstructing a message spread across
// however many buffers the sender's composer interleaved it across,
// per spec.md §4.7.2/§4.7.4. A malformed segment is dropped silently,
// subsumed by the reliability layer above it. Caller holds mu.
func (c *Connector) decodeSegmentLocked(payload []byte) {
	_, _, msgID, chunk, err := decodeSegment(payload)
	if err != nil {
		return
	}
	rm, ok := c.recvMsgs[msgID]
	if !ok {
		rm = newRecvMsg()
		c.recvMsgs[msgID] = rm
	}
	if _, err := rm.engine.Run(chunk); err != nil {
		delete(c.recvMsgs, msgID)
		return
	}
	if rm.engine.Done() {
		delete(c.recvMsgs, msgID)
		if c.Sink != nil {
			c.Sink(rm.out)
		}
	}
}

// processAcksLocked retires inflight buffers acknowledged by ids, and
// returns their jeton credit; caller holds mu.
func (c *Connector) processAcksLocked(ids []uint32) {
	for _, id := range ids {
		if _, ok := c.inflight[id]; ok {
			delete(c.inflight, id)
			c.jetons++
		}
	}
}

// Retransmit scans inflight buffers older than retransmitTimeout and
// returns those due for resend, bumping their retry counters. A buffer
// that exceeds maxDataRetries (or maxConnectRetries while Connecting or
// Accepting) is reported via the second return so the caller can trigger
// a reconnect; it stays in inflight with its retry count reset, so
// Reconnect returns its jeton and requeues it if it is resendable.
func (c *Connector) Retransmit(now time.Time) (resend [][]byte, exhausted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	limit := maxDataRetries
	if c.state == StateConnecting || c.state == StateAccepting {
		limit = maxConnectRetries
	}
	for _, ob := range c.inflight {
		if now.Sub(ob.sentAt) < retransmitTimeout {
			continue
		}
		ob.retries++
		if ob.retries > limit {
			ob.retries = 0
			exhausted = true
			continue
		}
		ob.retransID++
		ob.sentAt = now
		resend = append(resend, ob.raw)
	}
	return resend, exhausted
}

// NextDeadline returns the earliest retransmit-due time among this
// connector's in-flight buffers, for the Talker's send priority queue.
func (c *Connector) NextDeadline() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var earliest time.Time
	found := false
	for _, ob := range c.inflight {
		due := ob.sentAt.Add(retransmitTimeout)
		if !found || due.Before(earliest) {
			earliest = due
			found = true
		}
	}
	return earliest, found
}

func (c *Connector) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reconnect runs the six-step procedure of spec.md §4.7.5.
func (c *Connector) Reconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 1. reset ids
	c.sendID = 1
	c.recvID = 1
	c.genID++

	// 2. return jetons held by in-flight sends
	returned := 0
	for range c.inflight {
		returned++
	}
	c.jetons += returned

	// 3. clear reorder heap / ACK queue (and the dup cache, which is keyed
	// on genID so it is logically cleared too; reset anyway to bound memory)
	c.reorder = reorderQueue{}
	c.acks = nil
	c.dedup.reset()

	// reconnect renumbers both sides from 1, so any partially reassembled
	// inbound messages can never be completed under their old ids.
	c.recvMsgs = make(map[uint64]*recvMsg)

	// 4. partition in-flight sends by resendable vs same-connector-only
	var resendable, dropped []*outBuffer
	for _, ob := range c.inflight {
		if ob.resendable {
			resendable = append(resendable, ob)
		} else {
			dropped = append(dropped, ob)
		}
	}
	_ = dropped // same-connector-only sends do not survive a reconnect
	c.inflight = make(map[uint32]*outBuffer)

	// 5. sort resendable by original message id, reprepend, then append
	// whatever was still queued-but-unsent
	sort.Slice(resendable, func(i, j int) bool { return resendable[i].msgID < resendable[j].msgID })
	c.pending = append(resendable, c.pending...)
	id := uint32(1)
	for _, ob := range c.pending {
		ob.id = id
		// rewrite the wire id too, and drop acks owed under the old ids
		if b, err := Parse(ob.raw); err == nil {
			b.Header.ID = id
			b.AckIDs = nil
			ob.raw = Marshal(b, nil)
		}
		id = nextID(id)
	}
	c.sendID = id

	// 6. re-enter Connecting/Accepting
	if c.BasePort != 0 {
		c.state = StateConnecting
	} else {
		c.state = StateAccepting
	}
}
