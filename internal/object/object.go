// Package object implements the scheduling unit described in SPEC_FULL.md
// §4.2: a handle-addressable state machine with a signal mask, an inbound
// message queue, and thread (goroutine) residency used to route wakeups.
package object

import (
	"sync"
	"time"

	"github.com/nabbar-internal/asyncframe/internal/adebug"
	"github.com/nabbar-internal/asyncframe/internal/handle"
)

// SignalMask is a bitset of pending signal bits. Bits above the four
// reserved ones are free for application use.
type SignalMask uint32

const (
	SRaise SignalMask = 1 << iota // set whenever the mask changes and a wakeup is owed
	SKill                         // cancellation
	SSig                          // a plain (no-payload) signal was raised
	SCmd                          // a message was enqueued

	// firstUserBit is the lowest bit an application may use for its own
	// signal classes.
	firstUserBit = 1 << 4
)

func UserBit(n uint) SignalMask {
	adebug.Assert(n < 28, "user signal bit out of range")
	return SignalMask(firstUserBit) << n
}

// ExecResult is the outcome of one Execute tick, mirroring SPEC_FULL.md
// §4.2's Ok/Nok/Bad/Leave/Register/Unregister one-for-one.
type ExecResult int

const (
	ExecOK ExecResult = iota
	ExecNOK
	ExecBad
	ExecLeave
	ExecRegister
	ExecUnregister
)

func (r ExecResult) String() string {
	switch r {
	case ExecOK:
		return "Ok"
	case ExecNOK:
		return "Nok"
	case ExecBad:
		return "Bad"
	case ExecLeave:
		return "Leave"
	case ExecRegister:
		return "Register"
	case ExecUnregister:
		return "Unregister"
	default:
		return "?"
	}
}

// EventMask carries the IN_DONE|OUT_DONE|ERR_DONE-shaped bits a selector
// hands to Execute after a ready kernel event.
type EventMask uint32

const (
	EventIn EventMask = 1 << iota
	EventOut
	EventErr
	EventTimeout
)

// Ownership is the explicit "keep or delete me" result a Message's hooks
// return, replacing the source's integer return code (SPEC_FULL.md §9).
type Ownership int

const (
	Drop Ownership = iota
	Keep
)

// Message is a polymorphic unit of work delivered to an Object, either
// locally (direct Signal) or via IPC (Received).
type Message interface {
	// ExecuteOn runs the message against its target object. Called by the
	// target's own executing goroutine, never concurrently with itself.
	ExecuteOn(target *Object) Ownership
	// Received is called on inbound IPC arrival and may reroute the
	// message (e.g. to a command executer's request-uid slot) before it
	// is handed to ExecuteOn.
	Received(connectorID uint64) Ownership
}

// Streammer is implemented by messages that carry an embedded byte stream
// (SPEC_FULL.md §4.6).
type Streammer interface {
	CreateStream() error
	DestroyStream(valid bool)
}

// State is the object's lifecycle state.
type State int32

const (
	StateRunning State = iota
	StateDying
	StateDead
)

// Residency is the (pool, slot) pair a selector pool assigns an object
// when it takes ownership; Manager.Raise uses it to target the right
// wakeup channel.
type Residency struct {
	PoolID int32
	Slot   int32
}

// Object is the unit of scheduling. See SPEC_FULL.md §3 for the invariants.
type Object struct {
	H handle.Handle

	mu    *sync.Mutex // shard mutex, assigned by the owning Service at Insert
	mask  SignalMask
	queue []Message

	residency Residency // guarded by mu

	state   State // guarded by mu
	useCnt  int32

	// Impl is the application- or framework-level state machine; Execute
	// delegates to it. Kept as a field rather than requiring embedding so
	// that both Go-idiomatic composition and the double-dispatch Accept
	// hook work without interface satisfaction gymnastics.
	Impl Executor
}

// Executor is the state-machine tick a concrete object type supplies.
type Executor interface {
	Execute(o *Object, events EventMask, deadline *time.Time) ExecResult
}

// Visitor is the double-dispatch hook used by Service.Visit / broadcast.
type Visitor interface {
	Visit(o *Object)
}

func New(impl Executor) *Object {
	return &Object{Impl: impl, state: StateRunning}
}

// BindMutex is called exactly once by the owning Service at Insert time.
func (o *Object) BindMutex(mu *sync.Mutex) { o.mu = mu }

func (o *Object) Mutex() *sync.Mutex { return o.mu }

// Signal atomically ORs m into the mask and reports whether S_RAISE
// transitioned from cleared to set within the mask *and* the mask changed
// at all, per SPEC_FULL.md §4.2.
func (o *Object) Signal(m SignalMask) (needsWake bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	before := o.mask
	o.mask |= m
	changed := o.mask != before
	raisedNow := before&SRaise == 0 && o.mask&SRaise != 0
	return changed && raisedNow
}

// SignalMessage appends msg to the inbound queue and signals S_CMD|S_RAISE.
// It silently refuses (returns false, drops msg) if the object is dying,
// per SPEC_FULL.md §4.2.
func (o *Object) SignalMessage(msg Message) (needsWake bool) {
	o.mu.Lock()
	if o.state != StateRunning {
		o.mu.Unlock()
		return false
	}
	o.queue = append(o.queue, msg)
	before := o.mask
	o.mask |= SCmd | SRaise
	changed := o.mask != before
	raisedNow := before&SRaise == 0
	o.mu.Unlock()
	return changed && raisedNow
}

// GrabSignalMask returns the current mask and resets it to mask & keep. It
// must be called under o.mu by the executing goroutine at the top of
// Execute; the Executor does this itself, the selectors do not.
func (o *Object) GrabSignalMask(keep SignalMask) SignalMask {
	adebug.AssertMutexLocked(o.mu)
	got := o.mask
	o.mask &= keep
	return got
}

// DrainMessages removes and returns all queued messages. Must be called
// under o.mu.
func (o *Object) DrainMessages() []Message {
	adebug.AssertMutexLocked(o.mu)
	if len(o.queue) == 0 {
		return nil
	}
	msgs := o.queue
	o.queue = nil
	return msgs
}

func (o *Object) Residency() Residency {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.residency
}

func (o *Object) SetResidency(r Residency) {
	o.mu.Lock()
	o.residency = r
	o.mu.Unlock()
}

func (o *Object) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// MarkDying refuses new signals from this point on; an object whose state
// is dying never accepts SignalMessage (SPEC_FULL.md §3 invariant (d)).
func (o *Object) MarkDying() {
	o.mu.Lock()
	o.state = StateDying
	o.mu.Unlock()
}

func (o *Object) MarkDead() {
	o.mu.Lock()
	o.state = StateDead
	o.mu.Unlock()
}

func (o *Object) Execute(events EventMask, deadline *time.Time) ExecResult {
	return o.Impl.Execute(o, events, deadline)
}

func (o *Object) Accept(v Visitor) { v.Visit(o) }

func (o *Object) Retain() { o.mu.Lock(); o.useCnt++; o.mu.Unlock() }

// Release decrements the use count and reports whether it reached zero.
func (o *Object) Release() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.useCnt--
	return o.useCnt <= 0
}
