// Package codec implements the stackful, resumable binary serializer
// described in SPEC_FULL.md §4.6: two stacks (a work stack of frames, an
// extra stack of small scratch storage) that together can produce exactly
// as many output bytes as the caller offers room for, yield, and resume
// seamlessly across buffer boundaries — required because IPC buffers are
// bounded (~1.4KB) while many messages, and any embedded stream, exceed
// that.
//
// Grounded on aistore's transport/pdu.go, whose spdu/rpdu readFrom methods
// already implement "produce/consume exactly N bytes, report done, resume
// on the next call" — the direct Go-idiom precedent for this engine's Run
// loop.
package codec

// StepResult is the per-frame outcome: Ok (pop me), Continue (re-run top
// without popping), NoRoom (caller must give more buffer), Fail.
type StepResult int

const (
	StepOK StepResult = iota
	StepContinue
	StepNoRoom
	StepFail
)

// Window is the remaining, unconsumed slice of the caller's buffer. Encode
// frames shrink it from the front as they write; decode frames shrink it
// as they read. It is the same type for both directions because the
// stepping mechanics are identical — only what a given Frame does with the
// bytes differs.
type Window struct {
	B []byte
}

func (w *Window) Avail() int { return len(w.B) }

func (w *Window) Advance(n int) { w.B = w.B[n:] }

// Frame is one unit of work on the engine's work stack.
type Frame interface {
	Step(w *Window) (StepResult, error)
}

// FrameFunc adapts a plain function to the Frame interface for simple,
// stateless-except-for-closure frames.
type FrameFunc func(w *Window) (StepResult, error)

func (f FrameFunc) Step(w *Window) (StepResult, error) { return f(w) }

// Scratch is the extra stack: small, typed scratch slots a frame can stash
// state in across resumptions (container iterators, declared-length
// counters, opened stream handles), per SPEC_FULL.md §4.6.
type Scratch struct {
	stack []any
}

func (s *Scratch) Push(v any) { s.stack = append(s.stack, v) }

func (s *Scratch) Pop() any {
	n := len(s.stack)
	v := s.stack[n-1]
	s.stack = s.stack[:n-1]
	return v
}

func (s *Scratch) Top() any { return s.stack[len(s.stack)-1] }

func (s *Scratch) Len() int { return len(s.stack) }

// maxNesting bounds the engine's suspended-command nesting, matching the
// one-level nesting rule of SPEC_FULL.md §4.6/IPC framing
// (NewCommand/ContinuedCommand/OldCommand).
const maxNesting = 2

// Engine runs a work stack of Frames against successive buffers, yielding
// when a frame reports NoRoom and resuming exactly where it left off on
// the next call to Run. One Engine handles one direction (encode or
// decode) of one in-flight message.
type Engine struct {
	work    []Frame
	extra   Scratch
	nesting int
}

func NewEngine() *Engine { return &Engine{} }

// Push adds a frame to the top of the work stack (it runs next).
func (e *Engine) Push(f Frame) { e.work = append(e.work, f) }

// PushAll pushes frames so that fs[0] runs first (LIFO push in reverse).
func (e *Engine) PushAll(fs ...Frame) {
	for i := len(fs) - 1; i >= 0; i-- {
		e.Push(fs[i])
	}
}

func (e *Engine) Extra() *Scratch { return &e.extra }

func (e *Engine) Done() bool { return len(e.work) == 0 }

func (e *Engine) EnterNested() error {
	if e.nesting >= maxNesting {
		return ErrNestingExceeded
	}
	e.nesting++
	return nil
}

func (e *Engine) LeaveNested() { e.nesting-- }

// Run drives the work stack against buf until either the stack empties
// (Done()==true, the message is fully produced/consumed), buf is
// exhausted (NoRoom: the caller must supply another buffer and call Run
// again — this is the "yield and resume" contract), or a frame fails.
func (e *Engine) Run(buf []byte) (n int, err error) {
	w := &Window{B: buf}
	start := len(buf)

	for len(e.work) > 0 {
		top := e.work[len(e.work)-1]
		res, ferr := top.Step(w)
		switch res {
		case StepOK:
			e.work = e.work[:len(e.work)-1]
		case StepContinue:
			// re-run top next iteration without popping
		case StepNoRoom:
			return start - w.Avail(), nil
		case StepFail:
			return start - w.Avail(), ferr
		}
	}
	return start - w.Avail(), nil
}
