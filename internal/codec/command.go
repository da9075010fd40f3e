package codec

// Command framing (SPEC_FULL.md §4.6): a command is an ordinary
// polymorphic message preceded by a one-byte marker that tells the
// decoder how to treat engine nesting.
//
//   MarkerNew        a fresh top-level command; no nested context is open.
//   MarkerNewNested   a command carried as a field of another, still-open
//                     command (one level of nesting only — EnterNested
//                     returns ErrNestingExceeded past that).
//   MarkerOld         resumption marker for a command whose encode/decode
//                     was interrupted mid-flight by buffer exhaustion; the
//                     engine's own work-stack resumption already handles
//                     this case transparently, so MarkerOld exists purely
//                     so a log or trace reading raw bytes can tell the two
//                     apart without re-running the engine.
const (
	MarkerNew byte = iota + 1
	MarkerNewNested
	MarkerOld
)

// EncodeCommand writes the marker byte (MarkerNewNested when nested is
// true) followed by the polymorphic encoding of v under name. For a
// nested command the returned Frame itself calls EnterNested on its first
// Step and LeaveNested once it reports StepOK or StepFail (see
// nestedFrame below); the caller does not call either.
func EncodeCommand(e *Engine, r *Registry, name string, v any, nested bool) Frame {
	marker := MarkerNew
	if nested {
		marker = MarkerNewNested
	}
	body := r.EncodePolymorphic(name, v)
	frames := []Frame{EncodeUint(1, uint64(marker)), body}
	if !nested {
		return &sequence{frames: frames}
	}
	return &nestedFrame{engine: e, inner: &sequence{frames: frames}}
}

// DecodeCommand reads the marker byte and dispatches to the registry's
// polymorphic decoder, returning the constructed instance through out.
// A MarkerNewNested command enters nesting for the duration of its body
// and leaves it automatically on completion or failure.
func DecodeCommand(e *Engine, r *Registry, out *any) Frame {
	var marker uint64
	return &commandDecode{engine: e, registry: r, out: out, markerFrame: &uintFrame{size: 1, enc: false, out: &marker}, marker: &marker}
}

type commandDecode struct {
	engine      *Engine
	registry    *Registry
	out         *any
	markerFrame *uintFrame
	marker      *uint64
	gotMarker   bool
	body        Frame
	enteredNest bool
}

func (c *commandDecode) Step(w *Window) (StepResult, error) {
	if !c.gotMarker {
		res, err := c.markerFrame.Step(w)
		if res != StepOK {
			return res, err
		}
		c.gotMarker = true
		if byte(*c.marker) == MarkerNewNested {
			if err := c.engine.EnterNested(); err != nil {
				return StepFail, err
			}
			c.enteredNest = true
		}
		c.body = c.registry.DecodePolymorphic(c.out)
	}
	res, err := c.body.Step(w)
	if res == StepOK || res == StepFail {
		if c.enteredNest {
			c.engine.LeaveNested()
		}
	}
	return res, err
}

// nestedFrame wraps inner so EnterNested/LeaveNested bracket its whole
// (possibly multi-Run) lifetime rather than just the frame's own Step.
type nestedFrame struct {
	engine  *Engine
	inner   Frame
	entered bool
}

func (n *nestedFrame) Step(w *Window) (StepResult, error) {
	if !n.entered {
		if err := n.engine.EnterNested(); err != nil {
			return StepFail, err
		}
		n.entered = true
	}
	res, err := n.inner.Step(w)
	if res == StepOK || res == StepFail {
		n.engine.LeaveNested()
	}
	return res, err
}
