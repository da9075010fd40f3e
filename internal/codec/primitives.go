package codec

import "encoding/binary"

// Primitives are written little-endian, always — resolving spec.md Design
// Notes §9 Open Question (b) in favor of one fixed convention (SPEC_FULL.md
// §4.6/§6).

// --- fixed-width integer frames ---

type uintFrame struct {
	size int // 1, 2, 4, or 8 bytes
	val  uint64
	enc  bool // true: write val; false: read into *out
	out  *uint64
	done int // bytes already produced/consumed
}

func EncodeUint(size int, v uint64) Frame {
	return &uintFrame{size: size, val: v, enc: true}
}

func DecodeUint(size int, out *uint64) Frame {
	return &uintFrame{size: size, enc: false, out: out}
}

func (f *uintFrame) Step(w *Window) (StepResult, error) {
	var buf [8]byte
	if f.enc {
		switch f.size {
		case 1:
			buf[0] = byte(f.val)
		case 2:
			binary.LittleEndian.PutUint16(buf[:2], uint16(f.val))
		case 4:
			binary.LittleEndian.PutUint32(buf[:4], uint32(f.val))
		case 8:
			binary.LittleEndian.PutUint64(buf[:8], f.val)
		}
		n := copy(w.B, buf[f.done:f.size])
		w.Advance(n)
		f.done += n
		if f.done == f.size {
			return StepOK, nil
		}
		return StepNoRoom, nil
	}

	n := copy(buf[f.done:f.size], w.B)
	w.Advance(n)
	f.done += n
	if f.done < f.size {
		return StepNoRoom, nil
	}
	switch f.size {
	case 1:
		*f.out = uint64(buf[0])
	case 2:
		*f.out = uint64(binary.LittleEndian.Uint16(buf[:2]))
	case 4:
		*f.out = uint64(binary.LittleEndian.Uint32(buf[:4]))
	case 8:
		*f.out = binary.LittleEndian.Uint64(buf[:8])
	}
	return StepOK, nil
}

// --- length-prefixed byte/string frames ---

type bytesFrame struct {
	enc      bool
	data     []byte  // to write, or decoded into
	out      *[]byte // decode target
	lenFrame *uintFrame
	lenVal   uint64
	phase    int // 0: length, 1: payload
	done     int
}

func EncodeBytes(b []byte) Frame {
	return &bytesFrame{enc: true, data: b, lenVal: uint64(len(b))}
}

func DecodeBytes(out *[]byte) Frame {
	return &bytesFrame{enc: false, out: out}
}

func (f *bytesFrame) Step(w *Window) (StepResult, error) {
	if f.phase == 0 {
		if f.lenFrame == nil {
			if f.enc {
				f.lenFrame = &uintFrame{size: 4, val: f.lenVal, enc: true}
			} else {
				f.lenFrame = &uintFrame{size: 4, enc: false, out: &f.lenVal}
			}
		}
		res, err := f.lenFrame.Step(w)
		if res != StepOK {
			return res, err
		}
		f.phase = 1
		if !f.enc {
			f.data = make([]byte, f.lenVal)
		}
		if len(f.data) == 0 {
			if !f.enc {
				*f.out = f.data
			}
			return StepOK, nil
		}
	}

	if f.enc {
		n := copy(w.B, f.data[f.done:])
		w.Advance(n)
		f.done += n
		if f.done < len(f.data) {
			return StepNoRoom, nil
		}
		return StepOK, nil
	}

	n := copy(f.data[f.done:], w.B)
	w.Advance(n)
	f.done += n
	if f.done < len(f.data) {
		return StepNoRoom, nil
	}
	*f.out = f.data
	return StepOK, nil
}

func EncodeString(s string) Frame { return EncodeBytes([]byte(s)) }

func DecodeString(out *string) Frame {
	var b []byte
	inner := DecodeBytes(&b)
	return FrameFunc(func(w *Window) (StepResult, error) {
		res, err := inner.Step(w)
		if res == StepOK {
			*out = string(b)
		}
		return res, err
	})
}

// --- containers: a size frame followed by one frame per element ---

// EncodeContainer writes len(elemEncoders) as a uint32, then runs each
// encoder frame in order, per SPEC_FULL.md §4.6 ("containers push a size
// frame first, then emit one frame per element").
func EncodeContainer(elems []Frame) Frame {
	frames := make([]Frame, 0, len(elems)+1)
	frames = append(frames, EncodeUint(4, uint64(len(elems))))
	frames = append(frames, elems...)
	return &sequence{frames: frames}
}

// DecodeContainer reads a uint32 count, then calls makeElem(i) for each
// index to obtain the Frame that will decode that element.
func DecodeContainer(makeElem func(i int) Frame) Frame {
	var count uint64
	return &containerDecode{countFrame: DecodeUint(4, &count), count: &count, makeElem: makeElem}
}

type sequence struct {
	frames []Frame
	idx    int
}

func (s *sequence) Step(w *Window) (StepResult, error) {
	for s.idx < len(s.frames) {
		res, err := s.frames[s.idx].Step(w)
		switch res {
		case StepOK:
			s.idx++
		case StepContinue:
			// re-run the same element next call
		default: // NoRoom or Fail
			return res, err
		}
	}
	return StepOK, nil
}

type containerDecode struct {
	countFrame Frame
	count      *uint64
	makeElem   func(i int) Frame
	started    bool
	idx        int
	elemFrame  Frame
}

func (c *containerDecode) Step(w *Window) (StepResult, error) {
	if !c.started {
		res, err := c.countFrame.Step(w)
		if res != StepOK {
			return res, err
		}
		c.started = true
	}
	for int(*c.count) > c.idx {
		if c.elemFrame == nil {
			c.elemFrame = c.makeElem(c.idx)
		}
		res, err := c.elemFrame.Step(w)
		if res != StepOK {
			return res, err
		}
		c.elemFrame = nil
		c.idx++
	}
	return StepOK, nil
}
