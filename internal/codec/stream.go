package codec

import (
	"io"

	"github.com/pierrec/lz4/v3"
)

// Embedded streams (SPEC_FULL.md §4.6): a message that implements
// object.Streammer can attach an io.Reader (send side) or io.Writer
// (receive side) that is pumped alongside the rest of the message body,
// sized by an int64 header written/read before the first chunk. A
// receiver with no sink (the destination object never opened one, or
// opened one that later errored) drains to io.Discard rather than
// stalling the connection — SPEC_FULL.md §4.6's "dummy sink" rule.

// EncodeStream writes size as an 8-byte header then copies exactly size
// bytes from r into the window across as many Run calls as it takes.
func EncodeStream(r io.Reader, size int64) Frame {
	return &streamOut{r: r, size: size, sizeFrame: &uintFrame{size: 8, val: uint64(size), enc: true}}
}

type streamOut struct {
	r         io.Reader
	size      int64
	sent      int64
	sizeFrame *uintFrame
	sizeDone  bool
}

func (f *streamOut) Step(w *Window) (StepResult, error) {
	if !f.sizeDone {
		res, err := f.sizeFrame.Step(w)
		if res != StepOK {
			return res, err
		}
		f.sizeDone = true
	}
	for f.sent < f.size {
		if w.Avail() == 0 {
			return StepNoRoom, nil
		}
		room := w.Avail()
		want := f.size - f.sent
		if int64(room) > want {
			room = int(want)
		}
		n, err := f.r.Read(w.B[:room])
		if n > 0 {
			w.Advance(n)
			f.sent += int64(n)
		}
		if err != nil && err != io.EOF {
			return StepFail, err
		}
		if n == 0 && err == io.EOF {
			return StepFail, io.ErrUnexpectedEOF
		}
		if w.Avail() == 0 && f.sent < f.size {
			return StepNoRoom, nil
		}
	}
	return StepOK, nil
}

// EncodeCompressedStream is EncodeStream applied to a source that is
// already lz4-compressed (see CompressReader); it does no compression
// itself. size is the COMPRESSED length actually placed on the
// wire (the only length the receiver can check against the window), so
// the source must be pre-compressed before calling this — the Talker's
// caller decides per-message whether compression is worth the CPU, this
// function just carries the result.
func EncodeCompressedStream(compressed io.Reader, size int64) Frame {
	return EncodeStream(compressed, size)
}

// CompressReader returns a Reader that yields the lz4-compressed form of
// r's bytes, compressing on a background goroutine through a pipe so the
// caller can treat it like any other io.Reader (in particular, so its
// length can be measured by draining it into a buffer before calling
// EncodeCompressedStream, which needs the compressed size up front).
func CompressReader(r io.Reader) io.Reader {
	pr, pw := io.Pipe()
	zw := lz4.NewWriter(pw)
	go func() {
		_, err := io.Copy(zw, r)
		if err == nil {
			err = zw.Close()
		}
		_ = pw.CloseWithError(err)
	}()
	return pr
}

// DecompressWriter returns a Writer that lz4-decodes whatever is written
// to it and forwards the decoded bytes to sink, pairing with DecodeStream
// on the receive side of a stream sent via EncodeCompressedStream.
func DecompressWriter(sink io.Writer) io.Writer {
	pr, pw := io.Pipe()
	zr := lz4.NewReader(pr)
	go func() {
		_, err := io.Copy(sink, zr)
		_ = pr.CloseWithError(err)
	}()
	return pw
}

// DecodeStream reads the 8-byte size header, then copies exactly that
// many bytes into sink, the writer supplied by the target message's
// CreateStream. If sink is nil (no writer available) the bytes are
// discarded.
func DecodeStream(sink io.Writer) Frame {
	if sink == nil {
		sink = io.Discard
	}
	var size uint64
	return &streamIn{sizeFrame: &uintFrame{size: 8, enc: false, out: &size}, size: &size, w: sink}
}

type streamIn struct {
	sizeFrame *uintFrame
	size      *uint64
	sizeDone  bool
	recv      int64
	w         io.Writer
}

func (f *streamIn) Step(win *Window) (StepResult, error) {
	if !f.sizeDone {
		res, err := f.sizeFrame.Step(win)
		if res != StepOK {
			return res, err
		}
		f.sizeDone = true
	}
	total := int64(*f.size)
	for f.recv < total {
		if win.Avail() == 0 {
			return StepNoRoom, nil
		}
		room := win.Avail()
		want := total - f.recv
		if int64(room) > want {
			room = int(want)
		}
		n, err := f.w.Write(win.B[:room])
		if n > 0 {
			win.Advance(n)
			f.recv += int64(n)
		}
		if err != nil {
			return StepFail, err
		}
		if win.Avail() == 0 && f.recv < total {
			return StepNoRoom, nil
		}
	}
	return StepOK, nil
}
