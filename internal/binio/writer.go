package binio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Writer writes typed values and tracks the number of bytes emitted.
//
// Like Reader it is sticky: after the first failure every write returns the
// same error, so long layouts may be checked once through Err.
type Writer struct {
	w   io.Writer
	off int64
	err error
}

// NewWriter wraps w. If w is also an io.Seeker its current position becomes the
// starting offset, so Pos reports absolute file offsets.
func NewWriter(w io.Writer) (*Writer, error) {
	bw := &Writer{w: w}
	if s, ok := w.(io.Seeker); ok {
		cur, err := s.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, err
		}
		bw.off = cur
	}
	return bw, nil
}

// NewBufferWriter returns a Writer that appends to buf.
func NewBufferWriter(buf *bytes.Buffer) *Writer {
	return &Writer{w: buf, off: int64(buf.Len())}
}

// Pos returns the offset of the next byte to be written.
func (w *Writer) Pos() int64 { return w.off }

// Err returns the first error encountered by the writer, if any.
func (w *Writer) Err() error { return w.err }

func (w *Writer) fail(err error) error {
	if w.err == nil {
		w.err = err
	}
	return err
}

// Write writes p in full or reports a *ShortWriteError.
func (w *Writer) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	n, err := w.w.Write(p)
	w.off += int64(n)
	if err != nil {
		return n, w.fail(err)
	}
	if n != len(p) {
		return n, w.fail(&ShortWriteError{Offset: w.off - int64(n), Want: int64(len(p)), Got: int64(n)})
	}
	return n, nil
}

// Zeros writes n zero bytes.
func (w *Writer) Zeros(n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}
	return w.Write(make([]byte, n))
}

func (w *Writer) Uint8(v uint8) (int, error) {
	return w.Write([]byte{v})
}

func (w *Writer) Uint16(order binary.ByteOrder, v uint16) (int, error) {
	var b [2]byte
	order.PutUint16(b[:], v)
	return w.Write(b[:])
}

func (w *Writer) Int16(order binary.ByteOrder, v int16) (int, error) {
	return w.Uint16(order, uint16(v))
}

func (w *Writer) Uint32(order binary.ByteOrder, v uint32) (int, error) {
	var b [4]byte
	order.PutUint32(b[:], v)
	return w.Write(b[:])
}

func (w *Writer) Int32(order binary.ByteOrder, v int32) (int, error) {
	return w.Uint32(order, uint32(v))
}

func (w *Writer) Uint64(order binary.ByteOrder, v uint64) (int, error) {
	var b [8]byte
	order.PutUint64(b[:], v)
	return w.Write(b[:])
}

func (w *Writer) Int64(order binary.ByteOrder, v int64) (int, error) {
	return w.Uint64(order, uint64(v))
}

func (w *Writer) Float32(order binary.ByteOrder, v float32) (int, error) {
	return w.Uint32(order, math.Float32bits(v))
}

func (w *Writer) Float64(order binary.ByteOrder, v float64) (int, error) {
	return w.Uint64(order, math.Float64bits(v))
}

var errNotSeekable = errors.New("binio: writer is not seekable")

// PatchInt64 overwrites the 8 bytes at absolute offset at with v and returns to
// the current position. The underlying writer must implement io.WriteSeeker.
func (w *Writer) PatchInt64(order binary.ByteOrder, at int64, v int64) error {
	var b [8]byte
	order.PutUint64(b[:], uint64(v))
	return w.patch(at, b[:])
}

// PatchInt32 is the 4-byte variant of PatchInt64.
func (w *Writer) PatchInt32(order binary.ByteOrder, at int64, v int32) error {
	var b [4]byte
	order.PutUint32(b[:], uint32(v))
	return w.patch(at, b[:])
}

func (w *Writer) patch(at int64, b []byte) error {
	if w.err != nil {
		return w.err
	}
	if at < 0 || at+int64(len(b)) > w.off {
		return w.fail(fmt.Errorf("binio: patch range [%d,%d) outside written data (%d bytes)", at, at+int64(len(b)), w.off))
	}
	if buf, ok := w.w.(*bytes.Buffer); ok {
		// Buffers are addressed from zero; NewBufferWriter starts off at Len().
		copy(buf.Bytes()[at:], b)
		return nil
	}
	ws, ok := w.w.(io.WriteSeeker)
	if !ok {
		return w.fail(errNotSeekable)
	}
	if _, err := ws.Seek(at, io.SeekStart); err != nil {
		return w.fail(err)
	}
	n, err := ws.Write(b)
	if err != nil {
		return w.fail(err)
	}
	if n != len(b) {
		return w.fail(&ShortWriteError{Offset: at, Want: int64(len(b)), Got: int64(n)})
	}
	if _, err := ws.Seek(w.off, io.SeekStart); err != nil {
		return w.fail(err)
	}
	return nil
}
