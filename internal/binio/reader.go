// Package binio implements the typed primitive reads and writes used by every
// codec in clipkit: fixed-width integers and floats with explicit byte order,
// length-prefixed strings, and UTF-16BE section tags.
//
// Short reads and short writes are always reported as errors carrying the exact
// byte counts. A short read leaves the underlying stream where it was before the
// read so callers can report the position or retry.
package binio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Byte orders used by the container. They are plain aliases so call sites read
// as r.Int32(binio.BE).
var (
	BE binary.ByteOrder = binary.BigEndian
	LE binary.ByteOrder = binary.LittleEndian
)

// Reader reads typed values from a seekable stream and tracks its position.
//
// Reader is sticky: once a read fails, every later read returns the same error.
// Callers decoding long fixed layouts may therefore check Err once at the end.
type Reader struct {
	rs   io.ReadSeeker
	off  int64
	size int64
	err  error
}

// NewReader wraps rs. The stream size is discovered by seeking to the end and
// back; the current position becomes the reader's starting offset.
func NewReader(rs io.ReadSeeker) (*Reader, error) {
	cur, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	end, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	if _, err := rs.Seek(cur, io.SeekStart); err != nil {
		return nil, err
	}
	return &Reader{rs: rs, off: cur, size: end}, nil
}

// NewBytesReader returns a Reader over b.
func NewBytesReader(b []byte) *Reader {
	return &Reader{rs: bytes.NewReader(b), size: int64(len(b))}
}

// Pos returns the absolute offset of the next byte to be read.
func (r *Reader) Pos() int64 { return r.off }

// Size returns the total length of the underlying stream.
func (r *Reader) Size() int64 { return r.size }

// Remaining returns the number of bytes between Pos and the end of the stream.
func (r *Reader) Remaining() int64 { return r.size - r.off }

// Err returns the first error encountered by the reader, if any.
func (r *Reader) Err() error { return r.err }

// Seek moves to the absolute offset off.
func (r *Reader) Seek(off int64) error {
	if r.err != nil {
		return r.err
	}
	if off < 0 || off > r.size {
		return r.fail(fmt.Errorf("binio: seek to %d outside stream of %d bytes", off, r.size))
	}
	if _, err := r.rs.Seek(off, io.SeekStart); err != nil {
		return r.fail(err)
	}
	r.off = off
	return nil
}

// Skip advances n bytes without reading them.
func (r *Reader) Skip(n int64) error {
	if r.err != nil {
		return r.err
	}
	if n < 0 {
		return r.fail(fmt.Errorf("binio: negative skip %d at offset %d", n, r.off))
	}
	if n > r.Remaining() {
		return r.fail(&ShortReadError{Offset: r.off, Want: n, Got: r.Remaining()})
	}
	return r.Seek(r.off + n)
}

// ReadN reads exactly n bytes.
func (r *Reader) ReadN(n int) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	if n < 0 {
		return nil, r.fail(fmt.Errorf("binio: invalid read length %d at offset %d", n, r.off))
	}
	if int64(n) > r.Remaining() {
		// Nothing is consumed, so the position is already where the caller left it.
		return nil, r.fail(&ShortReadError{Offset: r.off, Want: int64(n), Got: r.Remaining()})
	}
	buf := make([]byte, n)
	got, err := io.ReadFull(r.rs, buf)
	if err != nil {
		if _, serr := r.rs.Seek(r.off, io.SeekStart); serr != nil {
			return nil, r.fail(serr)
		}
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return nil, r.fail(&ShortReadError{Offset: r.off, Want: int64(n), Got: int64(got)})
		}
		return nil, r.fail(err)
	}
	r.off += int64(n)
	return buf, nil
}

// Peek returns the next n bytes without consuming them.
func (r *Reader) Peek(n int) ([]byte, error) {
	start := r.off
	b, err := r.ReadN(n)
	if err != nil {
		return nil, err
	}
	if err := r.Seek(start); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *Reader) fail(err error) error {
	if r.err == nil {
		r.err = err
	}
	return err
}

func (r *Reader) Uint8() (uint8, error) {
	b, err := r.ReadN(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) Uint16(order binary.ByteOrder) (uint16, error) {
	b, err := r.ReadN(2)
	if err != nil {
		return 0, err
	}
	return order.Uint16(b), nil
}

func (r *Reader) Int16(order binary.ByteOrder) (int16, error) {
	v, err := r.Uint16(order)
	return int16(v), err
}

func (r *Reader) Uint32(order binary.ByteOrder) (uint32, error) {
	b, err := r.ReadN(4)
	if err != nil {
		return 0, err
	}
	return order.Uint32(b), nil
}

func (r *Reader) Int32(order binary.ByteOrder) (int32, error) {
	v, err := r.Uint32(order)
	return int32(v), err
}

func (r *Reader) Uint64(order binary.ByteOrder) (uint64, error) {
	b, err := r.ReadN(8)
	if err != nil {
		return 0, err
	}
	return order.Uint64(b), nil
}

func (r *Reader) Int64(order binary.ByteOrder) (int64, error) {
	v, err := r.Uint64(order)
	return int64(v), err
}

func (r *Reader) Float32(order binary.ByteOrder) (float32, error) {
	v, err := r.Uint32(order)
	return math.Float32frombits(v), err
}

func (r *Reader) Float64(order binary.ByteOrder) (float64, error) {
	v, err := r.Uint64(order)
	return math.Float64frombits(v), err
}
