package binio

import (
	"fmt"
	"io"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// Encoding selects how a length-prefixed string is stored.
type Encoding uint8

const (
	// UTF16BE is used for section tags and most names.
	UTF16BE Encoding = iota + 1
	// UTF16LE is used for text-run font names.
	UTF16LE
	// UTF8 is used for font display names.
	UTF8
)

func (e Encoding) String() string {
	switch e {
	case UTF16BE:
		return "UTF-16BE"
	case UTF16LE:
		return "UTF-16LE"
	case UTF8:
		return "UTF-8"
	}
	return fmt.Sprintf("Encoding(%d)", uint8(e))
}

// unitSize is the size of one counted unit in the length prefix.
func (e Encoding) unitSize() int {
	if e == UTF8 {
		return 1
	}
	return 2
}

func (e Encoding) codec() encoding.Encoding {
	switch e {
	case UTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	case UTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	}
	return nil
}

// Encode returns the raw bytes of s in encoding e, without a length prefix.
func (e Encoding) Encode(s string) ([]byte, error) {
	switch e {
	case UTF8:
		return []byte(s), nil
	case UTF16BE, UTF16LE:
		return e.codec().NewEncoder().Bytes([]byte(s))
	}
	return nil, fmt.Errorf("binio: unknown string encoding %d", uint8(e))
}

// Decode converts raw bytes in encoding e to a Go string.
func (e Encoding) Decode(b []byte) (string, error) {
	switch e {
	case UTF8:
		return string(b), nil
	case UTF16BE, UTF16LE:
		out, err := e.codec().NewDecoder().Bytes(b)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
	return "", fmt.Errorf("binio: unknown string encoding %d", uint8(e))
}

// String reads a big-endian length prefix of width bytes (4 or 8) followed by
// the string data. UTF-16 prefixes count code units, UTF-8 prefixes count bytes.
func (r *Reader) String(width int, enc Encoding) (string, error) {
	start := r.off
	var n int64
	switch width {
	case 4:
		v, err := r.Int32(BE)
		if err != nil {
			return "", err
		}
		n = int64(v)
	case 8:
		v, err := r.Int64(BE)
		if err != nil {
			return "", err
		}
		n = v
	default:
		return "", r.fail(fmt.Errorf("binio: unsupported length prefix width %d", width))
	}
	byteLen := n * int64(enc.unitSize())
	if n < 0 || byteLen > r.Remaining() {
		got := r.Remaining()
		_ = r.rewind(start)
		return "", r.fail(&ShortReadError{Offset: start, Want: byteLen, Got: got})
	}
	raw, err := r.ReadN(int(byteLen))
	if err != nil {
		return "", err
	}
	s, err := enc.Decode(raw)
	if err != nil {
		return "", r.fail(fmt.Errorf("binio: decode %s string at offset %d: %w", enc, start, err))
	}
	return s, nil
}

// Tag reads a UTF-16BE section tag with a 4-byte code unit count.
func (r *Reader) Tag() (string, error) {
	return r.String(4, UTF16BE)
}

// ExpectTag reads a tag and fails with a *TagError if it is not want.
func (r *Reader) ExpectTag(want string) error {
	start := r.off
	got, err := r.Tag()
	if err != nil {
		return err
	}
	if got != want {
		return r.fail(&TagError{Offset: start, Want: want, Got: got})
	}
	return nil
}

// rewind moves back without touching the sticky error; used when a read has
// to be abandoned after part of it was consumed.
func (r *Reader) rewind(off int64) error {
	if _, err := r.rs.Seek(off, io.SeekStart); err != nil {
		return err
	}
	r.off = off
	return nil
}

// WriteString writes s with a big-endian length prefix of width bytes.
func (w *Writer) WriteString(width int, enc Encoding, s string) (int, error) {
	raw, err := enc.Encode(s)
	if err != nil {
		return 0, w.fail(err)
	}
	units := int64(len(raw) / enc.unitSize())
	var n int
	switch width {
	case 4:
		n, err = w.Int32(BE, int32(units))
	case 8:
		n, err = w.Int64(BE, units)
	default:
		return 0, w.fail(fmt.Errorf("binio: unsupported length prefix width %d", width))
	}
	if err != nil {
		return n, err
	}
	m, err := w.Write(raw)
	return n + m, err
}

// WriteTag writes a UTF-16BE section tag with a 4-byte code unit count.
func (w *Writer) WriteTag(name string) (int, error) {
	return w.WriteString(4, UTF16BE, name)
}

// TagSize returns the encoded size of a section tag, prefix included.
func TagSize(name string) int {
	raw, _ := UTF16BE.Encode(name)
	return 4 + len(raw)
}
