// Package blobfmt decodes and encodes the binary blobs stored in database
// columns: gradient fills, correction filters, layer effects, vector stroke
// lists, text attributes and ruler point data.
//
// Most blobs share one frame: an int32 byte count covering the whole blob,
// then a sequence of sections introduced either by a UTF-16BE tag or by an
// int32 id, each followed by an int32 payload size. Sections with an
// unrecognised tag are kept verbatim as RawSection and written back in their
// original position, so unknown data survives a decode/encode cycle.
package blobfmt

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/samcharles93/clipkit/internal/binio"
	"github.com/samcharles93/clipkit/internal/logger"
)

var ErrCorrupt = errors.New("blobfmt: corrupt blob")

// Options configures the decoders.
type Options struct {
	Logger logger.Logger
}

func (o Options) log() logger.Logger {
	if o.Logger == nil {
		return logger.Discard()
	}
	return o.Logger
}

// Skipped describes a section that was kept as raw bytes.
type Skipped struct {
	Format string
	Tag    string
	Offset int64
	Size   int
}

// Decoded carries the diagnostics of a tolerant decode. Encoders ignore it.
type Decoded struct {
	Skipped []Skipped
}

// Body is the decoded payload of one section. The concrete types are listed
// with each format; RawSection stands for anything unrecognised.
type Body interface {
	decode(d *dec, end int64)
	encode(e *enc)
}

// unsized marks bodies whose section carries no size field.
type unsized interface {
	unsizedSection()
}

// Section is one entry of a sectioned blob. Name is set for tag-keyed formats
// and ID for id-keyed ones.
type Section struct {
	Name string
	ID   int32
	Body Body
	// Trailing holds payload bytes after the fields the decoder knows.
	Trailing []byte
}

// RawSection is a well-framed section the decoder does not understand.
type RawSection struct {
	Data []byte
}

func (s *RawSection) decode(d *dec, end int64) { s.Data = d.bytes(int(end - d.r.Pos())) }
func (s *RawSection) encode(e *enc)            { e.raw(s.Data) }

// dec wraps a sticky binio.Reader with value-returning helpers. Callers read
// a whole layout and check err once.
type dec struct {
	r      *binio.Reader
	format string
	err    error
}

func newDec(b []byte, format string) *dec {
	return &dec{r: binio.NewBytesReader(b), format: format}
}

func (d *dec) ok() bool { return d.failed() == nil }

func (d *dec) failed() error {
	if d.err != nil {
		return d.err
	}
	return d.r.Err()
}

func (d *dec) failf(off int64, format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %s at offset %d: %s", ErrCorrupt, d.format, off, fmt.Sprintf(format, args...))
	}
}

func (d *dec) i32() int32      { v, _ := d.r.Int32(binio.BE); return v }
func (d *dec) u32() uint32     { v, _ := d.r.Uint32(binio.BE); return v }
func (d *dec) u16() uint16     { v, _ := d.r.Uint16(binio.BE); return v }
func (d *dec) f32() float32    { v, _ := d.r.Float32(binio.BE); return v }
func (d *dec) f64() float64    { v, _ := d.r.Float64(binio.BE); return v }
func (d *dec) flag() bool      { return d.i32() != 0 }
func (d *dec) point() Point    { return Point{X: d.f64(), Y: d.f64()} }
func (d *dec) bbox() BBox      { return BBox{X1: d.i32(), Y1: d.i32(), X2: d.i32(), Y2: d.i32()} }
func (d *dec) tenths() float64 { return float64(d.i32()) / 10 }

func (d *dec) hundredths() float64 { return float64(d.i32()) / 100 }

func (d *dec) rgb() RGB {
	return RGB{R: uint8(d.u32() >> 24), G: uint8(d.u32() >> 24), B: uint8(d.u32() >> 24)}
}

func (d *dec) str(enc binio.Encoding) string {
	if !d.ok() {
		return ""
	}
	s, _ := d.r.String(4, enc)
	return s
}

func (d *dec) bytes(n int) []byte {
	if !d.ok() || n <= 0 {
		return nil
	}
	b, _ := d.r.ReadN(n)
	return bytes.Clone(b)
}

// count reads an int32 element count and checks that count elements of at
// least elem bytes fit before end.
func (d *dec) count(elem int, end int64) int {
	off := d.r.Pos()
	n := d.i32()
	if !d.ok() {
		return 0
	}
	if n < 0 || int64(n)*int64(elem) > end-d.r.Pos() {
		d.failf(off, "count %d does not fit in %d bytes", n, end-d.r.Pos())
		return 0
	}
	return int(n)
}

// enc wraps a sticky binio.Writer.
type enc struct {
	w *binio.Writer
}

func (e *enc) i32(v int32)   { _, _ = e.w.Int32(binio.BE, v) }
func (e *enc) u32(v uint32)  { _, _ = e.w.Uint32(binio.BE, v) }
func (e *enc) u16(v uint16)  { _, _ = e.w.Uint16(binio.BE, v) }
func (e *enc) f32(v float32) { _, _ = e.w.Float32(binio.BE, v) }
func (e *enc) f64(v float64) { _, _ = e.w.Float64(binio.BE, v) }
func (e *enc) raw(b []byte)  { _, _ = e.w.Write(b) }
func (e *enc) point(p Point) { e.f64(p.X); e.f64(p.Y) }

func (e *enc) flag(v bool) {
	if v {
		e.i32(1)
		return
	}
	e.i32(0)
}

func (e *enc) rgb(c RGB) {
	e.u32(uint32(c.R) << 24)
	e.u32(uint32(c.G) << 24)
	e.u32(uint32(c.B) << 24)
}

func (e *enc) bbox(b BBox)                           { e.i32(b.X1); e.i32(b.Y1); e.i32(b.X2); e.i32(b.Y2) }
func (e *enc) tenths(v float64)                      { e.i32(scaled(v, 10)) }
func (e *enc) hundredths(v float64)                  { e.i32(scaled(v, 100)) }
func (e *enc) str(encoding binio.Encoding, s string) { _, _ = e.w.WriteString(4, encoding, s) }

// sized writes an int32 size placeholder, runs body and patches the size to
// the number of bytes body wrote.
func (e *enc) sized(body func()) {
	at := e.w.Pos()
	e.i32(0)
	start := e.w.Pos()
	body()
	if e.w.Err() == nil {
		_ = e.w.PatchInt32(binio.BE, at, int32(e.w.Pos()-start))
	}
}

// decodeBlob reads the int32 total that opens a blob and runs body over the
// bytes it covers. Bytes past the total are returned as trailing.
func decodeBlob(b []byte, format string, body func(d *dec, end int64)) (trailing []byte, err error) {
	d := newDec(b, format)
	total := d.i32()
	if !d.ok() {
		return nil, fmt.Errorf("blobfmt: %s: %w", format, d.failed())
	}
	if total < 4 || int(total) > len(b) {
		return nil, fmt.Errorf("%w: %s total size %d for %d bytes", ErrCorrupt, format, total, len(b))
	}
	body(d, int64(total))
	if err := d.failed(); err != nil {
		if errors.Is(err, ErrCorrupt) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, format, err)
	}
	if d.r.Pos() != int64(total) {
		return nil, fmt.Errorf("%w: %s sections end at %d, total is %d", ErrCorrupt, format, d.r.Pos(), total)
	}
	return bytes.Clone(b[total:]), nil
}

// encodeBlob writes the int32 total, body, and trailing. The total covers the
// total field and body but not trailing.
func encodeBlob(trailing []byte, body func(e *enc)) ([]byte, error) {
	var buf bytes.Buffer
	e := &enc{w: binio.NewBufferWriter(&buf)}
	e.i32(0)
	body(e)
	if err := e.w.Err(); err != nil {
		return nil, err
	}
	if err := e.w.PatchInt32(binio.BE, 0, int32(e.w.Pos())); err != nil {
		return nil, err
	}
	e.raw(trailing)
	if err := e.w.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// readNamed runs the tag-keyed section loop until end. lookup returns a fresh
// body for a recognised tag, or nil.
func readNamed(d *dec, end int64, lookup func(name string) Body, o Options, dd *Decoded) []Section {
	var out []Section
	for d.ok() && d.r.Pos() < end {
		off := d.r.Pos()
		name, err := d.r.Tag()
		if err != nil {
			break
		}
		body := lookup(name)
		if _, ok := body.(unsized); ok {
			body.decode(d, end)
			out = append(out, Section{Name: name, Body: body})
			continue
		}
		s, ok := readSized(d, end, off, name, body, o, dd)
		if !ok {
			break
		}
		s.Name = name
		out = append(out, s)
	}
	return out
}

// readIDs runs the id-keyed section loop until end. A zero size means the
// section has no payload.
func readIDs(d *dec, end int64, lookup func(id int32) Body, o Options, dd *Decoded) []Section {
	var out []Section
	for d.ok() && d.r.Pos() < end {
		off := d.r.Pos()
		id := d.i32()
		if !d.ok() {
			break
		}
		body := lookup(id)
		s, ok := readSized(d, end, off, fmt.Sprintf("#%d", id), body, o, dd)
		if !ok {
			break
		}
		s.ID = id
		out = append(out, s)
	}
	return out
}

func readSized(d *dec, end, off int64, tag string, body Body, o Options, dd *Decoded) (Section, bool) {
	size := d.i32()
	if !d.ok() {
		return Section{}, false
	}
	start := d.r.Pos()
	if size < 0 || start+int64(size) > end {
		d.failf(off, "section %s size %d overruns blob end %d", tag, size, end)
		return Section{}, false
	}
	bodyEnd := start + int64(size)
	if body == nil || size == 0 {
		raw := &RawSection{Data: d.bytes(int(size))}
		if body == nil {
			o.log().Debug("skipped unknown section", "format", d.format, "tag", tag, "offset", off, "size", size)
			dd.Skipped = append(dd.Skipped, Skipped{Format: d.format, Tag: tag, Offset: off, Size: int(size)})
		}
		return Section{Body: raw}, d.ok()
	}
	body.decode(d, bodyEnd)
	if !d.ok() {
		return Section{}, false
	}
	if d.r.Pos() > bodyEnd {
		d.failf(off, "section %s read %d bytes past its size %d", tag, d.r.Pos()-bodyEnd, size)
		return Section{}, false
	}
	s := Section{Body: body, Trailing: d.bytes(int(bodyEnd - d.r.Pos()))}
	return s, d.ok()
}

func writeNamed(e *enc, sections []Section) {
	for _, s := range sections {
		_, _ = e.w.WriteTag(s.Name)
		if _, ok := s.Body.(unsized); ok {
			s.Body.encode(e)
			continue
		}
		e.sized(func() {
			s.Body.encode(e)
			e.raw(s.Trailing)
		})
	}
}

func writeIDs(e *enc, sections []Section) {
	for _, s := range sections {
		e.i32(s.ID)
		e.sized(func() {
			s.Body.encode(e)
			e.raw(s.Trailing)
		})
	}
}

// find returns the first body of type T among sections.
func find[T Body](sections []Section) (T, bool) {
	for _, s := range sections {
		if b, ok := s.Body.(T); ok {
			return b, true
		}
	}
	var zero T
	return zero, false
}

// put replaces the first section of b's type, or appends one named name.
func put[T Body](sections []Section, name string, id int32, b T) []Section {
	for i := range sections {
		if _, ok := sections[i].Body.(T); ok {
			sections[i].Body = b
			sections[i].Trailing = nil
			return sections
		}
	}
	return append(sections, Section{Name: name, ID: id, Body: b})
}
