package blobfmt

import (
	"bytes"
	"fmt"

	"github.com/samcharles93/clipkit/internal/binio"
)

// VectorFlag describes a stroke and which optional fields it carries.
type VectorFlag int32

const (
	VectorNormal    VectorFlag = 0x01
	VectorFrame     VectorFlag = 0x02
	VectorQuadratic VectorFlag = 0x10
	VectorCubic     VectorFlag = 0x20
)

// PointFlag describes one control point.
type PointFlag int32

const PointCorner PointFlag = 0x01

const (
	vectorPointBase  = 72
	vectorPointSize  = 88
	vectorListFooter = 16
)

// VectorPoint is one control point of a stroke.
type VectorPoint struct {
	Position Point
	BBox     BBox
	Flag     PointFlag
	Scale    [3]float32
	Spread   [2]float32
	Width    float32
	Opacity  float32
	Corner   [3]float32
	Params   [2]float32
	Reserved int32
	// Bezier holds one control position for quadratic strokes and two for
	// cubic ones.
	Bezier []Point
	// Extra holds bytes past the known fields, up to the stroke's point size.
	Extra []byte
}

func (p *VectorPoint) IsCorner() bool { return p.Flag&PointCorner != 0 }

func (p *VectorPoint) SetCorner(on bool) {
	if on {
		p.Flag |= PointCorner
	} else {
		p.Flag &^= PointCorner
	}
}

func bezierCount(f VectorFlag) int {
	n := 0
	if f&VectorQuadratic != 0 {
		n++
	}
	if f&VectorCubic != 0 {
		n += 2
	}
	return n
}

// Stroke is one vector line.
type Stroke struct {
	// PointBase and PointDefault are layout constants, 72 and 88 in every
	// file seen so far; they are kept as read.
	PointBase    int32
	PointDefault int32
	Flag         VectorFlag
	BBox         BBox
	MainColor    RGB
	SubColor     RGB
	Opacity      float64
	BrushID      int32

	// Present when Flag has VectorNormal.
	Radius     float64
	NormalTail int32

	// Present when Flag has VectorFrame.
	FrameBrushID int32
	FrameFillID  int32
	FrameRadius  float64
	FrameTail    int32

	HeaderExtra []byte
	Points      []VectorPoint
}

// BrushRadius returns the radius in effect for the stroke kind.
func (s *Stroke) BrushRadius() float64 {
	if s.Flag&VectorFrame != 0 {
		return s.FrameRadius
	}
	return s.Radius
}

func (s *Stroke) headerSize() int {
	n := 4*4 + 4 + 4 + 16 + 12 + 12 + 8 + 4
	if s.Flag&VectorNormal != 0 {
		n += 12
	}
	if s.Flag&VectorFrame != 0 {
		n += 20
	}
	return n + len(s.HeaderExtra)
}

func (s *Stroke) pointSize() (int, error) {
	extra := 0
	for i, p := range s.Points {
		if i == 0 {
			extra = len(p.Extra)
		} else if len(p.Extra) != extra {
			return 0, fmt.Errorf("point %d has %d extra bytes, first point has %d", i, len(p.Extra), extra)
		}
		if len(p.Bezier) != bezierCount(s.Flag) {
			return 0, fmt.Errorf("point %d has %d bezier points, flag %#x wants %d", i, len(p.Bezier), s.Flag, bezierCount(s.Flag))
		}
	}
	return vectorPointSize + 16*bezierCount(s.Flag) + extra, nil
}

func (s *Stroke) decode(d *dec, end int64) {
	start := d.r.Pos()
	headerSize := d.i32()
	s.PointBase = d.i32()
	pointSize := d.i32()
	s.PointDefault = d.i32()
	n := d.count(0, end)
	s.Flag = VectorFlag(d.i32())
	s.BBox = d.bbox()
	s.MainColor = d.rgb()
	s.SubColor = d.rgb()
	s.Opacity = d.f64()
	s.BrushID = d.i32()
	if s.Flag&VectorNormal != 0 {
		s.Radius = d.f64()
		s.NormalTail = d.i32()
	}
	if s.Flag&VectorFrame != 0 {
		s.FrameBrushID = d.i32()
		s.FrameFillID = d.i32()
		s.FrameRadius = d.f64()
		s.FrameTail = d.i32()
	}
	if !d.ok() {
		return
	}
	known := d.r.Pos() - start
	if int64(headerSize) < known || start+int64(headerSize) > end {
		d.failf(start, "stroke header size %d, known fields take %d", headerSize, known)
		return
	}
	s.HeaderExtra = d.bytes(int(int64(headerSize) - known))

	nb := bezierCount(s.Flag)
	minPoint := vectorPointSize + 16*nb
	if int(pointSize) < minPoint || int64(n)*int64(pointSize) > end-d.r.Pos() {
		d.failf(start, "stroke with %d points of %d bytes (need at least %d each)", n, pointSize, minPoint)
		return
	}
	s.Points = make([]VectorPoint, n)
	for i := range s.Points {
		p := &s.Points[i]
		p.Position = d.point()
		p.BBox = d.bbox()
		p.Flag = PointFlag(d.i32())
		p.Scale = [3]float32{d.f32(), d.f32(), d.f32()}
		p.Spread = [2]float32{d.f32(), d.f32()}
		p.Width = d.f32()
		p.Opacity = d.f32()
		p.Corner = [3]float32{d.f32(), d.f32(), d.f32()}
		p.Params = [2]float32{d.f32(), d.f32()}
		p.Reserved = d.i32()
		for range nb {
			p.Bezier = append(p.Bezier, d.point())
		}
		p.Extra = d.bytes(int(pointSize) - minPoint)
	}
}

func (s *Stroke) encode(e *enc, pointSize int) {
	e.i32(int32(s.headerSize()))
	e.i32(orDefault(s.PointBase, vectorPointBase))
	e.i32(int32(pointSize))
	e.i32(orDefault(s.PointDefault, vectorPointSize))
	e.i32(int32(len(s.Points)))
	e.i32(int32(s.Flag))
	e.bbox(s.BBox)
	e.rgb(s.MainColor)
	e.rgb(s.SubColor)
	e.f64(s.Opacity)
	e.i32(s.BrushID)
	if s.Flag&VectorNormal != 0 {
		e.f64(s.Radius)
		e.i32(s.NormalTail)
	}
	if s.Flag&VectorFrame != 0 {
		e.i32(s.FrameBrushID)
		e.i32(s.FrameFillID)
		e.f64(s.FrameRadius)
		e.i32(s.FrameTail)
	}
	e.raw(s.HeaderExtra)
	for _, p := range s.Points {
		e.point(p.Position)
		e.bbox(p.BBox)
		e.i32(int32(p.Flag))
		for _, v := range p.Scale {
			e.f32(v)
		}
		for _, v := range p.Spread {
			e.f32(v)
		}
		e.f32(p.Width)
		e.f32(p.Opacity)
		for _, v := range p.Corner {
			e.f32(v)
		}
		for _, v := range p.Params {
			e.f32(v)
		}
		e.i32(p.Reserved)
		for _, b := range p.Bezier {
			e.point(b)
		}
		e.raw(p.Extra)
	}
}

// VectorList is a decoded vector data chunk: strokes followed by a 16-byte
// footer that is carried through unchanged.
type VectorList struct {
	Strokes []Stroke
	Footer  []byte
}

// NewVectorList returns an empty list with a zero footer.
func NewVectorList() *VectorList {
	return &VectorList{Footer: make([]byte, vectorListFooter)}
}

// ParseVectorList decodes raw vector chunk bytes.
func ParseVectorList(b []byte, _ Options) (*VectorList, error) {
	d := newDec(b, "vector")
	end := int64(len(b))
	l := &VectorList{}
	for d.ok() && d.r.Pos() < end-vectorListFooter {
		var s Stroke
		s.decode(d, end)
		l.Strokes = append(l.Strokes, s)
	}
	if err := d.failed(); err != nil {
		return nil, fmt.Errorf("%w: vector list: %w", ErrCorrupt, err)
	}
	l.Footer = bytes.Clone(b[d.r.Pos():])
	return l, nil
}

// Bytes encodes the list.
func (l *VectorList) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	e := &enc{w: binio.NewBufferWriter(&buf)}
	for i := range l.Strokes {
		s := &l.Strokes[i]
		ps, err := s.pointSize()
		if err != nil {
			return nil, fmt.Errorf("blobfmt: stroke %d: %w", i, err)
		}
		s.encode(e, ps)
	}
	e.raw(l.Footer)
	if err := e.w.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
