package blobfmt

import (
	"bytes"
	"fmt"

	"github.com/samcharles93/clipkit/internal/binio"
)

// CorrectionType identifies the filter of a correction layer.
type CorrectionType int32

const (
	CorrectionBrightnessContrast CorrectionType = iota + 1
	CorrectionLevel
	CorrectionToneCurve
	CorrectionHSL
	CorrectionColorBalance
	CorrectionReverseGradient
	CorrectionPosterization
	CorrectionThreshold
	CorrectionGradientMap
)

func (t CorrectionType) String() string {
	switch t {
	case CorrectionBrightnessContrast:
		return "brightness-contrast"
	case CorrectionLevel:
		return "level"
	case CorrectionToneCurve:
		return "tone-curve"
	case CorrectionHSL:
		return "hsl"
	case CorrectionColorBalance:
		return "color-balance"
	case CorrectionReverseGradient:
		return "reverse-gradient"
	case CorrectionPosterization:
		return "posterization"
	case CorrectionThreshold:
		return "threshold"
	case CorrectionGradientMap:
		return "gradient-map"
	}
	return fmt.Sprintf("correction(%d)", int32(t))
}

// CorrectionParams is the payload of one correction type.
type CorrectionParams interface {
	Body
	Type() CorrectionType
}

// Correction is a decoded FilterLayerInfo blob: an int32 type, an int32
// payload length and the payload.
type Correction struct {
	Params CorrectionParams
	// Trailing holds payload bytes after the known fields.
	Trailing []byte
	// Extra holds bytes after the payload.
	Extra []byte
}

// ParseCorrection decodes a FilterLayerInfo blob. Unknown types keep their
// payload in a RawCorrection. Values are kept as stored, even out of range;
// the constructors and setters clamp.
func ParseCorrection(b []byte, opts Options) (*Correction, error) {
	d := newDec(b, "correction")
	typ := CorrectionType(d.i32())
	length := d.i32()
	if !d.ok() {
		return nil, fmt.Errorf("%w: correction header: %w", ErrCorrupt, d.failed())
	}
	end := d.r.Pos() + int64(length)
	if length < 0 || end > d.r.Size() {
		return nil, fmt.Errorf("%w: correction payload length %d for %d bytes", ErrCorrupt, length, len(b))
	}

	params := newCorrectionParams(typ)
	if params == nil {
		opts.log().Debug("unknown correction type", "type", int32(typ), "size", length)
		params = &RawCorrection{Kind: typ}
	}
	params.decode(d, end)
	if err := d.failed(); err != nil {
		return nil, fmt.Errorf("%w: %s correction: %w", ErrCorrupt, typ, err)
	}
	if d.r.Pos() > end {
		return nil, fmt.Errorf("%w: %s correction reads %d bytes past its length", ErrCorrupt, typ, d.r.Pos()-end)
	}
	c := &Correction{Params: params}
	c.Trailing = d.bytes(int(end - d.r.Pos()))
	if err := d.failed(); err != nil {
		return nil, err
	}
	c.Extra = bytes.Clone(b[end:])
	return c, nil
}

// Bytes encodes the correction.
func (c *Correction) Bytes() ([]byte, error) {
	if c.Params == nil {
		return nil, fmt.Errorf("blobfmt: correction has no parameters")
	}
	var buf bytes.Buffer
	e := &enc{w: binio.NewBufferWriter(&buf)}
	e.i32(int32(c.Params.Type()))
	e.sized(func() {
		c.Params.encode(e)
		e.raw(c.Trailing)
	})
	e.raw(c.Extra)
	if err := e.w.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func newCorrectionParams(t CorrectionType) CorrectionParams {
	switch t {
	case CorrectionBrightnessContrast:
		return &BrightnessContrast{}
	case CorrectionLevel:
		return &Level{}
	case CorrectionToneCurve:
		return &ToneCurve{}
	case CorrectionHSL:
		return &HSL{}
	case CorrectionColorBalance:
		return &ColorBalance{}
	case CorrectionReverseGradient:
		return &ReverseGradient{}
	case CorrectionPosterization:
		return &Posterization{}
	case CorrectionThreshold:
		return &Threshold{}
	case CorrectionGradientMap:
		return &GradientMap{}
	}
	return nil
}

// CurvePoint maps an input level to an output level. Stored as uint16 values
// with the level in the high byte.
type CurvePoint struct {
	In, Out uint8
}

func (d *dec) level() uint8  { return uint8(d.u16() >> 8) }
func (e *enc) level(v uint8) { e.u16(uint16(v) << 8) }

func (d *dec) curve(end int64) []CurvePoint {
	n := d.count(4, end)
	var pts []CurvePoint
	for range n {
		pts = append(pts, CurvePoint{In: d.level(), Out: d.level()})
	}
	return pts
}

func (e *enc) curve(pts []CurvePoint) {
	e.i32(int32(len(pts)))
	for _, p := range pts {
		e.level(p.In)
		e.level(p.Out)
	}
}

// BrightnessContrast values are kept in [-100, 100] by Set.
type BrightnessContrast struct {
	Brightness int32
	Contrast   int32
}

func NewBrightnessContrast(brightness, contrast int32) *BrightnessContrast {
	c := &BrightnessContrast{}
	c.Set(brightness, contrast)
	return c
}

func (c *BrightnessContrast) Set(brightness, contrast int32) {
	c.Brightness = clamp(brightness, -100, 100)
	c.Contrast = clamp(contrast, -100, 100)
}

func (*BrightnessContrast) Type() CorrectionType { return CorrectionBrightnessContrast }

func (c *BrightnessContrast) decode(d *dec, _ int64) {
	c.Brightness = d.i32()
	c.Contrast = d.i32()
}

func (c *BrightnessContrast) encode(e *enc) {
	e.i32(c.Brightness)
	e.i32(c.Contrast)
}

// LevelChannel is the level adjustment of one channel.
type LevelChannel struct {
	InputLeft, InputMid, InputRight uint8
	OutputLeft, OutputRight         uint8
}

// Level holds one adjustment per channel, the composite first.
type Level struct {
	Channels []LevelChannel
}

func (*Level) Type() CorrectionType { return CorrectionLevel }

func (l *Level) decode(d *dec, end int64) {
	n := d.count(10, end)
	l.Channels = make([]LevelChannel, n)
	for i := range l.Channels {
		c := &l.Channels[i]
		c.InputLeft, c.InputMid, c.InputRight = d.level(), d.level(), d.level()
		c.OutputLeft, c.OutputRight = d.level(), d.level()
	}
}

func (l *Level) encode(e *enc) {
	e.i32(int32(len(l.Channels)))
	for _, c := range l.Channels {
		for _, v := range []uint8{c.InputLeft, c.InputMid, c.InputRight, c.OutputLeft, c.OutputRight} {
			e.level(v)
		}
	}
}

// ToneCurve holds one curve per channel, the composite first.
type ToneCurve struct {
	Curves [][]CurvePoint
}

func (*ToneCurve) Type() CorrectionType { return CorrectionToneCurve }

func (t *ToneCurve) decode(d *dec, end int64) {
	n := d.count(4, end)
	t.Curves = make([][]CurvePoint, n)
	for i := range t.Curves {
		t.Curves[i] = d.curve(end)
	}
}

func (t *ToneCurve) encode(e *enc) {
	e.i32(int32(len(t.Curves)))
	for _, c := range t.Curves {
		e.curve(c)
	}
}

// HSL hue is kept in [-180, 180], saturation and luminance in [-100, 100].
type HSL struct {
	Hue        int32
	Saturation int32
	Luminance  int32
}

func NewHSL(hue, saturation, luminance int32) *HSL {
	h := &HSL{}
	h.Set(hue, saturation, luminance)
	return h
}

func (h *HSL) Set(hue, saturation, luminance int32) {
	h.Hue = clamp(hue, -180, 180)
	h.Saturation = clamp(saturation, -100, 100)
	h.Luminance = clamp(luminance, -100, 100)
}

func (*HSL) Type() CorrectionType { return CorrectionHSL }

func (h *HSL) decode(d *dec, _ int64) {
	h.Hue = d.i32()
	h.Saturation = d.i32()
	h.Luminance = d.i32()
}

func (h *HSL) encode(e *enc) {
	e.i32(h.Hue)
	e.i32(h.Saturation)
	e.i32(h.Luminance)
}

// Balance shifts one tonal range towards cyan, magenta and yellow. NewBalance
// keeps each shift in [-100, 100].
type Balance struct {
	Cyan, Magenta, Yellow int32
}

func NewBalance(cyan, magenta, yellow int32) Balance {
	return Balance{Cyan: clamp(cyan, -100, 100), Magenta: clamp(magenta, -100, 100), Yellow: clamp(yellow, -100, 100)}
}

func (d *dec) balance() Balance {
	return Balance{Cyan: d.i32(), Magenta: d.i32(), Yellow: d.i32()}
}

func (e *enc) balance(b Balance) {
	e.i32(b.Cyan)
	e.i32(b.Magenta)
	e.i32(b.Yellow)
}

type ColorBalance struct {
	PreserveLuminosity bool
	Shadows            Balance
	Midtones           Balance
	Highlights         Balance
}

func (*ColorBalance) Type() CorrectionType { return CorrectionColorBalance }

func (c *ColorBalance) decode(d *dec, _ int64) {
	c.PreserveLuminosity = d.flag()
	c.Shadows, c.Midtones, c.Highlights = d.balance(), d.balance(), d.balance()
}

func (c *ColorBalance) encode(e *enc) {
	e.flag(c.PreserveLuminosity)
	e.balance(c.Shadows)
	e.balance(c.Midtones)
	e.balance(c.Highlights)
}

// ReverseGradient inverts colours and has no parameters.
type ReverseGradient struct{}

func (*ReverseGradient) Type() CorrectionType { return CorrectionReverseGradient }
func (*ReverseGradient) decode(*dec, int64)   {}
func (*ReverseGradient) encode(*enc)          {}

// Posterization levels are kept in [2, 20] by SetLevel.
type Posterization struct {
	Level int32
}

func NewPosterization(level int32) *Posterization {
	p := &Posterization{}
	p.SetLevel(level)
	return p
}

func (p *Posterization) SetLevel(level int32) { p.Level = clamp(level, 2, 20) }

func (*Posterization) Type() CorrectionType     { return CorrectionPosterization }
func (p *Posterization) decode(d *dec, _ int64) { p.Level = d.i32() }
func (p *Posterization) encode(e *enc)          { e.i32(p.Level) }

// Threshold levels are kept in [1, 255] by SetLevel.
type Threshold struct {
	Level int32
}

func NewThreshold(level int32) *Threshold {
	t := &Threshold{}
	t.SetLevel(level)
	return t
}

func (t *Threshold) SetLevel(level int32) { t.Level = clamp(level, 1, 255) }

func (*Threshold) Type() CorrectionType     { return CorrectionThreshold }
func (t *Threshold) decode(d *dec, _ int64) { t.Level = d.i32() }
func (t *Threshold) encode(e *enc)          { e.i32(t.Level) }

// MapStop is one stop of a gradient map. Positions use the gradient stop
// encoding.
type MapStop struct {
	Color       RGB
	Opacity     uint8
	RawPosition int32
	Curve       []CurvePoint
}

func (s MapStop) Position() int      { return DecodeStopPosition(s.RawPosition) }
func (s *MapStop) SetPosition(p int) { s.RawPosition = EncodeStopPosition(p) }

type GradientMap struct {
	Stops []MapStop
}

func (*GradientMap) Type() CorrectionType { return CorrectionGradientMap }

func (g *GradientMap) decode(d *dec, end int64) {
	n := d.count(24, end)
	g.Stops = make([]MapStop, n)
	for i := range g.Stops {
		s := &g.Stops[i]
		s.Color = d.rgb()
		s.Opacity = uint8(d.u32() >> 24)
		s.RawPosition = d.i32()
		s.Curve = d.curve(end)
	}
}

func (g *GradientMap) encode(e *enc) {
	e.i32(int32(len(g.Stops)))
	for _, s := range g.Stops {
		e.rgb(s.Color)
		e.u32(uint32(s.Opacity) << 24)
		e.i32(s.RawPosition)
		e.curve(s.Curve)
	}
}

// RawCorrection keeps the payload of an unrecognised correction type.
type RawCorrection struct {
	Kind CorrectionType
	Data []byte
}

func (r *RawCorrection) Type() CorrectionType { return r.Kind }

func (r *RawCorrection) decode(d *dec, end int64) { r.Data = d.bytes(int(end - d.r.Pos())) }
func (r *RawCorrection) encode(e *enc)            { e.raw(r.Data) }
