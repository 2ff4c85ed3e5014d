package blobfmt

import "fmt"

// Section tags of a GradationFillInfo blob.
const (
	TagGradationData       = "GradationData"
	TagGradationSetting    = "GradationSetting"
	TagGradationSettingAdd = "GradationSettingAdd0001"
)

const (
	gradientVersion   = 2
	gradientHeader    = 16
	gradientStopSize  = 28
	gradientPointSize = 16

	stopPositionOffset = 100
	stopPositionScale  = 32768
)

// GradientRepeat is how a gradient continues past its end points.
type GradientRepeat int32

const (
	RepeatClip GradientRepeat = iota
	RepeatRepeat
	RepeatReflect
	RepeatNone
)

// GradientShape is the geometry a gradient is laid along.
type GradientShape int32

const (
	ShapeLinear GradientShape = iota
	ShapeCircle
	ShapeEllipse
)

// EncodeStopPosition converts a percentage in [0, 100] to its stored form.
func EncodeStopPosition(p int) int32 {
	p = int(clamp(int32(p), 0, 100))
	return int32(p*stopPositionScale/100) + stopPositionOffset
}

// DecodeStopPosition converts a stored stop position back to a percentage.
// The stored value is biased by +100 and the division rounds up, so every
// integer percentage survives EncodeStopPosition unchanged.
func DecodeStopPosition(raw int32) int {
	n := int64(raw-stopPositionOffset) * 100
	if n > 0 {
		return int((n + stopPositionScale - 1) / stopPositionScale)
	}
	return int(n / stopPositionScale)
}

// ColorStop is one colour stop of a gradient.
type ColorStop struct {
	Color   RGB
	Opacity uint8
	Current bool
	// RawPosition is the stored position; use Position and SetPosition for
	// percentages.
	RawPosition int32
	Curve       []Point
}

func (s ColorStop) Position() int { return DecodeStopPosition(s.RawPosition) }

func (s *ColorStop) SetPosition(p int) { s.RawPosition = EncodeStopPosition(p) }

// GradationData holds the colour stops.
type GradationData struct {
	HeaderSize int32
	StopSize   int32
	PointSize  int32
	Stops      []ColorStop
}

func (g *GradationData) decode(d *dec, end int64) {
	g.HeaderSize = d.i32()
	g.StopSize = d.i32()
	n := d.count(gradientStopSize, end)
	g.PointSize = d.i32()
	if !d.ok() {
		return
	}
	if g.StopSize != gradientStopSize || g.PointSize != gradientPointSize {
		d.failf(d.r.Pos(), "gradient stop size %d, point size %d", g.StopSize, g.PointSize)
		return
	}
	g.Stops = make([]ColorStop, n)
	points := make([]int32, n)
	for i := range g.Stops {
		s := &g.Stops[i]
		s.Color = d.rgb()
		s.Opacity = uint8(d.u32() >> 24)
		s.Current = d.flag()
		s.RawPosition = d.i32()
		points[i] = d.i32()
	}
	for i := range g.Stops {
		if points[i] < 0 || int64(points[i])*gradientPointSize > end-d.r.Pos() {
			d.failf(d.r.Pos(), "stop %d has %d curve points", i, points[i])
			return
		}
		for range points[i] {
			g.Stops[i].Curve = append(g.Stops[i].Curve, d.point())
		}
	}
}

func (g *GradationData) encode(e *enc) {
	e.i32(orDefault(g.HeaderSize, gradientHeader))
	e.i32(gradientStopSize)
	e.i32(int32(len(g.Stops)))
	e.i32(gradientPointSize)
	for _, s := range g.Stops {
		e.rgb(s.Color)
		e.u32(uint32(s.Opacity) << 24)
		e.flag(s.Current)
		e.i32(s.RawPosition)
		e.i32(int32(len(s.Curve)))
	}
	for _, s := range g.Stops {
		for _, p := range s.Curve {
			e.point(p)
		}
	}
}

// GradientSetting holds the gradient geometry. Its section has no size field.
type GradientSetting struct {
	Repeat          GradientRepeat
	Shape           GradientShape
	AntiAlias       bool
	Diameter        float64
	EllipseDiameter float64
	Angle           float64
	Start           Point
	End             Point
}

func (*GradientSetting) unsizedSection() {}

func (g *GradientSetting) decode(d *dec, _ int64) {
	g.Repeat = GradientRepeat(d.i32())
	g.Shape = GradientShape(d.i32())
	g.AntiAlias = d.flag()
	g.Diameter = d.f64()
	g.EllipseDiameter = d.f64()
	g.Angle = d.f64()
	g.Start = d.point()
	g.End = d.point()
}

func (g *GradientSetting) encode(e *enc) {
	e.i32(int32(g.Repeat))
	e.i32(int32(g.Shape))
	e.flag(g.AntiAlias)
	e.f64(g.Diameter)
	e.f64(g.EllipseDiameter)
	e.f64(g.Angle)
	e.point(g.Start)
	e.point(g.End)
}

// GradientFill holds the flat-fill extension.
type GradientFill struct {
	Flat     bool
	Color    RGB
	Reserved int32
}

func (g *GradientFill) decode(d *dec, _ int64) {
	g.Flat = d.flag()
	g.Color = d.rgb()
	g.Reserved = d.i32()
}

func (g *GradientFill) encode(e *enc) {
	e.flag(g.Flat)
	e.rgb(g.Color)
	e.i32(g.Reserved)
}

// Gradient is a decoded GradationFillInfo blob.
type Gradient struct {
	Version  int32
	Sections []Section
	Trailing []byte
	Decoded
}

// NewGradient returns a black to white linear gradient.
func NewGradient() *Gradient {
	black := ColorStop{Opacity: 255, RawPosition: EncodeStopPosition(0)}
	white := ColorStop{Color: RGB{255, 255, 255}, Opacity: 255, RawPosition: EncodeStopPosition(100)}
	return &Gradient{
		Version: gradientVersion,
		Sections: []Section{
			{Name: TagGradationData, Body: &GradationData{
				HeaderSize: gradientHeader, StopSize: gradientStopSize, PointSize: gradientPointSize,
				Stops: []ColorStop{black, white},
			}},
			{Name: TagGradationSetting, Body: &GradientSetting{
				Repeat: RepeatClip, Shape: ShapeLinear,
				Diameter: 100, EllipseDiameter: 100, Angle: 45,
				End: Point{100, 100},
			}},
			{Name: TagGradationSettingAdd, Body: &GradientFill{}},
		},
	}
}

// ParseGradient decodes a GradationFillInfo blob.
func ParseGradient(b []byte, opts Options) (*Gradient, error) {
	g := &Gradient{}
	trailing, err := decodeBlob(b, "gradient", func(d *dec, end int64) {
		g.Version = d.i32()
		if d.ok() && g.Version != gradientVersion {
			opts.log().Debug("unexpected gradient version", "version", g.Version)
		}
		g.Sections = readNamed(d, end, func(name string) Body {
			switch name {
			case TagGradationData:
				return &GradationData{}
			case TagGradationSetting:
				return &GradientSetting{}
			case TagGradationSettingAdd:
				return &GradientFill{}
			}
			return nil
		}, opts, &g.Decoded)
	})
	if err != nil {
		return nil, err
	}
	g.Trailing = trailing
	return g, nil
}

// Bytes encodes the gradient.
func (g *Gradient) Bytes() ([]byte, error) {
	if g.Version == 0 {
		g.Version = gradientVersion
	}
	for _, s := range g.Sections {
		if _, ok := s.Body.(*GradientSetting); ok && s.Name != TagGradationSetting {
			return nil, fmt.Errorf("blobfmt: unsized gradient setting under tag %q", s.Name)
		}
	}
	return encodeBlob(g.Trailing, func(e *enc) {
		e.i32(g.Version)
		writeNamed(e, g.Sections)
	})
}

// Data returns the colour stops section, if present.
func (g *Gradient) Data() (*GradationData, bool) { return find[*GradationData](g.Sections) }

// Setting returns the geometry section, if present.
func (g *Gradient) Setting() (*GradientSetting, bool) { return find[*GradientSetting](g.Sections) }

// Fill returns the flat-fill section, if present.
func (g *Gradient) Fill() (*GradientFill, bool) { return find[*GradientFill](g.Sections) }

// SetData replaces or adds the colour stops section.
func (g *Gradient) SetData(v *GradationData) {
	g.Sections = put(g.Sections, TagGradationData, 0, v)
}

// SetSetting replaces or adds the geometry section.
func (g *Gradient) SetSetting(v *GradientSetting) {
	g.Sections = put(g.Sections, TagGradationSetting, 0, v)
}

func orDefault(v, def int32) int32 {
	if v == 0 {
		return def
	}
	return v
}
