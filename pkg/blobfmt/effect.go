package blobfmt

// Section tags of a LayerEffectInfo blob.
const (
	TagEffectApplyOpacity  = "EffectApplyOpacity"
	TagEffectEdge          = "EffectEdge"
	TagEffectTone          = "EffectTone"
	TagEffectTonePosterize = "EffectTonePosterize"
	TagEffectWaterEdge     = "EffectWaterEdge"
	TagEffectLine          = "EffectLine"
)

// Effect angles are stored as int32 tenths of a degree and percentages as
// int32 hundredths.

type EffectApplyOpacity struct {
	Apply bool
}

func (e *EffectApplyOpacity) decode(d *dec, _ int64) { e.Apply = d.flag() }
func (e *EffectApplyOpacity) encode(w *enc)          { w.flag(e.Apply) }

type EffectEdge struct {
	Enabled   bool
	Thickness float64
	Color     RGB
}

func (e *EffectEdge) decode(d *dec, _ int64) {
	e.Enabled = d.flag()
	e.Thickness = d.f64()
	e.Color = d.rgb()
}

func (e *EffectEdge) encode(w *enc) {
	w.flag(e.Enabled)
	w.f64(e.Thickness)
	w.rgb(e.Color)
}

// EffectTone is a halftone screen.
type EffectTone struct {
	Enabled            bool
	Resolution         float64
	Shape              GradientShape
	UseImageBrightness bool
	Frequency          float64
	// Angle in degrees.
	Angle       float64
	NoiseSize   int32
	NoiseFactor int32
	Position    Point
}

func (e *EffectTone) decode(d *dec, _ int64) {
	e.Enabled = d.flag()
	e.Resolution = d.f64()
	e.Shape = GradientShape(d.i32())
	e.UseImageBrightness = d.flag()
	e.Frequency = d.f64()
	e.Angle = d.tenths()
	e.NoiseSize = d.i32()
	e.NoiseFactor = d.i32()
	e.Position = d.point()
}

func (e *EffectTone) encode(w *enc) {
	w.flag(e.Enabled)
	w.f64(e.Resolution)
	w.i32(int32(e.Shape))
	w.flag(e.UseImageBrightness)
	w.f64(e.Frequency)
	w.tenths(e.Angle)
	w.i32(e.NoiseSize)
	w.i32(e.NoiseFactor)
	w.point(e.Position)
}

// PosterizeStep maps an input level to an output level.
type PosterizeStep struct {
	Input, Output int32
}

func (d *dec) steps(end int64) []PosterizeStep {
	n := d.count(8, end)
	out := make([]PosterizeStep, n)
	for i := range out {
		out[i] = PosterizeStep{Input: d.i32(), Output: d.i32()}
	}
	return out
}

func (e *enc) steps(s []PosterizeStep) {
	e.i32(int32(len(s)))
	for _, p := range s {
		e.i32(p.Input)
		e.i32(p.Output)
	}
}

type EffectTonePosterize struct {
	Enabled bool
	Steps   []PosterizeStep
}

func (e *EffectTonePosterize) decode(d *dec, end int64) {
	e.Enabled = d.flag()
	e.Steps = d.steps(end)
}

func (e *EffectTonePosterize) encode(w *enc) {
	w.flag(e.Enabled)
	w.steps(e.Steps)
}

// EffectWaterEdge darkens and blurs the outline. Opacity and Darkness are
// percentages.
type EffectWaterEdge struct {
	Enabled  bool
	Range    float64
	Opacity  float64
	Darkness float64
	Blurring float64
}

func (e *EffectWaterEdge) decode(d *dec, _ int64) {
	e.Enabled = d.flag()
	e.Range = d.f64()
	e.Opacity = d.hundredths()
	e.Darkness = d.hundredths()
	e.Blurring = d.f64()
}

func (e *EffectWaterEdge) encode(w *enc) {
	w.flag(e.Enabled)
	w.f64(e.Range)
	w.hundredths(e.Opacity)
	w.hundredths(e.Darkness)
	w.f64(e.Blurring)
}

// EffectLine extracts line art. Directions are angles in degrees.
type EffectLine struct {
	Enabled          bool
	BlackFillEnabled bool
	BlackFillLevel   int32
	PosterizeEnabled bool
	LineWidth        int32
	Threshold        int32
	Directions       []float64
	Steps            []PosterizeStep
	AntiAlias        bool
}

func (e *EffectLine) decode(d *dec, end int64) {
	e.Enabled = d.flag()
	e.BlackFillEnabled = d.flag()
	e.BlackFillLevel = d.i32()
	e.PosterizeEnabled = d.flag()
	e.LineWidth = d.i32()
	e.Threshold = d.i32()
	n := d.count(4, end)
	e.Directions = make([]float64, n)
	for i := range e.Directions {
		e.Directions[i] = d.tenths()
	}
	e.Steps = d.steps(end)
	e.AntiAlias = d.flag()
}

func (e *EffectLine) encode(w *enc) {
	w.flag(e.Enabled)
	w.flag(e.BlackFillEnabled)
	w.i32(e.BlackFillLevel)
	w.flag(e.PosterizeEnabled)
	w.i32(e.LineWidth)
	w.i32(e.Threshold)
	w.i32(int32(len(e.Directions)))
	for _, a := range e.Directions {
		w.tenths(a)
	}
	w.steps(e.Steps)
	w.flag(e.AntiAlias)
}

// Effects is a decoded LayerEffectInfo blob.
type Effects struct {
	Sections []Section
	Trailing []byte
	Decoded
}

// ParseEffects decodes a LayerEffectInfo blob.
func ParseEffects(b []byte, opts Options) (*Effects, error) {
	fx := &Effects{}
	trailing, err := decodeBlob(b, "effect", func(d *dec, end int64) {
		fx.Sections = readNamed(d, end, newEffect, opts, &fx.Decoded)
	})
	if err != nil {
		return nil, err
	}
	fx.Trailing = trailing
	return fx, nil
}

func newEffect(name string) Body {
	switch name {
	case TagEffectApplyOpacity:
		return &EffectApplyOpacity{}
	case TagEffectEdge:
		return &EffectEdge{}
	case TagEffectTone:
		return &EffectTone{}
	case TagEffectTonePosterize:
		return &EffectTonePosterize{}
	case TagEffectWaterEdge:
		return &EffectWaterEdge{}
	case TagEffectLine:
		return &EffectLine{}
	}
	return nil
}

// Bytes encodes the effects.
func (fx *Effects) Bytes() ([]byte, error) {
	return encodeBlob(fx.Trailing, func(e *enc) { writeNamed(e, fx.Sections) })
}

func (fx *Effects) Edge() (*EffectEdge, bool) { return find[*EffectEdge](fx.Sections) }
func (fx *Effects) Tone() (*EffectTone, bool) { return find[*EffectTone](fx.Sections) }
func (fx *Effects) Line() (*EffectLine, bool) { return find[*EffectLine](fx.Sections) }

func (fx *Effects) WaterEdge() (*EffectWaterEdge, bool) {
	return find[*EffectWaterEdge](fx.Sections)
}

// SetEdge replaces or adds the border effect.
func (fx *Effects) SetEdge(v *EffectEdge) {
	fx.Sections = put(fx.Sections, TagEffectEdge, 0, v)
}
