package blobfmt

import "github.com/samcharles93/clipkit/internal/binio"

// TextAttr identifies a section of a text attribute blob.
type TextAttr int32

const (
	TextRunsAttr           TextAttr = 11
	TextAlign              TextAttr = 12
	TextLineSpacing        TextAttr = 13
	TextUnderline          TextAttr = 16
	TextOutline            TextAttr = 18
	TextStrike             TextAttr = 20
	TextAspectRatio        TextAttr = 26
	TextFont               TextAttr = 31
	TextFontSize           TextAttr = 32
	TextGlobalStyle        TextAttr = 33
	TextGlobalColor        TextAttr = 34
	TextGlobalJustify      TextAttr = 35
	TextHorizontalInVert   TextAttr = 38
	TextBBoxAttr           TextAttr = 42
	TextReadingSettingAttr TextAttr = 47
	TextID                 TextAttr = 50
	TextHalfWidthPunct     TextAttr = 52
	TextWrapFrame          TextAttr = 53
	TextBackgroundAttr     TextAttr = 54
	TextWrapDirection      TextAttr = 55
	TextEdgeAttr           TextAttr = 56
	TextFonts              TextAttr = 57
	TextRotation           TextAttr = 58
	TextSkew1              TextAttr = 59
	TextSkew2              TextAttr = 60
	TextBoxSizeAttr        TextAttr = 63
	TextQuadVerts          TextAttr = 64
)

// TextRun styles a span of characters. Font is stored as UTF-16LE.
type TextRun struct {
	Start        int32
	Length       int32
	Style        int32
	DefaultStyle int32
	Color        RGB
	Scale        float64
	Font         string
}

// TextRuns is the run list section.
type TextRuns struct {
	Runs []TextRun
}

func (t *TextRuns) decode(d *dec, end int64) {
	n := d.count(40, end)
	t.Runs = make([]TextRun, n)
	for i := range t.Runs {
		r := &t.Runs[i]
		r.Start, r.Length = d.i32(), d.i32()
		r.Style, r.DefaultStyle = d.i32(), d.i32()
		r.Color = d.rgb()
		r.Scale = d.f64()
		r.Font = d.str(binio.UTF16LE)
	}
}

func (t *TextRuns) encode(e *enc) {
	e.i32(int32(len(t.Runs)))
	for _, r := range t.Runs {
		e.i32(r.Start)
		e.i32(r.Length)
		e.i32(r.Style)
		e.i32(r.DefaultStyle)
		e.rgb(r.Color)
		e.f64(r.Scale)
		e.str(binio.UTF16LE, r.Font)
	}
}

// TextParam applies an integer value to a span.
type TextParam struct {
	Start, Length, Value int32
}

// TextParams is a list of span values such as alignment or underline.
type TextParams struct {
	Params []TextParam
}

func (t *TextParams) decode(d *dec, end int64) {
	n := d.count(12, end)
	t.Params = make([]TextParam, n)
	for i := range t.Params {
		t.Params[i] = TextParam{Start: d.i32(), Length: d.i32(), Value: d.i32()}
	}
}

func (t *TextParams) encode(e *enc) {
	e.i32(int32(len(t.Params)))
	for _, p := range t.Params {
		e.i32(p.Start)
		e.i32(p.Length)
		e.i32(p.Value)
	}
}

type LineSpacing struct {
	Start, Length int32
	Relative      bool
	Absolute      float64
	Percent       float64
}

type TextLineSpacings struct {
	Spacings []LineSpacing
}

func (t *TextLineSpacings) decode(d *dec, end int64) {
	n := d.count(28, end)
	t.Spacings = make([]LineSpacing, n)
	for i := range t.Spacings {
		t.Spacings[i] = LineSpacing{Start: d.i32(), Length: d.i32(), Relative: d.flag(), Absolute: d.f64(), Percent: d.f64()}
	}
}

func (t *TextLineSpacings) encode(e *enc) {
	e.i32(int32(len(t.Spacings)))
	for _, s := range t.Spacings {
		e.i32(s.Start)
		e.i32(s.Length)
		e.flag(s.Relative)
		e.f64(s.Absolute)
		e.f64(s.Percent)
	}
}

// AspectRatio scales a span horizontally and vertically, in percent.
type AspectRatio struct {
	Start, Length int32
	Horizontal    float64
	Vertical      float64
}

type TextAspectRatios struct {
	Ratios []AspectRatio
}

func (t *TextAspectRatios) decode(d *dec, end int64) {
	n := d.count(16, end)
	t.Ratios = make([]AspectRatio, n)
	for i := range t.Ratios {
		t.Ratios[i] = AspectRatio{Start: d.i32(), Length: d.i32(), Horizontal: d.hundredths(), Vertical: d.hundredths()}
	}
}

func (t *TextAspectRatios) encode(e *enc) {
	e.i32(int32(len(t.Ratios)))
	for _, r := range t.Ratios {
		e.i32(r.Start)
		e.i32(r.Length)
		e.hundredths(r.Horizontal)
		e.hundredths(r.Vertical)
	}
}

// TextString is a UTF-8 string section.
type TextString struct{ Value string }

func (t *TextString) decode(d *dec, _ int64) { t.Value = d.str(binio.UTF8) }
func (t *TextString) encode(e *enc)          { e.str(binio.UTF8, t.Value) }

type TextFloat struct{ Value float64 }

func (t *TextFloat) decode(d *dec, _ int64) { t.Value = d.f64() }
func (t *TextFloat) encode(e *enc)          { e.f64(t.Value) }

type TextInt struct{ Value int32 }

func (t *TextInt) decode(d *dec, _ int64) { t.Value = d.i32() }
func (t *TextInt) encode(e *enc)          { e.i32(t.Value) }

type TextColor struct{ Color RGB }

func (t *TextColor) decode(d *dec, _ int64) { t.Color = d.rgb() }
func (t *TextColor) encode(e *enc)          { e.rgb(t.Color) }

type TextBBox struct{ BBox BBox }

func (t *TextBBox) decode(d *dec, _ int64) { t.BBox = d.bbox() }
func (t *TextBBox) encode(e *enc)          { e.bbox(t.BBox) }

// TextAngle is an angle in degrees.
type TextAngle struct{ Degrees float64 }

func (t *TextAngle) decode(d *dec, _ int64) { t.Degrees = d.tenths() }
func (t *TextAngle) encode(e *enc)          { e.tenths(t.Degrees) }

type TextBoxSize struct{ Width, Height int32 }

func (t *TextBoxSize) decode(d *dec, _ int64) { t.Width, t.Height = d.i32(), d.i32() }
func (t *TextBoxSize) encode(e *enc)          { e.i32(t.Width); e.i32(t.Height) }

// TextQuad holds the four corners of the text box as x,y pairs.
type TextQuad struct{ Verts [8]float64 }

func (t *TextQuad) decode(d *dec, _ int64) {
	for i := range t.Verts {
		t.Verts[i] = d.f64()
	}
}

func (t *TextQuad) encode(e *enc) {
	for _, v := range t.Verts {
		e.f64(v)
	}
}

// ReadingSetting configures ruby text.
type ReadingSetting struct {
	Type   int32
	Ratio  int32
	Adjust float64
	Space  float64
	Free   float64
	Font   string
}

func (t *ReadingSetting) decode(d *dec, _ int64) {
	t.Type, t.Ratio = d.i32(), d.i32()
	t.Adjust, t.Space, t.Free = d.f64(), d.f64(), d.f64()
	t.Font = d.str(binio.UTF8)
}

func (t *ReadingSetting) encode(e *enc) {
	e.i32(t.Type)
	e.i32(t.Ratio)
	e.f64(t.Adjust)
	e.f64(t.Space)
	e.f64(t.Free)
	e.str(binio.UTF8, t.Font)
}

type TextBackground struct {
	Enabled bool
	Color   RGB
	Opacity int32
}

func (t *TextBackground) decode(d *dec, _ int64) {
	t.Enabled, t.Color, t.Opacity = d.flag(), d.rgb(), d.i32()
}

func (t *TextBackground) encode(e *enc) {
	e.flag(t.Enabled)
	e.rgb(t.Color)
	e.i32(t.Opacity)
}

type TextEdge struct {
	Enabled bool
	Size    float64
	Color   RGB
}

func (t *TextEdge) decode(d *dec, _ int64) {
	t.Enabled, t.Size, t.Color = d.flag(), d.f64(), d.rgb()
}

func (t *TextEdge) encode(e *enc) {
	e.flag(t.Enabled)
	e.f64(t.Size)
	e.rgb(t.Color)
}

// TextFontList lists font families, each as its name variants.
type TextFontList struct {
	Fonts [][]string
}

func (t *TextFontList) decode(d *dec, end int64) {
	n := d.count(4, end)
	t.Fonts = make([][]string, n)
	for i := range t.Fonts {
		m := d.count(4, end)
		names := make([]string, m)
		for j := range names {
			names[j] = d.str(binio.UTF8)
		}
		t.Fonts[i] = names
	}
}

func (t *TextFontList) encode(e *enc) {
	e.i32(int32(len(t.Fonts)))
	for _, names := range t.Fonts {
		e.i32(int32(len(names)))
		for _, s := range names {
			e.str(binio.UTF8, s)
		}
	}
}

func newTextBody(id int32) Body {
	switch TextAttr(id) {
	case TextRunsAttr:
		return &TextRuns{}
	case TextAlign, TextUnderline, TextOutline, TextStrike:
		return &TextParams{}
	case TextLineSpacing:
		return &TextLineSpacings{}
	case TextAspectRatio:
		return &TextAspectRatios{}
	case TextFont:
		return &TextString{}
	case TextFontSize:
		return &TextFloat{}
	case TextGlobalStyle, TextGlobalJustify, TextHorizontalInVert, TextID,
		TextHalfWidthPunct, TextWrapFrame, TextWrapDirection:
		return &TextInt{}
	case TextGlobalColor:
		return &TextColor{}
	case TextBBoxAttr:
		return &TextBBox{}
	case TextReadingSettingAttr:
		return &ReadingSetting{}
	case TextBackgroundAttr:
		return &TextBackground{}
	case TextEdgeAttr:
		return &TextEdge{}
	case TextFonts:
		return &TextFontList{}
	case TextRotation, TextSkew1, TextSkew2:
		return &TextAngle{}
	case TextBoxSizeAttr:
		return &TextBoxSize{}
	case TextQuadVerts:
		return &TextQuad{}
	}
	return nil
}

// TextAttributes is a decoded text attribute blob.
type TextAttributes struct {
	Sections []Section
	Trailing []byte
	Decoded
}

// ParseTextAttributes decodes a text attribute blob. Sections with an
// unknown id are kept as RawSection.
func ParseTextAttributes(b []byte, opts Options) (*TextAttributes, error) {
	t := &TextAttributes{}
	trailing, err := decodeBlob(b, "text", func(d *dec, end int64) {
		t.Sections = readIDs(d, end, newTextBody, opts, &t.Decoded)
	})
	if err != nil {
		return nil, err
	}
	t.Trailing = trailing
	return t, nil
}

// Bytes encodes the attributes.
func (t *TextAttributes) Bytes() ([]byte, error) {
	return encodeBlob(t.Trailing, func(e *enc) { writeIDs(e, t.Sections) })
}

// Get returns the body of the first section with id.
func (t *TextAttributes) Get(id TextAttr) (Body, bool) {
	for _, s := range t.Sections {
		if s.ID == int32(id) {
			return s.Body, true
		}
	}
	return nil, false
}

// Set replaces the first section with id or appends one.
func (t *TextAttributes) Set(id TextAttr, b Body) {
	for i := range t.Sections {
		if t.Sections[i].ID == int32(id) {
			t.Sections[i].Body = b
			t.Sections[i].Trailing = nil
			return
		}
	}
	t.Sections = append(t.Sections, Section{ID: int32(id), Body: b})
}

func (t *TextAttributes) Runs() []TextRun {
	if r, ok := find[*TextRuns](t.Sections); ok {
		return r.Runs
	}
	return nil
}

// Font returns the font display name.
func (t *TextAttributes) Font() string {
	if b, ok := t.Get(TextFont); ok {
		if s, ok := b.(*TextString); ok {
			return s.Value
		}
	}
	return ""
}

func (t *TextAttributes) FontSize() float64 {
	if b, ok := t.Get(TextFontSize); ok {
		if f, ok := b.(*TextFloat); ok {
			return f.Value
		}
	}
	return 0
}

func (t *TextAttributes) BBox() (BBox, bool) {
	if b, ok := find[*TextBBox](t.Sections); ok {
		return b.BBox, true
	}
	return BBox{}, false
}
