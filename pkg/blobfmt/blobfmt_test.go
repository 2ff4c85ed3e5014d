package blobfmt

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/samcharles93/clipkit/internal/binio"
)

func TestStopPositionLaw(t *testing.T) {
	t.Parallel()

	for p := 0; p <= 100; p++ {
		if got := DecodeStopPosition(EncodeStopPosition(p)); got != p {
			t.Fatalf("position %d: got %d back (raw %d)", p, got, EncodeStopPosition(p))
		}
	}
	if got := EncodeStopPosition(50); got != 16384+100 {
		t.Fatalf("encode 50: got %d want %d", got, 16384+100)
	}
	if got := EncodeStopPosition(140); got != EncodeStopPosition(100) {
		t.Fatalf("encode 140: got %d want clamp to %d", got, EncodeStopPosition(100))
	}
}

func TestGradientRoundTrip(t *testing.T) {
	t.Parallel()

	g := NewGradient()
	data, _ := g.Data()
	data.Stops[1].Curve = []Point{{0, 0}, {0.5, 0.25}, {1, 1}}
	data.Stops = append(data.Stops, ColorStop{Color: RGB{10, 20, 30}, Opacity: 128, Current: true})
	data.Stops[2].SetPosition(37)

	enc, err := g.Bytes()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := ParseGradient(enc, Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got.Skipped) != 0 {
		t.Fatalf("skipped: %+v", got.Skipped)
	}
	gd, ok := got.Data()
	if !ok || !reflect.DeepEqual(gd, data) {
		t.Fatalf("stops:\n got %+v\nwant %+v", gd, data)
	}
	if gd.Stops[2].Position() != 37 {
		t.Fatalf("stop position: got %d want 37", gd.Stops[2].Position())
	}
	set, ok := got.Setting()
	if !ok || set.Angle != 45 || set.End != (Point{100, 100}) {
		t.Fatalf("setting: got %+v", set)
	}
	again, err := got.Bytes()
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if !bytes.Equal(again, enc) {
		t.Fatalf("re-encoded gradient differs")
	}
}

func TestGradientLayout(t *testing.T) {
	t.Parallel()

	enc, err := NewGradient().Bytes()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	r := binio.NewBytesReader(enc)
	total, _ := r.Int32(binio.BE)
	version, _ := r.Int32(binio.BE)
	if int(total) != len(enc) || version != 2 {
		t.Fatalf("frame: total %d (len %d) version %d", total, len(enc), version)
	}
	if err := r.ExpectTag(TagGradationData); err != nil {
		t.Fatalf("first tag: %v", err)
	}
	_, _ = r.Int32(binio.BE) // section size
	var hdr [4]int32
	for i := range hdr {
		hdr[i], _ = r.Int32(binio.BE)
	}
	if hdr != [4]int32{16, 28, 2, 16} {
		t.Fatalf("stop header: got %v", hdr)
	}
	r1, _ := r.Uint32(binio.BE)
	_ = r.Skip(8)
	opacity, _ := r.Uint32(binio.BE)
	if r1 != 0 || opacity != 255<<24 {
		t.Fatalf("first stop colour/opacity: got %#x %#x", r1, opacity)
	}
}

func TestUnknownTagTolerance(t *testing.T) {
	t.Parallel()

	g := NewGradient()
	garbage := []byte{0xde, 0xad, 0xbe, 0xef, 0x01}
	g.Sections = append(g.Sections[:1], append([]Section{{Name: "GradationMystery", Body: &RawSection{Data: garbage}}}, g.Sections[1:]...)...)
	enc, err := g.Bytes()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := ParseGradient(enc, Options{})
	if err != nil {
		t.Fatalf("parse with unknown tag: %v", err)
	}
	if len(got.Skipped) != 1 || got.Skipped[0].Tag != "GradationMystery" || got.Skipped[0].Size != len(garbage) {
		t.Fatalf("skipped: got %+v", got.Skipped)
	}
	if _, ok := got.Setting(); !ok {
		t.Fatalf("setting after unknown section was not decoded")
	}
	raw, ok := got.Sections[1].Body.(*RawSection)
	if !ok || !bytes.Equal(raw.Data, garbage) {
		t.Fatalf("raw section: got %+v", got.Sections[1])
	}
	again, _ := got.Bytes()
	if !bytes.Equal(again, enc) {
		t.Fatalf("unknown section not preserved in place")
	}
}

func TestCorrectionRoundTrip(t *testing.T) {
	t.Parallel()

	params := []CorrectionParams{
		&BrightnessContrast{Brightness: -20, Contrast: 35},
		&Level{Channels: []LevelChannel{{0, 128, 255, 0, 255}, {10, 100, 240, 5, 250}}},
		&ToneCurve{Curves: [][]CurvePoint{{{0, 0}, {128, 160}, {255, 255}}}},
		&HSL{Hue: -90, Saturation: 10, Luminance: 0},
		&ColorBalance{PreserveLuminosity: true, Midtones: Balance{Cyan: 5, Magenta: -5, Yellow: 50}},
		&ReverseGradient{},
		&Posterization{Level: 7},
		&Threshold{Level: 200},
		&GradientMap{Stops: []MapStop{{Color: RGB{1, 2, 3}, Opacity: 255, RawPosition: EncodeStopPosition(40), Curve: []CurvePoint{{1, 2}}}}},
	}
	for _, p := range params {
		c := &Correction{Params: p}
		enc, err := c.Bytes()
		if err != nil {
			t.Fatalf("%s: encode: %v", p.Type(), err)
		}
		got, err := ParseCorrection(enc, Options{})
		if err != nil {
			t.Fatalf("%s: parse: %v", p.Type(), err)
		}
		if !reflect.DeepEqual(got.Params, p) {
			t.Fatalf("%s: got %+v want %+v", p.Type(), got.Params, p)
		}
		again, _ := got.Bytes()
		if !bytes.Equal(again, enc) {
			t.Fatalf("%s: re-encoded bytes differ", p.Type())
		}
	}
}

func TestCorrectionSettersClamp(t *testing.T) {
	t.Parallel()

	if NewPosterization(1).Level != 2 || NewPosterization(50).Level != 20 {
		t.Fatalf("posterization constructor does not clamp")
	}
	if NewThreshold(0).Level != 1 || NewThreshold(999).Level != 255 {
		t.Fatalf("threshold constructor does not clamp")
	}
	if bc := NewBrightnessContrast(-300, 101); bc.Brightness != -100 || bc.Contrast != 100 {
		t.Fatalf("brightness/contrast: got %+v", bc)
	}
	if h := NewHSL(200, -101, 50); h.Hue != 180 || h.Saturation != -100 || h.Luminance != 50 {
		t.Fatalf("hsl: got %+v", h)
	}
	if b := NewBalance(150, -150, 3); b != (Balance{Cyan: 100, Magenta: -100, Yellow: 3}) {
		t.Fatalf("balance: got %+v", b)
	}
	var p Posterization
	p.SetLevel(-4)
	if p.Level != 2 {
		t.Fatalf("posterization SetLevel: got %d want 2", p.Level)
	}
}

func TestCorrectionKeepsStoredOutOfRangeValues(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := binio.NewBufferWriter(&buf)
	_, _ = w.Int32(binio.BE, int32(CorrectionThreshold))
	_, _ = w.Int32(binio.BE, 4)
	_, _ = w.Int32(binio.BE, 0)
	raw := bytes.Clone(buf.Bytes())

	got, err := ParseCorrection(raw, Options{})
	if err != nil {
		t.Fatalf("parse out-of-range threshold: %v", err)
	}
	if l := got.Params.(*Threshold).Level; l != 0 {
		t.Fatalf("threshold: got %d want stored 0", l)
	}
	enc, err := got.Bytes()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(enc, raw) {
		t.Fatalf("re-encoded bytes: got %x want %x", enc, raw)
	}

	hsl, err := (&Correction{Params: &HSL{Hue: 400, Saturation: -7, Luminance: 250}}).Bytes()
	if err != nil {
		t.Fatalf("encode hsl: %v", err)
	}
	back, err := ParseCorrection(hsl, Options{})
	if err != nil {
		t.Fatalf("parse hsl: %v", err)
	}
	if h := back.Params.(*HSL); *h != (HSL{Hue: 400, Saturation: -7, Luminance: 250}) {
		t.Fatalf("hsl: got %+v", h)
	}
}

func TestCorrectionUnknownType(t *testing.T) {
	t.Parallel()

	c := &Correction{Params: &RawCorrection{Kind: 42, Data: []byte("opaque")}, Extra: []byte{7}}
	enc, err := c.Bytes()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := ParseCorrection(enc, Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	raw, ok := got.Params.(*RawCorrection)
	if !ok || raw.Kind != 42 || string(raw.Data) != "opaque" || !bytes.Equal(got.Extra, []byte{7}) {
		t.Fatalf("raw correction: got %+v extra %v", got.Params, got.Extra)
	}
}

func TestEffectsRoundTrip(t *testing.T) {
	t.Parallel()

	fx := &Effects{Sections: []Section{
		{Name: TagEffectApplyOpacity, Body: &EffectApplyOpacity{Apply: true}},
		{Name: TagEffectEdge, Body: &EffectEdge{Enabled: true, Thickness: 3.5, Color: RGB{255, 0, 0}}},
		{Name: TagEffectTone, Body: &EffectTone{Resolution: 60, Shape: ShapeCircle, Frequency: 1.5, Angle: 45.5, NoiseSize: 3, NoiseFactor: 20, Position: Point{1, 2}}},
		{Name: TagEffectTonePosterize, Body: &EffectTonePosterize{Enabled: true, Steps: []PosterizeStep{{0, 0}, {128, 255}}}},
		{Name: TagEffectWaterEdge, Body: &EffectWaterEdge{Range: 4, Opacity: 37.25, Darkness: 80, Blurring: 1}},
		{Name: TagEffectLine, Body: &EffectLine{Enabled: true, LineWidth: 2, Threshold: 50, Directions: []float64{0, 22.5}, Steps: []PosterizeStep{{1, 2}}, AntiAlias: true}},
	}}
	enc, err := fx.Bytes()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := ParseEffects(enc, Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(got.Sections, fx.Sections) {
		t.Fatalf("sections:\n got %+v\nwant %+v", got.Sections, fx.Sections)
	}
	if tone, ok := got.Tone(); !ok || tone.Angle != 45.5 {
		t.Fatalf("tone angle: got %+v", tone)
	}
}

func TestEffectSectionOverrun(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := binio.NewBufferWriter(&buf)
	_, _ = w.Int32(binio.BE, 0)
	_, _ = w.WriteTag(TagEffectEdge)
	_, _ = w.Int32(binio.BE, 1000)
	_, _ = w.Int32(binio.BE, 1)
	b := buf.Bytes()
	b[3] = byte(len(b))

	if _, err := ParseEffects(b, Options{}); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("overrun: got %v want ErrCorrupt", err)
	}
	b[3] = byte(len(b) + 10)
	if _, err := ParseEffects(b, Options{}); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("total past end: got %v want ErrCorrupt", err)
	}
}

func TestEffectSectionTooShort(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := binio.NewBufferWriter(&buf)
	_, _ = w.Int32(binio.BE, 0)
	_, _ = w.WriteTag(TagEffectEdge)
	_, _ = w.Int32(binio.BE, 4)
	_, _ = w.Int32(binio.BE, 1)
	b := buf.Bytes()
	b[3] = byte(len(b))

	_, err := ParseEffects(b, Options{})
	if !errors.Is(err, ErrCorrupt) || !errors.Is(err, binio.ErrShortRead) {
		t.Fatalf("short section: got %v want ErrCorrupt wrapping ErrShortRead", err)
	}
}

func TestVectorListRoundTrip(t *testing.T) {
	t.Parallel()

	pt := func(x, y float64) VectorPoint {
		return VectorPoint{
			Position: Point{x, y},
			BBox:     BBox{int32(x) - 10, int32(y) - 10, int32(x) + 10, int32(y) + 10},
			Scale:    [3]float32{1, 1, 1},
			Width:    1,
			Opacity:  1,
			Bezier:   []Point{{x + 1, y}, {x + 2, y}},
		}
	}
	l := NewVectorList()
	l.Strokes = []Stroke{
		{
			PointBase: 72, PointDefault: 88,
			Flag: VectorNormal | VectorCubic, BBox: BBox{0, 0, 50, 50},
			MainColor: RGB{0, 0, 255}, SubColor: RGB{255, 255, 255},
			Opacity: 1, BrushID: 3, Radius: 2.5,
			HeaderExtra: []byte{9, 9, 9, 9},
			Points:      []VectorPoint{pt(0, 0), pt(40, 40)},
		},
		{
			PointBase: 72, PointDefault: 88,
			Flag: VectorFrame, FrameBrushID: 4, FrameFillID: 5, FrameRadius: 1,
			Points: []VectorPoint{{Position: Point{7, 7}}},
		},
	}
	l.Strokes[1].Points[0].SetCorner(true)

	enc, err := l.Bytes()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := ParseVectorList(enc, Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(got.Strokes, l.Strokes) {
		t.Fatalf("strokes:\n got %+v\nwant %+v", got.Strokes, l.Strokes)
	}
	if len(got.Footer) != 16 {
		t.Fatalf("footer: got %d bytes", len(got.Footer))
	}
	if !got.Strokes[1].Points[0].IsCorner() || got.Strokes[1].BrushRadius() != 1 {
		t.Fatalf("frame stroke: %+v", got.Strokes[1])
	}
}

func TestVectorPointExtraMustMatch(t *testing.T) {
	t.Parallel()

	l := NewVectorList()
	l.Strokes = []Stroke{{Points: []VectorPoint{{}, {Extra: []byte{1}}}}}
	_, err := l.Bytes()
	if err == nil {
		t.Fatalf("expected error for uneven point sizes")
	}
	if want := "blobfmt: stroke 0: point 1 has 1 extra bytes"; !strings.HasPrefix(err.Error(), want) {
		t.Fatalf("error: got %q want prefix %q", err, want)
	}
}

func TestTextAttributesRoundTrip(t *testing.T) {
	t.Parallel()

	ta := &TextAttributes{Sections: []Section{
		{ID: int32(TextRunsAttr), Body: &TextRuns{Runs: []TextRun{
			{Start: 0, Length: 19, Color: RGB{1, 1, 1}, Scale: 100, Font: "Tahoma"},
			{Start: 19, Length: 6, Style: 1, Font: "メイリオ"},
		}}},
		{ID: int32(TextAlign), Body: &TextParams{Params: []TextParam{{0, 25, 2}}}},
		{ID: 99, Body: &RawSection{Data: []byte("garbage!")}},
		{ID: int32(TextAspectRatio), Body: &TextAspectRatios{Ratios: []AspectRatio{{0, 25, 100, 87.5}}}},
		{ID: int32(TextFont), Body: &TextString{Value: "CCComicrazy"}},
		{ID: int32(TextFontSize), Body: &TextFloat{Value: 10}},
		{ID: int32(TextBBoxAttr), Body: &TextBBox{BBox: BBox{167, 141, 889, 1013}}},
		{ID: int32(TextFonts), Body: &TextFontList{Fonts: [][]string{{"CCComicrazy", "CCComicrazy-Roman"}}}},
		{ID: int32(TextRotation), Body: &TextAngle{Degrees: 180}},
		{ID: int32(TextQuadVerts), Body: &TextQuad{Verts: [8]float64{0, 14, 722, 14, 722, 886, 0, 886}}},
	}}
	enc, err := ta.Bytes()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := ParseTextAttributes(enc, Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got.Skipped) != 1 || got.Skipped[0].Tag != "#99" {
		t.Fatalf("skipped: got %+v", got.Skipped)
	}
	if !reflect.DeepEqual(got.Sections, ta.Sections) {
		t.Fatalf("sections:\n got %+v\nwant %+v", got.Sections, ta.Sections)
	}
	if got.Font() != "CCComicrazy" || got.FontSize() != 10 || got.Runs()[1].Font != "メイリオ" {
		t.Fatalf("accessors: font %q size %v runs %+v", got.Font(), got.FontSize(), got.Runs())
	}
	again, _ := got.Bytes()
	if !bytes.Equal(again, enc) {
		t.Fatalf("re-encoded text attributes differ")
	}
}

func TestTextZeroSizeSection(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := binio.NewBufferWriter(&buf)
	_, _ = w.Int32(binio.BE, 0)
	_, _ = w.Int32(binio.BE, int32(TextFont))
	_, _ = w.Int32(binio.BE, 0)
	_, _ = w.Int32(binio.BE, int32(TextFontSize))
	_, _ = w.Int32(binio.BE, 8)
	_, _ = w.Float64(binio.BE, 12)
	_ = w.PatchInt32(binio.BE, 0, int32(buf.Len()))

	got, err := ParseTextAttributes(buf.Bytes(), Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Font() != "" || got.FontSize() != 12 {
		t.Fatalf("got font %q size %v", got.Font(), got.FontSize())
	}
}

func TestRulerPointsRoundTrip(t *testing.T) {
	t.Parallel()

	r := NewRulerPointData([]Point{{0, 0}, {10.5, 20}, {30, -4}})
	enc, err := r.Bytes()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := ParseRulerPoints(enc, Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(got.Points(), r.Points()) {
		t.Fatalf("points: got %v want %v", got.Points(), r.Points())
	}
	got.SetPoints([]Point{{1, 1}})
	enc2, _ := got.Bytes()
	back, err := ParseRulerPoints(enc2, Options{})
	if err != nil || len(back.Points()) != 1 {
		t.Fatalf("after SetPoints: %v, %v", back, err)
	}
}

func TestStringArrayRoundTrip(t *testing.T) {
	t.Parallel()

	for _, strs := range [][]string{
		{},
		{"Hello", "レイヤー", "é"},
		{""},
	} {
		a := &StringArray{Strings: strs}
		enc, err := a.Bytes()
		if err != nil {
			t.Fatalf("%q: encode: %v", strs, err)
		}
		got, err := ParseStringArray(enc, Options{})
		if err != nil {
			t.Fatalf("%q: parse: %v", strs, err)
		}
		if !reflect.DeepEqual(got.Strings, strs) || len(got.Trailing) != 0 {
			t.Fatalf("strings: got %q trailing %x want %q", got.Strings, got.Trailing, strs)
		}
	}
}

func TestStringArrayLayout(t *testing.T) {
	t.Parallel()

	enc, err := (&StringArray{Strings: []string{"a", "é"}}).Bytes()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{
		0, 0, 0, 2,
		0, 0, 0, 1, 'a',
		0, 0, 0, 2, 0xc3, 0xa9,
	}
	if !bytes.Equal(enc, want) {
		t.Fatalf("layout: got %x want %x", enc, want)
	}
	empty, _ := (&StringArray{}).Bytes()
	if !bytes.Equal(empty, []byte{0, 0, 0, 0}) {
		t.Fatalf("empty layout: got %x", empty)
	}
}

func TestStringArrayRejectsTruncation(t *testing.T) {
	t.Parallel()

	for _, b := range [][]byte{
		{},
		{0, 0, 0, 3, 0, 0, 0, 1, 'a'},
		{0, 0, 0, 1, 0, 0, 0, 9, 'a'},
		{0xff, 0xff, 0xff, 0xff},
	} {
		if _, err := ParseStringArray(b, Options{}); !errors.Is(err, ErrCorrupt) {
			t.Fatalf("parse %x: got %v want ErrCorrupt", b, err)
		}
	}
}

func TestTextAttributesArrayRoundTrip(t *testing.T) {
	t.Parallel()

	arr := &TextAttributesArray{Items: []*TextAttributes{
		{Sections: []Section{{ID: int32(TextFont), Body: &TextString{Value: "メイリオ"}}}},
		{Sections: []Section{
			{ID: int32(TextFontSize), Body: &TextFloat{Value: 12.5}},
			{ID: 99, Body: &RawSection{Data: []byte{1, 2, 3}}},
		}},
	}}
	enc, err := arr.Bytes()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := ParseTextAttributesArray(enc, Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got.Items) != 2 {
		t.Fatalf("items: got %d want 2", len(got.Items))
	}
	if s := got.Items[0].Font(); s != "メイリオ" {
		t.Fatalf("font: got %q want %q", s, "メイリオ")
	}
	again, err := got.Bytes()
	if err != nil || !bytes.Equal(again, enc) {
		t.Fatalf("re-encode: err %v, bytes differ: %v", err, !bytes.Equal(again, enc))
	}

	empty, _ := (&TextAttributesArray{}).Bytes()
	e, err := ParseTextAttributesArray(empty, Options{})
	if err != nil || len(e.Items) != 0 {
		t.Fatalf("empty array: got %+v, %v", e, err)
	}

	if _, err := ParseTextAttributesArray(enc[:len(enc)-2], Options{}); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("truncated array: got %v want ErrCorrupt", err)
	}
}
