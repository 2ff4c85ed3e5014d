package blobfmt

// Section ids of a ruler PointData blob.
const (
	RulerPointsID int32 = 1
	RulerFlagsID  int32 = 2
)

// RulerPoints holds the control points of a curve or polyline ruler. The
// section is filled with float64 x,y pairs.
type RulerPoints struct {
	Points []Point
}

func (r *RulerPoints) decode(d *dec, end int64) {
	for d.ok() && end-d.r.Pos() >= 16 {
		r.Points = append(r.Points, d.point())
	}
}

func (r *RulerPoints) encode(e *enc) {
	for _, p := range r.Points {
		e.point(p)
	}
}

// RulerFlags holds one int32 flag per point.
type RulerFlags struct {
	Flags []int32
}

func (r *RulerFlags) decode(d *dec, end int64) {
	for d.ok() && end-d.r.Pos() >= 4 {
		r.Flags = append(r.Flags, d.i32())
	}
}

func (r *RulerFlags) encode(e *enc) {
	for _, f := range r.Flags {
		e.i32(f)
	}
}

// RulerPointData is a decoded PointData blob.
type RulerPointData struct {
	Sections []Section
	Trailing []byte
	Decoded
}

// NewRulerPointData returns point data holding pts with zero flags.
func NewRulerPointData(pts []Point) *RulerPointData {
	return &RulerPointData{Sections: []Section{
		{ID: RulerPointsID, Body: &RulerPoints{Points: pts}},
		{ID: RulerFlagsID, Body: &RulerFlags{Flags: make([]int32, len(pts))}},
	}}
}

// ParseRulerPoints decodes a PointData blob.
func ParseRulerPoints(b []byte, opts Options) (*RulerPointData, error) {
	r := &RulerPointData{}
	trailing, err := decodeBlob(b, "ruler", func(d *dec, end int64) {
		r.Sections = readIDs(d, end, func(id int32) Body {
			switch id {
			case RulerPointsID:
				return &RulerPoints{}
			case RulerFlagsID:
				return &RulerFlags{}
			}
			return nil
		}, opts, &r.Decoded)
	})
	if err != nil {
		return nil, err
	}
	r.Trailing = trailing
	return r, nil
}

// Bytes encodes the point data.
func (r *RulerPointData) Bytes() ([]byte, error) {
	return encodeBlob(r.Trailing, func(e *enc) { writeIDs(e, r.Sections) })
}

// Points returns the ruler's control points.
func (r *RulerPointData) Points() []Point {
	if p, ok := find[*RulerPoints](r.Sections); ok {
		return p.Points
	}
	return nil
}

// SetPoints replaces the control points.
func (r *RulerPointData) SetPoints(pts []Point) {
	r.Sections = put(r.Sections, "", RulerPointsID, &RulerPoints{Points: pts})
}
