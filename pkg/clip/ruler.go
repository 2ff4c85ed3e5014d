package clip

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/samcharles93/clipkit/pkg/blobfmt"
)

// RulerKind names a special ruler table.
type RulerKind uint8

const (
	RulerParallel RulerKind = iota + 1
	RulerCurveParallel
	RulerMultiCurve
	RulerEmit
	RulerCurveEmit
	RulerConcentricCircle
	RulerGuide
	RulerPerspective
	RulerSymmetry
)

var rulerKindNames = [...]string{
	RulerParallel:         "Parallel",
	RulerCurveParallel:    "CurveParallel",
	RulerMultiCurve:       "MultiCurve",
	RulerEmit:             "Emit",
	RulerCurveEmit:        "CurveEmit",
	RulerConcentricCircle: "ConcentricCircle",
	RulerGuide:            "Guide",
	RulerPerspective:      "Perspective",
	RulerSymmetry:         "Symmetry",
}

// RulerKinds lists every kind in manager column order.
var RulerKinds = []RulerKind{
	RulerParallel, RulerCurveParallel, RulerMultiCurve, RulerEmit, RulerCurveEmit,
	RulerConcentricCircle, RulerGuide, RulerPerspective, RulerSymmetry,
}

func (k RulerKind) String() string {
	if int(k) < len(rulerKindNames) && rulerKindNames[k] != "" {
		return rulerKindNames[k]
	}
	return fmt.Sprintf("RulerKind(%d)", k)
}

// Table is the database table holding rulers of this kind.
func (k RulerKind) Table() string { return "Ruler" + k.String() }

func (k RulerKind) managerColumn() string { return "First" + k.String() }

// rulerColumns are the kind specific columns written back by SetRuler.
var rulerColumns = map[RulerKind][]string{
	RulerParallel:         {"Snap", "Rotate", "CenterX", "CenterY"},
	RulerCurveParallel:    {"Snap", "CurveKind", "PointData"},
	RulerMultiCurve:       {"Snap", "CurveKind", "OffsetAngle", "CenterX", "CenterY", "PointData"},
	RulerEmit:             {"Snap", "CenterX", "CenterY"},
	RulerCurveEmit:        {"Snap", "CurveKind", "PointData"},
	RulerConcentricCircle: {"Snap", "RadiusX", "RadiusY", "Rotate", "CenterX", "CenterY"},
	RulerGuide:            {"Snap", "IsHorz", "CenterX", "CenterY"},
	RulerPerspective: {
		"Flag", "PerspectiveType", "EyeLevelHandleX", "EyeLevelHandleY",
		"MoveHandleX", "MoveHandleY", "GridOriginX", "GridOriginY",
		"GridFlag", "GridSize", "CameraNear",
	},
	RulerSymmetry: {"Snap", "LineNumber", "LineSymmetry", "Rotate", "CenterX", "CenterY"},
}

var vanishColumns = []string{
	"Flag", "VanishPointX", "VanishPointY", "ParallelAngle", "GuideNumber", "GuideDataSize", "Guide",
}

// Ruler is one special ruler row. Fields a kind does not store stay zero.
type Ruler struct {
	Kind RulerKind
	ID   int64
	Row  Row

	Snap         bool
	Rotate       float64
	Center       blobfmt.Point
	CurveKind    int64
	OffsetAngle  float64
	Radius       blobfmt.Point
	Horizontal   bool
	LineNumber   int64
	LineSymmetry bool

	// Points is set for the curve kinds when PointData is present.
	Points *blobfmt.RulerPointData
	// Perspective is set for RulerPerspective.
	Perspective *Perspective
}

// Perspective holds the perspective ruler handles and its vanish points in
// link order.
type Perspective struct {
	Flag           int64
	Type           int64
	EyeLevelHandle blobfmt.Point
	MoveHandle     blobfmt.Point
	GridOrigin     blobfmt.Point
	GridFlag       int64
	GridSize       float64
	CameraNear     float64
	VanishPoints   []VanishPoint
}

// VanishPoint is one RulerVanishPoint row.
type VanishPoint struct {
	ID            int64
	Row           Row
	Flag          int64
	Position      blobfmt.Point
	ParallelAngle float64
	GuideNumber   int64
	GuideDataSize int64
	Guide         []byte
}

// Rulers decodes the special rulers attached to a layer, ordered by kind and
// then id. Only kinds enabled in the layer's SpecialRulerManager are read.
func (p *Project) Rulers(ctx context.Context, layerID int64) ([]Ruler, error) {
	layer, err := p.Layer(ctx, layerID)
	if err != nil {
		return nil, err
	}
	mgrID, ok := layer.Ref("SpecialRulerManager")
	if !ok {
		return nil, nil
	}
	mgr, err := p.DB.Get(ctx, "SpecialRulerManager", mgrID)
	if err != nil {
		return nil, err
	}
	var out []Ruler
	for _, k := range RulerKinds {
		if _, ok := mgr.Ref(k.managerColumn()); !ok {
			continue
		}
		rows, err := p.DB.ReferencedItems(ctx, k.Table(), "LayerId", layerID)
		if err != nil {
			return nil, err
		}
		start := len(out)
		for id, r := range rows {
			rl, err := p.decodeRuler(ctx, k, id, r)
			if err != nil {
				return nil, fmt.Errorf("clip: %s %d: %w", k.Table(), id, err)
			}
			out = append(out, rl)
		}
		slices.SortFunc(out[start:], func(a, b Ruler) int { return cmp.Compare(a.ID, b.ID) })
	}
	return out, nil
}

func (p *Project) decodeRuler(ctx context.Context, k RulerKind, id int64, r Row) (Ruler, error) {
	rl := Ruler{Kind: k, ID: id, Row: r}
	rl.Snap = flag(r, "Snap")
	rl.Rotate, _ = r.Float("Rotate")
	rl.Center = point(r, "CenterX", "CenterY")
	rl.CurveKind, _ = r.Int("CurveKind")
	rl.OffsetAngle, _ = r.Float("OffsetAngle")
	rl.Radius = point(r, "RadiusX", "RadiusY")
	rl.Horizontal = flag(r, "IsHorz")
	rl.LineNumber, _ = r.Int("LineNumber")
	rl.LineSymmetry = flag(r, "LineSymmetry")
	if b, ok := r.Bytes("PointData"); ok && len(b) > 0 {
		pts, err := blobfmt.ParseRulerPoints(b, p.blobOptions())
		if err != nil {
			return rl, err
		}
		rl.Points = pts
	}
	if k != RulerPerspective {
		return rl, nil
	}
	ps := &Perspective{
		EyeLevelHandle: point(r, "EyeLevelHandleX", "EyeLevelHandleY"),
		MoveHandle:     point(r, "MoveHandleX", "MoveHandleY"),
		GridOrigin:     point(r, "GridOriginX", "GridOriginY"),
	}
	ps.Flag, _ = r.Int("Flag")
	ps.Type, _ = r.Int("PerspectiveType")
	ps.GridFlag, _ = r.Int("GridFlag")
	ps.GridSize, _ = r.Float("GridSize")
	ps.CameraNear, _ = r.Float("CameraNear")
	vps, err := p.vanishPoints(ctx, r)
	if err != nil {
		return rl, err
	}
	ps.VanishPoints = vps
	rl.Perspective = ps
	return rl, nil
}

// vanishPoints follows FirstVanishIndex and then NextIndex through the
// RulerVanishPoint table.
func (p *Project) vanishPoints(ctx context.Context, r Row) ([]VanishPoint, error) {
	seen := make(map[int64]bool)
	var out []VanishPoint
	id, _ := r.Ref("FirstVanishIndex")
	for id != 0 {
		if seen[id] {
			return nil, fmt.Errorf("%w: vanish point %d is linked twice", ErrCorrupt, id)
		}
		seen[id] = true
		row, err := p.DB.Get(ctx, "RulerVanishPoint", id)
		if err != nil {
			return nil, err
		}
		vp := VanishPoint{ID: id, Row: row, Position: point(row, "VanishPointX", "VanishPointY")}
		vp.Flag, _ = row.Int("Flag")
		vp.ParallelAngle, _ = row.Float("ParallelAngle")
		vp.GuideNumber, _ = row.Int("GuideNumber")
		vp.GuideDataSize, _ = row.Int("GuideDataSize")
		vp.Guide, _ = row.Bytes("Guide")
		out = append(out, vp)
		id, _ = row.Ref("NextIndex")
	}
	return out, nil
}

// SetRuler writes the typed fields of r back into its row, and those of its
// vanish points into theirs. Columns missing from the row as read are skipped.
func (p *Project) SetRuler(ctx context.Context, r Ruler) error {
	cols, ok := rulerColumns[r.Kind]
	if !ok {
		return fmt.Errorf("clip: unknown ruler kind %d", r.Kind)
	}
	upd := Row{"MainId": r.ID}
	for _, col := range cols {
		if _, ok := r.Row[col]; !ok {
			continue
		}
		v, ok, err := r.value(col)
		if err != nil {
			return fmt.Errorf("clip: %s %d: %w", r.Kind.Table(), r.ID, err)
		}
		if ok {
			upd[col] = v
		}
	}
	if err := p.DB.Update(ctx, r.Kind.Table(), upd); err != nil {
		return err
	}
	if r.Perspective == nil {
		return nil
	}
	for _, vp := range r.Perspective.VanishPoints {
		upd := Row{"MainId": vp.ID}
		for _, col := range vanishColumns {
			if _, ok := vp.Row[col]; ok {
				upd[col] = vp.value(col)
			}
		}
		if err := p.DB.Update(ctx, "RulerVanishPoint", upd); err != nil {
			return err
		}
	}
	return nil
}

// SetRulerPoints stores r.Points back into its row.
func (p *Project) SetRulerPoints(ctx context.Context, r Ruler) error {
	if r.Points == nil {
		return fmt.Errorf("%w: %s %d has no points", ErrNoData, r.Kind.Table(), r.ID)
	}
	b, err := r.Points.Bytes()
	if err != nil {
		return fmt.Errorf("clip: %s %d: %w", r.Kind.Table(), r.ID, err)
	}
	return p.DB.Update(ctx, r.Kind.Table(), Row{"MainId": r.ID, "PointData": b})
}

func (r *Ruler) value(col string) (any, bool, error) {
	switch col {
	case "Snap":
		return boolInt(r.Snap), true, nil
	case "Rotate":
		return r.Rotate, true, nil
	case "CenterX":
		return r.Center.X, true, nil
	case "CenterY":
		return r.Center.Y, true, nil
	case "CurveKind":
		return r.CurveKind, true, nil
	case "OffsetAngle":
		return r.OffsetAngle, true, nil
	case "RadiusX":
		return r.Radius.X, true, nil
	case "RadiusY":
		return r.Radius.Y, true, nil
	case "IsHorz":
		return boolInt(r.Horizontal), true, nil
	case "LineNumber":
		return r.LineNumber, true, nil
	case "LineSymmetry":
		return boolInt(r.LineSymmetry), true, nil
	case "PointData":
		if r.Points == nil {
			return nil, false, nil
		}
		b, err := r.Points.Bytes()
		return b, err == nil, err
	}
	ps := r.Perspective
	if ps == nil {
		return nil, false, nil
	}
	switch col {
	case "Flag":
		return ps.Flag, true, nil
	case "PerspectiveType":
		return ps.Type, true, nil
	case "EyeLevelHandleX":
		return ps.EyeLevelHandle.X, true, nil
	case "EyeLevelHandleY":
		return ps.EyeLevelHandle.Y, true, nil
	case "MoveHandleX":
		return ps.MoveHandle.X, true, nil
	case "MoveHandleY":
		return ps.MoveHandle.Y, true, nil
	case "GridOriginX":
		return ps.GridOrigin.X, true, nil
	case "GridOriginY":
		return ps.GridOrigin.Y, true, nil
	case "GridFlag":
		return ps.GridFlag, true, nil
	case "GridSize":
		return ps.GridSize, true, nil
	case "CameraNear":
		return ps.CameraNear, true, nil
	}
	return nil, false, nil
}

func (vp *VanishPoint) value(col string) any {
	switch col {
	case "Flag":
		return vp.Flag
	case "VanishPointX":
		return vp.Position.X
	case "VanishPointY":
		return vp.Position.Y
	case "ParallelAngle":
		return vp.ParallelAngle
	case "GuideNumber":
		return vp.GuideNumber
	case "GuideDataSize":
		return vp.GuideDataSize
	case "Guide":
		return vp.Guide
	}
	return nil
}

func flag(r Row, col string) bool {
	v, _ := r.Int(col)
	return v != 0
}

func point(r Row, x, y string) blobfmt.Point {
	var pt blobfmt.Point
	pt.X, _ = r.Float(x)
	pt.Y, _ = r.Float(y)
	return pt
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
