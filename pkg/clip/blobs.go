package clip

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/samcharles93/clipkit/pkg/blobfmt"
)

// Layer columns holding sub-format blobs.
const (
	ColumnGradient   = "GradationFillInfo"
	ColumnCorrection = "FilterLayerInfo"
	ColumnEffects    = "LayerEffectInfo"
	ColumnTextAttrs  = "TextLayerAttributes"
	ColumnText       = "TextLayerString"

	ColumnTextStrings    = "TextLayerStringArray"
	ColumnTextAttrsArray = "TextLayerAttributesArray"
)

type encoder interface {
	Bytes() ([]byte, error)
}

func (p *Project) column(ctx context.Context, layerID int64, col string) ([]byte, error) {
	layer, err := p.Layer(ctx, layerID)
	if err != nil {
		return nil, err
	}
	b, ok := layer.Bytes(col)
	if !ok || len(b) == 0 {
		return nil, fmt.Errorf("%w: layer %d %s", ErrNoData, layerID, col)
	}
	return b, nil
}

func parseColumn[T any](ctx context.Context, p *Project, layerID int64, col string, parse func([]byte, blobfmt.Options) (T, error)) (T, error) {
	var zero T
	b, err := p.column(ctx, layerID, col)
	if err != nil {
		return zero, err
	}
	v, err := parse(b, p.blobOptions())
	if err != nil {
		return zero, fmt.Errorf("clip: layer %d %s: %w", layerID, col, err)
	}
	return v, nil
}

func (p *Project) setColumn(ctx context.Context, layerID int64, col string, v encoder) error {
	b, err := v.Bytes()
	if err != nil {
		return fmt.Errorf("clip: layer %d %s: %w", layerID, col, err)
	}
	return p.DB.Update(ctx, "Layer", Row{"MainId": layerID, col: b})
}

// Gradient decodes a gradient layer's fill.
func (p *Project) Gradient(ctx context.Context, layerID int64) (*blobfmt.Gradient, error) {
	return parseColumn(ctx, p, layerID, ColumnGradient, blobfmt.ParseGradient)
}

// SetGradient stores g as the layer's gradient fill.
func (p *Project) SetGradient(ctx context.Context, layerID int64, g *blobfmt.Gradient) error {
	return p.setColumn(ctx, layerID, ColumnGradient, g)
}

// Correction decodes a correction layer's filter.
func (p *Project) Correction(ctx context.Context, layerID int64) (*blobfmt.Correction, error) {
	return parseColumn(ctx, p, layerID, ColumnCorrection, blobfmt.ParseCorrection)
}

// SetCorrection stores c as the layer's filter.
func (p *Project) SetCorrection(ctx context.Context, layerID int64, c *blobfmt.Correction) error {
	return p.setColumn(ctx, layerID, ColumnCorrection, c)
}

// Effects decodes a layer's effect settings.
func (p *Project) Effects(ctx context.Context, layerID int64) (*blobfmt.Effects, error) {
	return parseColumn(ctx, p, layerID, ColumnEffects, blobfmt.ParseEffects)
}

// SetEffects stores fx as the layer's effect settings.
func (p *Project) SetEffects(ctx context.Context, layerID int64, fx *blobfmt.Effects) error {
	return p.setColumn(ctx, layerID, ColumnEffects, fx)
}

// TextAttributes decodes a text layer's attribute stream.
func (p *Project) TextAttributes(ctx context.Context, layerID int64) (*blobfmt.TextAttributes, error) {
	return parseColumn(ctx, p, layerID, ColumnTextAttrs, blobfmt.ParseTextAttributes)
}

// SetTextAttributes stores t as the layer's attribute stream.
func (p *Project) SetTextAttributes(ctx context.Context, layerID int64, t *blobfmt.TextAttributes) error {
	return p.setColumn(ctx, layerID, ColumnTextAttrs, t)
}

// Text returns a text layer's string.
func (p *Project) Text(ctx context.Context, layerID int64) (string, error) {
	b, err := p.column(ctx, layerID, ColumnText)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// TextStrings decodes the string list of a text layer holding several text
// objects.
func (p *Project) TextStrings(ctx context.Context, layerID int64) (*blobfmt.StringArray, error) {
	return parseColumn(ctx, p, layerID, ColumnTextStrings, blobfmt.ParseStringArray)
}

// SetTextStrings stores a as the layer's string list.
func (p *Project) SetTextStrings(ctx context.Context, layerID int64, a *blobfmt.StringArray) error {
	return p.setColumn(ctx, layerID, ColumnTextStrings, a)
}

// TextAttributesArray decodes the per-object attribute streams of a text layer.
func (p *Project) TextAttributesArray(ctx context.Context, layerID int64) (*blobfmt.TextAttributesArray, error) {
	return parseColumn(ctx, p, layerID, ColumnTextAttrsArray, blobfmt.ParseTextAttributesArray)
}

// SetTextAttributesArray stores a as the layer's attribute streams.
func (p *Project) SetTextAttributesArray(ctx context.Context, layerID int64, a *blobfmt.TextAttributesArray) error {
	return p.setColumn(ctx, layerID, ColumnTextAttrsArray, a)
}

// VectorObject is one VectorObjectList row with its decoded strokes.
type VectorObject struct {
	ID      int64
	ChunkID string
	List    *blobfmt.VectorList
}

// Vectors decodes every vector object list of a layer, ordered by id.
func (p *Project) Vectors(ctx context.Context, layerID int64) ([]VectorObject, error) {
	rows, err := p.DB.ReferencedItems(ctx, "VectorObjectList", "LayerId", layerID)
	if err != nil {
		return nil, err
	}
	out := make([]VectorObject, 0, len(rows))
	for id, r := range rows {
		ext, ok := externalID(r, "VectorData")
		if !ok {
			continue
		}
		c, ok := p.File.Chunk(ext)
		if !ok {
			return nil, fmt.Errorf("%w: vector list %d references missing chunk %s", ErrCorrupt, id, ext)
		}
		if c.IsBlockData() {
			return nil, fmt.Errorf("%w: vector chunk %s holds block data", ErrCorrupt, ext)
		}
		l, err := blobfmt.ParseVectorList(c.Raw, p.blobOptions())
		if err != nil {
			return nil, fmt.Errorf("clip: vector list %d: %w", id, err)
		}
		out = append(out, VectorObject{ID: id, ChunkID: ext, List: l})
	}
	slices.SortFunc(out, func(a, b VectorObject) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// SetVectors re-encodes v's strokes into the chunk it was read from.
func (p *Project) SetVectors(v VectorObject) error {
	c, ok := p.File.Chunk(v.ChunkID)
	if !ok {
		return fmt.Errorf("%w: missing vector chunk %s", ErrCorrupt, v.ChunkID)
	}
	b, err := v.List.Bytes()
	if err != nil {
		return fmt.Errorf("clip: vector list %d: %w", v.ID, err)
	}
	c.Raw = b
	return nil
}
