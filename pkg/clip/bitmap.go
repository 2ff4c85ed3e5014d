package clip

import (
	"context"
	"fmt"
	"image"

	"github.com/samcharles93/clipkit/pkg/bitmap"
	"github.com/samcharles93/clipkit/pkg/csf"
	"github.com/samcharles93/clipkit/pkg/offscreen"
)

// Layer columns that point at a Mipmap row.
const (
	RenderMipmap = "LayerRenderMipmap"
	MaskMipmap   = "LayerLayerMaskMipmap"
)

// mipmapLevels returns the MipmapInfo rows of a layer's mipmap column,
// largest first, following NextIndex.
func (p *Project) mipmapLevels(ctx context.Context, layerID int64, column string) ([]Row, error) {
	layer, err := p.Layer(ctx, layerID)
	if err != nil {
		return nil, err
	}
	mipID, ok := layer.Ref(column)
	if !ok {
		return nil, fmt.Errorf("%w: layer %d %s", ErrNoBitmap, layerID, column)
	}
	mip, err := p.DB.Get(ctx, "Mipmap", mipID)
	if err != nil {
		return nil, err
	}
	infoID, ok := mip.Ref("BaseMipmapInfo")
	if !ok {
		return nil, fmt.Errorf("%w: mipmap %d has no base level", ErrCorrupt, mipID)
	}
	seen := make(map[int64]bool)
	var out []Row
	for id := infoID; id != 0; {
		if seen[id] {
			return nil, fmt.Errorf("%w: mipmap info %d is linked twice", ErrCorrupt, id)
		}
		seen[id] = true
		info, err := p.DB.Get(ctx, "MipmapInfo", id)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
		id, _ = info.Ref("NextIndex")
	}
	return out, nil
}

func (p *Project) offscreenOf(ctx context.Context, info Row) (Row, error) {
	id, ok := info.Ref("Offscreen")
	if !ok {
		main, _ := info.Int("MainId")
		return nil, fmt.Errorf("%w: mipmap info %d has no offscreen", ErrCorrupt, main)
	}
	return p.DB.Get(ctx, "Offscreen", id)
}

// decodeOffscreen decodes the bitmap an Offscreen row points at.
func (p *Project) decodeOffscreen(off Row) (*image.NRGBA, error) {
	main, _ := off.Int("MainId")
	raw, ok := off.Bytes("Attribute")
	if !ok {
		return nil, fmt.Errorf("%w: offscreen %d has no attribute", ErrCorrupt, main)
	}
	attr, err := offscreen.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("clip: offscreen %d: %w", main, err)
	}
	ext, ok := externalID(off, "BlockData")
	if !ok {
		return nil, fmt.Errorf("%w: offscreen %d has no block data", ErrCorrupt, main)
	}
	c, ok := p.File.Chunk(ext)
	if !ok {
		return nil, fmt.Errorf("%w: offscreen %d references missing chunk %s", ErrCorrupt, main, ext)
	}
	if !c.IsBlockData() {
		return nil, fmt.Errorf("clip: offscreen %d: %w: %s", main, bitmap.ErrRawChunk, ext)
	}
	return bitmap.DecodeWithOptions(c.Blocks, attr, bitmap.DecodeOptions{Logger: p.log})
}

// LayerBitmap decodes the full size render bitmap of a layer.
func (p *Project) LayerBitmap(ctx context.Context, layerID int64) (*image.NRGBA, error) {
	return p.levelBitmap(ctx, layerID, RenderMipmap)
}

// LayerMask decodes the full size mask bitmap of a layer.
func (p *Project) LayerMask(ctx context.Context, layerID int64) (*image.NRGBA, error) {
	return p.levelBitmap(ctx, layerID, MaskMipmap)
}

func (p *Project) levelBitmap(ctx context.Context, layerID int64, column string) (*image.NRGBA, error) {
	levels, err := p.mipmapLevels(ctx, layerID, column)
	if err != nil {
		return nil, err
	}
	off, err := p.offscreenOf(ctx, levels[0])
	if err != nil {
		return nil, err
	}
	return p.decodeOffscreen(off)
}

// HasBitmap reports whether a layer has a render mipmap.
func (p *Project) HasBitmap(ctx context.Context, layerID int64) (bool, error) {
	layer, err := p.Layer(ctx, layerID)
	if err != nil {
		return false, err
	}
	_, ok := layer.Ref(RenderMipmap)
	return ok, nil
}

// SetLayerBitmap replaces every mipmap level of a layer's render bitmap with
// img and its half-scaled copies. Each level gets a new external chunk; the
// chunk it replaces is dropped once no offscreen row points at it. The colour
// mode of the existing base level is kept.
func (p *Project) SetLayerBitmap(ctx context.Context, layerID int64, img image.Image) error {
	infos, err := p.mipmapLevels(ctx, layerID, RenderMipmap)
	if err != nil {
		return err
	}
	offs := make([]Row, len(infos))
	for i, info := range infos {
		if offs[i], err = p.offscreenOf(ctx, info); err != nil {
			return err
		}
	}

	mode := offscreen.ColorModeRGB
	if raw, ok := offs[0].Bytes("Attribute"); ok {
		if attr, err := offscreen.Parse(raw); err == nil {
			if m, err := attr.Mode(); err == nil {
				mode = m
			}
		}
	}

	scaled := bitmap.Mipmaps(img, len(offs))
	var replaced []string
	for i, off := range offs {
		level := scaled[min(i, len(scaled)-1)]
		bd, attr, err := bitmap.Encode(ctx, level, mode, bitmap.EncodeOptions{Workers: p.workers, Logger: p.log})
		if err != nil {
			return fmt.Errorf("clip: layer %d level %d: %w", layerID, i, err)
		}
		c, err := csf.NewBlockChunk(bd)
		if err != nil {
			return err
		}
		ab, err := attr.Bytes()
		if err != nil {
			return err
		}
		main, _ := off.Int("MainId")
		if err := p.DB.Update(ctx, "Offscreen", Row{"MainId": main, "Attribute": ab, "BlockData": []byte(c.ID)}); err != nil {
			return err
		}
		p.File.AddChunk(c)
		if old, ok := externalID(off, "BlockData"); ok {
			replaced = append(replaced, old)
		}
	}
	if err := p.dropUnreferenced(ctx, replaced); err != nil {
		return err
	}
	p.log.Debug("replaced layer bitmap", "layer", layerID, "levels", len(offs), "mode", mode)
	return nil
}

func (p *Project) dropUnreferenced(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := p.DB.Table(ctx, "Offscreen")
	if err != nil {
		return err
	}
	live := make(map[string]bool, len(rows))
	for _, r := range rows {
		if ext, ok := externalID(r, "BlockData"); ok {
			live[ext] = true
		}
	}
	for _, id := range ids {
		if !live[id] && p.File.RemoveChunk(id) {
			p.log.Debug("dropped orphaned chunk", "id", id)
		}
	}
	return nil
}
