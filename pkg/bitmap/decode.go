// Package bitmap converts between tiled, channel-packed block data and
// in-memory images.
//
// An inflated tile holds the alpha region first and the colour region second.
// RGB colour is stored per pixel as B,G,R,X; monochrome planes are 1-bit,
// most significant bit first.
package bitmap

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/klauspost/compress/zlib"
	"golang.org/x/image/draw"

	"github.com/samcharles93/clipkit/internal/logger"
	"github.com/samcharles93/clipkit/pkg/csf"
	"github.com/samcharles93/clipkit/pkg/offscreen"
)

var (
	ErrTileCount = errors.New("bitmap: block count does not cover tile grid")
	ErrTileSize  = errors.New("bitmap: inflated tile has wrong size")
	ErrRawChunk  = errors.New("bitmap: external chunk holds raw data")
)

// DecodeOptions configures Decode.
type DecodeOptions struct {
	Logger logger.Logger
}

// Decode renders bd into an image described by attr. Tiles without data keep
// the attribute's fill colour.
func Decode(bd *csf.BlockData, attr *offscreen.Attribute) (*image.NRGBA, error) {
	return DecodeWithOptions(bd, attr, DecodeOptions{})
}

// DecodeChunk decodes a block-data external chunk.
func DecodeChunk(c *csf.ExternalChunk, attr *offscreen.Attribute) (*image.NRGBA, error) {
	if !c.IsBlockData() {
		return nil, fmt.Errorf("%w: %s", ErrRawChunk, c.ID)
	}
	return Decode(c.Blocks, attr)
}

// DecodeWithOptions is Decode with explicit options.
func DecodeWithOptions(bd *csf.BlockData, attr *offscreen.Attribute, opts DecodeOptions) (*image.NRGBA, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	if err := attr.Validate(); err != nil {
		return nil, err
	}
	mode, err := attr.Mode()
	if err != nil {
		return nil, err
	}
	if len(bd.Blocks) < attr.TileCount() {
		return nil, fmt.Errorf("%w: %d blocks for %dx%d grid", ErrTileCount, len(bd.Blocks), attr.GridWidth, attr.GridHeight)
	}

	out := image.NewNRGBA(image.Rect(0, 0, int(attr.Width), int(attr.Height)))
	draw.Draw(out, out.Bounds(), image.NewUniform(attr.FillColor()), image.Point{}, draw.Src)

	alphaSize := attr.Packing.AlphaRegionSize()
	colorSize := attr.Packing.ColorRegionSize()
	tile := image.NewNRGBA(image.Rect(0, 0, offscreen.TileWidth, offscreen.TileHeight))
	raw := make([]byte, alphaSize+colorSize)

	present := 0
	gw := int(attr.GridWidth)
	for i := 0; i < attr.TileCount(); i++ {
		blk := &bd.Blocks[i]
		if !blk.Present {
			continue
		}
		if err := inflate(blk.Data, raw); err != nil {
			return nil, fmt.Errorf("bitmap: tile %d: %w", i, err)
		}
		if err := unpackTile(tile, mode, raw[:alphaSize], raw[alphaSize:]); err != nil {
			return nil, fmt.Errorf("bitmap: tile %d: %w", i, err)
		}

		x, y := (i%gw)*offscreen.TileWidth, (i/gw)*offscreen.TileHeight
		dst := image.Rect(x, y, x+offscreen.TileWidth, y+offscreen.TileHeight)
		draw.Draw(out, dst, tile, image.Point{}, draw.Src)
		present++
	}

	log.Debug("decoded bitmap", "width", attr.Width, "height", attr.Height, "mode", mode, "tiles", attr.TileCount(), "present", present)
	return out, nil
}

// inflate decompresses data into dst, which must be filled exactly.
func inflate(data, dst []byte) error {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer func() { _ = zr.Close() }()

	n, err := io.ReadFull(zr, dst)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: got %d bytes, want %d", ErrTileSize, n, len(dst))
		}
		return err
	}
	extra, err := io.Copy(io.Discard, zr)
	if err != nil {
		return err
	}
	if extra > 0 {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrTileSize, int64(len(dst))+extra, len(dst))
	}
	return nil
}

// unpackTile merges the alpha and colour regions into tile.
func unpackTile(tile *image.NRGBA, mode offscreen.ColorMode, alpha, col []byte) error {
	needAlpha, needCol := offscreen.RegionSizes(mode)
	if needCol == 0 {
		return fmt.Errorf("bitmap: unsupported colour mode %v", mode)
	}
	if len(alpha) < needAlpha || len(col) < needCol {
		return fmt.Errorf("%w: %v tile has %d alpha and %d colour bytes, need %d and %d",
			ErrTileSize, mode, len(alpha), len(col), needAlpha, needCol)
	}
	pix := tile.Pix
	for p := 0; p < offscreen.TileArea; p++ {
		o := p * 4
		switch mode {
		case offscreen.ColorModeRGB:
			c := col[p*4 : p*4+4]
			pix[o+0] = c[2]
			pix[o+1] = c[1]
			pix[o+2] = c[0]
			pix[o+3] = alpha[p]
		case offscreen.ColorModeGray:
			g := col[p]
			pix[o+0], pix[o+1], pix[o+2], pix[o+3] = g, g, g, alpha[p]
		case offscreen.ColorModeMonochrome:
			g := bitValue(col, p)
			pix[o+0], pix[o+1], pix[o+2], pix[o+3] = g, g, g, bitValue(alpha, p)
		}
	}
	return nil
}

// bitValue expands bit p of an MSB-first plane to 0 or 255.
func bitValue(plane []byte, p int) uint8 {
	if plane[p>>3]&(0x80>>(p&7)) != 0 {
		return 0xff
	}
	return 0
}
