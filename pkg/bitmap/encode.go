package bitmap

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"runtime"

	"github.com/klauspost/compress/zlib"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/samcharles93/clipkit/internal/logger"
	"github.com/samcharles93/clipkit/pkg/csf"
	"github.com/samcharles93/clipkit/pkg/offscreen"
)

// EncodeOptions configures Encode.
type EncodeOptions struct {
	// Workers bounds the number of tiles compressed at once.
	// Zero means GOMAXPROCS.
	Workers int
	// Fill is the default colour recorded in the attribute. Tiles whose
	// pixels all match it are stored as absent blocks.
	Fill   color.NRGBA
	Logger logger.Logger
}

// Encode splits img into 256x256 tiles, packs and compresses each one and
// returns the block data with a matching attribute. Tiles are processed in
// parallel; each worker writes only its own slot, so block order is the
// tile order.
func Encode(ctx context.Context, img image.Image, mode offscreen.ColorMode, opts EncodeOptions) (*csf.BlockData, *offscreen.Attribute, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	b := img.Bounds()
	attr, err := offscreen.New(mode, b.Dx(), b.Dy())
	if err != nil {
		return nil, nil, err
	}
	attr.SetFillColor(opts.Fill)

	src := toNRGBA(img)
	n := attr.TileCount()
	gw := int(attr.GridWidth)
	bd := csf.NewBlockData(n)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			x, y := (i%gw)*offscreen.TileWidth, (i/gw)*offscreen.TileHeight
			data, err := encodeTile(src, image.Pt(x, y), mode, &attr.Packing, opts.Fill)
			if err != nil {
				return fmt.Errorf("bitmap: tile %d: %w", i, err)
			}
			blk := &bd.Blocks[i]
			if data != nil {
				blk.Present = true
				blk.Data = data
			}
			attr.BlockSizes[i] = int32(blk.RecordSize())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	present := 0
	for i := range bd.Blocks {
		if bd.Blocks[i].Present {
			present++
		}
	}
	log.Debug("encoded bitmap", "width", b.Dx(), "height", b.Dy(), "mode", mode, "tiles", n, "present", present, "workers", workers)
	return bd, attr, nil
}

// toNRGBA returns img as an NRGBA image anchored at the origin.
func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if n, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return n
	}
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// encodeTile packs the tile whose top-left corner is at origin. It returns nil
// when every pixel inside the image matches fill.
func encodeTile(src *image.NRGBA, origin image.Point, mode offscreen.ColorMode, p *offscreen.PixelPacking, fill color.NRGBA) ([]byte, error) {
	crop := image.Rect(origin.X, origin.Y, origin.X+offscreen.TileWidth, origin.Y+offscreen.TileHeight).Intersect(src.Bounds())
	if matchesFill(src, crop, fill) {
		return nil, nil
	}

	alpha := make([]byte, p.AlphaRegionSize())
	col := make([]byte, p.ColorRegionSize())
	for y := crop.Min.Y; y < crop.Max.Y; y++ {
		row := src.Pix[src.PixOffset(crop.Min.X, y):]
		for x := crop.Min.X; x < crop.Max.X; x++ {
			px := row[(x-crop.Min.X)*4:]
			r, g, b, a := px[0], px[1], px[2], px[3]
			i := (y-origin.Y)*offscreen.TileWidth + (x - origin.X)
			switch mode {
			case offscreen.ColorModeRGB:
				alpha[i] = a
				col[i*4+0] = b
				col[i*4+1] = g
				col[i*4+2] = r
				col[i*4+3] = 0xff
			case offscreen.ColorModeGray:
				alpha[i] = a
				col[i] = luma(r, g, b)
			case offscreen.ColorModeMonochrome:
				setBit(alpha, i, a >= 0x80)
				setBit(col, i, luma(r, g, b) >= 0x80)
			}
		}
	}

	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(alpha); err != nil {
		return nil, err
	}
	if _, err := zw.Write(col); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// matchesFill reports whether every pixel of r would decode to fill. With a
// transparent fill, any fully transparent pixel matches.
func matchesFill(src *image.NRGBA, r image.Rectangle, fill color.NRGBA) bool {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := src.NRGBAAt(x, y)
			if fill.A == 0 {
				if c.A != 0 {
					return false
				}
				continue
			}
			if c != fill {
				return false
			}
		}
	}
	return true
}

// luma matches color.GrayModel on non-premultiplied input.
func luma(r, g, b uint8) uint8 {
	y := (19595*uint32(r) + 38470*uint32(g) + 7471*uint32(b) + 1<<15) >> 16
	return uint8(y)
}

func setBit(plane []byte, i int, on bool) {
	if on {
		plane[i>>3] |= 0x80 >> (i & 7)
	}
}
