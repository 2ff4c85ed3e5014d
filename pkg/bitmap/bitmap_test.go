package bitmap

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/samcharles93/clipkit/pkg/csf"
	"github.com/samcharles93/clipkit/pkg/offscreen"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func checkerboard(w, h, cell int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 200, G: 30, B: 90, A: 255}
			if (x/cell+y/cell)%2 == 1 {
				c = color.NRGBA{R: 10, G: 250, B: 4, A: 128}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func assertSamePixels(t *testing.T, got, want *image.NRGBA) {
	t.Helper()
	if got.Bounds() != want.Bounds() {
		t.Fatalf("bounds: got %v want %v", got.Bounds(), want.Bounds())
	}
	b := want.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if g, w := got.NRGBAAt(x, y), want.NRGBAAt(x, y); g != w {
				t.Fatalf("pixel (%d,%d): got %v want %v", x, y, g, w)
			}
		}
	}
}

func roundTrip(t *testing.T, img *image.NRGBA, mode offscreen.ColorMode, opts EncodeOptions) (*csf.BlockData, *image.NRGBA) {
	t.Helper()
	bd, attr, err := Encode(context.Background(), img, mode, opts)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := Decode(bd, attr)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return bd, out
}

func TestSolidOpaqueRGBRoundTrip(t *testing.T) {
	t.Parallel()

	img := solid(300, 260, color.NRGBA{R: 12, G: 34, B: 56, A: 255})
	bd, out := roundTrip(t, img, offscreen.ColorModeRGB, EncodeOptions{Workers: 2})
	if len(bd.Blocks) != 4 {
		t.Fatalf("blocks: got %d want 4", len(bd.Blocks))
	}
	for i, b := range bd.Blocks {
		if !b.Present {
			t.Fatalf("block %d absent in opaque image", i)
		}
	}
	assertSamePixels(t, out, img)
}

func TestTransparentRGBAUsesAbsentBlocks(t *testing.T) {
	t.Parallel()

	img := solid(512, 256, color.NRGBA{})
	bd, attr, err := Encode(context.Background(), img, offscreen.ColorModeRGB, EncodeOptions{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for i, b := range bd.Blocks {
		if b.Present || b.Data != nil {
			t.Fatalf("block %d should be absent: %+v", i, b)
		}
		if attr.BlockSizes[i] != csf.AbsentBlockRecordSize {
			t.Fatalf("block size %d: got %d want %d", i, attr.BlockSizes[i], csf.AbsentBlockRecordSize)
		}
	}
	out, err := Decode(bd, attr)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	assertSamePixels(t, out, img)
}

func TestAbsentBlockDecodesToFill(t *testing.T) {
	t.Parallel()

	attr, err := offscreen.New(offscreen.ColorModeRGB, 256, 256)
	if err != nil {
		t.Fatalf("new attribute: %v", err)
	}
	fill := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	attr.SetFillColor(fill)

	out, err := Decode(csf.NewBlockData(1), attr)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	assertSamePixels(t, out, solid(256, 256, fill))
}

func TestOpaqueFillSkipsMatchingTiles(t *testing.T) {
	t.Parallel()

	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	img := solid(512, 256, white)
	img.SetNRGBA(300, 10, color.NRGBA{A: 255})

	bd, out := roundTrip(t, img, offscreen.ColorModeRGB, EncodeOptions{Fill: white})
	if bd.Blocks[0].Present || !bd.Blocks[1].Present {
		t.Fatalf("presence: got %v, %v want false, true", bd.Blocks[0].Present, bd.Blocks[1].Present)
	}
	assertSamePixels(t, out, img)
}

func TestMonochromeRoundTrip(t *testing.T) {
	t.Parallel()

	img := image.NewNRGBA(image.Rect(0, 0, 270, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 270; x++ {
			var c color.NRGBA
			switch (x*7 + y*3) % 3 {
			case 0:
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			case 1:
				c = color.NRGBA{A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	bd, out := roundTrip(t, img, offscreen.ColorModeMonochrome, EncodeOptions{})
	if !bd.Blocks[0].Present {
		t.Fatalf("first block absent")
	}
	assertSamePixels(t, out, img)
}

func TestGrayRoundTrip(t *testing.T) {
	t.Parallel()

	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint8(x*4 + y)
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: uint8(255 - y)})
		}
	}
	_, out := roundTrip(t, img, offscreen.ColorModeGray, EncodeOptions{Workers: 1})
	assertSamePixels(t, out, img)
}

func TestCheckerboardThroughContainer(t *testing.T) {
	t.Parallel()

	img := checkerboard(512, 512, 32)
	bd, attr, err := Encode(context.Background(), img, offscreen.ColorModeRGB, EncodeOptions{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	attrBytes, err := attr.Bytes()
	if err != nil {
		t.Fatalf("attribute: %v", err)
	}
	chunk, err := csf.NewBlockChunk(bd)
	if err != nil {
		t.Fatalf("chunk: %v", err)
	}

	f := &csf.File{Database: []byte("SQLite format 3\x00")}
	f.AddChunk(chunk)
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("write container: %v", err)
	}

	back, err := csf.Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("parse container: %v", err)
	}
	c, ok := back.Chunk(chunk.ID)
	if !ok {
		t.Fatalf("chunk %s missing", chunk.ID)
	}
	attr2, err := offscreen.Parse(attrBytes)
	if err != nil {
		t.Fatalf("parse attribute: %v", err)
	}
	out, err := DecodeChunk(c, attr2)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	assertSamePixels(t, out, img)
}

func TestDecodeRejectsShortBlockList(t *testing.T) {
	t.Parallel()

	attr, _ := offscreen.New(offscreen.ColorModeRGB, 512, 512)
	if _, err := Decode(csf.NewBlockData(2), attr); !errors.Is(err, ErrTileCount) {
		t.Fatalf("decode: got %v want ErrTileCount", err)
	}
}

func TestDecodeRejectsShortTile(t *testing.T) {
	t.Parallel()

	img := solid(256, 256, color.NRGBA{R: 1, A: 255})
	bd, attr, err := Encode(context.Background(), img, offscreen.ColorModeGray, EncodeOptions{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	rgb, _ := offscreen.New(offscreen.ColorModeRGB, 256, 256)
	rgb.Fill = attr.Fill
	if _, err := Decode(bd, rgb); !errors.Is(err, ErrTileSize) {
		t.Fatalf("decode gray tile as rgb: got %v want ErrTileSize", err)
	}
}

func TestDecodeRejectsOversizeTile(t *testing.T) {
	t.Parallel()

	img := solid(256, 256, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	bd, attr, err := Encode(context.Background(), img, offscreen.ColorModeRGB, EncodeOptions{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	gray, _ := offscreen.New(offscreen.ColorModeGray, 256, 256)
	gray.Fill = attr.Fill
	if _, err := Decode(bd, gray); !errors.Is(err, ErrTileSize) {
		t.Fatalf("decode rgb tile as gray: got %v want ErrTileSize", err)
	}
}

func TestDecodeRejectsEditedAlphaLayout(t *testing.T) {
	t.Parallel()

	img := solid(256, 256, color.NRGBA{R: 9, G: 8, B: 7, A: 255})
	bd, attr, err := Encode(context.Background(), img, offscreen.ColorModeRGB, EncodeOptions{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	attr.Packing.AlphaChannels = 0
	b, err := attr.Bytes()
	if err != nil {
		t.Fatalf("attribute bytes: %v", err)
	}
	edited, err := offscreen.Parse(b)
	if err != nil {
		t.Fatalf("parse edited attribute: %v", err)
	}
	if _, err := Decode(bd, edited); !errors.Is(err, offscreen.ErrLayout) {
		t.Fatalf("decode: got %v want offscreen.ErrLayout", err)
	}
}

func TestUnpackTileRejectsShortRegions(t *testing.T) {
	t.Parallel()

	tile := image.NewNRGBA(image.Rect(0, 0, offscreen.TileWidth, offscreen.TileHeight))
	err := unpackTile(tile, offscreen.ColorModeRGB, nil, make([]byte, offscreen.TileArea*4))
	if !errors.Is(err, ErrTileSize) {
		t.Fatalf("unpack without alpha: got %v want ErrTileSize", err)
	}
	if err := unpackTile(tile, offscreen.ColorMode(0), nil, nil); err == nil {
		t.Fatalf("unpack unknown mode: got nil error")
	}
}

func TestDecodeChunkRejectsRaw(t *testing.T) {
	t.Parallel()

	attr, _ := offscreen.New(offscreen.ColorModeRGB, 1, 1)
	_, err := DecodeChunk(&csf.ExternalChunk{ID: "x", Raw: []byte{1}}, attr)
	if !errors.Is(err, ErrRawChunk) {
		t.Fatalf("decode raw: got %v want ErrRawChunk", err)
	}
}

func TestEncodeHonoursCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := Encode(ctx, solid(600, 600, color.NRGBA{A: 255}), offscreen.ColorModeRGB, EncodeOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("encode: got %v want context.Canceled", err)
	}
}

func TestMipmaps(t *testing.T) {
	t.Parallel()

	levels := Mipmaps(solid(100, 30, color.NRGBA{R: 9, A: 255}), 10)
	want := []image.Point{{100, 30}, {50, 15}, {25, 7}, {12, 3}, {6, 1}, {3, 1}, {1, 1}}
	if len(levels) != len(want) {
		t.Fatalf("levels: got %d want %d", len(levels), len(want))
	}
	for i, l := range levels {
		if l.Bounds().Size() != want[i] {
			t.Fatalf("level %d: got %v want %v", i, l.Bounds().Size(), want[i])
		}
	}
	if got := levels[2].NRGBAAt(3, 3); got.R < 8 || got.R > 10 || got.A < 254 {
		t.Fatalf("scaled solid colour: got %v", got)
	}
	if Scale(2) != 0.25 {
		t.Fatalf("scale(2): got %v", Scale(2))
	}
}
