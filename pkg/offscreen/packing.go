// Package offscreen encodes the attribute record that describes one tiled
// bitmap: its size, tile grid, channel layout, fill colour and per-tile sizes.
package offscreen

import (
	"fmt"
)

// Tile geometry is fixed for every bitmap.
const (
	TileWidth  = 256
	TileHeight = 256
	TileArea   = TileWidth * TileHeight

	packingFieldCount = 16
	depthShift        = 5
)

// ColorMode selects the channel layout of a bitmap.
type ColorMode uint8

const (
	// ColorModeRGB stores four 8-bit buffer channels per pixel in B,G,R,X order.
	ColorModeRGB ColorMode = iota + 1
	// ColorModeGray stores one 8-bit buffer channel.
	ColorModeGray
	// ColorModeMonochrome stores one 1-bit buffer channel and a 1-bit alpha plane.
	ColorModeMonochrome
)

func (m ColorMode) String() string {
	switch m {
	case ColorModeRGB:
		return "rgb"
	case ColorModeGray:
		return "gray"
	case ColorModeMonochrome:
		return "monochrome"
	}
	return fmt.Sprintf("ColorMode(%d)", uint8(m))
}

// ParseColorMode is the inverse of ColorMode.String.
func ParseColorMode(s string) (ColorMode, error) {
	switch s {
	case "rgb", "rgba", "color":
		return ColorModeRGB, nil
	case "gray", "grey", "grayscale":
		return ColorModeGray, nil
	case "mono", "monochrome":
		return ColorModeMonochrome, nil
	}
	return 0, fmt.Errorf("offscreen: unknown colour mode %q", s)
}

// PixelPacking is the 16-field channel layout record. Bit depths hold the
// real value; they are stored multiplied by 32 on disk.
type PixelPacking struct {
	ChannelOrder      int32
	AlphaChannels     int32
	BufferChannels    int32
	TotalChannels     int32
	BufferBlockBytes  int32
	BufferChannelsDup int32
	BufferBitDepth    int32
	AlphaChannelsDup  int32
	AlphaBitDepth     int32
	BlockArea         int32
	TileWidth         int32
	TileHeight        int32
	Reserved8a        int32
	Reserved8b        int32
	Monochrome        int32
	Reserved0         int32
}

// NewPixelPacking derives every packing field for mode.
func NewPixelPacking(mode ColorMode) (PixelPacking, error) {
	p := PixelPacking{
		ChannelOrder:  1,
		AlphaChannels: 1,
		AlphaBitDepth: 8,
		BlockArea:     TileArea,
		TileWidth:     TileWidth,
		TileHeight:    TileHeight,
		Reserved8a:    8,
		Reserved8b:    8,
	}
	switch mode {
	case ColorModeRGB:
		p.BufferChannels = 4
		p.BufferBitDepth = 32
	case ColorModeGray:
		p.BufferChannels = 1
		p.BufferBitDepth = 8
	case ColorModeMonochrome:
		p.BufferChannels = 1
		p.BufferBitDepth = 1
		p.AlphaBitDepth = 1
		p.Monochrome = 1
	default:
		return PixelPacking{}, fmt.Errorf("offscreen: unsupported colour mode %v", mode)
	}
	p.TotalChannels = p.AlphaChannels + p.BufferChannels
	p.BufferChannelsDup = p.BufferChannels
	p.AlphaChannelsDup = p.AlphaChannels
	p.BufferBlockBytes = expectedBlockBytes(p.BufferBitDepth, p.BufferChannels)
	return p, nil
}

// expectedBlockBytes is TileArea / (8 / (depth / channels)), or -1 when that
// expression is undefined for the given fields.
func expectedBlockBytes(depth, channels int32) int32 {
	if channels <= 0 {
		return -1
	}
	perChannel := depth / channels
	if perChannel <= 0 || 8%perChannel != 0 {
		return -1
	}
	return TileArea / (8 / perChannel)
}

// Validate checks the block byte count against the channel layout.
func (p *PixelPacking) Validate() error {
	want := expectedBlockBytes(p.BufferBitDepth, p.BufferChannels)
	if want < 0 {
		return fmt.Errorf("%w: buffer depth %d over %d channels", ErrLayout, p.BufferBitDepth, p.BufferChannels)
	}
	if p.BufferBlockBytes != want {
		return fmt.Errorf("%w: buffer block bytes %d, expected %d", ErrLayout, p.BufferBlockBytes, want)
	}
	if p.TileWidth != TileWidth || p.TileHeight != TileHeight {
		return fmt.Errorf("%w: tile %dx%d", ErrLayout, p.TileWidth, p.TileHeight)
	}
	if p.AlphaChannels != 1 {
		return fmt.Errorf("%w: %d alpha channels", ErrLayout, p.AlphaChannels)
	}
	mode, err := p.Mode()
	if err != nil {
		return err
	}
	alpha, col := RegionSizes(mode)
	if got := p.AlphaRegionSize(); got < alpha {
		return fmt.Errorf("%w: %v alpha region %d bytes, need %d", ErrLayout, mode, got, alpha)
	}
	if got := p.ColorRegionSize(); got < col {
		return fmt.Errorf("%w: %v colour region %d bytes, need %d", ErrLayout, mode, got, col)
	}
	return nil
}

// RegionSizes returns the minimum alpha and colour region sizes of one
// inflated tile in mode.
func RegionSizes(mode ColorMode) (alpha, col int) {
	switch mode {
	case ColorModeRGB:
		return TileArea, TileArea * 4
	case ColorModeGray:
		return TileArea, TileArea
	case ColorModeMonochrome:
		return TileArea / 8, TileArea / 8
	}
	return 0, 0
}

// IsMonochrome reports whether planes are 1-bit packed.
func (p *PixelPacking) IsMonochrome() bool { return p.Monochrome != 0 }

// Mode recovers the colour mode from the channel layout.
func (p *PixelPacking) Mode() (ColorMode, error) {
	switch {
	case p.IsMonochrome():
		return ColorModeMonochrome, nil
	case p.BufferChannels == 4 && p.BufferBitDepth == 32:
		return ColorModeRGB, nil
	case p.BufferChannels == 1 && p.BufferBitDepth == 8:
		return ColorModeGray, nil
	}
	return 0, fmt.Errorf("%w: %d buffer channels at %d bits", ErrLayout, p.BufferChannels, p.BufferBitDepth)
}

// AlphaRegionSize is the number of inflated tile bytes holding alpha.
func (p *PixelPacking) AlphaRegionSize() int {
	return TileArea * int(p.AlphaChannels) * int(p.AlphaBitDepth) / 8
}

// ColorRegionSize is the number of inflated tile bytes holding colour.
func (p *PixelPacking) ColorRegionSize() int {
	return TileArea * int(p.BufferBitDepth) / 8
}

func (p *PixelPacking) fields() [packingFieldCount]int32 {
	return [packingFieldCount]int32{
		p.ChannelOrder,
		p.AlphaChannels,
		p.BufferChannels,
		p.TotalChannels,
		p.BufferBlockBytes,
		p.BufferChannelsDup,
		p.BufferBitDepth << depthShift,
		p.AlphaChannelsDup,
		p.AlphaBitDepth << depthShift,
		p.BlockArea,
		p.TileWidth,
		p.TileHeight,
		p.Reserved8a,
		p.Reserved8b,
		p.Monochrome,
		p.Reserved0,
	}
}

func packingFromFields(f [packingFieldCount]int32) (PixelPacking, error) {
	for _, i := range []int{6, 8} {
		if f[i]&(1<<depthShift-1) != 0 {
			return PixelPacking{}, fmt.Errorf("%w: packing field %d = %d is not a multiple of 32", ErrCorrupt, i, f[i])
		}
	}
	return PixelPacking{
		ChannelOrder:      f[0],
		AlphaChannels:     f[1],
		BufferChannels:    f[2],
		TotalChannels:     f[3],
		BufferBlockBytes:  f[4],
		BufferChannelsDup: f[5],
		BufferBitDepth:    f[6] >> depthShift,
		AlphaChannelsDup:  f[7],
		AlphaBitDepth:     f[8] >> depthShift,
		BlockArea:         f[9],
		TileWidth:         f[10],
		TileHeight:        f[11],
		Reserved8a:        f[12],
		Reserved8b:        f[13],
		Monochrome:        f[14],
		Reserved0:         f[15],
	}, nil
}
