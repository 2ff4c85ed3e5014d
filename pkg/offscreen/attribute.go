package offscreen

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"

	"github.com/samcharles93/clipkit/internal/binio"
)

var (
	ErrCorrupt = errors.New("offscreen: corrupt attribute")
	ErrLayout  = errors.New("offscreen: inconsistent pixel packing")
)

// Section tags in attribute order.
const (
	TagParameter = "Parameter"
	TagInitColor = "InitColor"
	TagBlockSize = "BlockSize"
)

const (
	headerSize      = 16
	initColorTail   = 4
	blockSizeMarker = 4

	// absentRecordSize matches csf.AbsentBlockRecordSize.
	absentRecordSize = 104
)

// Header is the four leading int32 fields. Parsed headers are written back
// unchanged; a zero Header is computed from the section sizes on encode.
type Header struct {
	HeaderSize    int32
	ParameterSize int32
	ExtraSize     int32
	Unknown       int32
}

// Attribute is a decoded offscreen attribute blob.
type Attribute struct {
	Header Header

	Width      int32
	Height     int32
	GridWidth  int32
	GridHeight int32
	Packing    PixelPacking

	InitReserved0 int32
	// Fill is the default colour packed as 0xAARRGGBB.
	Fill          uint32
	InitReserved1 int32
	OtherColors   []int32
	InitReserved2 int32

	BlockSizeReserved0 int32
	BlockSizeReserved1 int32
	// BlockSizes is advisory; decoders never rely on it.
	BlockSizes []int32

	// Trailing holds bytes after the BlockSize section, if any.
	Trailing []byte
}

// New derives a fresh attribute for a width x height bitmap in mode. Every
// tile starts absent, so block sizes are set to the absent record size.
func New(mode ColorMode, width, height int) (*Attribute, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("offscreen: invalid bitmap size %dx%d", width, height)
	}
	p, err := NewPixelPacking(mode)
	if err != nil {
		return nil, err
	}
	gw := (width + TileWidth - 1) / TileWidth
	gh := (height + TileHeight - 1) / TileHeight

	a := &Attribute{
		Width:              int32(width),
		Height:             int32(height),
		GridWidth:          int32(gw),
		GridHeight:         int32(gh),
		Packing:            p,
		InitReserved2:      initColorTail,
		BlockSizeReserved1: blockSizeMarker,
		BlockSizes:         make([]int32, gw*gh),
	}
	for i := range a.BlockSizes {
		a.BlockSizes[i] = absentRecordSize
	}
	a.Header = a.computeHeader()
	return a, nil
}

// TileCount is the number of tiles in the grid.
func (a *Attribute) TileCount() int { return int(a.GridWidth) * int(a.GridHeight) }

// Mode recovers the colour mode.
func (a *Attribute) Mode() (ColorMode, error) { return a.Packing.Mode() }

// FillColor returns Fill as a non-premultiplied colour.
func (a *Attribute) FillColor() color.NRGBA {
	return color.NRGBA{
		A: uint8(a.Fill >> 24),
		R: uint8(a.Fill >> 16),
		G: uint8(a.Fill >> 8),
		B: uint8(a.Fill),
	}
}

// SetFillColor packs c into Fill.
func (a *Attribute) SetFillColor(c color.NRGBA) {
	a.Fill = uint32(c.A)<<24 | uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// Validate checks grid and packing consistency.
func (a *Attribute) Validate() error {
	if a.Width <= 0 || a.Height <= 0 {
		return fmt.Errorf("%w: bitmap size %dx%d", ErrLayout, a.Width, a.Height)
	}
	gw := (a.Width + TileWidth - 1) / TileWidth
	gh := (a.Height + TileHeight - 1) / TileHeight
	if a.GridWidth < gw || a.GridHeight < gh {
		return fmt.Errorf("%w: grid %dx%d cannot cover %dx%d", ErrLayout, a.GridWidth, a.GridHeight, a.Width, a.Height)
	}
	return a.Packing.Validate()
}

// Parse decodes an attribute blob.
func Parse(b []byte) (*Attribute, error) {
	r := binio.NewBytesReader(b)
	a := &Attribute{}

	a.Header.HeaderSize, _ = r.Int32(binio.BE)
	a.Header.ParameterSize, _ = r.Int32(binio.BE)
	a.Header.ExtraSize, _ = r.Int32(binio.BE)
	a.Header.Unknown, _ = r.Int32(binio.BE)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrCorrupt, err)
	}

	if err := r.ExpectTag(TagParameter); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	a.Width, _ = r.Int32(binio.BE)
	a.Height, _ = r.Int32(binio.BE)
	a.GridWidth, _ = r.Int32(binio.BE)
	a.GridHeight, _ = r.Int32(binio.BE)
	var fields [packingFieldCount]int32
	for i := range fields {
		fields[i], _ = r.Int32(binio.BE)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, TagParameter, err)
	}
	p, err := packingFromFields(fields)
	if err != nil {
		return nil, err
	}
	a.Packing = p

	if err := r.ExpectTag(TagInitColor); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	a.InitReserved0, _ = r.Int32(binio.BE)
	a.Fill, _ = r.Uint32(binio.BE)
	a.InitReserved1, _ = r.Int32(binio.BE)
	others, _ := r.Int32(binio.BE)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, TagInitColor, err)
	}
	if others < 0 || int64(others)*4 > r.Remaining() {
		return nil, fmt.Errorf("%w: %s: other colour count %d", ErrCorrupt, TagInitColor, others)
	}
	if others > 0 {
		a.OtherColors = make([]int32, others)
		for i := range a.OtherColors {
			a.OtherColors[i], _ = r.Int32(binio.BE)
		}
	}
	a.InitReserved2, _ = r.Int32(binio.BE)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, TagInitColor, err)
	}

	if err := r.ExpectTag(TagBlockSize); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	a.BlockSizeReserved0, _ = r.Int32(binio.BE)
	count, _ := r.Int32(binio.BE)
	a.BlockSizeReserved1, _ = r.Int32(binio.BE)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, TagBlockSize, err)
	}
	if count < 0 || int64(count)*4 > r.Remaining() {
		return nil, fmt.Errorf("%w: %s: block count %d", ErrCorrupt, TagBlockSize, count)
	}
	a.BlockSizes = make([]int32, count)
	for i := range a.BlockSizes {
		a.BlockSizes[i], _ = r.Int32(binio.BE)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, TagBlockSize, err)
	}

	if r.Remaining() > 0 {
		a.Trailing, _ = r.ReadN(int(r.Remaining()))
	}
	return a, nil
}

// Bytes encodes a.
func (a *Attribute) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	w := binio.NewBufferWriter(&buf)

	h := a.Header
	if h == (Header{}) {
		h = a.computeHeader()
	}
	_, _ = w.Int32(binio.BE, h.HeaderSize)
	_, _ = w.Int32(binio.BE, h.ParameterSize)
	_, _ = w.Int32(binio.BE, h.ExtraSize)
	_, _ = w.Int32(binio.BE, h.Unknown)

	a.writeParameter(w)
	a.writeExtra(w)
	if len(a.Trailing) > 0 {
		_, _ = w.Write(a.Trailing)
	}
	if err := w.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (a *Attribute) writeParameter(w *binio.Writer) {
	_, _ = w.WriteTag(TagParameter)
	_, _ = w.Int32(binio.BE, a.Width)
	_, _ = w.Int32(binio.BE, a.Height)
	_, _ = w.Int32(binio.BE, a.GridWidth)
	_, _ = w.Int32(binio.BE, a.GridHeight)
	for _, v := range a.Packing.fields() {
		_, _ = w.Int32(binio.BE, v)
	}
}

func (a *Attribute) writeExtra(w *binio.Writer) {
	_, _ = w.WriteTag(TagInitColor)
	_, _ = w.Int32(binio.BE, a.InitReserved0)
	_, _ = w.Uint32(binio.BE, a.Fill)
	_, _ = w.Int32(binio.BE, a.InitReserved1)
	_, _ = w.Int32(binio.BE, int32(len(a.OtherColors)))
	for _, c := range a.OtherColors {
		_, _ = w.Int32(binio.BE, c)
	}
	_, _ = w.Int32(binio.BE, a.InitReserved2)

	_, _ = w.WriteTag(TagBlockSize)
	_, _ = w.Int32(binio.BE, a.BlockSizeReserved0)
	_, _ = w.Int32(binio.BE, int32(len(a.BlockSizes)))
	_, _ = w.Int32(binio.BE, a.BlockSizeReserved1)
	for _, s := range a.BlockSizes {
		_, _ = w.Int32(binio.BE, s)
	}
}

// computeHeader sizes the Parameter section and everything after it.
func (a *Attribute) computeHeader() Header {
	param := binio.TagSize(TagParameter) + 4*4 + 4*packingFieldCount
	extra := binio.TagSize(TagInitColor) + 4*5 + 4*len(a.OtherColors) +
		binio.TagSize(TagBlockSize) + 4*3 + 4*len(a.BlockSizes)
	return Header{
		HeaderSize:    headerSize,
		ParameterSize: int32(param),
		ExtraSize:     int32(extra),
	}
}
