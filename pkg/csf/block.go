package csf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/samcharles93/clipkit/internal/binio"
)

// Block record tags. Every tag is a UTF-16BE string with an int32 code unit count.
const (
	TagBlockBegin    = "BlockDataBeginChunk"
	TagBlockEnd      = "BlockDataEndChunk"
	TagBlockStatus   = "BlockStatus"
	TagBlockChecksum = "BlockCheckSum"
)

const (
	blockReservedSize = 12

	// AbsentBlockRecordSize is the on-disk size of a block record without a payload.
	AbsentBlockRecordSize = 104
	// PresentBlockOverhead is the size of a block record minus its payload.
	PresentBlockOverhead = 112

	defaultStatus          = 1
	defaultTableUnknown0   = 12
	defaultTableUnknown1   = 4
	payloadLengthFieldSize = 8
)

// Block is one compressed 256x256 tile.
//
// When Present is false the tile renders as the bitmap's fill colour and Data
// is never written.
type Block struct {
	Index    int32
	Reserved [blockReservedSize]byte
	Present  bool
	Data     []byte
}

// RecordSize returns the number of bytes the block occupies on disk,
// including its leading size field.
func (b *Block) RecordSize() int {
	if !b.Present {
		return AbsentBlockRecordSize
	}
	return PresentBlockOverhead + len(b.Data)
}

// PayloadLength is the doubly encoded payload length that precedes block data:
// len+4 as big-endian int32 followed by len as little-endian int32.
type PayloadLength struct {
	n int32
}

// NewPayloadLength returns the length header for a payload of n bytes.
func NewPayloadLength(n int) (PayloadLength, error) {
	if n < 0 || int64(n)+4 > int64(^uint32(0)>>1) {
		return PayloadLength{}, fmt.Errorf("csf: payload length %d out of range", n)
	}
	return PayloadLength{n: int32(n)}, nil
}

// ParsePayloadLength validates the paired fields. The big-endian value must be
// exactly four more than the little-endian one.
func ParsePayloadLength(b []byte) (PayloadLength, error) {
	if len(b) != payloadLengthFieldSize {
		return PayloadLength{}, fmt.Errorf("%w: payload length field is %d bytes", ErrCorrupt, len(b))
	}
	be := int32(binary.BigEndian.Uint32(b[0:4]))
	le := int32(binary.LittleEndian.Uint32(b[4:8]))
	if le < 0 || be != le+4 {
		return PayloadLength{}, fmt.Errorf("%w: payload length big-endian %d, little-endian %d", ErrSizeMismatch, be, le)
	}
	return PayloadLength{n: le}, nil
}

// Len returns the payload length in bytes.
func (p PayloadLength) Len() int { return int(p.n) }

// AppendBinary appends the 8-byte encoding of p to b.
func (p PayloadLength) AppendBinary(b []byte) ([]byte, error) {
	b = binary.BigEndian.AppendUint32(b, uint32(p.n+4))
	b = binary.LittleEndian.AppendUint32(b, uint32(p.n))
	return b, nil
}

// TableHeader holds the two unexplained fields that surround the count of a
// status or checksum table. New tables use 12 and 4.
type TableHeader struct {
	Unknown0 int32
	Unknown1 int32
}

// DefaultTableHeader is the header written for tables created from scratch.
var DefaultTableHeader = TableHeader{Unknown0: defaultTableUnknown0, Unknown1: defaultTableUnknown1}

// BlockData is the ordered tile list of one bitmap plus its trailing status and
// checksum tables.
//
// Checksums are carried through unchanged. The algorithm that produces them is
// unknown, so blocks created by this package get a checksum of 0.
type BlockData struct {
	Blocks         []Block
	Status         []int32
	Checksums      []uint32
	StatusHeader   TableHeader
	ChecksumHeader TableHeader

	// Trailing holds bytes after the checksum table, if any.
	Trailing []byte
}

// NewBlockData returns an empty BlockData sized for n tiles, with every block
// absent and the tables at their defaults.
func NewBlockData(n int) *BlockData {
	bd := &BlockData{
		Blocks:         make([]Block, n),
		Status:         make([]int32, n),
		Checksums:      make([]uint32, n),
		StatusHeader:   DefaultTableHeader,
		ChecksumHeader: DefaultTableHeader,
	}
	for i := range bd.Blocks {
		bd.Blocks[i].Index = int32(i)
		bd.Status[i] = defaultStatus
	}
	return bd
}

// Block returns the tile at grid index i, or nil if i is out of range.
func (bd *BlockData) Block(i int) *Block {
	if i < 0 || i >= len(bd.Blocks) {
		return nil
	}
	return &bd.Blocks[i]
}

// ParseBlockData decodes a BlockData region. It returns ErrNotBlockData when the
// first record is not a block record or a known table; any later framing
// problem is a *FormatError.
func ParseBlockData(b []byte) (*BlockData, error) {
	return parseBlockData(b, 0)
}

func parseBlockData(b []byte, base int64) (*BlockData, error) {
	r := binio.NewBytesReader(b)
	bd := &BlockData{}
	first := true

	for {
		start := r.Pos()
		if r.Remaining() == 0 {
			if first {
				return nil, ErrNotBlockData
			}
			return nil, formatErrf(TagBlockChecksum, base+start, ErrCorrupt, "block data ended before checksum table")
		}

		head, err := r.Peek(4)
		if err != nil {
			if first {
				return nil, ErrNotBlockData
			}
			return nil, formatErr(TagBlockBegin, base+start, err)
		}
		lead := int32(binary.BigEndian.Uint32(head))

		var tag string
		if lead == int32(len(TagBlockStatus)) || lead == int32(len(TagBlockChecksum)) {
			tag, err = r.Tag()
		} else {
			// Block records lead with their total size; the tag follows.
			if err = r.Skip(4); err == nil {
				tag, err = r.Tag()
			}
		}
		if err != nil || !knownRecordTag(tag) {
			if first {
				return nil, ErrNotBlockData
			}
			if err == nil {
				err = fmt.Errorf("%w: unexpected record tag %q", ErrBadSignature, tag)
			}
			return nil, formatErr("BlockData", base+start, err)
		}
		first = false

		switch tag {
		case TagBlockBegin:
			blk, err := readBlockBody(r, base, start, lead)
			if err != nil {
				return nil, err
			}
			bd.Blocks = append(bd.Blocks, blk)

		case TagBlockStatus:
			hdr, vals, err := readTable(r, base, TagBlockStatus, len(bd.Blocks))
			if err != nil {
				return nil, err
			}
			bd.StatusHeader = hdr
			bd.Status = vals

		case TagBlockChecksum:
			hdr, vals, err := readTable(r, base, TagBlockChecksum, len(bd.Blocks))
			if err != nil {
				return nil, err
			}
			bd.ChecksumHeader = hdr
			bd.Checksums = make([]uint32, len(vals))
			for i, v := range vals {
				bd.Checksums[i] = uint32(v)
			}
			if r.Remaining() > 0 {
				bd.Trailing, _ = r.ReadN(int(r.Remaining()))
			}
			return bd, nil

		default:
			return nil, formatErrf("BlockData", base+start, ErrBadSignature, "unexpected record tag %q", tag)
		}
	}
}

func knownRecordTag(tag string) bool {
	switch tag {
	case TagBlockBegin, TagBlockStatus, TagBlockChecksum:
		return true
	}
	return false
}

// readBlockBody reads the rest of a block record after its begin tag.
func readBlockBody(r *binio.Reader, base, start int64, recordSize int32) (Block, error) {
	var blk Block

	index, err := r.Int32(binio.BE)
	if err != nil {
		return blk, formatErr(TagBlockBegin, base+r.Pos(), err)
	}
	blk.Index = index

	reserved, err := r.ReadN(blockReservedSize)
	if err != nil {
		return blk, formatErr(TagBlockBegin, base+r.Pos(), err)
	}
	copy(blk.Reserved[:], reserved)

	present, err := r.Int32(binio.BE)
	if err != nil {
		return blk, formatErr(TagBlockBegin, base+r.Pos(), err)
	}
	blk.Present = present != 0

	if blk.Present {
		lenOff := r.Pos()
		raw, err := r.ReadN(payloadLengthFieldSize)
		if err != nil {
			return blk, formatErr(TagBlockBegin, base+lenOff, err)
		}
		pl, err := ParsePayloadLength(raw)
		if err != nil {
			return blk, formatErr(TagBlockBegin, base+lenOff, err)
		}
		blk.Data, err = r.ReadN(pl.Len())
		if err != nil {
			return blk, formatErr(TagBlockBegin, base+r.Pos(), err)
		}
	}

	endOff := r.Pos()
	if err := r.ExpectTag(TagBlockEnd); err != nil {
		return blk, formatErr(TagBlockEnd, base+endOff, fmt.Errorf("%w: %w", ErrBadSignature, err))
	}

	if got := r.Pos() - start; got != int64(recordSize) {
		return blk, formatErrf(TagBlockBegin, base+start, ErrSizeMismatch, "block %d record size %d, read %d", blk.Index, recordSize, got)
	}
	return blk, nil
}

// readTable reads a status or checksum table after its tag. The stored count
// must equal the number of blocks read so far.
func readTable(r *binio.Reader, base int64, tag string, blocks int) (TableHeader, []int32, error) {
	var hdr TableHeader
	off := r.Pos()

	hdr.Unknown0, _ = r.Int32(binio.BE)
	count, _ := r.Int32(binio.BE)
	hdr.Unknown1, _ = r.Int32(binio.BE)
	if err := r.Err(); err != nil {
		return hdr, nil, formatErr(tag, base+off, err)
	}
	if int(count) != blocks {
		return hdr, nil, formatErrf(tag, base+off, ErrSizeMismatch, "table count %d, blocks %d", count, blocks)
	}

	vals := make([]int32, count)
	for i := range vals {
		vals[i], _ = r.Int32(binio.BE)
	}
	if err := r.Err(); err != nil {
		return hdr, nil, formatErr(tag, base+off, err)
	}
	return hdr, vals, nil
}

// Bytes encodes bd. Missing status entries default to 1 and missing checksums
// to 0; a zero TableHeader is replaced by DefaultTableHeader.
func (bd *BlockData) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := bd.encode(binio.NewBufferWriter(&buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Size returns the encoded length of bd without encoding it.
func (bd *BlockData) Size() int {
	n := 0
	for i := range bd.Blocks {
		n += bd.Blocks[i].RecordSize()
	}
	table := 4*3 + 4*len(bd.Blocks)
	n += binio.TagSize(TagBlockStatus) + table
	n += binio.TagSize(TagBlockChecksum) + table
	return n + len(bd.Trailing)
}

func (bd *BlockData) encode(w *binio.Writer) error {
	for i := range bd.Blocks {
		if err := writeBlock(w, &bd.Blocks[i]); err != nil {
			return err
		}
	}

	status := make([]int32, len(bd.Blocks))
	for i := range status {
		status[i] = defaultStatus
		if i < len(bd.Status) {
			status[i] = bd.Status[i]
		}
	}
	if err := writeTable(w, TagBlockStatus, orDefault(bd.StatusHeader), status); err != nil {
		return err
	}

	sums := make([]int32, len(bd.Blocks))
	for i := range sums {
		if i < len(bd.Checksums) {
			sums[i] = int32(bd.Checksums[i])
		}
	}
	if err := writeTable(w, TagBlockChecksum, orDefault(bd.ChecksumHeader), sums); err != nil {
		return err
	}

	if len(bd.Trailing) > 0 {
		_, _ = w.Write(bd.Trailing)
	}
	return w.Err()
}

func orDefault(h TableHeader) TableHeader {
	if h == (TableHeader{}) {
		return DefaultTableHeader
	}
	return h
}

func writeBlock(w *binio.Writer, b *Block) error {
	_, _ = w.Int32(binio.BE, int32(b.RecordSize()))
	_, _ = w.WriteTag(TagBlockBegin)
	_, _ = w.Int32(binio.BE, b.Index)
	_, _ = w.Write(b.Reserved[:])
	if !b.Present {
		_, _ = w.Int32(binio.BE, 0)
	} else {
		_, _ = w.Int32(binio.BE, 1)
		pl, err := NewPayloadLength(len(b.Data))
		if err != nil {
			return err
		}
		hdr, _ := pl.AppendBinary(nil)
		_, _ = w.Write(hdr)
		_, _ = w.Write(b.Data)
	}
	_, _ = w.WriteTag(TagBlockEnd)
	return w.Err()
}

func writeTable(w *binio.Writer, tag string, hdr TableHeader, vals []int32) error {
	_, _ = w.WriteTag(tag)
	_, _ = w.Int32(binio.BE, hdr.Unknown0)
	_, _ = w.Int32(binio.BE, int32(len(vals)))
	_, _ = w.Int32(binio.BE, hdr.Unknown1)
	for _, v := range vals {
		_, _ = w.Int32(binio.BE, v)
	}
	return w.Err()
}

// IsNotBlockData reports whether err means the region holds raw bytes.
func IsNotBlockData(err error) bool { return errors.Is(err, ErrNotBlockData) }
