// Package csf reads and writes the CSFCHUNK container: a fixed envelope
// holding external data chunks (tiled bitmaps or raw blobs), one embedded
// SQLite database and a footer.
//
// All integers in the envelope are big-endian. The file size and the database
// offset are not known until the whole file is written, so the Writer reserves
// them and patches them in Finalise.
package csf

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"slices"

	"golang.org/x/sys/unix"

	"github.com/samcharles93/clipkit/internal/binio"
	"github.com/samcharles93/clipkit/internal/logger"
)

// Chunk signatures. Each is exactly eight ASCII bytes.
const (
	SigFile     = "CSFCHUNK"
	SigHeader   = "CHNKHead"
	SigExternal = "CHNKExta"
	SigDatabase = "CHNKSQLi"
	SigFooter   = "CHNKFoot"
)

const (
	sigSize = 8

	// HeaderOffset is the file offset of the CHNKHead chunk.
	HeaderOffset = 24

	headerBodySize     = 40
	headerConst0       = 256
	headerConst1       = 16
	headerReservedSize = 16

	// fileSizeOffset is where the patched total file size lives.
	fileSizeOffset = 8
	// dbOffsetOffset is where the patched database offset lives:
	// CHNKHead signature, its int64 size, then two int64 constants.
	dbOffsetOffset = HeaderOffset + sigSize + 8 + 16
)

// ChunkHeader is the body of the CHNKHead chunk.
type ChunkHeader struct {
	Const0         int64
	Const1         int64
	DatabaseOffset int64
	Reserved       [headerReservedSize]byte

	// Extra holds header bytes past the known 40, if a file declares more.
	Extra []byte
}

// DefaultChunkHeader is the header written for new files. DatabaseOffset is
// filled in by the Writer.
func DefaultChunkHeader() ChunkHeader {
	return ChunkHeader{Const0: headerConst0, Const1: headerConst1}
}

// File is a decoded container. Chunk order is preserved.
type File struct {
	FileSize     int64
	HeaderOffset int64
	Header       ChunkHeader
	Chunks       []*ExternalChunk
	Database     []byte

	// DatabaseOffset is the offset of the CHNKSQLi signature as read.
	DatabaseOffset int64

	offsets map[string]int64
	byID    map[string]*ExternalChunk
}

// ReadOptions configures Read.
type ReadOptions struct {
	Logger logger.Logger
}

// Chunk returns the external chunk with the given id.
func (f *File) Chunk(id string) (*ExternalChunk, bool) {
	if f.byID == nil {
		f.index()
	}
	c, ok := f.byID[id]
	return c, ok
}

// Offsets returns the file offset of each external chunk's signature as read.
func (f *File) Offsets() map[string]int64 {
	out := make(map[string]int64, len(f.offsets))
	for k, v := range f.offsets {
		out[k] = v
	}
	return out
}

// AddChunk appends c. An existing chunk with the same id is replaced in place.
func (f *File) AddChunk(c *ExternalChunk) {
	if f.byID == nil {
		f.index()
	}
	if _, ok := f.byID[c.ID]; ok {
		for i := range f.Chunks {
			if f.Chunks[i].ID == c.ID {
				f.Chunks[i] = c
			}
		}
	} else {
		f.Chunks = append(f.Chunks, c)
	}
	f.byID[c.ID] = c
}

// RemoveChunk drops the chunk with the given id and reports whether it was
// present.
func (f *File) RemoveChunk(id string) bool {
	if f.byID == nil {
		f.index()
	}
	if _, ok := f.byID[id]; !ok {
		return false
	}
	delete(f.byID, id)
	delete(f.offsets, id)
	f.Chunks = slices.DeleteFunc(f.Chunks, func(c *ExternalChunk) bool { return c.ID == id })
	return true
}

func (f *File) index() {
	f.byID = make(map[string]*ExternalChunk, len(f.Chunks))
	for _, c := range f.Chunks {
		f.byID[c.ID] = c
	}
}

// Read decodes a container from rs.
func Read(rs io.ReadSeeker) (*File, error) {
	return ReadWithOptions(rs, ReadOptions{})
}

// Parse decodes a container held in memory.
func Parse(data []byte) (*File, error) {
	return ReadWithOptions(bytes.NewReader(data), ReadOptions{})
}

// ReadWithOptions decodes a container from rs. Any signature or size mismatch
// aborts the read with a *FormatError.
func ReadWithOptions(rs io.ReadSeeker, opts ReadOptions) (*File, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	r, err := binio.NewReader(rs)
	if err != nil {
		return nil, err
	}
	f := &File{offsets: make(map[string]int64)}

	if err := expectSig(r, SigFile); err != nil {
		return nil, err
	}
	f.FileSize, _ = r.Int64(binio.BE)
	f.HeaderOffset, _ = r.Int64(binio.BE)
	if err := r.Err(); err != nil {
		return nil, formatErr(SigFile, r.Pos(), err)
	}
	if f.FileSize != r.Size() {
		return nil, formatErrf(SigFile, fileSizeOffset, ErrSizeMismatch, "recorded file size %d, actual %d", f.FileSize, r.Size())
	}
	if f.HeaderOffset < int64(r.Pos()) || f.HeaderOffset >= r.Size() {
		return nil, formatErrf(SigFile, fileSizeOffset+8, ErrCorrupt, "header offset %d", f.HeaderOffset)
	}
	if err := r.Seek(f.HeaderOffset); err != nil {
		return nil, formatErr(SigFile, f.HeaderOffset, err)
	}

	if err := readHeader(r, &f.Header); err != nil {
		return nil, err
	}

	for {
		off := r.Pos()
		sig, err := r.Peek(sigSize)
		if err != nil {
			return nil, formatErr(SigExternal, off, err)
		}
		if string(sig) == SigDatabase {
			break
		}
		if string(sig) != SigExternal {
			return nil, formatErrf(SigExternal, off, ErrBadSignature, "got %q, want %q or %q", sig, SigExternal, SigDatabase)
		}
		_ = r.Skip(sigSize)
		c, err := readExternal(r, off)
		if err != nil {
			return nil, err
		}
		if _, dup := f.offsets[c.ID]; dup {
			return nil, formatErrf(SigExternal, off, ErrCorrupt, "duplicate chunk id %q", c.ID)
		}
		if c.Raw != nil {
			log.Debug("external chunk holds raw data", "id", c.ID, "bytes", len(c.Raw))
		}
		f.Chunks = append(f.Chunks, c)
		f.offsets[c.ID] = off
	}

	f.DatabaseOffset = r.Pos()
	if f.Header.DatabaseOffset != f.DatabaseOffset {
		return nil, formatErrf(SigHeader, dbOffsetOffset, ErrSizeMismatch, "recorded database offset %d, actual %d", f.Header.DatabaseOffset, f.DatabaseOffset)
	}
	if err := expectSig(r, SigDatabase); err != nil {
		return nil, err
	}
	dbSize, err := r.Int64(binio.BE)
	if err != nil {
		return nil, formatErr(SigDatabase, r.Pos(), err)
	}
	if dbSize < 0 || dbSize > r.Remaining() {
		return nil, formatErrf(SigDatabase, f.DatabaseOffset, ErrCorrupt, "database size %d exceeds %d remaining bytes", dbSize, r.Remaining())
	}
	if f.Database, err = r.ReadN(int(dbSize)); err != nil {
		return nil, formatErr(SigDatabase, r.Pos(), err)
	}

	if err := expectSig(r, SigFooter); err != nil {
		return nil, err
	}
	footOff := r.Pos()
	if _, err := r.Int64(binio.BE); err != nil {
		return nil, formatErr(SigFooter, footOff, err)
	}

	f.index()
	log.Debug("container read", "chunks", len(f.Chunks), "database_bytes", len(f.Database))
	return f, nil
}

func expectSig(r *binio.Reader, want string) error {
	off := r.Pos()
	got, err := r.ReadN(sigSize)
	if err != nil {
		return formatErr(want, off, err)
	}
	if string(got) != want {
		return formatErrf(want, off, ErrBadSignature, "got %q", got)
	}
	return nil
}

func readHeader(r *binio.Reader, h *ChunkHeader) error {
	if err := expectSig(r, SigHeader); err != nil {
		return err
	}
	off := r.Pos()
	size, err := r.Int64(binio.BE)
	if err != nil {
		return formatErr(SigHeader, off, err)
	}
	if size < headerBodySize || size > r.Remaining() {
		return formatErrf(SigHeader, off, ErrCorrupt, "header size %d", size)
	}
	h.Const0, _ = r.Int64(binio.BE)
	h.Const1, _ = r.Int64(binio.BE)
	h.DatabaseOffset, _ = r.Int64(binio.BE)
	reserved, _ := r.ReadN(headerReservedSize)
	copy(h.Reserved[:], reserved)
	if size > headerBodySize {
		h.Extra, _ = r.ReadN(int(size - headerBodySize))
	}
	if err := r.Err(); err != nil {
		return formatErr(SigHeader, off, err)
	}
	return nil
}

// Open reads the container at path. The file is mapped read-only when the
// platform allows it and read with ReadAt otherwise. Every returned slice is a
// copy, so the mapping is released before Open returns.
func Open(path string) (*File, error) {
	return OpenWithOptions(path, ReadOptions{})
}

// OpenWithOptions is Open with explicit read options.
func OpenWithOptions(path string, opts ReadOptions) (*File, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = fd.Close() }()

	stat, err := fd.Stat()
	if err != nil {
		return nil, err
	}
	size64 := stat.Size()
	if size64 < HeaderOffset || size64 > int64(int(^uint(0)>>1)) {
		return nil, fmt.Errorf("%w: file size %d", ErrCorrupt, size64)
	}
	size := int(size64)

	data, err := unix.Mmap(int(fd.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		f, parseErr := ReadWithOptions(bytes.NewReader(data), opts)
		_ = unix.Munmap(data)
		return f, parseErr
	}

	// Fallback path that does not require mmap support.
	data, err = readAllAt(fd, size)
	if err != nil {
		return nil, err
	}
	return ReadWithOptions(bytes.NewReader(data), opts)
}

// OpenReaderAt reads a container of the given size from a random-access reader.
func OpenReaderAt(ra io.ReaderAt, size int64) (*File, error) {
	return ReadWithOptions(io.NewSectionReader(ra, 0, size), ReadOptions{})
}

func readAllAt(r io.ReaderAt, size int) ([]byte, error) {
	out := make([]byte, size)
	var off int64
	for off < int64(size) {
		n, err := r.ReadAt(out[off:], off)
		off += int64(n)
		if err == nil {
			continue
		}
		if err == io.EOF && off == int64(size) {
			break
		}
		return nil, err
	}
	return out, nil
}
