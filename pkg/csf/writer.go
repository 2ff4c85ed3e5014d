package csf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"sync"

	"github.com/samcharles93/clipkit/internal/binio"
)

type writerState uint8

const (
	stateChunks writerState = iota
	stateDatabase
	stateFinalised
)

// Writer builds a container in a streaming fashion.
//
// The envelope and header are written up front with placeholder sizes. External
// chunks follow in call order; their offsets are recorded so the database layer
// can reference them. WriteDatabase may be called once, after the last chunk,
// and Finalise writes the footer and patches the file size.
type Writer struct {
	bw      *binio.Writer
	state   writerState
	offsets map[string]int64
	start   int64

	mu sync.Mutex
}

// NewWriter starts a container at the current position of ws using the
// default chunk header.
func NewWriter(ws io.WriteSeeker) (*Writer, error) {
	if ws == nil {
		return nil, errors.New("csf: nil writer")
	}
	bw, err := binio.NewWriter(ws)
	if err != nil {
		return nil, err
	}
	return newWriter(bw, DefaultChunkHeader())
}

func newWriter(bw *binio.Writer, hdr ChunkHeader) (*Writer, error) {
	w := &Writer{bw: bw, offsets: make(map[string]int64), start: bw.Pos()}

	_, _ = bw.Write([]byte(SigFile))
	_, _ = bw.Int64(binio.BE, 0)
	_, _ = bw.Int64(binio.BE, HeaderOffset)

	_, _ = bw.Write([]byte(SigHeader))
	_, _ = bw.Int64(binio.BE, int64(headerBodySize+len(hdr.Extra)))
	_, _ = bw.Int64(binio.BE, hdr.Const0)
	_, _ = bw.Int64(binio.BE, hdr.Const1)
	_, _ = bw.Int64(binio.BE, 0)
	_, _ = bw.Write(hdr.Reserved[:])
	if len(hdr.Extra) > 0 {
		_, _ = bw.Write(hdr.Extra)
	}
	if err := bw.Err(); err != nil {
		return nil, err
	}
	return w, nil
}

// WriteExternal appends c and returns the offset of its signature relative to
// the start of the container.
func (w *Writer) WriteExternal(c *ExternalChunk) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != stateChunks {
		return 0, errors.New("csf: external chunks must precede the database")
	}
	if c == nil {
		return 0, errors.New("csf: nil external chunk")
	}
	if _, ok := w.offsets[c.ID]; ok {
		return 0, fmt.Errorf("csf: duplicate external chunk id %q", c.ID)
	}

	off := w.bw.Pos() - w.start
	if err := writeExternal(w.bw, c); err != nil {
		return 0, fmt.Errorf("csf: write external chunk %s: %w", c.ID, err)
	}
	w.offsets[c.ID] = off
	return off, nil
}

// Offsets returns the offset of every external chunk written so far.
func (w *Writer) Offsets() map[string]int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return maps.Clone(w.offsets)
}

// WriteDatabase writes the database chunk and patches its offset into the header.
func (w *Writer) WriteDatabase(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != stateChunks {
		return errors.New("csf: database already written")
	}
	off := w.bw.Pos() - w.start

	_, _ = w.bw.Write([]byte(SigDatabase))
	_, _ = w.bw.Int64(binio.BE, int64(len(data)))
	_, _ = w.bw.Write(data)
	if err := w.bw.Err(); err != nil {
		return fmt.Errorf("csf: write database: %w", err)
	}
	if err := w.bw.PatchInt64(binio.BE, w.start+dbOffsetOffset, off); err != nil {
		return fmt.Errorf("csf: patch database offset: %w", err)
	}
	w.state = stateDatabase
	return nil
}

// Finalise writes the footer and patches the total file size. It returns the
// number of bytes in the container.
func (w *Writer) Finalise() (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case stateChunks:
		return 0, errors.New("csf: database not written")
	case stateFinalised:
		return 0, errors.New("csf: writer already finalised")
	}

	_, _ = w.bw.Write([]byte(SigFooter))
	_, _ = w.bw.Int64(binio.BE, 0)
	if err := w.bw.Err(); err != nil {
		return 0, fmt.Errorf("csf: write footer: %w", err)
	}
	size := w.bw.Pos() - w.start
	if err := w.bw.PatchInt64(binio.BE, w.start+fileSizeOffset, size); err != nil {
		return 0, fmt.Errorf("csf: patch file size: %w", err)
	}
	w.state = stateFinalised
	return size, nil
}

// WriteOptions configures File.Write.
type WriteOptions struct {
	// Database, when set, produces the database bytes once every external
	// chunk has been written. It receives the chunk offsets so it can store
	// them. When nil, File.Database is written unchanged.
	Database func(offsets map[string]int64) ([]byte, error)
}

// Write serializes f to w in chunk order.
func (f *File) Write(w io.Writer, opts WriteOptions) (int64, error) {
	var buf bytes.Buffer
	cw, err := newWriter(binio.NewBufferWriter(&buf), f.headerForWrite())
	if err != nil {
		return 0, err
	}
	for _, c := range f.Chunks {
		if _, err := cw.WriteExternal(c); err != nil {
			return 0, err
		}
	}

	db := f.Database
	if opts.Database != nil {
		if db, err = opts.Database(cw.Offsets()); err != nil {
			return 0, fmt.Errorf("csf: build database: %w", err)
		}
	}
	if err := cw.WriteDatabase(db); err != nil {
		return 0, err
	}
	if _, err := cw.Finalise(); err != nil {
		return 0, err
	}

	n, err := w.Write(buf.Bytes())
	if err == nil && n != buf.Len() {
		err = &binio.ShortWriteError{Offset: int64(n), Want: int64(buf.Len()), Got: int64(n)}
	}
	return int64(n), err
}

// WriteTo implements io.WriterTo.
func (f *File) WriteTo(w io.Writer) (int64, error) {
	return f.Write(w, WriteOptions{})
}

// Bytes returns the encoded container.
func (f *File) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (f *File) headerForWrite() ChunkHeader {
	h := f.Header
	if h.Const0 == 0 && h.Const1 == 0 {
		d := DefaultChunkHeader()
		h.Const0, h.Const1 = d.Const0, d.Const1
	}
	return h
}
