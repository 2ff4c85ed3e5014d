package csf

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/samcharles93/clipkit/internal/binio"
)

// ExternalIDPrefix starts every generated external chunk id.
const ExternalIDPrefix = "extrnlid"

// ExternalChunk is a CHNKExta record. Exactly one of Blocks and Raw is set:
// bitmap storage decodes to Blocks, anything else (vector strokes, swatches)
// is kept verbatim in Raw.
type ExternalChunk struct {
	ID     string
	Blocks *BlockData
	Raw    []byte
}

// NewBlockChunk returns a chunk holding bd under a freshly generated id.
func NewBlockChunk(bd *BlockData) (*ExternalChunk, error) {
	id, err := NewExternalID()
	if err != nil {
		return nil, err
	}
	return &ExternalChunk{ID: id, Blocks: bd}, nil
}

// IsBlockData reports whether the chunk holds tiled bitmap data.
func (c *ExternalChunk) IsBlockData() bool { return c.Blocks != nil }

// Body returns the encoded chunk body.
func (c *ExternalChunk) Body() ([]byte, error) {
	switch {
	case c.Blocks != nil && c.Raw != nil:
		return nil, fmt.Errorf("csf: external chunk %s has both block data and raw bytes", c.ID)
	case c.Blocks != nil:
		return c.Blocks.Bytes()
	default:
		return c.Raw, nil
	}
}

// NewExternalID returns "extrnlid" followed by the upper-case hex MD5 of the
// current time in nanoseconds and 30 to 1000 random bytes.
func NewExternalID() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000-30+1))
	if err != nil {
		return "", err
	}
	salt := make([]byte, 30+int(n.Int64()))
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	h := md5.New()
	fmt.Fprintf(h, "%d", time.Now().UnixNano())
	h.Write(salt)
	return ExternalIDPrefix + strings.ToUpper(hex.EncodeToString(h.Sum(nil))), nil
}

// readExternal reads a chunk whose signature has already been consumed.
// sigOff is the offset of that signature.
func readExternal(r *binio.Reader, sigOff int64) (*ExternalChunk, error) {
	total, _ := r.Int64(binio.BE)
	idLen, _ := r.Int64(binio.BE)
	if err := r.Err(); err != nil {
		return nil, formatErr(SigExternal, sigOff, err)
	}
	if idLen < 0 || idLen > r.Remaining() {
		return nil, formatErrf(SigExternal, sigOff, ErrCorrupt, "id length %d", idLen)
	}
	id, err := r.ReadN(int(idLen))
	if err != nil {
		return nil, formatErr(SigExternal, sigOff, err)
	}

	sizeOff := r.Pos()
	bodySize, err := r.Int64(binio.BE)
	if err != nil {
		return nil, formatErr(SigExternal, sizeOff, err)
	}
	if bodySize != total-idLen-16 {
		return nil, formatErrf(SigExternal, sizeOff, ErrSizeMismatch, "body size %d, total %d with id length %d", bodySize, total, idLen)
	}
	if bodySize < 0 || bodySize > r.Remaining() {
		return nil, formatErrf(SigExternal, sizeOff, ErrCorrupt, "body size %d exceeds %d remaining bytes", bodySize, r.Remaining())
	}

	bodyOff := r.Pos()
	body, err := r.ReadN(int(bodySize))
	if err != nil {
		return nil, formatErr(SigExternal, bodyOff, err)
	}

	c := &ExternalChunk{ID: string(id)}
	bd, err := parseBlockData(body, bodyOff)
	switch {
	case err == nil:
		c.Blocks = bd
	case errors.Is(err, ErrNotBlockData):
		c.Raw = body
	default:
		return nil, err
	}
	return c, nil
}

// writeExternal writes the chunk and back-patches both of its size fields from
// the body length actually written.
func writeExternal(w *binio.Writer, c *ExternalChunk) error {
	body, err := c.Body()
	if err != nil {
		return err
	}

	_, _ = w.Write([]byte(SigExternal))
	totalOff := w.Pos()
	_, _ = w.Int64(binio.BE, 0)
	_, _ = w.Int64(binio.BE, int64(len(c.ID)))
	_, _ = w.Write([]byte(c.ID))
	bodySizeOff := w.Pos()
	_, _ = w.Int64(binio.BE, 0)
	bodyStart := w.Pos()
	if _, err := w.Write(body); err != nil {
		return err
	}
	if err := w.Err(); err != nil {
		return err
	}

	bodyLen := w.Pos() - bodyStart
	if err := w.PatchInt64(binio.BE, totalOff, bodyLen+int64(len(c.ID))+16); err != nil {
		return err
	}
	return w.PatchInt64(binio.BE, bodySizeOff, bodyLen)
}
