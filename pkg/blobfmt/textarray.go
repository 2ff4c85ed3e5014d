package blobfmt

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/samcharles93/clipkit/internal/binio"
)

// StringArray is a text layer string list: an int32 count followed by count
// int32 length-prefixed UTF-8 strings.
type StringArray struct {
	Strings  []string
	Trailing []byte
}

// ParseStringArray decodes a string array column.
func ParseStringArray(b []byte, _ Options) (*StringArray, error) {
	d := newDec(b, "string array")
	end := int64(len(b))
	n := d.count(4, end)
	a := &StringArray{Strings: make([]string, 0, n)}
	for range n {
		a.Strings = append(a.Strings, d.str(binio.UTF8))
	}
	if err := d.failed(); err != nil {
		return nil, corrupt("string array", err)
	}
	a.Trailing = bytes.Clone(b[d.r.Pos():])
	return a, nil
}

// Bytes encodes the array.
func (a *StringArray) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	e := &enc{w: binio.NewBufferWriter(&buf)}
	e.i32(int32(len(a.Strings)))
	for _, s := range a.Strings {
		e.str(binio.UTF8, s)
	}
	e.raw(a.Trailing)
	if err := e.w.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TextAttributesArray holds one attribute blob per text object of a layer:
// an int32 count followed by count blobs, each framed by its own total.
type TextAttributesArray struct {
	Items    []*TextAttributes
	Trailing []byte
}

// ParseTextAttributesArray decodes an attribute array column.
func ParseTextAttributesArray(b []byte, opts Options) (*TextAttributesArray, error) {
	d := newDec(b, "text attribute array")
	end := int64(len(b))
	n := d.count(4, end)
	a := &TextAttributesArray{Items: make([]*TextAttributes, 0, n)}
	for i := range n {
		off := d.r.Pos()
		total := d.i32()
		if !d.ok() {
			break
		}
		if total < 4 || off+int64(total) > end {
			d.failf(off, "item %d total size %d overruns %d bytes", i, total, end-off)
			break
		}
		item, err := ParseTextAttributes(b[off:off+int64(total)], opts)
		if err != nil {
			return nil, fmt.Errorf("blobfmt: text attribute array item %d: %w", i, err)
		}
		a.Items = append(a.Items, item)
		d.bytes(int(total) - 4)
	}
	if err := d.failed(); err != nil {
		return nil, corrupt("text attribute array", err)
	}
	a.Trailing = bytes.Clone(b[d.r.Pos():])
	return a, nil
}

// Bytes encodes the array.
func (a *TextAttributesArray) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	e := &enc{w: binio.NewBufferWriter(&buf)}
	e.i32(int32(len(a.Items)))
	for i, item := range a.Items {
		b, err := item.Bytes()
		if err != nil {
			return nil, fmt.Errorf("blobfmt: text attribute array item %d: %w", i, err)
		}
		e.raw(b)
	}
	e.raw(a.Trailing)
	if err := e.w.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func corrupt(format string, err error) error {
	if errors.Is(err, ErrCorrupt) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrCorrupt, format, err)
}
