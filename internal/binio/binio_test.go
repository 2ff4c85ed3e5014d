package binio

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestShortReadRestoresPosition(t *testing.T) {
	t.Parallel()

	r := NewBytesReader([]byte{0, 0, 0, 7, 1, 2, 3})
	v, err := r.Int32(BE)
	if err != nil {
		t.Fatalf("int32: %v", err)
	}
	if v != 7 {
		t.Fatalf("int32: got %d want 7", v)
	}

	_, err = r.Int64(BE)
	if !errors.Is(err, ErrShortRead) {
		t.Fatalf("int64 on 3 bytes: got %v want ErrShortRead", err)
	}
	var sre *ShortReadError
	if !errors.As(err, &sre) {
		t.Fatalf("expected *ShortReadError, got %T", err)
	}
	if sre.Offset != 4 || sre.Want != 8 || sre.Got != 3 {
		t.Fatalf("short read detail: got %+v", *sre)
	}
	if r.Pos() != 4 {
		t.Fatalf("position after short read: got %d want 4", r.Pos())
	}
}

func TestTruncatedPrimitivesAllFail(t *testing.T) {
	t.Parallel()

	reads := map[string]func(*Reader) error{
		"uint16":  func(r *Reader) error { _, err := r.Uint16(BE); return err },
		"int32":   func(r *Reader) error { _, err := r.Int32(LE); return err },
		"uint64":  func(r *Reader) error { _, err := r.Uint64(BE); return err },
		"float32": func(r *Reader) error { _, err := r.Float32(BE); return err },
		"float64": func(r *Reader) error { _, err := r.Float64(BE); return err },
		"string":  func(r *Reader) error { _, err := r.String(4, UTF16BE); return err },
	}
	for name, read := range reads {
		r := NewBytesReader([]byte{0})
		if err := read(r); !errors.Is(err, ErrShortRead) {
			t.Fatalf("%s: got %v want ErrShortRead", name, err)
		}
		if r.Pos() != 0 {
			t.Fatalf("%s: position moved to %d", name, r.Pos())
		}
	}
}

func TestReaderIsSticky(t *testing.T) {
	t.Parallel()

	r := NewBytesReader([]byte{1, 2})
	if _, err := r.Int32(BE); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := r.Uint8(); !errors.Is(err, ErrShortRead) {
		t.Fatalf("sticky error: got %v", err)
	}
	if r.Err() == nil {
		t.Fatalf("Err() should report the first failure")
	}
}

func TestByteOrders(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewBufferWriter(&buf)
	if _, err := w.Int32(BE, 0x01020304); err != nil {
		t.Fatalf("write BE: %v", err)
	}
	if _, err := w.Int32(LE, 0x01020304); err != nil {
		t.Fatalf("write LE: %v", err)
	}
	want := []byte{1, 2, 3, 4, 4, 3, 2, 1}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("encoded: got %v want %v", buf.Bytes(), want)
	}

	r := NewBytesReader(buf.Bytes())
	be, _ := r.Int32(BE)
	le, _ := r.Int32(LE)
	if be != 0x01020304 || le != 0x01020304 {
		t.Fatalf("decoded: got %#x %#x", be, le)
	}
}

func TestStringsRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		width int
		enc   Encoding
		s     string
	}{
		{4, UTF16BE, "Parameter"},
		{4, UTF16LE, "メイリオ"},
		{8, UTF8, "Tahoma"},
		{4, UTF8, ""},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		w := NewBufferWriter(&buf)
		n, err := w.WriteString(tc.width, tc.enc, tc.s)
		if err != nil {
			t.Fatalf("write %q: %v", tc.s, err)
		}
		if n != buf.Len() {
			t.Fatalf("bytes written: got %d want %d", n, buf.Len())
		}
		got, err := NewBytesReader(buf.Bytes()).String(tc.width, tc.enc)
		if err != nil {
			t.Fatalf("read %q: %v", tc.s, err)
		}
		if got != tc.s {
			t.Fatalf("string round trip: got %q want %q", got, tc.s)
		}
	}
}

func TestUTF16PrefixCountsCodeUnits(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewBufferWriter(&buf).WriteTag("BlockStatus"); err != nil {
		t.Fatalf("write tag: %v", err)
	}
	if got := buf.Bytes()[3]; got != 11 {
		t.Fatalf("tag prefix: got %d want 11", got)
	}
	if buf.Len() != TagSize("BlockStatus") {
		t.Fatalf("tag size: got %d want %d", buf.Len(), TagSize("BlockStatus"))
	}
}

func TestExpectTag(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	_, _ = NewBufferWriter(&buf).WriteTag("InitColor")

	r := NewBytesReader(buf.Bytes())
	err := r.ExpectTag("Parameter")
	if !errors.Is(err, ErrBadTag) {
		t.Fatalf("expect tag: got %v want ErrBadTag", err)
	}
	var te *TagError
	if !errors.As(err, &te) || te.Got != "InitColor" || te.Want != "Parameter" {
		t.Fatalf("tag error detail: %v", err)
	}
}

func TestOversizedStringPrefix(t *testing.T) {
	t.Parallel()

	r := NewBytesReader([]byte{0, 0, 0, 50, 0, 'a'})
	if _, err := r.String(4, UTF16BE); !errors.Is(err, ErrShortRead) {
		t.Fatalf("oversized prefix: got %v want ErrShortRead", err)
	}
	if r.Pos() != 0 {
		t.Fatalf("position after failed string read: got %d want 0", r.Pos())
	}
}

func TestPatchOnFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "patch.bin")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer func() { _ = f.Close() }()

	w, err := NewWriter(f)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	_, _ = w.Int64(BE, 0)
	_, _ = w.Int32(BE, 9)
	if err := w.PatchInt64(BE, 0, 12); err != nil {
		t.Fatalf("patch: %v", err)
	}
	_, _ = w.Int32(BE, 10)
	if err := w.Err(); err != nil {
		t.Fatalf("writer: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	want := []byte{0, 0, 0, 0, 0, 0, 0, 12, 0, 0, 0, 9, 0, 0, 0, 10}
	if !bytes.Equal(data, want) {
		t.Fatalf("patched file: got %v want %v", data, want)
	}
}

func TestPatchOutsideWrittenRange(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewBufferWriter(&buf)
	_, _ = w.Int32(BE, 1)
	if err := w.PatchInt64(BE, 0, 1); err == nil {
		t.Fatalf("expected error patching past the written data")
	}
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) { return len(p) / 2, nil }

func TestShortWrite(t *testing.T) {
	t.Parallel()

	w, err := NewWriter(shortWriter{})
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if _, err := w.Int64(BE, 1); !errors.Is(err, ErrShortWrite) {
		t.Fatalf("short write: got %v want ErrShortWrite", err)
	}
}
