package csf

import (
	"errors"
	"fmt"
)

var (
	ErrBadSignature = errors.New("csf: bad signature")
	ErrCorrupt      = errors.New("csf: corrupt data")
	ErrSizeMismatch = errors.New("csf: size mismatch")

	// ErrNotBlockData is returned by ParseBlockData when the region does not
	// start with a block record. Callers keep such regions as raw bytes.
	ErrNotBlockData = errors.New("csf: region is not block data")
)

// FormatError is a fatal framing error. Section names the record being read
// (an 8-byte chunk signature or a block record tag) and Offset is the absolute
// byte offset where the problem was detected.
type FormatError struct {
	Section string
	Offset  int64
	Err     error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("csf: %s at offset %d: %v", e.Section, e.Offset, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

func formatErr(section string, off int64, err error) error {
	var fe *FormatError
	if errors.As(err, &fe) {
		return err
	}
	return &FormatError{Section: section, Offset: off, Err: err}
}

func formatErrf(section string, off int64, sentinel error, format string, args ...any) error {
	return &FormatError{
		Section: section,
		Offset:  off,
		Err:     fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...),
	}
}
