package binio

import (
	"errors"
	"fmt"
)

var (
	ErrShortRead  = errors.New("binio: short read")
	ErrShortWrite = errors.New("binio: short write")
	ErrBadTag     = errors.New("binio: unexpected tag")
)

// ShortReadError reports a read that could not be satisfied.
type ShortReadError struct {
	Offset int64
	Want   int64
	Got    int64
}

func (e *ShortReadError) Error() string {
	return fmt.Sprintf("binio: short read at offset %d: read=%d, expected=%d", e.Offset, e.Got, e.Want)
}

func (e *ShortReadError) Is(target error) bool { return target == ErrShortRead }

// ShortWriteError reports a write that transferred fewer bytes than requested.
type ShortWriteError struct {
	Offset int64
	Want   int64
	Got    int64
}

func (e *ShortWriteError) Error() string {
	return fmt.Sprintf("binio: short write at offset %d: wrote=%d, expected=%d", e.Offset, e.Got, e.Want)
}

func (e *ShortWriteError) Is(target error) bool { return target == ErrShortWrite }

// TagError reports a section tag that did not match the expected name.
type TagError struct {
	Offset int64
	Want   string
	Got    string
}

func (e *TagError) Error() string {
	return fmt.Sprintf("binio: tag at offset %d: got %q want %q", e.Offset, e.Got, e.Want)
}

func (e *TagError) Is(target error) bool { return target == ErrBadTag }
