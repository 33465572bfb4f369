package msch

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Magic opens every schematic container.
const Magic = "msch"

// HeaderSize is the length of the magic plus the container version byte.
const HeaderSize = len(Magic) + 1

// labelsTag only appears in headers written by V7 software.
const labelsTag = "labels"

var (
	// ErrFormat reports a magic mismatch.
	ErrFormat = errors.New("msch: invalid format")

	// ErrCorruptData reports a compressed header that cannot be inflated.
	ErrCorruptData = errors.New("msch: corrupt data")

	// ErrTruncated reports a buffer that ends before a required field.
	ErrTruncated = errors.New("msch: truncated input")
)

// Error describes where classification stopped.
//
// Use errors.Is with ErrFormat, ErrCorruptData or ErrTruncated to find the
// cause. Offset is relative to the classified buffer for ErrFormat and to
// the inflated header otherwise.
type Error struct {
	Offset int
	Err    error
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v at offset %d", e.Err, e.Offset)
	}
	return fmt.Sprintf("%v at offset %d: %s", e.Err, e.Offset, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Classify infers the family of the container at the start of data.
//
// data is never modified.
func Classify(data []byte) (Family, error) {
	f, _, err := ClassifyAt(data, 0)
	return f, err
}

// ClassifyAt infers the family of the container that starts at off.
//
// On success next is off+HeaderSize, the position right after the version
// byte, for every family. The caller's view of data is never advanced past
// that point even though V6 and V7 classification inflates the remainder.
//
// Example:
//
//	family, next, err := msch.ClassifyAt(buf, 0)
//	if err != nil {
//	    return err
//	}
//	// buf[next:] is the compressed body for V6 and V7
func ClassifyAt(data []byte, off int) (family Family, next int, err error) {
	if off < 0 || off > len(data) {
		return FamilyUnknown, off, &Error{Offset: off, Err: ErrTruncated, Detail: "start offset outside buffer"}
	}

	for i := 0; i < len(Magic); i++ {
		pos := off + i
		if pos >= len(data) {
			return FamilyUnknown, off, &Error{Offset: pos, Err: ErrTruncated, Detail: "magic"}
		}
		if data[pos] != Magic[i] {
			return FamilyUnknown, off, &Error{
				Offset: pos,
				Err:    ErrFormat,
				Detail: fmt.Sprintf("magic byte 0x%02x, want 0x%02x", data[pos], Magic[i]),
			}
		}
	}

	versionPos := off + len(Magic)
	if versionPos >= len(data) {
		return FamilyUnknown, off, &Error{Offset: versionPos, Err: ErrTruncated, Detail: "container version"}
	}
	next = versionPos + 1

	if data[versionPos] == 0 {
		return FamilyV5, next, nil
	}

	header, err := inflate(data[next:])
	if err != nil {
		return FamilyUnknown, off, err
	}

	hasLabels, err := scanTags(header)
	if err != nil {
		return FamilyUnknown, off, err
	}
	if hasLabels {
		return FamilyV7, next, nil
	}
	return FamilyV6, next, nil
}

func inflate(compressed []byte) ([]byte, error) {
	if len(compressed) == 0 {
		return nil, &Error{Offset: 0, Err: ErrTruncated, Detail: "missing compressed body"}
	}

	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, &Error{Offset: 0, Err: ErrCorruptData, Detail: err.Error()}
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, &Error{Offset: 0, Err: ErrCorruptData, Detail: err.Error()}
	}
	return out, nil
}

// scanTags walks the inflated header and reports whether a "labels" key
// is present. Every tag is read so a truncated header is always detected.
func scanTags(header []byte) (bool, error) {
	r := headerReader{buf: header}

	// width, height
	if err := r.skip(4, "dimensions"); err != nil {
		return false, err
	}

	count, err := r.u8("tag count")
	if err != nil {
		return false, err
	}

	found := false
	for i := 0; i < int(count); i++ {
		key, err := r.utf(fmt.Sprintf("tag %d key", i))
		if err != nil {
			return false, err
		}
		if _, err := r.utf(fmt.Sprintf("tag %d value", i)); err != nil {
			return false, err
		}
		if string(key) == labelsTag {
			found = true
		}
	}
	return found, nil
}

// headerReader reads the big-endian fields of an inflated header.
type headerReader struct {
	buf []byte
	pos int
}

func (r *headerReader) need(n int, what string) error {
	if len(r.buf)-r.pos < n {
		return &Error{
			Offset: r.pos,
			Err:    ErrTruncated,
			Detail: fmt.Sprintf("%s needs %d bytes, %d left", what, n, len(r.buf)-r.pos),
		}
	}
	return nil
}

func (r *headerReader) skip(n int, what string) error {
	if err := r.need(n, what); err != nil {
		return err
	}
	r.pos += n
	return nil
}

func (r *headerReader) u8(what string) (uint8, error) {
	if err := r.need(1, what); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

// utf reads a string prefixed with its uint16 byte length.
func (r *headerReader) utf(what string) ([]byte, error) {
	if err := r.need(2, what+" length"); err != nil {
		return nil, err
	}
	n := int(binary.BigEndian.Uint16(r.buf[r.pos:]))
	r.pos += 2

	if err := r.need(n, what); err != nil {
		return nil, err
	}
	s := r.buf[r.pos : r.pos+n]
	r.pos += n
	return s, nil
}
