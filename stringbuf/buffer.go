// Package stringbuf implements the per-module variable-length string arena
// (spec §4.B): an append-only byte buffer returning (offset, length)
// handles, with no delimiters between strings — callers own bounding the
// slice with their own stored length.
package stringbuf

import (
	"fmt"
	"io"

	"github.com/RobLovegrove/umdf-go/internal/pool"
)

// Buffer is a per-module, append-only byte arena. Offsets it returns are
// relative to the start of the buffer, not the file.
type Buffer struct {
	buf *pool.ByteBuffer
}

// New creates an empty string buffer.
func New() *Buffer {
	return &Buffer{buf: pool.NewByteBuffer(pool.ModuleBufferDefaultSize)}
}

// Add appends str to the arena and returns the byte offset it starts at.
func (b *Buffer) Add(str string) uint64 {
	offset := uint64(b.buf.Len())
	b.buf.MustWrite([]byte(str))
	return offset
}

// Size returns the current arena size in bytes.
func (b *Buffer) Size() uint64 {
	return uint64(b.buf.Len())
}

// Bytes returns the underlying byte slice. Callers must not retain it past
// the next call to Add.
func (b *Buffer) Bytes() []byte {
	return b.buf.Bytes()
}

// Slice returns the string stored at (offset, length). It bounds-checks
// against the current arena size.
func (b *Buffer) Slice(offset uint64, length uint32) (string, error) {
	end := offset + uint64(length)
	if end > uint64(b.buf.Len()) {
		return "", fmt.Errorf("stringbuf: slice [%d:%d] out of bounds (size %d)", offset, end, b.buf.Len())
	}
	return string(b.buf.Bytes()[offset:end]), nil
}

// WriteTo writes the arena contents to w.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	return b.buf.WriteTo(w)
}

// ReadFrom reads exactly n bytes from r into a fresh Buffer.
func ReadFrom(r io.Reader, n uint64) (*Buffer, error) {
	data := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("stringbuf: read %d bytes: %w", n, err)
		}
	}
	b := New()
	b.buf.MustWrite(data)
	return b, nil
}
