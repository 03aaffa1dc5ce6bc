package primitives

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Tag identifies the payload type of a single TLV record within a header
// block. Tag 1 (HeaderSize) is reserved and must always be the first record
// of any header block; its value is the total byte length of the block,
// including the HeaderSize record itself.
type Tag uint8

const TagHeaderSize Tag = 1

// WriteTLV emits a single `tag:u8 ‖ length:u32 ‖ value` record to w.
func WriteTLV(w io.Writer, tag Tag, value []byte) error {
	var hdr [5]byte
	hdr[0] = byte(tag)
	binary.LittleEndian.PutUint32(hdr[1:5], uint32(len(value)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write TLV header for tag %d: %w", tag, err)
	}
	if len(value) > 0 {
		if _, err := w.Write(value); err != nil {
			return fmt.Errorf("write TLV value for tag %d: %w", tag, err)
		}
	}
	return nil
}

// WriteTLVAt emits a TLV record to ws and returns the absolute stream offset
// at which the record's value begins, so the caller can seek back later
// (updateHeader-style in-place patches) once the real value is known.
func WriteTLVAt(ws io.WriteSeeker, tag Tag, value []byte) (int64, error) {
	var hdr [5]byte
	hdr[0] = byte(tag)
	binary.LittleEndian.PutUint32(hdr[1:5], uint32(len(value)))
	if _, err := ws.Write(hdr[:]); err != nil {
		return 0, fmt.Errorf("write TLV header for tag %d: %w", tag, err)
	}

	valueOffset, err := ws.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("tell after TLV header for tag %d: %w", tag, err)
	}

	if len(value) > 0 {
		if _, err := ws.Write(value); err != nil {
			return 0, fmt.Errorf("write TLV value for tag %d: %w", tag, err)
		}
	}

	return valueOffset, nil
}

// ReadTLV consumes one `tag:u8 ‖ length:u32 ‖ value` record from r.
func ReadTLV(r io.Reader) (tag Tag, value []byte, err error) {
	var hdr [5]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, fmt.Errorf("read TLV header: %w", err)
	}

	tag = Tag(hdr[0])
	length := binary.LittleEndian.Uint32(hdr[1:5])
	value = make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, value); err != nil {
			return 0, nil, fmt.Errorf("read TLV value for tag %d: %w", tag, err)
		}
	}

	return tag, value, nil
}

// FindTLVOffset scans up to blockLen bytes of r for the first record whose
// tag matches want, returning the byte offset (relative to the start of the
// scan) of its value. Unknown tags are skipped by their declared length.
// Returns -1 if the tag is not found within blockLen bytes.
func FindTLVOffset(r io.Reader, want Tag, blockLen uint32) (int64, error) {
	var consumed int64
	for uint32(consumed) < blockLen {
		var hdr [5]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return -1, fmt.Errorf("scan TLV header: %w", err)
		}
		tag := Tag(hdr[0])
		length := binary.LittleEndian.Uint32(hdr[1:5])
		consumed += 5

		if tag == want {
			return consumed, nil
		}

		if length > 0 {
			if _, err := io.CopyN(io.Discard, r, int64(length)); err != nil {
				return -1, fmt.Errorf("skip TLV value for tag %d: %w", tag, err)
			}
		}
		consumed += int64(length)
	}

	return -1, nil
}

// PutUint8 encodes a single byte value. Convenience wrapper kept symmetric
// with the Put/Get helpers below for callers building TLV value payloads.
func PutUint8(v uint8) []byte { return []byte{v} }

func PutUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func PutUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func PutInt64(v int64) []byte {
	return PutUint64(uint64(v))
}
