package field

import (
	"fmt"
	"strings"

	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/stringbuf"
)

// RowCodec encodes and decodes table rows against a flattened leaf field
// tree. Rows are not fixed-width: only present leaves contribute bytes, so a
// row's size is ceil(len(Leaves)/8) (the presence bitmap) plus the encoded
// length of whichever leaves are actually set (spec §4.D, "Row build
// sequence on write").
type RowCodec struct {
	Leaves   []Leaf
	Required map[string]bool // dotted paths that must be present on every row
}

// NewRowCodec flattens root into a RowCodec.
func NewRowCodec(root *ObjectNode) *RowCodec {
	return &RowCodec{
		Leaves:   root.Flatten(),
		Required: setOf(root.RequiredPaths()),
	}
}

func setOf(paths []string) map[string]bool {
	m := make(map[string]bool, len(paths))
	for _, p := range paths {
		m[p] = true
	}
	return m
}

func bitmapBytes(n int) int {
	return (n + 7) / 8
}

// Encode builds one row from a dotted-path value map (e.g.
// {"address.city": "Leeds"}). Values may also be supplied as nested
// map[string]any trees; both shapes are flattened identically.
func (c *RowCodec) Encode(values map[string]any, strBuf *stringbuf.Buffer) ([]byte, error) {
	flat := flattenValues(values)

	present := make([]bool, len(c.Leaves))
	size := bitmapBytes(len(c.Leaves))
	for i, leaf := range c.Leaves {
		if _, ok := flat[leaf.Path]; ok {
			present[i] = true
			size += leaf.Field.Length()
		} else if c.Required[leaf.Path] {
			return nil, fmt.Errorf("%w: %s", errs.ErrMissingRequiredField, leaf.Path)
		}
	}

	row := make([]byte, size)
	offset := bitmapBytes(len(c.Leaves))
	for i, leaf := range c.Leaves {
		if !present[i] {
			continue
		}
		row[i/8] |= 1 << uint(i%8)

		length := leaf.Field.Length()
		if err := leaf.Field.Encode(flat[leaf.Path], row[offset:offset+length], strBuf); err != nil {
			return nil, fmt.Errorf("row field %s: %w", leaf.Path, err)
		}
		offset += length
	}

	return row, nil
}

// Decode parses a row built by Encode back into a dotted-path value map.
func (c *RowCodec) Decode(row []byte, strBuf *stringbuf.Buffer) (map[string]any, error) {
	bmLen := bitmapBytes(len(c.Leaves))
	if len(row) < bmLen {
		return nil, fmt.Errorf("%w: row shorter than presence bitmap", errs.ErrShortRead)
	}

	out := make(map[string]any)
	offset := bmLen
	for i, leaf := range c.Leaves {
		if row[i/8]&(1<<uint(i%8)) == 0 {
			continue
		}
		length := leaf.Field.Length()
		if offset+length > len(row) {
			return nil, fmt.Errorf("%w: row truncated at field %s", errs.ErrShortRead, leaf.Path)
		}
		v, err := leaf.Field.Decode(row[offset:offset+length], strBuf)
		if err != nil {
			return nil, fmt.Errorf("row field %s: %w", leaf.Path, err)
		}
		out[leaf.Path] = v
		offset += length
	}

	return out, nil
}

// Size returns the byte length Encode would produce for the given set of
// present dotted paths, without encoding anything.
func (c *RowCodec) Size(presentPaths map[string]bool) int {
	size := bitmapBytes(len(c.Leaves))
	for _, leaf := range c.Leaves {
		if presentPaths[leaf.Path] {
			size += leaf.Field.Length()
		}
	}
	return size
}

// PeekLength reads only data's presence bitmap and returns the total byte
// length the row it prefixes will occupy, without decoding any field
// values. Rows are not fixed-width (only present leaves contribute bytes),
// so callers splitting a concatenated run of rows must call this to find
// each row's boundary before slicing it out for Decode.
func (c *RowCodec) PeekLength(data []byte) (int, error) {
	bmLen := bitmapBytes(len(c.Leaves))
	if len(data) < bmLen {
		return 0, fmt.Errorf("%w: row shorter than presence bitmap", errs.ErrShortRead)
	}

	size := bmLen
	for i, leaf := range c.Leaves {
		if data[i/8]&(1<<uint(i%8)) != 0 {
			size += leaf.Field.Length()
		}
	}
	return size, nil
}

// flattenValues accepts either an already-dotted map (keys containing ".")
// or a nested map[string]any tree and returns a single dotted-path map.
func flattenValues(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	flattenInto("", values, out)
	return out
}

func flattenInto(prefix string, values map[string]any, out map[string]any) {
	for k, v := range values {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok && !strings.Contains(k, ".") {
			flattenInto(path, nested, out)
			continue
		}
		out[path] = v
	}
}
