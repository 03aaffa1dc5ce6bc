package field

import (
	"encoding/binary"
	"fmt"

	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/stringbuf"
)

// ArrayField is a bounded array of a single item Field. On disk it is a
// 2-byte little-endian count followed by MaxItems * Item.Length() bytes of
// reserved capacity; unused trailing slots are zero-filled.
type ArrayField struct {
	FieldName         string
	Item              Field
	MinItems, MaxItems int
}

var _ Field = (*ArrayField)(nil)

func (f *ArrayField) Name() string { return f.FieldName }

func (f *ArrayField) Length() int { return 2 + f.MaxItems*f.Item.Length() }

func (f *ArrayField) Validate(value any) error {
	items, ok := value.([]any)
	if !ok {
		return fmt.Errorf("%w: field %s: expected array, got %T", errs.ErrWrongJSONType, f.FieldName, value)
	}
	if len(items) < f.MinItems || len(items) > f.MaxItems {
		return fmt.Errorf("%w: field %s: length %d outside [%d,%d]", errs.ErrArrayLengthOutOfRange, f.FieldName, len(items), f.MinItems, f.MaxItems)
	}
	for i, item := range items {
		if err := f.Item.Validate(item); err != nil {
			return fmt.Errorf("field %s[%d]: %w", f.FieldName, i, err)
		}
	}
	return nil
}

func (f *ArrayField) Encode(value any, buf []byte, strBuf *stringbuf.Buffer) error {
	if err := f.Validate(value); err != nil {
		return err
	}
	items := value.([]any)

	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(items)))

	itemLen := f.Item.Length()
	body := buf[2:]
	for i := range body {
		body[i] = 0
	}
	for i, item := range items {
		start := i * itemLen
		if err := f.Item.Encode(item, body[start:start+itemLen], strBuf); err != nil {
			return fmt.Errorf("field %s[%d]: %w", f.FieldName, i, err)
		}
	}
	return nil
}

func (f *ArrayField) Decode(buf []byte, strBuf *stringbuf.Buffer) (any, error) {
	count := int(binary.LittleEndian.Uint16(buf[0:2]))
	if count > f.MaxItems {
		return nil, fmt.Errorf("%w: field %s: stored count %d exceeds max %d", errs.ErrArrayLengthOutOfRange, f.FieldName, count, f.MaxItems)
	}

	itemLen := f.Item.Length()
	body := buf[2:]
	out := make([]any, count)
	for i := 0; i < count; i++ {
		start := i * itemLen
		v, err := f.Item.Decode(body[start:start+itemLen], strBuf)
		if err != nil {
			return nil, fmt.Errorf("field %s[%d]: %w", f.FieldName, i, err)
		}
		out[i] = v
	}
	return out, nil
}
