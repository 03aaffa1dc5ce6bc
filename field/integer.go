package field

import (
	"encoding/binary"
	"fmt"

	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/stringbuf"
)

// IntegerField is a fixed-width signed or unsigned integer leaf.
type IntegerField struct {
	FieldName string
	Signed    bool
	ByteLen   int // 1, 2, or 4
	Min, Max  *int64
}

var _ Field = (*IntegerField)(nil)

func (f *IntegerField) Name() string   { return f.FieldName }
func (f *IntegerField) Length() int    { return f.ByteLen }

func (f *IntegerField) Validate(value any) error {
	iv, err := toInt64(value)
	if err != nil {
		return fmt.Errorf("%w: field %s: %v", errs.ErrWrongJSONType, f.FieldName, err)
	}

	if !f.Signed && iv < 0 {
		return fmt.Errorf("%w: field %s: unsigned field cannot hold negative value %d", errs.ErrValueOutOfRange, f.FieldName, iv)
	}

	if f.Min != nil && iv < *f.Min {
		return fmt.Errorf("%w: field %s: %d below minimum %d", errs.ErrValueOutOfRange, f.FieldName, iv, *f.Min)
	}
	if f.Max != nil && iv > *f.Max {
		return fmt.Errorf("%w: field %s: %d above maximum %d", errs.ErrValueOutOfRange, f.FieldName, iv, *f.Max)
	}

	return rangeCheckWidth(f.FieldName, iv, f.Signed, f.ByteLen)
}

func (f *IntegerField) Encode(value any, buf []byte, _ *stringbuf.Buffer) error {
	if err := f.Validate(value); err != nil {
		return err
	}
	iv, _ := toInt64(value)

	switch f.ByteLen {
	case 1:
		buf[0] = byte(int8(iv))
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(int16(iv)))
	case 4:
		binary.LittleEndian.PutUint32(buf, uint32(int32(iv)))
	default:
		return fmt.Errorf("%w: field %s: unsupported integer byte length %d", errs.ErrUnsupportedFormat, f.FieldName, f.ByteLen)
	}

	return nil
}

func (f *IntegerField) Decode(buf []byte, _ *stringbuf.Buffer) (any, error) {
	switch f.ByteLen {
	case 1:
		if f.Signed {
			return int64(int8(buf[0])), nil
		}
		return int64(buf[0]), nil
	case 2:
		u := binary.LittleEndian.Uint16(buf)
		if f.Signed {
			return int64(int16(u)), nil
		}
		return int64(u), nil
	case 4:
		u := binary.LittleEndian.Uint32(buf)
		if f.Signed {
			return int64(int32(u)), nil
		}
		return int64(u), nil
	default:
		return nil, fmt.Errorf("%w: field %s: unsupported integer byte length %d", errs.ErrUnsupportedFormat, f.FieldName, f.ByteLen)
	}
}

func rangeCheckWidth(name string, iv int64, signed bool, byteLen int) error {
	var lo, hi int64
	bits := byteLen * 8
	if signed {
		lo = -(int64(1) << (bits - 1))
		hi = (int64(1) << (bits - 1)) - 1
	} else {
		lo = 0
		hi = (int64(1) << bits) - 1
	}
	if iv < lo || iv > hi {
		return fmt.Errorf("%w: field %s: %d outside storage width [%d,%d]", errs.ErrValueOutOfRange, name, iv, lo, hi)
	}
	return nil
}

// toInt64 accepts the JSON-decoded numeric shapes (float64 from
// encoding/json, plus Go's own int kinds for programmatic callers) and
// rejects anything else, including numeric strings.
func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("value %v is not an integer", v)
		}
		return int64(v), nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("value %v (%T) is not a number", value, value)
	}
}
