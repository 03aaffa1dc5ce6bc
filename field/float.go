package field

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/stringbuf"
)

// FloatField is a 32- or 64-bit IEEE-754 float leaf.
type FloatField struct {
	FieldName string
	Is64      bool
	Min, Max  *float64
}

var _ Field = (*FloatField)(nil)

func (f *FloatField) Name() string { return f.FieldName }

func (f *FloatField) Length() int {
	if f.Is64 {
		return 8
	}
	return 4
}

func (f *FloatField) Validate(value any) error {
	fv, err := toFloat64(value)
	if err != nil {
		return fmt.Errorf("%w: field %s: %v", errs.ErrWrongJSONType, f.FieldName, err)
	}
	if f.Min != nil && fv < *f.Min {
		return fmt.Errorf("%w: field %s: %v below minimum %v", errs.ErrValueOutOfRange, f.FieldName, fv, *f.Min)
	}
	if f.Max != nil && fv > *f.Max {
		return fmt.Errorf("%w: field %s: %v above maximum %v", errs.ErrValueOutOfRange, f.FieldName, fv, *f.Max)
	}
	return nil
}

func (f *FloatField) Encode(value any, buf []byte, _ *stringbuf.Buffer) error {
	if err := f.Validate(value); err != nil {
		return err
	}
	fv, _ := toFloat64(value)

	if f.Is64 {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(fv))
	} else {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(fv)))
	}
	return nil
}

func (f *FloatField) Decode(buf []byte, _ *stringbuf.Buffer) (any, error) {
	if f.Is64 {
		return math.Float64frombits(binary.LittleEndian.Uint64(buf)), nil
	}
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf))), nil
}

func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("value %v (%T) is not a number", value, value)
	}
}
