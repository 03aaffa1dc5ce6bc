package field

import (
	"encoding/binary"
	"fmt"

	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/stringbuf"
)

// EnumField stores an ordinal index (little-endian, StorageBytes wide) into
// an ordered list of allowed string values.
type EnumField struct {
	FieldName    string
	Values       []string
	StorageBytes int // 1, 2, or 4
}

var _ Field = (*EnumField)(nil)

func (f *EnumField) Name() string { return f.FieldName }
func (f *EnumField) Length() int  { return f.StorageBytes }

func (f *EnumField) indexOf(s string) (int, bool) {
	for i, v := range f.Values {
		if v == s {
			return i, true
		}
	}
	return 0, false
}

func (f *EnumField) Validate(value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("%w: field %s: expected string, got %T", errs.ErrWrongJSONType, f.FieldName, value)
	}
	if _, ok := f.indexOf(s); !ok {
		return fmt.Errorf("%w: field %s: %q not in enum", errs.ErrEnumValueNotAllowed, f.FieldName, s)
	}
	return nil
}

func (f *EnumField) Encode(value any, buf []byte, _ *stringbuf.Buffer) error {
	if err := f.Validate(value); err != nil {
		return err
	}
	idx, _ := f.indexOf(value.(string))
	putOrdinal(buf, uint32(idx), f.StorageBytes)
	return nil
}

func (f *EnumField) Decode(buf []byte, _ *stringbuf.Buffer) (any, error) {
	ord := getOrdinal(buf, f.StorageBytes)
	if int(ord) >= len(f.Values) {
		return nil, fmt.Errorf("%w: field %s: ordinal %d out of range [0,%d)", errs.ErrInvalidEnumOrdinal, f.FieldName, ord, len(f.Values))
	}
	return f.Values[ord], nil
}

func putOrdinal(buf []byte, v uint32, width int) {
	switch width {
	case 1:
		buf[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(buf, v)
	}
}

func getOrdinal(buf []byte, width int) uint32 {
	switch width {
	case 1:
		return uint32(buf[0])
	case 2:
		return uint32(binary.LittleEndian.Uint16(buf))
	case 4:
		return binary.LittleEndian.Uint32(buf)
	}
	return 0
}
