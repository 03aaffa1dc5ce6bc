package field

import (
	"encoding/binary"
	"fmt"

	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/stringbuf"
)

// StringField is a fixed-length, null-padded string leaf.
type StringField struct {
	FieldName string
	FixedLen  int
}

var _ Field = (*StringField)(nil)

func (f *StringField) Name() string { return f.FieldName }
func (f *StringField) Length() int  { return f.FixedLen }

func (f *StringField) Validate(value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("%w: field %s: expected string, got %T", errs.ErrWrongJSONType, f.FieldName, value)
	}
	if len(s) > f.FixedLen {
		return fmt.Errorf("%w: field %s: %d bytes exceeds fixed length %d", errs.ErrStringTooLong, f.FieldName, len(s), f.FixedLen)
	}
	return nil
}

func (f *StringField) Encode(value any, buf []byte, _ *stringbuf.Buffer) error {
	if err := f.Validate(value); err != nil {
		return err
	}
	s := value.(string)
	for i := range buf {
		buf[i] = 0
	}
	copy(buf, s)
	return nil
}

func (f *StringField) Decode(buf []byte, _ *stringbuf.Buffer) (any, error) {
	end := len(buf)
	for end > 0 && buf[end-1] == 0 {
		end--
	}
	return string(buf[:end]), nil
}

// VarStringField is a variable-length string leaf: 12 bytes in-row
// (offset:u64, length:u32) pointing into the module's StringBuffer.
type VarStringField struct {
	FieldName string
}

var _ Field = (*VarStringField)(nil)

func (f *VarStringField) Name() string { return f.FieldName }
func (f *VarStringField) Length() int  { return 12 }

func (f *VarStringField) Validate(value any) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("%w: field %s: expected string, got %T", errs.ErrWrongJSONType, f.FieldName, value)
	}
	return nil
}

func (f *VarStringField) Encode(value any, buf []byte, strBuf *stringbuf.Buffer) error {
	if err := f.Validate(value); err != nil {
		return err
	}
	s := value.(string)
	offset := strBuf.Add(s)
	binary.LittleEndian.PutUint64(buf[0:8], offset)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(s)))
	return nil
}

func (f *VarStringField) Decode(buf []byte, strBuf *stringbuf.Buffer) (any, error) {
	offset := binary.LittleEndian.Uint64(buf[0:8])
	length := binary.LittleEndian.Uint32(buf[8:12])
	return strBuf.Slice(offset, length)
}
