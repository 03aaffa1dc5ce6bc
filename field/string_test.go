package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/stringbuf"
)

func TestStringField_EncodeDecodeRoundTrip(t *testing.T) {
	f := &StringField{FieldName: "code", FixedLen: 8}
	buf := make([]byte, f.Length())
	require.NoError(t, f.Encode("AB", buf, nil))

	got, err := f.Decode(buf, nil)
	require.NoError(t, err)
	assert.Equal(t, "AB", got)
}

func TestStringField_Encode_RejectsTooLong(t *testing.T) {
	f := &StringField{FieldName: "code", FixedLen: 2}
	err := f.Encode("ABC", make([]byte, 2), nil)
	assert.ErrorIs(t, err, errs.ErrStringTooLong)
}

func TestStringField_Encode_ZeroFillsTrailingBytes(t *testing.T) {
	f := &StringField{FieldName: "code", FixedLen: 4}
	buf := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	require.NoError(t, f.Encode("Hi", buf, nil))
	assert.Equal(t, []byte{'H', 'i', 0, 0}, buf)
}

func TestVarStringField_EncodeDecodeRoundTrip(t *testing.T) {
	f := &VarStringField{FieldName: "name"}
	strBuf := stringbuf.New()

	buf := make([]byte, f.Length())
	require.NoError(t, f.Encode("Alice Example", buf, strBuf))
	assert.Equal(t, 12, f.Length())

	got, err := f.Decode(buf, strBuf)
	require.NoError(t, err)
	assert.Equal(t, "Alice Example", got)
}

func TestVarStringField_MultipleStringsDoNotOverlap(t *testing.T) {
	f := &VarStringField{FieldName: "name"}
	strBuf := stringbuf.New()

	buf1 := make([]byte, f.Length())
	require.NoError(t, f.Encode("first", buf1, strBuf))
	buf2 := make([]byte, f.Length())
	require.NoError(t, f.Encode("second-value", buf2, strBuf))

	got1, err := f.Decode(buf1, strBuf)
	require.NoError(t, err)
	got2, err := f.Decode(buf2, strBuf)
	require.NoError(t, err)

	assert.Equal(t, "first", got1)
	assert.Equal(t, "second-value", got2)
}
