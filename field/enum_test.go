package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobLovegrove/umdf-go/errs"
)

func TestEnumField_EncodeDecodeRoundTrip(t *testing.T) {
	f := &EnumField{FieldName: "status", Values: []string{"pending", "active", "closed"}, StorageBytes: 1}
	buf := make([]byte, f.Length())
	require.NoError(t, f.Encode("active", buf, nil))

	got, err := f.Decode(buf, nil)
	require.NoError(t, err)
	assert.Equal(t, "active", got)
}

func TestEnumField_Validate_RejectsUnknownValue(t *testing.T) {
	f := &EnumField{FieldName: "status", Values: []string{"pending", "active"}, StorageBytes: 1}
	err := f.Validate("deleted")
	assert.ErrorIs(t, err, errs.ErrEnumValueNotAllowed)
}

func TestEnumField_Decode_RejectsOutOfRangeOrdinal(t *testing.T) {
	f := &EnumField{FieldName: "status", Values: []string{"pending", "active"}, StorageBytes: 1}
	_, err := f.Decode([]byte{5}, nil)
	assert.ErrorIs(t, err, errs.ErrInvalidEnumOrdinal)
}

func TestEnumField_WiderStorage(t *testing.T) {
	f := &EnumField{FieldName: "code", Values: []string{"a", "b", "c"}, StorageBytes: 2}
	buf := make([]byte, 2)
	require.NoError(t, f.Encode("c", buf, nil))
	assert.Equal(t, []byte{2, 0}, buf)

	got, err := f.Decode(buf, nil)
	require.NoError(t, err)
	assert.Equal(t, "c", got)
}
