package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/stringbuf"
)

func TestRowCodec_EncodeDecodeRoundTrip(t *testing.T) {
	root := buildTestTree()
	codec := NewRowCodec(root)
	strBuf := stringbuf.New()

	row, err := codec.Encode(map[string]any{
		"id": float64(42),
		"address": map[string]any{
			"city": "Leeds",
		},
		"nickname": "doc",
	}, strBuf)
	require.NoError(t, err)

	decoded, err := codec.Decode(row, strBuf)
	require.NoError(t, err)

	assert.Equal(t, int64(42), decoded["id"])
	assert.Equal(t, "Leeds", decoded["address.city"])
	assert.Equal(t, "doc", decoded["nickname"])
	_, hasZip := decoded["address.zip"]
	assert.False(t, hasZip)
}

func TestRowCodec_Encode_MissingRequiredFieldFails(t *testing.T) {
	root := buildTestTree()
	codec := NewRowCodec(root)
	strBuf := stringbuf.New()

	_, err := codec.Encode(map[string]any{
		"id": float64(1),
	}, strBuf)
	assert.ErrorIs(t, err, errs.ErrMissingRequiredField)
}

func TestRowCodec_Encode_OmittedOptionalFieldShrinksRow(t *testing.T) {
	root := buildTestTree()
	codec := NewRowCodec(root)
	strBuf := stringbuf.New()

	withNickname, err := codec.Encode(map[string]any{
		"id":      float64(1),
		"address": map[string]any{"city": "A"},
		"nickname": "x",
	}, strBuf)
	require.NoError(t, err)

	withoutNickname, err := codec.Encode(map[string]any{
		"id":      float64(1),
		"address": map[string]any{"city": "A"},
	}, strBuf)
	require.NoError(t, err)

	assert.Less(t, len(withoutNickname), len(withNickname))
}

func TestRowCodec_Decode_RejectsShortRow(t *testing.T) {
	root := buildTestTree()
	codec := NewRowCodec(root)
	_, err := codec.Decode(nil, stringbuf.New())
	assert.ErrorIs(t, err, errs.ErrShortRead)
}

func TestRowCodec_Size_MatchesEncodedLength(t *testing.T) {
	root := buildTestTree()
	codec := NewRowCodec(root)
	strBuf := stringbuf.New()

	row, err := codec.Encode(map[string]any{
		"id":      float64(7),
		"address": map[string]any{"city": "B"},
	}, strBuf)
	require.NoError(t, err)

	present := map[string]bool{"id": true, "address.city": true}
	assert.Equal(t, len(row), codec.Size(present))
}
