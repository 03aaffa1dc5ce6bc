package primitives

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadTLV_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTLV(&buf, TagHeaderSize, PutUint32(42)))

	tag, value, err := ReadTLV(&buf)
	require.NoError(t, err)
	assert.Equal(t, TagHeaderSize, tag)
	assert.Equal(t, PutUint32(42), value)
}

func TestWriteTLV_EmptyValue(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTLV(&buf, Tag(9), nil))

	tag, value, err := ReadTLV(&buf)
	require.NoError(t, err)
	assert.Equal(t, Tag(9), tag)
	assert.Empty(t, value)
}

func TestFindTLVOffset_SkipsUnknownTags(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTLV(&buf, Tag(2), []byte("skip-me")))
	require.NoError(t, WriteTLV(&buf, Tag(3), []byte("found")))

	blockLen := uint32(buf.Len())
	r := bytes.NewReader(buf.Bytes())

	offset, err := FindTLVOffset(r, Tag(3), blockLen)
	require.NoError(t, err)

	// offset is relative to start of scan, at the beginning of tag 3's value.
	remaining := buf.Bytes()[offset:]
	assert.Equal(t, []byte("found"), remaining)
}

func TestFindTLVOffset_NotFound(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTLV(&buf, Tag(2), []byte("x")))

	offset, err := FindTLVOffset(bytes.NewReader(buf.Bytes()), Tag(99), uint32(buf.Len()))
	require.NoError(t, err)
	assert.Equal(t, int64(-1), offset)
}

func TestWriteTLVAt_ReturnsPatchableOffset(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "tlv")
	require.NoError(t, err)
	defer f.Close()

	valueOffset, err := WriteTLVAt(f, Tag(7), PutUint32(0))
	require.NoError(t, err)

	_, err = f.WriteAt(PutUint32(1234), valueOffset)
	require.NoError(t, err)

	_, err = f.Seek(0, 0)
	require.NoError(t, err)
	tag, value, err := ReadTLV(f)
	require.NoError(t, err)
	assert.Equal(t, Tag(7), tag)
	assert.Equal(t, PutUint32(1234), value)
}
