package stringbuf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_AddAndSlice(t *testing.T) {
	b := New()

	off1 := b.Add("Jane Doe")
	off2 := b.Add("Springfield General")

	assert.Equal(t, uint64(0), off1)
	assert.Equal(t, uint64(8), off2)
	assert.Equal(t, uint64(8+len("Springfield General")), b.Size())

	s1, err := b.Slice(off1, 8)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", s1)

	s2, err := b.Slice(off2, uint32(len("Springfield General")))
	require.NoError(t, err)
	assert.Equal(t, "Springfield General", s2)
}

func TestBuffer_Slice_OutOfBounds(t *testing.T) {
	b := New()
	b.Add("short")

	_, err := b.Slice(0, 100)
	assert.Error(t, err)
}

func TestBuffer_WriteToAndReadFrom_RoundTrip(t *testing.T) {
	b := New()
	b.Add("alpha")
	b.Add("beta")

	var out bytes.Buffer
	n, err := b.WriteTo(&out)
	require.NoError(t, err)
	assert.Equal(t, int64(b.Size()), n)

	rebuilt, err := ReadFrom(&out, b.Size())
	require.NoError(t, err)
	assert.Equal(t, b.Bytes(), rebuilt.Bytes())

	s, err := rebuilt.Slice(5, 4)
	require.NoError(t, err)
	assert.Equal(t, "beta", s)
}

func TestBuffer_NoDelimiters(t *testing.T) {
	b := New()
	b.Add("ab")
	b.Add("cd")
	assert.Equal(t, []byte("abcd"), b.Bytes())
}
