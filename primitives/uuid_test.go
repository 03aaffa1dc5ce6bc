package primitives

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUUID_Unique(t *testing.T) {
	a := NewUUID()
	b := NewUUID()
	assert.NotEqual(t, a, b)
	assert.False(t, a.IsNil())
}

func TestUUID_StringRoundTrip(t *testing.T) {
	u := NewUUID()
	parsed, err := ParseUUID(u.String())
	require.NoError(t, err)
	assert.Equal(t, u, parsed)
}

func TestUUID_FromBytes(t *testing.T) {
	u := NewUUID()
	got := FromBytes(u.Bytes())
	assert.Equal(t, u, got)
}

func TestUUID_FromBytes_PanicsOnWrongLength(t *testing.T) {
	assert.Panics(t, func() {
		FromBytes([]byte{1, 2, 3})
	})
}

func TestNil_IsNil(t *testing.T) {
	assert.True(t, Nil.IsNil())
}
