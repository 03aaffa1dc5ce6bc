package primitives

import (
	"github.com/google/uuid"
)

// UUID is a 128-bit RFC 4122 version-4 identifier. It wraps
// github.com/google/uuid so the rest of the container never has to reason
// about the variant/version bit masking directly.
type UUID [16]byte

// Nil is the zero-valued UUID, used as a sentinel for "no previous version"
// and "no root module" fields.
var Nil UUID

// NewUUID generates a cryptographically-seeded random v4 UUID.
func NewUUID() UUID {
	var u UUID
	copy(u[:], uuid.New()[:])
	return u
}

// ParseUUID parses the canonical 36-character hex-dash text form.
func ParseUUID(s string) (UUID, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return UUID{}, err
	}
	var u UUID
	copy(u[:], parsed[:])
	return u, nil
}

// FromBytes interprets a 16-byte slice as a UUID. Panics if len(b) != 16,
// matching the fixed-width wire contract every caller already guarantees.
func FromBytes(b []byte) UUID {
	var u UUID
	if len(b) != 16 {
		panic("primitives: UUID requires exactly 16 bytes")
	}
	copy(u[:], b)
	return u
}

// Bytes returns the 16-byte wire representation.
func (u UUID) Bytes() []byte {
	return u[:]
}

// String returns the canonical lower-case hex-dash form.
func (u UUID) String() string {
	return uuid.UUID(u).String()
}

// IsNil reports whether u is the zero UUID.
func (u UUID) IsNil() bool {
	return u == Nil
}
