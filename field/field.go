package field

import "github.com/RobLovegrove/umdf-go/stringbuf"

// Field is one node of the schema-derived field tree. Leaf fields (every
// kind except Object) have a fixed on-disk Length() and know how to
// encode/decode/validate a single Go value. Object is not itself a leaf: it
// is flattened away by Flatten before rows are built.
type Field interface {
	// Name is the field's own (undotted) name within its parent.
	Name() string

	// Length is the fixed number of bytes this field occupies in a row
	// when present, not counting the presence bitmap.
	Length() int

	// Validate checks value against the field's type and constraints
	// without encoding it.
	Validate(value any) error

	// Encode writes value's wire representation into buf[0:Length()].
	// strBuf receives variable-length string bytes for VarStringField.
	Encode(value any, buf []byte, strBuf *stringbuf.Buffer) error

	// Decode reads a value back out of buf[0:Length()]. strBuf resolves
	// VarStringField (offset, length) pairs.
	Decode(buf []byte, strBuf *stringbuf.Buffer) (any, error)
}

// Leaf pairs a leaf Field with its dotted path (e.g. "address.city") for
// bitmap indexing and row assembly. Top-level non-object fields use their
// own Name as Path.
type Leaf struct {
	Path  string
	Field Field
}
