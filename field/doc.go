// Package field implements the schema-derived typed field tree (spec §4.D)
// and the row codec built on top of it: integer, float, fixed- and
// variable-length string, enum, array, and object fields, each knowing its
// own fixed on-disk width and how to encode/decode/validate a Go value
// against it.
//
// The row layout (presence bitmap followed by concatenated present-leaf
// bytes in flattened order) and the encode/decode/validate rules are
// grounded on the packed fixed-width header pattern in
// github.com/arloliu/mebo/section (NumericHeader/TextHeader: parse a byte
// slice into typed fields using an explicit byte-offset table, and the
// inverse on write) generalized here from one fixed header shape to an
// arbitrary schema-declared tree.
package field
