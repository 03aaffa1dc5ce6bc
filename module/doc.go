// Package module implements the tabular DataModule (spec §4.F): a module
// owns a TLV header, a pair of field trees (metadata and data), a shared
// string buffer, and the rows encoded against each tree. WriteBinary
// assembles the on-disk envelope (plain, zstd-compressed metadata, or
// AEAD-encrypted) and patches the header's size fields once the payload
// length is known; FromStream reverses whichever envelope the header
// declares.
package module
