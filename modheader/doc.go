// Package modheader implements the per-module TLV header (spec §3 "Module
// header (TLV)", §4.E DataHeader): a stream of {tag:u8, length:u32,
// value:bytes} records beginning with HeaderSize, carrying the sizes,
// compression/encryption parameters, and audit fields for one module.
//
// Header writes go through iohelper.Stream.DeferPatch: placeholder sizes
// are emitted first so the header's total byte length is known before any
// payload is written, then patched once the payload sizes are final
// (mirroring the teacher's own "reserve, write body, patch" pattern for its
// blob headers).
package modheader
