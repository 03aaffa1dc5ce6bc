// Package primitives provides the small wire-level building blocks shared
// by every other package in the container: a 128-bit v4 UUID identifier, an
// epoch-seconds DateTime, a two-field format Version, and the TLV
// (tag-length-value) reader/writer helpers used by every header block.
//
// Grounded on github.com/arloliu/mebo/endian for the byte-order engine
// pattern and github.com/google/uuid for v4 generation (the latter pulled
// into the module because it appears as a direct dependency across the
// retrieved example corpus, e.g. the fb2cng and apfs manifests).
package primitives
