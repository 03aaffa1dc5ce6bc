// Package imagecodec implements the per-frame pixel compression strategies
// an ImageData module selects by CompressionKind (spec §4.F: "compress
// pixel bytes via the strategy"). Each Strategy exposes compress, decompress,
// and supports, mirroring the CompressionStrategy/CompressionFactory split
// in the teacher's image encoder so swapping in a new codec never touches
// imagemod.
package imagecodec
