package compress

// ZstdCompressor implements format.CompressionZstd for a module's metadata
// block or string buffer, where the general-purpose redundancy Zstd finds
// in repeated JSON keys and short strings is worth the CPU cost.
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

// NewZstdCompressor creates a Zstd compressor with default settings.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}
