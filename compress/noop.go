package compress

// NoOpCompressor implements format.CompressionRaw: the payload is stored
// unmodified. Used for modules whose data is already compressed upstream
// (e.g. PNG/JPEG2000 pixel data) or too small to benefit from Zstd.
type NoOpCompressor struct{}

var _ Codec = (*NoOpCompressor)(nil)

// NewNoOpCompressor creates a no-op compressor.
func NewNoOpCompressor() NoOpCompressor {
	return NoOpCompressor{}
}

// Compress returns data unchanged. The returned slice shares the input's
// underlying memory.
func (c NoOpCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

// Decompress returns data unchanged.
func (c NoOpCompressor) Decompress(data []byte) ([]byte, error) {
	return data, nil
}
