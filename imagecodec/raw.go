package imagecodec

// rawStrategy is the identity codec (format.CompressionRaw): frame bytes
// are stored uncompressed, matching the teacher's RAW CompressionStrategy.
type rawStrategy struct{}

var _ Strategy = rawStrategy{}

func (rawStrategy) Compress(raw []byte, _, _ int, _, _ uint8) ([]byte, error) {
	return raw, nil
}

func (rawStrategy) Decompress(compressed []byte) ([]byte, error) {
	return compressed, nil
}

func (rawStrategy) Supports(_, _ uint8) bool { return true }
