package compress

import (
	"fmt"

	"github.com/RobLovegrove/umdf-go/format"
)

// Compressor compresses a module's metadata or data payload before it is
// written to disk.
type Compressor interface {
	// Compress compresses data and returns the compressed result. The
	// returned slice is newly allocated; the input is not modified.
	Compress(data []byte) ([]byte, error)
}

// Decompressor reverses a Compressor's transform.
type Decompressor interface {
	// Decompress restores the original bytes from a compressed payload. It
	// returns an error if the payload is corrupted or was not produced by
	// the matching Compressor.
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both compression directions.
type Codec interface {
	Compressor
	Decompressor
}

// CompressionStats describes one compression operation, useful for logging
// and tuning which CompressionKind a writer should pick for a given module.
type CompressionStats struct {
	Algorithm           format.CompressionKind
	OriginalSize        int64
	CompressedSize      int64
	CompressionTimeNs   int64
	DecompressionTimeNs int64
}

// CompressionRatio returns CompressedSize/OriginalSize; values below 1.0
// indicate the payload shrank.
func (s CompressionStats) CompressionRatio() float64 {
	if s.OriginalSize == 0 {
		return 0.0
	}

	return float64(s.CompressedSize) / float64(s.OriginalSize)
}

// SpaceSavings returns the space saved as a percentage (0-100).
func (s CompressionStats) SpaceSavings() float64 {
	return (1.0 - s.CompressionRatio()) * 100.0
}

// CreateCodec builds a Codec for kind. target names the caller for error
// messages (e.g. "module metadata", "string buffer").
func CreateCodec(kind format.CompressionKind, target string) (Codec, error) {
	switch kind {
	case format.CompressionRaw:
		return NewNoOpCompressor(), nil
	case format.CompressionZstd:
		return NewZstdCompressor(), nil
	default:
		return nil, fmt.Errorf("invalid %s compression: %s", target, kind)
	}
}

var builtinCodecs = map[format.CompressionKind]Codec{
	format.CompressionRaw:  NewNoOpCompressor(),
	format.CompressionZstd: NewZstdCompressor(),
}

// GetCodec retrieves a built-in Codec for kind.
func GetCodec(kind format.CompressionKind) (Codec, error) {
	if codec, ok := builtinCodecs[kind]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("unsupported compression kind: %s", kind)
}
