package imagecodec

import (
	"fmt"

	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/format"
)

// Strategy compresses and decompresses a single frame's raw pixel bytes.
// width/height describe one frame (the image's first two dimensions);
// channels and bitDepth come from the image's metadata.
type Strategy interface {
	Compress(raw []byte, width, height int, channels, bitDepth uint8) ([]byte, error)
	Decompress(compressed []byte) ([]byte, error)
	Supports(channels, bitDepth uint8) bool
}

// New returns the Strategy for kind (spec §4.F compression factory
// indirection).
func New(kind format.CompressionKind) (Strategy, error) {
	switch kind {
	case format.CompressionRaw:
		return rawStrategy{}, nil
	case format.CompressionPNG:
		return pngStrategy{}, nil
	case format.CompressionJPEG2000Lossles:
		return jp2Strategy{}, nil
	default:
		return nil, fmt.Errorf("%w: compression kind %s", errs.ErrUnsupportedFormat, kind)
	}
}
