package imagecodec

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/RobLovegrove/umdf-go/errs"
)

// pngStrategy implements format.CompressionPNG with the standard library's
// lossless PNG codec (spec §4.F image compression strategies; §1 treats
// image codecs as pluggable strategies behind this narrow interface).
//
// It supports 8-bit grayscale (1 channel), truecolor (3 channels), and
// truecolor+alpha (4 channels) frames — the three layouts image/png's
// encoder can round-trip without inventing a custom color model. Channel
// count survives the round trip because png.Encoder picks its PNG color
// type from whether the image reports itself fully opaque: a 3-channel
// frame is built opaque (A=0xFF everywhere) so the encoder emits color
// type 2 (no alpha channel on disk) and the decoder hands back *image.RGBA;
// a 4-channel frame carries real alpha and round-trips as *image.NRGBA.
type pngStrategy struct{}

var _ Strategy = pngStrategy{}

func (pngStrategy) Supports(channels, bitDepth uint8) bool {
	if bitDepth != 8 {
		return false
	}
	switch channels {
	case 1, 3, 4:
		return true
	default:
		return false
	}
}

func (s pngStrategy) Compress(raw []byte, width, height int, channels, bitDepth uint8) ([]byte, error) {
	if !s.Supports(channels, bitDepth) {
		return nil, fmt.Errorf("%w: PNG does not support %d channels at %d bits", errs.ErrUnsupportedCodec, channels, bitDepth)
	}
	if len(raw) != width*height*int(channels) {
		return nil, fmt.Errorf("%w: frame is %d bytes, expected %d", errs.ErrFrameSizeMismatch, len(raw), width*height*int(channels))
	}

	img, err := toImage(raw, width, height, channels)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("imagecodec: PNG encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (pngStrategy) Decompress(compressed []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("imagecodec: PNG decode: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	switch px := img.(type) {
	case *image.Gray:
		out := make([]byte, w*h)
		copy(out, px.Pix)
		return out, nil
	case *image.RGBA:
		out := make([]byte, 0, w*h*3)
		for i := 0; i < len(px.Pix); i += 4 {
			out = append(out, px.Pix[i], px.Pix[i+1], px.Pix[i+2])
		}
		return out, nil
	case *image.NRGBA:
		out := make([]byte, w*h*4)
		copy(out, px.Pix)
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unexpected decoded PNG color model %T", errs.ErrUnsupportedCodec, img)
	}
}

func toImage(raw []byte, width, height int, channels uint8) (image.Image, error) {
	switch channels {
	case 1:
		img := image.NewGray(image.Rect(0, 0, width, height))
		copy(img.Pix, raw)
		return img, nil
	case 3:
		img := image.NewNRGBA(image.Rect(0, 0, width, height))
		for i := 0; i < width*height; i++ {
			img.Pix[4*i] = raw[3*i]
			img.Pix[4*i+1] = raw[3*i+1]
			img.Pix[4*i+2] = raw[3*i+2]
			img.Pix[4*i+3] = 0xFF
		}
		return img, nil
	case 4:
		img := image.NewNRGBA(image.Rect(0, 0, width, height))
		copy(img.Pix, raw)
		return img, nil
	default:
		return nil, fmt.Errorf("%w: PNG does not support %d channels", errs.ErrUnsupportedCodec, channels)
	}
}
