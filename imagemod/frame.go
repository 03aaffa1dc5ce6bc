package imagemod

import (
	"fmt"

	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/format"
	"github.com/RobLovegrove/umdf-go/imagecodec"
	"github.com/RobLovegrove/umdf-go/iohelper"
	"github.com/RobLovegrove/umdf-go/modheader"
	"github.com/RobLovegrove/umdf-go/primitives"
)

// FrameModule is one N-D image's single frame, written as an embedded
// sub-module reusing the generic module header+payload format with
// encryption always disabled (spec §4.G: "write each frame as an embedded
// sub-module... disabling encryption for nested frames"). A frame carries
// no metadata or string buffer of its own — the parent ImageModule's
// metadata row already records dimensions, channels, bit depth, and
// encoding for every frame alike.
type FrameModule struct {
	Header modheader.Header

	width, height int
	channels      uint8
	bitDepth      uint8
	pixels        []byte // decoded (raw) pixel bytes, set by SetPixels or decoded when the frame is read
}

// NewFrame builds an empty frame ready to receive pixel bytes, using kind
// as its on-disk pixel encoding (spec §4.G compression strategies
// "selected by CompressionKind").
func NewFrame(id primitives.UUID, width, height int, channels, bitDepth uint8, kind format.CompressionKind, author string) *FrameModule {
	now := primitives.Now()
	return &FrameModule{
		Header: modheader.Header{
			IsCurrent:           true,
			ModuleType:          format.ModuleTypeFrame,
			MetadataCompression: format.CompressionRaw,
			DataCompression:     kind,
			EncryptionType:      format.EncryptionNone,
			LittleEndian:        true,
			ModuleID:            id,
			CreatedAt:           now,
			ModifiedAt:          now,
			CreatedBy:           author,
			ModifiedBy:          author,
		},
		width: width, height: height, channels: channels, bitDepth: bitDepth,
	}
}

// SetPixels validates raw against the frame's declared dimensions and
// stores it; compression happens at WriteBinary time.
func (f *FrameModule) SetPixels(raw []byte) error {
	want := f.width * f.height * int(f.channels)
	if len(raw) != want {
		return fmt.Errorf("%w: got %d bytes, expected %d", errs.ErrFrameSizeMismatch, len(raw), want)
	}
	f.pixels = raw
	return nil
}

// GetPixels returns the frame's decoded pixel bytes.
func (f *FrameModule) GetPixels() []byte {
	return f.pixels
}

// writeBinary serializes the frame into its own byte-addressable buffer
// (an in-memory stream, since the parent image assembles every frame into
// a single data blob before the image's own envelope ever touches a real
// file) and returns the bytes.
func (f *FrameModule) writeBinary() ([]byte, error) {
	strategy, err := imagecodec.New(f.Header.DataCompression)
	if err != nil {
		return nil, err
	}
	compressed, err := strategy.Compress(f.pixels, f.width, f.height, f.channels, f.bitDepth)
	if err != nil {
		return nil, err
	}

	buf := newMemSeeker()
	s := iohelper.NewStream(buf)

	writeRes, err := f.Header.Write(s)
	if err != nil {
		return nil, err
	}
	if _, err := s.Write(compressed); err != nil {
		return nil, fmt.Errorf("imagemod: write frame pixels: %w", err)
	}

	s.DeferPatch(writeRes.StringBufferSizeOffset, primitives.PutUint64(0))
	s.DeferPatch(writeRes.MetadataSizeOffset, primitives.PutUint64(0))
	s.DeferPatch(writeRes.DataSizeOffset, primitives.PutUint64(uint64(len(compressed))))
	if err := s.ApplyPatches(); err != nil {
		return nil, err
	}

	f.Header.DataSize = uint64(len(compressed))
	return buf.Bytes(), nil
}

// frameFromBytes parses one frame sub-module from a byte slice positioned
// at the frame's own header start, returning the frame and the number of
// bytes it consumed so the caller can advance to the next frame.
func frameFromBytes(data []byte, width, height int, channels, bitDepth uint8) (*FrameModule, int, error) {
	s := iohelper.NewStream(&memSeeker{data: data})

	readRes, err := modheader.Read(s, nil)
	if err != nil {
		return nil, 0, err
	}
	h := readRes.Header
	if h.ModuleType != format.ModuleTypeFrame {
		return nil, 0, fmt.Errorf("%w: expected Frame module, got %s", errs.ErrUnsupportedType, h.ModuleType)
	}

	consumed, err := s.Tell()
	if err != nil {
		return nil, 0, fmt.Errorf("imagemod: tell after frame header: %w", err)
	}

	compressed := data[consumed : consumed+int64(h.DataSize)]

	strategy, err := imagecodec.New(h.DataCompression)
	if err != nil {
		return nil, 0, err
	}
	pixels, err := strategy.Decompress(compressed)
	if err != nil {
		return nil, 0, err
	}

	f := &FrameModule{
		Header: h, width: width, height: height, channels: channels, bitDepth: bitDepth,
		pixels: pixels,
	}
	return f, int(consumed) + int(h.DataSize), nil
}
