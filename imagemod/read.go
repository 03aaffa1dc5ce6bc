package imagemod

import (
	"fmt"
	"io"

	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/field"
	"github.com/RobLovegrove/umdf-go/format"
	"github.com/RobLovegrove/umdf-go/iohelper"
	"github.com/RobLovegrove/umdf-go/modheader"
	"github.com/RobLovegrove/umdf-go/schema"
	"github.com/RobLovegrove/umdf-go/stringbuf"
)

// FromStream reads an image module's header and envelope starting at
// moduleStartOffset, then splits the reassembled data section back into
// individual frame sub-modules (spec §4.G fromStream).
func FromStream(s *iohelper.Stream, res *schema.Resolver, moduleStartOffset int64, enc *EncryptionContext) (*ImageModule, error) {
	readRes, err := modheader.ReadAt(s, moduleStartOffset, nil)
	if err != nil {
		return nil, err
	}
	h := readRes.Header
	if h.ModuleType != format.ModuleTypeImage {
		return nil, fmt.Errorf("%w: expected Image module, got %s", errs.ErrUnsupportedType, h.ModuleType)
	}

	doc, err := res.GetByPath(h.SchemaPath)
	if err != nil {
		return nil, err
	}
	metaNode, frameSchemaPath, err := imageSchemaSections(h.SchemaPath, doc)
	if err != nil {
		return nil, err
	}
	metaTree, err := field.Parse(res, h.SchemaPath, metaNode)
	if err != nil {
		return nil, fmt.Errorf("imagemod: parse metadata schema: %w", err)
	}

	m := &ImageModule{
		Header:    h,
		metaCodec: field.NewRowCodec(metaTree),
		structure: structure{FrameSchemaPath: frameSchemaPath},
	}

	var stringBufferBytes, metadataBytes, dataBytes []byte
	switch {
	case h.EncryptionType != format.EncryptionNone:
		if enc == nil {
			return nil, fmt.Errorf("%w: module is encrypted", errs.ErrPasswordRequired)
		}
		stringBufferBytes, metadataBytes, dataBytes, err = readEncrypted(s, h, enc)
	case h.MetadataCompression != format.CompressionRaw:
		stringBufferBytes, metadataBytes, dataBytes, err = readCompressedMetadata(s, h)
	default:
		stringBufferBytes, metadataBytes, dataBytes, err = readPlain(s, h)
	}
	if err != nil {
		return nil, err
	}

	m.strBuf, err = stringbuf.ReadFrom(&sliceReader{stringBufferBytes}, uint64(len(stringBufferBytes)))
	if err != nil {
		return nil, err
	}
	m.metaRow = metadataBytes

	decoded, err := m.metaCodec.Decode(m.metaRow, m.strBuf)
	if err != nil {
		return nil, fmt.Errorf("imagemod: decode structure row: %w", err)
	}
	dims, err := anyToInts(decoded["dimensions"])
	if err != nil {
		return nil, err
	}
	m.structure.Dimensions = dims
	m.structure.Channels = uint8(decoded["channels"].(int64))
	m.structure.BitDepth = uint8(decoded["bit_depth"].(int64))
	m.structure.Encoding = format.CompressionKind(decoded["encoding"].(int64))
	if names, ok := decoded["dimension_names"]; ok {
		if m.structure.DimensionNames, err = anyToStrings(names); err != nil {
			return nil, err
		}
	}

	width, height := dims[0], dims[1]
	for len(dataBytes) > 0 {
		frame, consumed, err := frameFromBytes(dataBytes, width, height, m.structure.Channels, m.structure.BitDepth)
		if err != nil {
			return nil, fmt.Errorf("imagemod: split frame %d: %w", len(m.Frames), err)
		}
		m.Frames = append(m.Frames, frame)
		dataBytes = dataBytes[consumed:]
	}

	if want := m.frameCount(); len(m.Frames) != want {
		return nil, fmt.Errorf("%w: stored %d frames, structure declares %d", errs.ErrFrameCountMismatch, len(m.Frames), want)
	}

	return m, nil
}

// sliceReader adapts a byte slice to io.Reader for stringbuf.ReadFrom.
type sliceReader struct {
	data []byte
}

func (r *sliceReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}
