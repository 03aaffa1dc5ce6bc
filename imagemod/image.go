// Package imagemod implements the ImageData module variant (spec §4.G): an
// N-dimensional collection of frames whose shared structure — dimensions,
// channel count, bit depth, pixel encoding — lives in a single metadata
// row by the image_structure convention, with the frames themselves
// written as embedded Frame sub-modules (spec §4.G: "owns ordered child
// FrameData blocks written as embedded sub-modules").
package imagemod

import (
	"fmt"

	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/field"
	"github.com/RobLovegrove/umdf-go/format"
	"github.com/RobLovegrove/umdf-go/modheader"
	"github.com/RobLovegrove/umdf-go/primitives"
	"github.com/RobLovegrove/umdf-go/schema"
	"github.com/RobLovegrove/umdf-go/stringbuf"
)

// structure is the image_structure metadata convention every image
// schema document is expected to declare under properties.metadata (spec
// §4.G: "Image subclass: owns dimensions:[u16], dimensionNames:[string],
// bitDepth:u8, channels:u8, encoding:CompressionKind, frameSchemaPath").
type structure struct {
	Dimensions      []int
	DimensionNames  []string
	BitDepth        uint8
	Channels        uint8
	Encoding        format.CompressionKind
	FrameSchemaPath string
}

// ImageModule is the image variant of DataModule.
type ImageModule struct {
	Header modheader.Header

	metaCodec *field.RowCodec
	strBuf    *stringbuf.Buffer
	metaRow   []byte

	structure structure
	Frames    []*FrameModule
}

// New loads schemaPath's metadata sub-schema (the image_structure
// convention) through res and constructs an empty image module.
func New(res *schema.Resolver, schemaPath string, id primitives.UUID, author string) (*ImageModule, error) {
	doc, err := res.GetByPath(schemaPath)
	if err != nil {
		return nil, err
	}

	metaNode, frameSchemaPath, err := imageSchemaSections(schemaPath, doc)
	if err != nil {
		return nil, err
	}

	metaTree, err := field.Parse(res, schemaPath, metaNode)
	if err != nil {
		return nil, fmt.Errorf("imagemod: parse metadata schema: %w", err)
	}

	now := primitives.Now()
	return &ImageModule{
		Header: modheader.Header{
			IsCurrent:           true,
			ModuleType:          format.ModuleTypeImage,
			SchemaPath:          schemaPath,
			MetadataCompression: format.CompressionRaw,
			DataCompression:     format.CompressionRaw,
			EncryptionType:      format.EncryptionNone,
			LittleEndian:        true,
			ModuleID:            id,
			CreatedAt:           now,
			ModifiedAt:          now,
			CreatedBy:           author,
			ModifiedBy:          author,
		},
		metaCodec: field.NewRowCodec(metaTree),
		strBuf:    stringbuf.New(),
		structure: structure{FrameSchemaPath: frameSchemaPath},
	}, nil
}

// imageSchemaSections pulls the "metadata" object schema and, when present,
// the $ref target of properties.data.properties.frames (spec §4.G:
// "frameSchemaPath (extracted from data.frames.$ref)") out of an image
// module schema document.
func imageSchemaSections(schemaPath string, doc any) (metadata any, frameSchemaPath string, err error) {
	docMap, ok := doc.(map[string]any)
	if !ok {
		return nil, "", fmt.Errorf("%w: %s: schema root must be an object", errs.ErrUnsupportedFormat, schemaPath)
	}
	props, ok := docMap["properties"].(map[string]any)
	if !ok {
		return nil, "", fmt.Errorf("%w: %s: schema missing top-level properties", errs.ErrUnsupportedFormat, schemaPath)
	}
	metadata, ok = props["metadata"]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s: schema missing properties.metadata", errs.ErrUnsupportedFormat, schemaPath)
	}

	if dataNode, ok := props["data"].(map[string]any); ok {
		if dataProps, ok := dataNode["properties"].(map[string]any); ok {
			if framesNode, ok := dataProps["frames"].(map[string]any); ok {
				if ref, ok := framesNode["$ref"].(string); ok {
					frameSchemaPath = ref
				}
			}
		}
	}

	return metadata, frameSchemaPath, nil
}

// SetStructure records the image's dimensions, channel layout, bit depth,
// and pixel encoding, and encodes the corresponding image_structure
// metadata row (spec §4.G). dimensions[0]/dimensions[1] are width/height;
// any further dimensions multiply out to the expected frame count.
func (m *ImageModule) SetStructure(dimensions []int, dimensionNames []string, channels, bitDepth uint8, encoding format.CompressionKind) error {
	if len(dimensions) < 2 {
		return fmt.Errorf("%w: image requires at least width and height dimensions", errs.ErrArrayLengthOutOfRange)
	}

	m.structure.Dimensions = dimensions
	m.structure.DimensionNames = dimensionNames
	m.structure.Channels = channels
	m.structure.BitDepth = bitDepth
	m.structure.Encoding = encoding

	row := map[string]any{
		"dimensions": intsToAny(dimensions),
		"bit_depth":  float64(bitDepth),
		"channels":   float64(channels),
		"encoding":   float64(encoding),
	}
	if len(dimensionNames) > 0 {
		row["dimension_names"] = stringsToAny(dimensionNames)
	}
	if m.structure.FrameSchemaPath != "" {
		row["frame_schema_path"] = m.structure.FrameSchemaPath
	}

	encoded, err := m.metaCodec.Encode(row, m.strBuf)
	if err != nil {
		return err
	}
	m.metaRow = encoded
	return nil
}

// frameCount is the product of every dimension beyond the first two (spec
// §4.G: "Frame count = product of dimensions beyond the first two; must
// match input frame count").
func (m *ImageModule) frameCount() int {
	count := 1
	for _, d := range m.structure.Dimensions[2:] {
		count *= d
	}
	return count
}

// AddFrames validates framePixels against the image's declared structure
// and builds one FrameModule per entry, in order (spec §4.G: "must match
// input frame count"). SetStructure must be called first.
func (m *ImageModule) AddFrames(framePixels [][]byte, author string) error {
	if m.structure.Dimensions == nil {
		return fmt.Errorf("%w: SetStructure must be called before AddFrames", errs.ErrUnsupportedFormat)
	}
	if want := m.frameCount(); len(framePixels) != want {
		return fmt.Errorf("%w: got %d frames, expected %d", errs.ErrFrameCountMismatch, len(framePixels), want)
	}

	width, height := m.structure.Dimensions[0], m.structure.Dimensions[1]
	for _, pixels := range framePixels {
		frame := NewFrame(primitives.NewUUID(), width, height, m.structure.Channels, m.structure.BitDepth, m.structure.Encoding, author)
		if err := frame.SetPixels(pixels); err != nil {
			return err
		}
		m.Frames = append(m.Frames, frame)
	}
	return nil
}

// ModuleData is the materialized view returned by GetModuleData.
type ModuleData struct {
	Dimensions     []int
	DimensionNames []string
	BitDepth       uint8
	Channels       uint8
	Encoding       format.CompressionKind
	Frames         [][]byte // decoded pixel bytes, one entry per frame
}

// GetModuleData decodes the structure row and returns every frame's pixel
// bytes. Frames are decompressed when the module is read (FromStream), not
// in this call; GetModuleData only returns the already decoded bytes.
func (m *ImageModule) GetModuleData() (ModuleData, error) {
	decoded, err := m.metaCodec.Decode(m.metaRow, m.strBuf)
	if err != nil {
		return ModuleData{}, err
	}

	dims, err := anyToInts(decoded["dimensions"])
	if err != nil {
		return ModuleData{}, err
	}

	out := ModuleData{
		Dimensions: dims,
		BitDepth:   uint8(decoded["bit_depth"].(int64)),
		Channels:   uint8(decoded["channels"].(int64)),
		Encoding:   format.CompressionKind(decoded["encoding"].(int64)),
	}
	if names, ok := decoded["dimension_names"]; ok {
		out.DimensionNames, err = anyToStrings(names)
		if err != nil {
			return ModuleData{}, err
		}
	}

	for _, frame := range m.Frames {
		out.Frames = append(out.Frames, frame.GetPixels())
	}

	return out, nil
}

func intsToAny(ints []int) []any {
	out := make([]any, len(ints))
	for i, v := range ints {
		out[i] = float64(v)
	}
	return out
}

func stringsToAny(strs []string) []any {
	out := make([]any, len(strs))
	for i, v := range strs {
		out[i] = v
	}
	return out
}

func anyToInts(v any) ([]int, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: dimensions: expected array", errs.ErrWrongJSONType)
	}
	out := make([]int, len(items))
	for i, item := range items {
		n, ok := item.(int64)
		if !ok {
			return nil, fmt.Errorf("%w: dimensions[%d]: expected integer", errs.ErrWrongJSONType, i)
		}
		out[i] = int(n)
	}
	return out, nil
}

func anyToStrings(v any) ([]string, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: dimension_names: expected array", errs.ErrWrongJSONType)
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%w: dimension_names[%d]: expected string", errs.ErrWrongJSONType, i)
		}
		out[i] = s
	}
	return out, nil
}
