package module

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

// TabularModule is the tabular variant of DataModule (spec §4.F): its data
// section is a list of JSON rows encoded with the same row codec used for
// metadata, rather than an image's embedded frame sub-modules.
type TabularModule struct {
	Header modheader.Header

	metaCodec *field.RowCodec
	dataCodec *field.RowCodec
	strBuf    *stringbuf.Buffer

	metaRows [][]byte
	dataRows [][]byte
}

// New loads schemaPath's metadata/data sub-schemas through res, builds
// their field trees, and constructs an empty tabular module ready to
// receive rows.
func New(res *schema.Resolver, schemaPath string, id primitives.UUID, author string) (*TabularModule, error) {
	doc, err := res.GetByPath(schemaPath)
	if err != nil {
		return nil, err
	}

	metaNode, dataNode, err := schemaSections(schemaPath, doc)
	if err != nil {
		return nil, err
	}

	metaTree, err := field.Parse(res, schemaPath, metaNode)
	if err != nil {
		return nil, fmt.Errorf("module: parse metadata schema: %w", err)
	}
	dataTree, err := field.Parse(res, schemaPath, dataNode)
	if err != nil {
		return nil, fmt.Errorf("module: parse data schema: %w", err)
	}

	now := primitives.Now()
	return &TabularModule{
		Header: modheader.Header{
			IsCurrent:           true,
			ModuleType:          format.ModuleTypeTabular,
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
		dataCodec: field.NewRowCodec(dataTree),
		strBuf:    stringbuf.New(),
		metaRows:  nil,
		dataRows:  nil,
	}, nil
}

// schemaSections pulls out the "metadata" and "data" object schemas from a
// module schema document's top-level properties (spec §4.F integration
// tests: "module_type"/"properties"/{"metadata","data"}).
func schemaSections(schemaPath string, doc any) (metadata, data any, err error) {
	docMap, ok := doc.(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s: schema root must be an object", errs.ErrUnsupportedFormat, schemaPath)
	}
	props, ok := docMap["properties"].(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s: schema missing top-level properties", errs.ErrUnsupportedFormat, schemaPath)
	}
	metadata, ok = props["metadata"]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s: schema missing properties.metadata", errs.ErrUnsupportedFormat, schemaPath)
	}
	data, ok = props["data"]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s: schema missing properties.data", errs.ErrUnsupportedFormat, schemaPath)
	}
	return metadata, data, nil
}

// AddMetadata validates and encodes one or more metadata rows (spec §4.F
// addMetadata: "if array, iterate rows; else single row").
func (m *TabularModule) AddMetadata(rows any) error {
	return addRows(m.metaCodec, m.strBuf, rows, &m.metaRows)
}

// AddData validates and encodes one or more tabular data rows (spec §4.F:
// "Tabular subclass: addData accepts a JSON array").
func (m *TabularModule) AddData(rows any) error {
	return addRows(m.dataCodec, m.strBuf, rows, &m.dataRows)
}

func addRows(codec *field.RowCodec, strBuf *stringbuf.Buffer, rows any, dest *[][]byte) error {
	switch v := rows.(type) {
	case []map[string]any:
		for _, row := range v {
			encoded, err := codec.Encode(row, strBuf)
			if err != nil {
				return err
			}
			*dest = append(*dest, encoded)
		}
	case []any:
		for _, row := range v {
			rowMap, ok := row.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: row must be an object", errs.ErrWrongJSONType)
			}
			encoded, err := codec.Encode(rowMap, strBuf)
			if err != nil {
				return err
			}
			*dest = append(*dest, encoded)
		}
	case map[string]any:
		encoded, err := codec.Encode(v, strBuf)
		if err != nil {
			return err
		}
		*dest = append(*dest, encoded)
	default:
		return fmt.Errorf("%w: row data must be an object or array of objects", errs.ErrWrongJSONType)
	}
	return nil
}

// ModuleData is the materialized view returned by GetModuleData (spec
// §4.F): one object per metadata row and per tabular data row.
type ModuleData struct {
	Metadata []map[string]any
	Data     []map[string]any
}

// GetModuleData decodes every stored row back into JSON-shaped maps.
func (m *TabularModule) GetModuleData() (ModuleData, error) {
	meta, err := decodeRows(m.metaCodec, m.strBuf, m.metaRows)
	if err != nil {
		return ModuleData{}, err
	}
	data, err := decodeRows(m.dataCodec, m.strBuf, m.dataRows)
	if err != nil {
		return ModuleData{}, err
	}
	return ModuleData{Metadata: meta, Data: data}, nil
}

func decodeRows(codec *field.RowCodec, strBuf *stringbuf.Buffer, rows [][]byte) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		decoded, err := codec.Decode(row, strBuf)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded)
	}
	return out, nil
}
