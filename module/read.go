package module

import (
	"fmt"
	"io"

	"github.com/RobLovegrove/umdf-go/compress"
	"github.com/RobLovegrove/umdf-go/crypto"
	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/field"
	"github.com/RobLovegrove/umdf-go/format"
	"github.com/RobLovegrove/umdf-go/iohelper"
	"github.com/RobLovegrove/umdf-go/modheader"
	"github.com/RobLovegrove/umdf-go/schema"
	"github.com/RobLovegrove/umdf-go/stringbuf"
)

// FromStream reads a tabular module's header and envelope starting at
// moduleStartOffset (spec §4.F fromStream). The schema is re-resolved from
// the header's own SchemaPath so the returned module's field trees match
// whatever produced the bytes on disk.
func FromStream(s *iohelper.Stream, res *schema.Resolver, moduleStartOffset int64, enc *EncryptionContext) (*TabularModule, error) {
	readRes, err := modheader.ReadAt(s, moduleStartOffset, nil)
	if err != nil {
		return nil, err
	}
	h := readRes.Header
	if h.ModuleType != format.ModuleTypeTabular {
		return nil, fmt.Errorf("%w: expected Tabular module, got %s", errs.ErrUnsupportedType, h.ModuleType)
	}

	doc, err := res.GetByPath(h.SchemaPath)
	if err != nil {
		return nil, err
	}
	metaNode, dataNode, err := schemaSections(h.SchemaPath, doc)
	if err != nil {
		return nil, err
	}
	metaTree, err := field.Parse(res, h.SchemaPath, metaNode)
	if err != nil {
		return nil, fmt.Errorf("module: parse metadata schema: %w", err)
	}
	dataTree, err := field.Parse(res, h.SchemaPath, dataNode)
	if err != nil {
		return nil, fmt.Errorf("module: parse data schema: %w", err)
	}

	m := &TabularModule{
		Header:    h,
		metaCodec: field.NewRowCodec(metaTree),
		dataCodec: field.NewRowCodec(dataTree),
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

	if m.metaRows, err = splitRows(m.metaCodec, metadataBytes); err != nil {
		return nil, err
	}
	if m.dataRows, err = splitRows(m.dataCodec, dataBytes); err != nil {
		return nil, err
	}

	return m, nil
}

func readPlain(s *iohelper.Stream, h modheader.Header) (stringBuf, metadata, data []byte, err error) {
	if stringBuf, err = readExact(s, h.StringBufferSize); err != nil {
		return
	}
	if metadata, err = readExact(s, h.MetadataSize); err != nil {
		return
	}
	rawData, err2 := readExact(s, h.DataSize)
	if err2 != nil {
		err = err2
		return
	}
	data, err = maybeDecompress(h.DataCompression, rawData)
	return
}

func readCompressedMetadata(s *iohelper.Stream, h modheader.Header) (stringBuf, metadata, data []byte, err error) {
	compressed, err := readExact(s, h.MetadataSize)
	if err != nil {
		return
	}
	codec, err := compress.GetCodec(h.MetadataCompression)
	if err != nil {
		return
	}
	combined, err := codec.Decompress(compressed)
	if err != nil {
		return
	}
	if len(combined) < 16 {
		err = fmt.Errorf("%w: compressed metadata envelope truncated", errs.ErrShortRead)
		return
	}
	sBS := le64(combined[0:8])
	mS := le64(combined[8:16])
	body := combined[16:]
	if uint64(len(body)) < sBS+mS {
		err = fmt.Errorf("%w: compressed metadata envelope truncated", errs.ErrShortRead)
		return
	}
	stringBuf = body[:sBS]
	metadata = body[sBS : sBS+mS]

	rawData, err2 := readExact(s, h.DataSize)
	if err2 != nil {
		err = err2
		return
	}
	data, err = maybeDecompress(h.DataCompression, rawData)
	return
}

func readEncrypted(s *iohelper.Stream, h modheader.Header, enc *EncryptionContext) (stringBuf, metadata, data []byte, err error) {
	ciphertext, err := readExact(s, h.DataSize)
	if err != nil {
		return
	}

	key, err := crypto.DeriveKey(enc.Password, enc.Params, h.ModuleSalt)
	if err != nil {
		return
	}
	plaintext, err := crypto.Decrypt(key, h.IV, ciphertext, h.AuthTag, nil)
	if err != nil {
		return
	}
	if len(plaintext) < 24 {
		err = fmt.Errorf("%w: decrypted envelope truncated", errs.ErrShortRead)
		return
	}
	sBS := le64(plaintext[0:8])
	mS := le64(plaintext[8:16])
	dS := le64(plaintext[16:24])
	body := plaintext[24:]
	if uint64(len(body)) < sBS+mS+dS {
		err = fmt.Errorf("%w: decrypted envelope truncated", errs.ErrShortRead)
		return
	}

	stringBuf, err = maybeDecompress(h.MetadataCompression, body[:sBS])
	if err != nil {
		return
	}
	metadata, err = maybeDecompress(h.MetadataCompression, body[sBS:sBS+mS])
	if err != nil {
		return
	}
	data, err = maybeDecompress(h.DataCompression, body[sBS+mS:sBS+mS+dS])
	return
}

func maybeDecompress(kind format.CompressionKind, data []byte) ([]byte, error) {
	if kind == format.CompressionRaw {
		return data, nil
	}
	codec, err := compress.GetCodec(kind)
	if err != nil {
		return nil, err
	}
	return codec.Decompress(data)
}

func readExact(s *iohelper.Stream, n uint64) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(s, buf); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrShortRead, err)
	}
	return buf, nil
}

func splitRows(codec *field.RowCodec, data []byte) ([][]byte, error) {
	var rows [][]byte
	for len(data) > 0 {
		n, err := codec.PeekLength(data)
		if err != nil {
			return nil, err
		}
		if n > len(data) {
			return nil, fmt.Errorf("%w: row overruns remaining bytes", errs.ErrShortRead)
		}
		rows = append(rows, data[:n])
		data = data[n:]
	}
	return rows, nil
}

func le64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
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
