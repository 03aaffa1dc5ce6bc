package imagemod

import (
	"fmt"
	"io"

	"github.com/RobLovegrove/umdf-go/compress"
	"github.com/RobLovegrove/umdf-go/crypto"
	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/format"
	"github.com/RobLovegrove/umdf-go/iohelper"
	"github.com/RobLovegrove/umdf-go/modheader"
	"github.com/RobLovegrove/umdf-go/primitives"
)

// XrefAdder mirrors module.XrefAdder: the narrow xref.Table surface
// WriteBinary needs, kept local so imagemod does not depend on xref.
type XrefAdder interface {
	AddEntry(moduleType format.ModuleType, id primitives.UUID, offset int64, size uint64)
}

// EncryptionContext mirrors module.EncryptionContext.
type EncryptionContext struct {
	Password string
	Params   crypto.KDFParams
}

// WriteResult reports where the image module landed and how large it ended
// up, mirroring module.WriteResult.
type WriteResult struct {
	ModuleStartOffset int64
	TotalSize         uint64
}

// WriteBinary assembles and writes the image module's envelope: the
// metadata section is the single image_structure row, and the data section
// is every frame's own already-self-contained sub-module bytes concatenated
// in order (spec §4.G: "owns ordered child FrameData blocks written as
// embedded sub-modules"). The outer envelope's own compression/encryption
// settings then apply uniformly to that concatenated blob, exactly the way
// module.TabularModule's three paths apply to its metadata/data rows (spec
// §4.F), since each frame already carries its own pixel-level encoding
// chosen independently via Header.DataCompression on the frame itself.
func (m *ImageModule) WriteBinary(s *iohelper.Stream, xref XrefAdder, enc *EncryptionContext) (WriteResult, error) {
	if m.Header.EncryptionType != format.EncryptionNone {
		salt, err := crypto.NewModuleSalt()
		if err != nil {
			return WriteResult{}, err
		}
		m.Header.ModuleSalt = salt
		m.Header.IV = make([]byte, 12)
		m.Header.AuthTag = make([]byte, 16)
	}

	moduleStart, err := s.Tell()
	if err != nil {
		return WriteResult{}, fmt.Errorf("imagemod: tell at module start: %w", err)
	}

	writeRes, err := m.Header.Write(s)
	if err != nil {
		return WriteResult{}, err
	}

	dataBytes, err := m.concatFrames()
	if err != nil {
		return WriteResult{}, err
	}
	stringBufferBytes := m.strBuf.Bytes()
	metadataBytes := m.metaRow

	var sBS, mS, dS uint64
	var iv, authTag []byte

	switch {
	case m.Header.EncryptionType != format.EncryptionNone:
		if enc == nil {
			return WriteResult{}, fmt.Errorf("imagemod: header requests encryption but no EncryptionContext was supplied")
		}
		sBS, mS, dS, iv, authTag, err = m.writeEncrypted(s, enc, stringBufferBytes, metadataBytes, dataBytes)
	case m.Header.MetadataCompression != format.CompressionRaw:
		sBS, mS, dS, err = m.writeCompressedMetadata(s, stringBufferBytes, metadataBytes, dataBytes)
	default:
		sBS, mS, dS, err = m.writePlain(s, stringBufferBytes, metadataBytes, dataBytes)
	}
	if err != nil {
		return WriteResult{}, err
	}

	moduleEnd, err := s.Tell()
	if err != nil {
		return WriteResult{}, fmt.Errorf("imagemod: tell at module end: %w", err)
	}

	totalSize := uint64(moduleEnd - moduleStart)
	expected := uint64(writeRes.HeaderSize) + sBS + mS + dS
	if totalSize != expected {
		return WriteResult{}, fmt.Errorf("%w: wrote %d bytes, header declares %d", errs.ErrSizeMismatch, totalSize, expected)
	}

	s.DeferPatch(writeRes.StringBufferSizeOffset, primitives.PutUint64(sBS))
	s.DeferPatch(writeRes.MetadataSizeOffset, primitives.PutUint64(mS))
	s.DeferPatch(writeRes.DataSizeOffset, primitives.PutUint64(dS))
	if iv != nil {
		s.DeferPatch(writeRes.IVOffset, iv)
		s.DeferPatch(writeRes.AuthTagOffset, authTag)
	}
	if err := s.ApplyPatches(); err != nil {
		return WriteResult{}, err
	}

	m.Header.StringBufferSize = sBS
	m.Header.MetadataSize = mS
	m.Header.DataSize = dS
	if iv != nil {
		m.Header.IV = iv
		m.Header.AuthTag = authTag
	}

	if xref != nil {
		xref.AddEntry(m.Header.ModuleType, m.Header.ModuleID, moduleStart, totalSize)
	}

	return WriteResult{ModuleStartOffset: moduleStart, TotalSize: totalSize}, nil
}

// concatFrames serializes every frame (each already includes its own
// header and compressed pixel payload) into one contiguous blob, in order.
func (m *ImageModule) concatFrames() ([]byte, error) {
	var out []byte
	for i, frame := range m.Frames {
		b, err := frame.writeBinary()
		if err != nil {
			return nil, fmt.Errorf("imagemod: write frame %d: %w", i, err)
		}
		out = append(out, b...)
	}
	return out, nil
}

func (m *ImageModule) writePlain(s *iohelper.Stream, stringBuf, metadata, data []byte) (sBS, mS, dS uint64, err error) {
	if err = writeAll(s, stringBuf); err != nil {
		return
	}
	if err = writeAll(s, metadata); err != nil {
		return
	}
	dataOut, err := maybeCompress(m.Header.DataCompression, data)
	if err != nil {
		return
	}
	if err = writeAll(s, dataOut); err != nil {
		return
	}
	return uint64(len(stringBuf)), uint64(len(metadata)), uint64(len(dataOut)), nil
}

func (m *ImageModule) writeCompressedMetadata(s *iohelper.Stream, stringBuf, metadata, data []byte) (sBS, mS, dS uint64, err error) {
	combined := make([]byte, 0, 16+len(stringBuf)+len(metadata))
	combined = append(combined, primitives.PutUint64(uint64(len(stringBuf)))...)
	combined = append(combined, primitives.PutUint64(uint64(len(metadata)))...)
	combined = append(combined, stringBuf...)
	combined = append(combined, metadata...)

	codec, err := compress.GetCodec(m.Header.MetadataCompression)
	if err != nil {
		return
	}
	compressed, err := codec.Compress(combined)
	if err != nil {
		return
	}
	if err = writeAll(s, compressed); err != nil {
		return
	}

	dataOut, err := maybeCompress(m.Header.DataCompression, data)
	if err != nil {
		return
	}
	if err = writeAll(s, dataOut); err != nil {
		return
	}

	return 0, uint64(len(compressed)), uint64(len(dataOut)), nil
}

func (m *ImageModule) writeEncrypted(s *iohelper.Stream, enc *EncryptionContext, stringBuf, metadata, data []byte) (sBS, mS, dS uint64, iv, authTag []byte, err error) {
	sBuf, err := maybeCompress(m.Header.MetadataCompression, stringBuf)
	if err != nil {
		return
	}
	metaBuf, err := maybeCompress(m.Header.MetadataCompression, metadata)
	if err != nil {
		return
	}
	dataBuf, err := maybeCompress(m.Header.DataCompression, data)
	if err != nil {
		return
	}

	plaintext := make([]byte, 0, 24+len(sBuf)+len(metaBuf)+len(dataBuf))
	plaintext = append(plaintext, primitives.PutUint64(uint64(len(sBuf)))...)
	plaintext = append(plaintext, primitives.PutUint64(uint64(len(metaBuf)))...)
	plaintext = append(plaintext, primitives.PutUint64(uint64(len(dataBuf)))...)
	plaintext = append(plaintext, sBuf...)
	plaintext = append(plaintext, metaBuf...)
	plaintext = append(plaintext, dataBuf...)

	key, err := crypto.DeriveKey(enc.Password, enc.Params, m.Header.ModuleSalt)
	if err != nil {
		return
	}
	sealed, err := crypto.Encrypt(key, plaintext, nil)
	if err != nil {
		return
	}
	if err = writeAll(s, sealed.Ciphertext); err != nil {
		return
	}

	return 0, 0, uint64(len(sealed.Ciphertext)), sealed.IV, sealed.AuthTag, nil
}

func maybeCompress(kind format.CompressionKind, data []byte) ([]byte, error) {
	if kind == format.CompressionRaw {
		return data, nil
	}
	codec, err := compress.GetCodec(kind)
	if err != nil {
		return nil, err
	}
	return codec.Compress(data)
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

func writeAll(s *iohelper.Stream, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	_, err := s.Write(data)
	if err != nil {
		return fmt.Errorf("imagemod: write %d bytes: %w", len(data), err)
	}
	return nil
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

func le64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
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
