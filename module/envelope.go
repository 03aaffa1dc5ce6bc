package module

import (
	"fmt"

	"github.com/RobLovegrove/umdf-go/compress"
	"github.com/RobLovegrove/umdf-go/crypto"
	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/format"
	"github.com/RobLovegrove/umdf-go/iohelper"
	"github.com/RobLovegrove/umdf-go/primitives"
)

// XrefAdder is the narrow slice of xref.Table's surface WriteBinary needs,
// kept as an interface here so module does not depend on the xref package
// (spec §4.F step 5: "call xref.add(type, id, absoluteStart, totalModuleSize)").
type XrefAdder interface {
	AddEntry(moduleType format.ModuleType, id primitives.UUID, offset int64, size uint64)
}

// EncryptionContext supplies the password and KDF tuning a module needs to
// derive its per-module key when Header.EncryptionType is not
// EncryptionNone. Leave nil for plaintext modules.
type EncryptionContext struct {
	Password string
	Params   crypto.KDFParams
}

// WriteResult reports where a module landed and how large it ended up.
type WriteResult struct {
	ModuleStartOffset int64
	TotalSize         uint64
}

// WriteBinary assembles and writes the module's envelope starting at the
// stream's current position (spec §4.F writeBinary), choosing the plain,
// zstd-compressed-metadata, or AEAD-encrypted path from the header's
// current Compression/EncryptionType fields, then patches the header's
// size (and, if encrypted, salt/IV/auth-tag) fields once the real values
// are known.
func (m *TabularModule) WriteBinary(s *iohelper.Stream, xref XrefAdder, enc *EncryptionContext) (WriteResult, error) {
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
		return WriteResult{}, fmt.Errorf("module: tell at module start: %w", err)
	}

	writeRes, err := m.Header.Write(s)
	if err != nil {
		return WriteResult{}, err
	}

	stringBufferBytes := m.strBuf.Bytes()
	metadataBytes := concatRows(m.metaRows)
	dataBytes := concatRows(m.dataRows)

	var sBS, mS, dS uint64
	var iv, authTag []byte

	switch {
	case m.Header.EncryptionType != format.EncryptionNone:
		if enc == nil {
			return WriteResult{}, fmt.Errorf("module: header requests encryption but no EncryptionContext was supplied")
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
		return WriteResult{}, fmt.Errorf("module: tell at module end: %w", err)
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

// writePlain writes the string buffer, metadata rows, and data payload
// sequentially with no compression or encryption (spec §4.F: "plain,
// uncompressed").
func (m *TabularModule) writePlain(s *iohelper.Stream, stringBuf, metadata, data []byte) (sBS, mS, dS uint64, err error) {
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

// writeCompressedMetadata fuses stringBufferSize‖metadataSize‖stringBuffer
// ‖metadata into one buffer, compresses it as a unit, and writes the
// result in place of the metadata section; on-disk stringBufferSize is 0
// since the string buffer no longer has its own section (spec §4.F:
// "compressed metadata (ZSTD)").
func (m *TabularModule) writeCompressedMetadata(s *iohelper.Stream, stringBuf, metadata, data []byte) (sBS, mS, dS uint64, err error) {
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

// writeEncrypted builds the AEAD plaintext sBS:u64‖mS:u64‖dS:u64‖
// stringBuffer‖metadata‖data (each of the three buffers optionally already
// compressed per the header's own compression fields), encrypts it with a
// key derived from enc, and writes the ciphertext in place of the whole
// envelope (spec §4.F: "encrypted"; §6 module payload envelope table).
func (m *TabularModule) writeEncrypted(s *iohelper.Stream, enc *EncryptionContext, stringBuf, metadata, data []byte) (sBS, mS, dS uint64, iv, authTag []byte, err error) {
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

func writeAll(s *iohelper.Stream, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	_, err := s.Write(data)
	if err != nil {
		return fmt.Errorf("module: write %d bytes: %w", len(data), err)
	}
	return nil
}

func concatRows(rows [][]byte) []byte {
	total := 0
	for _, r := range rows {
		total += len(r)
	}
	out := make([]byte, 0, total)
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}
