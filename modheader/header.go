package modheader

import (
	"fmt"

	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/format"
	"github.com/RobLovegrove/umdf-go/iohelper"
	"github.com/RobLovegrove/umdf-go/primitives"
)

// Tag values for the module header TLV stream (spec §3 "Module header
// (TLV)"). TagHeaderSize (1) is defined in primitives; the rest are local
// to a module header.
const (
	TagStringBufferSize      primitives.Tag = 2
	TagMetadataSize          primitives.Tag = 3
	TagDataSize              primitives.Tag = 4
	TagIsCurrent             primitives.Tag = 5
	TagPreviousVersion       primitives.Tag = 6
	TagModuleType            primitives.Tag = 7
	TagSchemaPath            primitives.Tag = 8
	TagMetadataCompression   primitives.Tag = 9
	TagDataCompression       primitives.Tag = 10
	TagEncryptionType        primitives.Tag = 11
	TagModuleSalt            primitives.Tag = 12
	TagIV                    primitives.Tag = 13
	TagAuthTag               primitives.Tag = 14
	TagEndianness            primitives.Tag = 15
	TagModuleID              primitives.Tag = 16
	TagCreatedAt             primitives.Tag = 17
	TagModifiedAt            primitives.Tag = 18
	TagCreatedBy             primitives.Tag = 19
	TagModifiedBy            primitives.Tag = 20
)

// Header is one module's TLV header block (spec §4.E). StringBufferSize,
// MetadataSize, and DataSize are placeholders until the module's payload is
// written, at which point WriteResult's offsets let the caller patch them
// in place.
type Header struct {
	StringBufferSize     uint64
	MetadataSize         uint64
	DataSize             uint64
	IsCurrent            bool
	PreviousVersion      uint64
	ModuleType           format.ModuleType
	SchemaPath           string
	MetadataCompression  format.CompressionKind
	DataCompression      format.CompressionKind
	EncryptionType       format.EncryptionKind
	ModuleSalt           []byte
	IV                   []byte
	AuthTag              []byte
	LittleEndian         bool
	ModuleID             primitives.UUID
	CreatedAt            primitives.DateTime
	ModifiedAt           primitives.DateTime
	CreatedBy            string
	ModifiedBy           string
}

// WriteResult carries the absolute stream offsets of fields the caller must
// patch once the module's payload has actually been written (spec §4.E:
// "remembers stream position of every size/offset field").
type WriteResult struct {
	ModuleStartOffset      int64
	HeaderSize             uint32
	StringBufferSizeOffset int64
	MetadataSizeOffset     int64
	DataSizeOffset         int64
	IsCurrentOffset        int64

	// ModuleSaltOffset/IVOffset/AuthTagOffset are non-zero only when
	// EncryptionType != EncryptionNone. AuthTag (and typically IV) are not
	// known until the payload has been AEAD-encrypted, so the caller must
	// patch them here after Write returns, the same way it patches the
	// size fields (spec §4.F step 3: "store IV and authTag in header
	// TLVs" happens only once the envelope has actually been sealed).
	ModuleSaltOffset int64
	IVOffset         int64
	AuthTagOffset    int64
}

// Write emits h to s starting at the stream's current position, using
// placeholder values for StringBufferSize/MetadataSize/DataSize (whatever h
// currently holds; typically 0). The returned WriteResult records where
// those three fields and IsCurrent landed so the caller can patch them once
// the real sizes and currency state are known.
func (h *Header) Write(s *iohelper.Stream) (WriteResult, error) {
	start, err := s.Tell()
	if err != nil {
		return WriteResult{}, fmt.Errorf("modheader: tell at header start: %w", err)
	}

	headerSize, err := h.encodedSize()
	if err != nil {
		return WriteResult{}, err
	}

	if err := primitives.WriteTLV(s, primitives.TagHeaderSize, primitives.PutUint32(headerSize)); err != nil {
		return WriteResult{}, err
	}

	var res WriteResult
	res.ModuleStartOffset = start
	res.HeaderSize = headerSize

	if res.StringBufferSizeOffset, err = writeTLVRecording(s, TagStringBufferSize, primitives.PutUint64(h.StringBufferSize)); err != nil {
		return WriteResult{}, err
	}
	if res.MetadataSizeOffset, err = writeTLVRecording(s, TagMetadataSize, primitives.PutUint64(h.MetadataSize)); err != nil {
		return WriteResult{}, err
	}
	if res.DataSizeOffset, err = writeTLVRecording(s, TagDataSize, primitives.PutUint64(h.DataSize)); err != nil {
		return WriteResult{}, err
	}
	if res.IsCurrentOffset, err = writeTLVRecording(s, TagIsCurrent, primitives.PutUint8(boolToU8(h.IsCurrent))); err != nil {
		return WriteResult{}, err
	}

	if err := primitives.WriteTLV(s, TagPreviousVersion, primitives.PutUint64(h.PreviousVersion)); err != nil {
		return WriteResult{}, err
	}
	if err := primitives.WriteTLV(s, TagModuleType, []byte(h.ModuleType.String())); err != nil {
		return WriteResult{}, err
	}
	if err := primitives.WriteTLV(s, TagSchemaPath, []byte(h.SchemaPath)); err != nil {
		return WriteResult{}, err
	}
	if err := primitives.WriteTLV(s, TagMetadataCompression, primitives.PutUint8(uint8(h.MetadataCompression))); err != nil {
		return WriteResult{}, err
	}
	if err := primitives.WriteTLV(s, TagDataCompression, primitives.PutUint8(uint8(h.DataCompression))); err != nil {
		return WriteResult{}, err
	}
	if err := primitives.WriteTLV(s, TagEncryptionType, primitives.PutUint8(uint8(h.EncryptionType))); err != nil {
		return WriteResult{}, err
	}
	if h.EncryptionType != format.EncryptionNone {
		if res.ModuleSaltOffset, err = writeTLVRecording(s, TagModuleSalt, h.ModuleSalt); err != nil {
			return WriteResult{}, err
		}
		if res.IVOffset, err = writeTLVRecording(s, TagIV, h.IV); err != nil {
			return WriteResult{}, err
		}
		if res.AuthTagOffset, err = writeTLVRecording(s, TagAuthTag, h.AuthTag); err != nil {
			return WriteResult{}, err
		}
	}
	if err := primitives.WriteTLV(s, TagEndianness, primitives.PutUint8(boolToU8(h.LittleEndian))); err != nil {
		return WriteResult{}, err
	}
	if err := primitives.WriteTLV(s, TagModuleID, h.ModuleID.Bytes()); err != nil {
		return WriteResult{}, err
	}
	if err := primitives.WriteTLV(s, TagCreatedAt, primitives.PutInt64(int64(h.CreatedAt))); err != nil {
		return WriteResult{}, err
	}
	if err := primitives.WriteTLV(s, TagModifiedAt, primitives.PutInt64(int64(h.ModifiedAt))); err != nil {
		return WriteResult{}, err
	}
	if err := primitives.WriteTLV(s, TagCreatedBy, []byte(h.CreatedBy)); err != nil {
		return WriteResult{}, err
	}
	if err := primitives.WriteTLV(s, TagModifiedBy, []byte(h.ModifiedBy)); err != nil {
		return WriteResult{}, err
	}

	return res, nil
}

// writeTLVRecording writes one TLV record to s and returns the absolute
// stream offset its value starts at.
func writeTLVRecording(s *iohelper.Stream, tag primitives.Tag, value []byte) (int64, error) {
	if err := tlvHeaderOnly(s, tag, uint32(len(value))); err != nil {
		return 0, err
	}
	valueOffset, err := s.Tell()
	if err != nil {
		return 0, fmt.Errorf("modheader: tell before value for tag %d: %w", tag, err)
	}
	if len(value) > 0 {
		if _, err := s.Write(value); err != nil {
			return 0, fmt.Errorf("modheader: write value for tag %d: %w", tag, err)
		}
	}
	return valueOffset, nil
}

func tlvHeaderOnly(s *iohelper.Stream, tag primitives.Tag, length uint32) error {
	hdr := make([]byte, 5)
	hdr[0] = byte(tag)
	hdr[1] = byte(length)
	hdr[2] = byte(length >> 8)
	hdr[3] = byte(length >> 16)
	hdr[4] = byte(length >> 24)
	_, err := s.Write(hdr)
	if err != nil {
		return fmt.Errorf("modheader: write TLV header for tag %d: %w", tag, err)
	}
	return nil
}

func boolToU8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// EncodedSize computes the total header byte length (including the
// HeaderSize record itself) from h's current field values. Exported so a
// Reader walking an audit trail can reconstruct each prior version's total
// on-disk module size without re-reading its payload.
func (h *Header) EncodedSize() (uint32, error) {
	return h.encodedSize()
}

// encodedSize computes the total header byte length (including the
// HeaderSize record itself) from h's current field values, so HeaderSize
// can be written correctly in a single forward pass with no back-patch.
func (h *Header) encodedSize() (uint32, error) {
	const tlvOverhead = 5 // tag:u8 + length:u32

	size := tlvOverhead + 4 // HeaderSize record itself
	size += tlvOverhead + 8 // StringBufferSize
	size += tlvOverhead + 8 // MetadataSize
	size += tlvOverhead + 8 // DataSize
	size += tlvOverhead + 1 // IsCurrent
	size += tlvOverhead + 8 // PreviousVersion
	size += tlvOverhead + len(h.ModuleType.String())
	size += tlvOverhead + len(h.SchemaPath)
	size += tlvOverhead + 1 // MetadataCompression
	size += tlvOverhead + 1 // DataCompression
	size += tlvOverhead + 1 // EncryptionType
	if h.EncryptionType != format.EncryptionNone {
		size += tlvOverhead + len(h.ModuleSalt)
		size += tlvOverhead + len(h.IV)
		size += tlvOverhead + len(h.AuthTag)
	}
	size += tlvOverhead + 1  // Endianness
	size += tlvOverhead + 16 // ModuleID
	size += tlvOverhead + 8  // CreatedAt
	size += tlvOverhead + 8  // ModifiedAt
	size += tlvOverhead + len(h.CreatedBy)
	size += tlvOverhead + len(h.ModifiedBy)

	if size < 0 || size > int(^uint32(0)) {
		return 0, fmt.Errorf("%w: header size %d overflows u32", errs.ErrInvalidHeaderSize, size)
	}

	return uint32(size), nil
}
