package modheader

import (
	"fmt"

	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/format"
	"github.com/RobLovegrove/umdf-go/iohelper"
	"github.com/RobLovegrove/umdf-go/primitives"
)

// ExtraFieldHandler is the subclass hook for header tags this package does
// not recognize (spec §4.E: "unknown tags go to a subclass hook"; §3:
// "Subclasses (e.g., image) MAY register extra tags"). Returning an error
// aborts the read.
type ExtraFieldHandler func(tag primitives.Tag, value []byte) error

// ReadResult pairs the parsed Header with the absolute offset of its
// IsCurrent value, needed later if the caller must demote this module.
type ReadResult struct {
	Header          Header
	IsCurrentOffset int64
}

// Read parses a module header starting at the stream's current position.
// extra is invoked for any tag Read does not itself understand; pass nil to
// treat every unknown tag as a hard error.
func Read(s *iohelper.Stream, extra ExtraFieldHandler) (ReadResult, error) {
	tag, value, err := primitives.ReadTLV(s)
	if err != nil {
		return ReadResult{}, fmt.Errorf("modheader: read HeaderSize record: %w", err)
	}
	if tag != primitives.TagHeaderSize || len(value) != 4 {
		return ReadResult{}, fmt.Errorf("%w: module header must begin with HeaderSize", errs.ErrInvalidHeaderSize)
	}
	headerSize := le32(value)

	var h Header
	var res ReadResult
	var consumed uint32 = 9 // the HeaderSize record itself (5-byte TLV header + 4-byte value)

	for consumed < headerSize {
		valueOffset, err := s.Tell()
		if err != nil {
			return ReadResult{}, fmt.Errorf("modheader: tell before tag: %w", err)
		}

		tag, value, err := primitives.ReadTLV(s)
		if err != nil {
			return ReadResult{}, fmt.Errorf("modheader: read TLV: %w", err)
		}
		consumed += 5 + uint32(len(value))

		switch tag {
		case TagStringBufferSize:
			h.StringBufferSize = le64(value)
		case TagMetadataSize:
			h.MetadataSize = le64(value)
		case TagDataSize:
			h.DataSize = le64(value)
		case TagIsCurrent:
			h.IsCurrent = value[0] != 0
			res.IsCurrentOffset = valueOffset + 5
		case TagPreviousVersion:
			h.PreviousVersion = le64(value)
		case TagModuleType:
			h.ModuleType = format.ParseModuleType(string(value))
		case TagSchemaPath:
			h.SchemaPath = string(value)
		case TagMetadataCompression:
			h.MetadataCompression = format.CompressionKind(value[0])
		case TagDataCompression:
			h.DataCompression = format.CompressionKind(value[0])
		case TagEncryptionType:
			h.EncryptionType = format.EncryptionKind(value[0])
		case TagModuleSalt:
			h.ModuleSalt = value
		case TagIV:
			h.IV = value
		case TagAuthTag:
			h.AuthTag = value
		case TagEndianness:
			h.LittleEndian = value[0] != 0
		case TagModuleID:
			h.ModuleID = primitives.FromBytes(value)
		case TagCreatedAt:
			h.CreatedAt = primitives.DateTime(leI64(value))
		case TagModifiedAt:
			h.ModifiedAt = primitives.DateTime(leI64(value))
		case TagCreatedBy:
			h.CreatedBy = string(value)
		case TagModifiedBy:
			h.ModifiedBy = string(value)
		default:
			if extra == nil {
				return ReadResult{}, fmt.Errorf("%w: tag %d", errs.ErrUnknownTag, tag)
			}
			if err := extra(tag, value); err != nil {
				return ReadResult{}, fmt.Errorf("modheader: subclass hook for tag %d: %w", tag, err)
			}
		}
	}

	if consumed != headerSize {
		return ReadResult{}, fmt.Errorf("%w: declared %d, walked %d", errs.ErrHeaderSizeMismatch, headerSize, consumed)
	}

	res.Header = h
	return res, nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func le64(b []byte) uint64 {
	var buf [8]byte
	copy(buf[:], b)
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v
}

func leI64(b []byte) int64 {
	return int64(le64(b))
}

// UpdateIsCurrent overwrites the IsCurrent byte at offset (as returned in
// ReadResult.IsCurrentOffset by a prior Read, or WriteResult.IsCurrentOffset
// by a prior Write) in place (spec §4.E updateIsCurrent).
func UpdateIsCurrent(s *iohelper.Stream, offset int64, isCurrent bool) error {
	var v byte
	if isCurrent {
		v = 1
	}
	return s.PatchByteAt(offset, v)
}

// ReadAt is a convenience wrapper that seeks s to moduleStartOffset before
// delegating to Read.
func ReadAt(s *iohelper.Stream, moduleStartOffset int64, extra ExtraFieldHandler) (ReadResult, error) {
	if err := s.SeekTo(moduleStartOffset); err != nil {
		return ReadResult{}, fmt.Errorf("modheader: seek to module start %d: %w", moduleStartOffset, err)
	}
	return Read(s, extra)
}
