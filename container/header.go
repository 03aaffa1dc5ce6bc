// Package container owns the file-level framing every UMDF file starts
// with: the magic version line and the primary header TLV block (spec §4
// "Primary file header"). It also hosts the format version constants, the
// one piece of file-level state that doesn't belong to any single module.
package container

import (
	"fmt"
	"io"

	"github.com/RobLovegrove/umdf-go/crypto"
	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/format"
	"github.com/RobLovegrove/umdf-go/iohelper"
	"github.com/RobLovegrove/umdf-go/primitives"
)

// Tag values local to the primary header TLV block. TagHeaderSize (1) is
// reserved globally by primitives.
const (
	TagEncryptionType primitives.Tag = 2
	TagBaseSalt       primitives.Tag = 3
	TagMemoryCost     primitives.Tag = 4
	TagTimeCost       primitives.Tag = 5
	TagParallelism    primitives.Tag = 6
)

// Major and Minor are this build's format version, written into the magic
// line of every file it creates. A reader accepts any file whose Major
// matches (spec §6: "reader accepts any file whose major equals the tool's
// major").
const (
	Major = 1
	Minor = 0
)

func magicLine(major, minor int) string {
	return fmt.Sprintf("#UMDFv%d.%d\n", major, minor)
}

// Header is the primary file header: the container-wide encryption
// parameters (if any) every module's per-module key is derived from (spec
// §3 EncryptionParams, §4.I step 3).
type Header struct {
	EncryptionType format.EncryptionKind
	KDFParams      crypto.KDFParams // only meaningful when EncryptionType != EncryptionNone
}

// WriteResult records the total byte length of the primary header TLV block
// just written (the value of its HeaderSize record); the primary header's
// fields are fixed at creation time and never patched in place the way a
// module header's sizes are.
type WriteResult struct {
	HeaderSize int64
}

// Write emits the magic line followed by the primary header TLV block to s,
// starting at the stream's current position (expected to be offset 0).
func Write(s *iohelper.Stream, h Header) (WriteResult, error) {
	if _, err := s.Write([]byte(magicLine(Major, Minor))); err != nil {
		return WriteResult{}, fmt.Errorf("container: write magic line: %w", err)
	}

	records := [][]byte{primitives.PutUint8(uint8(h.EncryptionType))}
	if h.EncryptionType != format.EncryptionNone {
		if err := h.KDFParams.Validate(); err != nil {
			return WriteResult{}, err
		}
		records = append(records,
			h.KDFParams.BaseSalt[:],
			primitives.PutUint64(h.KDFParams.MemoryCost),
			primitives.PutUint32(h.KDFParams.TimeCost),
			primitives.PutUint32(h.KDFParams.Parallelism),
		)
	}

	headerSize := uint32(9) // the HeaderSize TLV itself: 5-byte frame + 4-byte value
	headerSize += 5 + uint32(len(records[0]))
	if h.EncryptionType != format.EncryptionNone {
		headerSize += 5 + uint32(len(records[1]))
		headerSize += 5 + uint32(len(records[2]))
		headerSize += 5 + uint32(len(records[3]))
		headerSize += 5 + uint32(len(records[4]))
	}

	if err := primitives.WriteTLV(s, primitives.TagHeaderSize, primitives.PutUint32(headerSize)); err != nil {
		return WriteResult{}, err
	}
	if err := primitives.WriteTLV(s, TagEncryptionType, records[0]); err != nil {
		return WriteResult{}, err
	}
	if h.EncryptionType != format.EncryptionNone {
		if err := primitives.WriteTLV(s, TagBaseSalt, records[1]); err != nil {
			return WriteResult{}, err
		}
		if err := primitives.WriteTLV(s, TagMemoryCost, records[2]); err != nil {
			return WriteResult{}, err
		}
		if err := primitives.WriteTLV(s, TagTimeCost, records[3]); err != nil {
			return WriteResult{}, err
		}
		if err := primitives.WriteTLV(s, TagParallelism, records[4]); err != nil {
			return WriteResult{}, err
		}
	}

	return WriteResult{HeaderSize: int64(headerSize)}, nil
}

// maxMagicLen bounds the magic-line scan below so a corrupt file missing
// its newline entirely can't make Read hang reading one byte at a time.
const maxMagicLen = 32

// Read parses the magic line and primary header TLV block from s, which
// must be positioned at offset 0. It rejects a magic major version that
// does not match this build's Major. The magic line's length is not fixed
// — major/minor may have more digits than this build's own version — so it
// is scanned up to the terminating '\n' rather than read at a fixed width.
func Read(s *iohelper.Stream) (Header, error) {
	magic := make([]byte, 0, 16)
	var b [1]byte
	for {
		if len(magic) >= maxMagicLen {
			return Header{}, fmt.Errorf("%w: magic line exceeds %d bytes with no terminator", errs.ErrInvalidMagic, maxMagicLen)
		}
		if _, err := io.ReadFull(s, b[:]); err != nil {
			return Header{}, fmt.Errorf("%w: %v", errs.ErrInvalidMagic, err)
		}
		magic = append(magic, b[0])
		if b[0] == '\n' {
			break
		}
	}

	major, minor, err := parseMagic(string(magic))
	if err != nil {
		return Header{}, err
	}
	if major != Major {
		return Header{}, fmt.Errorf("%w: file is v%d.%d, this build is v%d.%d", errs.ErrUnsupportedVersion, major, minor, Major, Minor)
	}

	tag, sizeBytes, err := primitives.ReadTLV(s)
	if err != nil {
		return Header{}, fmt.Errorf("container: read HeaderSize TLV: %w", err)
	}
	if tag != primitives.TagHeaderSize {
		return Header{}, fmt.Errorf("%w: primary header must begin with HeaderSize", errs.ErrInvalidHeaderSize)
	}
	headerSize := le32(sizeBytes)

	var consumed uint32 = 9
	var h Header
	for consumed < headerSize {
		fieldTag, value, err := primitives.ReadTLV(s)
		if err != nil {
			return Header{}, fmt.Errorf("container: read primary header TLV: %w", err)
		}
		consumed += 5 + uint32(len(value))

		switch fieldTag {
		case TagEncryptionType:
			h.EncryptionType = format.EncryptionKind(value[0])
		case TagBaseSalt:
			copy(h.KDFParams.BaseSalt[:], value)
		case TagMemoryCost:
			h.KDFParams.MemoryCost = le64(value)
		case TagTimeCost:
			h.KDFParams.TimeCost = uint32(le32(value))
		case TagParallelism:
			h.KDFParams.Parallelism = uint32(le32(value))
		default:
			return Header{}, fmt.Errorf("%w: primary header tag %d", errs.ErrUnknownTag, fieldTag)
		}
	}
	if consumed != headerSize {
		return Header{}, fmt.Errorf("%w: walked %d bytes, HeaderSize declared %d", errs.ErrHeaderSizeMismatch, consumed, headerSize)
	}

	return h, nil
}

func parseMagic(s string) (major, minor int, err error) {
	if _, scanErr := fmt.Sscanf(s, "#UMDFv%d.%d\n", &major, &minor); scanErr != nil {
		return 0, 0, fmt.Errorf("%w: %q", errs.ErrInvalidMagic, s)
	}
	return major, minor, nil
}

func le32(b []byte) uint32 {
	var v uint32
	for i := 3; i >= 0; i-- {
		v = v<<8 | uint32(b[i])
	}
	return v
}

func le64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
