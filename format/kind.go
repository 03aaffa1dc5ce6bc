package format

// CompressionKind identifies how a module's metadata or data payload is
// compressed on disk.
type CompressionKind uint8

const (
	CompressionRaw             CompressionKind = 0x0 // CompressionRaw stores the payload unmodified.
	CompressionJPEG2000Lossles CompressionKind = 0x1 // CompressionJPEG2000Lossles applies lossless JPEG 2000 to image pixel data.
	CompressionPNG             CompressionKind = 0x2 // CompressionPNG applies PNG to image pixel data.
	CompressionZstd            CompressionKind = 0x3 // CompressionZstd applies Zstandard to the metadata/string-buffer envelope.
	CompressionUnknown         CompressionKind = 0xFF
)

func (c CompressionKind) String() string {
	switch c {
	case CompressionRaw:
		return "RAW"
	case CompressionJPEG2000Lossles:
		return "JPEG2000_LOSSLESS"
	case CompressionPNG:
		return "PNG"
	case CompressionZstd:
		return "ZSTD"
	default:
		return "UNKNOWN"
	}
}

// EncryptionKind identifies the AEAD scheme (if any) protecting a module's
// envelope.
type EncryptionKind uint8

const (
	EncryptionNone      EncryptionKind = 0x0
	EncryptionAES256GCM EncryptionKind = 0x1
	EncryptionUnknown   EncryptionKind = 0xFF
)

func (e EncryptionKind) String() string {
	switch e {
	case EncryptionNone:
		return "NONE"
	case EncryptionAES256GCM:
		return "AES_256_GCM"
	default:
		return "UNKNOWN"
	}
}

// ModuleType identifies the shape of a module's payload: tabular rows, an
// N-dimensional image, an image frame, or the synthetic types used for the
// file header and XREF block themselves when they appear as XREF entries.
type ModuleType uint8

const (
	ModuleTypeFileHeader ModuleType = 0x0
	ModuleTypeXrefTable  ModuleType = 0x1
	ModuleTypeTabular    ModuleType = 0x2
	ModuleTypeImage      ModuleType = 0x3
	ModuleTypeFrame      ModuleType = 0x4
	ModuleTypeUnknown    ModuleType = 0xFF
)

func (m ModuleType) String() string {
	switch m {
	case ModuleTypeFileHeader:
		return "FileHeader"
	case ModuleTypeXrefTable:
		return "XrefTable"
	case ModuleTypeTabular:
		return "Tabular"
	case ModuleTypeImage:
		return "Image"
	case ModuleTypeFrame:
		return "Frame"
	default:
		return "Unknown"
	}
}

// ParseModuleType maps the utf-8 name stored in a module header's ModuleType
// TLV back to its enum value.
func ParseModuleType(name string) ModuleType {
	switch name {
	case "FileHeader":
		return ModuleTypeFileHeader
	case "XrefTable":
		return ModuleTypeXrefTable
	case "Tabular":
		return ModuleTypeTabular
	case "Image":
		return ModuleTypeImage
	case "Frame":
		return ModuleTypeFrame
	default:
		return ModuleTypeUnknown
	}
}
