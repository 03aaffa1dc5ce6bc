// Package compress implements the two compression algorithms a module
// envelope may declare (spec §4.F): RAW (identity) and Zstandard. A module's
// metadata block and data block each carry their own format.CompressionKind
// tag, so the two halves of one module can be compressed independently.
//
// The package exposes three small interfaces:
//
//	type Compressor interface {
//	    Compress(data []byte) ([]byte, error)
//	}
//
//	type Decompressor interface {
//	    Decompress(data []byte) ([]byte, error)
//	}
//
//	type Codec interface {
//	    Compressor
//	    Decompressor
//	}
//
// CreateCodec and GetCodec are the factory entry points used by the module
// writer/reader; callers look a codec up by format.CompressionKind rather
// than constructing NoOpCompressor/ZstdCompressor directly, so adding a
// future CompressionKind only touches the switch/map in codec.go.
package compress
