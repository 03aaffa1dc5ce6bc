package compress

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RobLovegrove/umdf-go/format"
)

func getAllCodecs() map[string]Codec {
	return map[string]Codec{
		"NoOp": NewNoOpCompressor(),
		"Zstd": NewZstdCompressor(),
	}
}

func TestCreateCodec_RawAndZstd(t *testing.T) {
	raw, err := CreateCodec(format.CompressionRaw, "module data")
	require.NoError(t, err)
	require.IsType(t, NoOpCompressor{}, raw)

	zstd, err := CreateCodec(format.CompressionZstd, "module data")
	require.NoError(t, err)
	require.IsType(t, ZstdCompressor{}, zstd)
}

func TestCreateCodec_RejectsUnsupportedKind(t *testing.T) {
	_, err := CreateCodec(format.CompressionPNG, "module data")
	require.Error(t, err)
}

func TestGetCodec_ReturnsBuiltins(t *testing.T) {
	codec, err := GetCodec(format.CompressionZstd)
	require.NoError(t, err)
	require.IsType(t, ZstdCompressor{}, codec)

	_, err = GetCodec(format.CompressionUnknown)
	require.Error(t, err)
}

func TestCompressionStats_Calculations(t *testing.T) {
	tests := []struct {
		name            string
		stats           CompressionStats
		expectedRatio   float64
		expectedSavings float64
	}{
		{
			name:            "good compression",
			stats:           CompressionStats{Algorithm: format.CompressionZstd, OriginalSize: 1000, CompressedSize: 300},
			expectedRatio:   0.3,
			expectedSavings: 70.0,
		},
		{
			name:            "no compression benefit",
			stats:           CompressionStats{Algorithm: format.CompressionRaw, OriginalSize: 500, CompressedSize: 500},
			expectedRatio:   1.0,
			expectedSavings: 0.0,
		},
		{
			name:            "zero original size",
			stats:           CompressionStats{Algorithm: format.CompressionZstd, OriginalSize: 0, CompressedSize: 100},
			expectedRatio:   0.0,
			expectedSavings: 100.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.expectedRatio, tt.stats.CompressionRatio(), 0.001)
			require.InDelta(t, tt.expectedSavings, tt.stats.SpaceSavings(), 0.001)
		})
	}
}

func TestNoOpCompressor_RoundTrip(t *testing.T) {
	compressor := NewNoOpCompressor()

	tests := []struct {
		name string
		data []byte
	}{
		{"small text data", []byte("hello world")},
		{"binary data", []byte{0x00, 0x01, 0x02, 0xFF, 0xFE, 0xFD}},
		{"repeated pattern", []byte("abcabcabcabcabc")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compressed, err := compressor.Compress(tt.data)
			require.NoError(t, err)
			require.Equal(t, tt.data, compressed)

			decompressed, err := compressor.Decompress(compressed)
			require.NoError(t, err)
			require.Equal(t, tt.data, decompressed)
		})
	}
}

func TestAllCodecs_EmptyData(t *testing.T) {
	codecs := getAllCodecs()

	for name, codec := range codecs {
		t.Run(name, func(t *testing.T) {
			compressed, err := codec.Compress(nil)
			require.NoError(t, err)

			decompressed, err := codec.Decompress(compressed)
			require.NoError(t, err)
			require.Empty(t, decompressed)
		})
	}
}

func TestAllCodecs_RoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"small_text", []byte("Hello, World!")},
		{"repeated_pattern", bytes.Repeat([]byte("ABCD"), 100)},
		{"binary_data", []byte{0x00, 0x01, 0x02, 0x03, 0xFF, 0xFE, 0xFD, 0xFC}},
		{"single_byte", []byte{0x42}},
		{"medium_payload", bytes.Repeat([]byte(`{"field":"value"}`), 256)},
		{"highly_compressible", make([]byte, 1024*1024)},
	}

	codecs := getAllCodecs()

	for codecName, codec := range codecs {
		t.Run(codecName, func(t *testing.T) {
			for _, tc := range testCases {
				t.Run(tc.name, func(t *testing.T) {
					compressed, err := codec.Compress(tc.data)
					require.NoError(t, err)
					require.NotNil(t, compressed)

					decompressed, err := codec.Decompress(compressed)
					require.NoError(t, err)
					require.Equal(t, tc.data, decompressed)
				})
			}
		})
	}
}

func TestZstdCompressor_InvalidData(t *testing.T) {
	invalidInputs := [][]byte{
		{0xFF, 0xFF, 0xFF, 0xFF},
		[]byte("this is not compressed data"),
		{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07},
	}

	zstd := NewZstdCompressor()
	for i, input := range invalidInputs {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			_, err := zstd.Decompress(input)
			require.Error(t, err)
		})
	}
}

func TestAllCodecs_InterfaceCompliance(t *testing.T) {
	for name, codec := range getAllCodecs() {
		t.Run(name, func(t *testing.T) {
			var _ Codec = codec
			require.NotNil(t, codec)
		})
	}
}

func TestAllCodecs_ConcurrentUsage(t *testing.T) {
	const numGoroutines = 20
	testData := []byte("concurrent compression test data with some content to compress")

	for codecName, codec := range getAllCodecs() {
		t.Run(codecName, func(t *testing.T) {
			compressed, err := codec.Compress(testData)
			require.NoError(t, err)

			done := make(chan error, numGoroutines)
			for range numGoroutines {
				go func() {
					decompressed, err := codec.Decompress(compressed)
					if err != nil {
						done <- err
						return
					}
					if !bytes.Equal(testData, decompressed) {
						done <- fmt.Errorf("decompressed data mismatch")
						return
					}
					done <- nil
				}()
			}

			for range numGoroutines {
				require.NoError(t, <-done)
			}
		})
	}
}
