package writer

import (
	"github.com/RobLovegrove/umdf-go/crypto"
	"github.com/RobLovegrove/umdf-go/format"
	"github.com/RobLovegrove/umdf-go/internal/options"
)

// Option configures a Writer session at CreateNewFile/OpenFile time (spec
// §4.I), following the functional-option idiom mebo's encoder configs use
// (blob/numeric_encoder_config.go's WithLittleEndian/WithTagsEnabled).
type Option = options.Option[*Writer]

// WithPassword supplies the container password. Required to OpenFile an
// encrypted container; optional for CreateNewFile, where its presence is
// what turns on per-module AES-256-GCM encryption (spec §4.I step 3).
func WithPassword(password string) Option {
	return options.NoError(func(w *Writer) {
		w.password = password
	})
}

// WithKDFParams overrides the Argon2id cost parameters a new (password
// protected) container writes into its primary header. Ignored by
// OpenFile, whose KDF parameters always come from the file itself.
func WithKDFParams(params crypto.KDFParams) Option {
	return options.New(func(w *Writer) error {
		if err := params.Validate(); err != nil {
			return err
		}
		w.kdfParamsOverride = &params
		return nil
	})
}

// WithSchemaRoot sets the project-root directory a "/"-prefixed $ref is
// resolved against (spec §4.C ResolveRelative). Defaults to ".".
func WithSchemaRoot(dir string) Option {
	return options.NoError(func(w *Writer) {
		w.schemaRoot = dir
	})
}

// WithDefaultMetadataCompression sets the MetadataCompression every module
// this Writer creates is given; no Add/Update method overrides it per call.
// Defaults to format.CompressionRaw.
func WithDefaultMetadataCompression(kind format.CompressionKind) Option {
	return options.NoError(func(w *Writer) {
		w.defaultMetadataCompression = kind
	})
}

// WithDefaultDataCompression sets the DataCompression every tabular or
// image-structure module this Writer creates is given; no Add/Update method
// overrides it per call. Defaults to format.CompressionRaw. Image pixel compression is
// controlled separately by the encoding passed to AddImageModule.
func WithDefaultDataCompression(kind format.CompressionKind) Option {
	return options.NoError(func(w *Writer) {
		w.defaultDataCompression = kind
	})
}
