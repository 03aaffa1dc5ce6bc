package writer

import (
	"fmt"

	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/format"
	"github.com/RobLovegrove/umdf-go/imagemod"
	"github.com/RobLovegrove/umdf-go/module"
	"github.com/RobLovegrove/umdf-go/primitives"
)

// moduleKind reads the "module_type" convention every module schema
// document declares at its root (spec §4.C schema conventions), which
// tells a Writer whether to build a TabularModule or an ImageModule for
// it.
func moduleKind(doc any) (string, error) {
	docMap, ok := doc.(map[string]any)
	if !ok {
		return "", fmt.Errorf("%w: schema root must be an object", errs.ErrUnsupportedFormat)
	}
	kind, ok := docMap["module_type"].(string)
	if !ok {
		return "", fmt.Errorf("%w: schema missing module_type", errs.ErrUnsupportedFormat)
	}
	return kind, nil
}

// checkKind resolves schemaPath and confirms its declared module_type
// matches want, so a caller that mismatches AddTabularModule/AddImageModule
// against a schema fails with a clear message instead of a confusing one
// from deep inside field parsing.
func (w *Writer) checkKind(schemaPath, want string) error {
	doc, err := w.resolver.GetByPath(schemaPath)
	if err != nil {
		return err
	}
	got, err := moduleKind(doc)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: %s declares module_type %q, expected %q", errs.ErrUnsupportedType, schemaPath, got, want)
	}
	return nil
}

func (w *Writer) newTabularModule(schemaPath string, id primitives.UUID) (*module.TabularModule, error) {
	if err := w.checkKind(schemaPath, "tabular"); err != nil {
		return nil, err
	}

	m, err := module.New(w.resolver, schemaPath, id, w.author)
	if err != nil {
		return nil, err
	}
	m.Header.MetadataCompression = w.defaultMetadataCompression
	m.Header.DataCompression = w.defaultDataCompression
	if w.password != "" {
		m.Header.EncryptionType = format.EncryptionAES256GCM
	}
	return m, nil
}

func (w *Writer) newImageModule(schemaPath string, id primitives.UUID) (*imagemod.ImageModule, error) {
	if err := w.checkKind(schemaPath, "image"); err != nil {
		return nil, err
	}

	m, err := imagemod.New(w.resolver, schemaPath, id, w.author)
	if err != nil {
		return nil, err
	}
	m.Header.MetadataCompression = w.defaultMetadataCompression
	m.Header.DataCompression = w.defaultDataCompression
	if w.password != "" {
		m.Header.EncryptionType = format.EncryptionAES256GCM
	}
	return m, nil
}

func (w *Writer) moduleEncContext() *module.EncryptionContext {
	if w.password == "" {
		return nil
	}
	return &module.EncryptionContext{Password: w.password, Params: w.header.KDFParams}
}

func (w *Writer) imageEncContext() *imagemod.EncryptionContext {
	if w.password == "" {
		return nil
	}
	return &imagemod.EncryptionContext{Password: w.password, Params: w.header.KDFParams}
}

func (w *Writer) writeTabular(m *module.TabularModule) error {
	if _, err := w.stream.SeekEnd(); err != nil {
		return fmt.Errorf("writer: seek to end: %w", err)
	}
	_, err := m.WriteBinary(w.stream, w.xref, w.moduleEncContext())
	return err
}

// AddTabularModule builds and writes a standalone tabular module, not
// attached to any encounter (spec §4.I addModule), returning its new id.
func (w *Writer) AddTabularModule(schemaPath string, metadata, data any) (primitives.UUID, error) {
	if w.closed {
		return primitives.Nil, errs.ErrAlreadyClosed
	}

	id := primitives.NewUUID()
	m, err := w.newTabularModule(schemaPath, id)
	if err != nil {
		return primitives.Nil, err
	}
	if metadata != nil {
		if err := m.AddMetadata(metadata); err != nil {
			return primitives.Nil, err
		}
	}
	if data != nil {
		if err := m.AddData(data); err != nil {
			return primitives.Nil, err
		}
	}

	if err := w.writeTabular(m); err != nil {
		return primitives.Nil, err
	}
	return id, nil
}

// AddImageModule builds and writes a standalone image module (spec §4.G),
// with frames built from framePixels in order, returning its new id.
// encoding chooses the per-frame pixel compression strategy.
func (w *Writer) AddImageModule(
	schemaPath string,
	dims []int,
	names []string,
	channels, bitDepth uint8,
	encoding format.CompressionKind,
	frames [][]byte,
) (primitives.UUID, error) {
	if w.closed {
		return primitives.Nil, errs.ErrAlreadyClosed
	}

	id := primitives.NewUUID()
	if err := w.buildAndWriteImage(id, schemaPath, dims, names, channels, bitDepth, encoding, frames); err != nil {
		return primitives.Nil, err
	}
	return id, nil
}
