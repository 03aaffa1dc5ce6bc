package writer

import (
	"fmt"

	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/format"
	"github.com/RobLovegrove/umdf-go/modheader"
	"github.com/RobLovegrove/umdf-go/primitives"
	"github.com/RobLovegrove/umdf-go/xref"
)

// demoteCurrent finds id's current XREF entry, reads its on-disk header in
// place, and flips its IsCurrent byte to 0 (spec §4.I updateModule steps
// 1-2: "load old header; flip old isCurrent=0 via in-place byte write").
func (w *Writer) demoteCurrent(id primitives.UUID) (xref.Entry, modheader.Header, error) {
	entry, ok := w.xref.Find(id)
	if !ok {
		return xref.Entry{}, modheader.Header{}, fmt.Errorf("%w: %s", errs.ErrModuleNotFound, id)
	}

	readRes, err := modheader.ReadAt(w.stream, entry.Offset, nil)
	if err != nil {
		return xref.Entry{}, modheader.Header{}, err
	}

	if err := modheader.UpdateIsCurrent(w.stream, readRes.IsCurrentOffset, false); err != nil {
		return xref.Entry{}, modheader.Header{}, err
	}

	return entry, readRes.Header, nil
}

// UpdateTabularModule appends a new version of an existing tabular module
// (spec §4.I updateModule): the old version's IsCurrent byte is demoted in
// place, a fresh module sharing id and schema path is built with
// PreviousVersion pointing at the old offset, and its bytes are appended at
// the end of the file. xref.Table.AddEntry's dedup-by-id replaces the XREF
// entry for id rather than adding a second one (§9 resolved open question).
func (w *Writer) UpdateTabularModule(id primitives.UUID, metadata, data any) error {
	if w.closed {
		return errs.ErrAlreadyClosed
	}

	oldEntry, oldHeader, err := w.demoteCurrent(id)
	if err != nil {
		return err
	}
	if oldHeader.ModuleType != format.ModuleTypeTabular {
		return fmt.Errorf("%w: %s is a %s module, not Tabular", errs.ErrUnsupportedType, id, oldHeader.ModuleType)
	}

	m, err := w.newTabularModule(oldHeader.SchemaPath, id)
	if err != nil {
		return err
	}
	m.Header.PreviousVersion = uint64(oldEntry.Offset)

	if metadata != nil {
		if err := m.AddMetadata(metadata); err != nil {
			return err
		}
	}
	if data != nil {
		if err := m.AddData(data); err != nil {
			return err
		}
	}

	return w.writeTabular(m)
}

// UpdateImageModule mirrors UpdateTabularModule for the image variant.
func (w *Writer) UpdateImageModule(
	id primitives.UUID,
	dims []int,
	names []string,
	channels, bitDepth uint8,
	encoding format.CompressionKind,
	frames [][]byte,
) error {
	if w.closed {
		return errs.ErrAlreadyClosed
	}

	oldEntry, oldHeader, err := w.demoteCurrent(id)
	if err != nil {
		return err
	}
	if oldHeader.ModuleType != format.ModuleTypeImage {
		return fmt.Errorf("%w: %s is a %s module, not Image", errs.ErrUnsupportedType, id, oldHeader.ModuleType)
	}

	m, err := w.newImageModule(oldHeader.SchemaPath, id)
	if err != nil {
		return err
	}
	m.Header.PreviousVersion = uint64(oldEntry.Offset)

	if err := m.SetStructure(dims, names, channels, bitDepth, encoding); err != nil {
		return err
	}
	if err := m.AddFrames(frames, w.author); err != nil {
		return err
	}

	if _, err := w.stream.SeekEnd(); err != nil {
		return fmt.Errorf("writer: seek to end: %w", err)
	}
	_, err = m.WriteBinary(w.stream, w.xref, w.imageEncContext())
	return err
}
