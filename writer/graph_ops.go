package writer

import (
	"fmt"

	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/format"
	"github.com/RobLovegrove/umdf-go/graph"
	"github.com/RobLovegrove/umdf-go/primitives"
)

// CreateEncounter allocates a new encounter and returns its id (spec §4.H
// createEncounter).
func (w *Writer) CreateEncounter() primitives.UUID {
	return w.graph.CreateEncounter()
}

// AddModuleToEncounter builds and writes a tabular module, then links it
// into encounterID's BELONGS_TO chain (spec §4.I: "the graph edge is added
// first; if the subsequent write fails, the edge is rolled back"). The
// module's id is reserved and the chain link made before the module is
// written, so a failed write can be rolled back cleanly.
func (w *Writer) AddModuleToEncounter(encounterID primitives.UUID, schemaPath string, metadata, data any) (primitives.UUID, error) {
	if w.closed {
		return primitives.Nil, errs.ErrAlreadyClosed
	}

	id := primitives.NewUUID()
	if err := w.graph.AddModuleToEncounter(encounterID, id); err != nil {
		return primitives.Nil, err
	}

	if err := w.buildAndWriteTabular(id, schemaPath, metadata, data); err != nil {
		w.graph.RemoveModuleFromEncounter(encounterID, id)
		return primitives.Nil, err
	}
	return id, nil
}

// AddImageModuleToEncounter mirrors AddModuleToEncounter for the image
// module variant.
func (w *Writer) AddImageModuleToEncounter(
	encounterID primitives.UUID,
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
	if err := w.graph.AddModuleToEncounter(encounterID, id); err != nil {
		return primitives.Nil, err
	}

	if err := w.buildAndWriteImage(id, schemaPath, dims, names, channels, bitDepth, encoding, frames); err != nil {
		w.graph.RemoveModuleFromEncounter(encounterID, id)
		return primitives.Nil, err
	}
	return id, nil
}

// AddVariantModule builds and writes a tabular module linked as a
// VARIANT_OF parentID (glossary "VARIANT_OF... fan-in trees").
func (w *Writer) AddVariantModule(parentID primitives.UUID, schemaPath string, metadata, data any) (primitives.UUID, error) {
	return w.addLinkedTabularModule(parentID, graph.VariantOf, schemaPath, metadata, data)
}

// AddAnnotation builds and writes a tabular module linked as an ANNOTATES
// parentID.
func (w *Writer) AddAnnotation(parentID primitives.UUID, schemaPath string, metadata, data any) (primitives.UUID, error) {
	return w.addLinkedTabularModule(parentID, graph.Annotates, schemaPath, metadata, data)
}

func (w *Writer) addLinkedTabularModule(parentID primitives.UUID, kind graph.EdgeKind, schemaPath string, metadata, data any) (primitives.UUID, error) {
	if w.closed {
		return primitives.Nil, errs.ErrAlreadyClosed
	}
	if _, ok := w.xref.Find(parentID); !ok {
		return primitives.Nil, fmt.Errorf("%w: %s", errs.ErrParentModuleMissing, parentID)
	}

	id := primitives.NewUUID()
	if err := w.graph.AddModuleLink(id, parentID, kind); err != nil {
		return primitives.Nil, err
	}

	if err := w.buildAndWriteTabular(id, schemaPath, metadata, data); err != nil {
		w.graph.RemoveModuleLink(id, parentID, kind)
		return primitives.Nil, err
	}
	return id, nil
}

// AddModuleLink links two already-written modules directly (spec §4.H
// addModuleLink), rejecting the call if it would create a cycle.
func (w *Writer) AddModuleLink(source, target primitives.UUID, kind graph.EdgeKind) error {
	if w.closed {
		return errs.ErrAlreadyClosed
	}
	return w.graph.AddModuleLink(source, target, kind)
}

func (w *Writer) buildAndWriteTabular(id primitives.UUID, schemaPath string, metadata, data any) error {
	m, err := w.newTabularModule(schemaPath, id)
	if err != nil {
		return err
	}
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

func (w *Writer) buildAndWriteImage(
	id primitives.UUID,
	schemaPath string,
	dims []int,
	names []string,
	channels, bitDepth uint8,
	encoding format.CompressionKind,
	frames [][]byte,
) error {
	m, err := w.newImageModule(schemaPath, id)
	if err != nil {
		return err
	}
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
